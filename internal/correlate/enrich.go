package correlate

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/ollama/ollama/api"

	"github.com/untoldecay/icpc/internal/model"
)

// EnrichmentConfig gates the optional low-confidence fallback.
type EnrichmentConfig struct {
	Enabled     bool
	OllamaModel string // defaults to "llama3.2:3b" when empty, as the teacher's extractor does
}

// Enricher asks a local Ollama model whether an entry's diff plausibly
// matches a nearby prompt's stated intent, for entries the scoring formula
// classified low/none. It mirrors a feature present in the teacher
// (LLM-backed entity/relationship enrichment of devlog sessions),
// re-homed onto entry/prompt matching instead of issue-tracker devlog
// entity extraction. Never required: if Ollama isn't reachable, enrichment
// is simply skipped, matching spec.md §7 ("correlation failure is not an
// error").
type Enricher struct {
	client *api.Client
	model  string
}

// NewEnricher constructs an Enricher from the ambient Ollama environment
// configuration (OLLAMA_HOST, etc). Returns an error only when the client
// itself cannot be constructed — callers should treat that as "disable
// enrichment", not a fatal startup condition.
func NewEnricher(cfg EnrichmentConfig) (*Enricher, error) {
	client, err := api.ClientFromEnvironment()
	if err != nil {
		return nil, fmt.Errorf("ollama client: %w", err)
	}
	m := cfg.OllamaModel
	if m == "" {
		m = "llama3.2:3b"
	}
	return &Enricher{client: client, model: m}, nil
}

// Available health-checks the Ollama service with a short timeout.
func (en *Enricher) Available(ctx context.Context) bool {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	_, err := en.client.List(ctx)
	return err == nil
}

type guessResponse struct {
	Match      bool    `json:"match"`
	Confidence float64 `json:"confidence"`
}

// Guess asks whether entry plausibly resulted from prompt, returning a
// confidence in [0,1]. Callers only invoke this for entries that scored
// low/none and whose workspace has enrichment.enabled=true.
func (en *Enricher) Guess(ctx context.Context, entry model.Entry, prompt model.Prompt) (bool, float64, error) {
	if !en.Available(ctx) {
		return false, 0, fmt.Errorf("ollama not available")
	}

	promptText := fmt.Sprintf(`You are judging whether a code change was caused by a chat prompt.

Prompt: %s
File changed: %s
Diff (before -> after):
--- before ---
%s
--- after ---
%s

Output ONLY a JSON object: {"match": true|false, "confidence": 0.0-1.0}`,
		prompt.Text, entry.FilePath, entry.BeforeCode, entry.AfterCode)

	req := &api.GenerateRequest{
		Model:  en.model,
		Prompt: promptText,
		Format: json.RawMessage(`"json"`),
		Stream: new(bool),
	}
	*req.Stream = false

	var respText string
	err := en.client.Generate(ctx, req, func(r api.GenerateResponse) error {
		respText = r.Response
		return nil
	})
	if err != nil {
		return false, 0, fmt.Errorf("ollama generate: %w", err)
	}

	var parsed guessResponse
	if err := json.Unmarshal([]byte(respText), &parsed); err != nil {
		return false, 0, fmt.Errorf("parse ollama response: %w", err)
	}
	return parsed.Match, parsed.Confidence, nil
}
