package extractor

import (
	"context"
	"log/slog"
	"time"
)

// Pipeline runs one or more Extractor strategies over a commit message (or
// any other free-text event body) and merges their entities by name,
// keeping the higher-confidence hit when two strategies agree. The regex
// strategy always runs; the Ollama strategy is optional and only added
// when a live Ollama service was reachable at construction time.
type Pipeline struct {
	extractors []Extractor
	log        *slog.Logger
}

// NewPipeline builds a regex-only Pipeline.
func NewPipeline() *Pipeline {
	return &Pipeline{
		extractors: []Extractor{NewRegexExtractor()},
		log:        slog.Default(),
	}
}

// NewPipelineWithOllama builds a Pipeline that also consults model for
// entity extraction, provided it is reachable; otherwise it silently falls
// back to regex-only, matching correlate.Enricher's availability contract.
func NewPipelineWithOllama(ctx context.Context, model string) *Pipeline {
	p := NewPipeline()
	ox, err := NewOllamaExtractor(model)
	if err != nil {
		return p
	}
	if !ox.Available(ctx) {
		return p
	}
	p.extractors = append(p.extractors, ollamaAdapter{ox})
	return p
}

// ollamaAdapter narrows OllamaExtractor's (entities, relationships, error)
// shape down to the plain Extractor interface; its relationships are
// dropped, and Run takes relationships only from ExtractRelationships.
type ollamaAdapter struct{ *OllamaExtractor }

func (o ollamaAdapter) Extract(text string) ([]Entity, error) {
	entities, _, err := o.OllamaExtractor.Extract(text)
	return entities, err
}

// ExtractionResult contains all extracted information and metadata.
type ExtractionResult struct {
	Entities      []Entity
	Relationships []Relationship
	Duration      time.Duration
}

func (p *Pipeline) Run(ctx context.Context, text string) (*ExtractionResult, error) {
	start := time.Now()

	allEntities := make(map[string]Entity)
	for _, ext := range p.extractors {
		entities, err := ext.Extract(text)
		if err != nil {
			p.log.Debug("extractor strategy failed", "extractor", ext.Name(), "error", err)
			continue
		}
		for _, e := range entities {
			if existing, ok := allEntities[e.Name]; !ok || e.Confidence > existing.Confidence {
				allEntities[e.Name] = e
			}
		}
	}

	resultEntities := make([]Entity, 0, len(allEntities))
	for _, e := range allEntities {
		resultEntities = append(resultEntities, e)
	}

	return &ExtractionResult{
		Entities:      resultEntities,
		Relationships: ExtractRelationships(text),
		Duration:      time.Since(start),
	}, nil
}
