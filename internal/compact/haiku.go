// Package compact summarizes aged-out conversations with Claude Haiku
// before the retention cleanup pass deletes their underlying prompts, so
// a short transcript survives even after the raw rows are gone.
package compact

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net"
	"os"
	"strings"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/untoldecay/icpc/internal/model"
)

const (
	defaultModel   = "claude-3-5-haiku-20241022"
	maxRetries     = 3
	initialBackoff = 1 * time.Second
)

// ErrAPIKeyRequired is returned when an API key is needed but not provided.
var ErrAPIKeyRequired = errors.New("API key required")

// Client wraps the Anthropic API for conversation summarization.
type Client struct {
	client         anthropic.Client
	model          anthropic.Model
	tmpl           *template.Template
	maxRetries     int
	initialBackoff time.Duration
}

// NewClient creates a new Haiku API client. Env var ANTHROPIC_API_KEY takes
// precedence over an explicit apiKey argument. model, if empty, defaults to
// claude-3-5-haiku.
func NewClient(apiKey, model string) (*Client, error) {
	envKey := os.Getenv("ANTHROPIC_API_KEY")
	if envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", ErrAPIKeyRequired)
	}
	if model == "" {
		model = defaultModel
	}

	client := anthropic.NewClient(option.WithAPIKey(apiKey))

	tmpl, err := template.New("conversation").Parse(conversationPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("parse conversation template: %w", err)
	}

	return &Client{
		client:         client,
		model:          anthropic.Model(model),
		tmpl:           tmpl,
		maxRetries:     maxRetries,
		initialBackoff: initialBackoff,
	}, nil
}

// SummarizeConversation compresses conv's prompt transcript into a short
// summary suitable for long-term storage once the raw prompts age out of
// retention.
func (c *Client) SummarizeConversation(ctx context.Context, conv model.Conversation, prompts []model.Prompt) (string, error) {
	prompt, err := c.renderPrompt(conv, prompts)
	if err != nil {
		return "", fmt.Errorf("render conversation prompt: %w", err)
	}
	return c.callWithRetry(ctx, prompt)
}

func (c *Client) callWithRetry(ctx context.Context, prompt string) (string, error) {
	var lastErr error
	params := anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: 512,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	}

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			backoff := c.initialBackoff * time.Duration(math.Pow(2, float64(attempt-1)))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return "", ctx.Err()
			}
		}

		message, err := c.client.Messages.New(ctx, params)
		if err == nil {
			if len(message.Content) > 0 {
				content := message.Content[0]
				if content.Type == "text" {
					return content.Text, nil
				}
				return "", fmt.Errorf("unexpected response format: not a text block (type=%s)", content.Type)
			}
			return "", fmt.Errorf("unexpected response format: no content blocks")
		}

		lastErr = err
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		if !isRetryable(err) {
			return "", fmt.Errorf("non-retryable error: %w", err)
		}
	}

	return "", fmt.Errorf("failed after %d attempts: %w", c.maxRetries+1, lastErr)
}

func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}
	return false
}

type conversationData struct {
	Title      string
	Transcript string
}

func (c *Client) renderPrompt(conv model.Conversation, prompts []model.Prompt) (string, error) {
	var lines []string
	for _, p := range prompts {
		role := p.MessageRole
		if role == "" {
			role = "user"
		}
		lines = append(lines, fmt.Sprintf("[%s] %s", role, p.Text))
	}

	var buf strings.Builder
	data := conversationData{Title: conv.Title, Transcript: strings.Join(lines, "\n")}
	if err := c.tmpl.Execute(&buf, data); err != nil {
		return "", err
	}
	return buf.String(), nil
}

const conversationPromptTemplate = `You are summarizing a closed coding-assistant conversation for long-term storage. Your goal is to COMPRESS the content - the output MUST be significantly shorter than the input while preserving key technical decisions and outcomes.

{{if .Title}}**Title:** {{.Title}}
{{end}}
**Transcript:**
{{.Transcript}}

IMPORTANT: Your summary must be shorter than the original. Be concise and eliminate redundancy.

Provide a summary in this exact format:

**Summary:** [2-3 concise sentences covering what was discussed and decided]

**Key Decisions:** [Brief bullet points of only the most important technical choices]

**Outcome:** [One sentence on what was ultimately produced or resolved]`
