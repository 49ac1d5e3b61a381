package compact

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/untoldecay/icpc/internal/model"
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestNewClient_RequiresAPIKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	_, err := NewClient("", "")
	if err == nil {
		t.Fatal("expected error when API key is missing")
	}
	if !errors.Is(err, ErrAPIKeyRequired) {
		t.Fatalf("expected ErrAPIKeyRequired, got %v", err)
	}
}

func TestNewClient_EnvVarOverridesExplicitKey(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key-from-env")

	client, err := NewClient("test-key-explicit", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if client == nil {
		t.Fatal("expected non-nil client")
	}
	if client.model != defaultModel {
		t.Errorf("expected default model, got %s", client.model)
	}
}

func TestNewClient_CustomModel(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")

	client, err := NewClient("", "claude-3-5-sonnet-20241022")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(client.model) != "claude-3-5-sonnet-20241022" {
		t.Errorf("unexpected model: %s", client.model)
	}
}

func TestRenderPrompt(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	conv := model.Conversation{Title: "Fix authentication bug"}
	prompts := []model.Prompt{
		{MessageRole: "user", Text: "Users can't log in with OAuth"},
		{MessageRole: "assistant", Text: "Added error handling to the OAuth flow"},
	}

	prompt, err := client.renderPrompt(conv, prompts)
	if err != nil {
		t.Fatalf("failed to render prompt: %v", err)
	}

	if !strings.Contains(prompt, "Fix authentication bug") {
		t.Error("prompt should contain title")
	}
	if !strings.Contains(prompt, "Users can't log in with OAuth") {
		t.Error("prompt should contain first message")
	}
	if !strings.Contains(prompt, "Added error handling to the OAuth flow") {
		t.Error("prompt should contain second message")
	}
	if !strings.Contains(prompt, "**Summary:**") {
		t.Error("prompt should contain format instructions")
	}
}

func TestRenderPrompt_DefaultsMissingRoleToUser(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	prompt, err := client.renderPrompt(model.Conversation{}, []model.Prompt{{Text: "hello"}})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(prompt, "[user] hello") {
		t.Errorf("expected default user role, got: %s", prompt)
	}
}

func TestCallWithRetry_ContextCancellation(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	client.initialBackoff = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = client.callWithRetry(ctx, "test prompt")
	if err == nil {
		t.Fatal("expected error when context is canceled")
	}
	if err != context.Canceled {
		t.Errorf("expected context.Canceled error, got: %v", err)
	}
}

func TestIsRetryable(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		expected bool
	}{
		{"nil error", nil, false},
		{"context canceled", context.Canceled, false},
		{"context deadline exceeded", context.DeadlineExceeded, false},
		{"generic error", errors.New("some error"), false},
		{"timeout error", timeoutErr{}, true},
		{"anthropic 429", &anthropic.Error{StatusCode: 429}, true},
		{"anthropic 500", &anthropic.Error{StatusCode: 500}, true},
		{"anthropic 400", &anthropic.Error{StatusCode: 400}, false},
		{"wrapped timeout", fmt.Errorf("wrap: %w", timeoutErr{}), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := isRetryable(tt.err)
			if got != tt.expected {
				t.Errorf("isRetryable(%v) = %v, want %v", tt.err, got, tt.expected)
			}
		})
	}
}
