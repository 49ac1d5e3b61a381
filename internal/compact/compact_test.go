package compact

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

type fakeStore struct {
	eligible      []model.Conversation
	prompts       map[string][]model.Prompt
	summaries     map[string]string
	eligibleErr   error
	promptsErrFor string
	summaryErrFor string
}

func (f *fakeStore) ConversationsEligibleForCompaction(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	return f.eligible, f.eligibleErr
}

func (f *fakeStore) PromptsByConversation(ctx context.Context, conversationID string) ([]model.Prompt, error) {
	if conversationID == f.promptsErrFor {
		return nil, errTest
	}
	return f.prompts[conversationID], nil
}

func (f *fakeStore) SetConversationSummary(ctx context.Context, id, summary string) error {
	if id == f.summaryErrFor {
		return errTest
	}
	if f.summaries == nil {
		f.summaries = map[string]string{}
	}
	f.summaries[id] = summary
	return nil
}

var errTest = &testError{"boom"}

type testError struct{ msg string }

func (e *testError) Error() string { return e.msg }

func TestRunner_NilClientIsNoOp(t *testing.T) {
	store := &fakeStore{eligible: []model.Conversation{{ID: "conv-1"}}}
	r := NewRunner(store, nil, nil)

	n, err := r.Run(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 summarized with nil client, got %d", n)
	}
}

func TestRunner_SkipsConversationsWithNoPrompts(t *testing.T) {
	store := &fakeStore{
		eligible: []model.Conversation{{ID: "conv-empty"}},
		prompts:  map[string][]model.Prompt{},
	}
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewRunner(store, client, nil)
	n, err := r.Run(context.Background(), 30*24*time.Hour)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if n != 0 {
		t.Fatalf("expected 0 summarized for an empty conversation, got %d", n)
	}
}

func TestRunner_PropagatesEligibilityQueryError(t *testing.T) {
	store := &fakeStore{eligibleErr: errTest}
	t.Setenv("ANTHROPIC_API_KEY", "test-key")
	client, err := NewClient("", "")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	r := NewRunner(store, client, nil)
	if _, err := r.Run(context.Background(), time.Hour); err != errTest {
		t.Fatalf("expected eligibility error to propagate, got %v", err)
	}
}
