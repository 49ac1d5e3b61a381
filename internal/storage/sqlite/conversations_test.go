package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/correlate"
	"github.com/untoldecay/icpc/internal/model"
)

// TestConversationRollUp_S4 is spec.md §8 scenario S4: three prompts
// sharing composer_id "c1" land one minute apart; the conversation they
// roll up into must report message_count 3, last_message_at at the final
// prompt's timestamp, and a title taken from the first prompt's text.
func TestConversationRollUp_S4(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()
	engine := correlate.New(store, correlate.DefaultWindow)

	base := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	texts := []string{"first message", "second message", "third message"}
	for i, text := range texts {
		p := model.Prompt{
			ID:             int64(i + 1),
			Timestamp:      base.Add(time.Duration(i) * time.Minute),
			Text:           text,
			Status:         model.PromptCaptured,
			Workspace:      model.Workspace{Path: "/repo"},
			ComposerID:     "c1",
			ConversationID: "c1",
		}
		if err := store.SavePrompt(ctx, p); err != nil {
			t.Fatalf("save prompt %d: %v", i, err)
		}
		if err := engine.AfterSavePrompt(ctx, p); err != nil {
			t.Fatalf("after save prompt %d: %v", i, err)
		}
	}

	conv, ok, err := store.GetConversation(ctx, "c1")
	if err != nil || !ok {
		t.Fatalf("get conversation: ok=%v err=%v", ok, err)
	}
	if conv.MessageCount != 3 {
		t.Fatalf("expected message_count 3, got %d", conv.MessageCount)
	}
	wantLast := base.Add(2 * time.Minute)
	if !conv.LastMessageAt.Equal(wantLast) {
		t.Fatalf("expected last_message_at %v, got %v", wantLast, conv.LastMessageAt)
	}
	if conv.Title != "first message" {
		t.Fatalf("expected title from first prompt's text, got %q", conv.Title)
	}
}

// TestConversationsByWorkspace_OrderedByLastMessageThenCreated covers the
// maintainer-requested ORDER BY fix: results sort by last_message_at desc,
// falling back to created_at desc for conversations with no messages yet.
func TestConversationsByWorkspace_OrderedByLastMessageThenCreated(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	older := model.Conversation{
		ID:            "conv-older-no-messages",
		WorkspacePath: "/repo",
		Status:        model.ConversationActive,
		CreatedAt:     time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := model.Conversation{
		ID:            "conv-newer-no-messages",
		WorkspacePath: "/repo",
		Status:        model.ConversationActive,
		CreatedAt:     time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
	}
	withMessage := model.Conversation{
		ID:            "conv-with-message",
		WorkspacePath: "/repo",
		Status:        model.ConversationActive,
		CreatedAt:     time.Date(2026, 1, 2, 0, 0, 0, 0, time.UTC),
		LastMessageAt: time.Date(2026, 1, 10, 0, 0, 0, 0, time.UTC),
	}
	for _, c := range []model.Conversation{older, newer, withMessage} {
		if err := store.UpsertConversation(ctx, c); err != nil {
			t.Fatalf("upsert conversation %s: %v", c.ID, err)
		}
	}

	got, err := store.ConversationsByWorkspace(ctx, "/repo", 10, 0)
	if err != nil {
		t.Fatalf("conversations by workspace: %v", err)
	}
	if len(got) != 3 {
		t.Fatalf("expected 3 conversations, got %d", len(got))
	}
	wantOrder := []string{withMessage.ID, newer.ID, older.ID}
	for i, id := range wantOrder {
		if got[i].ID != id {
			t.Fatalf("position %d: want %s got %s (full order %v)", i, id, got[i].ID, ids(got))
		}
	}
}

func ids(cs []model.Conversation) []string {
	out := make([]string, len(cs))
	for i, c := range cs {
		out[i] = c.ID
	}
	return out
}
