package sqlite

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// TestSavePrompt_UpsertIdempotence is invariant 4 for prompts, the other
// half of the same defect SaveEntry had: SavePrompt used to INSERT without
// an id column and return a fresh rowid instead of upserting on the
// normalizer-assigned id.
func TestSavePrompt_UpsertIdempotence(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	first := model.Prompt{
		ID:        10,
		Timestamp: time.Date(2026, 1, 1, 10, 0, 0, 0, time.UTC),
		Text:      "first text",
		Status:    model.PromptCaptured,
		Source:    model.SourceEditorDB,
		Workspace: model.Workspace{Path: "/repo"},
	}
	if err := store.SavePrompt(ctx, first); err != nil {
		t.Fatalf("save prompt (first): %v", err)
	}

	second := first
	second.Text = "second text"
	second.Status = model.PromptLinked
	if err := store.SavePrompt(ctx, second); err != nil {
		t.Fatalf("save prompt (second): %v", err)
	}

	all, err := store.RecentPrompts(ctx, 10, 0)
	if err != nil {
		t.Fatalf("recent prompts: %v", err)
	}
	if len(all) != 1 {
		t.Fatalf("expected exactly one row after re-saving id %d, got %d", first.ID, len(all))
	}
	if all[0].Text != "second text" || all[0].Status != model.PromptLinked {
		t.Fatalf("expected the second save's values to win, got %+v", all[0])
	}
}

// TestPrompt_RoundTripReloadResaveEquality is the first round-trip
// property of spec.md §8: save a Prompt, reload via the store, re-save,
// reload again — the two reloaded serializations must be identical.
func TestPrompt_RoundTripReloadResaveEquality(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := model.Prompt{
		ID:        20,
		Timestamp: time.Date(2026, 3, 1, 9, 30, 0, 0, time.UTC),
		Text:      "refactor util.js to use arrow functions",
		Status:    model.PromptCaptured,
		Source:    model.SourceEditorDB,
		Workspace: model.Workspace{ID: "ws-1", Path: "/repo", Name: "repo"},
		ComposerID: "c1",
		Stats: model.PromptStats{
			LinesAdded:        4,
			LinesRemoved:      1,
			ContextUsageRatio: 0.5,
			Mode:              "agent",
		},
		ContextFiles:      []string{"/repo/util.js"},
		ContextFileCounts: model.ContextFileCounts{Explicit: 1, Tabs: 2, Auto: 3},
		ThinkingTimeMS:    4200,
		ConversationID:    "c1",
		ConversationIndex: 1,
	}
	if err := store.SavePrompt(ctx, p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}

	reloaded1, ok, err := store.GetPrompt(ctx, p.ID)
	if err != nil || !ok {
		t.Fatalf("get prompt (1st reload): ok=%v err=%v", ok, err)
	}
	serialized1, err := json.Marshal(reloaded1)
	if err != nil {
		t.Fatalf("marshal reloaded prompt: %v", err)
	}

	if err := store.SavePrompt(ctx, reloaded1); err != nil {
		t.Fatalf("re-save reloaded prompt: %v", err)
	}
	reloaded2, ok, err := store.GetPrompt(ctx, p.ID)
	if err != nil || !ok {
		t.Fatalf("get prompt (2nd reload): ok=%v err=%v", ok, err)
	}
	serialized2, err := json.Marshal(reloaded2)
	if err != nil {
		t.Fatalf("marshal re-reloaded prompt: %v", err)
	}

	if string(serialized1) != string(serialized2) {
		t.Fatalf("re-save changed the serialized prompt:\nfirst:  %s\nsecond: %s", serialized1, serialized2)
	}
}

// TestPrompt_ContextFileArithmetic is invariant 9: contextFileCount ==
// contextFileCountExplicit + contextFileCountTabs + contextFileCountAuto
// for every stored prompt, preserved across a save/reload round trip.
func TestPrompt_ContextFileArithmetic(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	p := model.Prompt{
		ID:                30,
		Timestamp:         time.Date(2026, 1, 5, 0, 0, 0, 0, time.UTC),
		Text:              "text",
		Status:            model.PromptCaptured,
		Workspace:         model.Workspace{Path: "/repo"},
		ContextFileCounts: model.ContextFileCounts{Explicit: 2, Tabs: 5, Auto: 7},
	}
	if err := store.SavePrompt(ctx, p); err != nil {
		t.Fatalf("save prompt: %v", err)
	}

	got, ok, err := store.GetPrompt(ctx, p.ID)
	if err != nil || !ok {
		t.Fatalf("get prompt: ok=%v err=%v", ok, err)
	}
	if got.ContextFileCount() != got.ContextFileCounts.Explicit+got.ContextFileCounts.Tabs+got.ContextFileCounts.Auto {
		t.Fatalf("context file arithmetic broken: %+v", got.ContextFileCounts)
	}
	if got.ContextFileCount() != 14 {
		t.Fatalf("expected total 14, got %d", got.ContextFileCount())
	}
}
