package correlate

import (
	"context"
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// TestScenario_S1_CorrelationBasic is spec.md §8 scenario S1 verbatim:
// prompt P(id=10, text="refactor util.js to use arrow functions",
// workspace="/r") at 2025-01-01T10:00:00Z, entry E(id=1,
// file_path="/r/util.js") 15s later. The link must land at high
// confidence: temporal (~0.78 at 15s under the 60s decay) plus the
// workspace-match and file-basename-mention bonuses push the score past
// the 0.75 high threshold.
func TestScenario_S1_CorrelationBasic(t *testing.T) {
	defer resetThresholds()
	promptTime := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	entryTime := promptTime.Add(15 * time.Second)

	prompt := model.Prompt{
		ID:        10,
		Text:      "refactor util.js to use arrow functions",
		Workspace: model.Workspace{Path: "/r"},
		Timestamp: promptTime,
		Status:    model.PromptCaptured,
	}
	entry := model.Entry{
		ID:            1,
		FilePath:      "/r/util.js",
		WorkspacePath: "/r",
		BeforeCode:    "function f(){}",
		AfterCode:     "const f = () => {};",
		Timestamp:     entryTime,
	}

	score := Score(entry, prompt)
	if Classify(score) != model.ConfidenceHigh {
		t.Fatalf("expected high confidence for S1's fixture, got score %.3f (%s)", score, Classify(score))
	}

	store := newFakeStore()
	store.candidates = []model.Prompt{prompt}
	e := New(store, DefaultWindow)

	result, err := e.LinkEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("LinkEntry: %v", err)
	}
	if result.Confidence != model.ConfidenceHigh {
		t.Fatalf("expected high confidence, got %s", result.Confidence)
	}
	if result.PromptID == nil || *result.PromptID != 10 {
		t.Fatalf("expected entry linked to prompt 10, got %+v", result)
	}
	if store.linkedEntry != 1 || store.linkedPrompt != 10 || store.linkedConf != model.ConfidenceHigh {
		t.Fatalf("expected the store to persist entries[1].prompt_id=10 at high confidence, got %+v", store)
	}
}

// TestScenario_S2_OutOfWindow is spec.md §8 scenario S2: the same prompt P
// at 10:00:00, but the entry arrives 10 minutes later — outside the
// default 5-minute backward window — so no link is persisted at all.
func TestScenario_S2_OutOfWindow(t *testing.T) {
	defer resetThresholds()
	promptTime := time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC)
	entryTime := promptTime.Add(10 * time.Minute)

	if InWindow(entryTime, promptTime, DefaultWindow) {
		t.Fatalf("fixture error: 10 minutes must fall outside the default %s backward window", DefaultWindow.Back)
	}

	// The Persistence Store's CandidatePrompts query filters by window
	// before the Engine ever sees a candidate, so an out-of-window prompt
	// never reaches scoring: fakeStore.candidates is left empty to model
	// that query boundary directly.
	store := newFakeStore()
	e := New(store, DefaultWindow)

	entry := model.Entry{ID: 1, FilePath: "/r/util.js", WorkspacePath: "/r", Timestamp: entryTime}
	result, err := e.LinkEntry(context.Background(), entry)
	if err != nil {
		t.Fatalf("LinkEntry: %v", err)
	}
	if result.PromptID != nil {
		t.Fatalf("expected no link for an out-of-window prompt, got %+v", result)
	}
	if result.Confidence != model.ConfidenceNone {
		t.Fatalf("expected none confidence, got %s", result.Confidence)
	}
}
