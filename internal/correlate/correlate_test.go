package correlate

import (
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

func resetThresholds() {
	thresholdHigh = 0.75
	thresholdMedium = 0.45
	thresholdLow = 0.2
}

func TestScore_TemporalDecay(t *testing.T) {
	base := time.Now()
	e := model.Entry{Timestamp: base}
	near := model.Prompt{Timestamp: base.Add(-1 * time.Second)}
	far := model.Prompt{Timestamp: base.Add(-4 * time.Minute)}

	if Score(e, near) <= Score(e, far) {
		t.Fatalf("expected a prompt closer in time to score higher: near=%f far=%f", Score(e, near), Score(e, far))
	}
}

func TestScore_WorkspaceAndFileMentionBonuses(t *testing.T) {
	base := time.Now()
	e := model.Entry{Timestamp: base, WorkspacePath: "/ws", FilePath: "internal/foo/bar.go"}
	p := model.Prompt{
		Timestamp:    base,
		Workspace:    model.Workspace{Path: "/ws"},
		Text:         "please fix internal/foo/bar.go",
		ContextFiles: []string{"internal/foo/bar.go"},
	}
	bare := model.Prompt{Timestamp: base}

	if Score(e, p) <= Score(e, bare) {
		t.Fatalf("expected workspace/file-mention/context-file bonuses to raise the score")
	}
}

func TestClassify_Cutoffs(t *testing.T) {
	defer resetThresholds()
	SetThresholds(0.75, 0.45, 0.2)

	cases := []struct {
		score float64
		want  model.Confidence
	}{
		{0.9, model.ConfidenceHigh},
		{0.75, model.ConfidenceHigh},
		{0.5, model.ConfidenceMedium},
		{0.45, model.ConfidenceMedium},
		{0.3, model.ConfidenceLow},
		{0.2, model.ConfidenceLow},
		{0.05, model.ConfidenceNone},
	}
	for _, c := range cases {
		if got := Classify(c.score); got != c.want {
			t.Errorf("Classify(%v) = %v, want %v", c.score, got, c.want)
		}
	}
}

func TestSetThresholds_IgnoresZero(t *testing.T) {
	defer resetThresholds()
	SetThresholds(0.9, 0, 0.3)
	if thresholdHigh != 0.9 {
		t.Errorf("thresholdHigh = %v, want 0.9", thresholdHigh)
	}
	if thresholdMedium != 0.45 {
		t.Errorf("thresholdMedium should be untouched by a zero override, got %v", thresholdMedium)
	}
	if thresholdLow != 0.3 {
		t.Errorf("thresholdLow = %v, want 0.3", thresholdLow)
	}
}

func TestLink_NoCandidates(t *testing.T) {
	result := Link(model.Entry{}, nil)
	if result.Confidence != model.ConfidenceNone || result.PromptID != nil {
		t.Errorf("Link with no candidates = %+v, want none/nil", result)
	}
}

func TestLink_PicksHighestScoring(t *testing.T) {
	defer resetThresholds()
	base := time.Now()
	e := model.Entry{Timestamp: base, WorkspacePath: "/ws", FilePath: "a.go"}
	low := model.Prompt{ID: 1, Timestamp: base.Add(-4 * time.Minute)}
	high := model.Prompt{ID: 2, Timestamp: base, Workspace: model.Workspace{Path: "/ws"}, Text: "fix a.go"}

	result := Link(e, []model.Prompt{low, high})
	if result.PromptID == nil || *result.PromptID != high.ID {
		t.Fatalf("Link() = %+v, want prompt id %d", result, high.ID)
	}
	if result.Confidence != model.ConfidenceHigh && result.Confidence != model.ConfidenceMedium {
		t.Errorf("expected a linked result to be high/medium confidence, got %v", result.Confidence)
	}
}

func TestLink_ExactTieSkipsLinking(t *testing.T) {
	base := time.Now()
	e := model.Entry{Timestamp: base}
	a := model.Prompt{ID: 1, Timestamp: base}
	b := model.Prompt{ID: 2, Timestamp: base}

	result := Link(e, []model.Prompt{a, b})
	if result.PromptID != nil {
		t.Errorf("expected an exact score+time tie to skip linking, got %+v", result)
	}
}

func TestContextChange_DerivesAddedRemovedUnchanged(t *testing.T) {
	prev := model.ContextSnapshot{ContextFiles: []string{"a.go", "b.go"}, FileCount: 2}
	cur := model.ContextSnapshot{ContextFiles: []string{"b.go", "c.go"}, FileCount: 2, PromptID: 1}

	change := ContextChange(prev, cur)
	if len(change.Added) != 1 || change.Added[0] != "c.go" {
		t.Errorf("Added = %v, want [c.go]", change.Added)
	}
	if len(change.Removed) != 1 || change.Removed[0] != "a.go" {
		t.Errorf("Removed = %v, want [a.go]", change.Removed)
	}
	if len(change.Unchanged) != 1 || change.Unchanged[0] != "b.go" {
		t.Errorf("Unchanged = %v, want [b.go]", change.Unchanged)
	}
	if change.NetChange != 0 {
		t.Errorf("NetChange = %d, want 0", change.NetChange)
	}
}
