package normalize

import (
	"testing"
	"time"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/model"
)

// TestNormalizePrompt_DedupByComposerID is spec.md §8 scenario S3: the
// same editor-DB prompt record ingested twice (same composer id) collapses
// to a single logical prompt — the second call reports isDup so the
// pipeline skips persisting it — and both observations still carry
// status "captured".
func TestNormalizePrompt_DedupByComposerID(t *testing.T) {
	n := New(0, 0)

	record := adapter.Record{
		Kind:          adapter.KindPrompt,
		Source:        string(model.SourceEditorDB),
		WorkspacePath: "/repo",
		Text:          "refactor util.js to use arrow functions",
		Timestamp:     time.Date(2025, 1, 1, 10, 0, 0, 0, time.UTC),
		ComposerID:    "c1",
	}

	first, firstDup := n.NormalizePrompt(record)
	if firstDup {
		t.Fatalf("first ingestion of a composer id must not be a duplicate")
	}
	if first.Status != model.PromptCaptured {
		t.Fatalf("expected status captured, got %q", first.Status)
	}

	second, secondDup := n.NormalizePrompt(record)
	if !secondDup {
		t.Fatalf("re-ingesting the same composer id must report a duplicate")
	}
	if second.Status != model.PromptCaptured {
		t.Fatalf("expected status captured, got %q", second.Status)
	}
	if second.ComposerID != first.ComposerID {
		t.Fatalf("expected matching composer id, got %q vs %q", second.ComposerID, first.ComposerID)
	}
}

// TestNormalizePrompt_DifferentComposerIDsAreNotDuplicates guards against
// an over-eager fingerprint: two distinct composer ids must never collide.
func TestNormalizePrompt_DifferentComposerIDsAreNotDuplicates(t *testing.T) {
	n := New(0, 0)

	r1 := adapter.Record{Kind: adapter.KindPrompt, Text: "a", ComposerID: "c1", Timestamp: time.Now()}
	r2 := adapter.Record{Kind: adapter.KindPrompt, Text: "b", ComposerID: "c2", Timestamp: time.Now()}

	if _, dup := n.NormalizePrompt(r1); dup {
		t.Fatalf("first composer id must not be a duplicate")
	}
	if _, dup := n.NormalizePrompt(r2); dup {
		t.Fatalf("a different composer id must not be flagged as a duplicate")
	}
}

// TestNormalizer_IDsAreMonotonicAndNeverReused exercises the
// NumericIDGen-backed id assignment underlying invariant 4: every Entry
// and every Prompt normalized by one Normalizer gets a strictly
// increasing, never-repeated id, seeded past whatever the store already
// holds.
func TestNormalizer_IDsAreMonotonicAndNeverReused(t *testing.T) {
	const seedMaxEntry, seedMaxPrompt = 100, 200
	n := New(seedMaxEntry, seedMaxPrompt)

	seenEntry := map[int64]bool{}
	var lastEntryID int64
	for i := 0; i < 10; i++ {
		e, _ := n.NormalizeEntry(adapter.Record{
			Kind:      adapter.KindEntry,
			FilePath:  "/repo/a.go",
			Timestamp: time.Now().Add(time.Duration(i) * time.Millisecond),
		})
		if e.ID <= seedMaxEntry {
			t.Fatalf("entry id %d did not advance past seed max %d", e.ID, seedMaxEntry)
		}
		if e.ID <= lastEntryID {
			t.Fatalf("entry id %d did not increase past previous %d", e.ID, lastEntryID)
		}
		if seenEntry[e.ID] {
			t.Fatalf("entry id %d reused", e.ID)
		}
		seenEntry[e.ID] = true
		lastEntryID = e.ID
	}

	seenPrompt := map[int64]bool{}
	var lastPromptID int64
	for i := 0; i < 10; i++ {
		p, _ := n.NormalizePrompt(adapter.Record{
			Kind:       adapter.KindPrompt,
			Text:       "msg",
			ComposerID: "", // forces the timestamp+text fingerprint path
			Timestamp:  time.Now().Add(time.Duration(i) * time.Minute),
		})
		if p.ID <= seedMaxPrompt {
			t.Fatalf("prompt id %d did not advance past seed max %d", p.ID, seedMaxPrompt)
		}
		if p.ID <= lastPromptID {
			t.Fatalf("prompt id %d did not increase past previous %d", p.ID, lastPromptID)
		}
		if seenPrompt[p.ID] {
			t.Fatalf("prompt id %d reused", p.ID)
		}
		seenPrompt[p.ID] = true
		lastPromptID = p.ID
	}
}
