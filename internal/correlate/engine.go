package correlate

import (
	"context"
	"strings"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// Store is the slice of the Persistence Store the Correlation Engine
// needs. Kept narrow and interface-segregated in the teacher's storage.go
// style rather than depending on the whole concrete store.
type Store interface {
	CandidatePrompts(ctx context.Context, workspace string, back, forward time.Duration, entryTime time.Time) ([]model.Prompt, error)
	LinkEntryPrompt(ctx context.Context, entryID, promptID int64, confidence model.Confidence) error
	SetEntryConfidence(ctx context.Context, entryID int64, confidence model.Confidence) error
	GetConversation(ctx context.Context, id string) (model.Conversation, bool, error)
	UpsertConversation(ctx context.Context, c model.Conversation) error
	ConversationMessageStats(ctx context.Context, conversationID string) (count int, lastMessageAt time.Time, err error)
}

// HookFunc is the post-write hook signature AfterSavePrompt has; the
// pipeline calls AfterSavePrompt once a prompt save returns. Per REDESIGN FLAGS this is an
// explicit call, not an orphan promise fired from inside the writer —
// generalized from the teacher's internal/hooks post-event-runner idiom.
type HookFunc func(ctx context.Context, p model.Prompt) error

// Engine ties scoring, linking, and conversation roll-up together.
type Engine struct {
	store  Store
	window Window
}

// New constructs an Engine bound to a Store, with the given correlation
// window (caller supplies config-driven values, falling back to
// DefaultWindow).
func New(store Store, window Window) *Engine {
	if window.Back == 0 {
		window.Back = DefaultWindow.Back
	}
	if window.Forward == 0 {
		window.Forward = DefaultWindow.Forward
	}
	return &Engine{store: store, window: window}
}

// LinkEntry performs entry↔prompt linking for a freshly normalized Entry:
// query candidates in window, score, classify, and persist the link only
// at high/medium confidence (spec.md §4.3 step 4). The returned
// LinkResult lets the pipeline fire a prompt_linked hook without
// re-deriving the confidence.
func (e *Engine) LinkEntry(ctx context.Context, entry model.Entry) (LinkResult, error) {
	candidates, err := e.store.CandidatePrompts(ctx, entry.WorkspacePath, e.window.Back, e.window.Forward, entry.Timestamp)
	if err != nil {
		return LinkResult{}, err
	}

	result := Link(entry, candidates)
	if result.PromptID != nil {
		if err := e.store.LinkEntryPrompt(ctx, entry.ID, *result.PromptID, result.Confidence); err != nil {
			return LinkResult{}, err
		}
		return result, nil
	}
	// Low/none: record confidence on the entry's derived row but leave
	// the link null — correlation's null result is never an error.
	if err := e.store.SetEntryConfidence(ctx, entry.ID, result.Confidence); err != nil {
		return LinkResult{}, err
	}
	return result, nil
}

// AfterSavePrompt is the explicit post-write hook the pipeline invokes
// once a prompt save returns. It performs conversation assignment and the
// roll-up bookkeeping (title/message_count/last_message_at) that the
// source system piggy-backed inside its save-prompt callback.
func (e *Engine) AfterSavePrompt(ctx context.Context, p model.Prompt) error {
	convID := p.ConversationID
	if convID == "" {
		convID = p.ComposerID
	}
	if convID == "" {
		convID = p.ParentConversationID
	}
	if convID == "" {
		convID = model.NewOpaqueID("conv")
	}

	conv, existed, err := e.store.GetConversation(ctx, convID)
	if err != nil {
		return err
	}
	if !existed {
		conv = model.Conversation{
			ID:            convID,
			WorkspaceID:   p.Workspace.ID,
			WorkspacePath: p.Workspace.Path,
			Title:         truncate(p.Text, 80),
			Status:        model.ConversationActive,
			CreatedAt:     p.Timestamp,
		}
	}

	count, lastMessageAt, err := e.store.ConversationMessageStats(ctx, convID)
	if err != nil {
		return err
	}
	conv.MessageCount = count
	if p.Timestamp.After(conv.LastMessageAt) {
		conv.LastMessageAt = p.Timestamp
	}
	if !lastMessageAt.IsZero() && lastMessageAt.After(conv.LastMessageAt) {
		conv.LastMessageAt = lastMessageAt
	}
	conv.UpdatedAt = p.Timestamp

	return e.store.UpsertConversation(ctx, conv)
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// ContextChange derives the delta between two consecutive context
// snapshots, per spec.md §4.3's context-change derivation rule.
func ContextChange(prev, cur model.ContextSnapshot) model.ContextChange {
	prevSet := toSet(prev.ContextFiles)
	curSet := toSet(cur.ContextFiles)

	var added, removed, unchanged []string
	for f := range curSet {
		if prevSet[f] {
			unchanged = append(unchanged, f)
		} else {
			added = append(added, f)
		}
	}
	for f := range prevSet {
		if !curSet[f] {
			removed = append(removed, f)
		}
	}

	return model.ContextChange{
		ID:                model.NewOpaqueID("ctxchg"),
		PromptID:          &cur.PromptID,
		Timestamp:         cur.Timestamp,
		PreviousFileCount: prev.FileCount,
		CurrentFileCount:  cur.FileCount,
		Added:             added,
		Removed:           removed,
		Unchanged:         unchanged,
		NetChange:         cur.FileCount - prev.FileCount,
	}
}

func toSet(files []string) map[string]bool {
	set := make(map[string]bool, len(files))
	for _, f := range files {
		set[f] = true
	}
	return set
}
