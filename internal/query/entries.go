package query

import (
	"context"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// RecentEntries returns the most recently observed entries.
func (f *Facade) RecentEntries(ctx context.Context, limit, offset int) ([]model.Entry, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("recent_entries:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.Entry, error) {
		return f.store.RecentEntries(ctx, limit, offset)
	})
}

// EntriesInTimeRange returns entries observed within [from, to].
func (f *Facade) EntriesInTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Entry, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("entries_range:%d:%d:%d:%d", from.UnixNano(), to.UnixNano(), limit, offset)
	return cached(f, key, func() ([]model.Entry, error) {
		return f.store.EntriesInTimeRange(ctx, from, to, limit, offset)
	})
}

// EntriesWithCode returns entries that carry a before/after code diff.
func (f *Facade) EntriesWithCode(ctx context.Context, limit, offset int) ([]model.Entry, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("entries_with_code:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.Entry, error) {
		return f.store.EntriesWithCode(ctx, limit, offset)
	})
}

// EntryPromptPair is one linked entry alongside the prompt it was
// correlated to.
type EntryPromptPair struct {
	Entry  model.Entry
	Prompt model.Prompt
}

// EntriesWithPrompts returns linked entry/prompt pairs.
func (f *Facade) EntriesWithPrompts(ctx context.Context, limit, offset int) ([]EntryPromptPair, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("entries_with_prompts:%d:%d", limit, offset)
	return cached(f, key, func() ([]EntryPromptPair, error) {
		entries, prompts, err := f.store.EntriesWithPrompts(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]model.Prompt, len(prompts))
		for _, p := range prompts {
			byID[p.ID] = p
		}
		pairs := make([]EntryPromptPair, 0, len(entries))
		for _, e := range entries {
			if e.PromptID == nil {
				continue
			}
			if p, ok := byID[*e.PromptID]; ok {
				pairs = append(pairs, EntryPromptPair{Entry: e, Prompt: p})
			}
		}
		return pairs, nil
	})
}

// clampPage applies sane defaults/bounds to pagination parameters so a
// cold or misconfigured caller never issues an unbounded scan.
func clampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > 500 {
		limit = 50
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}
