package query

import (
	"context"
	"fmt"

	"github.com/untoldecay/icpc/internal/model"
)

// RecentPrompts returns the most recently observed prompts.
func (f *Facade) RecentPrompts(ctx context.Context, limit, offset int) ([]model.Prompt, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("recent_prompts:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.Prompt, error) {
		return f.store.RecentPrompts(ctx, limit, offset)
	})
}

// PromptEntryPair is one linked prompt alongside the entry it was
// correlated to — the mirror image of EntryPromptPair.
type PromptEntryPair struct {
	Prompt model.Prompt
	Entry  model.Entry
}

// PromptsWithEntries returns linked prompt/entry pairs.
func (f *Facade) PromptsWithEntries(ctx context.Context, limit, offset int) ([]PromptEntryPair, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("prompts_with_entries:%d:%d", limit, offset)
	return cached(f, key, func() ([]PromptEntryPair, error) {
		prompts, entries, err := f.store.PromptsWithEntries(ctx, limit, offset)
		if err != nil {
			return nil, err
		}
		byID := make(map[int64]model.Entry, len(entries))
		for _, e := range entries {
			byID[e.ID] = e
		}
		pairs := make([]PromptEntryPair, 0, len(prompts))
		for _, p := range prompts {
			if p.LinkedEntryID == nil {
				continue
			}
			if e, ok := byID[*p.LinkedEntryID]; ok {
				pairs = append(pairs, PromptEntryPair{Prompt: p, Entry: e})
			}
		}
		return pairs, nil
	})
}

// Conversation returns a single conversation by id, including any
// compaction summary stamped onto its metadata.
func (f *Facade) Conversation(ctx context.Context, id string) (model.Conversation, bool, error) {
	key := fmt.Sprintf("conversation:%s", id)
	type result struct {
		conv  model.Conversation
		found bool
	}
	r, err := cached(f, key, func() (result, error) {
		conv, found, err := f.store.GetConversation(ctx, id)
		return result{conv: conv, found: found}, err
	})
	return r.conv, r.found, err
}

// ConversationsByWorkspace returns conversations for a workspace, most
// recently updated first.
func (f *Facade) ConversationsByWorkspace(ctx context.Context, workspace string, limit, offset int) ([]model.Conversation, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("conversations:%s:%d:%d", workspace, limit, offset)
	return cached(f, key, func() ([]model.Conversation, error) {
		return f.store.ConversationsByWorkspace(ctx, workspace, limit, offset)
	})
}
