package compact

import (
	"context"
	"log/slog"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// Store is the slice of the Persistence Store a compaction pass needs.
type Store interface {
	ConversationsEligibleForCompaction(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error)
	PromptsByConversation(ctx context.Context, conversationID string) ([]model.Prompt, error)
	SetConversationSummary(ctx context.Context, id, summary string) error
}

// batchSize bounds how many conversations one Run pass summarizes, so a
// single cleanup tick can't block on an unbounded backlog of API calls.
const batchSize = 20

// Runner summarizes archived conversations before they age out of
// retention, trading the raw prompt transcript for a short summary
// instead of losing the conversation's content outright.
type Runner struct {
	store  Store
	client *Client
	log    *slog.Logger
}

// NewRunner builds a Runner. client is nil-safe: a Runner with a nil
// client is a no-op, letting callers wire compaction unconditionally and
// gate the API key requirement separately.
func NewRunner(store Store, client *Client, log *slog.Logger) *Runner {
	if log == nil {
		log = slog.Default()
	}
	return &Runner{store: store, client: client, log: log}
}

// Run summarizes archived conversations whose last message is older than
// retention and stamps the result onto each conversation's metadata.
// Failures on individual conversations are logged and skipped rather than
// aborting the batch.
func (r *Runner) Run(ctx context.Context, retention time.Duration) (int, error) {
	if r.client == nil {
		return 0, nil
	}
	cutoff := time.Now().Add(-retention)
	convs, err := r.store.ConversationsEligibleForCompaction(ctx, cutoff, batchSize)
	if err != nil {
		return 0, err
	}

	summarized := 0
	for _, conv := range convs {
		prompts, err := r.store.PromptsByConversation(ctx, conv.ID)
		if err != nil {
			r.log.Warn("compaction: load prompts failed", "conversation", conv.ID, "error", err)
			continue
		}
		if len(prompts) == 0 {
			continue
		}
		summary, err := r.client.SummarizeConversation(ctx, conv, prompts)
		if err != nil {
			r.log.Warn("compaction: summarize failed", "conversation", conv.ID, "error", err)
			continue
		}
		if err := r.store.SetConversationSummary(ctx, conv.ID, summary); err != nil {
			r.log.Warn("compaction: persist summary failed", "conversation", conv.ID, "error", err)
			continue
		}
		summarized++
	}
	return summarized, nil
}
