package adapter

import (
	"context"
	"fmt"
	"time"

	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing/object"

	"github.com/untoldecay/icpc/internal/model"
)

// errChunkBoundary stops go-git's ForEach once a chunk's worth of commits
// has been collected; it is never returned to the caller.
var errChunkBoundary = fmt.Errorf("historicalmining: chunk boundary reached")

// HistoricalMiner performs a one-shot backfill by walking a workspace's git
// history in process, chunked so it yields between batches of commits
// rather than blocking the scheduler for the whole repository's lifetime.
// Grounded on go-git rather than the teacher's os/exec "git log" shelling,
// since spec.md's historical-mining job wants an in-process, cancellable,
// chunked traversal.
type HistoricalMiner struct {
	root      string
	workspace string
	chunkSize int
	done      bool
}

// NewHistoricalMiner constructs a miner for a single workspace root.
func NewHistoricalMiner(root, workspace string) *HistoricalMiner {
	return &HistoricalMiner{root: root, workspace: workspace, chunkSize: 200}
}

func (h *HistoricalMiner) Name() string { return "historicalmining" }

func (h *HistoricalMiner) Start(ctx context.Context, cadence time.Duration) error { return nil }

func (h *HistoricalMiner) Stop() error { return nil }

// Poll ignores the cursor's timestamp semantics in favor of a commit-count
// cursor (since.RowID = commits already emitted) since this is a one-shot
// backfill, not a steady-state stream: the Sync Scheduler keeps calling
// it, and once a completed walk yields zero records every later Poll
// returns nothing without opening the repository.
func (h *HistoricalMiner) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	if h.done {
		return nil, since, nil
	}
	repo, err := git.PlainOpenWithOptions(h.root, &git.PlainOpenOptions{DetectDotGit: true})
	if err != nil {
		// Not a git repository — nothing to mine, not a failure.
		return nil, since, nil
	}

	head, err := repo.Head()
	if err != nil {
		return nil, since, nil
	}

	iter, err := repo.Log(&git.LogOptions{From: head.Hash()})
	if err != nil {
		return nil, since, fmt.Errorf("git log: %w", err)
	}
	defer iter.Close()

	var records []Record
	var skipped, taken int64
	next := since

	err = iter.ForEach(func(c *object.Commit) error {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if skipped < since.RowID {
			skipped++
			return nil
		}
		if taken >= int64(h.chunkSize) {
			return errChunkBoundary
		}
		records = append(records, Record{
			Kind:          KindEvent,
			Source:        string(model.SourceImport),
			WorkspacePath: h.workspace,
			Text:          c.Message,
			Timestamp:     c.Author.When,
		})
		taken++
		skipped++
		return nil
	})
	next.RowID = skipped
	if err == nil && len(records) == 0 {
		h.done = true
	}
	if err != nil && err != errChunkBoundary && err != context.Canceled {
		return records, next, err
	}
	return records, next, nil
}
