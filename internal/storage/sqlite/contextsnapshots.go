package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SaveContextSnapshot inserts a per-prompt snapshot of the context window.
// The (prompt_id, timestamp) primary key makes repeated snapshots at the
// same instant idempotent rather than erroring.
func (s *Store) SaveContextSnapshot(ctx context.Context, snap model.ContextSnapshot) error {
	return s.enqueue(ctx, "save_context_snapshot", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT OR REPLACE INTO context_snapshots (
				prompt_id, timestamp, file_count, token_estimate, truncated,
				utilization_ratio, context_files, at_mentions
			) VALUES (?,?,?,?,?,?,?,?)`,
			snap.PromptID, snap.Timestamp.UTC().Format(time.RFC3339Nano), snap.FileCount,
			snap.TokenEstimate, boolToInt(snap.Truncated), snap.UtilizationRatio,
			encodeStrings(snap.ContextFiles), encodeStrings(snap.AtMentions),
		)
		return err
	})
}

// LatestContextSnapshot returns the most recent snapshot for a prompt.
func (s *Store) LatestContextSnapshot(ctx context.Context, promptID int64) (model.ContextSnapshot, bool, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT prompt_id, timestamp, file_count, token_estimate, truncated,
			utilization_ratio, context_files, at_mentions
		FROM context_snapshots WHERE prompt_id = ? ORDER BY timestamp DESC LIMIT 1`, promptID)

	var snap model.ContextSnapshot
	var ts, contextFiles, atMentions string
	var truncated int
	err := row.Scan(&snap.PromptID, &ts, &snap.FileCount, &snap.TokenEstimate, &truncated,
		&snap.UtilizationRatio, &contextFiles, &atMentions)
	if err == sql.ErrNoRows {
		return model.ContextSnapshot{}, false, nil
	}
	if err != nil {
		return model.ContextSnapshot{}, false, fmt.Errorf("latest context snapshot: %w", err)
	}
	snap.Timestamp = parseTimestamp(ts)
	snap.Truncated = truncated != 0
	snap.ContextFiles = decodeStrings(contextFiles)
	snap.AtMentions = decodeStrings(atMentions)
	return snap, true, nil
}

// SaveContextChange persists a derived context delta.
func (s *Store) SaveContextChange(ctx context.Context, c model.ContextChange) error {
	if c.ID == "" {
		c.ID = model.NewOpaqueID("ctxchg")
	}
	return s.enqueue(ctx, "save_context_change", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO context_changes (
				id, prompt_id, event_id, task_id, session_id, timestamp,
				previous_file_count, current_file_count, added, removed,
				unchanged, net_change, metadata
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?)`,
			c.ID, nullInt64(c.PromptID), c.EventID, c.TaskID, c.SessionID,
			c.Timestamp.UTC().Format(time.RFC3339Nano), c.PreviousFileCount, c.CurrentFileCount,
			encodeStrings(c.Added), encodeStrings(c.Removed), encodeStrings(c.Unchanged),
			c.NetChange, encodeJSON(c.Metadata),
		)
		return err
	})
}
