package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SaveEvent upserts a free-form system event keyed on id, so saving an
// event again with an already-assigned id overwrites in place.
func (s *Store) SaveEvent(ctx context.Context, e model.Event) error {
	if e.ID == "" {
		e.ID = model.NewOpaqueID("evt")
	}
	return s.enqueue(ctx, "save_event", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO events (id, session_id, workspace_path, timestamp, type, details)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				session_id = excluded.session_id,
				workspace_path = excluded.workspace_path,
				timestamp = excluded.timestamp,
				type = excluded.type,
				details = excluded.details`,
			e.ID, e.SessionID, e.WorkspacePath, e.Timestamp.UTC().Format(time.RFC3339Nano),
			e.Type, encodeJSON(e.Details))
		return err
	})
}

// RecentEvents returns the most recent events, newest first.
func (s *Store) RecentEvents(ctx context.Context, limit, offset int) ([]model.Event, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, session_id, workspace_path, timestamp, type, details
		FROM events ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent events: %w", err)
	}
	defer rows.Close()

	var out []model.Event
	for rows.Next() {
		var e model.Event
		var ts, details string
		if err := rows.Scan(&e.ID, &e.SessionID, &e.WorkspacePath, &ts, &e.Type, &details); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		e.Timestamp = parseTimestamp(ts)
		e.Details = decodeJSON(details)
		out = append(out, e)
	}
	return out, rows.Err()
}
