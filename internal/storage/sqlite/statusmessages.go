package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SaveStatusMessage upserts one editor UI status string and its classified
// action, keyed on id, so saving a message again with an
// already-assigned id overwrites in place.
func (s *Store) SaveStatusMessage(ctx context.Context, m model.StatusMessage) error {
	if m.ID == "" {
		m.ID = model.NewOpaqueID("status")
	}
	return s.enqueue(ctx, "save_status_message", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO status_messages (id, workspace_path, timestamp, raw, action, detail)
			VALUES (?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				workspace_path = excluded.workspace_path,
				timestamp = excluded.timestamp,
				raw = excluded.raw,
				action = excluded.action,
				detail = excluded.detail`,
			m.ID, m.WorkspacePath, m.Timestamp.UTC().Format(time.RFC3339Nano), m.Raw,
			string(m.Action), m.Detail)
		return err
	})
}

// RecentStatusMessages returns the most recent status messages, newest
// first.
func (s *Store) RecentStatusMessages(ctx context.Context, limit, offset int) ([]model.StatusMessage, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, workspace_path, timestamp, raw, action, detail
		FROM status_messages ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent status messages: %w", err)
	}
	defer rows.Close()

	var out []model.StatusMessage
	for rows.Next() {
		var m model.StatusMessage
		var ts, action string
		if err := rows.Scan(&m.ID, &m.WorkspacePath, &ts, &m.Raw, &action, &m.Detail); err != nil {
			return nil, fmt.Errorf("scan status message: %w", err)
		}
		m.Timestamp = parseTimestamp(ts)
		m.Action = model.StatusAction(action)
		out = append(out, m)
	}
	return out, rows.Err()
}
