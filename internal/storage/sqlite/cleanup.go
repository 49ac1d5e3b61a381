package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// DefaultRetention is the default age after which unreferenced rows become
// eligible for cleanup, per spec.md §4.4's retention policy.
const DefaultRetention = 30 * 24 * time.Hour

// CleanupReport counts rows removed by Cleanup, per table.
type CleanupReport struct {
	Entries          int64
	Prompts          int64
	Events           int64
	TerminalCommands int64
	StatusMessages   int64
}

// Cleanup deletes rows older than retention, except rows still referenced
// by a foreign key from a row that is itself not yet aged out — an entry
// linked to a recent prompt survives even if the entry itself is old,
// since invariant preservation matters more than strict age cutoffs.
func (s *Store) Cleanup(ctx context.Context, retention time.Duration) (CleanupReport, error) {
	if retention <= 0 {
		retention = DefaultRetention
	}
	cutoff := time.Now().Add(-retention).UTC().Format(time.RFC3339Nano)

	var report CleanupReport
	err := s.enqueue(ctx, "cleanup", func(tx *sql.Tx) error {
		var err error
		// Terminal commands first: never referenced by anything else.
		report.TerminalCommands, err = deleteOlderThan(tx,
			`DELETE FROM terminal_commands WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}

		report.StatusMessages, err = deleteOlderThan(tx,
			`DELETE FROM status_messages WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}

		report.Events, err = deleteOlderThan(tx,
			`DELETE FROM events WHERE timestamp < ?`, cutoff)
		if err != nil {
			return err
		}

		// Entries older than cutoff, but never ones a live (non-aged)
		// prompt still links to.
		report.Entries, err = deleteOlderThan(tx, `
			DELETE FROM entries WHERE timestamp < ?
			AND id NOT IN (
				SELECT linked_entry_id FROM prompts
				WHERE linked_entry_id IS NOT NULL AND timestamp >= ?
			)`, cutoff, cutoff)
		if err != nil {
			return err
		}

		// Prompts older than cutoff, but never ones a live entry still
		// links back to.
		report.Prompts, err = deleteOlderThan(tx, `
			DELETE FROM prompts WHERE timestamp < ?
			AND id NOT IN (
				SELECT prompt_id FROM entries
				WHERE prompt_id IS NOT NULL AND timestamp >= ?
			)`, cutoff, cutoff)
		return err
	})
	return report, err
}

func deleteOlderThan(tx *sql.Tx, query string, args ...any) (int64, error) {
	res, err := tx.Exec(query, args...)
	if err != nil {
		return 0, fmt.Errorf("cleanup delete: %w", err)
	}
	return res.RowsAffected()
}
