package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SaveTerminalCommand upserts one observed shell invocation keyed on id,
// so saving a command again with an already-assigned id overwrites in
// place.
func (s *Store) SaveTerminalCommand(ctx context.Context, c model.TerminalCommand) error {
	if c.ID == "" {
		c.ID = model.NewOpaqueID("term")
	}
	return s.enqueue(ctx, "save_terminal_command", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO terminal_commands (
				id, command, shell, source, timestamp, workspace_path, output,
				exit_code, duration_ms, error, entry_id, prompt_id, session_id,
				redaction_applied
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				command = excluded.command,
				shell = excluded.shell,
				source = excluded.source,
				timestamp = excluded.timestamp,
				workspace_path = excluded.workspace_path,
				output = excluded.output,
				exit_code = excluded.exit_code,
				duration_ms = excluded.duration_ms,
				error = excluded.error,
				entry_id = excluded.entry_id,
				prompt_id = excluded.prompt_id,
				session_id = excluded.session_id,
				redaction_applied = excluded.redaction_applied`,
			c.ID, c.Command, c.Shell, string(c.Source), c.Timestamp.UTC().Format(time.RFC3339Nano),
			c.WorkspacePath, c.Output, nullIntPtrPtr(c.ExitCode), c.Duration.Milliseconds(),
			c.Error, nullInt64(c.EntryID), nullInt64(c.PromptID), c.SessionID,
			boolToInt(c.RedactionApplied),
		)
		return err
	})
}

// RecentTerminalCommands returns the most recent shell invocations, newest
// first.
func (s *Store) RecentTerminalCommands(ctx context.Context, limit, offset int) ([]model.TerminalCommand, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, command, shell, source, timestamp, workspace_path, output,
			exit_code, duration_ms, error, entry_id, prompt_id, session_id,
			redaction_applied
		FROM terminal_commands ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent terminal commands: %w", err)
	}
	defer rows.Close()

	var out []model.TerminalCommand
	for rows.Next() {
		var c model.TerminalCommand
		var source, ts string
		var exitCode, entryID, promptID sql.NullInt64
		var durationMS int64
		var redacted int
		if err := rows.Scan(&c.ID, &c.Command, &c.Shell, &source, &ts, &c.WorkspacePath,
			&c.Output, &exitCode, &durationMS, &c.Error, &entryID, &promptID, &c.SessionID,
			&redacted); err != nil {
			return nil, fmt.Errorf("scan terminal command: %w", err)
		}
		c.Source = model.Source(source)
		c.Timestamp = parseTimestamp(ts)
		c.Duration = time.Duration(durationMS) * time.Millisecond
		c.RedactionApplied = redacted != 0
		if exitCode.Valid {
			code := int(exitCode.Int64)
			c.ExitCode = &code
		}
		if entryID.Valid {
			id := entryID.Int64
			c.EntryID = &id
		}
		if promptID.Valid {
			id := promptID.Int64
			c.PromptID = &id
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func nullIntPtrPtr(v *int) any {
	if v == nil {
		return nil
	}
	return *v
}
