package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"

	"github.com/untoldecay/icpc/internal/model"
)

// UpsertTodo inserts or updates a todo, enforcing the state-machine
// monotonicity invariant: started_at and completed_at are set once and
// never regress to an earlier value or back to NULL once set, even if a
// later observation reports a stale status.
func (s *Store) UpsertTodo(ctx context.Context, t model.Todo) error {
	return s.enqueue(ctx, "upsert_todo", func(tx *sql.Tx) error {
		var existingStarted, existingCompleted sql.NullString
		err := tx.QueryRow(`SELECT started_at, completed_at FROM todos WHERE id = ?`, t.ID).
			Scan(&existingStarted, &existingCompleted)
		if err != nil && err != sql.ErrNoRows {
			return fmt.Errorf("read existing todo: %w", err)
		}

		startedAt := coalesceTimestamp(existingStarted, t.StartedAt)
		completedAt := coalesceTimestamp(existingCompleted, t.CompletedAt)

		_, err = tx.Exec(`
			INSERT INTO todos (
				id, workspace_path, text, status, task_order, created_at,
				started_at, completed_at, prompt_ids, files_modified
			) VALUES (?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				workspace_path = excluded.workspace_path,
				text = excluded.text,
				status = excluded.status,
				task_order = excluded.task_order,
				started_at = excluded.started_at,
				completed_at = excluded.completed_at,
				prompt_ids = excluded.prompt_ids,
				files_modified = excluded.files_modified`,
			t.ID, t.WorkspacePath, t.Text, string(t.Status), t.Order,
			t.CreatedAt.UTC().Format(time.RFC3339Nano), startedAt, completedAt,
			encodeInt64s(t.PromptIDs), encodeStrings(t.FilesModified),
		)
		if err != nil {
			return fmt.Errorf("upsert todo: %w", err)
		}

		_, err = tx.Exec(`INSERT INTO todo_events (id, todo_id, status, timestamp) VALUES (?,?,?,?)`,
			model.NewOpaqueID("todoevt"), t.ID, string(t.Status), time.Now().UTC().Format(time.RFC3339Nano))
		return err
	})
}

// coalesceTimestamp keeps an already-set timestamp once written, per the
// todo lifecycle's set-once fields. incoming is only used when no existing
// value is present yet.
func coalesceTimestamp(existing sql.NullString, incoming *time.Time) any {
	if existing.Valid {
		return existing.String
	}
	if incoming == nil || incoming.IsZero() {
		return nil
	}
	return incoming.UTC().Format(time.RFC3339Nano)
}

// RecentTodos returns todos for workspace ordered by their declared order.
func (s *Store) RecentTodos(ctx context.Context, workspace string, limit, offset int) ([]model.Todo, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, workspace_path, text, status, task_order, created_at,
			started_at, completed_at, prompt_ids, files_modified
		FROM todos WHERE workspace_path = ? ORDER BY task_order ASC LIMIT ? OFFSET ?`,
		workspace, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query todos: %w", err)
	}
	defer rows.Close()

	var out []model.Todo
	for rows.Next() {
		var t model.Todo
		var status, createdAt, promptIDs, filesModified string
		var startedAt, completedAt sql.NullString
		if err := rows.Scan(&t.ID, &t.WorkspacePath, &t.Text, &status, &t.Order, &createdAt,
			&startedAt, &completedAt, &promptIDs, &filesModified); err != nil {
			return nil, fmt.Errorf("scan todo: %w", err)
		}
		t.Status = model.TodoStatus(status)
		t.CreatedAt = parseTimestamp(createdAt)
		t.PromptIDs = decodeInt64s(promptIDs)
		t.FilesModified = decodeStrings(filesModified)
		if startedAt.Valid {
			ts := parseTimestamp(startedAt.String)
			t.StartedAt = &ts
		}
		if completedAt.Valid {
			ts := parseTimestamp(completedAt.String)
			t.CompletedAt = &ts
		}
		out = append(out, t)
	}
	return out, rows.Err()
}

func encodeInt64s(ids []int64) string {
	out := "[]"
	for _, id := range ids {
		var err error
		out, err = sjson.Set(out, "-1", id)
		if err != nil {
			return "[]"
		}
	}
	return out
}

func decodeInt64s(raw string) []int64 {
	result := gjson.Parse(raw)
	if !result.IsArray() {
		return nil
	}
	var out []int64
	for _, item := range result.Array() {
		out = append(out, item.Int())
	}
	return out
}
