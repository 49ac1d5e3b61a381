package sqlite

import (
	"context"
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/icpc/internal/model"
)

// TestMigrations_S5_SchemaDrift is spec.md §8 scenario S5: a prompts table
// predating conversation_id/thinking_time/parent_conversation_id gets them
// added with their declared defaults, existing rows untouched, and a
// subsequent save of the new columns persists and reloads correctly.
func TestMigrations_S5_SchemaDrift(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "drift.db")

	raw, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		t.Fatalf("open raw db: %v", err)
	}
	// schema's CREATE TABLE IF NOT EXISTS for prompts intentionally omits
	// conversation_id, thinking_time and parent_conversation_id — this raw
	// apply reproduces a store from before migratePromptConversationColumns
	// existed.
	if _, err := raw.Exec(schema); err != nil {
		t.Fatalf("apply base schema: %v", err)
	}

	const existingID = 77
	if _, err := raw.Exec(`
		INSERT INTO prompts (id, timestamp, text, status, source, workspace_path)
		VALUES (?, ?, 'pre-migration prompt', 'captured', 'import', '/repo')`,
		existingID, time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC).Format(time.RFC3339Nano)); err != nil {
		t.Fatalf("insert pre-migration row: %v", err)
	}

	before, err := tableColumns(raw, "prompts")
	if err != nil {
		t.Fatalf("table columns before migration: %v", err)
	}
	for _, col := range []string{"conversation_id", "thinking_time", "parent_conversation_id"} {
		if before[col] {
			t.Fatalf("expected column %q absent before migration", col)
		}
	}

	if err := RunMigrations(raw); err != nil {
		t.Fatalf("run migrations: %v", err)
	}
	// Invariant 6: running migrations again must be a no-op, not an error.
	if err := RunMigrations(raw); err != nil {
		t.Fatalf("run migrations a second time: %v", err)
	}

	after, err := tableColumns(raw, "prompts")
	if err != nil {
		t.Fatalf("table columns after migration: %v", err)
	}
	for _, col := range []string{"conversation_id", "thinking_time", "parent_conversation_id"} {
		if !after[col] {
			t.Fatalf("expected column %q present after migration", col)
		}
	}

	var text string
	var thinkingTime int64
	var conversationID sql.NullString
	if err := raw.QueryRow(`SELECT text, thinking_time, conversation_id FROM prompts WHERE id = ?`, existingID).
		Scan(&text, &thinkingTime, &conversationID); err != nil {
		t.Fatalf("read pre-migration row: %v", err)
	}
	if text != "pre-migration prompt" {
		t.Fatalf("migration disturbed an existing row's data: %q", text)
	}
	if thinkingTime != 0 {
		t.Fatalf("expected declared default 0 for thinking_time, got %d", thinkingTime)
	}
	if conversationID.Valid {
		t.Fatalf("expected declared default null for conversation_id, got %q", conversationID.String)
	}
	if err := raw.Close(); err != nil {
		t.Fatalf("close raw db: %v", err)
	}

	// A subsequent save of the newly-added columns persists and reloads.
	store, err := Open(path, Options{})
	if err != nil {
		t.Fatalf("open store over migrated file: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })

	ctx := context.Background()
	p := model.Prompt{
		ID:             existingID,
		Timestamp:      time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC),
		Text:           "post-migration prompt",
		Status:         model.PromptCaptured,
		Workspace:      model.Workspace{Path: "/repo"},
		ThinkingTimeMS: 4200,
		ConversationID: "c9",
	}
	if err := store.SavePrompt(ctx, p); err != nil {
		t.Fatalf("save prompt after migration: %v", err)
	}
	got, ok, err := store.GetPrompt(ctx, existingID)
	if err != nil || !ok {
		t.Fatalf("get prompt after migration: ok=%v err=%v", ok, err)
	}
	if got.ThinkingTimeMS != 4200 || got.ConversationID != "c9" {
		t.Fatalf("expected thinkingTime=4200 conversationId=c9, got %+v", got)
	}
}
