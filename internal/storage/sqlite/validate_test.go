package sqlite

import (
	"context"
	"testing"
	"time"
)

// TestValidate_S6_OrphanEntry is spec.md §8 scenario S6: an entry whose
// prompt_id points at no existing prompt is reported by Validate, and
// nothing else is flagged. The row is inserted directly against the write
// connection with foreign key enforcement relaxed, the way a real orphan
// would arise from a prompt later deleted out from under a link.
func TestValidate_S6_OrphanEntry(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.writeDB.ExecContext(ctx, "PRAGMA foreign_keys = OFF"); err != nil {
		t.Fatalf("disable foreign keys: %v", err)
	}
	t.Cleanup(func() { _, _ = store.writeDB.ExecContext(ctx, "PRAGMA foreign_keys = ON") })

	_, err := store.writeDB.ExecContext(ctx, `
		INSERT INTO entries (id, workspace_path, file_path, source, timestamp, prompt_id)
		VALUES (1, '/repo', '/repo/a.go', 'filewatcher', ?, 999)`,
		time.Now().UTC().Format(time.RFC3339Nano))
	if err != nil {
		t.Fatalf("insert orphan entry: %v", err)
	}

	report, err := store.Validate(ctx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.OrphanEntriesLinkedToMissingPrompt != 1 {
		t.Fatalf("expected 1 orphaned entry->prompt link, got %d", report.OrphanEntriesLinkedToMissingPrompt)
	}
	if report.OrphanPromptsLinkedToMissingEntry != 0 {
		t.Fatalf("expected 0 orphaned prompt->entry links, got %d", report.OrphanPromptsLinkedToMissingEntry)
	}
	if report.NullTimestampEntries != 0 || report.NullTimestampPrompts != 0 || report.NullTimestampEvents != 0 {
		t.Fatalf("expected no null timestamps, got %+v", report)
	}
	if report.Empty() {
		t.Fatalf("expected a non-empty report given the orphaned entry")
	}
}

// TestValidate_NullTimestampEvents covers the maintainer-requested minor
// fix: a null-timestamp event is counted alongside entries and prompts.
func TestValidate_NullTimestampEvents(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	if _, err := store.writeDB.ExecContext(ctx, `
		INSERT INTO events (id, workspace_path, timestamp, type) VALUES ('evt-1', '/repo', '', 'status')`); err != nil {
		t.Fatalf("insert null-timestamp event: %v", err)
	}

	report, err := store.Validate(ctx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if report.NullTimestampEvents != 1 {
		t.Fatalf("expected 1 null-timestamp event, got %d", report.NullTimestampEvents)
	}
}

// TestValidate_CleanStoreIsEmpty covers invariants 1 and 2 (foreign-key
// closure and timestamp presence) on a store where every write went
// through the normal Save* paths: Validate must report no problems.
func TestValidate_CleanStoreIsEmpty(t *testing.T) {
	store := newTestStore(t)
	ctx := context.Background()

	report, err := store.Validate(ctx)
	if err != nil {
		t.Fatalf("validate: %v", err)
	}
	if !report.Empty() {
		t.Fatalf("expected an empty report on a fresh store, got %+v", report)
	}
}
