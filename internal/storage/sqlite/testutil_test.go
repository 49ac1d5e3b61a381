package sqlite

import (
	"path/filepath"
	"testing"
)

// newTestStore opens a throwaway Store backed by a t.TempDir file. enqueue
// blocks until the writer goroutine commits, so callers need no extra
// synchronization after a Save call returns.
func newTestStore(t *testing.T) *Store {
	t.Helper()
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, "icpc-test.db"), Options{})
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { _ = store.Close() })
	return store
}
