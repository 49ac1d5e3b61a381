package sqlite

import (
	"crypto/rand"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"
)

// JournalEntry is one append-only record of a committed (or failed) write
// intent, kept for crash forensics. It mirrors every write but is purely
// additive: it is never read back into the store, only inspected by a
// human or tool after the fact.
type JournalEntry struct {
	ID        string    `json:"id"`
	Label     string    `json:"label"`
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error,omitempty"`
}

// Journal appends one JSON line per write intent to a file, grounded on
// the teacher's internal/audit append-only interactions log.
type Journal struct {
	path string
	mu   sync.Mutex
}

// NewJournal constructs a journal writing to path, creating parent
// directories as needed.
func NewJournal(path string) (*Journal, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create journal dir: %w", err)
	}
	return &Journal{path: path}, nil
}

// Append writes one JournalEntry. Errors are swallowed (logged by the
// caller at most) since the journal is a diagnostic aid, not the source
// of truth — a failure to journal must never fail the write it describes.
func (j *Journal) Append(label string, writeErr error) {
	if j == nil {
		return
	}
	entry := JournalEntry{ID: newJournalID(), Label: label, Timestamp: time.Now()}
	if writeErr != nil {
		entry.Error = writeErr.Error()
	}
	line, err := json.Marshal(entry)
	if err != nil {
		return
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	f, err := os.OpenFile(j.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return
	}
	defer f.Close()
	_, _ = f.Write(append(line, '\n'))
}

func newJournalID() string {
	var b [4]byte
	if _, err := rand.Read(b[:]); err != nil {
		return "jrn-00000000"
	}
	return "jrn-" + hex.EncodeToString(b[:])
}
