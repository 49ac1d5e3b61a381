// Package sqlite implements the persistence store over a single SQLite
// file using the pure-Go ncruces/go-sqlite3 driver (wazero-based, no cgo),
// matching the teacher's own choice of driver and its "sqlite3" registered
// name.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"sync"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"
)

// Store is the persistence boundary: one write connection drained by a
// single writer goroutine, and a read connection pool serving concurrent
// readers without blocking behind the writer. Every exported method either
// enqueues a write intent or issues a direct read against readDB.
type Store struct {
	path string

	writeDB *sql.DB
	readDB  *sql.DB

	writeCh chan writeIntent
	journal *Journal

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Options configures Open.
type Options struct {
	// JournalPath, if set, enables the append-only write journal. Empty
	// disables it — useful for short-lived test stores.
	JournalPath string
	// QueueSize bounds the pending write-intent channel. Zero uses a
	// sensible default.
	QueueSize int
}

// Open creates (if necessary) and opens the SQLite database at path,
// applies schema and migrations, and starts the single writer task.
func Open(path string, opts Options) (*Store, error) {
	configureWazeroCache()

	writeDB, err := sql.Open("sqlite3", "file:"+path)
	if err != nil {
		return nil, fmt.Errorf("open write connection: %w", err)
	}
	writeDB.SetMaxOpenConns(1) // one writer, matching spec.md §5.

	readDB, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		_ = writeDB.Close()
		return nil, fmt.Errorf("open read connection: %w", err)
	}

	if _, err := writeDB.Exec(schema); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	if err := RunMigrations(writeDB); err != nil {
		_ = writeDB.Close()
		_ = readDB.Close()
		return nil, fmt.Errorf("run migrations: %w", err)
	}

	var journal *Journal
	if opts.JournalPath != "" {
		journal, err = NewJournal(opts.JournalPath)
		if err != nil {
			_ = writeDB.Close()
			_ = readDB.Close()
			return nil, fmt.Errorf("open journal: %w", err)
		}
	}

	queueSize := opts.QueueSize
	if queueSize <= 0 {
		queueSize = 256
	}

	ctx, cancel := context.WithCancel(context.Background())
	s := &Store{
		path:    path,
		writeDB: writeDB,
		readDB:  readDB,
		writeCh: make(chan writeIntent, queueSize),
		journal: journal,
		cancel:  cancel,
	}
	s.wg.Add(1)
	go s.writer(ctx)
	return s, nil
}

// DefaultPath returns the conventional store location under a data
// directory, e.g. "<workspace>/.icpc/icpc.db".
func DefaultPath(dataDir string) string {
	return filepath.Join(dataDir, "icpc.db")
}

// Path returns the database file path this Store was opened with.
func (s *Store) Path() string {
	return s.path
}

// Close stops the writer task and closes both connections. Pending
// enqueue calls unblock with a shutdown error.
func (s *Store) Close() error {
	s.cancel()
	s.wg.Wait()
	writeErr := s.writeDB.Close()
	readErr := s.readDB.Close()
	if writeErr != nil {
		return writeErr
	}
	return readErr
}

// MaxIDs returns the highest entry and prompt row ids currently persisted,
// used to seed the Event Normalizer's id generators on daemon startup so
// restarts never reissue an id already on disk.
func (s *Store) MaxIDs(ctx context.Context) (maxEntryID, maxPromptID int64, err error) {
	if err = s.readDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM entries`).Scan(&maxEntryID); err != nil {
		return 0, 0, fmt.Errorf("max entry id: %w", err)
	}
	if err = s.readDB.QueryRowContext(ctx, `SELECT COALESCE(MAX(id), 0) FROM prompts`).Scan(&maxPromptID); err != nil {
		return 0, 0, fmt.Errorf("max prompt id: %w", err)
	}
	return maxEntryID, maxPromptID, nil
}
