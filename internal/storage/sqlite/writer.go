package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// writeIntent is one unit of work the single writer task applies inside
// its own transaction. Generalizing the teacher's BEGIN EXCLUSIVE
// migration pattern to steady-state writes: every statement-level write is
// wrapped the same way, but via a bounded channel instead of one shared
// connection implicitly serializing callers.
type writeIntent struct {
	label string
	exec  func(tx *sql.Tx) error
	done  chan error
}

// writer drains writeCh on its own goroutine, the store's single writer
// task (spec.md §5: "the store has one writer").
func (s *Store) writer(ctx context.Context) {
	defer s.wg.Done()
	for {
		select {
		case intent, ok := <-s.writeCh:
			if !ok {
				return
			}
			err := s.apply(intent)
			if s.journal != nil {
				s.journal.Append(intent.label, err)
			}
			intent.done <- err
		case <-ctx.Done():
			// Drain remaining intents so callers awaiting completion don't
			// block forever on shutdown.
			for {
				select {
				case intent := <-s.writeCh:
					intent.done <- fmt.Errorf("store: shutting down")
				default:
					return
				}
			}
		}
	}
}

func (s *Store) apply(intent writeIntent) error {
	tx, err := s.writeDB.Begin()
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	if err := intent.exec(tx); err != nil {
		_ = tx.Rollback()
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

// enqueue submits a write intent and blocks until the writer applies it or
// ctx is cancelled, whichever comes first. A single bad row never poisons
// subsequent writes — each intent gets its own transaction.
func (s *Store) enqueue(ctx context.Context, label string, exec func(tx *sql.Tx) error) error {
	done := make(chan error, 1)
	intent := writeIntent{label: label, exec: exec, done: done}

	select {
	case s.writeCh <- intent:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}
