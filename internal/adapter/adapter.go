// Package adapter implements the Source Adapters: the polymorphic pollers
// that pull raw evidence (file edits, clipboard text, editor sidecar-DB
// rows, shell history, status strings, and historical git/log data) into a
// common Record shape the Normalizer consumes.
package adapter

import (
	"context"
	"time"
)

// Cursor is a monotonic position (timestamp or row id) an adapter uses to
// resume incremental polling without re-emitting already-seen records.
type Cursor struct {
	Timestamp time.Time
	RowID     int64
}

// IsZero reports whether the cursor has never been advanced.
func (c Cursor) IsZero() bool {
	return c.Timestamp.IsZero() && c.RowID == 0
}

// RecordKind identifies which canonical entity a Record should become once
// normalized.
type RecordKind string

const (
	KindEntry           RecordKind = "entry"
	KindPrompt          RecordKind = "prompt"
	KindTerminalCommand RecordKind = "terminal_command"
	KindStatusMessage   RecordKind = "status_message"
	KindContextSnapshot RecordKind = "context_snapshot"
	KindEvent           RecordKind = "event"
)

// Record is the adapter-agnostic envelope handed to the Normalizer. Fields
// are a superset covering every adapter; unused fields are left zero.
// This is the tagged-record replacement for the source system's duck-typed
// records: every optional field is explicit and defaults to zero/null
// rather than being probed with chained optional-access.
type Record struct {
	Kind          RecordKind
	Source        string
	WorkspacePath string
	FilePath      string
	BeforeCode    string
	AfterCode     string
	Text          string
	Timestamp     time.Time
	ComposerID    string
	ConversationID string
	ParentConversationID string
	MessageRole   string
	Stats         map[string]any
	ContextFiles  []string
	Shell         string
	ExitCode      *int
	Duration      time.Duration
	RawStatus     string
	Cursor        Cursor
}

// Adapter is the contract every Source Adapter implements. Errors from one
// adapter must never prevent peers from running; the Sync Scheduler is
// responsible for isolating failures per adapter.
type Adapter interface {
	// Name identifies the adapter for logging and backoff bookkeeping.
	Name() string
	// Start prepares the adapter to be polled on the given cadence. Some
	// adapters (filewatcher) use this to install an event-driven watch
	// instead of waiting for Poll to be called on a ticker.
	Start(ctx context.Context, cadence time.Duration) error
	// Poll returns records observed since the given cursor and the cursor
	// to resume from next. Must be idempotent: re-polling the same cursor
	// must not cause the Normalizer to mint duplicate downstream rows.
	Poll(ctx context.Context, since Cursor) (records []Record, next Cursor, err error)
	// Stop releases any resources Start acquired. Must return within one
	// tick of being called.
	Stop() error
}
