// Package normalize implements the Event Normalizer: schema mapping, type
// coercion, default fill, id assignment, and dedup fingerprinting that
// turns adapter.Record values into the canonical entities of
// internal/model.
package normalize

import (
	"sync"
	"time"

	"github.com/mitchellh/hashstructure/v2"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/model"
)

// Normalizer owns the monotonic id generators and the dedup fingerprint
// sets. One Normalizer is shared by every adapter's output stream; it is
// safe for concurrent use since records from different adapters arrive
// with no ordering guarantee (spec.md §5).
type Normalizer struct {
	entryIDs  *model.NumericIDGen
	promptIDs *model.NumericIDGen

	mu                sync.Mutex
	seenEntryPrints    map[uint64]bool
	seenPromptPrints   map[uint64]bool
}

// New constructs a Normalizer seeded from the highest ids already present
// in the store (maxEntryID, maxPromptID), per spec.md §4.2 rule 4.
func New(maxEntryID, maxPromptID int64) *Normalizer {
	return &Normalizer{
		entryIDs:         model.NewNumericIDGen(maxEntryID),
		promptIDs:        model.NewNumericIDGen(maxPromptID),
		seenEntryPrints:  make(map[uint64]bool),
		seenPromptPrints: make(map[uint64]bool),
	}
}

type entryFingerprint struct {
	Source    string
	Timestamp int64
	FilePath  string
}

type promptFingerprint struct {
	ComposerID    string
	TimestampBucket int64
	TextPrefix    string
}

func fingerprint(v any) uint64 {
	h, err := hashstructure.Hash(v, hashstructure.FormatV2, nil)
	if err != nil {
		return 0
	}
	return h
}

// NormalizeEntry maps a filewatcher Record to an Entry. isDup reports
// whether a record with the same (source, timestamp, file path)
// fingerprint was already observed, so such duplicates collapse rather
// than minting a new row.
func (n *Normalizer) NormalizeEntry(r adapter.Record) (e model.Entry, isDup bool) {
	ts := r.Timestamp
	flaggedImport := false
	if ts.IsZero() {
		ts = time.Now()
		flaggedImport = true
	}

	fp := fingerprint(entryFingerprint{
		Source:    r.Source,
		Timestamp: ts.UnixNano(),
		FilePath:  r.FilePath,
	})

	n.mu.Lock()
	isDup = n.seenEntryPrints[fp]
	n.seenEntryPrints[fp] = true
	n.mu.Unlock()

	source := model.Source(r.Source)
	if flaggedImport {
		source = model.SourceImport
	}

	e = model.Entry{
		ID:            n.entryIDs.Next(),
		WorkspacePath: r.WorkspacePath,
		FilePath:      r.FilePath,
		Source:        source,
		BeforeCode:    r.BeforeCode,
		AfterCode:     r.AfterCode,
		Notes:         r.Text,
		Timestamp:     ts,
		SessionID:     sessionID(ts),
	}
	return e, isDup
}

// NormalizePrompt maps an editor-DB or clipboard Record to a Prompt.
func (n *Normalizer) NormalizePrompt(r adapter.Record) (p model.Prompt, isDup bool) {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}

	key := promptFingerprint{ComposerID: r.ComposerID}
	if r.ComposerID == "" {
		key.TimestampBucket = ts.Unix() / 60
		prefix := r.Text
		if len(prefix) > 50 {
			prefix = prefix[:50]
		}
		key.TextPrefix = prefix
	}
	fp := fingerprint(key)

	n.mu.Lock()
	isDup = n.seenPromptPrints[fp]
	n.seenPromptPrints[fp] = true
	n.mu.Unlock()

	addedFromDB := false
	if v, ok := r.Stats["addedFromDatabase"].(bool); ok {
		addedFromDB = v
	}

	p = model.Prompt{
		ID:                   n.promptIDs.Next(),
		Timestamp:            ts,
		Text:                 r.Text,
		Status:               model.PromptCaptured,
		Source:               model.Source(r.Source),
		Workspace:            model.Workspace{Path: r.WorkspacePath},
		ComposerID:           r.ComposerID,
		ConversationID:       r.ConversationID,
		ParentConversationID: r.ParentConversationID,
		MessageRole:          r.MessageRole,
		ContextFiles:         r.ContextFiles,
		AddedFromDatabase:    addedFromDB,
	}
	return p, isDup
}

// NormalizeTerminalCommand maps a shell-history Record to a TerminalCommand.
func (n *Normalizer) NormalizeTerminalCommand(r adapter.Record) model.TerminalCommand {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	return model.TerminalCommand{
		ID:            model.NewOpaqueID("term"),
		Command:       r.Text,
		Shell:         r.Shell,
		Source:        model.Source(r.Source),
		Timestamp:     ts,
		WorkspacePath: r.WorkspacePath,
		ExitCode:      r.ExitCode,
		Duration:      r.Duration,
		SessionID:     sessionID(ts),
	}
}

// NormalizeStatusMessage maps a status-tracker Record to a StatusMessage.
func (n *Normalizer) NormalizeStatusMessage(r adapter.Record) model.StatusMessage {
	ts := r.Timestamp
	if ts.IsZero() {
		ts = time.Now()
	}
	action := model.ActionStatus
	if a, ok := r.Stats["action"].(string); ok {
		action = model.StatusAction(a)
	}
	return model.StatusMessage{
		ID:            model.NewOpaqueID("status"),
		WorkspacePath: r.WorkspacePath,
		Timestamp:     ts,
		Raw:           r.RawStatus,
		Action:        action,
		Detail:        r.Text,
	}
}

// sessionID is the calendar date in local time, the coarse session-id rule
// of spec.md §4.3.
func sessionID(t time.Time) string {
	return t.Local().Format("2006-01-02")
}
