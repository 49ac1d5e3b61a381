package sqlite

import (
	"context"
	"fmt"
)

// ValidationReport summarizes integrity problems found by Validate,
// spec.md §8 scenario S6 ("Corruption detection").
type ValidationReport struct {
	OrphanEntriesLinkedToMissingPrompt int
	OrphanPromptsLinkedToMissingEntry  int
	OrphanTerminalCommandsMissingEntry int
	OrphanTerminalCommandsMissingPrompt int
	NullTimestampEntries               int
	NullTimestampPrompts               int
	NullTimestampEvents                int
}

// Empty reports whether no integrity problems were found.
func (r ValidationReport) Empty() bool {
	return r == ValidationReport{}
}

// Validate runs a read-only integrity sweep: orphaned foreign keys and
// null/unparseable timestamps. It never mutates the store — repair is a
// separate, explicit operation.
func (s *Store) Validate(ctx context.Context) (ValidationReport, error) {
	var r ValidationReport

	queries := []struct {
		sql  string
		dest *int
	}{
		{`SELECT COUNT(*) FROM entries e WHERE e.prompt_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM prompts p WHERE p.id = e.prompt_id)`, &r.OrphanEntriesLinkedToMissingPrompt},
		{`SELECT COUNT(*) FROM prompts p WHERE p.linked_entry_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM entries e WHERE e.id = p.linked_entry_id)`, &r.OrphanPromptsLinkedToMissingEntry},
		{`SELECT COUNT(*) FROM terminal_commands t WHERE t.entry_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM entries e WHERE e.id = t.entry_id)`, &r.OrphanTerminalCommandsMissingEntry},
		{`SELECT COUNT(*) FROM terminal_commands t WHERE t.prompt_id IS NOT NULL
			AND NOT EXISTS (SELECT 1 FROM prompts p WHERE p.id = t.prompt_id)`, &r.OrphanTerminalCommandsMissingPrompt},
		{`SELECT COUNT(*) FROM entries WHERE timestamp IS NULL OR timestamp = ''`, &r.NullTimestampEntries},
		{`SELECT COUNT(*) FROM prompts WHERE timestamp IS NULL OR timestamp = ''`, &r.NullTimestampPrompts},
		{`SELECT COUNT(*) FROM events WHERE timestamp IS NULL OR timestamp = ''`, &r.NullTimestampEvents},
	}

	for _, q := range queries {
		if err := s.readDB.QueryRowContext(ctx, q.sql).Scan(q.dest); err != nil {
			return ValidationReport{}, fmt.Errorf("validate: %w", err)
		}
	}
	return r, nil
}
