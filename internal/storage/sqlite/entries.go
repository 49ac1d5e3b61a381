package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SaveEntry upserts e keyed on e.ID, the id the Event Normalizer already
// assigned before handing the record to the pipeline. Saving the same id
// again overwrites the existing row rather than minting a duplicate.
func (s *Store) SaveEntry(ctx context.Context, e model.Entry) error {
	return s.enqueue(ctx, "save_entry", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO entries (
				id, session_id, workspace_path, file_path, source, before_code,
				after_code, notes, timestamp, tags, prompt_id, model_info,
				type, linking_confidence, redaction_applied
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				session_id = excluded.session_id,
				workspace_path = excluded.workspace_path,
				file_path = excluded.file_path,
				source = excluded.source,
				before_code = excluded.before_code,
				after_code = excluded.after_code,
				notes = excluded.notes,
				timestamp = excluded.timestamp,
				tags = excluded.tags,
				prompt_id = excluded.prompt_id,
				model_info = excluded.model_info,
				type = excluded.type,
				linking_confidence = excluded.linking_confidence,
				redaction_applied = excluded.redaction_applied`,
			e.ID, e.SessionID, e.WorkspacePath, e.FilePath, string(e.Source), e.BeforeCode,
			e.AfterCode, e.Notes, e.Timestamp.UTC().Format(time.RFC3339Nano), encodeStrings(e.Tags),
			nullInt64(e.PromptID), encodeModelInfo(e.Model), e.Type,
			string(e.LinkingConfidence), boolToInt(e.RedactionApplied),
		)
		if err != nil {
			return fmt.Errorf("upsert entry: %w", err)
		}
		return nil
	})
}

// GetEntry reads one entry by id.
func (s *Store) GetEntry(ctx context.Context, id int64) (model.Entry, bool, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, session_id, workspace_path, file_path, source, before_code,
			after_code, notes, timestamp, tags, prompt_id, model_info, type,
			linking_confidence, redaction_applied
		FROM entries WHERE id = ?`, id)
	if err != nil {
		return model.Entry{}, false, fmt.Errorf("get entry: %w", err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return model.Entry{}, false, err
	}
	if len(entries) == 0 {
		return model.Entry{}, false, nil
	}
	return entries[0], true, nil
}

// SetEntryConfidence updates only the linking_confidence column, used by
// the correlation engine after a Link decision.
func (s *Store) SetEntryConfidence(ctx context.Context, entryID int64, confidence model.Confidence) error {
	return s.enqueue(ctx, "set_entry_confidence", func(tx *sql.Tx) error {
		_, err := tx.Exec(`UPDATE entries SET linking_confidence = ? WHERE id = ?`, string(confidence), entryID)
		return err
	})
}

// LinkEntryPrompt records entry->prompt linkage, enforcing invariant 8: a
// link already at high confidence is never replaced by an arriving
// candidate scored at the same or a lower confidence tier. Ties and
// downgrades are silently skipped rather than erroring — a later, better
// candidate may still arrive.
func (s *Store) LinkEntryPrompt(ctx context.Context, entryID, promptID int64, confidence model.Confidence) error {
	return s.enqueue(ctx, "link_entry_prompt", func(tx *sql.Tx) error {
		var current string
		err := tx.QueryRow(`SELECT linking_confidence FROM entries WHERE id = ?`, entryID).Scan(&current)
		if err != nil {
			return fmt.Errorf("read current confidence: %w", err)
		}
		if confidenceRank(model.Confidence(current)) >= confidenceRank(confidence) {
			return nil
		}
		if _, err := tx.Exec(`UPDATE entries SET prompt_id = ?, linking_confidence = ? WHERE id = ?`,
			promptID, string(confidence), entryID); err != nil {
			return fmt.Errorf("update entry link: %w", err)
		}
		_, err = tx.Exec(`UPDATE prompts SET linked_entry_id = ?, status = 'linked' WHERE id = ?`, entryID, promptID)
		return err
	})
}

func confidenceRank(c model.Confidence) int {
	switch c {
	case model.ConfidenceHigh:
		return 3
	case model.ConfidenceMedium:
		return 2
	case model.ConfidenceLow:
		return 1
	default:
		return 0
	}
}

// RecentEntries returns the most recent entries across all workspaces,
// newest first, bounded by limit/offset for the query facade.
func (s *Store) RecentEntries(ctx context.Context, limit, offset int) ([]model.Entry, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, session_id, workspace_path, file_path, source, before_code,
			after_code, notes, timestamp, tags, prompt_id, model_info, type,
			linking_confidence, redaction_applied
		FROM entries ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent entries: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesInTimeRange returns entries with timestamp in [from, to], oldest
// first.
func (s *Store) EntriesInTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Entry, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, session_id, workspace_path, file_path, source, before_code,
			after_code, notes, timestamp, tags, prompt_id, model_info, type,
			linking_confidence, redaction_applied
		FROM entries WHERE timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC LIMIT ? OFFSET ?`,
		from.UTC().Format(time.RFC3339Nano), to.UTC().Format(time.RFC3339Nano), limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query entries in range: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesWithCode returns entries whose before/after code is non-empty,
// i.e. genuine code-change observations rather than notes-only entries.
func (s *Store) EntriesWithCode(ctx context.Context, limit, offset int) ([]model.Entry, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, session_id, workspace_path, file_path, source, before_code,
			after_code, notes, timestamp, tags, prompt_id, model_info, type,
			linking_confidence, redaction_applied
		FROM entries WHERE before_code != '' OR after_code != ''
		ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query entries with code: %w", err)
	}
	defer rows.Close()
	return scanEntries(rows)
}

// EntriesWithPrompts returns linked entries alongside their prompt, newest
// first.
func (s *Store) EntriesWithPrompts(ctx context.Context, limit, offset int) ([]model.Entry, []model.Prompt, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT e.id, e.session_id, e.workspace_path, e.file_path, e.source,
			e.before_code, e.after_code, e.notes, e.timestamp, e.tags,
			e.prompt_id, e.model_info, e.type, e.linking_confidence, e.redaction_applied
		FROM entries e WHERE e.prompt_id IS NOT NULL
		ORDER BY e.timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("query entries with prompts: %w", err)
	}
	defer rows.Close()
	entries, err := scanEntries(rows)
	if err != nil {
		return nil, nil, err
	}

	prompts := make([]model.Prompt, 0, len(entries))
	for _, e := range entries {
		if e.PromptID == nil {
			continue
		}
		p, ok, err := s.GetPrompt(ctx, *e.PromptID)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			prompts = append(prompts, p)
		}
	}
	return entries, prompts, nil
}

// CandidatePrompts returns captured prompts in the same workspace whose
// timestamp falls within window of entry.Timestamp, the candidate set the
// correlation engine scores.
func (s *Store) CandidatePrompts(ctx context.Context, workspace string, back, forward time.Duration, entryTime time.Time) ([]model.Prompt, error) {
	from := entryTime.Add(-back).UTC().Format(time.RFC3339Nano)
	to := entryTime.Add(forward).UTC().Format(time.RFC3339Nano)
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, timestamp, text, status, linked_entry_id, source,
			workspace_id, workspace_path, workspace_name, composer_id, stats,
			confidence, context_files, context_file_count_explicit,
			context_file_count_tabs, context_file_count_auto, terminal_blocks,
			attachment_count, conversation_id, conversation_index, conversation_title,
			message_role, parent_conversation_id, thinking_time, added_from_database, redaction_applied
		FROM prompts
		WHERE workspace_path = ? AND timestamp >= ? AND timestamp <= ?
		ORDER BY timestamp ASC`, workspace, from, to)
	if err != nil {
		return nil, fmt.Errorf("query candidate prompts: %w", err)
	}
	defer rows.Close()
	return scanPrompts(rows)
}

func scanEntries(rows *sql.Rows) ([]model.Entry, error) {
	var out []model.Entry
	for rows.Next() {
		var e model.Entry
		var ts, tags, modelInfo, source, confidence string
		var promptID sql.NullInt64
		var redacted int
		if err := rows.Scan(&e.ID, &e.SessionID, &e.WorkspacePath, &e.FilePath, &source,
			&e.BeforeCode, &e.AfterCode, &e.Notes, &ts, &tags, &promptID, &modelInfo,
			&e.Type, &confidence, &redacted); err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		e.Source = model.Source(source)
		e.Timestamp = parseTimestamp(ts)
		e.Tags = decodeStrings(tags)
		e.Model = decodeModelInfo(modelInfo)
		e.LinkingConfidence = model.Confidence(confidence)
		e.RedactionApplied = redacted != 0
		if promptID.Valid {
			id := promptID.Int64
			e.PromptID = &id
		}
		out = append(out, e)
	}
	return out, rows.Err()
}

func parseTimestamp(raw string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}
	}
	return t
}

func nullInt64(v *int64) any {
	if v == nil {
		return nil
	}
	return *v
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

func encodeModelInfo(m *model.ModelInfo) string {
	if m == nil {
		return "{}"
	}
	return encodeJSON(map[string]any{"name": m.Name, "type": m.Type})
}

func decodeModelInfo(raw string) *model.ModelInfo {
	data := decodeJSON(raw)
	if len(data) == 0 {
		return nil
	}
	name, _ := data["name"].(string)
	typ, _ := data["type"].(string)
	if name == "" && typ == "" {
		return nil
	}
	return &model.ModelInfo{Name: name, Type: typ}
}
