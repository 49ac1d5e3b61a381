package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// SavePrompt upserts p keyed on p.ID, the id the Event Normalizer already
// assigned before handing the record to the pipeline. Saving the same id
// again overwrites the existing row rather than minting a duplicate.
func (s *Store) SavePrompt(ctx context.Context, p model.Prompt) error {
	return s.enqueue(ctx, "save_prompt", func(tx *sql.Tx) error {
		_, err := tx.Exec(`
			INSERT INTO prompts (
				id, timestamp, text, status, linked_entry_id, source, workspace_id,
				workspace_path, workspace_name, composer_id, stats, confidence,
				context_files, context_file_count_explicit, context_file_count_tabs,
				context_file_count_auto, terminal_blocks, attachment_count,
				conversation_id, conversation_index, conversation_title,
				message_role, parent_conversation_id, thinking_time,
				added_from_database, redaction_applied
			) VALUES (?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				timestamp = excluded.timestamp,
				text = excluded.text,
				status = excluded.status,
				linked_entry_id = excluded.linked_entry_id,
				source = excluded.source,
				workspace_id = excluded.workspace_id,
				workspace_path = excluded.workspace_path,
				workspace_name = excluded.workspace_name,
				composer_id = excluded.composer_id,
				stats = excluded.stats,
				confidence = excluded.confidence,
				context_files = excluded.context_files,
				context_file_count_explicit = excluded.context_file_count_explicit,
				context_file_count_tabs = excluded.context_file_count_tabs,
				context_file_count_auto = excluded.context_file_count_auto,
				terminal_blocks = excluded.terminal_blocks,
				attachment_count = excluded.attachment_count,
				conversation_id = excluded.conversation_id,
				conversation_index = excluded.conversation_index,
				conversation_title = excluded.conversation_title,
				message_role = excluded.message_role,
				parent_conversation_id = excluded.parent_conversation_id,
				thinking_time = excluded.thinking_time,
				added_from_database = excluded.added_from_database,
				redaction_applied = excluded.redaction_applied`,
			p.ID, p.Timestamp.UTC().Format(time.RFC3339Nano), p.Text, string(p.Status),
			nullInt64(p.LinkedEntryID), string(p.Source), p.Workspace.ID, p.Workspace.Path,
			p.Workspace.Name, p.ComposerID, encodePromptStats(p.Stats), string(p.Confidence),
			encodeStrings(p.ContextFiles), p.ContextFileCounts.Explicit, p.ContextFileCounts.Tabs,
			p.ContextFileCounts.Auto, encodeStrings(p.TerminalBlocks), p.AttachmentCount,
			nullString(p.ConversationID), nullIntPtr(p.ConversationIndex), p.ConversationTitle,
			p.MessageRole, nullString(p.ParentConversationID), p.ThinkingTimeMS,
			boolToInt(p.AddedFromDatabase), boolToInt(p.RedactionApplied),
		)
		if err != nil {
			return fmt.Errorf("upsert prompt: %w", err)
		}
		return nil
	})
}

// GetPrompt reads one prompt by id.
func (s *Store) GetPrompt(ctx context.Context, id int64) (model.Prompt, bool, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, timestamp, text, status, linked_entry_id, source,
			workspace_id, workspace_path, workspace_name, composer_id, stats,
			confidence, context_files, context_file_count_explicit,
			context_file_count_tabs, context_file_count_auto, terminal_blocks,
			attachment_count, conversation_id, conversation_index, conversation_title,
			message_role, parent_conversation_id, thinking_time, added_from_database, redaction_applied
		FROM prompts WHERE id = ?`, id)
	p, err := scanPromptRow(row)
	if err == sql.ErrNoRows {
		return model.Prompt{}, false, nil
	}
	if err != nil {
		return model.Prompt{}, false, fmt.Errorf("get prompt: %w", err)
	}
	return p, true, nil
}

// RecentPrompts returns the most recent prompts, newest first.
func (s *Store) RecentPrompts(ctx context.Context, limit, offset int) ([]model.Prompt, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, timestamp, text, status, linked_entry_id, source,
			workspace_id, workspace_path, workspace_name, composer_id, stats,
			confidence, context_files, context_file_count_explicit,
			context_file_count_tabs, context_file_count_auto, terminal_blocks,
			attachment_count, conversation_id, conversation_index, conversation_title,
			message_role, parent_conversation_id, thinking_time, added_from_database, redaction_applied
		FROM prompts ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query recent prompts: %w", err)
	}
	defer rows.Close()
	return scanPrompts(rows)
}

// PromptsByConversation returns every prompt sharing conversationID,
// oldest first, the ordering internal/compact renders into a transcript
// before summarization.
func (s *Store) PromptsByConversation(ctx context.Context, conversationID string) ([]model.Prompt, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, timestamp, text, status, linked_entry_id, source,
			workspace_id, workspace_path, workspace_name, composer_id, stats,
			confidence, context_files, context_file_count_explicit,
			context_file_count_tabs, context_file_count_auto, terminal_blocks,
			attachment_count, conversation_id, conversation_index, conversation_title,
			message_role, parent_conversation_id, thinking_time, added_from_database, redaction_applied
		FROM prompts WHERE conversation_id = ? ORDER BY timestamp ASC`, conversationID)
	if err != nil {
		return nil, fmt.Errorf("query prompts by conversation: %w", err)
	}
	defer rows.Close()
	return scanPrompts(rows)
}

// PromptsWithEntries returns linked prompts alongside their entry, newest
// first — the mirror image of EntriesWithPrompts.
func (s *Store) PromptsWithEntries(ctx context.Context, limit, offset int) ([]model.Prompt, []model.Entry, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, timestamp, text, status, linked_entry_id, source,
			workspace_id, workspace_path, workspace_name, composer_id, stats,
			confidence, context_files, context_file_count_explicit,
			context_file_count_tabs, context_file_count_auto, terminal_blocks,
			attachment_count, conversation_id, conversation_index, conversation_title,
			message_role, parent_conversation_id, thinking_time, added_from_database, redaction_applied
		FROM prompts WHERE linked_entry_id IS NOT NULL
		ORDER BY timestamp DESC LIMIT ? OFFSET ?`, limit, offset)
	if err != nil {
		return nil, nil, fmt.Errorf("query prompts with entries: %w", err)
	}
	defer rows.Close()
	prompts, err := scanPrompts(rows)
	if err != nil {
		return nil, nil, err
	}

	entries := make([]model.Entry, 0, len(prompts))
	for _, p := range prompts {
		if p.LinkedEntryID == nil {
			continue
		}
		e, ok, err := s.GetEntry(ctx, *p.LinkedEntryID)
		if err != nil {
			return nil, nil, err
		}
		if ok {
			entries = append(entries, e)
		}
	}
	return prompts, entries, nil
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPromptRow(row rowScanner) (model.Prompt, error) {
	var p model.Prompt
	var ts, source, status, confidence, stats, contextFiles, terminalBlocks string
	var linkedEntryID, convIndex sql.NullInt64
	var convID, parentConvID sql.NullString
	var thinkingTime sql.NullInt64
	var addedFromDB, redacted int
	err := row.Scan(&p.ID, &ts, &p.Text, &status, &linkedEntryID, &source,
		&p.Workspace.ID, &p.Workspace.Path, &p.Workspace.Name, &p.ComposerID, &stats,
		&confidence, &contextFiles, &p.ContextFileCounts.Explicit, &p.ContextFileCounts.Tabs,
		&p.ContextFileCounts.Auto, &terminalBlocks, &p.AttachmentCount, &convID, &convIndex,
		&p.ConversationTitle, &p.MessageRole, &parentConvID, &thinkingTime, &addedFromDB, &redacted)
	if err != nil {
		return model.Prompt{}, err
	}
	p.Timestamp = parseTimestamp(ts)
	p.Status = model.PromptStatus(status)
	p.Source = model.Source(source)
	p.Confidence = model.Confidence(confidence)
	p.ContextFiles = decodeStrings(contextFiles)
	p.TerminalBlocks = decodeStrings(terminalBlocks)
	p.AddedFromDatabase = addedFromDB != 0
	p.RedactionApplied = redacted != 0
	p.Stats = decodePromptStats(stats)
	p.ConversationID = convID.String
	p.ParentConversationID = parentConvID.String
	p.ThinkingTimeMS = thinkingTime.Int64
	if linkedEntryID.Valid {
		id := linkedEntryID.Int64
		p.LinkedEntryID = &id
	}
	if convIndex.Valid {
		idx := int(convIndex.Int64)
		p.ConversationIndex = idx
	}
	return p, nil
}

func scanPrompts(rows *sql.Rows) ([]model.Prompt, error) {
	var out []model.Prompt
	for rows.Next() {
		p, err := scanPromptRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan prompt: %w", err)
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func encodePromptStats(s model.PromptStats) string {
	return encodeJSON(map[string]any{
		"lines_added":         s.LinesAdded,
		"lines_removed":       s.LinesRemoved,
		"context_usage_ratio": s.ContextUsageRatio,
		"mode":                s.Mode,
		"model_type":          s.ModelType,
		"model_name":          s.ModelName,
		"force_mode":          s.ForceMode,
		"auto":                s.Auto,
	})
}

func decodePromptStats(raw string) model.PromptStats {
	data := decodeJSON(raw)
	stats := model.PromptStats{}
	if v, ok := data["lines_added"].(float64); ok {
		stats.LinesAdded = int(v)
	}
	if v, ok := data["lines_removed"].(float64); ok {
		stats.LinesRemoved = int(v)
	}
	if v, ok := data["context_usage_ratio"].(float64); ok {
		stats.ContextUsageRatio = v
	}
	stats.Mode, _ = data["mode"].(string)
	stats.ModelType, _ = data["model_type"].(string)
	stats.ModelName, _ = data["model_name"].(string)
	stats.ForceMode, _ = data["force_mode"].(bool)
	stats.Auto, _ = data["auto"].(bool)
	return stats
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func nullIntPtr(v int) any {
	if v == 0 {
		return nil
	}
	return v
}
