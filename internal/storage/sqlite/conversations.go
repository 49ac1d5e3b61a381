package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// GetConversation reads one conversation by id.
func (s *Store) GetConversation(ctx context.Context, id string) (model.Conversation, bool, error) {
	row := s.readDB.QueryRowContext(ctx, `
		SELECT id, workspace_id, workspace_path, title, status, tags, metadata,
			created_at, updated_at, last_message_at, message_count
		FROM conversations WHERE id = ?`, id)
	c, err := scanConversationRow(row)
	if err == sql.ErrNoRows {
		return model.Conversation{}, false, nil
	}
	if err != nil {
		return model.Conversation{}, false, fmt.Errorf("get conversation: %w", err)
	}
	return c, true, nil
}

// UpsertConversation inserts or replaces a conversation row keyed by id,
// the roll-up write AfterSavePrompt issues after every prompt save.
func (s *Store) UpsertConversation(ctx context.Context, c model.Conversation) error {
	return s.enqueue(ctx, "upsert_conversation", func(tx *sql.Tx) error {
		var lastMessageAt any
		if !c.LastMessageAt.IsZero() {
			lastMessageAt = c.LastMessageAt.UTC().Format(time.RFC3339Nano)
		}
		createdAt := c.CreatedAt
		if createdAt.IsZero() {
			createdAt = time.Now()
		}
		updatedAt := c.UpdatedAt
		if updatedAt.IsZero() {
			updatedAt = createdAt
		}
		_, err := tx.Exec(`
			INSERT INTO conversations (
				id, workspace_id, workspace_path, title, status, tags, metadata,
				created_at, updated_at, last_message_at, message_count
			) VALUES (?,?,?,?,?,?,?,?,?,?,?)
			ON CONFLICT(id) DO UPDATE SET
				workspace_id = excluded.workspace_id,
				workspace_path = excluded.workspace_path,
				title = excluded.title,
				status = excluded.status,
				tags = excluded.tags,
				metadata = excluded.metadata,
				updated_at = excluded.updated_at,
				last_message_at = excluded.last_message_at,
				message_count = excluded.message_count`,
			c.ID, c.WorkspaceID, c.WorkspacePath, c.Title, string(c.Status),
			encodeStrings(c.Tags), encodeJSON(c.Metadata),
			createdAt.UTC().Format(time.RFC3339Nano), updatedAt.UTC().Format(time.RFC3339Nano),
			lastMessageAt, c.MessageCount,
		)
		return err
	})
}

// ConversationMessageStats returns the prompt count and the most recent
// prompt timestamp for a conversation, the two figures AfterSavePrompt
// rolls up into the conversation row on every save.
func (s *Store) ConversationMessageStats(ctx context.Context, conversationID string) (int, time.Time, error) {
	var count int
	var lastTS sql.NullString
	err := s.readDB.QueryRowContext(ctx, `
		SELECT COUNT(*), MAX(timestamp) FROM prompts WHERE conversation_id = ?`,
		conversationID).Scan(&count, &lastTS)
	if err != nil {
		return 0, time.Time{}, fmt.Errorf("conversation message stats: %w", err)
	}
	if !lastTS.Valid {
		return count, time.Time{}, nil
	}
	return count, parseTimestamp(lastTS.String), nil
}

// ConversationsByWorkspace returns conversations for workspace, ordered by
// last message time (falling back to creation time for conversations with
// no messages yet), most recent first.
func (s *Store) ConversationsByWorkspace(ctx context.Context, workspace string, limit, offset int) ([]model.Conversation, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, workspace_id, workspace_path, title, status, tags, metadata,
			created_at, updated_at, last_message_at, message_count
		FROM conversations WHERE workspace_path = ?
		ORDER BY last_message_at DESC, created_at DESC LIMIT ? OFFSET ?`, workspace, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("query conversations by workspace: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// ConversationsEligibleForCompaction returns archived conversations whose
// last message is older than cutoff and whose metadata carries no
// "summary" key yet, the candidate set internal/compact works through
// before retention deletes their prompts out from under them.
func (s *Store) ConversationsEligibleForCompaction(ctx context.Context, cutoff time.Time, limit int) ([]model.Conversation, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT id, workspace_id, workspace_path, title, status, tags, metadata,
			created_at, updated_at, last_message_at, message_count
		FROM conversations
		WHERE status = ? AND last_message_at < ?
		ORDER BY last_message_at ASC LIMIT ?`,
		string(model.ConversationArchived), cutoff.UTC().Format(time.RFC3339Nano), limit)
	if err != nil {
		return nil, fmt.Errorf("query conversations eligible for compaction: %w", err)
	}
	defer rows.Close()

	var out []model.Conversation
	for rows.Next() {
		c, err := scanConversationRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan conversation: %w", err)
		}
		if _, ok := c.Metadata["summary"]; ok {
			continue
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// SetConversationSummary stamps a compaction summary onto a conversation's
// metadata without disturbing its other fields.
func (s *Store) SetConversationSummary(ctx context.Context, id, summary string) error {
	return s.enqueue(ctx, "set_conversation_summary", func(tx *sql.Tx) error {
		row := tx.QueryRow(`SELECT metadata FROM conversations WHERE id = ?`, id)
		var raw string
		if err := row.Scan(&raw); err != nil {
			return fmt.Errorf("read conversation metadata: %w", err)
		}
		meta := decodeJSON(raw)
		if meta == nil {
			meta = map[string]any{}
		}
		meta["summary"] = summary
		_, err := tx.Exec(`UPDATE conversations SET metadata = ?, updated_at = ? WHERE id = ?`,
			encodeJSON(meta), time.Now().UTC().Format(time.RFC3339Nano), id)
		return err
	})
}

func scanConversationRow(row rowScanner) (model.Conversation, error) {
	var c model.Conversation
	var status, tags, metadata, createdAt, updatedAt string
	var lastMessageAt sql.NullString
	if err := row.Scan(&c.ID, &c.WorkspaceID, &c.WorkspacePath, &c.Title, &status,
		&tags, &metadata, &createdAt, &updatedAt, &lastMessageAt, &c.MessageCount); err != nil {
		return model.Conversation{}, err
	}
	c.Status = model.ConversationStatus(status)
	c.Tags = decodeStrings(tags)
	c.Metadata = decodeJSON(metadata)
	c.CreatedAt = parseTimestamp(createdAt)
	c.UpdatedAt = parseTimestamp(updatedAt)
	if lastMessageAt.Valid {
		c.LastMessageAt = parseTimestamp(lastMessageAt.String)
	}
	return c, nil
}
