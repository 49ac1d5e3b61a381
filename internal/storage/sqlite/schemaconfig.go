package sqlite

import (
	"context"
	"database/sql"
	"fmt"
)

// FieldConfig is one custom-field registration (spec.md §4.4's schema
// registry), scoped to a workspace or left global via an empty
// WorkspaceID.
type FieldConfig struct {
	TableName   string
	FieldName   string
	WorkspaceID string
	DisplayName string
	Description string
	Enabled     bool
	Config      map[string]any
}

// SaveFieldConfig registers or replaces a custom field. A workspace-scoped
// save never touches the global (NULL-workspace) row for the same field —
// SQLite's default NULL-is-distinct behavior in the unique index already
// keeps the two keyspaces apart, so this is a delete-then-insert only
// within the given scope.
func (s *Store) SaveFieldConfig(ctx context.Context, fc FieldConfig) error {
	return s.enqueue(ctx, "save_field_config", func(tx *sql.Tx) error {
		workspaceID := nullString(fc.WorkspaceID)
		if _, err := tx.Exec(`
			DELETE FROM schema_config
			WHERE table_name = ? AND field_name = ? AND workspace_id IS ?`,
			fc.TableName, fc.FieldName, workspaceID); err != nil {
			return fmt.Errorf("clear prior field config: %w", err)
		}
		_, err := tx.Exec(`
			INSERT INTO schema_config (table_name, field_name, workspace_id, display_name, description, enabled, config)
			VALUES (?,?,?,?,?,?,?)`,
			fc.TableName, fc.FieldName, workspaceID, fc.DisplayName, fc.Description,
			boolToInt(fc.Enabled), encodeJSON(fc.Config))
		return err
	})
}

// FieldConfigsForTable returns the effective field configuration for table
// in workspace: a workspace-scoped row overrides a global row for the same
// field name, and fields with no workspace-scoped override fall back to
// the global definition.
func (s *Store) FieldConfigsForTable(ctx context.Context, table, workspace string) ([]FieldConfig, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT field_name, workspace_id, display_name, description, enabled, config
		FROM schema_config WHERE table_name = ? AND (workspace_id = ? OR workspace_id IS NULL)
		ORDER BY field_name, workspace_id IS NULL`, table, workspace)
	if err != nil {
		return nil, fmt.Errorf("query field configs: %w", err)
	}
	defer rows.Close()

	byField := make(map[string]FieldConfig)
	order := make([]string, 0)
	for rows.Next() {
		var fc FieldConfig
		var workspaceID sql.NullString
		var config string
		var enabled int
		if err := rows.Scan(&fc.FieldName, &workspaceID, &fc.DisplayName, &fc.Description,
			&enabled, &config); err != nil {
			return nil, fmt.Errorf("scan field config: %w", err)
		}
		fc.TableName = table
		fc.Enabled = enabled != 0
		fc.Config = decodeJSON(config)
		// Rows are ordered workspace-scoped first (workspace_id IS NULL
		// sorts after a match), so the first row seen per field wins.
		if _, seen := byField[fc.FieldName]; !seen {
			byField[fc.FieldName] = fc
			order = append(order, fc.FieldName)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	out := make([]FieldConfig, 0, len(order))
	for _, name := range order {
		out = append(out, byField[name])
	}
	return out, nil
}
