package sqlite

import (
	"database/sql"
	"fmt"
)

// Migration is one idempotent schema-evolution step, run in order after
// schema's CREATE TABLE IF NOT EXISTS statements.
type Migration struct {
	Name string
	Func func(*sql.DB) error
}

// migrationsList is the ordered list of every migration run at startup.
// Per REDESIGN FLAGS, none of these rely on string-matching a driver's
// "duplicate column" error text — each introspects existing columns first
// via PRAGMA table_info and adds only what's missing.
var migrationsList = []Migration{
	{"prompt_conversation_columns", migratePromptConversationColumns},
}

// RunMigrations applies every registered migration inside a single
// EXCLUSIVE transaction, the same serialization discipline the teacher
// uses to keep concurrent daemon instances from racing on
// check-then-modify column additions.
func RunMigrations(db *sql.DB) error {
	if _, err := db.Exec("PRAGMA foreign_keys = OFF"); err != nil {
		return fmt.Errorf("disable foreign keys for migrations: %w", err)
	}
	defer func() { _, _ = db.Exec("PRAGMA foreign_keys = ON") }()

	if _, err := db.Exec("BEGIN EXCLUSIVE"); err != nil {
		return fmt.Errorf("acquire exclusive lock for migrations: %w", err)
	}
	committed := false
	defer func() {
		if !committed {
			_, _ = db.Exec("ROLLBACK")
		}
	}()

	for _, m := range migrationsList {
		if err := m.Func(db); err != nil {
			return fmt.Errorf("migration %s failed: %w", m.Name, err)
		}
	}

	if _, err := db.Exec("COMMIT"); err != nil {
		return fmt.Errorf("commit migrations: %w", err)
	}
	committed = true
	return nil
}

// tableColumns returns the set of column names PRAGMA table_info reports
// for table, the introspection step REDESIGN FLAGS calls for in place of
// swallowing a "duplicate column" error string.
func tableColumns(db *sql.DB, table string) (map[string]bool, error) {
	cols := make(map[string]bool)
	rows, err := db.Query(fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols[name] = true
	}
	return cols, rows.Err()
}

// addColumnIfMissing runs ALTER TABLE ... ADD COLUMN only when
// tableColumns doesn't already report the column present.
func addColumnIfMissing(db *sql.DB, table, column, ddl string) error {
	cols, err := tableColumns(db, table)
	if err != nil {
		return err
	}
	if cols[column] {
		return nil
	}
	_, err = db.Exec(fmt.Sprintf("ALTER TABLE %s ADD COLUMN %s %s", table, column, ddl))
	return err
}

// migratePromptConversationColumns adds conversation_id, conversation_index,
// thinking_time and parent_conversation_id to prompts when they're missing,
// exactly the schema drift scenario spec.md S5 describes: existing rows are
// untouched, the new columns get their declared defaults (0 for
// thinking_time, null for the rest), and a subsequent save persists and
// reloads real values.
func migratePromptConversationColumns(db *sql.DB) error {
	if err := addColumnIfMissing(db, "prompts", "conversation_id", "TEXT"); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, "prompts", "conversation_index", "INTEGER"); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, "prompts", "thinking_time", "INTEGER NOT NULL DEFAULT 0"); err != nil {
		return err
	}
	if err := addColumnIfMissing(db, "prompts", "parent_conversation_id", "TEXT"); err != nil {
		return err
	}

	if _, err := db.Exec(`CREATE INDEX IF NOT EXISTS idx_prompts_conversation ON prompts(conversation_id)`); err != nil {
		return err
	}
	_, err := db.Exec(`CREATE UNIQUE INDEX IF NOT EXISTS uq_prompts_conversation_index
		ON prompts(conversation_id, conversation_index)
		WHERE conversation_id IS NOT NULL AND conversation_index IS NOT NULL`)
	return err
}
