package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver"
	_ "github.com/ncruces/go-sqlite3/embed"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/redact"
)

// EditorDBReader opens the editor's own sidecar SQLite store read-only and
// extracts prompt/composer rows incrementally. It is tolerant of schema
// drift: columns it expects but doesn't find are simply left null rather
// than failing the whole poll, mirroring spec.md's "unknown columns are
// ignored; missing columns yield null fields".
type EditorDBReader struct {
	dbPath    string
	workspace string
	redactor  *redact.Policy

	db      *sql.DB
	columns map[string]bool
}

// NewEditorDBReader constructs a reader for the given sidecar DB path.
func NewEditorDBReader(dbPath, workspace string, policy *redact.Policy) *EditorDBReader {
	return &EditorDBReader{dbPath: dbPath, workspace: workspace, redactor: policy}
}

func (e *EditorDBReader) Name() string { return "editor-db" }

func (e *EditorDBReader) Start(ctx context.Context, cadence time.Duration) error {
	db, err := sql.Open("sqlite3", "file:"+e.dbPath+"?mode=ro&immutable=0")
	if err != nil {
		return fmt.Errorf("open editor db: %w", err)
	}
	e.db = db
	e.columns = e.probeColumns(ctx)
	return nil
}

// probeColumns runs PRAGMA table_info against the expected prompts-like
// table and records which of the columns we know how to read actually
// exist, so Poll can skip the ones that don't without erroring.
func (e *EditorDBReader) probeColumns(ctx context.Context) map[string]bool {
	cols := make(map[string]bool)
	rows, err := e.db.QueryContext(ctx, "PRAGMA table_info(prompts)")
	if err != nil {
		return cols
	}
	defer rows.Close()
	for rows.Next() {
		var cid int
		var name, ctype string
		var notnull, pk int
		var dflt sql.NullString
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			continue
		}
		cols[name] = true
	}
	return cols
}

func (e *EditorDBReader) has(col string) bool { return e.columns[col] }

// Poll extracts prompts with rowid greater than since.RowID (an
// incremental cursor over the sidecar table's own row ordering).
func (e *EditorDBReader) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	if e.db == nil {
		return nil, since, nil
	}

	// Re-probe while the table is still absent (fresh editor install), then
	// select NULL/empty in place of any expected column the table lacks.
	if len(e.columns) == 0 {
		e.columns = e.probeColumns(ctx)
	}
	textCol, tsCol := "text", "timestamp"
	if !e.has("text") {
		textCol = "''"
	}
	if !e.has("timestamp") {
		tsCol = "NULL"
	}
	query := "SELECT rowid, " + textCol + ", " + tsCol + " FROM prompts WHERE rowid > ? ORDER BY rowid ASC LIMIT 500"
	rows, err := e.db.QueryContext(ctx, query, since.RowID)
	if err != nil {
		// The sidecar schema may not even have a prompts table yet (fresh
		// editor install); that's not an adapter failure.
		return nil, since, nil
	}
	defer rows.Close()

	var records []Record
	next := since
	for rows.Next() {
		var rowID int64
		var text string
		var ts sql.NullString
		if err := rows.Scan(&rowID, &text, &ts); err != nil {
			continue
		}
		timestamp := time.Now()
		if ts.Valid {
			if parsed, err := time.Parse(time.RFC3339, ts.String); err == nil {
				timestamp = parsed
			}
		}

		if e.redactor != nil {
			if red, applied := e.redactor.Apply(text); applied {
				text = red
			}
		}

		records = append(records, Record{
			Kind:          KindPrompt,
			Source:        string(model.SourceEditorDB),
			WorkspacePath: e.workspace,
			Text:          text,
			Timestamp:     timestamp,
			Cursor:        Cursor{RowID: rowID, Timestamp: timestamp},
		})
		if rowID > next.RowID {
			next.RowID = rowID
		}
		if timestamp.After(next.Timestamp) {
			next.Timestamp = timestamp
		}
	}
	return records, next, nil
}

func (e *EditorDBReader) Stop() error {
	if e.db != nil {
		return e.db.Close()
	}
	return nil
}
