package sqlite

import (
	"context"
	"fmt"
)

// ColumnInfo mirrors one row of PRAGMA table_info, exposed read-only for
// the query facade's schema() and table_schema(name) operations.
type ColumnInfo struct {
	Name         string
	Type         string
	NotNull      bool
	DefaultValue *string
	PrimaryKey   bool
}

// TableNames lists every user table in the database, sqlite_* excluded.
func (s *Store) TableNames(ctx context.Context) ([]string, error) {
	rows, err := s.readDB.QueryContext(ctx, `
		SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite_%' ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("list tables: %w", err)
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, err
		}
		names = append(names, name)
	}
	return names, rows.Err()
}

// TableSchema returns PRAGMA table_info for a single table. table is
// validated against the live table list first since it's interpolated
// into the pragma statement (SQLite doesn't accept it as a bound
// parameter) and may originate from a control-protocol request.
func (s *Store) TableSchema(ctx context.Context, table string) ([]ColumnInfo, error) {
	known, err := s.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	valid := false
	for _, t := range known {
		if t == table {
			valid = true
			break
		}
	}
	if !valid {
		return nil, fmt.Errorf("table schema: unknown table %q", table)
	}

	rows, err := s.readDB.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", table))
	if err != nil {
		return nil, fmt.Errorf("table schema: %w", err)
	}
	defer rows.Close()

	var cols []ColumnInfo
	for rows.Next() {
		var cid, notnull, pk int
		var name, ctype string
		var dflt *string
		if err := rows.Scan(&cid, &name, &ctype, &notnull, &dflt, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, ColumnInfo{
			Name: name, Type: ctype, NotNull: notnull != 0, DefaultValue: dflt, PrimaryKey: pk != 0,
		})
	}
	return cols, rows.Err()
}

// Stats reports row counts per table, the query facade's stats() operation.
func (s *Store) Stats(ctx context.Context) (map[string]int64, error) {
	tables, err := s.TableNames(ctx)
	if err != nil {
		return nil, err
	}
	out := make(map[string]int64, len(tables))
	for _, t := range tables {
		var count int64
		if err := s.readDB.QueryRowContext(ctx, fmt.Sprintf("SELECT COUNT(*) FROM %s", t)).Scan(&count); err != nil {
			return nil, fmt.Errorf("count %s: %w", t, err)
		}
		out[t] = count
	}
	return out, nil
}
