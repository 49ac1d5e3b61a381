package query

import (
	"context"
	"fmt"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/storage/sqlite"
)

// RecentEvents returns the most recent free-form events.
func (f *Facade) RecentEvents(ctx context.Context, limit, offset int) ([]model.Event, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("recent_events:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.Event, error) {
		return f.store.RecentEvents(ctx, limit, offset)
	})
}

// RecentTerminalCommands returns the most recent observed shell invocations.
func (f *Facade) RecentTerminalCommands(ctx context.Context, limit, offset int) ([]model.TerminalCommand, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("recent_terminal:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.TerminalCommand, error) {
		return f.store.RecentTerminalCommands(ctx, limit, offset)
	})
}

// RecentStatusMessages returns the most recent classified status messages.
func (f *Facade) RecentStatusMessages(ctx context.Context, limit, offset int) ([]model.StatusMessage, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("recent_status:%d:%d", limit, offset)
	return cached(f, key, func() ([]model.StatusMessage, error) {
		return f.store.RecentStatusMessages(ctx, limit, offset)
	})
}

// RecentTodos returns todos for a workspace in their declared order.
func (f *Facade) RecentTodos(ctx context.Context, workspace string, limit, offset int) ([]model.Todo, error) {
	limit, offset = clampPage(limit, offset)
	key := fmt.Sprintf("todos:%s:%d:%d", workspace, limit, offset)
	return cached(f, key, func() ([]model.Todo, error) {
		return f.store.RecentTodos(ctx, workspace, limit, offset)
	})
}

// Stats returns row counts per table.
func (f *Facade) Stats(ctx context.Context) (map[string]int64, error) {
	return cached(f, "stats", func() (map[string]int64, error) {
		return f.store.Stats(ctx)
	})
}

// Schema lists every table name in the store.
func (f *Facade) Schema(ctx context.Context) ([]string, error) {
	return cached(f, "schema", func() ([]string, error) {
		return f.store.TableNames(ctx)
	})
}

// TableSchema returns column metadata for one table.
func (f *Facade) TableSchema(ctx context.Context, table string) ([]sqlite.ColumnInfo, error) {
	key := fmt.Sprintf("table_schema:%s", table)
	return cached(f, key, func() ([]sqlite.ColumnInfo, error) {
		return f.store.TableSchema(ctx, table)
	})
}

// Validate runs the store's read-only integrity sweep, bypassing the
// cache — a caller invoking this explicitly wants a fresh read, not a
// stale cached report of a corruption check.
func (f *Facade) Validate(ctx context.Context) (sqlite.ValidationReport, error) {
	return f.store.Validate(ctx)
}
