// Package query implements the read-only Query Facade: every operation a
// control-protocol client or icpcctl command issues against the
// Persistence Store, fronted by a small per-key TTL cache. The cache is
// the one ambient concern SPEC_FULL.md carries on the standard library
// alone — the corpus's caching dependencies (e.g. ristretto-class LRUs)
// are sized for much larger working sets than a handful of list queries
// with a TTL of tens of seconds, so a minimal sync.Mutex+map is the proportionate
// tool here rather than importing a dependency to avoid one.
package query

import (
	"context"
	"sync"
	"time"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/storage/sqlite"
)

// Store is the slice of the Persistence Store the facade reads from.
type Store interface {
	RecentEntries(ctx context.Context, limit, offset int) ([]model.Entry, error)
	EntriesInTimeRange(ctx context.Context, from, to time.Time, limit, offset int) ([]model.Entry, error)
	EntriesWithCode(ctx context.Context, limit, offset int) ([]model.Entry, error)
	EntriesWithPrompts(ctx context.Context, limit, offset int) ([]model.Entry, []model.Prompt, error)
	RecentPrompts(ctx context.Context, limit, offset int) ([]model.Prompt, error)
	PromptsWithEntries(ctx context.Context, limit, offset int) ([]model.Prompt, []model.Entry, error)
	ConversationsByWorkspace(ctx context.Context, workspace string, limit, offset int) ([]model.Conversation, error)
	GetConversation(ctx context.Context, id string) (model.Conversation, bool, error)
	RecentEvents(ctx context.Context, limit, offset int) ([]model.Event, error)
	RecentTerminalCommands(ctx context.Context, limit, offset int) ([]model.TerminalCommand, error)
	RecentStatusMessages(ctx context.Context, limit, offset int) ([]model.StatusMessage, error)
	RecentTodos(ctx context.Context, workspace string, limit, offset int) ([]model.Todo, error)
	Stats(ctx context.Context) (map[string]int64, error)
	TableNames(ctx context.Context) ([]string, error)
	TableSchema(ctx context.Context, table string) ([]sqlite.ColumnInfo, error)
	Validate(ctx context.Context) (sqlite.ValidationReport, error)
}

// DefaultTTL is how long a cached result is served before the underlying
// query runs again.
const DefaultTTL = 30 * time.Second

// Facade is the read-only query surface. It never mutates the store, so
// its cache never needs invalidating on write — only aging out.
type Facade struct {
	store Store
	ttl   time.Duration

	mu    sync.Mutex
	cache map[string]cacheEntry
}

type cacheEntry struct {
	value   any
	expires time.Time
}

// New constructs a Facade over store with the given cache TTL (DefaultTTL
// if zero).
func New(store Store, ttl time.Duration) *Facade {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Facade{store: store, ttl: ttl, cache: make(map[string]cacheEntry)}
}

func cached[T any](f *Facade, key string, load func() (T, error)) (T, error) {
	f.mu.Lock()
	if entry, ok := f.cache[key]; ok && time.Now().Before(entry.expires) {
		f.mu.Unlock()
		return entry.value.(T), nil
	}
	f.mu.Unlock()

	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}

	f.mu.Lock()
	f.cache[key] = cacheEntry{value: v, expires: time.Now().Add(f.ttl)}
	f.mu.Unlock()
	return v, nil
}
