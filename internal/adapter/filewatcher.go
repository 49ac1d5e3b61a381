package adapter

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/redact"
	"github.com/untoldecay/icpc/internal/scheduler"
)

// FileWatcher observes a set of workspace roots for file edits, emitting a
// Record per mutation with a best-effort pre-image taken from its own
// in-memory cache of the last seen content. Falls back to polling when
// fsnotify can't be initialized, matching the teacher's daemon watcher.
type FileWatcher struct {
	roots        []string
	watcher      *fsnotify.Watcher
	debouncer    *scheduler.Debouncer
	pollingMode  bool
	pollInterval time.Duration
	redactor     *redact.Policy

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu          sync.Mutex
	pending     map[string]time.Time // file path -> last change time
	lastContent map[string]string    // best-effort pre-image cache
	mtimes      map[string]time.Time // polling-mode last known mtimes
}

// NewFileWatcher constructs a watcher over the given roots. policy may be
// nil, in which case redaction is skipped.
func NewFileWatcher(roots []string, policy *redact.Policy) *FileWatcher {
	return &FileWatcher{
		roots:        roots,
		pollInterval: 5 * time.Second,
		redactor:     policy,
		pending:      make(map[string]time.Time),
		lastContent:  make(map[string]string),
		mtimes:       make(map[string]time.Time),
	}
}

func (fw *FileWatcher) Name() string { return "filewatcher" }

// Start installs the fsnotify watch (or the polling fallback) and begins
// queuing change notifications for Poll to drain. Errors from individual
// root watches are logged and tolerated; total failure to construct a
// watcher triggers the polling fallback, controllable via
// ICPC_WATCHER_FALLBACK the same way the teacher's BEADS_WATCHER_FALLBACK
// env var works.
func (fw *FileWatcher) Start(ctx context.Context, cadence time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	fw.cancel = cancel
	fw.debouncer = scheduler.NewDebouncer(cadence, fw.flush)

	fallbackEnv := os.Getenv("ICPC_WATCHER_FALLBACK")
	fallbackDisabled := fallbackEnv == "false" || fallbackEnv == "0"

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		if fallbackDisabled {
			return fmt.Errorf("fsnotify.NewWatcher failed and ICPC_WATCHER_FALLBACK disabled: %w", err)
		}
		fw.pollingMode = true
		fw.startPolling(ctx)
		return nil
	}
	fw.watcher = watcher

	for _, root := range fw.roots {
		if err := watcher.Add(root); err != nil {
			fmt.Fprintf(os.Stderr, "filewatcher: failed to watch %s: %v\n", root, err)
		}
	}

	fw.wg.Add(1)
	go fw.eventLoop(ctx)
	return nil
}

func (fw *FileWatcher) eventLoop(ctx context.Context) {
	defer fw.wg.Done()
	for {
		select {
		case event, ok := <-fw.watcher.Events:
			if !ok {
				return
			}
			if event.Op&(fsnotify.Write|fsnotify.Create|fsnotify.Chmod) != 0 {
				info, err := os.Stat(event.Name)
				if err != nil || info.IsDir() {
					continue
				}
				fw.mu.Lock()
				fw.pending[event.Name] = time.Now()
				fw.mu.Unlock()
				fw.debouncer.Trigger()
			}
		case _, ok := <-fw.watcher.Errors:
			if !ok {
				return
			}
		case <-ctx.Done():
			return
		}
	}
}

func (fw *FileWatcher) startPolling(ctx context.Context) {
	ticker := time.NewTicker(fw.pollInterval)
	fw.wg.Add(1)
	go func() {
		defer fw.wg.Done()
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				fw.pollOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
}

func (fw *FileWatcher) pollOnce() {
	for _, root := range fw.roots {
		_ = filepath.Walk(root, func(path string, info os.FileInfo, err error) error {
			if err != nil || info.IsDir() {
				return nil
			}
			fw.mu.Lock()
			last, seen := fw.mtimes[path]
			changed := !seen || info.ModTime().After(last)
			fw.mtimes[path] = info.ModTime()
			if changed {
				fw.pending[path] = time.Now()
			}
			fw.mu.Unlock()
			if changed {
				fw.flush()
			}
			return nil
		})
	}
}

// flush is the debounce callback; it exists only to give Poll something to
// mark as "noticed" — the actual draining happens in Poll itself, keeping
// Adapter.Poll the single place Records are constructed.
func (fw *FileWatcher) flush() {}

// Poll drains pending file changes observed since the cursor's timestamp
// and returns one Record per file, with the best-effort pre-image pulled
// from the in-process content cache.
func (fw *FileWatcher) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	fw.mu.Lock()
	paths := make([]string, 0, len(fw.pending))
	for p, t := range fw.pending {
		if t.After(since.Timestamp) {
			paths = append(paths, p)
		}
	}
	for _, p := range paths {
		delete(fw.pending, p)
	}
	fw.mu.Unlock()

	next := since
	var records []Record
	for _, path := range paths {
		data, err := os.ReadFile(path)
		if err != nil {
			continue
		}
		after := string(data)
		fw.mu.Lock()
		before := fw.lastContent[path]
		fw.lastContent[path] = after
		fw.mu.Unlock()

		if fw.redactor != nil {
			if red, applied := fw.redactor.Apply(after); applied {
				after = red
			}
			if red, applied := fw.redactor.Apply(before); applied {
				before = red
			}
		}

		ts := time.Now()
		records = append(records, Record{
			Kind:          KindEntry,
			Source:        string(model.SourceFilewatcher),
			WorkspacePath: rootForPath(fw.roots, path),
			FilePath:      path,
			BeforeCode:    before,
			AfterCode:     after,
			Timestamp:     ts,
		})
		if ts.After(next.Timestamp) {
			next.Timestamp = ts
		}
	}
	return records, next, nil
}

func (fw *FileWatcher) Stop() error {
	if fw.cancel != nil {
		fw.cancel()
	}
	fw.wg.Wait()
	if fw.debouncer != nil {
		fw.debouncer.Cancel()
	}
	if fw.watcher != nil {
		return fw.watcher.Close()
	}
	return nil
}

func rootForPath(roots []string, path string) string {
	for _, r := range roots {
		if rel, err := filepath.Rel(r, path); err == nil && rel != ".." && len(rel) > 0 && rel[0] != '.' {
			return r
		}
	}
	if len(roots) > 0 {
		return roots[0]
	}
	return ""
}
