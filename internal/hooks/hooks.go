// Package hooks runs user-provided executable scripts in response to
// pipeline events, generalized from the teacher's issue-lifecycle hook
// runner onto ICPC's ingestion events: a new entry captured, an entry
// linked to a prompt, and a retention cleanup run.
package hooks

import (
	"os"
	"path/filepath"
	"time"
)

// Event types the pipeline and daemon fire hooks for.
const (
	EventEntryCaptured = "entry_captured"
	EventPromptLinked  = "prompt_linked"
	EventCleanupRan    = "cleanup_ran"
)

// Hook file names, one per event, looked up under the runner's hooks
// directory.
const (
	HookOnEntry   = "on_entry"
	HookOnLink    = "on_link"
	HookOnCleanup = "on_cleanup"
)

// Runner executes hook scripts for pipeline events.
type Runner struct {
	hooksDir string
	timeout  time.Duration
}

// NewRunner creates a new hook runner rooted at hooksDir.
func NewRunner(hooksDir string) *Runner {
	return &Runner{
		hooksDir: hooksDir,
		timeout:  10 * time.Second,
	}
}

// NewRunnerFromDataDir creates a hook runner for a daemon's data
// directory, typically <workspace>/.icpc/hooks.
func NewRunnerFromDataDir(dataDir string) *Runner {
	return NewRunner(filepath.Join(dataDir, "hooks"))
}

// Run executes a hook if it exists, asynchronously: Run returns
// immediately and the hook runs in the background. payload is marshaled
// to JSON and piped to the hook's stdin.
func (r *Runner) Run(event string, payload any) {
	hookPath, ok := r.resolve(event)
	if !ok {
		return
	}
	go func() {
		_ = r.runHook(hookPath, event, payload)
	}()
}

// RunSync executes a hook synchronously and returns any error, for
// callers that want to log a hook failure rather than silently drop it.
func (r *Runner) RunSync(event string, payload any) error {
	hookPath, ok := r.resolve(event)
	if !ok {
		return nil
	}
	return r.runHook(hookPath, event, payload)
}

// HookExists reports whether an executable hook is configured for event.
func (r *Runner) HookExists(event string) bool {
	_, ok := r.resolve(event)
	return ok
}

// resolve maps event to its hook file path, returning ok=false when the
// event is unknown or the hook file doesn't exist/isn't executable.
func (r *Runner) resolve(event string) (string, bool) {
	hookName := eventToHook(event)
	if hookName == "" {
		return "", false
	}
	hookPath := filepath.Join(r.hooksDir, hookName)
	info, err := os.Stat(hookPath)
	if err != nil || info.IsDir() {
		return "", false
	}
	if info.Mode()&0111 == 0 {
		return "", false
	}
	return hookPath, true
}

func eventToHook(event string) string {
	switch event {
	case EventEntryCaptured:
		return HookOnEntry
	case EventPromptLinked:
		return HookOnLink
	case EventCleanupRan:
		return HookOnCleanup
	default:
		return ""
	}
}
