package main

import (
	"path/filepath"
	"strings"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/config"
	"github.com/untoldecay/icpc/internal/redact"
)

// buildAdapters constructs the Source Adapter set from resolved
// configuration. Each adapter is independently optional: a misconfigured
// or absent source (no editor DB found, no history files configured) is
// simply omitted rather than failing daemon startup, matching "errors
// from one adapter must never prevent peers from running" at the
// configuration stage too.
func buildAdapters(workspace string, policy *redact.Policy) []adapter.Adapter {
	var adapters []adapter.Adapter

	if editorDBPath := config.GetString("editor-db-path"); editorDBPath != "" {
		adapters = append(adapters, adapter.NewEditorDBReader(editorDBPath, workspace, policy))
	}

	if roots := config.GetStringSlice("workspace-roots"); len(roots) > 0 {
		adapters = append(adapters, adapter.NewFileWatcher(roots, policy))
		for _, root := range roots {
			adapters = append(adapters, adapter.NewHistoricalMiner(root, workspace))
		}
	} else {
		adapters = append(adapters, adapter.NewFileWatcher([]string{workspace}, policy))
		adapters = append(adapters, adapter.NewHistoricalMiner(workspace, workspace))
	}

	if config.GetBool("clipboard.enabled") {
		adapters = append(adapters, adapter.NewClipboardPoller(workspace, policy))
	}

	if files := historyFiles(config.GetStringSlice("history-files")); len(files) > 0 {
		adapters = append(adapters, adapter.NewShellHistoryMiner(files, workspace))
	}

	// No interactive UI to sample status text from in a headless daemon;
	// the sampler is a placeholder hook future front-ends (icpcctl watch,
	// an editor extension) can wire a real StatusSampler into.
	adapters = append(adapters, adapter.NewStatusTracker(workspace, func() (string, error) { return "", nil }))

	return adapters
}

// historyFiles pairs each configured path with a shell guessed from its
// filename, per spec.md §6's history_files option.
func historyFiles(paths []string) []adapter.HistoryFile {
	files := make([]adapter.HistoryFile, 0, len(paths))
	for _, p := range paths {
		base := strings.ToLower(filepath.Base(p))
		shell := "sh"
		switch {
		case strings.Contains(base, "zsh"):
			shell = "zsh"
		case strings.Contains(base, "bash"):
			shell = "bash"
		}
		files = append(files, adapter.HistoryFile{Path: p, Shell: shell})
	}
	return files
}

// adapterCadence returns the per-adapter poll cadence the Sync Scheduler
// should use, falling back to sync-interval-ms for anything without a
// more specific config key.
func adapterCadence(a adapter.Adapter) string {
	switch a.Name() {
	case "clipboard":
		return "clipboard.poll-interval"
	case "statustracker":
		return "status.poll-interval"
	case "filewatcher":
		return "watcher.fallback-poll-interval"
	default:
		return ""
	}
}
