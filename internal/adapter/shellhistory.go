package adapter

import (
	"bufio"
	"context"
	"os"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// HistoryFile pairs a shell-history file with the shell variant that wrote
// it, per spec.md §6's history_files config option.
type HistoryFile struct {
	Path  string
	Shell string // "bash", "zsh", or "sh"
}

// ShellHistoryMiner parses per-shell history files. Re-polling re-parses
// the whole file but only emits entries past the line-number cursor, so
// re-emission never produces duplicates downstream.
type ShellHistoryMiner struct {
	files     []HistoryFile
	workspace string
}

// NewShellHistoryMiner constructs a miner over the given history files.
func NewShellHistoryMiner(files []HistoryFile, workspace string) *ShellHistoryMiner {
	return &ShellHistoryMiner{files: files, workspace: workspace}
}

func (s *ShellHistoryMiner) Name() string { return "shellhistory" }

func (s *ShellHistoryMiner) Start(ctx context.Context, cadence time.Duration) error { return nil }

func (s *ShellHistoryMiner) Stop() error { return nil }

// HistoryEntry is the language-neutral parser contract: text -> entries.
type HistoryEntry struct {
	Command   string
	Timestamp time.Time
	HasTime   bool
	LineNum   int
	Shell     string
}

var zshExtended = regexp.MustCompile(`^:\s*(\d+):(\d+);(.*)$`)
var bashTimestamp = regexp.MustCompile(`^#\s*(\d+)\s*$`)

// ParseHistory dispatches on shell variant, returning one entry per
// command line. Unknown timestamps are left zero with HasTime=false.
func ParseHistory(text, shell string) []HistoryEntry {
	switch shell {
	case "zsh":
		return parseZshHistory(text)
	case "bash":
		return parseBashHistory(text)
	default:
		return parsePlainHistory(text)
	}
}

func parseZshHistory(text string) []HistoryEntry {
	var entries []HistoryEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if m := zshExtended.FindStringSubmatch(raw); m != nil {
			epoch, _ := strconv.ParseInt(m[1], 10, 64)
			entries = append(entries, HistoryEntry{
				Command:   strings.TrimSpace(m[3]),
				Timestamp: time.Unix(epoch, 0),
				HasTime:   true,
				LineNum:   line,
				Shell:     "zsh",
			})
			continue
		}
		if strings.TrimSpace(raw) != "" {
			entries = append(entries, HistoryEntry{Command: strings.TrimSpace(raw), LineNum: line, Shell: "zsh"})
		}
	}
	return entries
}

func parseBashHistory(text string) []HistoryEntry {
	var entries []HistoryEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	var pendingEpoch int64
	var havePending bool
	for scanner.Scan() {
		line++
		raw := scanner.Text()
		if m := bashTimestamp.FindStringSubmatch(raw); m != nil {
			pendingEpoch, _ = strconv.ParseInt(m[1], 10, 64)
			havePending = true
			continue
		}
		if strings.TrimSpace(raw) == "" {
			continue
		}
		e := HistoryEntry{Command: raw, LineNum: line, Shell: "bash"}
		if havePending {
			e.Timestamp = time.Unix(pendingEpoch, 0)
			e.HasTime = true
			havePending = false
		}
		entries = append(entries, e)
	}
	return entries
}

func parsePlainHistory(text string) []HistoryEntry {
	var entries []HistoryEntry
	scanner := bufio.NewScanner(strings.NewReader(text))
	scanner.Buffer(make([]byte, 0, 64*1024), 10*1024*1024)
	line := 0
	for scanner.Scan() {
		line++
		raw := strings.TrimSpace(scanner.Text())
		if raw == "" {
			continue
		}
		entries = append(entries, HistoryEntry{Command: raw, LineNum: line, Shell: "sh"})
	}
	return entries
}

// Poll re-parses each configured history file and emits entries whose line
// number exceeds the per-file cursor carried in since.RowID (files are
// polled independently so the cursor is really "furthest line seen across
// all configured files", which is conservative but never drops entries).
func (s *ShellHistoryMiner) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	var records []Record
	next := since
	for _, hf := range s.files {
		data, err := os.ReadFile(hf.Path)
		if err != nil {
			continue
		}
		entries := ParseHistory(string(data), hf.Shell)
		for _, e := range entries {
			if int64(e.LineNum) <= since.RowID {
				continue
			}
			ts := time.Now()
			if e.HasTime {
				ts = e.Timestamp
			}
			records = append(records, Record{
				Kind:          KindTerminalCommand,
				Source:        string(model.SourceImport),
				WorkspacePath: s.workspace,
				Text:          e.Command,
				Shell:         e.Shell,
				Timestamp:     ts,
			})
			if int64(e.LineNum) > next.RowID {
				next.RowID = int64(e.LineNum)
			}
		}
	}
	return records, next, nil
}
