package adapter

import (
	"context"
	"strings"
	"sync"
	"time"
	"unicode"

	"github.com/atotto/clipboard"

	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/redact"
)

// ClipboardPoller samples the system clipboard on a ticker and emits a
// Record when the content changes and looks like prompt text rather than
// an arbitrary copy (a path, a single token, a screenshot placeholder).
type ClipboardPoller struct {
	workspace string
	redactor  *redact.Policy
	interval  time.Duration

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	last    string
	pending []Record
	seen    map[string]time.Time // sliding-window dedup
}

// NewClipboardPoller constructs a poller scoped to workspace (used only to
// stamp records; the clipboard itself is a single host-wide resource).
func NewClipboardPoller(workspace string, policy *redact.Policy) *ClipboardPoller {
	return &ClipboardPoller{
		workspace: workspace,
		redactor:  policy,
		interval:  time.Second,
		seen:      make(map[string]time.Time),
	}
}

func (c *ClipboardPoller) Name() string { return "clipboard" }

func (c *ClipboardPoller) Start(ctx context.Context, cadence time.Duration) error {
	if cadence > 0 {
		c.interval = cadence
	}
	ctx, cancel := context.WithCancel(ctx)
	c.cancel = cancel
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		ticker := time.NewTicker(c.interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				c.sample()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

const dedupWindow = 2 * time.Minute

func (c *ClipboardPoller) sample() {
	text, err := clipboard.ReadAll()
	if err != nil || text == "" {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if text == c.last {
		return
	}
	c.last = text
	now := time.Now()
	for k, t := range c.seen {
		if now.Sub(t) > dedupWindow {
			delete(c.seen, k)
		}
	}
	if _, dup := c.seen[text]; dup {
		return
	}
	if !looksLikePromptText(text) {
		return
	}
	c.seen[text] = now

	redacted, applied := text, false
	if c.redactor != nil {
		redacted, applied = c.redactor.Apply(text)
	}

	c.pending = append(c.pending, Record{
		Kind:          KindPrompt,
		Source:        string(model.SourceClipboard),
		WorkspacePath: c.workspace,
		Text:          redacted,
		Timestamp:     now,
		Stats:         map[string]any{"redactionApplied": applied},
	})
}

// looksLikePromptText applies the heuristics spec.md §4.1 calls for:
// length, newline density, presence of natural language.
func looksLikePromptText(s string) bool {
	if len(s) < 8 || len(s) > 20000 {
		return false
	}
	words := strings.Fields(s)
	if len(words) < 2 {
		return false
	}
	letters, total := 0, 0
	for _, r := range s {
		total++
		if unicode.IsLetter(r) || unicode.IsSpace(r) {
			letters++
		}
	}
	if total == 0 || float64(letters)/float64(total) < 0.6 {
		return false
	}
	newlines := strings.Count(s, "\n")
	if newlines > len(words) {
		// mostly blank lines, unlikely to be prose
		return false
	}
	return true
}

func (c *ClipboardPoller) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Record
	next := since
	remaining := c.pending[:0]
	for _, r := range c.pending {
		if r.Timestamp.After(since.Timestamp) {
			out = append(out, r)
			if r.Timestamp.After(next.Timestamp) {
				next.Timestamp = r.Timestamp
			}
		} else {
			remaining = append(remaining, r)
		}
	}
	c.pending = remaining
	return out, next, nil
}

func (c *ClipboardPoller) Stop() error {
	if c.cancel != nil {
		c.cancel()
	}
	c.wg.Wait()
	return nil
}
