package adapter

import (
	"context"
	"regexp"
	"sync"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// StatusSampler is injected by the caller since reading the real editor UI
// status string requires a host/editor-specific accessibility bridge that
// is out of repo scope; this adapter owns only the sampling cadence,
// debounce-of-repeats, and classification.
type StatusSampler func() (string, error)

// StatusTracker samples a host status string and classifies it into one of
// the 8 action kinds via the same regex-dispatch idiom the teacher's
// extractor package uses for entity classification.
type StatusTracker struct {
	sample    StatusSampler
	workspace string

	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu      sync.Mutex
	lastRaw string
	pending []Record
}

// NewStatusTracker constructs a tracker over the given sampler.
func NewStatusTracker(workspace string, sample StatusSampler) *StatusTracker {
	return &StatusTracker{workspace: workspace, sample: sample}
}

func (st *StatusTracker) Name() string { return "statustracker" }

func (st *StatusTracker) Start(ctx context.Context, cadence time.Duration) error {
	ctx, cancel := context.WithCancel(ctx)
	st.cancel = cancel
	st.wg.Add(1)
	go func() {
		defer st.wg.Done()
		ticker := time.NewTicker(cadence)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				st.sampleOnce()
			case <-ctx.Done():
				return
			}
		}
	}()
	return nil
}

func (st *StatusTracker) sampleOnce() {
	if st.sample == nil {
		return
	}
	raw, err := st.sample()
	if err != nil || raw == "" {
		return
	}
	st.mu.Lock()
	defer st.mu.Unlock()
	if raw == st.lastRaw {
		return
	}
	st.lastRaw = raw
	action, detail := ClassifyStatus(raw)
	st.pending = append(st.pending, Record{
		Kind:          KindStatusMessage,
		Source:        string(model.SourceImport),
		WorkspacePath: st.workspace,
		RawStatus:     raw,
		Text:          detail,
		Timestamp:     time.Now(),
		Stats:         map[string]any{"action": string(action)},
	})
}

// statusPattern pairs a regex with the action kind it implies; matched in
// order, first match wins.
type statusPattern struct {
	action model.StatusAction
	re     *regexp.Regexp
}

var statusPatterns = []statusPattern{
	{model.ActionFileRead, regexp.MustCompile(`(?i)\b(reading|viewing|opened)\b.*\bfile\b|\.\w{1,6}$`)},
	{model.ActionPlanning, regexp.MustCompile(`(?i)\b(planning|plan|outlining)\b`)},
	{model.ActionAnalysis, regexp.MustCompile(`(?i)\b(analyz(e|ing)|inspecting|reviewing)\b`)},
	{model.ActionSearching, regexp.MustCompile(`(?i)\b(search(ing)?|grep|find(ing)?)\b`)},
	{model.ActionGenerating, regexp.MustCompile(`(?i)\b(generat(e|ing)|writing|drafting)\b`)},
	{model.ActionThinking, regexp.MustCompile(`(?i)\b(thinking|reasoning|considering)\b`)},
	{model.ActionProcessing, regexp.MustCompile(`(?i)\b(processing|running|executing|building)\b`)},
}

// ClassifyStatus maps a raw editor status string to one of the 8 action
// kinds spec.md §4.1 names, falling back to the generic "status" kind.
func ClassifyStatus(raw string) (model.StatusAction, string) {
	for _, p := range statusPatterns {
		if p.re.MatchString(raw) {
			return p.action, raw
		}
	}
	return model.ActionStatus, raw
}

func (st *StatusTracker) Poll(ctx context.Context, since Cursor) ([]Record, Cursor, error) {
	st.mu.Lock()
	defer st.mu.Unlock()
	var out []Record
	next := since
	var remaining []Record
	for _, r := range st.pending {
		if r.Timestamp.After(since.Timestamp) {
			out = append(out, r)
			if r.Timestamp.After(next.Timestamp) {
				next.Timestamp = r.Timestamp
			}
		} else {
			remaining = append(remaining, r)
		}
	}
	st.pending = remaining
	return out, next, nil
}

func (st *StatusTracker) Stop() error {
	if st.cancel != nil {
		st.cancel()
	}
	st.wg.Wait()
	return nil
}
