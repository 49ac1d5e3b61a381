// Package correlate implements the Correlation Engine: entry↔prompt
// linking, conversation assignment, session id derivation (owned by
// normalize, reused here), and context-change derivation.
package correlate

import (
	"math"
	"path/filepath"
	"strings"
	"time"

	"github.com/untoldecay/icpc/internal/model"
)

// Window holds the correlation engine's tunable time window, exposed in
// config per spec.md's Open Questions resolution: these are not hardcoded
// constants, they are config-driven with the documented defaults.
type Window struct {
	Back    time.Duration // default 5 min
	Forward time.Duration // default 30 s
}

// DefaultWindow matches spec.md §4.3's literal defaults.
var DefaultWindow = Window{Back: 5 * time.Minute, Forward: 30 * time.Second}

const decayTau = 60 * time.Second

// Weights for the scoring formula; documented here because the source
// system carries them as unlabeled magic numbers (spec.md §9 Open
// Questions: thresholds are a design choice and must be documented).
const (
	weightTemporal      = 0.5
	weightWorkspace     = 0.2
	weightFileMention   = 0.2
	weightContextFile   = 0.1
)

// Thresholds are var, not const, so SetThresholds can apply the
// correlation.high-threshold/medium-threshold/low-threshold config keys at
// startup; the literals here are spec.md §4.3's documented defaults.
var (
	thresholdHigh   = 0.75
	thresholdMedium = 0.45
	thresholdLow    = 0.2
)

// SetThresholds overrides the classification cutoffs. Zero values are
// ignored so a partially-set config can't zero out a threshold.
func SetThresholds(high, medium, low float64) {
	if high > 0 {
		thresholdHigh = high
	}
	if medium > 0 {
		thresholdMedium = medium
	}
	if low > 0 {
		thresholdLow = low
	}
}

// Candidate is a Prompt considered for linking against a particular Entry.
type Candidate struct {
	Prompt model.Prompt
	Score  float64
}

// Score computes the weighted correlation score between entry e and
// prompt p exactly as spec.md §4.3 step 2 defines it.
func Score(e model.Entry, p model.Prompt) float64 {
	dt := e.Timestamp.Sub(p.Timestamp)
	if dt < 0 {
		dt = -dt
	}
	score := weightTemporal * math.Exp(-dt.Seconds()/decayTau.Seconds())

	if e.WorkspacePath != "" && e.WorkspacePath == p.Workspace.Path {
		score += weightWorkspace
	}

	if mentionsFile(p.Text, e.FilePath) {
		score += weightFileMention
	}

	if containsFile(p.ContextFiles, e.FilePath) {
		score += weightContextFile
	}

	return score
}

func mentionsFile(text, filePath string) bool {
	if filePath == "" {
		return false
	}
	base := filepath.Base(filePath)
	return strings.Contains(text, filePath) || strings.Contains(text, base)
}

func containsFile(files []string, filePath string) bool {
	for _, f := range files {
		if f == filePath {
			return true
		}
	}
	return false
}

// Classify maps a raw score to a Confidence label per the documented
// cutoffs (0.75/0.45/0.2).
func Classify(score float64) model.Confidence {
	switch {
	case score >= thresholdHigh:
		return model.ConfidenceHigh
	case score >= thresholdMedium:
		return model.ConfidenceMedium
	case score >= thresholdLow:
		return model.ConfidenceLow
	default:
		return model.ConfidenceNone
	}
}

// LinkResult is the outcome of attempting to link an Entry to a Prompt.
type LinkResult struct {
	PromptID   *int64
	Confidence model.Confidence
}

// Link selects the best candidate prompt for entry e from candidates
// already filtered to the correlation window and workspace, per spec.md
// §4.3 steps 2-5 (scoring, classification, and tie-breaking).
func Link(e model.Entry, candidates []model.Prompt) LinkResult {
	if len(candidates) == 0 {
		return LinkResult{Confidence: model.ConfidenceNone}
	}

	var best model.Prompt
	bestScore := -1.0
	tie := false

	for _, p := range candidates {
		s := Score(e, p)
		switch {
		case s > bestScore:
			bestScore = s
			best = p
			tie = false
		case s == bestScore:
			// Tie-break (b): closest in time.
			if absDur(e.Timestamp.Sub(p.Timestamp)) < absDur(e.Timestamp.Sub(best.Timestamp)) {
				best = p
				tie = false
			} else if absDur(e.Timestamp.Sub(p.Timestamp)) == absDur(e.Timestamp.Sub(best.Timestamp)) {
				// Tie-break (c): earliest id; exact ties on both score and
				// time skip linking per spec.md §4.3 step 5.
				if p.ID < best.ID {
					best = p
				} else if p.ID == best.ID {
					continue
				}
				tie = true
			}
		}
	}

	confidence := Classify(bestScore)
	if tie {
		return LinkResult{Confidence: model.ConfidenceNone}
	}
	if confidence == model.ConfidenceHigh || confidence == model.ConfidenceMedium {
		id := best.ID
		return LinkResult{PromptID: &id, Confidence: confidence}
	}
	return LinkResult{Confidence: confidence}
}

func absDur(d time.Duration) time.Duration {
	if d < 0 {
		return -d
	}
	return d
}

// InWindow reports whether prompt timestamp pt falls within the
// correlation window around entry timestamp et.
func InWindow(et, pt time.Time, w Window) bool {
	delta := et.Sub(pt)
	if delta >= 0 {
		return delta <= w.Back
	}
	return -delta <= w.Forward
}
