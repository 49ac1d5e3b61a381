// Package pipeline wires the Event Normalizer and Correlation Engine
// together into the Sync Scheduler's Sink: every batch of adapter records
// is normalized, persisted, and — for entries — run through correlation
// against captured prompts.
package pipeline

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sort"
	"strings"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/correlate"
	"github.com/untoldecay/icpc/internal/extractor"
	"github.com/untoldecay/icpc/internal/hooks"
	"github.com/untoldecay/icpc/internal/model"
	"github.com/untoldecay/icpc/internal/normalize"
	"github.com/untoldecay/icpc/internal/utils"
)

// Store is the slice of the Persistence Store the pipeline writes to,
// beyond what correlate.Store already covers.
type Store interface {
	correlate.Store
	SaveEntry(ctx context.Context, e model.Entry) error
	SavePrompt(ctx context.Context, p model.Prompt) error
	SaveTerminalCommand(ctx context.Context, c model.TerminalCommand) error
	SaveStatusMessage(ctx context.Context, m model.StatusMessage) error
	SaveEvent(ctx context.Context, e model.Event) error
}

// Pipeline implements scheduler.Sink.
type Pipeline struct {
	norm    *normalize.Normalizer
	engine  *correlate.Engine
	store   Store
	enrich  *correlate.Enricher
	hooks   *hooks.Runner
	extract *extractor.Pipeline
	log     *slog.Logger
}

// New constructs a Pipeline. enrich may be nil when enrichment is
// disabled; hookRunner may be nil when no hook is configured, in which
// case hook events are simply never fired; extract may be nil when
// event-entity-extraction is disabled, in which case historical commit
// events are saved with only their raw message.
func New(norm *normalize.Normalizer, engine *correlate.Engine, store Store, enrich *correlate.Enricher, hookRunner *hooks.Runner, extract *extractor.Pipeline, log *slog.Logger) *Pipeline {
	if log == nil {
		log = slog.Default()
	}
	return &Pipeline{norm: norm, engine: engine, store: store, enrich: enrich, hooks: hookRunner, extract: extract, log: log}
}

// Handle implements scheduler.Sink: normalize each record by kind, persist
// it, and run entry linking for anything that became an Entry.
func (p *Pipeline) Handle(ctx context.Context, source string, records []adapter.Record) error {
	for _, r := range records {
		if err := p.handleOne(ctx, r); err != nil {
			p.log.Warn("pipeline: record failed", "source", source, "kind", r.Kind, "error", err)
		}
	}
	return nil
}

func (p *Pipeline) handleOne(ctx context.Context, r adapter.Record) error {
	switch r.Kind {
	case adapter.KindEntry:
		entry, isDup := p.norm.NormalizeEntry(r)
		if isDup {
			return nil
		}
		if err := p.store.SaveEntry(ctx, entry); err != nil {
			return fmt.Errorf("save entry: %w", err)
		}
		if p.hooks != nil {
			p.hooks.Run(hooks.EventEntryCaptured, entry)
		}
		return p.linkEntry(ctx, entry)

	case adapter.KindPrompt:
		prompt, isDup := p.norm.NormalizePrompt(r)
		if isDup {
			return nil
		}
		if err := p.store.SavePrompt(ctx, prompt); err != nil {
			return fmt.Errorf("save prompt: %w", err)
		}
		return p.engine.AfterSavePrompt(ctx, prompt)

	case adapter.KindTerminalCommand:
		cmd := p.norm.NormalizeTerminalCommand(r)
		if err := p.store.SaveTerminalCommand(ctx, cmd); err != nil {
			return fmt.Errorf("save terminal command: %w", err)
		}
		return nil

	case adapter.KindStatusMessage:
		msg := p.norm.NormalizeStatusMessage(r)
		if err := p.store.SaveStatusMessage(ctx, msg); err != nil {
			return fmt.Errorf("save status message: %w", err)
		}
		return nil

	case adapter.KindEvent:
		details := map[string]any{"message": r.Text}
		if p.extract != nil {
			if result, err := p.extract.Run(ctx, r.Text); err == nil && len(result.Entities) > 0 {
				details["entities"] = result.Entities
				if len(result.Relationships) > 0 {
					details["relationships"] = result.Relationships
				}
			}
		}
		ev := model.Event{
			WorkspacePath: r.WorkspacePath,
			Timestamp:     r.Timestamp,
			Type:          "historical_commit",
			Details:       details,
		}
		if err := p.store.SaveEvent(ctx, ev); err != nil {
			return fmt.Errorf("save event: %w", err)
		}
		return nil

	default:
		return fmt.Errorf("unhandled record kind %q", r.Kind)
	}
}

// linkEntry runs correlation for a freshly saved entry, falling back to
// the optional Ollama enrichment pass only when the deterministic scorer
// lands at low/none confidence.
func (p *Pipeline) linkEntry(ctx context.Context, entry model.Entry) error {
	result, err := p.engine.LinkEntry(ctx, entry)
	if err != nil {
		return fmt.Errorf("link entry: %w", err)
	}
	if result.PromptID != nil && p.hooks != nil {
		p.hooks.Run(hooks.EventPromptLinked, map[string]any{
			"entry_id":   entry.ID,
			"prompt_id":  *result.PromptID,
			"confidence": result.Confidence,
		})
	}
	if p.enrich == nil || result.Confidence == model.ConfidenceHigh || result.Confidence == model.ConfidenceMedium {
		return nil
	}
	if !p.enrich.Available(ctx) {
		return nil
	}
	// Enrichment only ever raises confidence on entries the deterministic
	// scorer already gave up on; it never runs for high/medium links.
	candidates, err := p.store.CandidatePrompts(ctx, entry.WorkspacePath, correlate.DefaultWindow.Back, correlate.DefaultWindow.Forward, entry.Timestamp)
	if err != nil || len(candidates) == 0 {
		return nil
	}
	// Rank by fuzzy filename similarity before spending LLM calls: the
	// deterministic scorer already gave up, but a prompt whose text is a
	// near-miss for the entry's file name (renamed variable case, a typo)
	// is still worth asking Ollama about first.
	candidates = rankByFilenameSimilarity(entry, candidates)
	for _, cand := range candidates {
		match, confidence, err := p.enrich.Guess(ctx, entry, cand)
		if err != nil || !match {
			continue
		}
		level := model.ConfidenceLow
		if confidence >= 0.6 {
			level = model.ConfidenceMedium
		}
		if err := p.store.LinkEntryPrompt(ctx, entry.ID, cand.ID, level); err != nil {
			return err
		}
		if p.hooks != nil {
			p.hooks.Run(hooks.EventPromptLinked, map[string]any{
				"entry_id":   entry.ID,
				"prompt_id":  cand.ID,
				"confidence": level,
			})
		}
		return nil
	}
	return nil
}

// rankByFilenameSimilarity orders candidates so prompts whose text most
// plausibly references entry's file come first, using the same
// Levenshtein-distance/subsequence matching the teacher's fuzzy search
// used for issue-title lookups, re-homed onto entry/prompt candidate
// ordering ahead of the Ollama enrichment fallback.
func rankByFilenameSimilarity(entry model.Entry, candidates []model.Prompt) []model.Prompt {
	base := filepath.Base(entry.FilePath)
	ranked := make([]model.Prompt, len(candidates))
	copy(ranked, candidates)

	scores := make(map[int64]int, len(ranked))
	for _, cand := range ranked {
		if utils.FuzzyMatch(base, cand.Text) {
			scores[cand.ID] = 0
			continue
		}
		best := -1
		for _, word := range strings.Fields(cand.Text) {
			d := utils.ComputeDistance(base, word)
			if best == -1 || d < best {
				best = d
			}
		}
		if best == -1 {
			best = len(base) + len(cand.Text)
		}
		scores[cand.ID] = best
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return scores[ranked[i].ID] < scores[ranked[j].ID]
	})
	return ranked
}
