package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/untoldecay/icpc/internal/adapter"
	"github.com/untoldecay/icpc/internal/compact"
	"github.com/untoldecay/icpc/internal/config"
	"github.com/untoldecay/icpc/internal/correlate"
	"github.com/untoldecay/icpc/internal/extractor"
	"github.com/untoldecay/icpc/internal/hooks"
	"github.com/untoldecay/icpc/internal/normalize"
	"github.com/untoldecay/icpc/internal/pipeline"
	"github.com/untoldecay/icpc/internal/query"
	"github.com/untoldecay/icpc/internal/redact"
	"github.com/untoldecay/icpc/internal/registry"
	"github.com/untoldecay/icpc/internal/rpc"
	"github.com/untoldecay/icpc/internal/scheduler"
	"github.com/untoldecay/icpc/internal/storage/sqlite"
)

// daemonSignals are the OS signals runDaemon treats as a graceful-shutdown
// request, matching the teacher's daemon signal set.
var daemonSignals = []os.Signal{syscall.SIGINT, syscall.SIGTERM}

// runDaemon wires Source Adapters -> Sync Scheduler -> Pipeline
// (Normalizer + Correlation Engine) -> Persistence Store, plus the Query
// Facade and control-protocol Server reading back out of the same store,
// and runs until it receives a shutdown signal, a fatal component error,
// or ctx is canceled.
func runDaemon(ctx context.Context, workspace, dataDir string, foreground bool) error {
	log := newDaemonLogger(dataDir, config.GetString("log-level"), foreground)

	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}

	socketPath := rpc.SocketPath(dataDir, workspace)

	reg := registry.New(dataDir)
	release, err := reg.Acquire(registry.Instance{
		WorkspacePath: workspace,
		PID:           os.Getpid(),
		SocketPath:    socketPath,
		DBPath:        sqlite.DefaultPath(dataDir),
	})
	if err != nil {
		return fmt.Errorf("acquire instance registry lock: %w", err)
	}
	defer release()

	var journalPath string
	if config.GetBool("journal.enabled") {
		journalPath = filepath.Join(dataDir, "journal.jsonl")
	}
	store, err := sqlite.Open(sqlite.DefaultPath(dataDir), sqlite.Options{JournalPath: journalPath})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer store.Close()

	policy := redact.NewPolicy(config.GetBool("pii-redaction.enabled"))
	redact.SetEntropyThreshold(config.GetFloat64("pii-redaction.entropy-threshold"))
	correlate.SetThresholds(
		config.GetFloat64("correlation.high-threshold"),
		config.GetFloat64("correlation.medium-threshold"),
		config.GetFloat64("correlation.low-threshold"),
	)

	maxEntryID, maxPromptID, err := store.MaxIDs(ctx)
	if err != nil {
		return fmt.Errorf("seed normalizer ids: %w", err)
	}
	norm := normalize.New(maxEntryID, maxPromptID)

	window := correlate.Window{
		Back:    time.Duration(config.GetInt("correlation.window-back-ms")) * time.Millisecond,
		Forward: time.Duration(config.GetInt("correlation.window-forward-ms")) * time.Millisecond,
	}
	engine := correlate.New(store, window)

	var enricher *correlate.Enricher
	if config.GetBool("enrichment.enabled") {
		enricher, err = correlate.NewEnricher(correlate.EnrichmentConfig{
			Enabled:     true,
			OllamaModel: config.GetString("enrichment.ollama-model"),
		})
		if err != nil {
			log.Warn("enrichment disabled: ollama client unavailable", "error", err)
			enricher = nil
		}
	}

	var hookRunner *hooks.Runner
	if config.GetBool("hooks.enabled") {
		hookRunner = hooks.NewRunnerFromDataDir(dataDir)
	}

	var extractPipeline *extractor.Pipeline
	if config.GetBool("event-extraction.enabled") {
		if config.GetBool("enrichment.enabled") {
			extractPipeline = extractor.NewPipelineWithOllama(ctx, config.GetString("enrichment.ollama-model"))
		} else {
			extractPipeline = extractor.NewPipeline()
		}
	}

	pl := pipeline.New(norm, engine, store, enricher, hookRunner, extractPipeline, log.Logger)

	var compactRunner *compact.Runner
	if config.GetBool("compaction.enabled") {
		client, err := compact.NewClient(config.GetString("compaction.api-key"), config.GetString("compaction.model"))
		if err != nil {
			log.Warn("compaction disabled: haiku client unavailable", "error", err)
		} else {
			compactRunner = compact.NewRunner(store, client, log.Logger)
		}
	}

	adapters := buildAdapters(workspace, policy)
	adapterNames := make([]string, 0, len(adapters))
	sched := scheduler.New(pl, log.Logger)
	for _, a := range adapters {
		sched.Register(a, adapterCadenceFor(a))
		adapterNames = append(adapterNames, a.Name())
	}

	facade := query.New(store, query.DefaultTTL)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	info := rpc.Info{
		Version:       Version,
		WorkspacePath: workspace,
		DatabasePath:  store.Path(),
		AdapterNames:  adapterNames,
	}
	server := rpc.NewServer(socketPath, facade, store, info, log.Logger, cancel)

	if err := sched.Start(ctx); err != nil {
		return fmt.Errorf("start scheduler: %w", err)
	}
	defer sched.Stop()

	serverErrCh := make(chan error, 1)
	go func() {
		if err := server.Start(ctx); err != nil {
			serverErrCh <- err
		}
	}()
	select {
	case err := <-serverErrCh:
		return fmt.Errorf("start control server: %w", err)
	case <-server.WaitReady():
		log.log("icpcd ready: workspace=%s socket=%s db=%s", workspace, socketPath, store.Path())
	case <-time.After(5 * time.Second):
		log.log("control server did not signal ready within 5s; continuing anyway")
	}

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, daemonSignals...)
	defer signal.Stop(sigCh)

	retention := time.Duration(config.GetInt("retention-days")) * 24 * time.Hour
	cleanupTicker := time.NewTicker(6 * time.Hour)
	defer cleanupTicker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.log("context canceled, shutting down")
			_ = server.Stop()
			return nil
		case sig := <-sigCh:
			log.log("received signal %v, shutting down gracefully", sig)
			_ = server.Stop()
			return nil
		case err := <-serverErrCh:
			log.Error("control server failed", "error", err)
			return err
		case <-cleanupTicker.C:
			if retention <= 0 {
				continue
			}
			if compactRunner != nil {
				if n, err := compactRunner.Run(ctx, retention); err != nil {
					log.Warn("conversation compaction failed", "error", err)
				} else if n > 0 {
					log.log("compacted %d aged-out conversations", n)
				}
			}
			report, err := store.Cleanup(ctx, retention)
			if err != nil {
				log.Warn("retention cleanup failed", "error", err)
				continue
			}
			log.log("retention cleanup: entries=%d prompts=%d events=%d terminal_commands=%d status_messages=%d",
				report.Entries, report.Prompts, report.Events, report.TerminalCommands, report.StatusMessages)
			if hookRunner != nil {
				hookRunner.Run(hooks.EventCleanupRan, report)
			}
		}
	}
}

// adapterCadenceFor resolves the configured poll cadence for a, falling
// back to the global sync-interval-ms when no adapter-specific key
// applies.
func adapterCadenceFor(a adapter.Adapter) time.Duration {
	if key := adapterCadence(a); key != "" {
		if d := config.GetDuration(key); d > 0 {
			return d
		}
	}
	return time.Duration(config.GetInt("sync-interval-ms")) * time.Millisecond
}
