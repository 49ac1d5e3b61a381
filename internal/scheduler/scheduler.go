// Package scheduler drives Source Adapters on their configured cadences,
// generalized from the teacher's runEventDrivenLoop: a select loop over
// per-adapter tickers instead of one fixed-interval sync ticker, each with
// its own exponential backoff so one misbehaving adapter never starves the
// others.
package scheduler

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/untoldecay/icpc/internal/adapter"
)

// MaxBackoff caps the exponential backoff delay applied after repeated
// adapter poll failures.
const MaxBackoff = 5 * time.Minute

// maxStrikes is the number of consecutive failures tolerated before an
// adapter's cadence is replaced by the backoff delay rather than its
// configured interval.
const maxStrikes = 3

// BackgroundTimeout and ControlTimeout bound the two kinds of operations
// the scheduler and the control protocol issue against the store: a
// background sync poll gets more slack than a request blocking a client.
const (
	BackgroundTimeout = 10 * time.Second
	ControlTimeout    = 15 * time.Second
)

// Sink receives the raw records produced by a Poll call. The
// Normalizer/Correlator pipeline implements this and normalizes them.
type Sink interface {
	Handle(ctx context.Context, source string, records []adapter.Record) error
}

// managedAdapter tracks one adapter's cursor and failure state.
type managedAdapter struct {
	adapter  adapter.Adapter
	cadence  time.Duration
	cursor   adapter.Cursor
	strikes  int
	lastPoll time.Time
}

// Scheduler polls a set of adapters on independent cadences and forwards
// their records to a Sink.
type Scheduler struct {
	log      *slog.Logger
	sink     Sink
	mu       sync.Mutex
	adapters []*managedAdapter

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// New constructs a Scheduler. log may be nil, in which case a discarding
// logger is used.
func New(sink Sink, log *slog.Logger) *Scheduler {
	if log == nil {
		log = slog.New(slog.NewTextHandler(discardWriter{}, nil))
	}
	return &Scheduler{sink: sink, log: log}
}

type discardWriter struct{}

func (discardWriter) Write(p []byte) (int, error) { return len(p), nil }

// Register adds an adapter to be polled every cadence once the scheduler
// starts. Must be called before Start.
func (s *Scheduler) Register(a adapter.Adapter, cadence time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.adapters = append(s.adapters, &managedAdapter{adapter: a, cadence: cadence})
}

// Start launches one goroutine per registered adapter, each on its own
// ticker. Start returns immediately; call Stop to shut down.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	s.cancel = cancel

	s.mu.Lock()
	managed := append([]*managedAdapter(nil), s.adapters...)
	s.mu.Unlock()

	for _, m := range managed {
		if err := m.adapter.Start(ctx, m.cadence); err != nil {
			s.log.Warn("adapter start failed", "adapter", m.adapter.Name(), "error", err)
			continue
		}
		s.wg.Add(1)
		go s.run(ctx, m)
	}
	return nil
}

// run is the per-adapter poll loop: poll, forward to sink, advance cursor
// on success, back off on failure.
func (s *Scheduler) run(ctx context.Context, m *managedAdapter) {
	defer s.wg.Done()
	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-timer.C:
			delay := s.pollOnce(ctx, m)
			timer.Reset(delay)
		}
	}
}

// pollOnce runs one bounded poll against the adapter and returns the delay
// before the next attempt.
func (s *Scheduler) pollOnce(ctx context.Context, m *managedAdapter) time.Duration {
	pollCtx, cancel := context.WithTimeout(ctx, BackgroundTimeout)
	defer cancel()

	records, next, err := m.adapter.Poll(pollCtx, m.cursor)
	if err != nil {
		m.strikes++
		s.log.Warn("adapter poll failed", "adapter", m.adapter.Name(), "strikes", m.strikes, "error", err)
		if m.strikes >= maxStrikes {
			return backoffDelay(m.strikes, m.cadence)
		}
		return m.cadence
	}
	m.strikes = 0
	m.lastPoll = time.Now()

	if len(records) > 0 {
		if err := s.sink.Handle(pollCtx, m.adapter.Name(), records); err != nil {
			s.log.Warn("sink handle failed", "adapter", m.adapter.Name(), "error", err)
			// Cursor still advances: a sink failure on this batch is logged,
			// not retried forever against adapters with no replay support.
		}
	}
	m.cursor = next
	return m.cadence
}

// backoffDelay grows exponentially from the adapter's cadence, capped at
// MaxBackoff, once an adapter has failed maxStrikes times in a row.
func backoffDelay(strikes int, cadence time.Duration) time.Duration {
	delay := cadence
	for i := 0; i < strikes-maxStrikes+1 && delay < MaxBackoff; i++ {
		delay *= 2
	}
	if delay > MaxBackoff {
		delay = MaxBackoff
	}
	return delay
}

// Stop cancels every adapter loop, stops each adapter, and waits for the
// poll goroutines to exit.
func (s *Scheduler) Stop() {
	if s.cancel != nil {
		s.cancel()
	}
	s.wg.Wait()

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range s.adapters {
		if err := m.adapter.Stop(); err != nil {
			s.log.Warn("adapter stop failed", "adapter", m.adapter.Name(), "error", err)
		}
	}
}
