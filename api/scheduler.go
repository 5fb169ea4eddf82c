/*
scheduler.go - Periodic overdue shift sweep

PURPOSE:
  Closes overdue shifts for every worker on a timer, so shifts end and
  settle even when nobody calls the API. Request-time sweeps (see
  middleware.go) cover the gaps between ticks.

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Each tick runs Reconciler.Sweep; failures are logged, never fatal
  - Overlap with request-time sweeps is safe: status transitions are
    conditional updates and settlement is claimed once per shift

CONFIGURATION:
  - CheckInterval: How often to sweep (default: 1 minute)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewReconciliationScheduler(handler.Reconciler, log)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - shifts/reconciler.go: Sweep semantics
  - handlers.go: TriggerSweep endpoint (manual sweep)
*/
package api

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/warp/shift-engine/shifts"
)

// ReconciliationScheduler sweeps overdue shifts on a fixed interval.
type ReconciliationScheduler struct {
	Reconciler    *shifts.Reconciler
	CheckInterval time.Duration
	Enabled       bool
	Log           zerolog.Logger

	ticker  *time.Ticker
	stop    chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	lastRun time.Time
}

// NewReconciliationScheduler creates a new scheduler.
func NewReconciliationScheduler(r *shifts.Reconciler, log zerolog.Logger) *ReconciliationScheduler {
	return &ReconciliationScheduler{
		Reconciler:    r,
		CheckInterval: time.Minute,
		Enabled:       true,
		Log:           log.With().Str("component", "scheduler").Logger(),
	}
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Log.Info().Msg("disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	rs.Log.Info().Dur("interval", rs.CheckInterval).Msg("started")
}

// Stop stops the scheduler and waits for an in-flight sweep.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	ticker := rs.ticker
	rs.ticker = nil
	rs.mu.Unlock()

	if ticker == nil {
		return
	}
	ticker.Stop()
	close(rs.stop)
	// RunNow takes mu, so wait unlocked.
	rs.wg.Wait()
	rs.Log.Info().Msg("stopped")
}

func (rs *ReconciliationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	// Run immediately on start
	rs.RunNow(context.Background())

	for {
		select {
		case <-ticker.C:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow sweeps once and returns the result.
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) (shifts.Result, error) {
	res, err := rs.Reconciler.Sweep(ctx)

	rs.mu.Lock()
	rs.lastRun = time.Now()
	rs.mu.Unlock()

	if err != nil {
		rs.Log.Error().Err(err).Int("closed", len(res.Closed)).Msg("sweep incomplete")
		return res, err
	}
	if len(res.Closed)+len(res.Missed) > 0 {
		rs.Log.Info().
			Int("closed", len(res.Closed)).
			Int("missed", len(res.Missed)).
			Int("skipped", res.Skipped).
			Msg("sweep completed")
	}
	return res, nil
}

// NextRunTime returns when the next scheduled sweep will occur.
func (rs *ReconciliationScheduler) NextRunTime() time.Time {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	if rs.lastRun.IsZero() {
		return time.Now().Add(rs.CheckInterval)
	}
	return rs.lastRun.Add(rs.CheckInterval)
}
