/*
scheduler.go - Background year-end leave reconciliation

PURPOSE:
  Periodically closes the previous calendar year for every active employee:
  the remaining balance expires on Dec 31, the capped carryover comes back
  on Jan 1 and the new year's grant is written. Each step has a fixed
  idempotency key, so running the check every interval is harmless and a
  missed run is simply caught up by the next one.

DESIGN:
  - One goroutine, one ticker, a stop channel
  - Runs immediately on start, then on every tick
  - Reuses Handler.reconcileYear, the same code path as
    POST /api/admin/leave/reconcile
  - Records one leave.Run per employee when the store keeps run history

CONFIGURATION:
  - CheckInterval: RECONCILE_INTERVAL (default 24h)
  - Enabled: false when the interval is zero

SEE ALSO:
  - handlers.go: Reconcile endpoint
  - leave/reconcile.go: Reconciler.Reconcile
*/
package api

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// ReconciliationScheduler handles automated year-end reconciliation.
type ReconciliationScheduler struct {
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool
	Logger        *slog.Logger

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex

	lastRun time.Time
	nextRun time.Time
}

// NewReconciliationScheduler creates a scheduler. interval <= 0 disables it.
func NewReconciliationScheduler(handler *Handler, interval time.Duration) *ReconciliationScheduler {
	rs := &ReconciliationScheduler{
		Handler:       handler,
		CheckInterval: interval,
		Enabled:       interval > 0,
		Logger:        handler.Logger.With(slog.String("component", "reconciliation-scheduler")),
		stop:          make(chan struct{}),
	}
	handler.Scheduler = rs
	return rs
}

// Start begins the scheduler.
func (rs *ReconciliationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled {
		rs.Logger.Info("scheduler disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.wg.Add(1)
	go rs.run(rs.ticker.C)

	rs.Logger.Info("scheduler started", slog.Duration("interval", rs.CheckInterval))
}

// Stop stops the scheduler and waits for an in-flight check to finish.
func (rs *ReconciliationScheduler) Stop() {
	rs.mu.Lock()
	if rs.ticker == nil {
		rs.mu.Unlock()
		return
	}
	rs.ticker.Stop()
	rs.ticker = nil
	close(rs.stop)
	rs.mu.Unlock()

	rs.wg.Wait()
	rs.Logger.Info("scheduler stopped")
}

func (rs *ReconciliationScheduler) run(ticks <-chan time.Time) {
	defer rs.wg.Done()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() {
		<-rs.stop
		cancel()
	}()

	// Run immediately on start
	rs.checkAndProcess(ctx)

	for {
		select {
		case <-ticks:
			rs.checkAndProcess(ctx)
		case <-rs.stop:
			return
		}
	}
}

// checkAndProcess closes the previous calendar year. Employees already
// closed come back with AlreadyClosed and are counted as skipped.
func (rs *ReconciliationScheduler) checkAndProcess(ctx context.Context) {
	now := rs.Handler.now()
	year := now.Year() - 1

	rs.Logger.Debug("checking for year-end reconciliation", slog.Int("year", year))

	resp, err := rs.Handler.reconcileYear(ctx, year, nil)
	if err != nil {
		rs.Logger.Error("reconciliation check failed", slog.Int("year", year), slog.Any("error", err))
		return
	}

	processed, skipped, failed := 0, 0, 0
	for _, res := range resp.Results {
		switch {
		case res.Error != "":
			failed++
		case res.YearEnd != nil && res.YearEnd.AlreadyClosed:
			skipped++
		default:
			processed++
		}
	}

	rs.mu.Lock()
	rs.lastRun = now
	rs.nextRun = now.Add(rs.CheckInterval)
	rs.mu.Unlock()

	if processed > 0 || failed > 0 {
		rs.Logger.Info("reconciliation completed",
			slog.Int("year", year),
			slog.Int("processed", processed),
			slog.Int("skipped", skipped),
			slog.Int("failed", failed))
	}
}

// RunNow triggers an immediate check (for testing/admin).
func (rs *ReconciliationScheduler) RunNow(ctx context.Context) {
	rs.checkAndProcess(ctx)
}

// Status reports when the scheduler last ran and when it runs next.
func (rs *ReconciliationScheduler) Status() SchedulerStatusDTO {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	st := SchedulerStatusDTO{Enabled: rs.Enabled}
	if !rs.lastRun.IsZero() {
		last, next := rs.lastRun, rs.nextRun
		st.LastRun, st.NextRun = &last, &next
	}
	return st
}
