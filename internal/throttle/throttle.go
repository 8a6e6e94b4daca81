package throttle

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// DefaultInterval is the minimum time between two flushes.
const DefaultInterval = 20 * time.Millisecond

// Stats contains throttler statistics.
type Stats struct {
	Ticks      int64
	Flushes    int64
	HookErrors int64
}

// Throttler calls a flush hook no more often than its interval, and only
// when a flush has been scheduled since the last one.
type Throttler struct {
	interval time.Duration
	hook     func() error
	logger   *slog.Logger

	pending atomic.Bool

	// Lifecycle
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	// Stats
	ticks      atomic.Int64
	flushes    atomic.Int64
	hookErrors atomic.Int64
}

// New creates a Throttler. A non-positive interval falls back to DefaultInterval.
func New(interval time.Duration, hook func() error, logger *slog.Logger) *Throttler {
	if logger == nil {
		logger = slog.Default()
	}
	if interval <= 0 {
		interval = DefaultInterval
	}
	return &Throttler{
		interval: interval,
		hook:     hook,
		logger:   logger,
	}
}

// ScheduleFlush requests a flush on the next tick. Safe to call from any
// goroutine, including from inside the hook.
func (t *Throttler) ScheduleFlush() {
	t.pending.Store(true)
}

// Pending reports whether a flush is waiting for the next tick.
func (t *Throttler) Pending() bool {
	return t.pending.Load()
}

// Start begins the flush loop.
func (t *Throttler) Start(ctx context.Context) error {
	t.ctx, t.cancel = context.WithCancel(ctx)

	t.wg.Add(1)
	go t.run()

	t.logger.Info("flush throttler started", "interval", t.interval)
	return nil
}

// Stop shuts down the loop and runs one last flush if one is pending.
func (t *Throttler) Stop(ctx context.Context) error {
	if t.cancel != nil {
		t.cancel()
	}

	done := make(chan struct{})
	go func() {
		t.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		t.logger.Info("flush throttler stopped")
	case <-ctx.Done():
		t.logger.Warn("flush throttler stop timed out")
	}

	// Final flush
	if t.pending.CompareAndSwap(true, false) {
		t.fire()
	}

	return nil
}

// Stats returns current statistics.
func (t *Throttler) Stats() Stats {
	return Stats{
		Ticks:      t.ticks.Load(),
		Flushes:    t.flushes.Load(),
		HookErrors: t.hookErrors.Load(),
	}
}

// run is the ticker goroutine.
func (t *Throttler) run() {
	defer t.wg.Done()

	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	for {
		select {
		case <-t.ctx.Done():
			return
		case <-ticker.C:
			t.ticks.Add(1)
			if t.pending.CompareAndSwap(true, false) {
				t.fire()
			}
		}
	}
}

func (t *Throttler) fire() {
	t.flushes.Add(1)
	if t.hook == nil {
		return
	}
	if err := t.hook(); err != nil {
		t.hookErrors.Add(1)
		t.logger.Warn("flush hook failed", "error", err)
	}
}
