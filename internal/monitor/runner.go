package monitor

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/makt28/beacon/internal/notify"
)

// Runner drives the poll loop: each check probes the server, feeds the
// engine, and forwards any announcement to the notifier. Scheduled ticks and
// manual checks share the same Check path and are serialized by a mutex, so
// observations reach the engine one at a time and in order.
type Runner struct {
	mu       sync.Mutex
	prober   Prober
	engine   *Engine
	notifier notify.Notifier
	interval time.Duration
}

// NewRunner creates a runner. A non-positive interval falls back to a minute.
func NewRunner(prober Prober, engine *Engine, notifier notify.Notifier, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Runner{
		prober:   prober,
		engine:   engine,
		notifier: notifier,
		interval: interval,
	}
}

// Run polls until ctx is cancelled. The first check runs immediately so the
// initial state is learned without waiting a full interval.
func (r *Runner) Run(ctx context.Context) {
	slog.Info("poll loop started", "interval", r.interval.String())

	r.Check(ctx)

	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			slog.Info("poll loop stopped")
			return
		case <-ticker.C:
			r.Check(ctx)
		}
	}
}

// Check runs one probe, feeds the observation to the engine, and delivers
// any resulting announcement. It returns the raw status and the announcement
// event, nil when nothing qualified. Manual
// checks call this directly and count as ordinary observations. A delivery
// failure is logged and not retried; the engine has already recorded the
// announced state, so the transition is not re-announced later.
func (r *Runner) Check(ctx context.Context) (Status, *notify.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()

	st := r.prober.Probe(ctx)
	ev := r.engine.Observe(st)
	if ev == nil {
		return st, nil
	}

	if err := r.notifier.Announce(ctx, *ev); err != nil {
		slog.Error("announcement delivery failed", "state", stateOf(ev.Online), "error", err)
	} else {
		slog.Info("announced status change", "state", stateOf(ev.Online))
	}
	return st, ev
}
