package timer

import (
	"context"
	"time"

	"github.com/hammamikhairi/gatecaller/internal/logger"
)

// Sweeper forgets flights that no longer need announcements. The flight
// monitor implements it.
type Sweeper interface {
	Sweep(now time.Time) int
	Len() int
}

// WatcherOption configures the watcher.
type WatcherOption func(*Watcher)

// WithWatchInterval sets how often the watcher sweeps.
func WithWatchInterval(d time.Duration) WatcherOption {
	return func(w *Watcher) {
		w.interval = d
	}
}

// Watcher periodically evicts terminal flights so the snapshot table stays
// bounded even when the feed goes quiet. Runs on a slower cycle than the
// supervisor (default: 1 minute).
type Watcher struct {
	flights  Sweeper
	log      *logger.Logger
	interval time.Duration
	now      func() time.Time
}

// NewWatcher creates a watcher over the given flight table.
func NewWatcher(flights Sweeper, log *logger.Logger, opts ...WatcherOption) *Watcher {
	w := &Watcher{
		flights:  flights,
		log:      log,
		interval: 1 * time.Minute,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(w)
	}
	return w
}

// Run starts the watcher loop. Blocks until ctx is cancelled.
// Intended to be called as a goroutine.
func (w *Watcher) Run(ctx context.Context) {
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	w.log.Info("watcher started (interval=%s)", w.interval)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("watcher stopped")
			return
		case <-ticker.C:
			w.check()
		}
	}
}

// check runs one sweep.
func (w *Watcher) check() {
	if n := w.flights.Sweep(w.now()); n > 0 {
		w.log.Info("watcher: evicted %d flights, %d still tracked", n, w.flights.Len())
	}
}
