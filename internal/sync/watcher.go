package sync

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// WatchTarget is one state/year combination polled by the watcher.
type WatchTarget struct {
	StateID string
	Year    int
}

// Watcher re-syncs a set of targets on a fixed interval.
type Watcher struct {
	svc      *Service
	targets  []WatchTarget
	interval time.Duration
	opts     Options
}

// NewWatcher creates a background watcher over the given targets.
func NewWatcher(svc *Service, targets []WatchTarget, interval time.Duration, opts Options) *Watcher {
	if interval <= 0 {
		interval = time.Hour
	}
	return &Watcher{svc: svc, targets: targets, interval: interval, opts: opts}
}

// Run syncs every target once, then repeats on each tick. It blocks until
// ctx is cancelled.
func (w *Watcher) Run(ctx context.Context) {
	log := zap.L().With(zap.String("component", "sync.watcher"))
	log.Info("starting watcher",
		zap.Duration("interval", w.interval),
		zap.Int("targets", len(w.targets)),
	)

	w.pass(ctx, log)

	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("watcher stopped")
			return
		case <-ticker.C:
			w.pass(ctx, log)
		}
	}
}

func (w *Watcher) pass(ctx context.Context, log *zap.Logger) {
	for _, target := range w.targets {
		if ctx.Err() != nil {
			return
		}
		report, err := w.svc.SyncState(ctx, target.StateID, target.Year, w.opts)
		if err != nil {
			log.Error("sync pass failed",
				zap.String("state", target.StateID),
				zap.Int("year", target.Year),
				zap.Error(err),
			)
			continue
		}
		if report.Created > 0 || report.Updated > 0 {
			log.Info("changes detected",
				zap.String("state", target.StateID),
				zap.Int("year", target.Year),
				zap.Int("created", report.Created),
				zap.Int("updated", report.Updated),
			)
		}
	}
}
