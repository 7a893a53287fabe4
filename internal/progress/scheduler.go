package progress

import (
	"context"
	"log/slog"
	"time"
)

// Scheduler runs merge passes on a periodic interval.
// It is stateless: each tick folds whatever samples are pending.
type Scheduler struct {
	interval time.Duration
	store    *Store
}

// NewScheduler creates a cron-style scheduler over the given store.
func NewScheduler(interval time.Duration, store *Store) *Scheduler {
	if store == nil {
		panic("progress: store must not be nil")
	}
	return &Scheduler{interval: interval, store: store}
}

// Start begins periodic merging. Runs until the context is cancelled, then
// performs one final pass under a bounded shutdown context so samples
// enqueued shortly before shutdown still reach the committed table.
func (s *Scheduler) Start(ctx context.Context) error {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	slog.Info("[Scheduler] Starting merge scheduler", "interval", s.interval)

	// Initial pass to fold any backlog restored from the snapshot.
	s.runOnce(ctx)

	for {
		select {
		case <-ticker.C:
			s.runOnce(ctx)
		case <-ctx.Done():
			slog.Info("[Scheduler] Stopping (context cancelled)")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()

			slog.Info("[Scheduler] Running final merge before shutdown...")
			s.runOnce(shutdownCtx)
			slog.Info("[Scheduler] Final merge complete")

			return nil
		}
	}
}

func (s *Scheduler) runOnce(ctx context.Context) {
	result, err := s.store.RunMerge(ctx)
	if err != nil {
		slog.Error("[Scheduler] Merge pass failed to persist",
			"error", err,
			"scanned_keys", result.ScannedKeys,
			"raised_keys", result.RaisedKeys,
		)
		return
	}

	if result.ScannedKeys > 0 {
		slog.Info("[Scheduler] Merge pass complete",
			"scanned_keys", result.ScannedKeys,
			"raised_keys", result.RaisedKeys,
		)
	}
}
