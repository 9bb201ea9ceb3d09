package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Janitor periodically removes expired records from stores that do not expire them natively.
type Janitor struct {
	Store     Store
	Interval  time.Duration
	BatchSize int
	Logger    *zap.Logger
	Clock     func() time.Time
}

// Run sweeps until ctx is cancelled. Each tick drains expired records batch by batch.
func (j Janitor) Run(ctx context.Context) {
	if j.Store == nil || j.Interval <= 0 {
		return
	}
	logger := j.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	clock := j.Clock
	if clock == nil {
		clock = time.Now
	}

	ticker := time.NewTicker(j.Interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := j.Sweep(ctx, clock())
			if err != nil {
				logger.Warn("idempotency: cleanup failed", zap.Error(err), zap.Int("removed", removed))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency: cleanup", zap.Int("removed", removed))
			}
		}
	}
}

// Sweep removes expired records until a batch comes back short.
func (j Janitor) Sweep(ctx context.Context, now time.Time) (int, error) {
	total := 0
	for {
		removed, err := j.Store.CleanupExpired(ctx, now, j.BatchSize)
		total += removed
		if err != nil {
			return total, err
		}
		if removed == 0 || j.BatchSize <= 0 || removed < j.BatchSize {
			return total, nil
		}
	}
}
