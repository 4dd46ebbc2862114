package idempotency

import (
	"context"
	"time"

	"go.uber.org/zap"
)

// Pruner is implemented by stores whose expired records stay behind until
// deleted. Redis expires keys on its own and does not implement it.
type Pruner interface {
	Prune(ctx context.Context) (int64, error)
}

// PruneEvery deletes expired records on every tick until ctx is done. It
// returns at once when store is not a Pruner.
func PruneEvery(ctx context.Context, store Store, every time.Duration, logger *zap.Logger) {
	pruner, ok := store.(Pruner)
	if !ok || every <= 0 {
		return
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, err := pruner.Prune(ctx)
			if err != nil {
				logger.Warn("idempotency prune failed", zap.Error(err))
				continue
			}
			if removed > 0 {
				logger.Debug("idempotency records pruned", zap.Int64("removed", removed))
			}
		}
	}
}
