package idempotency

import (
	"context"
	"time"

	"sheetstock/pkg/logger"
)

// RunCleanup drops expired keys every interval until ctx is cancelled.
func RunCleanup(ctx context.Context, store Store, interval time.Duration, log *logger.Logger) {
	if interval <= 0 {
		interval = time.Minute
	}
	log = log.WithComponent("idempotency-cleanup")

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			n, err := store.CleanupExpired(ctx)
			if err != nil {
				if ctx.Err() == nil {
					log.Warnw("cleanup failed", "error", err)
				}
				continue
			}
			if n > 0 {
				log.Debugw("expired keys removed", "count", n)
			}
		}
	}
}
