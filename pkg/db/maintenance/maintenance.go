package maintenance

import (
	"context"
	"log/slog"
	"time"

	"wandermap/pkg/db"
)

// DefaultCacheAge is used when no positive age is configured.
const DefaultCacheAge = 30 * 24 * time.Hour

// Run prunes cached payloads older than maxAge. It blocks until completion
// and never fails startup; problems are logged.
func Run(ctx context.Context, d *db.DB, maxAge time.Duration) {
	if ctx.Err() != nil {
		return
	}
	if maxAge <= 0 {
		maxAge = DefaultCacheAge
	}

	slog.Info("Starting database maintenance...", "max_age", maxAge)
	n, err := d.PruneCache(maxAge)
	if err != nil {
		slog.Error("Cache pruning failed", "error", err)
		return
	}
	slog.Info("Cache pruning completed", "removed", n)
}
