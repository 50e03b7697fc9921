package store

import (
	"context"
	"log/slog"
	"time"
)

// StartSessionSweeper runs a background goroutine that periodically deletes
// sessions idle longer than ttl. It stops when ctx is done.
func StartSessionSweeper(ctx context.Context, repo Repository, ttl, interval time.Duration) {
	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		slog.Info("Session sweeper started", "interval", interval, "ttl", ttl)

		for {
			select {
			case <-ticker.C:
				sweepExpiredSessions(ctx, repo, ttl)
			case <-ctx.Done():
				slog.Info("Session sweeper shutting down", "reason", ctx.Err())
				return
			}
		}
	}()
}

func sweepExpiredSessions(ctx context.Context, repo Repository, ttl time.Duration) {
	deleted, err := repo.DeleteExpiredSessions(ctx, ttl)
	if err != nil {
		if ctx.Err() != nil {
			return
		}
		slog.Error("Session sweeper failed to delete expired sessions", "error", err)
		return
	}
	if deleted > 0 {
		slog.Info("Session sweeper removed expired sessions", "count", deleted)
	}
}
