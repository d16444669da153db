package store

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ashureev/chatwidget/internal/shared"
)

// SweepCallback is called for each visitor removed by the sweeper.
type SweepCallback func(visitorID string)

// deleteVisitorWithRetry attempts to delete a visitor with exponential
// backoff to handle SQLITE_BUSY errors.
func deleteVisitorWithRetry(ctx context.Context, repo Repository, visitorID string) error {
	maxRetries := 3
	baseDelay := 50 * time.Millisecond

	for i := 0; i < maxRetries; i++ {
		err := repo.DeleteVisitor(ctx, visitorID)
		if err == nil {
			return nil
		}

		if shared.IsSQLiteConflictError(err) && i < maxRetries-1 {
			delay := baseDelay * time.Duration(1<<i) // 50ms, 100ms, 200ms
			slog.Debug("Visitor sweeper: database locked, retrying",
				"visitor_id", visitorID,
				"attempt", i+1,
				"delay", delay)
			select {
			case <-time.After(delay):
				continue
			case <-ctx.Done():
				return ctx.Err()
			}
		}

		return fmt.Errorf("failed to delete visitor %s after %d attempts: %w", visitorID, i+1, err)
	}

	return nil
}

// RunSweeper periodically removes visitors not seen within ttl and blocks
// until ctx is done. onSweep runs after each removal.
func RunSweeper(ctx context.Context, repo Repository, interval, ttl time.Duration, onSweep SweepCallback) error {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	slog.Info("Visitor sweeper started", "interval", interval, "ttl", ttl)

	for {
		select {
		case <-ticker.C:
			SweepStaleVisitors(ctx, repo, ttl, onSweep)
		case <-ctx.Done():
			slog.Info("Visitor sweeper shutting down", "reason", ctx.Err())
			return nil
		}
	}
}

// SweepStaleVisitors runs one sweep and returns how many visitors were removed.
func SweepStaleVisitors(ctx context.Context, repo Repository, ttl time.Duration, onSweep SweepCallback) int {
	stale, err := repo.ListStaleVisitors(ctx, ttl)
	if err != nil {
		slog.Error("Visitor sweeper failed to list stale visitors", "error", err)
		return 0
	}
	if len(stale) == 0 {
		return 0
	}

	slog.Info("Visitor sweeper found stale visitors", "count", len(stale))

	removed := 0
	for _, v := range stale {
		if err := deleteVisitorWithRetry(ctx, repo, v.VisitorID); err != nil {
			slog.Warn("Visitor sweeper failed to delete visitor",
				"error", err,
				"visitor_id", v.VisitorID)
			continue
		}
		removed++
		if onSweep != nil {
			onSweep(v.VisitorID)
		}
	}

	slog.Info("Visitor sweeper cleanup completed", "removed", removed)
	return removed
}
