package main

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

type abandonReaper interface {
	ReapAbandoned(ctx context.Context, ttl time.Duration) (int64, error)
}

type tokenPurger interface {
	PurgeRevoked(ctx context.Context) (int64, error)
}

// startJobs schedules the housekeeping run: stale sessions are marked
// abandoned and expired denylist rows are dropped. Overlapping runs are
// skipped.
func startJobs(schedule string, sessionTTL time.Duration, sessions abandonReaper, tokens tokenPurger) (*cron.Cron, error) {
	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cron.DefaultLogger)))
	if _, err := c.AddFunc(schedule, func() { housekeeping(context.Background(), sessionTTL, sessions, tokens) }); err != nil {
		return nil, fmt.Errorf("schedule housekeeping %q: %w", schedule, err)
	}
	c.Start()
	slog.Info("housekeeping scheduled", "schedule", schedule, "session_ttl", sessionTTL)
	return c, nil
}

func housekeeping(ctx context.Context, sessionTTL time.Duration, sessions abandonReaper, tokens tokenPurger) {
	ctx, cancel := context.WithTimeout(ctx, 4*time.Minute)
	defer cancel()
	if n, err := sessions.ReapAbandoned(ctx, sessionTTL); err != nil {
		slog.Error("reap abandoned sessions", "err", err)
	} else if n > 0 {
		slog.Info("marked sessions abandoned", "count", n)
	}
	if n, err := tokens.PurgeRevoked(ctx); err != nil {
		slog.Error("purge revoked tokens", "err", err)
	} else if n > 0 {
		slog.Info("purged revoked tokens", "count", n)
	}
}
