package jobs

import (
	"context"
	"log/slog"
	"time"
)

// Sweeper drops expired sessions.
type Sweeper interface {
	Sweep(now time.Time) int
}

// Pinger reports whether storage is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

func StartSessionSweepJob(ctx context.Context, interval time.Duration, sweeper Sweeper, logger *slog.Logger) {
	if sweeper == nil {
		return
	}
	if interval <= 0 {
		interval = time.Minute
	}

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				sweepExpired(sweeper, time.Now(), logger)
			}
		}
	}()
}

func sweepExpired(sweeper Sweeper, now time.Time, logger *slog.Logger) int {
	removed := sweeper.Sweep(now)
	if removed > 0 {
		logger.Info("session sweep removed expired sessions", "count", removed)
	}
	return removed
}

// StartHealthProbeJob pings storage once right away and then on every tick,
// passing the result to report.
func StartHealthProbeJob(ctx context.Context, interval time.Duration, pinger Pinger, report func(bool), logger *slog.Logger) {
	if pinger == nil || report == nil {
		return
	}
	if interval <= 0 {
		interval = 15 * time.Second
	}
	timeout := interval / 2

	last := probeOnce(ctx, pinger, timeout, logger)
	report(last)

	ticker := time.NewTicker(interval)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				healthy := probeOnce(ctx, pinger, timeout, logger)
				if healthy != last {
					logger.Info("storage health changed", "healthy", healthy)
				}
				last = healthy
				report(healthy)
			}
		}
	}()
}

func probeOnce(ctx context.Context, pinger Pinger, timeout time.Duration, logger *slog.Logger) bool {
	probeCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	if err := pinger.Ping(probeCtx); err != nil {
		logger.Warn("storage health probe failed", "error", err)
		return false
	}
	return true
}
