package postgres

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// connectWithRetry runs connect up to maxAttempts times, sleeping 1s, 2s,
// 4s, ... between attempts. The sleep function is injectable for tests.
func connectWithRetry(ctx context.Context, maxAttempts int, connect func(context.Context) error, sleep func(time.Duration), logger *slog.Logger) error {
	delay := time.Second
	for attempt := 1; ; attempt++ {
		err := connect(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxAttempts {
			return fmt.Errorf("connecting to postgres after %d attempts: %w", maxAttempts, err)
		}
		if ctx.Err() != nil {
			return fmt.Errorf("connecting to postgres: %w", ctx.Err())
		}
		logger.Warn("postgres connection failed, retrying",
			"attempt", attempt, "max_attempts", maxAttempts, "backoff", delay, "error", err)
		sleep(delay)
		delay *= 2
	}
}
