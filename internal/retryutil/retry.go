package retryutil

import (
	"context"
	"log/slog"
	"time"
)

const (
	defaultAttempts  = 3
	defaultBaseDelay = 500 * time.Millisecond
	maxDelay         = 30 * time.Second
)

// Do runs fn up to attempts times, doubling the delay between tries. It is
// the single retry wrapper shared by the chat transport and the tabular
// store; on exhaustion the last error is returned. Context cancellation stops
// the loop immediately.
func Do(ctx context.Context, logger *slog.Logger, name string, attempts int, baseDelay time.Duration, fn func(ctx context.Context) error) error {
	if attempts <= 0 {
		attempts = defaultAttempts
	}
	if baseDelay <= 0 {
		baseDelay = defaultBaseDelay
	}

	var lastErr error
	delay := baseDelay
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		lastErr = fn(ctx)
		if lastErr == nil {
			if attempt > 1 && logger != nil {
				logger.Info(name+"_retry_ok", "attempt", attempt)
			}
			return nil
		}
		if attempt == attempts {
			break
		}
		if logger != nil {
			logger.Warn(name+"_retry", "attempt", attempt, "delay", delay.String(), "error", lastErr.Error())
		}
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
		delay *= 2
		if delay > maxDelay {
			delay = maxDelay
		}
	}
	if logger != nil {
		logger.Warn(name+"_retry_exhausted", "attempts", attempts, "error", lastErr.Error())
	}
	return lastErr
}
