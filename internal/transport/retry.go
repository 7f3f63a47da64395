package transport

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultRetryDelays is the backoff schedule used by WaitReady.
var DefaultRetryDelays = []time.Duration{
	1 * time.Second,
	2 * time.Second,
	4 * time.Second,
}

// WithRetry executes fn, retrying after each delay in delays while it fails.
// It gives up early when ctx is cancelled.
//
// Only used for probing the service before a session exists; runs, input and
// formatting are never retried.
func WithRetry(ctx context.Context, delays []time.Duration, fn func() error) error {
	var err error
	for attempt := 0; attempt < len(delays)+1; attempt++ {
		if attempt > 0 {
			delay := delays[attempt-1]
			transportLog.Debug("retry_wait",
				slog.Int("attempt", attempt),
				slog.Int("max", len(delays)),
				slog.Duration("delay", delay))

			timer := time.NewTimer(delay)
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("gave up after %d attempts: %w", attempt, ctx.Err())
			case <-timer.C:
			}
		}

		err = fn()
		if err == nil {
			return nil
		}

		transportLog.Debug("attempt_failed",
			slog.Int("attempt", attempt+1),
			slog.String("error", err.Error()))
	}

	return fmt.Errorf("failed after %d attempts: %w", len(delays)+1, err)
}

// WaitReady polls the health endpoint until it answers or the schedule runs out.
func (c *Client) WaitReady(ctx context.Context, delays []time.Duration) error {
	return WithRetry(ctx, delays, func() error {
		return c.Health(ctx)
	})
}
