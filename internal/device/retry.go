package device

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"
)

// retryCall runs fn up to attempts times with a fixed delay between
// attempts. Every failed attempt is logged, not just the final one; only
// the final attempt's failure propagates.
//
// Protocol errors stop the loop immediately: retrying an invariant
// violation would be incorrect. Cancelling ctx during the inter-attempt
// delay returns immediately without waiting out the backoff.
func retryCall(ctx context.Context, logger *slog.Logger, name string, attempts int, delay time.Duration, fn func() error) error {
	if attempts < 1 {
		attempts = 1
	}

	var last error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("%s: aborted: %w", name, err)
		}

		last = fn()
		if last == nil {
			return nil
		}

		var protoErr *ProtocolError
		if errors.As(last, &protoErr) {
			return last
		}

		logger.Warn("device call failed",
			"op", name,
			"attempt", attempt,
			"attempts", attempts,
			"error", last)

		if attempt < attempts {
			if err := sleepCtx(ctx, delay); err != nil {
				return fmt.Errorf("%s: aborted during retry backoff: %w", name, err)
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", name, attempts, last)
}

// sleepCtx waits for d or until ctx is cancelled, whichever comes first.
func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
