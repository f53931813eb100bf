package resilience

import (
	"context"
	"errors"
	"time"
)

// Retry calls fn up to attempts times, sleeping backoff*n after the n-th
// failure. It stops early when ctx is done or fn returns ErrCircuitOpen.
// The last error is returned.
func Retry(ctx context.Context, attempts int, backoff time.Duration, fn func(context.Context) error) error {
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for i := 1; i <= attempts; i++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if errors.Is(err, ErrCircuitOpen) || i == attempts {
			break
		}

		timer := time.NewTimer(backoff * time.Duration(i))
		select {
		case <-ctx.Done():
			timer.Stop()
			return errors.Join(err, ctx.Err())
		case <-timer.C:
		}
	}
	return err
}
