package indexer

import (
	"context"
	"time"
)

type retryPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	// maxDelay caps the doubled delay; zero leaves it uncapped.
	maxDelay time.Duration
}

func withRetry(ctx context.Context, policy retryPolicy, fn func(context.Context) error) error {
	maxRetries := policy.maxRetries
	if maxRetries < 0 {
		maxRetries = 0
	}
	delay := policy.baseDelay
	if delay <= 0 {
		delay = 100 * time.Millisecond
	}

	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
		if policy.maxDelay > 0 && delay > policy.maxDelay {
			delay = policy.maxDelay
		}
	}
}
