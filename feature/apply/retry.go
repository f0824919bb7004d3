package apply

import (
	"context"
	"math/rand"
	"time"
)

// backoff returns the delay before the given retry attempt: the base
// doubled per attempt, capped at max, with up to 10% random jitter so
// retrying batches do not stampede the target together.
func backoff(base, limit time.Duration, attempt int) time.Duration {
	delay := base << (attempt - 1)
	if delay > limit || delay <= 0 {
		delay = limit
	}
	jitter := time.Duration(rand.Int63n(int64(delay)/10 + 1))
	return delay + jitter
}

// sleepCtx waits for d or until the context is done.
func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
