package breaker

import (
	"context"
	"fmt"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

// OpenError is returned by Do when the breaker rejects a request.
type OpenError struct {
	Key        string
	RetryAfter time.Duration
}

func (e *OpenError) Error() string {
	return fmt.Sprintf("circuit open for key %q, retry after %s", e.Key, e.RetryAfter)
}

// Do runs fn through the breaker: a rejected request returns
// *OpenError without invoking fn; otherwise fn's error is reported as
// the outcome and returned unchanged.
func (b *Breaker) Do(ctx context.Context, key string, fn func(context.Context) error) error {
	d, err := b.Allow(ctx, key)
	if err != nil {
		return err
	}
	if !d.Allowed {
		return &OpenError{Key: key, RetryAfter: d.RetryAfter}
	}

	fnErr := fn(ctx)
	if reportErr := b.Report(ctx, key, fnErr != nil); reportErr != nil {
		if fnErr != nil {
			return fnErr
		}
		return reportErr
	}
	return fnErr
}

// DoWithBudget is Do with the work raced against a time budget via
// clock.CancelIfExceeds. Expiry counts as a failure outcome.
func (b *Breaker) DoWithBudget(ctx context.Context, key string, budget *clock.TimeBudget, fn func(context.Context) error) error {
	return b.Do(ctx, key, func(ctx context.Context) error {
		_, err := clock.CancelIfExceeds(ctx, budget, func(ctx context.Context) (struct{}, error) {
			return struct{}{}, fn(ctx)
		})
		return err
	})
}
