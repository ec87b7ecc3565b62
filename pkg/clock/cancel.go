package clock

import (
	"context"
	"fmt"
	"time"
)

// BudgetExceededError reports that a budget's cancellation signal fired
// before the work racing it completed and no fallback was supplied.
type BudgetExceededError struct {
	Duration time.Duration
	Elapsed  time.Duration
}

func (e *BudgetExceededError) Error() string {
	return fmt.Sprintf("time budget of %s exceeded after %s before work completed",
		FormatDuration(e.Duration), FormatDuration(e.Elapsed))
}

type result[T any] struct {
	v   T
	err error
}

// CancelIfExceeds races work against the budget's cancellation signal.
// If the work finishes first its outcome is returned unchanged; if the
// signal fires first a *BudgetExceededError is returned and the work is
// abandoned, not forcibly terminated.
func CancelIfExceeds[T any](ctx context.Context, b *TimeBudget, work func(context.Context) (T, error)) (T, error) {
	return cancelIfExceeds(ctx, b, work, nil)
}

// CancelIfExceedsFallback is CancelIfExceeds with a fallback producer:
// when the budget fires first, the fallback's result is adopted instead
// of an error.
func CancelIfExceedsFallback[T any](ctx context.Context, b *TimeBudget, work, fallback func(context.Context) (T, error)) (T, error) {
	return cancelIfExceeds(ctx, b, work, fallback)
}

func cancelIfExceeds[T any](ctx context.Context, b *TimeBudget, work, fallback func(context.Context) (T, error)) (T, error) {
	ch := make(chan result[T], 1)
	go func() {
		v, err := work(ctx)
		ch <- result[T]{v: v, err: err}
	}()

	select {
	case r := <-ch:
		return r.v, r.err
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	case <-b.Done():
		// The work may have finished in the same instant the signal
		// fired; its own outcome wins then.
		select {
		case r := <-ch:
			return r.v, r.err
		default:
		}
		if fallback != nil {
			return fallback(ctx)
		}
		var zero T
		d, _ := b.Duration()
		return zero, &BudgetExceededError{Duration: d, Elapsed: b.Elapsed()}
	}
}
