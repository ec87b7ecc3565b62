package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func TestCancelIfExceeds_WorkFinishesFirst(t *testing.T) {
	b := newBudget(t, NewRealClock(), time.Minute)

	got, err := CancelIfExceeds(context.Background(), b, func(context.Context) (int, error) {
		return 42, nil
	})
	if err != nil {
		t.Fatalf("CancelIfExceeds() error = %v", err)
	}
	if got != 42 {
		t.Errorf("CancelIfExceeds() = %d, want the work's own result 42", got)
	}
}

func TestCancelIfExceeds_WorkErrorForwarded(t *testing.T) {
	b := newBudget(t, NewRealClock(), time.Minute)
	boom := errors.New("boom")

	_, err := CancelIfExceeds(context.Background(), b, func(context.Context) (int, error) {
		return 0, boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("CancelIfExceeds() error = %v, want boom", err)
	}
}

func TestCancelIfExceeds_BudgetFiresFirst(t *testing.T) {
	b := newBudget(t, NewRealClock(), 20*time.Millisecond)

	start := time.Now()
	_, err := CancelIfExceeds(context.Background(), b, func(ctx context.Context) (string, error) {
		<-time.After(5 * time.Second)
		return "too late", nil
	})

	var exceeded *BudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("CancelIfExceeds() error = %v, want *BudgetExceededError", err)
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("CancelIfExceeds() hung %v past expiry", elapsed)
	}
}

func TestCancelIfExceedsFallback_AdoptsFallbackResult(t *testing.T) {
	b := newBudget(t, NewRealClock(), 20*time.Millisecond)

	got, err := CancelIfExceedsFallback(context.Background(), b,
		func(ctx context.Context) (string, error) {
			<-time.After(5 * time.Second)
			return "too late", nil
		},
		func(context.Context) (string, error) {
			return "fallback", nil
		})
	if err != nil {
		t.Fatalf("CancelIfExceedsFallback() error = %v", err)
	}
	if got != "fallback" {
		t.Errorf("CancelIfExceedsFallback() = %q, want %q", got, "fallback")
	}
}

func TestCancelIfExceeds_ForcedCancel(t *testing.T) {
	b := newBudget(t, NewRealClock(), time.Hour)
	b.Cancel()

	_, err := CancelIfExceeds(context.Background(), b, func(context.Context) (int, error) {
		<-time.After(5 * time.Second)
		return 0, nil
	})
	var exceeded *BudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("CancelIfExceeds() after Cancel error = %v, want *BudgetExceededError", err)
	}
}

func TestCancelIfExceeds_ContextCanceled(t *testing.T) {
	b := newBudget(t, NewRealClock(), time.Hour)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := CancelIfExceeds(ctx, b, func(ctx context.Context) (int, error) {
		<-ctx.Done()
		return 0, ctx.Err()
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("CancelIfExceeds() error = %v, want context.Canceled", err)
	}
}
