package clock

import (
	"context"
	"errors"
	"testing"
	"time"
)

func advance(t *testing.T, vc *VirtualClock, d time.Duration) {
	t.Helper()
	if err := vc.AdvanceBy(context.Background(), d); err != nil {
		t.Fatalf("AdvanceBy(%v) error = %v", d, err)
	}
}

func newBudget(t *testing.T, c Clock, d time.Duration) *TimeBudget {
	t.Helper()
	b, err := NewTimeBudget(c, d)
	if err != nil {
		t.Fatalf("NewTimeBudget() error = %v", err)
	}
	return b
}

func TestNewTimeBudget_RejectsNonPositiveDuration(t *testing.T) {
	vc := NewVirtualClock(epoch)
	for _, d := range []time.Duration{0, -time.Second} {
		if _, err := NewTimeBudget(vc, d); !errors.Is(err, ErrNonPositiveBudget) {
			t.Errorf("NewTimeBudget(%v) error = %v, want ErrNonPositiveBudget", d, err)
		}
	}
}

func TestTimeBudget_ElapsedRemainingExceeded(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, 5*time.Second)

	advance(t, vc, 3*time.Second)
	if got := b.Elapsed(); got != 3*time.Second {
		t.Errorf("Elapsed() = %v, want 3s", got)
	}
	if got := b.Remaining(); got != 2*time.Second {
		t.Errorf("Remaining() = %v, want 2s", got)
	}
	if b.IsExceeded() {
		t.Error("IsExceeded() = true before the duration elapsed")
	}

	advance(t, vc, 3*time.Second)
	if !b.IsExceeded() {
		t.Error("IsExceeded() = false after advancing past the duration")
	}
	if got := b.Remaining(); got != 0 {
		t.Errorf("Remaining() = %v after expiry, want 0", got)
	}
}

func TestTimeBudget_StartTimeNeverChanges(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, 5*time.Second)

	start := b.StartTime()
	advance(t, vc, time.Hour)
	if !b.StartTime().Equal(start) || !start.Equal(epoch) {
		t.Errorf("StartTime() = %v, want %v unchanged", b.StartTime(), epoch)
	}
}

func TestTimeBudget_DoneFiresWhenDrainReachesExpiry(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, 5*time.Second)

	select {
	case <-b.Done():
		t.Fatal("Done() fired before any advance")
	default:
	}

	advance(t, vc, 4*time.Second)
	select {
	case <-b.Done():
		t.Fatal("Done() fired before the drain reached expiry")
	default:
	}

	advance(t, vc, time.Second)
	select {
	case <-b.Done():
	default:
		t.Fatal("Done() did not fire once the drain reached start+duration")
	}
}

func TestTimeBudget_CancelIsImmediateAndIrreversible(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, time.Hour)

	b.Cancel()
	select {
	case <-b.Done():
	default:
		t.Fatal("Done() not fired after Cancel()")
	}
	if !b.IsExceeded() {
		t.Error("IsExceeded() = false after Cancel()")
	}
	b.Cancel() // second cancel is harmless
}

func TestTimeBudget_Unlimited(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := Unlimited(vc)

	advance(t, vc, 1000*time.Hour)
	if b.IsExceeded() {
		t.Error("unlimited budget reported exceeded")
	}
	if got := b.Elapsed(); got != 1000*time.Hour {
		t.Errorf("Elapsed() = %v, want informational elapsed time", got)
	}
	if got := b.Remaining(); got != maxDuration {
		t.Errorf("Remaining() = %v, want maxDuration", got)
	}
	if e := b.RecordEntry("checkpoint"); e.Exceeded {
		t.Error("entry on an unlimited budget marked exceeded")
	}
	select {
	case <-b.Done():
		t.Fatal("unlimited budget's Done() fired")
	default:
	}
}

func TestTimeBudget_EntryLedgerStrings(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, 15*time.Second)

	advance(t, vc, 5*time.Second)
	b.RecordEntry("one")
	advance(t, vc, 8*time.Second)
	b.RecordEntry("two")
	advance(t, vc, 13*time.Second)
	b.RecordEntry("three")

	want := []string{
		"✔ one @ 5 seconds",
		"✔ two @ 13 seconds",
		"❌ three @ 26 seconds (budget exceeded by 11 seconds)",
	}
	entries := b.Entries()
	if len(entries) != len(want) {
		t.Fatalf("Entries() returned %d entries, want %d", len(entries), len(want))
	}
	for i, w := range want {
		if got := entries[i].String(); got != w {
			t.Errorf("entry %d = %q, want %q", i, got, w)
		}
	}
	// Re-rendering is idempotent; the stored entries are never revised.
	if got := entries[2].String(); got != want[2] {
		t.Errorf("second render = %q, want %q", got, want[2])
	}
}

func TestTimeBudget_RecordEntryAndCheck(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, 15*time.Second)

	advance(t, vc, 5*time.Second)
	if err := b.RecordEntryAndCheck("one"); err != nil {
		t.Fatalf("RecordEntryAndCheck() within budget error = %v", err)
	}
	advance(t, vc, 8*time.Second)
	if err := b.RecordEntryAndCheck("two"); err != nil {
		t.Fatalf("RecordEntryAndCheck() within budget error = %v", err)
	}

	advance(t, vc, 13*time.Second)
	err := b.RecordEntryAndCheck("three")
	var exceeded *TimeBudgetExceededError
	if !errors.As(err, &exceeded) {
		t.Fatalf("RecordEntryAndCheck() error = %v, want *TimeBudgetExceededError", err)
	}

	want := "Time budget of 15 seconds exceeded at 2024-01-01T00:00:26Z\n" +
		"  ✔ one @ 5 seconds\n" +
		"  ✔ two @ 13 seconds\n" +
		"  ❌ three @ 26 seconds (budget exceeded by 11 seconds)"
	if got := exceeded.Error(); got != want {
		t.Errorf("rendered ledger =\n%q\nwant\n%q", got, want)
	}
}

func TestTimeBudget_ObserversNotifiedInOrder(t *testing.T) {
	vc := NewVirtualClock(epoch)
	b := newBudget(t, vc, time.Minute)

	var order []string
	removeFirst := vc.OnBudgetEntryRecorded(func(c Clock, got *TimeBudget, e BudgetEntry) {
		if c != Clock(vc) || got != b {
			t.Errorf("observer received clock=%v budget=%p, want the owners", c, got)
		}
		order = append(order, "first:"+e.Name)
	})
	removeSecond := vc.OnBudgetEntryRecorded(func(_ Clock, _ *TimeBudget, e BudgetEntry) {
		order = append(order, "second:"+e.Name)
	})
	defer removeSecond()

	b.RecordEntry("a")

	// Removing one registration must not touch the other.
	removeFirst()
	b.RecordEntry("b")
	removeFirst() // double remove is a no-op

	want := []string{"first:a", "second:a", "second:b"}
	if len(order) != len(want) {
		t.Fatalf("observer calls = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Fatalf("observer calls = %v, want %v", order, want)
		}
	}
}

func TestTimeBudget_NilClockUsesAmbient(t *testing.T) {
	vc, release, err := StartVirtual(epoch)
	if err != nil {
		t.Fatalf("StartVirtual() error = %v", err)
	}
	defer release()

	b := newBudget(t, nil, 5*time.Second)
	if b.Clock() != Clock(vc) {
		t.Errorf("budget clock = %v, want the ambient virtual clock", b.Clock())
	}
}
