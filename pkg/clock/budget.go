package clock

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// TimeBudget is a duration anchored to the instant it was created on a
// clock. It tracks elapsed and remaining time, records named
// checkpoints, and exposes a cancellation signal that fires at the
// exact (virtual) instant the duration elapses.
type TimeBudget struct {
	c         Clock
	start     time.Time // captured once, never changes
	duration  time.Duration
	unlimited bool

	mu       sync.Mutex
	entries  []BudgetEntry
	canceled bool
	done     chan struct{}
	once     sync.Once
}

// maxDuration is what Remaining reports for an unlimited budget.
const maxDuration = time.Duration(1<<63 - 1)

// NewTimeBudget creates a budget of d on c. A nil clock means the
// ambient clock. Returns ErrNonPositiveBudget unless d > 0.
//
// The cancellation signal rides the owning clock: expiry is a scheduled
// action at start+d, so on a virtual clock it fires when a drain
// actually reaches that instant, not merely because time has logically
// passed.
func NewTimeBudget(c Clock, d time.Duration) (*TimeBudget, error) {
	if c == nil {
		c = Current()
	}
	if d <= 0 {
		return nil, fmt.Errorf("time budget: %w", ErrNonPositiveBudget)
	}

	b := &TimeBudget{
		c:        c,
		start:    c.Now(),
		duration: d,
		done:     make(chan struct{}),
	}
	if err := c.Schedule(d, func(context.Context, Clock) error {
		b.expire()
		return nil
	}); err != nil {
		return nil, err
	}
	return b, nil
}

// Unlimited creates a budget that never expires; elapsed time and
// entries are informational only. A nil clock means the ambient clock.
func Unlimited(c Clock) *TimeBudget {
	if c == nil {
		c = Current()
	}
	return &TimeBudget{
		c:         c,
		start:     c.Now(),
		unlimited: true,
		done:      make(chan struct{}),
	}
}

// Clock returns the owning clock.
func (b *TimeBudget) Clock() Clock { return b.c }

// StartTime returns the instant the budget was created. It never
// changes as the clock advances.
func (b *TimeBudget) StartTime() time.Time { return b.start }

// Duration returns the budget duration; ok is false for an unlimited
// budget.
func (b *TimeBudget) Duration() (d time.Duration, ok bool) {
	return b.duration, !b.unlimited
}

// IsUnlimited reports whether the budget never expires.
func (b *TimeBudget) IsUnlimited() bool { return b.unlimited }

// Elapsed returns how much time has passed on the owning clock since
// the budget started.
func (b *TimeBudget) Elapsed() time.Duration {
	return b.c.Since(b.start)
}

// Remaining returns max(0, duration-elapsed), or maxDuration for an
// unlimited budget.
func (b *TimeBudget) Remaining() time.Duration {
	if b.unlimited {
		return maxDuration
	}
	r := b.duration - b.Elapsed()
	if r < 0 {
		r = 0
	}
	return r
}

// IsExceeded reports whether elapsed time has passed the duration, or
// the budget was canceled. Always false for an unlimited budget unless
// canceled.
func (b *TimeBudget) IsExceeded() bool {
	b.mu.Lock()
	canceled := b.canceled
	b.mu.Unlock()
	if canceled {
		return true
	}
	if b.unlimited {
		return false
	}
	return b.Elapsed() > b.duration
}

// Done returns the cancellation signal. It is closed at the instant the
// owning clock reaches start+duration, or when Cancel is called,
// whichever comes first, and never reopens.
func (b *TimeBudget) Done() <-chan struct{} { return b.done }

// Cancel irreversibly forces the signal and IsExceeded, regardless of
// elapsed time.
func (b *TimeBudget) Cancel() {
	b.mu.Lock()
	b.canceled = true
	b.mu.Unlock()
	b.expire()
}

func (b *TimeBudget) expire() {
	b.once.Do(func() { close(b.done) })
}

// RecordEntry appends a named checkpoint computed from the current
// elapsed time, then synchronously notifies, in subscription order,
// every observer registered on the owning clock.
func (b *TimeBudget) RecordEntry(name string) BudgetEntry {
	elapsed := b.Elapsed()
	e := BudgetEntry{Name: name, Elapsed: elapsed}
	if !b.unlimited && elapsed > b.duration {
		e.Exceeded = true
		e.Excess = elapsed - b.duration
	}

	b.mu.Lock()
	b.entries = append(b.entries, e)
	b.mu.Unlock()

	if pub, ok := b.c.(budgetEntryPublisher); ok {
		pub.publishBudgetEntry(b.c, b, e)
	}
	return e
}

// RecordEntryAndCheck records the entry and, if it is over budget,
// returns a *TimeBudgetExceededError carrying the full rendered ledger.
func (b *TimeBudget) RecordEntryAndCheck(name string) error {
	e := b.RecordEntry(name)
	if !e.Exceeded {
		return nil
	}
	return &TimeBudgetExceededError{
		Duration: b.duration,
		Now:      b.c.Now(),
		Entries:  b.Entries(),
	}
}

// Entries returns a copy of every entry recorded so far, in order.
func (b *TimeBudget) Entries() []BudgetEntry {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]BudgetEntry, len(b.entries))
	copy(out, b.entries)
	return out
}
