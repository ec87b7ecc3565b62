// Package clock abstracts time behind a capability interface so that
// time-dependent logic — delays, timeouts, retry budgets — can be driven
// deterministically and instantly in tests while behaving identically
// against real elapsed time in production.
package clock

import (
	"context"
	"errors"
	"time"
)

// Action is a unit of work scheduled against a clock. The clock it fired
// on is passed in so the body can read Now, schedule further actions, or
// wait again from inside the action.
type Action func(ctx context.Context, c Clock) error

// Clock is the time capability all time-dependent code in Tempo uses
// instead of the time package directly.
type Clock interface {
	// Now returns the current time.
	Now() time.Time

	// Since returns the duration elapsed since t.
	Since(t time.Time) time.Duration

	// Schedule enqueues action to run once offset has elapsed on this
	// clock. A zero offset means "as soon as the clock next advances at
	// all". Scheduling never runs the action in-line.
	Schedule(offset time.Duration, action Action) error

	// Wait blocks until d has elapsed on this clock. On a virtual clock
	// it may be called from inside a currently-executing scheduled
	// action; the calling flow is suspended and resumed cooperatively.
	Wait(ctx context.Context, d time.Duration) error

	// TimeUntilNextActionDue reports how long until the earliest pending
	// scheduled action is due. ok is false when nothing is pending.
	// Actions that have already fired are never counted, regardless of
	// how time moved afterward.
	TimeUntilNextActionDue() (d time.Duration, ok bool)
}

// These messages are part of the public surface; callers match on the
// variables with errors.Is.
var (
	// ErrVirtualClockActive is returned by StartVirtual while another
	// virtual clock is still installed.
	ErrVirtualClockActive = errors.New("A virtual clock cannot be started while another is still active in the current context.")

	// ErrBackwardTime is returned by AdvanceTo and AdvanceBy when the
	// requested target lies before the clock's current time.
	ErrBackwardTime = errors.New("The clock cannot be moved backward in time.")

	// ErrNegativeDuration is returned when a schedule offset or wait
	// duration is negative.
	ErrNegativeDuration = errors.New("duration must not be negative")

	// ErrNonPositiveBudget is returned by NewTimeBudget for a duration
	// of zero or less.
	ErrNonPositiveBudget = errors.New("budget duration must be positive")
)
