package clock

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"
)

// RealClock delegates to the standard time package. Scheduled actions
// run on their own goroutines via time.AfterFunc; a small registry of
// pending due times backs TimeUntilNextActionDue.
type RealClock struct {
	entryHub

	mu      sync.Mutex
	nextID  uint64
	pending map[uint64]time.Time
	onError func(error)
}

// NewRealClock creates a RealClock.
func NewRealClock() *RealClock {
	return &RealClock{
		pending: make(map[uint64]time.Time),
	}
}

func (c *RealClock) Now() time.Time {
	return time.Now()
}

func (c *RealClock) Since(t time.Time) time.Duration {
	return time.Since(t)
}

// OnActionError registers fn to receive errors from detached scheduled
// actions, replacing the default of logging them. A nil fn restores the
// default.
func (c *RealClock) OnActionError(fn func(error)) {
	c.mu.Lock()
	c.onError = fn
	c.mu.Unlock()
}

// Schedule runs action after offset has elapsed in real time. A
// detached real-time action has no awaiter, so its error goes to the
// OnActionError hook (by default the log).
func (c *RealClock) Schedule(offset time.Duration, action Action) error {
	if action == nil {
		return fmt.Errorf("schedule: nil action")
	}
	if offset < 0 {
		return fmt.Errorf("schedule: %w", ErrNegativeDuration)
	}

	c.mu.Lock()
	c.nextID++
	id := c.nextID
	c.pending[id] = time.Now().Add(offset)
	c.mu.Unlock()

	time.AfterFunc(offset, func() {
		c.mu.Lock()
		delete(c.pending, id)
		onError := c.onError
		c.mu.Unlock()
		if err := action(context.Background(), c); err != nil {
			if onError != nil {
				onError(err)
				return
			}
			log.Printf("clock: scheduled action failed: %v", err)
		}
	})
	return nil
}

// Wait blocks for d of real time or until ctx is done.
func (c *RealClock) Wait(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("wait: %w", ErrNegativeDuration)
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *RealClock) TimeUntilNextActionDue() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return 0, false
	}
	now := time.Now()
	var min time.Duration
	first := true
	for _, due := range c.pending {
		d := due.Sub(now)
		if d < 0 {
			d = 0
		}
		if first || d < min {
			min = d
			first = false
		}
	}
	return min, true
}
