package clock

import (
	"container/heap"
	"context"
	"fmt"
	"sync"
	"time"
)

// VirtualClock is a controllable clock for time-travel testing. Time
// only moves when AdvanceTo, AdvanceBy or Wait is called; pending
// scheduled actions fire in (due time, scheduling order) as the clock
// is drained toward the requested target.
//
// Virtual time is single-logical-thread cooperative scheduling: exactly
// one action body executes at a time. A body may call Wait, AdvanceTo
// or AdvanceBy re-entrantly; the calling flow is then parked as a
// continuation keyed by its resume time and the single pump carries on,
// waking it once progress reaches that instant. One VirtualClock must
// not be driven from multiple goroutines without external
// synchronization.
type VirtualClock struct {
	entryHub

	mu       sync.Mutex
	now      time.Time
	seq      uint64
	queue    itemHeap
	frontier time.Time
	pumping  bool // a drain toward frontier is in progress
	running  bool // an item body is currently executing
	current  *flow
}

// item is either a scheduled action (action != nil) or a parked
// continuation of a flow that re-entered Wait/Advance (fl != nil).
// Ties on due break by seq, so equal-due items fire strictly FIFO.
type item struct {
	seq    uint64
	due    time.Time
	action Action
	fl     *flow
	resume chan error
}

// flow is one logical thread of execution through the pump: an action
// body together with any continuations it parks. events carries its
// park/done notifications back to the pump; the buffer lets a final
// notification after an aborted drain complete without a receiver.
type flow struct {
	events chan flowEvent
}

type flowEvent struct {
	parked bool
	err    error
}

// NewVirtualClock creates a VirtualClock starting at the given time.
func NewVirtualClock(start time.Time) *VirtualClock {
	return &VirtualClock{now: start, frontier: start}
}

// Now returns the current virtual time. Code running inside a scheduled
// action observes the action's own due time, not the eventual advance
// target.
func (c *VirtualClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

// Since returns the virtual duration elapsed since t.
func (c *VirtualClock) Since(t time.Time) time.Duration {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now.Sub(t)
}

// Schedule enqueues action due at Now()+offset. The queue is only
// drained by AdvanceTo, AdvanceBy or Wait; scheduling alone never runs
// anything.
func (c *VirtualClock) Schedule(offset time.Duration, action Action) error {
	if action == nil {
		return fmt.Errorf("schedule: nil action")
	}
	if offset < 0 {
		return fmt.Errorf("schedule: %w", ErrNegativeDuration)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.seq++
	heap.Push(&c.queue, &item{
		seq:    c.seq,
		due:    c.now.Add(offset),
		action: action,
	})
	return nil
}

// TimeUntilNextActionDue reports the time until the earliest pending
// item is due. Parked Wait continuations count: a Wait is a scheduled
// action whose sole body is to resume its caller.
func (c *VirtualClock) TimeUntilNextActionDue() (time.Duration, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.queue.Len() == 0 {
		return 0, false
	}
	d := c.queue[0].due.Sub(c.now)
	if d < 0 {
		d = 0
	}
	return d, true
}

// AdvanceTo drains the queue until Now() >= target, firing every
// pending item due on the way, then lands exactly on target.
func (c *VirtualClock) AdvanceTo(ctx context.Context, target time.Time) error {
	return c.advance(ctx, func() time.Time { return target })
}

// AdvanceBy is AdvanceTo(Now()+d).
func (c *VirtualClock) AdvanceBy(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return ErrBackwardTime
	}
	return c.advance(ctx, func() time.Time { return c.now.Add(d) })
}

// Wait blocks until d has elapsed on this clock. From top-level code it
// drives the pump itself; from inside an executing action body it parks
// the calling flow and returns once the shared pump's progress reaches
// Now()+d.
func (c *VirtualClock) Wait(ctx context.Context, d time.Duration) error {
	if d < 0 {
		return fmt.Errorf("wait: %w", ErrNegativeDuration)
	}
	return c.advance(ctx, func() time.Time { return c.now.Add(d) })
}

// advance computes its absolute target under the lock (so re-entrant
// relative targets resolve against the now the caller observes) and
// then either starts the pump or joins the running one.
func (c *VirtualClock) advance(ctx context.Context, targetOf func() time.Time) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	c.mu.Lock()
	target := targetOf()
	if target.Before(c.now) {
		c.mu.Unlock()
		return ErrBackwardTime
	}

	if c.pumping {
		if !c.running {
			// Another goroutine owns the pump and no body is executing:
			// this is an unsynchronized concurrent advance, which the
			// cooperative model does not support.
			c.mu.Unlock()
			return fmt.Errorf("advance: virtual clock is already being advanced by another caller")
		}
		// Re-entrant call from inside the executing action body: raise
		// the running pump's frontier and park this flow until the
		// pump's progress reaches the target. Never start a second
		// drain loop.
		return c.parkLocked(target)
	}

	c.pumping = true
	c.frontier = target
	c.mu.Unlock()
	return c.pump(ctx)
}

// parkLocked registers the current flow as a continuation due at wake
// and suspends it. Called with c.mu held; releases it.
func (c *VirtualClock) parkLocked(wake time.Time) error {
	if wake.After(c.frontier) {
		c.frontier = wake
	}
	fl := c.current
	resume := make(chan error, 1)
	c.seq++
	heap.Push(&c.queue, &item{
		seq:    c.seq,
		due:    wake,
		fl:     fl,
		resume: resume,
	})
	c.mu.Unlock()

	fl.events <- flowEvent{parked: true}
	return <-resume
}

// pump is the single drain loop for this clock. It repeatedly pops the
// earliest item due at or before the frontier, moves now to that item's
// due time, runs the item's flow to its next suspension point, and when
// nothing due remains lands now exactly on the frontier. The frontier
// may have been raised re-entrantly while a body ran, so it is re-read
// every iteration.
func (c *VirtualClock) pump(ctx context.Context) error {
	for {
		c.mu.Lock()
		var it *item
		if c.queue.Len() > 0 && !c.queue[0].due.After(c.frontier) {
			it = heap.Pop(&c.queue).(*item)
		}
		if it == nil {
			c.now = c.frontier
			c.pumping = false
			c.mu.Unlock()
			return nil
		}

		if it.due.After(c.now) {
			c.now = it.due
		}
		fl := it.fl
		if fl == nil {
			fl = &flow{events: make(chan flowEvent, 1)}
		}
		c.current = fl
		c.running = true
		c.mu.Unlock()

		if it.action != nil {
			action := it.action
			go func() {
				fl.events <- flowEvent{err: action(ctx, c)}
			}()
		} else {
			it.resume <- nil
		}

		// Block until this flow finishes its body — including any real
		// asynchronous work the body performs — or parks again. Nothing
		// else is popped in between.
		ev := <-fl.events

		c.mu.Lock()
		c.running = false
		c.current = nil
		c.mu.Unlock()

		if !ev.parked && ev.err != nil {
			return c.abort(ev.err)
		}
	}
}

// abort stops the drain after a body error. Parked waiters are resumed
// with the cause so suspended flows can unwind; scheduled actions that
// never fired stay queued. Now stays wherever the drain got to.
func (c *VirtualClock) abort(cause error) error {
	c.mu.Lock()
	var kept itemHeap
	for c.queue.Len() > 0 {
		it := heap.Pop(&c.queue).(*item)
		if it.resume != nil {
			it.resume <- fmt.Errorf("virtual clock drain aborted: %w", cause)
			continue
		}
		kept = append(kept, it)
	}
	for _, it := range kept {
		heap.Push(&c.queue, it)
	}
	c.pumping = false
	c.mu.Unlock()
	return cause
}

// itemHeap orders items by (due, seq): earliest due first, scheduling
// order among equals.
type itemHeap []*item

func (h itemHeap) Len() int { return len(h) }

func (h itemHeap) Less(i, j int) bool {
	if h[i].due.Equal(h[j].due) {
		return h[i].seq < h[j].seq
	}
	return h[i].due.Before(h[j].due)
}

func (h itemHeap) Swap(i, j int) { h[i], h[j] = h[j], h[i] }

func (h *itemHeap) Push(x any) { *h = append(*h, x.(*item)) }

func (h *itemHeap) Pop() any {
	old := *h
	n := len(old)
	it := old[n-1]
	old[n-1] = nil
	*h = old[:n-1]
	return it
}
