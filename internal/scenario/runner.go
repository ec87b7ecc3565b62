package scenario

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

// Result captures the outcome of a single scripted call.
type Result struct {
	Event    Event            `json:"event"`
	Decision breaker.Decision `json:"decision"`
	// Time is the virtual time when the decision was made.
	Time time.Time `json:"time"`
}

// Summary aggregates scenario statistics.
type Summary struct {
	Total    int                   `json:"total"`
	Allowed  int                   `json:"allowed"`
	Rejected int                   `json:"rejected"`
	Failures int                   `json:"failures"`
	// Duration is the virtual time span of the scenario.
	Duration time.Duration `json:"duration"`
	// WallDuration is the wall-clock time the run took.
	WallDuration time.Duration         `json:"wall_duration"`
	PerKey       map[string]KeySummary `json:"per_key"`
}

// KeySummary has per-key stats.
type KeySummary struct {
	Allowed  int `json:"allowed"`
	Rejected int `json:"rejected"`
	Failures int `json:"failures"`
}

// Runner drives a script through a breaker on a virtual clock. Every
// event is scheduled up front, then a single drain plays the whole
// timeline; calls with latency wait on the clock mid-action, so
// overlapping calls interleave exactly as their timestamps dictate.
type Runner struct {
	breaker *breaker.Breaker
	clock   *clock.VirtualClock

	mu      sync.Mutex
	summary *Summary
	cb      func(Result)
}

// NewRunner creates a runner over br and vc.
func NewRunner(br *breaker.Breaker, vc *clock.VirtualClock) *Runner {
	return &Runner{breaker: br, clock: vc}
}

// Run plays the script to completion. The callback, if non-nil, is
// invoked for each call in virtual-time order.
func (r *Runner) Run(ctx context.Context, s *Script, cb func(Result)) (*Summary, error) {
	if err := s.Validate(); err != nil {
		return nil, err
	}

	r.mu.Lock()
	r.summary = &Summary{PerKey: make(map[string]KeySummary)}
	r.cb = cb
	r.mu.Unlock()

	events := s.Sorted()
	for _, ev := range events {
		ev := ev
		if err := r.clock.Schedule(ev.At, func(ctx context.Context, c clock.Clock) error {
			return r.play(ctx, c, ev)
		}); err != nil {
			return nil, fmt.Errorf("scheduling event at %s: %w", ev.At, err)
		}
	}

	wallStart := time.Now()
	if err := r.clock.AdvanceBy(ctx, s.End()); err != nil {
		return nil, fmt.Errorf("running scenario: %w", err)
	}

	r.mu.Lock()
	summary := r.summary
	r.mu.Unlock()
	summary.Duration = s.End()
	summary.WallDuration = time.Since(wallStart)
	return summary, nil
}

// play makes one scripted call. It runs inside the clock drain, so the
// latency wait parks this call and lets later events run before the
// outcome is reported.
func (r *Runner) play(ctx context.Context, c clock.Clock, ev Event) error {
	d, err := r.breaker.Allow(ctx, ev.Key)
	if err != nil {
		return fmt.Errorf("allow %q: %w", ev.Key, err)
	}

	if d.Allowed {
		if ev.Latency > 0 {
			if err := c.Wait(ctx, ev.Latency); err != nil {
				return fmt.Errorf("call latency for %q: %w", ev.Key, err)
			}
		}
		if err := r.breaker.Report(ctx, ev.Key, ev.Fail); err != nil {
			return fmt.Errorf("report %q: %w", ev.Key, err)
		}
	}

	res := Result{Event: ev, Decision: d, Time: c.Now()}

	r.mu.Lock()
	r.summary.Total++
	ks := r.summary.PerKey[ev.Key]
	if d.Allowed {
		r.summary.Allowed++
		ks.Allowed++
		if ev.Fail {
			r.summary.Failures++
			ks.Failures++
		}
	} else {
		r.summary.Rejected++
		ks.Rejected++
	}
	r.summary.PerKey[ev.Key] = ks
	cb := r.cb
	r.mu.Unlock()

	if cb != nil {
		cb(res)
	}
	return nil
}
