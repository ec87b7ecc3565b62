// Package storage holds circuit breaker state behind a pluggable
// backend so that breaker replicas can share failure counts. Time is
// always passed in by the caller, never read from the wall clock, so
// every backend works identically under a virtual clock.
package storage

import (
	"context"
	"time"
)

// Counts is the windowed outcome tally for one key.
type Counts struct {
	Successes int64 `json:"successes"`
	Failures  int64 `json:"failures"`
}

// Total returns successes plus failures.
func (c Counts) Total() int64 { return c.Successes + c.Failures }

// FailureRate returns failures/total, or 0 with no observations.
func (c Counts) FailureRate() float64 {
	total := c.Total()
	if total == 0 {
		return 0
	}
	return float64(c.Failures) / float64(total)
}

// Storage abstracts the backend for breaker state.
// Implementations must be safe for concurrent use.
type Storage interface {
	// RecordOutcome adds one success or failure observation for key at
	// now and returns the counts still inside the window ending at now.
	RecordOutcome(ctx context.Context, key string, failure bool, now time.Time, window time.Duration) (Counts, error)

	// Counts returns the windowed counts for key without recording
	// anything.
	Counts(ctx context.Context, key string, now time.Time, window time.Duration) (Counts, error)

	// MergeTrips merges this node's grow-only trip counter for key into
	// the shared state (max wins per node) and returns the merged view.
	MergeTrips(ctx context.Context, key string, counts map[string]int64) (map[string]int64, error)

	// Reset clears all state for key.
	Reset(ctx context.Context, key string) error
}
