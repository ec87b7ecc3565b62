package storage

import (
	"context"
	"sync"
	"time"
)

// MemoryStorage is an in-memory Storage backed by maps. Observations
// older than the window are pruned on access.
// Thread-safe for concurrent use.
type MemoryStorage struct {
	mu       sync.Mutex
	outcomes map[string][]observation
	trips    map[string]map[string]int64
}

type observation struct {
	at      time.Time
	failure bool
}

// NewMemoryStorage creates an empty in-memory backend.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		outcomes: make(map[string][]observation),
		trips:    make(map[string]map[string]int64),
	}
}

func (s *MemoryStorage) RecordOutcome(_ context.Context, key string, failure bool, now time.Time, window time.Duration) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pruneLocked(key, now, window)
	kept = append(kept, observation{at: now, failure: failure})
	s.outcomes[key] = kept
	return tally(kept), nil
}

func (s *MemoryStorage) Counts(_ context.Context, key string, now time.Time, window time.Duration) (Counts, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	kept := s.pruneLocked(key, now, window)
	s.outcomes[key] = kept
	return tally(kept), nil
}

func (s *MemoryStorage) MergeTrips(_ context.Context, key string, counts map[string]int64) (map[string]int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	merged, ok := s.trips[key]
	if !ok {
		merged = make(map[string]int64)
		s.trips[key] = merged
	}
	for node, n := range counts {
		if n > merged[node] {
			merged[node] = n
		}
	}

	out := make(map[string]int64, len(merged))
	for node, n := range merged {
		out[node] = n
	}
	return out, nil
}

func (s *MemoryStorage) Reset(_ context.Context, key string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.outcomes, key)
	delete(s.trips, key)
	return nil
}

// pruneLocked drops observations at or before now-window.
func (s *MemoryStorage) pruneLocked(key string, now time.Time, window time.Duration) []observation {
	cutoff := now.Add(-window)
	var kept []observation
	for _, o := range s.outcomes[key] {
		if o.at.After(cutoff) {
			kept = append(kept, o)
		}
	}
	return kept
}

func tally(obs []observation) Counts {
	var c Counts
	for _, o := range obs {
		if o.failure {
			c.Failures++
		} else {
			c.Successes++
		}
	}
	return c
}
