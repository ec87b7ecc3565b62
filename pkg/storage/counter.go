package storage

import (
	"encoding/json"
	"sync"
)

// GCounter is a grow-only counter with per-node counts, merged by
// taking the max per node. Breaker replicas use one per key to count
// trips; states from other replicas merge in without double counting.
type GCounter struct {
	mu     sync.RWMutex
	counts map[string]int64
}

// NewGCounter creates an empty grow-only counter.
func NewGCounter() *GCounter {
	return &GCounter{counts: make(map[string]int64)}
}

// Increment increases this node's count by delta. Negative deltas are
// ignored; the counter only grows.
func (g *GCounter) Increment(nodeID string, delta int64) {
	if delta <= 0 {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts[nodeID] += delta
}

// Merge folds another counter state in, taking max per node.
func (g *GCounter) Merge(other map[string]int64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	for nodeID, c := range other {
		if c > g.counts[nodeID] {
			g.counts[nodeID] = c
		}
	}
}

// Value returns the total across all nodes.
func (g *GCounter) Value() int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	var total int64
	for _, c := range g.counts {
		total += c
	}
	return total
}

// Snapshot returns a copy of the per-node counts.
func (g *GCounter) Snapshot() map[string]int64 {
	g.mu.RLock()
	defer g.mu.RUnlock()
	out := make(map[string]int64, len(g.counts))
	for nodeID, c := range g.counts {
		out[nodeID] = c
	}
	return out
}

// MarshalJSON encodes the per-node counts.
func (g *GCounter) MarshalJSON() ([]byte, error) {
	return json.Marshal(g.Snapshot())
}

// UnmarshalJSON replaces the counter state with the encoded counts.
func (g *GCounter) UnmarshalJSON(data []byte) error {
	var counts map[string]int64
	if err := json.Unmarshal(data, &counts); err != nil {
		return err
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	g.counts = counts
	if g.counts == nil {
		g.counts = make(map[string]int64)
	}
	return nil
}
