package storage

import (
	"encoding/json"
	"testing"
)

func TestGCounter_IncrementAndValue(t *testing.T) {
	g := NewGCounter()
	g.Increment("node-a", 3)
	g.Increment("node-a", 2)
	g.Increment("node-b", 1)
	g.Increment("node-b", -5) // ignored

	if got := g.Value(); got != 6 {
		t.Errorf("Value() = %d, want 6", got)
	}
}

func TestGCounter_MergeMaxWins(t *testing.T) {
	g := NewGCounter()
	g.Increment("node-a", 5)

	g.Merge(map[string]int64{"node-a": 3, "node-b": 7})
	if got := g.Value(); got != 12 {
		t.Errorf("Value() after merge = %d, want 12 (5 kept, 7 adopted)", got)
	}

	// Merging is idempotent.
	g.Merge(map[string]int64{"node-a": 3, "node-b": 7})
	if got := g.Value(); got != 12 {
		t.Errorf("Value() after repeat merge = %d, want 12", got)
	}
}

func TestGCounter_JSONRoundTrip(t *testing.T) {
	g := NewGCounter()
	g.Increment("node-a", 4)
	g.Increment("node-b", 9)

	data, err := json.Marshal(g)
	if err != nil {
		t.Fatalf("Marshal() error = %v", err)
	}

	restored := NewGCounter()
	if err := json.Unmarshal(data, restored); err != nil {
		t.Fatalf("Unmarshal() error = %v", err)
	}
	if restored.Value() != 13 {
		t.Errorf("restored Value() = %d, want 13", restored.Value())
	}
}
