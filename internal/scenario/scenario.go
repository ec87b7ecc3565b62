// Package scenario runs scripted call timelines against a breaker on a
// virtual clock. A script is a list of offset-stamped calls; the runner
// schedules them all and drains the clock, so hours of traffic replay
// in milliseconds with deterministic ordering.
package scenario

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"
)

// Event is a single scripted call against the breaker.
type Event struct {
	// At is the offset from scenario start when the call is made.
	At time.Duration `json:"at"`
	// Key identifies the protected dependency.
	Key string `json:"key"`
	// Fail marks the call as a failure outcome.
	Fail bool `json:"fail,omitempty"`
	// Latency is how long the call takes in virtual time.
	Latency time.Duration `json:"latency,omitempty"`
}

// Script is a named list of events.
type Script struct {
	Name   string  `json:"name,omitempty"`
	Events []Event `json:"events"`
}

// LoadJSON reads a script from a JSON reader.
func LoadJSON(r io.Reader) (*Script, error) {
	var s Script
	if err := json.NewDecoder(r).Decode(&s); err != nil {
		return nil, fmt.Errorf("decoding scenario: %w", err)
	}
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// LoadFile reads a script from a JSON file.
func LoadFile(path string) (*Script, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("opening scenario: %w", err)
	}
	defer f.Close()
	return LoadJSON(f)
}

// Validate checks the script is runnable.
func (s *Script) Validate() error {
	if len(s.Events) == 0 {
		return fmt.Errorf("scenario has no events")
	}
	for i, e := range s.Events {
		if e.At < 0 {
			return fmt.Errorf("event %d: offset must not be negative, got %s", i, e.At)
		}
		if e.Latency < 0 {
			return fmt.Errorf("event %d: latency must not be negative, got %s", i, e.Latency)
		}
		if e.Key == "" {
			return fmt.Errorf("event %d: key is required", i)
		}
	}
	return nil
}

// Sorted returns the events ordered by offset, preserving script order
// for equal offsets.
func (s *Script) Sorted() []Event {
	out := make([]Event, len(s.Events))
	copy(out, s.Events)
	sort.SliceStable(out, func(i, j int) bool { return out[i].At < out[j].At })
	return out
}

// End returns the offset at which the last event completes.
func (s *Script) End() time.Duration {
	var end time.Duration
	for _, e := range s.Events {
		if done := e.At + e.Latency; done > end {
			end = done
		}
	}
	return end
}

// WriteJSON writes the script as indented JSON.
func (s *Script) WriteJSON(w io.Writer) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(s)
}
