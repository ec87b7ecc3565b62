// Package journal captures timestamped clock and breaker events for
// later inspection: budget entries via the clock's observer hook and
// breaker state transitions via the breaker's hook.
package journal

import (
	"encoding/json"
	"io"
	"os"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

// EventType discriminates journal events.
type EventType string

const (
	EventBudgetEntry EventType = "budget_entry"
	EventTransition  EventType = "transition"
)

// Event is a single journal record.
type Event struct {
	Type EventType `json:"type"`
	Time time.Time `json:"time"`

	// Budget entry fields.
	Entry *clock.BudgetEntry `json:"entry,omitempty"`

	// Transition fields.
	Key  string `json:"key,omitempty"`
	From string `json:"from,omitempty"`
	To   string `json:"to,omitempty"`
}

// Journal accumulates events. If a writer is set, events are also
// streamed to it as newline-delimited JSON as they arrive.
// Thread-safe for concurrent use.
type Journal struct {
	mu     sync.Mutex
	events []Event
	writer io.Writer
	sinks  []func(Event)
}

// New creates a Journal. w may be nil.
func New(w io.Writer) *Journal {
	return &Journal{writer: w}
}

// Append records a single event.
func (j *Journal) Append(e Event) error {
	j.mu.Lock()
	j.events = append(j.events, e)
	sinks := make([]func(Event), len(j.sinks))
	copy(sinks, j.sinks)
	var writeErr error
	if j.writer != nil {
		writeErr = json.NewEncoder(j.writer).Encode(e)
	}
	j.mu.Unlock()

	for _, sink := range sinks {
		sink(e)
	}
	return writeErr
}

// AddSink registers fn to receive every future event, for live
// broadcast surfaces like the websocket hub.
func (j *Journal) AddSink(fn func(Event)) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.sinks = append(j.sinks, fn)
}

// Attach subscribes the journal to budget entries on c and transitions
// on b (either may be nil). The returned func detaches both.
func (j *Journal) Attach(c clock.Clock, b *breaker.Breaker) (detach func()) {
	var removes []func()

	type entryHook interface {
		OnBudgetEntryRecorded(clock.EntryObserver) func()
	}
	if hook, ok := c.(entryHook); ok {
		removes = append(removes, hook.OnBudgetEntryRecorded(
			func(c clock.Clock, _ *clock.TimeBudget, e clock.BudgetEntry) {
				entry := e
				_ = j.Append(Event{
					Type:  EventBudgetEntry,
					Time:  c.Now(),
					Entry: &entry,
				})
			}))
	}
	if b != nil {
		removes = append(removes, b.OnTransition(
			func(key string, from, to breaker.State, at time.Time) {
				_ = j.Append(Event{
					Type: EventTransition,
					Time: at,
					Key:  key,
					From: from.String(),
					To:   to.String(),
				})
			}))
	}

	return func() {
		for _, remove := range removes {
			remove()
		}
	}
}

// Events returns a copy of everything recorded so far.
func (j *Journal) Events() []Event {
	j.mu.Lock()
	defer j.mu.Unlock()
	out := make([]Event, len(j.events))
	copy(out, j.events)
	return out
}

// Len returns the number of recorded events.
func (j *Journal) Len() int {
	j.mu.Lock()
	defer j.mu.Unlock()
	return len(j.events)
}

// ExportJSON writes all events to w as an indented JSON array.
func (j *Journal) ExportJSON(w io.Writer) error {
	j.mu.Lock()
	defer j.mu.Unlock()

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(j.events)
}

// ExportFile writes all events to a file as a JSON array.
func (j *Journal) ExportFile(path string) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return j.ExportJSON(f)
}
