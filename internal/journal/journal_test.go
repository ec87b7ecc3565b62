package journal

import (
	"bytes"
	"context"
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/breaker"
	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
)

var epoch = time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

func TestJournal_CapturesBudgetEntries(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	j := New(nil)
	detach := j.Attach(vc, nil)
	defer detach()

	b, err := clock.NewTimeBudget(vc, 15*time.Second)
	if err != nil {
		t.Fatalf("NewTimeBudget() error = %v", err)
	}
	if err := vc.AdvanceBy(context.Background(), 5*time.Second); err != nil {
		t.Fatalf("AdvanceBy() error = %v", err)
	}
	b.RecordEntry("checkpoint")

	events := j.Events()
	if len(events) != 1 {
		t.Fatalf("Events() has %d entries, want 1", len(events))
	}
	e := events[0]
	if e.Type != EventBudgetEntry {
		t.Errorf("event type = %q, want %q", e.Type, EventBudgetEntry)
	}
	if e.Entry == nil || e.Entry.Name != "checkpoint" || e.Entry.Elapsed != 5*time.Second {
		t.Errorf("event entry = %+v, want checkpoint at 5s", e.Entry)
	}

	// Detached journals see nothing further.
	detach()
	b.RecordEntry("after-detach")
	if j.Len() != 1 {
		t.Errorf("detached journal captured %d events, want 1", j.Len())
	}
}

func TestJournal_CapturesTransitions(t *testing.T) {
	vc := clock.NewVirtualClock(epoch)
	br, err := breaker.New(breaker.Config{
		FailureThreshold: 1.0,
		MinSamples:       2,
		Window:           time.Minute,
		Cooldown:         30 * time.Second,
	}, vc, nil)
	if err != nil {
		t.Fatalf("breaker.New() error = %v", err)
	}

	j := New(nil)
	detach := j.Attach(vc, br)
	defer detach()

	ctx := context.Background()
	if err := br.Report(ctx, "svc", true); err != nil {
		t.Fatalf("Report() error = %v", err)
	}
	if err := br.Report(ctx, "svc", true); err != nil {
		t.Fatalf("Report() error = %v", err)
	}

	events := j.Events()
	if len(events) != 1 {
		t.Fatalf("Events() has %d entries, want 1", len(events))
	}
	e := events[0]
	if e.Type != EventTransition || e.Key != "svc" || e.From != "closed" || e.To != "open" {
		t.Errorf("event = %+v, want svc closed->open", e)
	}
	if !e.Time.Equal(epoch) {
		t.Errorf("event time = %v, want %v", e.Time, epoch)
	}
}

func TestJournal_StreamsNDJSON(t *testing.T) {
	var buf bytes.Buffer
	j := New(&buf)

	if err := j.Append(Event{Type: EventTransition, Time: epoch, Key: "a", From: "closed", To: "open"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}
	if err := j.Append(Event{Type: EventTransition, Time: epoch, Key: "b", From: "open", To: "half_open"}); err != nil {
		t.Fatalf("Append() error = %v", err)
	}

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 2 {
		t.Fatalf("streamed %d lines, want 2", len(lines))
	}
	var first Event
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal streamed line: %v", err)
	}
	if first.Key != "a" {
		t.Errorf("first streamed event key = %q, want a", first.Key)
	}
}

func TestJournal_ExportJSON(t *testing.T) {
	j := New(nil)
	_ = j.Append(Event{Type: EventTransition, Time: epoch, Key: "svc", From: "closed", To: "open"})

	var buf bytes.Buffer
	if err := j.ExportJSON(&buf); err != nil {
		t.Fatalf("ExportJSON() error = %v", err)
	}

	var restored []Event
	if err := json.Unmarshal(buf.Bytes(), &restored); err != nil {
		t.Fatalf("unmarshal export: %v", err)
	}
	if len(restored) != 1 || restored[0].Key != "svc" {
		t.Errorf("restored = %+v, want the exported event", restored)
	}
}

func TestJournal_Sinks(t *testing.T) {
	j := New(nil)
	var got []Event
	j.AddSink(func(e Event) { got = append(got, e) })

	_ = j.Append(Event{Type: EventTransition, Time: epoch, Key: "svc"})
	if len(got) != 1 || got[0].Key != "svc" {
		t.Errorf("sink received %+v, want the appended event", got)
	}
}
