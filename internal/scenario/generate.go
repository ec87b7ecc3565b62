package scenario

import (
	"fmt"
	"math/rand"
	"time"
)

const (
	// PatternSteady spreads calls evenly with a uniform failure rate.
	PatternSteady = "steady"
	// PatternBurst clusters calls into bursts with quiet gaps.
	PatternBurst = "burst"
	// PatternOutage concentrates failures in a window mid-scenario, the
	// shape that trips and then recovers a breaker.
	PatternOutage = "outage"
)

// Options controls synthetic script generation.
type Options struct {
	Count       int
	Keys        int
	Duration    time.Duration
	Pattern     string
	FailureRate float64
	Seed        int64
}

// DefaultOptions returns defaults aligned with the CLI.
func DefaultOptions() Options {
	return Options{
		Count:       100,
		Keys:        3,
		Duration:    5 * time.Minute,
		Pattern:     PatternSteady,
		FailureRate: 0.1,
	}
}

// Generate creates a synthetic script based on the provided options.
func Generate(opts Options) (*Script, error) {
	if opts.Count <= 0 {
		return nil, fmt.Errorf("count must be positive, got %d", opts.Count)
	}
	if opts.Keys <= 0 {
		return nil, fmt.Errorf("keys must be positive, got %d", opts.Keys)
	}
	if opts.Duration <= 0 {
		return nil, fmt.Errorf("duration must be positive, got %s", opts.Duration)
	}
	if opts.FailureRate < 0 || opts.FailureRate > 1 {
		return nil, fmt.Errorf("failure rate must be in [0, 1], got %v", opts.FailureRate)
	}

	if opts.Pattern == "" {
		opts.Pattern = PatternSteady
	}
	if opts.Seed == 0 {
		opts.Seed = time.Now().UnixNano()
	}

	rng := rand.New(rand.NewSource(opts.Seed))
	keys := makeKeys(opts.Keys)

	var events []Event
	switch opts.Pattern {
	case PatternBurst:
		events = generateBurst(rng, opts, keys)
	case PatternOutage:
		events = generateOutage(rng, opts, keys)
	default: // steady and unknown patterns default to steady behavior.
		events = generateSteady(rng, opts, keys)
	}
	return &Script{Name: opts.Pattern, Events: events}, nil
}

func makeKeys(n int) []string {
	keys := make([]string, n)
	for i := range keys {
		keys[i] = fmt.Sprintf("service-%d", i+1)
	}
	return keys
}

func generateSteady(rng *rand.Rand, opts Options, keys []string) []Event {
	interval := opts.Duration / time.Duration(opts.Count)
	events := make([]Event, opts.Count)
	for i := range events {
		events[i] = Event{
			At:   time.Duration(i) * interval,
			Key:  keys[rng.Intn(len(keys))],
			Fail: rng.Float64() < opts.FailureRate,
		}
	}
	return events
}

func generateBurst(rng *rand.Rand, opts Options, keys []string) []Event {
	events := make([]Event, 0, opts.Count)
	numBursts := 4
	burstSize := opts.Count / numBursts
	burstGap := opts.Duration / time.Duration(numBursts)

	for b := 0; b < numBursts; b++ {
		burstStart := time.Duration(b) * burstGap
		for i := 0; i < burstSize; i++ {
			events = append(events, Event{
				At:   burstStart + time.Duration(rng.Intn(1000))*time.Millisecond,
				Key:  keys[rng.Intn(len(keys))],
				Fail: rng.Float64() < opts.FailureRate,
			})
		}
	}
	return events
}

// generateOutage makes every call inside the middle third of the
// scenario fail, with the base failure rate elsewhere.
func generateOutage(rng *rand.Rand, opts Options, keys []string) []Event {
	interval := opts.Duration / time.Duration(opts.Count)
	outageStart := opts.Duration / 3
	outageEnd := 2 * opts.Duration / 3
	events := make([]Event, opts.Count)
	for i := range events {
		at := time.Duration(i) * interval
		fail := rng.Float64() < opts.FailureRate
		if at >= outageStart && at < outageEnd {
			fail = true
		}
		events[i] = Event{
			At:   at,
			Key:  keys[rng.Intn(len(keys))],
			Fail: fail,
		}
	}
	return events
}
