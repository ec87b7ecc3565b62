// Package breaker is a per-key circuit breaker timed entirely through
// the clock capability, so cooldowns and failure windows can be driven
// by a virtual clock in tests and by real time in production. Outcome
// counts live in a storage backend so breaker replicas can share one
// failure window.
package breaker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/SmitUplenchwar2687/Tempo/pkg/clock"
	"github.com/SmitUplenchwar2687/Tempo/pkg/storage"
)

// State is the breaker state for one key.
type State int

const (
	// StateClosed lets requests through and tallies outcomes.
	StateClosed State = iota
	// StateOpen rejects requests until the cooldown elapses.
	StateOpen
	// StateHalfOpen lets a limited number of probes through.
	StateHalfOpen
)

func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Config tunes the breaker.
type Config struct {
	// FailureThreshold is the windowed failure rate that trips the
	// breaker, in (0, 1].
	FailureThreshold float64 `json:"failure_threshold"`
	// MinSamples is how many observations the window needs before the
	// rate applies (0 means 1).
	MinSamples int64 `json:"min_samples"`
	// Window is the sliding window outcomes are counted over.
	Window time.Duration `json:"window"`
	// Cooldown is how long an open breaker waits before probing.
	Cooldown time.Duration `json:"cooldown"`
	// HalfOpenProbes is how many consecutive probe successes close the
	// breaker again (0 means 1).
	HalfOpenProbes int `json:"half_open_probes"`
	// NodeID names this replica in shared trip counters ("" means
	// "local").
	NodeID string `json:"node_id"`
}

// Validate checks that the config is usable.
func (c Config) Validate() error {
	if c.FailureThreshold <= 0 || c.FailureThreshold > 1 {
		return fmt.Errorf("failure_threshold must be in (0, 1], got %v", c.FailureThreshold)
	}
	if c.Window <= 0 {
		return fmt.Errorf("window must be positive, got %s", c.Window)
	}
	if c.Cooldown <= 0 {
		return fmt.Errorf("cooldown must be positive, got %s", c.Cooldown)
	}
	return nil
}

// Decision is the outcome of an Allow check.
type Decision struct {
	Allowed    bool          `json:"allowed"`
	State      State         `json:"-"`
	StateName  string        `json:"state"`
	RetryAfter time.Duration `json:"retry_after,omitempty"`
}

// TransitionObserver is notified after a key changes state.
type TransitionObserver func(key string, from, to State, at time.Time)

// Breaker is a per-key circuit breaker.
// Thread-safe for concurrent use; all timing goes through its clock.
type Breaker struct {
	cfg   Config
	clock clock.Clock
	store storage.Storage
	trips *storage.GCounter

	mu        sync.Mutex
	states    map[string]*keyState
	nextToken uint64
	observers []transitionRegistration
}

type keyState struct {
	state     State
	openedAt  time.Time
	probes    int // probe slots handed out since entering half-open
	successes int // probe successes since entering half-open
}

type transitionRegistration struct {
	token uint64
	fn    TransitionObserver
}

// New creates a breaker. A nil clock means the ambient clock; a nil
// store means a fresh in-memory backend.
func New(cfg Config, c clock.Clock, store storage.Storage) (*Breaker, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("breaker config: %w", err)
	}
	if cfg.MinSamples <= 0 {
		cfg.MinSamples = 1
	}
	if cfg.HalfOpenProbes <= 0 {
		cfg.HalfOpenProbes = 1
	}
	if cfg.NodeID == "" {
		cfg.NodeID = "local"
	}
	if c == nil {
		c = clock.Current()
	}
	if store == nil {
		store = storage.NewMemoryStorage()
	}
	return &Breaker{
		cfg:    cfg,
		clock:  c,
		store:  store,
		trips:  storage.NewGCounter(),
		states: make(map[string]*keyState),
	}, nil
}

// Allow reports whether a request for key may proceed right now. An
// open breaker flips to half-open once the cooldown has elapsed on the
// breaker's clock.
func (b *Breaker) Allow(ctx context.Context, key string) (Decision, error) {
	now := b.clock.Now()

	b.mu.Lock()
	ks := b.stateLocked(key)

	var notify func()
	if ks.state == StateOpen {
		if elapsed := now.Sub(ks.openedAt); elapsed >= b.cfg.Cooldown {
			notify = b.transitionLocked(key, ks, StateHalfOpen, now)
		} else {
			retry := b.cfg.Cooldown - elapsed
			b.mu.Unlock()
			return Decision{State: StateOpen, StateName: StateOpen.String(), RetryAfter: retry}, nil
		}
	}

	var d Decision
	switch {
	case ks.state == StateHalfOpen && ks.probes >= b.cfg.HalfOpenProbes:
		d = Decision{State: StateHalfOpen, StateName: StateHalfOpen.String(), RetryAfter: b.cfg.Cooldown}
	case ks.state == StateHalfOpen:
		ks.probes++
		d = Decision{Allowed: true, State: StateHalfOpen, StateName: StateHalfOpen.String()}
	default:
		d = Decision{Allowed: true, State: StateClosed, StateName: StateClosed.String()}
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return d, nil
}

// Report records the outcome of a request for key and applies state
// transitions: a failure rate at or above the threshold trips the
// breaker; enough half-open probe successes close it; any half-open
// probe failure reopens it.
func (b *Breaker) Report(ctx context.Context, key string, failure bool) error {
	now := b.clock.Now()

	counts, err := b.store.RecordOutcome(ctx, key, failure, now, b.cfg.Window)
	if err != nil {
		return fmt.Errorf("recording outcome: %w", err)
	}

	b.mu.Lock()
	ks := b.stateLocked(key)

	var notify func()
	switch ks.state {
	case StateHalfOpen:
		if failure {
			notify = b.tripLocked(key, ks, now)
			break
		}
		ks.successes++
		if ks.successes >= b.cfg.HalfOpenProbes {
			notify = b.transitionLocked(key, ks, StateClosed, now)
		}
	case StateClosed:
		if failure && counts.Total() >= b.cfg.MinSamples && counts.FailureRate() >= b.cfg.FailureThreshold {
			notify = b.tripLocked(key, ks, now)
		}
	}
	b.mu.Unlock()

	if notify != nil {
		notify()
	}
	return nil
}

// State returns the current state for key without side effects.
func (b *Breaker) State(key string) State {
	b.mu.Lock()
	defer b.mu.Unlock()
	if ks, ok := b.states[key]; ok {
		return ks.state
	}
	return StateClosed
}

// KeyStatus is one key's state as exposed over the API.
type KeyStatus struct {
	Key      string    `json:"key"`
	State    string    `json:"state"`
	OpenedAt time.Time `json:"opened_at,omitzero"`
}

// Snapshot returns the status of every key the breaker has seen.
func (b *Breaker) Snapshot() []KeyStatus {
	b.mu.Lock()
	defer b.mu.Unlock()

	out := make([]KeyStatus, 0, len(b.states))
	for key, ks := range b.states {
		st := KeyStatus{Key: key, State: ks.state.String()}
		if ks.state != StateClosed {
			st.OpenedAt = ks.openedAt
		}
		out = append(out, st)
	}
	return out
}

// Trips merges this replica's trip counter with the shared state for
// key and returns the cluster-wide total.
func (b *Breaker) Trips(ctx context.Context, key string) (int64, error) {
	merged, err := b.store.MergeTrips(ctx, key, b.trips.Snapshot())
	if err != nil {
		return 0, fmt.Errorf("merging trips: %w", err)
	}
	b.trips.Merge(merged)
	return b.trips.Value(), nil
}

// OnTransition registers fn and returns a remove func that
// unsubscribes exactly this registration. Observers run after the lock
// is released, in subscription order.
func (b *Breaker) OnTransition(fn TransitionObserver) (remove func()) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.nextToken++
	token := b.nextToken
	b.observers = append(b.observers, transitionRegistration{token: token, fn: fn})

	return func() {
		b.mu.Lock()
		defer b.mu.Unlock()
		for i, reg := range b.observers {
			if reg.token == token {
				b.observers = append(b.observers[:i], b.observers[i+1:]...)
				return
			}
		}
	}
}

func (b *Breaker) stateLocked(key string) *keyState {
	ks, ok := b.states[key]
	if !ok {
		ks = &keyState{state: StateClosed}
		b.states[key] = ks
	}
	return ks
}

func (b *Breaker) tripLocked(key string, ks *keyState, now time.Time) func() {
	b.trips.Increment(b.cfg.NodeID, 1)
	return b.transitionLocked(key, ks, StateOpen, now)
}

// transitionLocked applies the state change and returns the observer
// notification to run once the lock is released, or nil.
func (b *Breaker) transitionLocked(key string, ks *keyState, to State, now time.Time) func() {
	from := ks.state
	if from == to {
		return nil
	}
	ks.state = to
	switch to {
	case StateOpen:
		ks.openedAt = now
	case StateHalfOpen:
		ks.probes = 0
		ks.successes = 0
	}

	if len(b.observers) == 0 {
		return nil
	}
	regs := make([]transitionRegistration, len(b.observers))
	copy(regs, b.observers)
	return func() {
		for _, reg := range regs {
			reg.fn(key, from, to, now)
		}
	}
}
