package clock

import (
	"sync"
	"time"
)

// The ambient clock is a single process-wide slot consulted by code
// that was not handed a clock explicitly. At most one virtual clock may
// occupy it; releasing the slot restores the real clock. Stacking is
// not supported.
var ambient = struct {
	sync.Mutex
	virtual *VirtualClock
}{}

var defaultReal = NewRealClock()

// Current returns the active ambient clock: the installed virtual clock
// if one is active, otherwise the shared real clock.
func Current() Clock {
	ambient.Lock()
	defer ambient.Unlock()
	if ambient.virtual != nil {
		return ambient.virtual
	}
	return defaultReal
}

// StartVirtual installs a new VirtualClock as the ambient clock and
// returns it with a release func that uninstalls it. release must be
// called on every exit path (defer it); calling it more than once is
// harmless. A zero start means "start at the current wall time".
//
// Returns ErrVirtualClockActive if a virtual clock is already
// installed.
func StartVirtual(start time.Time) (*VirtualClock, func(), error) {
	ambient.Lock()
	defer ambient.Unlock()

	if ambient.virtual != nil {
		return nil, nil, ErrVirtualClockActive
	}
	if start.IsZero() {
		start = time.Now()
	}
	vc := NewVirtualClock(start)
	ambient.virtual = vc

	var once sync.Once
	release := func() {
		once.Do(func() {
			ambient.Lock()
			defer ambient.Unlock()
			if ambient.virtual == vc {
				ambient.virtual = nil
			}
		})
	}
	return vc, release, nil
}
