package clock

import "sync"

// EntryObserver is notified synchronously whenever a budget entry is
// recorded against a budget owned by the clock it is registered on.
type EntryObserver func(c Clock, b *TimeBudget, e BudgetEntry)

// entryHub is the publish/subscribe list behind OnBudgetEntryRecorded.
// Both RealClock and VirtualClock embed it. It has its own lock so
// notification never contends with the clock's scheduling state.
type entryHub struct {
	mu        sync.Mutex
	nextToken uint64
	observers []entryRegistration
}

type entryRegistration struct {
	token uint64
	fn    EntryObserver
}

// OnBudgetEntryRecorded registers fn and returns a remove func that
// deterministically unsubscribes exactly this registration, no others.
// Observers run in subscription order.
func (h *entryHub) OnBudgetEntryRecorded(fn EntryObserver) (remove func()) {
	h.mu.Lock()
	defer h.mu.Unlock()

	h.nextToken++
	token := h.nextToken
	h.observers = append(h.observers, entryRegistration{token: token, fn: fn})

	return func() {
		h.mu.Lock()
		defer h.mu.Unlock()
		for i, reg := range h.observers {
			if reg.token == token {
				h.observers = append(h.observers[:i], h.observers[i+1:]...)
				return
			}
		}
	}
}

func (h *entryHub) publishBudgetEntry(c Clock, b *TimeBudget, e BudgetEntry) {
	h.mu.Lock()
	regs := make([]entryRegistration, len(h.observers))
	copy(regs, h.observers)
	h.mu.Unlock()

	for _, reg := range regs {
		reg.fn(c, b, e)
	}
}

// budgetEntryPublisher is satisfied by clocks that carry an entryHub.
type budgetEntryPublisher interface {
	publishBudgetEntry(c Clock, b *TimeBudget, e BudgetEntry)
}
