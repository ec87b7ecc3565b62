package clock

import (
	"fmt"
	"strings"
	"time"
)

// BudgetEntry is a named checkpoint on a budget. Exceeded and Excess
// are computed once at record time and never revised.
type BudgetEntry struct {
	Name     string        `json:"name"`
	Elapsed  time.Duration `json:"elapsed"`
	Exceeded bool          `json:"exceeded"`
	Excess   time.Duration `json:"excess,omitempty"`
}

// String renders the entry as a ledger line:
//
//	✔ one @ 5 seconds
//	❌ three @ 26 seconds (budget exceeded by 11 seconds)
func (e BudgetEntry) String() string {
	if e.Exceeded {
		return fmt.Sprintf("❌ %s @ %s (budget exceeded by %s)",
			e.Name, FormatDuration(e.Elapsed), FormatDuration(e.Excess))
	}
	return fmt.Sprintf("✔ %s @ %s", e.Name, FormatDuration(e.Elapsed))
}

// TimeBudgetExceededError is returned by RecordEntryAndCheck when the
// entry just recorded is over budget. It carries the full ledger for
// diagnostics.
type TimeBudgetExceededError struct {
	Duration time.Duration
	Now      time.Time
	Entries  []BudgetEntry
}

func (e *TimeBudgetExceededError) Error() string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Time budget of %s exceeded at %s",
		FormatDuration(e.Duration), e.Now.Format(time.RFC3339))
	for _, entry := range e.Entries {
		sb.WriteString("\n  ")
		sb.WriteString(entry.String())
	}
	return sb.String()
}

// FormatDuration renders whole units in words ("5 seconds", "2 minutes",
// "1 hour") and falls back to Go's compact form for anything
// fractional.
func FormatDuration(d time.Duration) string {
	switch {
	case d == 0:
		return "0 seconds"
	case d%time.Hour == 0:
		return plural(int64(d/time.Hour), "hour")
	case d%time.Minute == 0:
		return plural(int64(d/time.Minute), "minute")
	case d%time.Second == 0:
		return plural(int64(d/time.Second), "second")
	default:
		return d.String()
	}
}

func plural(n int64, unit string) string {
	if n == 1 || n == -1 {
		return fmt.Sprintf("%d %s", n, unit)
	}
	return fmt.Sprintf("%d %ss", n, unit)
}
