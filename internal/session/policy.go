package session

import (
	"fmt"
	"time"
)

type policyKind int

const (
	byAttempts policyKind = iota
	byDuration
)

// Policy decides when a scanning session gives up. The two variants from
// the kiosk's login flows are unified here and selected at construction.
type Policy struct {
	kind policyKind

	// byAttempts
	Attempts int
	Interval time.Duration

	// byDuration
	Window time.Duration
	Poll   time.Duration
}

// ByAttempts stops after n failed recognition attempts, one every
// interval. Exhaustion sends the customer to manual enrollment.
func ByAttempts(n int, interval time.Duration) Policy {
	return Policy{kind: byAttempts, Attempts: n, Interval: interval}
}

// ByDuration stops once the wall-clock window elapses, polling at the
// given sub-interval. Exhaustion captures one final signature and hands
// it straight to enrollment.
func ByDuration(window, poll time.Duration) Policy {
	return Policy{kind: byDuration, Window: window, Poll: poll}
}

func (p Policy) tick() time.Duration {
	if p.kind == byDuration {
		return p.Poll
	}
	return p.Interval
}

func (p Policy) String() string {
	if p.kind == byDuration {
		return fmt.Sprintf("duration(%s/%s)", p.Window, p.Poll)
	}
	return fmt.Sprintf("attempts(%d/%s)", p.Attempts, p.Interval)
}
