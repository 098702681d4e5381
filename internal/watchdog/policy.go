package watchdog

import (
	"fmt"
	"strings"

	"github.com/loykin/botkeeper/internal/detector"
)

// Action is what the watchdog does after a probe.
type Action int

const (
	ActionNone Action = iota
	ActionStart
)

func (a Action) String() string {
	if a == ActionStart {
		return "start"
	}
	return "none"
}

func (a Action) MarshalText() ([]byte, error) { return []byte(a.String()), nil }

// Policy maps a probe result to an action.
type Policy int

const (
	// FailOpen treats "could not determine" the same as "not running":
	// both Absent and CheckFailed lead to a start attempt.
	FailOpen Policy = iota
	// FailClosed starts only on a confirmed Absent; a failed check is
	// reported to the caller and nothing is spawned.
	FailClosed
)

func (p Policy) String() string {
	if p == FailClosed {
		return "fail-closed"
	}
	return "fail-open"
}

// ParsePolicy accepts fail-open|fail-closed; empty means fail-open.
func ParsePolicy(s string) (Policy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "fail-open", "failopen", "open":
		return FailOpen, nil
	case "fail-closed", "failclosed", "closed":
		return FailClosed, nil
	}
	return FailOpen, fmt.Errorf("unknown probe policy %q (want fail-open or fail-closed)", s)
}

// Decide applies the policy to a probe result.
func (p Policy) Decide(l detector.Liveness) Action {
	switch l {
	case detector.Present:
		return ActionNone
	case detector.Absent:
		return ActionStart
	default:
		if p == FailClosed {
			return ActionNone
		}
		return ActionStart
	}
}
