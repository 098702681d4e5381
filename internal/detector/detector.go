package detector

import "context"

// Liveness is the outcome of a single probe.
// CheckFailed is distinct from Absent: the probe could not tell.
type Liveness int

const (
	CheckFailed Liveness = iota
	Absent
	Present
)

func (l Liveness) String() string {
	switch l {
	case Present:
		return "present"
	case Absent:
		return "absent"
	default:
		return "check_failed"
	}
}

// MarshalText lets Liveness render as its name in JSON payloads and history rows.
func (l Liveness) MarshalText() ([]byte, error) { return []byte(l.String()), nil }

// Detector is a strategy that determines if the watched process is running.
// It must be safe for concurrent use.
type Detector interface {
	// Probe reports whether the target is running. A non-nil error is
	// always paired with CheckFailed.
	Probe(ctx context.Context) (Liveness, error)
	// Describe returns a human-readable description of the detection method.
	Describe() string
}
