package detector

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ProcessDetector looks for a process owned by User whose name or command
// line contains Match. An empty User matches every owner.
type ProcessDetector struct {
	User   string
	Match  string
	Lister Lister
}

func (d ProcessDetector) lister() Lister {
	if d.Lister == nil {
		return SystemLister{}
	}
	return d.Lister
}

// Matches returns the processes that satisfy the detector's filter.
func (d ProcessDetector) Matches(ctx context.Context) ([]ProcessInfo, error) {
	if d.Match == "" {
		return nil, errors.New("process detector requires a match substring")
	}
	procs, err := d.lister().List(ctx)
	if err != nil {
		return nil, fmt.Errorf("list processes: %w", err)
	}
	var out []ProcessInfo
	for _, p := range procs {
		if d.User != "" && p.User != d.User {
			continue
		}
		if strings.Contains(p.Name, d.Match) || strings.Contains(p.Cmdline, d.Match) {
			out = append(out, p)
		}
	}
	return out, nil
}

func (d ProcessDetector) Probe(ctx context.Context) (Liveness, error) {
	found, err := d.Matches(ctx)
	if err != nil {
		return CheckFailed, err
	}
	if len(found) == 0 {
		return Absent, nil
	}
	return Present, nil
}

func (d ProcessDetector) Describe() string {
	user := d.User
	if user == "" {
		user = "*"
	}
	return "process:" + user + "/" + d.Match
}
