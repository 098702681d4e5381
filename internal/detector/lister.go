package detector

import (
	"context"
	"os"

	gopsproc "github.com/shirou/gopsutil/v4/process"
)

// ProcessInfo is one row of the process table.
type ProcessInfo struct {
	PID     int32  `json:"pid"`
	User    string `json:"user"`
	Name    string `json:"name"`
	Cmdline string `json:"cmdline"`
}

// Lister enumerates the process table.
type Lister interface {
	List(ctx context.Context) ([]ProcessInfo, error)
}

// ListerFunc adapts a plain function to Lister.
type ListerFunc func(ctx context.Context) ([]ProcessInfo, error)

func (f ListerFunc) List(ctx context.Context) ([]ProcessInfo, error) { return f(ctx) }

// SystemLister reads the live process table through gopsutil.
type SystemLister struct{}

// List returns every process it can read. Processes that exit mid-scan or
// deny access to their owner are skipped; only a failed enumeration is an error.
// The calling process and its parent are left out so a match token in the
// prober's own invocation never counts as the target.
func (SystemLister) List(ctx context.Context) ([]ProcessInfo, error) {
	procs, err := gopsproc.ProcessesWithContext(ctx)
	if err != nil {
		return nil, err
	}
	self, parent := int32(os.Getpid()), int32(os.Getppid())
	out := make([]ProcessInfo, 0, len(procs))
	for _, p := range procs {
		if p.Pid == self || p.Pid == parent {
			continue
		}
		user, err := p.UsernameWithContext(ctx)
		if err != nil {
			continue
		}
		name, _ := p.NameWithContext(ctx)
		cmdline, _ := p.CmdlineWithContext(ctx)
		out = append(out, ProcessInfo{PID: p.Pid, User: user, Name: name, Cmdline: cmdline})
	}
	return out, nil
}
