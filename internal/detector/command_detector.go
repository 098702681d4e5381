package detector

import (
	"context"
	"errors"
	"os/exec"
	"strings"
)

// CommandDetector runs a check command that exits 0 while the target is running,
// e.g. "pgrep -u root node".
type CommandDetector struct{ Command string }

// buildShellAwareCommand constructs an *exec.Cmd for a detector command.
// Avoids invoking a shell unless obvious shell metacharacters are present (G204 mitigation).
func buildShellAwareCommand(ctx context.Context, cmdStr string) *exec.Cmd {
	cmdStr = strings.TrimSpace(cmdStr)
	if cmdStr == "" {
		return getTrueCommand(ctx)
	}
	if strings.ContainsAny(cmdStr, "|&;<>*?`$\"'(){}[]~") {
		return getShellCommand(ctx, cmdStr)
	}
	parts := strings.Fields(cmdStr)
	// #nosec G204
	return exec.CommandContext(ctx, parts[0], parts[1:]...)
}

func (d CommandDetector) Probe(ctx context.Context) (Liveness, error) {
	cmd := buildShellAwareCommand(ctx, d.Command)
	cmd.Stdout = nil
	cmd.Stderr = nil
	err := cmd.Run()
	if err == nil {
		return Present, nil
	}
	var ee *exec.ExitError
	if errors.As(err, &ee) && ctx.Err() == nil {
		// non-zero exit code means not running
		return Absent, nil
	}
	return CheckFailed, err
}

func (d CommandDetector) Describe() string { return "cmd:" + d.Command }
