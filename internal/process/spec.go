package process

import (
	"errors"
	"os"
	"os/exec"
	"strings"
)

// Spec describes the program the watchdog launches.
// Command is an executable path and Args are passed verbatim; no shell is involved.
type Spec struct {
	Name       string   `json:"name" mapstructure:"name"`
	Command    string   `json:"command" mapstructure:"command"`
	Args       []string `json:"args" mapstructure:"args"`
	WorkDir    string   `json:"work_dir" mapstructure:"workdir"`
	Env        []string `json:"env" mapstructure:"env"`                 // extra KEY=VALUE pairs on top of the parent env
	StdoutPath string   `json:"stdout_path" mapstructure:"stdout_path"` // append child stdout here instead of inheriting
	StderrPath string   `json:"stderr_path" mapstructure:"stderr_path"` // append child stderr here instead of inheriting
}

// Validate checks the minimum needed to start the program.
func (s Spec) Validate() error {
	if strings.TrimSpace(s.Command) == "" {
		return errors.New("command is required")
	}
	for _, kv := range s.Env {
		if !strings.Contains(kv, "=") {
			return errors.New("env entry must be KEY=VALUE: " + kv)
		}
	}
	return nil
}

// DisplayName returns Name, falling back to the command path.
func (s Spec) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	return s.Command
}

// BuildCommand constructs the *exec.Cmd for the target program without starting it.
func (s Spec) BuildCommand() *exec.Cmd {
	// ok: command and args come from operator configuration
	// #nosec G204
	cmd := exec.Command(s.Command, s.Args...)
	if s.WorkDir != "" {
		cmd.Dir = s.WorkDir
	}
	if len(s.Env) > 0 {
		cmd.Env = append(os.Environ(), s.Env...)
	}
	return cmd
}
