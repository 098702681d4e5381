package process

import (
	"fmt"
	"os"
	"path/filepath"
)

// Spawner starts a program and returns its pid without waiting for it.
type Spawner interface {
	Spawn(spec Spec) (int, error)
}

// SpawnerFunc adapts a plain function to Spawner.
type SpawnerFunc func(spec Spec) (int, error)

func (f SpawnerFunc) Spawn(spec Spec) (int, error) { return f(spec) }

// DetachedSpawner launches the program in its own session and forgets it.
// The child outlives the caller; nothing watches its exit status.
type DetachedSpawner struct{}

func (DetachedSpawner) Spawn(spec Spec) (int, error) {
	if err := spec.Validate(); err != nil {
		return 0, err
	}
	cmd := spec.BuildCommand()
	configureSysProcAttr(cmd)

	var files []*os.File
	defer func() {
		for _, f := range files {
			_ = f.Close()
		}
	}()
	// The child needs real file descriptors: a pipe would die with the caller.
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	if spec.StdoutPath != "" {
		f, err := openAppend(spec.StdoutPath)
		if err != nil {
			return 0, fmt.Errorf("open stdout log: %w", err)
		}
		files = append(files, f)
		cmd.Stdout = f
	}
	if spec.StderrPath != "" {
		f, err := openAppend(spec.StderrPath)
		if err != nil {
			return 0, fmt.Errorf("open stderr log: %w", err)
		}
		files = append(files, f)
		cmd.Stderr = f
	}

	if err := cmd.Start(); err != nil {
		return 0, fmt.Errorf("start %s: %w", spec.DisplayName(), err)
	}
	pid := cmd.Process.Pid
	// Reap only, so a long-running watcher does not accumulate zombies.
	go func() { _ = cmd.Wait() }()
	return pid, nil
}

func openAppend(path string) (*os.File, error) {
	clean := filepath.Clean(path)
	if dir := filepath.Dir(clean); dir != "." {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, err
		}
	}
	// #nosec G304
	return os.OpenFile(clean, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640)
}
