package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http/httptest"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/process"
	"github.com/loykin/botkeeper/internal/server"
	"github.com/loykin/botkeeper/internal/watchdog"
	"github.com/loykin/botkeeper/pkg/client"
)

func requireUnix(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("requires Unix-like environment")
	}
}

func writeConfig(t *testing.T, probe string) string {
	t.Helper()
	file := filepath.Join(t.TempDir(), "botkeeper.toml")
	body := "[log]\nno_color = true\nlevel = \"debug\"\n\n[probe]\n" + probe
	if err := os.WriteFile(file, []byte(body), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return file
}

func run(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	root := buildRoot()
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetArgs(args)
	err := root.ExecuteContext(context.Background())
	return out.String(), errOut.String(), err
}

func TestHelp(t *testing.T) {
	out, _, err := run(t, "--help")
	if err != nil {
		t.Fatalf("help should succeed: %v", err)
	}
	if !strings.Contains(out, "botkeeper") {
		t.Fatalf("unexpected help output: %s", out)
	}
}

func TestCheckPresentDoesNotSpawn(t *testing.T) {
	requireUnix(t)
	marker := filepath.Join(t.TempDir(), "spawned")
	cfg := writeConfig(t, `detector = "command"
check_command = "true"
command = "/bin/sh"
args = ["-c", "touch `+marker+`"]
`)
	_, logs, err := run(t, "--config", cfg, "check")
	if err != nil {
		t.Fatalf("check: %v\n%s", err, logs)
	}
	if _, err := os.Stat(marker); err == nil {
		t.Fatal("target spawned although probe reported present")
	}
}

func TestDefaultCommandIsCheck(t *testing.T) {
	requireUnix(t)
	cfg := writeConfig(t, "detector = \"command\"\ncheck_command = \"true\"\n")
	if _, logs, err := run(t, "--config", cfg); err != nil {
		t.Fatalf("bare invocation: %v\n%s", err, logs)
	}
}

func TestCheckFailOpenSpawnFailureExitsZero(t *testing.T) {
	requireUnix(t)
	cfg := writeConfig(t, `detector = "command"
check_command = "false"
command = "/nonexistent/node"
`)
	_, logs, err := run(t, "--config", cfg, "check")
	if err != nil {
		t.Fatalf("spawn failure must not fail the check: %v", err)
	}
	if !strings.Contains(logs, "start failed") {
		t.Fatalf("expected spawn failure in logs, got:\n%s", logs)
	}
}

func TestCheckFailClosedProbeFailure(t *testing.T) {
	requireUnix(t)
	cfg := writeConfig(t, `detector = "command"
check_command = "/nonexistent/probe"
policy = "fail-closed"
`)
	_, _, err := run(t, "--config", cfg, "check")
	if !errors.Is(err, watchdog.ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed, got %v", err)
	}
}

func TestCheckBadConfig(t *testing.T) {
	cfg := writeConfig(t, "policy = \"maybe\"\n")
	if _, _, err := run(t, "--config", cfg, "check"); err == nil {
		t.Fatal("expected config error")
	}
}

func TestPsNoMatches(t *testing.T) {
	cfg := writeConfig(t, "")
	out, _, err := run(t, "--config", cfg, "ps", "no-such-process-botkeeper-xyz", "--all")
	if err != nil {
		t.Fatalf("ps: %v", err)
	}
	if !strings.Contains(out, "No processes of *") {
		t.Fatalf("unexpected output: %s", out)
	}
}

func startSleeper(t *testing.T, seconds string) int {
	t.Helper()
	cmd := exec.Command("sleep", seconds)
	if err := cmd.Start(); err != nil {
		t.Skipf("sleep unavailable: %v", err)
	}
	t.Cleanup(func() {
		_ = cmd.Process.Kill()
		_ = cmd.Wait()
	})
	return cmd.Process.Pid
}

func TestPsFindsChildAsJSON(t *testing.T) {
	requireUnix(t)
	pid := startSleeper(t, "27.1828")
	cfg := writeConfig(t, "")
	out, _, err := run(t, "--config", cfg, "ps", "27.1828", "--all", "--json")
	if err != nil {
		t.Fatalf("ps: %v", err)
	}
	var rows []client.ProcessInfo
	if err := json.Unmarshal([]byte(out), &rows); err != nil {
		t.Fatalf("decode %q: %v", out, err)
	}
	for _, r := range rows {
		if int(r.PID) == os.Getpid() {
			t.Fatalf("ps listed itself: %+v", r)
		}
	}
	for _, r := range rows {
		if int(r.PID) == pid {
			return
		}
	}
	t.Fatalf("child pid %d not listed in %+v", pid, rows)
}

func TestPsTable(t *testing.T) {
	requireUnix(t)
	pid := startSleeper(t, "16.1803")
	cfg := writeConfig(t, "")
	out, _, err := run(t, "--config", cfg, "ps", "16.1803", "--all")
	if err != nil {
		t.Fatalf("ps: %v", err)
	}
	if !strings.Contains(out, "PID") || !strings.Contains(out, strconv.Itoa(pid)) {
		t.Fatalf("unexpected table:\n%s", out)
	}
}

func remoteServer(t *testing.T) string {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	wd := &watchdog.Watchdog{
		Detector: staticDetector(detector.Present),
		Spawner:  process.SpawnerFunc(func(process.Spec) (int, error) { return 0, errors.New("unexpected spawn") }),
		Target:   process.Spec{Command: "/usr/bin/node"},
		Logger:   log,
	}
	procs := detector.ProcessDetector{
		User:  "root",
		Match: "node",
		Lister: detector.ListerFunc(func(context.Context) ([]detector.ProcessInfo, error) {
			return []detector.ProcessInfo{{PID: 321, User: "root", Name: "node", Cmdline: "node main.js"}}, nil
		}),
	}
	ts := httptest.NewServer(server.NewRouter(wd, procs, "", log).Handler())
	t.Cleanup(ts.Close)
	return ts.URL
}

type staticDetector detector.Liveness

func (s staticDetector) Probe(context.Context) (detector.Liveness, error) {
	return detector.Liveness(s), nil
}
func (s staticDetector) Describe() string { return "static" }

func TestRemoteCheckStatusPs(t *testing.T) {
	url := remoteServer(t)

	out, _, err := run(t, "status", "--api-url", url)
	if err != nil {
		t.Fatalf("status: %v", err)
	}
	if !strings.Contains(out, "no check has run yet") {
		t.Fatalf("unexpected status output: %s", out)
	}

	out, _, err = run(t, "check", "--api-url", url)
	if err != nil {
		t.Fatalf("remote check: %v", err)
	}
	if !strings.Contains(out, `"present"`) {
		t.Fatalf("unexpected check output: %s", out)
	}

	out, _, err = run(t, "status", "--api-url", url)
	if err != nil || !strings.Contains(out, `"static"`) {
		t.Fatalf("status after check: %v %s", err, out)
	}

	out, _, err = run(t, "ps", "--api-url", url)
	if err != nil || !strings.Contains(out, "321") {
		t.Fatalf("remote ps: %v %s", err, out)
	}
}

func TestTruncate(t *testing.T) {
	if got := truncate("short", 10); got != "short" {
		t.Fatalf("got %q", got)
	}
	if got := truncate("abcdefghijkl", 8); got != "abcde..." {
		t.Fatalf("got %q", got)
	}
}
