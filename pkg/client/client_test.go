package client

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/process"
	"github.com/loykin/botkeeper/internal/server"
	"github.com/loykin/botkeeper/internal/watchdog"
)

type fixedDetector struct {
	l   detector.Liveness
	err error
}

func (f fixedDetector) Probe(context.Context) (detector.Liveness, error) { return f.l, f.err }
func (f fixedDetector) Describe() string                                { return "fixed" }

func startServer(t *testing.T, det detector.Detector, policy watchdog.Policy) *Client {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	wd := &watchdog.Watchdog{
		Detector: det,
		Spawner:  process.SpawnerFunc(func(process.Spec) (int, error) { return 77, nil }),
		Target:   process.Spec{Name: "bot", Command: "/usr/bin/node"},
		Policy:   policy,
		Logger:   log,
	}
	procs := detector.ProcessDetector{
		User:  "root",
		Match: "node",
		Lister: detector.ListerFunc(func(context.Context) ([]detector.ProcessInfo, error) {
			return []detector.ProcessInfo{
				{PID: 1, User: "root", Name: "node", Cmdline: "node main.js"},
				{PID: 2, User: "pi", Name: "node", Cmdline: "node other.js"},
			}, nil
		}),
	}
	ts := httptest.NewServer(server.NewRouter(wd, procs, "/api", log).Handler())
	t.Cleanup(ts.Close)
	c, err := New(Config{BaseURL: ts.URL + "/api", Timeout: 2 * time.Second, Logger: log})
	if err != nil {
		t.Fatalf("client: %v", err)
	}
	return c
}

func TestNewDefaults(t *testing.T) {
	c, err := New(Config{})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.baseURL != "http://localhost:9090" {
		t.Errorf("Expected default baseURL, got %s", c.baseURL)
	}
	if c.client.Timeout != 10*time.Second {
		t.Errorf("Expected default timeout 10s, got %v", c.client.Timeout)
	}
}

func TestNewBadCACert(t *testing.T) {
	if _, err := New(Config{CACert: "/nonexistent/ca.pem"}); err == nil {
		t.Fatal("expected error for missing CA file")
	}
}

func TestStatusCheckRoundTrip(t *testing.T) {
	c := startServer(t, fixedDetector{l: detector.Absent}, watchdog.FailOpen)
	ctx := context.Background()

	if !c.IsReachable(ctx) {
		t.Fatal("expected server to be reachable")
	}
	if _, ok, err := c.Status(ctx); err != nil || ok {
		t.Fatalf("expected no status before first check, ok=%v err=%v", ok, err)
	}
	res, err := c.Check(ctx)
	if err != nil {
		t.Fatalf("check: %v", err)
	}
	if res.Outcome.Liveness != "absent" || res.Outcome.Action != "start" || res.Outcome.PID != 77 {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
	out, ok, err := c.Status(ctx)
	if err != nil || !ok {
		t.Fatalf("status after check: ok=%v err=%v", ok, err)
	}
	if out.Detector != "fixed" || out.CheckedAt.IsZero() {
		t.Fatalf("unexpected status: %+v", out)
	}
}

func TestCheckFailClosed(t *testing.T) {
	c := startServer(t, fixedDetector{l: detector.CheckFailed, err: errors.New("boom")}, watchdog.FailClosed)
	res, err := c.Check(context.Background())
	if !errors.Is(err, ErrCheckFailed) {
		t.Fatalf("expected ErrCheckFailed, got %v", err)
	}
	if res.Outcome.Liveness != "check_failed" || res.Outcome.Action != "none" {
		t.Fatalf("unexpected outcome: %+v", res.Outcome)
	}
}

func TestProcesses(t *testing.T) {
	c := startServer(t, fixedDetector{l: detector.Present}, watchdog.FailOpen)
	ctx := context.Background()
	list, err := c.Processes(ctx, ProcessQuery{})
	if err != nil {
		t.Fatalf("processes: %v", err)
	}
	if len(list.Processes) != 1 || list.Processes[0].PID != 1 {
		t.Fatalf("unexpected list: %+v", list)
	}
	anyone := ""
	list, err = c.Processes(ctx, ProcessQuery{User: &anyone})
	if err != nil {
		t.Fatalf("processes: %v", err)
	}
	if len(list.Processes) != 2 {
		t.Fatalf("expected both owners, got %+v", list)
	}
	if _, err := c.Processes(ctx, ProcessQuery{Match: "../x"}); err == nil {
		t.Fatal("expected server to reject unsafe match")
	}
}

func TestUnreachable(t *testing.T) {
	c, err := New(Config{BaseURL: "http://127.0.0.1:1", Timeout: 200 * time.Millisecond})
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if c.IsReachable(context.Background()) {
		t.Fatal("expected unreachable")
	}
	server404 := httptest.NewServer(http.NotFoundHandler())
	defer server404.Close()
	c, _ = New(Config{BaseURL: server404.URL})
	if c.IsReachable(context.Background()) {
		t.Fatal("expected 404 server to be unreachable")
	}
}
