package botkeeper

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"

	cfg "github.com/loykin/botkeeper/internal/config"
	"github.com/loykin/botkeeper/internal/cron"
	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/download"
	"github.com/loykin/botkeeper/internal/history"
	"github.com/loykin/botkeeper/internal/history/factory"
	"github.com/loykin/botkeeper/internal/logger"
	"github.com/loykin/botkeeper/internal/metrics"
	"github.com/loykin/botkeeper/internal/process"
	iapi "github.com/loykin/botkeeper/internal/server"
	"github.com/loykin/botkeeper/internal/watchdog"
	"github.com/prometheus/client_golang/prometheus"
)

// Re-export core types for external consumers.
// These are aliases so conversions are zero-cost.

type Config = cfg.Config

type Spec = process.Spec

type Liveness = detector.Liveness

type ProcessInfo = detector.ProcessInfo

type Outcome = watchdog.Outcome

type Policy = watchdog.Policy

type HistorySink = history.Sink

const (
	FailOpen   = watchdog.FailOpen
	FailClosed = watchdog.FailClosed
)

// ProbeJobName names the scheduled liveness check.
const ProbeJobName = "probe"

// Runtime bundles the loaded configuration with the logger and history sink
// built from it. Both binaries start from one.
type Runtime struct {
	Config *Config
	Logger *slog.Logger
	Sink   HistorySink // nil when history.dsn is empty or its backend was unreachable

	closers []io.Closer
}

// Open loads configPath (see config.Load), builds the logger writing to term
// when no log file is configured, registers metrics and opens the history sink.
func Open(configPath string, term io.Writer) (*Runtime, error) {
	c, err := cfg.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewRuntime(c, term)
}

// NewRuntime is Open for an already loaded configuration.
func NewRuntime(c *Config, term io.Writer) (*Runtime, error) {
	log, logCloser, err := logger.New(c.Log, term)
	if err != nil {
		return nil, fmt.Errorf("logger: %w", err)
	}
	rt := &Runtime{Config: c, Logger: log, closers: []io.Closer{logCloser}}
	if err := RegisterMetricsDefault(); err != nil {
		_ = rt.Close()
		return nil, fmt.Errorf("metrics: %w", err)
	}
	if dsn := strings.TrimSpace(c.History.DSN); dsn != "" {
		sink, err := factory.NewSinkFromDSN(dsn)
		switch {
		case errors.Is(err, factory.ErrInvalidDSN):
			_ = rt.Close()
			return nil, fmt.Errorf("history: %w", err)
		case err != nil:
			log.Warn("history sink unavailable, continuing without history", "error", err)
		default:
			rt.Sink = sink
			if cl, ok := sink.(io.Closer); ok {
				rt.closers = append(rt.closers, cl)
			}
		}
	}
	return rt, nil
}

// Close releases the history sink and log file in reverse order of opening.
func (r *Runtime) Close() error {
	var errs []error
	for i := len(r.closers) - 1; i >= 0; i-- {
		if err := r.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	r.closers = nil
	return errors.Join(errs...)
}

// NewWatchdog wires the configured detector, target and policy to a
// detached spawner.
func (r *Runtime) NewWatchdog() (*watchdog.Watchdog, error) {
	p := r.Config.Probe
	det, err := p.BuildDetector()
	if err != nil {
		return nil, err
	}
	target, err := p.Target()
	if err != nil {
		return nil, err
	}
	pol, err := p.PolicyValue()
	if err != nil {
		return nil, err
	}
	return &watchdog.Watchdog{
		Detector: det,
		Spawner:  process.DetachedSpawner{},
		Target:   target,
		Policy:   pol,
		Logger:   r.Logger,
		Sink:     r.Sink,
	}, nil
}

// ProcessDetector is the native process-table filter for user and match,
// independent of which detector the watchdog uses.
func (r *Runtime) ProcessDetector() detector.ProcessDetector {
	return r.Config.Probe.ProcessDetector()
}

// NewScheduler returns a scheduler with the probe job registered. The first
// check runs as soon as the scheduler starts.
func (r *Runtime) NewScheduler(wd *watchdog.Watchdog) (*cron.Scheduler, error) {
	s := cron.NewScheduler(r.Logger)
	job := &cron.Job{
		Name:      ProbeJobName,
		Schedule:  r.Config.Probe.Schedule,
		Immediate: true,
		Run: func(ctx context.Context) error {
			_, err := wd.Check(ctx)
			return err
		},
	}
	if err := s.Add(job); err != nil {
		return nil, err
	}
	return s, nil
}

// NewInvoker returns a download invoker backed by yt-dlp.
func (r *Runtime) NewInvoker() *download.Invoker {
	d := r.Config.Download
	return &download.Invoker{
		Engine:         &download.YtdlpEngine{Binary: d.Binary, Install: d.Install, Logger: r.Logger},
		OutputTemplate: d.OutputTemplate,
		Logger:         r.Logger,
		Sink:           r.Sink,
	}
}

// NewHTTPServer returns an http.Server exposing status, check, processes and
// /metrics for wd. The caller runs and shuts it down.
func (r *Runtime) NewHTTPServer(wd *watchdog.Watchdog) *http.Server {
	s := r.Config.Server
	return iapi.NewServer(s.Listen, iapi.NewRouter(wd, r.ProcessDetector(), s.BasePath, r.Logger))
}

// Metrics helpers (public facade)

func RegisterMetrics(r prometheus.Registerer) error { return metrics.Register(r) }
func RegisterMetricsDefault() error                 { return metrics.Register(prometheus.DefaultRegisterer) }
