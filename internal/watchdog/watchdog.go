package watchdog

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/botkeeper/internal/detector"
	"github.com/loykin/botkeeper/internal/history"
	"github.com/loykin/botkeeper/internal/metrics"
	"github.com/loykin/botkeeper/internal/process"
)

// ErrCheckFailed is returned by Check under FailClosed when the probe could not decide.
var ErrCheckFailed = errors.New("liveness check failed")

// Outcome describes one Check.
type Outcome struct {
	CheckedAt time.Time         `json:"checked_at"`
	Detector  string            `json:"detector"`
	Liveness  detector.Liveness `json:"liveness"`
	Action    Action            `json:"action"`
	PID       int               `json:"pid,omitempty"`
	ProbeErr  string            `json:"probe_error,omitempty"`
	SpawnErr  string            `json:"spawn_error,omitempty"`
}

// Spawned reports whether this check started the target.
func (o Outcome) Spawned() bool { return o.Action == ActionStart && o.SpawnErr == "" }

// Watchdog probes for the target program and starts it when the policy says so.
// It never supervises the started child beyond the spawn call.
type Watchdog struct {
	Detector detector.Detector
	Spawner  process.Spawner
	Target   process.Spec
	Policy   Policy
	Logger   *slog.Logger
	Sink     history.Sink // optional

	mu   sync.Mutex // serializes checks so one probe maps to at most one spawn
	last *Outcome
}

func (w *Watchdog) logger() *slog.Logger {
	if w.Logger == nil {
		return slog.Default()
	}
	return w.Logger
}

// Check runs a single probe and acts on it.
// Spawn failures are recorded in the outcome but do not make Check fail.
func (w *Watchdog) Check(ctx context.Context) (Outcome, error) {
	w.mu.Lock()
	defer w.mu.Unlock()

	log := w.logger()
	out := Outcome{CheckedAt: time.Now(), Detector: w.Detector.Describe()}

	liveness, perr := w.Detector.Probe(ctx)
	if perr != nil {
		liveness = detector.CheckFailed
		out.ProbeErr = perr.Error()
	}
	out.Liveness = liveness
	out.Action = w.Policy.Decide(liveness)
	metrics.ObserveCheck(liveness.String(), out.CheckedAt)
	w.emit(ctx, history.EventProbe, history.Record{
		Name:   w.Target.DisplayName(),
		Status: liveness.String(),
		Detail: out.Detector,
		Error:  out.ProbeErr,
	})

	switch {
	case liveness == detector.Present:
		log.Debug("target running", "detector", out.Detector)
	case perr != nil:
		log.Warn("liveness check failed", "detector", out.Detector, "policy", w.Policy.String(), "error", perr)
	default:
		log.Info("target not running", "detector", out.Detector)
	}

	if out.Action == ActionStart {
		pid, serr := w.Spawner.Spawn(w.Target)
		metrics.IncSpawn(serr)
		rec := history.Record{Name: w.Target.DisplayName(), PID: pid, Status: "ok", Detail: w.Target.Command}
		if serr != nil {
			out.SpawnErr = serr.Error()
			rec.Status = "error"
			rec.Error = out.SpawnErr
			log.Error("start failed", "command", w.Target.Command, "error", serr)
		} else {
			out.PID = pid
			log.Info("started target", "command", w.Target.Command, "args", w.Target.Args, "pid", pid)
		}
		w.emit(ctx, history.EventSpawn, rec)
	}

	w.last = &out
	if perr != nil && w.Policy == FailClosed {
		return out, fmt.Errorf("%w: %v", ErrCheckFailed, perr)
	}
	return out, nil
}

// Last returns the most recent outcome, if any.
func (w *Watchdog) Last() (Outcome, bool) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.last == nil {
		return Outcome{}, false
	}
	return *w.last, true
}

func (w *Watchdog) emit(ctx context.Context, t history.EventType, rec history.Record) {
	if w.Sink == nil {
		return
	}
	if err := w.Sink.Send(ctx, history.Event{Type: t, OccurredAt: time.Now().UTC(), Record: rec}); err != nil {
		w.logger().Warn("history sink failed", "event", string(t), "error", err)
	}
}
