package cron

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	robcron "github.com/robfig/cron/v3"
)

// Job defines a periodically executed function.
// Schedule is "@every <duration>" (e.g., "@every 2m30s") or a cron expression.
// Non-overlap: unless AllowOverlap is set, a tick is skipped while the
// previous run of the same job is still active.
//
// Name must be unique across jobs inside the same Scheduler.
type Job struct {
	Name         string
	Schedule     string
	Immediate    bool // run once right after Start instead of waiting a full period
	AllowOverlap bool
	Run          func(ctx context.Context) error

	sched   robcron.Schedule
	running atomic.Bool
	runs    atomic.Int64
	skipped atomic.Int64
}

// Runs returns how many times the job has been started.
func (j *Job) Runs() int64 { return j.runs.Load() }

// Skipped returns how many ticks were dropped because a run was still active.
func (j *Job) Skipped() int64 { return j.skipped.Load() }

// Parse accepts "@every <duration>" (sub-second allowed) and anything the
// standard cron parser understands: five or six fields, or a descriptor such
// as "@hourly".
func Parse(expr string) (robcron.Schedule, error) {
	expr = strings.TrimSpace(expr)
	if strings.HasPrefix(expr, "@every ") {
		d, err := ParseEvery(expr)
		if err != nil {
			return nil, err
		}
		return every(d), nil
	}
	sched, err := parser.Parse(expr)
	if err != nil {
		return nil, fmt.Errorf("invalid schedule %q: %w", expr, err)
	}
	return sched, nil
}

var parser = robcron.NewParser(robcron.SecondOptional | robcron.Minute | robcron.Hour | robcron.Dom | robcron.Month | robcron.Dow | robcron.Descriptor)

// every is a fixed delay; robcron.Every would round it to whole seconds.
type every time.Duration

func (e every) Next(t time.Time) time.Time { return t.Add(time.Duration(e)) }

// ParseEvery parses schedules of the form "@every <duration>".
func ParseEvery(expr string) (time.Duration, error) {
	expr = strings.TrimSpace(expr)
	if !strings.HasPrefix(expr, "@every ") {
		return 0, fmt.Errorf("not an @every schedule: %s", expr)
	}
	durStr := strings.TrimSpace(strings.TrimPrefix(expr, "@every "))
	d, err := time.ParseDuration(durStr)
	if err != nil {
		return 0, fmt.Errorf("invalid @every duration: %w", err)
	}
	if d <= 0 {
		return 0, fmt.Errorf("@every duration must be > 0")
	}
	return d, nil
}

func (j *Job) validate() error {
	if j.Name == "" {
		return errors.New("cron job requires a name")
	}
	if j.Schedule == "" {
		return errors.New("cron job requires a schedule")
	}
	if j.Run == nil {
		return errors.New("cron job requires a run function")
	}
	sched, err := Parse(j.Schedule)
	if err != nil {
		return fmt.Errorf("job %s: %w", j.Name, err)
	}
	j.sched = sched
	return nil
}

// Scheduler runs jobs on timers until Stop is called or the context given
// to Start is cancelled.
type Scheduler struct {
	Logger *slog.Logger

	mu     sync.Mutex
	jobs   []*Job
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

func NewScheduler(logger *slog.Logger) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{Logger: logger}
}

func (s *Scheduler) Add(job *Job) error {
	if err := job.validate(); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, j := range s.jobs {
		if j.Name == job.Name {
			return fmt.Errorf("cron job %s already added", job.Name)
		}
	}
	s.jobs = append(s.jobs, job)
	return nil
}

// Start launches all job loops. Call Stop to cancel.
func (s *Scheduler) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.cancel != nil {
		return errors.New("scheduler already started")
	}
	ctx, s.cancel = context.WithCancel(ctx)
	for _, j := range s.jobs {
		s.wg.Add(1)
		go s.runJob(ctx, j)
	}
	return nil
}

func (s *Scheduler) runJob(ctx context.Context, j *Job) {
	defer s.wg.Done()
	if j.Immediate {
		s.fire(ctx, j)
	}
	t := time.NewTimer(time.Until(j.sched.Next(time.Now())))
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			s.fire(ctx, j)
			t.Reset(time.Until(j.sched.Next(time.Now())))
		}
	}
}

func (s *Scheduler) fire(ctx context.Context, j *Job) {
	if !j.AllowOverlap {
		// attempt to mark running; if already true, skip this tick
		if !j.running.CompareAndSwap(false, true) {
			j.skipped.Add(1)
			s.Logger.Debug("skipping tick, previous run still active", "job", j.Name)
			return
		}
	} else {
		j.running.Store(true)
	}
	j.runs.Add(1)
	s.wg.Add(1)
	// run in a separate goroutine so a slow run does not block the ticker
	go func() {
		defer s.wg.Done()
		defer j.running.Store(false)
		if err := j.Run(ctx); err != nil {
			s.Logger.Error("cron job failed", "job", j.Name, "error", err)
		}
	}()
}

// Stop cancels all jobs and waits for in-flight runs to return.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	cancel := s.cancel
	s.mu.Unlock()
	if cancel == nil {
		return
	}
	cancel()
	s.wg.Wait()
}
