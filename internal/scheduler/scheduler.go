// Package scheduler drives the engine's passes from independent cron
// cadences. Each job skips a tick while its previous run is still in flight,
// so a slow pass finishes and the next tick reads the newer snapshot.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/nvandessel/socioscope/internal/config"
	"github.com/nvandessel/socioscope/internal/engine"
	"github.com/nvandessel/socioscope/internal/logging"
	"github.com/nvandessel/socioscope/internal/models"
	"github.com/nvandessel/socioscope/internal/relational"
)

// Job names.
const (
	JobStep      = "step"
	JobCluster   = "cluster"
	JobTelemetry = "telemetry"
	JobDecision  = "decision"
)

// Passes is the part of the engine the scheduler drives.
type Passes interface {
	ClusterPass(now time.Time, snap models.Snapshot) engine.PassResult
	TelemetryPass(now time.Time, snap models.Snapshot) relational.Metrics
	DecisionPass(now time.Time, snap models.Snapshot) engine.DisruptionResult
}

// Source provides the population each pass reads.
type Source interface {
	Snapshot() models.Snapshot
}

// Stepper is implemented by sources that advance on their own schedule.
type Stepper interface {
	Step(now time.Time)
}

// Scheduler owns the cron runner and its jobs.
type Scheduler struct {
	cron    *cron.Cron
	jobs    map[string]func()
	entries map[string]cron.EntryID
	nowFunc func() time.Time
	logger  *slog.Logger

	mu   sync.Mutex
	runs map[string]int
}

// New registers one job per pass at the configured cadences. If src also
// implements Stepper, a step job runs every step.
func New(sched config.ScheduleConfig, step time.Duration, passes Passes, src Source, logger *slog.Logger) (*Scheduler, error) {
	logger = logging.OrDiscard(logger)
	s := &Scheduler{
		cron: cron.New(cron.WithChain(
			cron.Recover(cronLogger{logger}),
			cron.SkipIfStillRunning(cronLogger{logger}),
		)),
		jobs:    make(map[string]func()),
		entries: make(map[string]cron.EntryID),
		nowFunc: time.Now,
		logger:  logger,
		runs:    make(map[string]int),
	}

	s.jobs[JobCluster] = func() {
		res := passes.ClusterPass(s.nowFunc(), src.Snapshot())
		s.logger.Debug("cluster job", "groups", len(res.Groups), "events", len(res.Events))
	}
	s.jobs[JobTelemetry] = func() {
		passes.TelemetryPass(s.nowFunc(), src.Snapshot())
	}
	s.jobs[JobDecision] = func() {
		res := passes.DecisionPass(s.nowFunc(), src.Snapshot())
		if res.Event != nil {
			s.logger.Info("disruption emitted", "type", res.Event.Type, "intensity", res.Event.Intensity)
		}
	}
	cadences := map[string]time.Duration{
		JobCluster:   sched.Cluster,
		JobTelemetry: sched.Telemetry,
		JobDecision:  sched.Decision,
	}
	if stepper, ok := src.(Stepper); ok {
		s.jobs[JobStep] = func() { stepper.Step(s.nowFunc()) }
		cadences[JobStep] = step
	}

	for name, every := range cadences {
		if every < time.Second {
			return nil, fmt.Errorf("scheduling %s: cadence %v is below one second", name, every)
		}
		id, err := s.cron.AddFunc("@every "+every.String(), s.counted(name))
		if err != nil {
			return nil, fmt.Errorf("scheduling %s: %w", name, err)
		}
		s.entries[name] = id
	}
	return s, nil
}

func (s *Scheduler) counted(name string) func() {
	job := s.jobs[name]
	return func() {
		job()
		s.mu.Lock()
		s.runs[name]++
		s.mu.Unlock()
	}
}

// RunNow runs a job synchronously, outside its cadence.
func (s *Scheduler) RunNow(name string) error {
	if _, ok := s.jobs[name]; !ok {
		return fmt.Errorf("unknown job %q", name)
	}
	s.counted(name)()
	return nil
}

// Runs returns how often the named job has completed.
func (s *Scheduler) Runs(name string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.runs[name]
}

// Next returns the next scheduled run of a job, or the zero time before Start.
func (s *Scheduler) Next(name string) time.Time {
	id, ok := s.entries[name]
	if !ok {
		return time.Time{}
	}
	return s.cron.Entry(id).Next
}

// Start begins running jobs in the background.
func (s *Scheduler) Start() {
	s.cron.Start()
	s.logger.Info("scheduler started", "jobs", len(s.entries))
}

// Stop halts the scheduler and waits for in-flight jobs to finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

// Run starts the scheduler and blocks until ctx is done.
func (s *Scheduler) Run(ctx context.Context) {
	s.Start()
	<-ctx.Done()
	s.Stop()
}

// cronLogger adapts slog to the cron.Logger interface.
type cronLogger struct{ logger *slog.Logger }

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
