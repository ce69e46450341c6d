package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"newspenguin/domain"
)

// ErrRunInProgress is returned by Trigger while another run is executing in
// this process.
var ErrRunInProgress = errors.New("sync run already in progress")

// SchedulerService triggers synchronizer runs on a cron schedule. Within the
// process at most one run executes at a time; overlapping ticks are skipped.
type SchedulerService struct {
	syncer     domain.Synchronizer
	logger     *slog.Logger
	runOnStart bool

	mu       sync.Mutex
	cron     *cron.Cron
	schedule string
	entry    cron.EntryID
	ctx      context.Context
	cancel   context.CancelFunc
	started  bool
	last     *domain.RunResult
	lastErr  error

	runMu sync.Mutex
}

// SchedulerStatus is a point-in-time view of the scheduler.
type SchedulerStatus struct {
	Schedule  string
	Started   bool
	NextRun   time.Time
	LastRun   *domain.RunResult
	LastError string
}

func NewScheduler(s domain.Synchronizer, schedule string, runOnStart bool, logger *slog.Logger) *SchedulerService {
	if logger == nil {
		logger = slog.Default()
	}
	return &SchedulerService{syncer: s, schedule: schedule, runOnStart: runOnStart, logger: logger}
}

// ValidateSchedule reports whether spec is a standard cron expression or descriptor.
func ValidateSchedule(spec string) error {
	if _, err := cron.ParseStandard(spec); err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	return nil
}

func (a *SchedulerService) Start(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.started {
		return errors.New("scheduler already started")
	}
	// only Stop cancels runs; a cancelled parent must not cut a run short
	a.ctx, a.cancel = context.WithCancel(context.WithoutCancel(ctx))
	a.cron = cron.New(cron.WithChain(cron.Recover(cronLogger{a.logger})))
	id, err := a.cron.AddFunc(a.schedule, a.tick)
	if err != nil {
		a.cancel()
		return fmt.Errorf("invalid schedule %q: %w", a.schedule, err)
	}
	a.entry = id
	a.cron.Start()
	a.started = true

	a.logger.Info("scheduler started", "schedule", a.schedule)
	if a.runOnStart {
		go a.tick()
	}
	return nil
}

// Stop waits for an in-flight run to finish, then cancels the run context.
func (a *SchedulerService) Stop() error {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return nil
	}
	c := a.cron
	cancel := a.cancel
	a.started = false
	a.mu.Unlock()

	<-c.Stop().Done()
	// a run started by Trigger or runOnStart is not tracked by cron
	a.runMu.Lock()
	cancel()
	a.runMu.Unlock()
	a.logger.Info("scheduler stopped")
	return nil
}

// SetSchedule replaces the cron expression, rescheduling if running.
func (a *SchedulerService) SetSchedule(spec string) error {
	if err := ValidateSchedule(spec); err != nil {
		return err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started {
		a.schedule = spec
		return nil
	}
	id, err := a.cron.AddFunc(spec, a.tick)
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}
	a.cron.Remove(a.entry)
	a.entry = id
	a.schedule = spec
	a.logger.Info("schedule changed", "schedule", spec)
	return nil
}

func (a *SchedulerService) CurrentSchedule() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.schedule
}

// Trigger runs the synchronizer now, outside the schedule.
func (a *SchedulerService) Trigger(ctx context.Context) (domain.RunResult, error) {
	if !a.runMu.TryLock() {
		return domain.RunResult{}, ErrRunInProgress
	}
	defer a.runMu.Unlock()
	return a.execute(ctx)
}

func (a *SchedulerService) Status() SchedulerStatus {
	a.mu.Lock()
	defer a.mu.Unlock()
	st := SchedulerStatus{Schedule: a.schedule, Started: a.started, LastRun: a.last}
	if a.lastErr != nil {
		st.LastError = a.lastErr.Error()
	}
	if a.started {
		st.NextRun = a.cron.Entry(a.entry).Next
	}
	return st
}

func (a *SchedulerService) tick() {
	if !a.runMu.TryLock() {
		a.logger.Info("previous run still executing, skipping tick")
		return
	}
	defer a.runMu.Unlock()

	a.mu.Lock()
	ctx := a.ctx
	a.mu.Unlock()
	if ctx == nil || ctx.Err() != nil {
		return
	}
	_, _ = a.execute(ctx)
}

func (a *SchedulerService) execute(ctx context.Context) (domain.RunResult, error) {
	res, err := a.syncer.Run(ctx)
	a.mu.Lock()
	a.last = &res
	a.lastErr = err
	a.mu.Unlock()
	return res, err
}

// cronLogger adapts slog to cron.Logger.
type cronLogger struct{ l *slog.Logger }

func (c cronLogger) Info(msg string, keysAndValues ...interface{}) {
	c.l.Debug("cron: "+msg, keysAndValues...)
}

func (c cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	c.l.Error("cron: "+msg, append([]interface{}{"error", err}, keysAndValues...)...)
}
