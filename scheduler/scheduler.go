package scheduler

import (
	"context"
	"io"
	"time"

	"github.com/aptible/superbackup/backup"
	"github.com/aptible/superbackup/program"
	"github.com/aptible/superbackup/prometheus_metrics"
	"github.com/sirupsen/logrus"
)

const PollInterval = time.Minute

type Scheduler struct {
	Executor *backup.Executor
	Logger   *logrus.Entry
	Metrics  *prometheus_metrics.PrometheusMetrics

	// Interval is the pause between two passes over the tasks. Zero means
	// PollInterval.
	Interval time.Duration

	// Now is the scheduler clock. Nil means time.Now.
	Now func() time.Time
}

func New(executor *backup.Executor, logger *logrus.Entry, promMetrics *prometheus_metrics.PrometheusMetrics) *Scheduler {
	return &Scheduler{
		Executor: executor,
		Logger:   logger,
		Metrics:  promMetrics,
	}
}

func (s *Scheduler) now() time.Time {
	if s.Now == nil {
		return time.Now()
	}
	return s.Now()
}

func (s *Scheduler) interval() time.Duration {
	if s.Interval <= 0 {
		return PollInterval
	}
	return s.Interval
}

func (s *Scheduler) newDirectTask(inst *program.Instruction) *DirectTask {
	return &DirectTask{
		Instruction: inst,
		executor:    s.Executor,
		promMetrics: s.Metrics,
		logger: s.Logger.WithFields(logrus.Fields{
			"position":    inst.Position,
			"source":      inst.Source,
			"destination": inst.Destination,
			"schedule":    scheduleLabel(inst),
		}),
	}
}

// Load runs every unconditional instruction right away, in program order, and
// returns the conditional ones as tasks stamped with the current time.
func (s *Scheduler) Load(prog *program.Program) []*ConditionalTask {
	tasks := make([]*ConditionalTask, 0)

	for _, inst := range prog.Instructions {
		task := s.newDirectTask(inst)

		if inst.Condition == nil {
			task.logger.Info("running backup")
			// Failures are logged by the task; nothing else to do here.
			_ = task.Backup(s.now())
			continue
		}

		if !inst.Condition.Valid() {
			task.logger.Warnf("%s can never match, backup will not run", inst.Condition)
		}

		task.logger.Info("registering backup with time condition")

		tasks = append(tasks, &ConditionalTask{
			direct:    task,
			CreatedAt: s.now(),
			Condition: *inst.Condition,
		})
	}

	return tasks
}

// Tick gives every task one chance to run. Each task sees the clock as of
// its own turn, so a slow backup delays the ones after it.
func (s *Scheduler) Tick(tasks []*ConditionalTask) int {
	failed := 0
	for _, task := range tasks {
		if err := task.Backup(s.now()); err != nil {
			failed++
		}
	}
	return failed
}

// Loop ticks over tasks until ctx is cancelled, sleeping Interval between
// passes. It returns at once when there is nothing to schedule.
func (s *Scheduler) Loop(ctx context.Context, tasks []*ConditionalTask) {
	if len(tasks) == 0 {
		s.Logger.Info("no scheduled backups, nothing left to do")
		return
	}

	var iteration uint64

	for {
		if ctx.Err() != nil {
			s.Logger.Debug("shutting down")
			return
		}

		tickLogger := s.Logger.WithFields(logrus.Fields{"iteration": iteration})

		if failed := s.Tick(tasks); failed > 0 {
			tickLogger.Warnf("%d of %d scheduled backups failed", failed, len(tasks))
		}

		tickLogger.Debugf("sleeping for %v", s.interval())

		select {
		case <-ctx.Done():
			s.Logger.Debug("shutting down")
			return
		case <-time.After(s.interval()):
		}

		iteration++
	}
}

func (s *Scheduler) Run(ctx context.Context, prog *program.Program) {
	s.Loop(ctx, s.Load(prog))
}

// LoadAndRun parses the program read from reader and runs it. A parse error
// is returned before any backup runs.
func (s *Scheduler) LoadAndRun(ctx context.Context, reader io.Reader) error {
	prog, err := program.ParseProgram(reader)
	if err != nil {
		return err
	}

	s.Run(ctx, prog)

	return nil
}
