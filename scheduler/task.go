package scheduler

import (
	"errors"
	"fmt"
	"time"

	"github.com/aptible/superbackup/backup"
	"github.com/aptible/superbackup/program"
	"github.com/aptible/superbackup/prometheus_metrics"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
)

// Task is one backup the scheduler can trigger.
type Task interface {
	Backup(now time.Time) error
}

// DirectTask runs its instruction unconditionally.
type DirectTask struct {
	Instruction *program.Instruction
	executor    *backup.Executor
	logger      *logrus.Entry
	promMetrics *prometheus_metrics.PrometheusMetrics
}

func (t *DirectTask) Backup(now time.Time) error {
	labels := instructionPromLabels(t.Instruction)

	t.promMetrics.BackupsCurrentlyRunningGauge.With(labels).Inc()
	defer t.promMetrics.BackupsCurrentlyRunningGauge.With(labels).Dec()

	timer := prometheus.NewTimer(prometheus.ObserverFunc(func(v float64) {
		t.promMetrics.BackupsExecutionTimeHistogram.With(labels).Observe(v)
	}))
	defer timer.ObserveDuration()

	err := t.executor.Run(t.Instruction.Source, t.Instruction.Destination, t.logger)

	t.promMetrics.BackupsExecCounter.With(labels).Inc()

	if err == nil {
		t.logger.Info("backup succeeded")
		t.promMetrics.BackupsSuccessCounter.With(labels).Inc()
		return nil
	}

	t.logger.Error(err)

	var missing *backup.SourceMissingError
	if errors.As(err, &missing) {
		t.promMetrics.BackupsSourceMissingCounter.With(labels).Inc()
	} else {
		t.promMetrics.BackupsFailCounter.With(labels).Inc()
	}

	return err
}

// ConditionalTask wraps a DirectTask and only lets it run when its time
// condition matches. CreatedAt is fixed when the task is registered.
type ConditionalTask struct {
	direct    *DirectTask
	CreatedAt time.Time
	Condition program.TimeCondition
}

func (t *ConditionalTask) Instruction() *program.Instruction {
	return t.direct.Instruction
}

func (t *ConditionalTask) Backup(now time.Time) error {
	if !program.Matches(t.Condition, t.CreatedAt, now) {
		return nil
	}

	t.direct.logger.Debugf("%s matched at %s", t.Condition, now.Format(time.Kitchen))

	return t.direct.Backup(now)
}

func scheduleLabel(inst *program.Instruction) string {
	if inst.Condition == nil {
		return "once"
	}
	return inst.Condition.String()
}

func instructionPromLabels(inst *program.Instruction) prometheus.Labels {
	return prometheus.Labels{
		"position":    fmt.Sprintf("%d", inst.Position),
		"source":      inst.Source,
		"destination": inst.Destination,
		"schedule":    scheduleLabel(inst),
	}
}
