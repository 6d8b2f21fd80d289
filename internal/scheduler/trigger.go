// Package scheduler runs the minute trigger that fires stage batches when
// their configured day-of-week and time-of-day match the current minute.
package scheduler

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/dunning"
	"github.com/Maciej19820502/windykacja/internal/metrics"
)

// Runner executes one stage batch. Implemented by dunning.Engine.
type Runner interface {
	RunStage(ctx context.Context, stage db.Stage, opts dunning.RunOptions) (sent, errors int, err error)
}

// Trigger checks each stage's schedule once per minute and fires eligible
// batches. A tick matches only when the current HH:MM equals the configured
// time exactly; minutes missed while the process was down are not caught up.
type Trigger struct {
	schedules *dunning.ScheduleStore
	runner    Runner
	logger    *zap.Logger
	interval  time.Duration
	now       func() time.Time
}

// New creates a minute trigger.
func New(schedules *dunning.ScheduleStore, runner Runner, logger *zap.Logger) *Trigger {
	return &Trigger{
		schedules: schedules,
		runner:    runner,
		logger:    logger,
		interval:  time.Minute,
		now:       time.Now,
	}
}

// Start runs the trigger loop until ctx is cancelled.
func (t *Trigger) Start(ctx context.Context) {
	ticker := time.NewTicker(t.interval)
	defer ticker.Stop()

	t.logger.Info("scheduler trigger started")
	for {
		select {
		case <-ctx.Done():
			t.logger.Info("scheduler trigger stopping")
			return
		case <-ticker.C:
			t.Tick(ctx)
		}
	}
}

// Tick evaluates every stage against the current minute and launches each
// matching batch as its own unit of work, so one slow transport cannot stall
// the other stages or the next tick.
func (t *Trigger) Tick(ctx context.Context) {
	metrics.RecordSchedulerTick()

	now := t.now()
	hhmm := now.Format("15:04")
	weekday := isoWeekday(now)

	for _, stage := range db.Stages() {
		sched, err := t.schedules.Get(ctx, stage)
		if err != nil {
			t.logger.Error("load schedule failed",
				zap.String("stage", stage.String()),
				zap.Error(err),
			)
			continue
		}
		if !sched.Enabled {
			continue
		}
		if !sched.ActiveOn(weekday) {
			continue
		}
		if hhmm != sched.At {
			continue
		}

		stage := stage
		t.logger.Info("scheduler firing stage batch",
			zap.String("stage", stage.String()),
			zap.String("time", hhmm),
			zap.Int("weekday", weekday),
		)
		go func() {
			sent, errs, err := t.runner.RunStage(ctx, stage, dunning.RunOptions{Trigger: "scheduler"})
			if err != nil {
				t.logger.Error("scheduled stage run failed",
					zap.String("stage", stage.String()),
					zap.Error(err),
				)
				return
			}
			t.logger.Info("scheduled stage run finished",
				zap.String("stage", stage.String()),
				zap.Int("sent", sent),
				zap.Int("errors", errs),
			)
		}()
	}
}

// isoWeekday maps time.Weekday to ISO numbering (1=Mon .. 7=Sun).
func isoWeekday(t time.Time) int {
	wd := int(t.Weekday())
	if wd == 0 {
		return 7
	}
	return wd
}
