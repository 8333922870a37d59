package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/kat-co/vala"
	"github.com/pkg/errors"
	"github.com/robfig/cron/v3"

	"github.com/trezcool/alama/core"
	"github.com/trezcool/alama/core/grade"
)

const runTimeout = 4 * time.Minute

// RecomputeObserver is told how many stale grades each run refreshed.
type RecomputeObserver interface {
	AddRecomputed(n int)
}

// Scheduler periodically refreshes stale final grades.
type Scheduler struct {
	cron     *cron.Cron
	gradeSvc grade.Service
	observer RecomputeObserver
	logger   core.Logger
	batch    int
}

func New(gradeSvc grade.Service, observer RecomputeObserver, logger core.Logger, conf *core.Config) (*Scheduler, error) {
	err := vala.BeginValidation().Validate(
		vala.IsNotNil(gradeSvc, "gradeSvc"),
		vala.IsNotNil(logger, "logger"),
		vala.StringNotEmpty(conf.Grading.RecomputeSchedule, "grading.recomputeSchedule"),
		vala.GreaterThan(conf.Grading.RecomputeBatchSize, 0, "grading.recomputeBatchSize"),
	).Check()
	if err != nil {
		return nil, errors.Wrap(err, "invalid scheduler configuration")
	}

	cl := cronLogger{logger: logger}
	s := &Scheduler{
		cron:     cron.New(cron.WithLogger(cl), cron.WithChain(cron.Recover(cl), cron.SkipIfStillRunning(cl))),
		gradeSvc: gradeSvc,
		observer: observer,
		logger:   logger,
		batch:    conf.Grading.RecomputeBatchSize,
	}
	if _, err = s.cron.AddFunc(conf.Grading.RecomputeSchedule, s.run); err != nil {
		return nil, errors.Wrapf(err, "scheduling stale grade recompute %q", conf.Grading.RecomputeSchedule)
	}
	return s, nil
}

func (s *Scheduler) run() {
	ctx, cancel := context.WithTimeout(context.Background(), runTimeout)
	defer cancel()
	if _, err := s.RunOnce(ctx); err != nil {
		s.logger.Error(fmt.Sprintf("recomputing stale grades: %v", err), err)
	}
}

// RunOnce refreshes one batch of stale grades.
func (s *Scheduler) RunOnce(ctx context.Context) (int, error) {
	n, err := s.gradeSvc.RecomputeStale(ctx, s.batch)
	if s.observer != nil && n > 0 {
		s.observer.AddRecomputed(n)
	}
	if n > 0 {
		s.logger.Info(fmt.Sprintf("recomputed %d stale grades", n))
	}
	return n, err
}

func (s *Scheduler) Start() {
	s.cron.Start()
}

// Stop halts the schedule; the returned context is done once a running job completes.
func (s *Scheduler) Stop() context.Context {
	return s.cron.Stop()
}

// cronLogger adapts core.Logger to cron.Logger.
type cronLogger struct {
	logger core.Logger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debug("cron: "+msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Error(fmt.Sprintf("cron: %s: %v", msg, err), append([]interface{}{err}, keysAndValues...)...)
}
