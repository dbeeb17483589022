// Package scheduler runs ingestion passes on a cron schedule.
package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/robfig/cron/v3"
	"go.uber.org/zap"
)

const DefaultSpec = "@every 6h"

// Pass is one unit of scheduled work, normally an ingestion pass.
type Pass func(ctx context.Context) error

type Scheduler struct {
	cron    *cron.Cron
	cronLog cronLogger
	spec    string
	pass    Pass
	timeout time.Duration
	logger  *zap.Logger
	runs    atomic.Int64

	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// New builds a scheduler that runs pass on spec. timeout bounds each pass; zero
// leaves passes unbounded. A tick that fires while a pass is still running, the
// startup pass included, is skipped.
func New(spec string, timeout time.Duration, pass Pass, logger *zap.Logger) *Scheduler {
	if spec == "" {
		spec = DefaultSpec
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	cronLog := cronLogger{logger: logger.Sugar()}
	return &Scheduler{
		cron:    cron.New(cron.WithLogger(cronLog)),
		cronLog: cronLog,
		spec:    spec,
		pass:    pass,
		timeout: timeout,
		logger:  logger,
	}
}

// Start registers the pass, starts the cron loop and runs one pass immediately
// without waiting for the first tick.
func (s *Scheduler) Start(ctx context.Context) error {
	ctx, s.cancel = context.WithCancel(context.WithoutCancel(ctx))

	// The startup run and the ticks share one guard, so they never overlap.
	job := cron.NewChain(cron.SkipIfStillRunning(s.cronLog)).Then(cron.FuncJob(func() {
		trigger := "tick"
		if s.runs.Add(1) == 1 {
			trigger = "startup"
		}
		s.run(ctx, trigger)
	}))

	if _, err := s.cron.AddJob(s.spec, job); err != nil {
		s.cancel()
		return fmt.Errorf("schedule %q: %w", s.spec, err)
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		job.Run()
	}()

	s.cron.Start()
	s.logger.Info("scheduler started", zap.String("spec", s.spec))

	return nil
}

// Stop stops scheduling and waits for running passes until ctx expires.
// Running passes are cancelled once ctx is done.
func (s *Scheduler) Stop(ctx context.Context) error {
	stopped := s.cron.Stop()

	done := make(chan struct{})
	go func() {
		<-stopped.Done()
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
		s.logger.Info("scheduler stopped")
		if s.cancel != nil {
			s.cancel()
		}
		return nil
	case <-ctx.Done():
		if s.cancel != nil {
			s.cancel()
		}
		return fmt.Errorf("waiting for running passes: %w", ctx.Err())
	}
}

func (s *Scheduler) run(ctx context.Context, trigger string) {
	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	started := time.Now()
	s.logger.Info("scheduled pass started", zap.String("trigger", trigger))

	if err := s.pass(ctx); err != nil {
		s.logger.Error("scheduled pass failed", zap.String("trigger", trigger), zap.Error(err))
		return
	}

	s.logger.Info("scheduled pass finished", zap.String("trigger", trigger), zap.Duration("took", time.Since(started)))
}

// cronLogger routes cron's own logging to zap.
type cronLogger struct {
	logger *zap.SugaredLogger
}

func (l cronLogger) Info(msg string, keysAndValues ...interface{}) {
	l.logger.Debugw(msg, keysAndValues...)
}

func (l cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	l.logger.Errorw(msg, append(keysAndValues, "error", err)...)
}
