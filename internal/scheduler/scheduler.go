package scheduler

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/hamed0406/apiwatcher/internal/domain"
)

// Runner is one full health-check pass.
type Runner interface {
	RunAll(ctx context.Context) ([]domain.CheckResult, error)
}

// Scheduler runs the health checker on a fixed interval after an initial
// delay. Runs never overlap: a tick that arrives while the previous run is
// still going is skipped. A failing or panicking run is logged and the
// schedule carries on.
type Scheduler struct {
	Logger       *zap.Logger
	Runner       Runner
	Interval     time.Duration
	InitialDelay time.Duration

	running atomic.Bool
	wg      sync.WaitGroup
}

func New(logger *zap.Logger, runner Runner, interval, initialDelay time.Duration) *Scheduler {
	if interval < 0 {
		interval = 0
	}
	if initialDelay < 0 {
		initialDelay = 0
	}
	return &Scheduler{
		Logger:       logger,
		Runner:       runner,
		Interval:     interval,
		InitialDelay: initialDelay,
	}
}

// Run blocks until ctx is cancelled and the in-flight run, if any, returns.
func (s *Scheduler) Run(ctx context.Context) {
	if s.Interval == 0 {
		// disabled
		s.Logger.Info("scheduler_disabled")
		return
	}
	defer s.wg.Wait()

	delay := time.NewTimer(s.InitialDelay)
	defer delay.Stop()
	select {
	case <-ctx.Done():
		s.Logger.Info("scheduler_stopped")
		return
	case <-delay.C:
	}

	t := time.NewTicker(s.Interval)
	defer t.Stop()

	s.trigger(ctx)
	for {
		select {
		case <-ctx.Done():
			s.Logger.Info("scheduler_stopped")
			return
		case <-t.C:
			s.trigger(ctx)
		}
	}
}

// trigger starts a run unless one is already in progress.
func (s *Scheduler) trigger(ctx context.Context) bool {
	if !s.running.CompareAndSwap(false, true) {
		s.Logger.Warn("health_check_run_skipped", zap.String("reason", "previous run still in progress"))
		return false
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.running.Store(false)
		s.runOnce(ctx)
	}()
	return true
}

func (s *Scheduler) runOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			s.Logger.Error("health_check_run_failed", zap.Error(fmt.Errorf("panic: %v", r)))
		}
	}()

	start := time.Now()
	results, err := s.Runner.RunAll(ctx)
	if err != nil {
		s.Logger.Error("health_check_run_failed", zap.Error(err))
		return
	}
	s.Logger.Debug("health_check_run_finished",
		zap.Int("apis", len(results)),
		zap.Duration("took", time.Since(start)),
	)
}
