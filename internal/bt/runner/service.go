package runner

import (
	"context"
	"sync"
	"sync/atomic"

	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
)

// ServiceOptions bounds a Service's run.
type ServiceOptions struct {
	// MaxTicks stops the service after this many ticks; 0 means unbounded.
	MaxTicks int
	// StopOnResult stops the service on the first Success or Failure.
	StopOnResult bool
}

// Service drives one Runner from a TickManager until it is stopped or one of
// its ServiceOptions limits is reached. It satisfies server.Service.
type Service struct {
	runner *Runner
	tm     *TickManager
	opts   ServiceOptions

	ticks      atomic.Int64
	lastResult atomic.Int32

	mu      sync.Mutex
	cancel  context.CancelFunc
	stopped bool
}

// NewService registers r with tm.
//
// Precondition: r and tm must not be nil; opts.MaxTicks must be >= 0.
func NewService(r *Runner, tm *TickManager, opts ServiceOptions) *Service {
	if r == nil || tm == nil {
		panic("runner.NewService: runner and tick manager must not be nil")
	}
	if opts.MaxTicks < 0 {
		panic("runner.NewService: MaxTicks must be >= 0")
	}
	s := &Service{runner: r, tm: tm, opts: opts}
	s.lastResult.Store(int32(bt.Failure))
	return s
}

// Start runs the tick loop and blocks until Stop is called or a limit is hit.
func (s *Service) Start() error {
	ctx, cancel := context.WithCancel(context.Background())
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		cancel()
		return nil
	}
	s.cancel = cancel
	s.mu.Unlock()
	defer cancel()

	s.tm.RegisterRunner(s.runner, func(result bt.Result) {
		n := s.ticks.Add(1)
		s.lastResult.Store(int32(result))
		if s.opts.MaxTicks > 0 && n >= int64(s.opts.MaxTicks) {
			s.runner.Logger().Info("tick limit reached", zap.Int64("ticks", n))
			cancel()
			return
		}
		if s.opts.StopOnResult && result != bt.Running {
			s.runner.Logger().Info("tree finished", zap.Stringer("result", result), zap.Int64("ticks", n))
			cancel()
		}
	})
	defer s.tm.Unregister(s.runner.ID())

	<-s.tm.Start(ctx)
	return nil
}

// Stop ends the tick loop. Safe to call more than once and before Start.
func (s *Service) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopped = true
	if s.cancel != nil {
		s.cancel()
	}
}

// Ticks returns the number of ticks the service has driven.
func (s *Service) Ticks() int64 { return s.ticks.Load() }

// LastResult returns the result of the most recent tick, Failure before the first.
func (s *Service) LastResult() bt.Result { return bt.Result(s.lastResult.Load()) }
