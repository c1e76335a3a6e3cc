package runner

import (
	"context"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/cory-johannsen/behave/internal/bt"
)

// TickFunc receives the wall-clock seconds elapsed since the previous tick.
type TickFunc func(delta float64)

// TickManager runs a periodic tick for each registered callback.
// Callbacks are invoked sequentially, in ID order, on the manager goroutine.
//
// Invariant: each callback is invoked at most once per tick interval.
type TickManager struct {
	interval time.Duration
	logger   *zap.Logger
	mu       sync.Mutex
	ticks    map[string]TickFunc
}

// NewTickManager returns a manager that fires ticks every interval.
//
// Precondition: interval must be > 0.
func NewTickManager(interval time.Duration, logger *zap.Logger) *TickManager {
	if interval <= 0 {
		panic("runner.NewTickManager: interval must be > 0")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &TickManager{
		interval: interval,
		logger:   logger,
		ticks:    make(map[string]TickFunc),
	}
}

// Interval returns the tick period.
func (m *TickManager) Interval() time.Duration { return m.interval }

// Register registers fn under id. Replaces any existing callback.
func (m *TickManager) Register(id string, fn TickFunc) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ticks[id] = fn
}

// RegisterRunner ticks r every interval and reports each result to onResult,
// which may be nil.
func (m *TickManager) RegisterRunner(r *Runner, onResult func(bt.Result)) {
	m.Register(r.ID(), func(delta float64) {
		result := r.Tick(delta)
		if onResult != nil {
			onResult(result)
		}
	})
}

// Unregister removes the callback for id.
func (m *TickManager) Unregister(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.ticks, id)
}

// Len returns the number of registered callbacks.
func (m *TickManager) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ticks)
}

// Start begins the tick loop. Runs until ctx is cancelled.
//
// Postcondition: the returned channel is closed once the loop has exited.
func (m *TickManager) Start(ctx context.Context) <-chan struct{} {
	done := make(chan struct{})
	go func() {
		defer close(done)
		ticker := time.NewTicker(m.interval)
		defer ticker.Stop()
		last := time.Now()
		m.logger.Info("tick manager started", zap.Duration("interval", m.interval))
		for {
			select {
			case <-ctx.Done():
				m.logger.Info("tick manager stopped")
				return
			case now := <-ticker.C:
				delta := now.Sub(last).Seconds()
				last = now
				for _, fn := range m.snapshot() {
					// A callback may cancel ctx; no further callbacks run once it has.
					if ctx.Err() != nil {
						break
					}
					fn(delta)
				}
			}
		}
	}()
	return done
}

func (m *TickManager) snapshot() []TickFunc {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.ticks))
	for id := range m.ticks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([]TickFunc, 0, len(ids))
	for _, id := range ids {
		out = append(out, m.ticks[id])
	}
	return out
}
