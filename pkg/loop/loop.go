package loop

import (
	"context"
	"errors"
	"sync"
	"time"

	"k8s.io/utils/clock"

	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/renderpass"
)

// DefaultFPS is the refresh rate used when Config.FPS is zero
const DefaultFPS = 30

// Executor runs one display refresh
type Executor interface {
	Execute(ctx context.Context, state *renderpass.PassState) error
}

// StateFunc returns the pass state for the next refresh.
// Returning nil skips the refresh.
type StateFunc func() *renderpass.PassState

// Config contains the loop configuration
type Config struct {
	FPS int
}

// Loop is the control goroutine of an interactive session. Every tick it
// applies queued scene edits and then executes the render pass, so edits
// never run concurrently with Execute.
type Loop struct {
	interval time.Duration
	clock    clock.WithTicker
	executor Executor
	state    StateFunc
	logger   core.Logger

	mu      sync.Mutex
	pending []func()
	frames  uint64
	lastErr error
}

// New creates a loop ticking at cfg.FPS
func New(cfg Config, executor Executor, state StateFunc, clk clock.WithTicker, logger core.Logger) *Loop {
	fps := cfg.FPS
	if fps <= 0 {
		fps = DefaultFPS
	}
	if clk == nil {
		clk = clock.RealClock{}
	}
	if logger == nil {
		logger = core.NewDefaultLogger()
	}
	return &Loop{
		interval: time.Second / time.Duration(fps),
		clock:    clk,
		executor: executor,
		state:    state,
		logger:   logger,
	}
}

// Submit queues an edit for the next refresh
func (l *Loop) Submit(edit func()) {
	l.mu.Lock()
	l.pending = append(l.pending, edit)
	l.mu.Unlock()
}

// Frames gets the number of executed refreshes
func (l *Loop) Frames() uint64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// LastError gets the error of the most recent refresh, if any
func (l *Loop) LastError() error {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.lastErr
}

// Run ticks until ctx is cancelled
func (l *Loop) Run(ctx context.Context) error {
	ticker := l.clock.NewTicker(l.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			if errors.Is(ctx.Err(), context.Canceled) {
				return nil
			}
			return ctx.Err()
		case <-ticker.C():
			l.Tick(ctx)
		}
	}
}

// Tick runs one refresh: queued edits first, then Execute
func (l *Loop) Tick(ctx context.Context) {
	l.mu.Lock()
	edits := l.pending
	l.pending = nil
	l.mu.Unlock()

	for _, edit := range edits {
		edit()
	}

	state := l.state()
	if state == nil {
		return
	}

	err := l.executor.Execute(ctx, state)
	if err != nil {
		l.logger.Warnf("render pass failed: %v\n", err)
	}

	l.mu.Lock()
	l.frames++
	l.lastErr = err
	l.mu.Unlock()
}
