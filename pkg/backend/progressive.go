package backend

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/spf13/cast"

	"github.com/df07/go-progressive-renderpass/pkg/core"
)

// Config contains configuration for the progressive backend
type Config struct {
	Interactive        bool    // Render in the background and report progress through the framebuffer
	TileSize           int     // Size of each tile
	InitialSamples     int     // Samples for first pass
	MaxPasses          int     // Maximum number of passes
	NumWorkers         int     // Number of parallel workers (0 = use CPU count)
	AdaptiveMinSamples float64 // Fraction of the sample budget taken before adaptive stopping
}

// DefaultConfig returns sensible default values
func DefaultConfig() Config {
	return Config{
		Interactive:        true,
		TileSize:           32,
		InitialSamples:     1,
		MaxPasses:          7,
		NumWorkers:         0,
		AdaptiveMinSamples: 0.1,
	}
}

// Progressive is a Session that renders a Scene with a tile based
// progressive path tracer. Renders run on a background goroutine which
// Acquire cancels and waits for before any state is mutated.
type Progressive struct {
	config Config
	scene  Scene
	logger core.Logger

	sceneVersion   atomic.Int64
	sampling       atomic.Bool
	pauseRequested atomic.Bool

	// threadMu serialises render thread start and stop
	threadMu sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	closed   bool

	// mu guards the backend state below
	mu          sync.Mutex
	options     Options
	camera      CameraParams
	views       map[RenderViewID]RenderViewDesc
	integrators map[IntegratorID]IntegratorDesc
	active      IntegratorID
	nextID      int64
	progress    Progress
}

// NewProgressive creates a progressive backend rendering scene
func NewProgressive(scene Scene, config Config, logger core.Logger) *Progressive {
	if config.TileSize <= 0 {
		config.TileSize = DefaultConfig().TileSize
	}
	if logger == nil {
		logger = core.NewDiscardLogger()
	}
	return &Progressive{
		config:      config,
		scene:       scene,
		logger:      logger,
		views:       make(map[RenderViewID]RenderViewDesc),
		integrators: make(map[IntegratorID]IntegratorDesc),
	}
}

// IsInteractive implements Session
func (p *Progressive) IsInteractive() bool {
	return p.config.Interactive
}

// IsPauseRequested implements Session
func (p *Progressive) IsPauseRequested() bool {
	return p.pauseRequested.Load()
}

// RequestPause stops the render and holds updates until Resume
func (p *Progressive) RequestPause() {
	p.pauseRequested.Store(true)
	p.stopRender()
}

// Resume clears a pause request. The scene version is bumped so the next
// render pass restarts sampling.
func (p *Progressive) Resume() {
	if p.pauseRequested.Swap(false) {
		p.sceneVersion.Add(1)
	}
}

// DeleteRenderThread implements Session
func (p *Progressive) DeleteRenderThread() {
	p.stopRender()
}

// Acquire implements Session
func (p *Progressive) Acquire() Handle {
	p.stopRender()
	p.sceneVersion.Add(1)
	return &handle{p: p}
}

// Edit stops the render, runs fn and bumps the scene version. fn may mutate
// the scene.
func (p *Progressive) Edit(fn func()) {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()
	p.stopRenderLocked()
	fn()
	p.sceneVersion.Add(1)
}

// SceneVersion implements Session
func (p *Progressive) SceneVersion() int64 {
	return p.sceneVersion.Load()
}

// IsSampling implements Session
func (p *Progressive) IsSampling() bool {
	return p.sampling.Load()
}

// Progress returns the progress of the current or last render
func (p *Progressive) Progress() Progress {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.progress
}

// ActiveIntegrator implements Session
func (p *Progressive) ActiveIntegrator() IntegratorID {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.active
}

// SetActiveIntegrator implements Session
func (p *Progressive) SetActiveIntegrator(id IntegratorID) error {
	p.stopRender()

	p.mu.Lock()
	defer p.mu.Unlock()
	if _, ok := p.integrators[id]; !ok {
		return fmt.Errorf("%w: id %d", ErrUnknownIntegrator, id)
	}
	p.active = id
	p.sceneVersion.Add(1)
	return nil
}

// StartRender implements Session
func (p *Progressive) StartRender() error {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.stopRenderLocked()

	job, err := p.newJob(nil, nil)
	if err != nil {
		return err
	}
	if len(job.views) == 0 {
		return nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	p.cancel = cancel
	p.done = done
	p.sampling.Store(true)

	go func() {
		defer close(done)
		defer p.sampling.Store(false)

		progress, err := job.Run(ctx)
		switch {
		case errors.Is(err, context.Canceled):
			return
		case err != nil:
			p.logger.Warnf("Render failed: %v\n", err)
			return
		}
		if progress.Done {
			p.finish(job)
		}
	}()
	return nil
}

// RenderOnce implements Session
func (p *Progressive) RenderOnce(views []RenderViewID, opts Options) error {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()

	if p.closed {
		return ErrClosed
	}
	p.stopRenderLocked()

	job, err := p.newJob(views, &opts)
	if err != nil {
		return err
	}

	p.sampling.Store(true)
	defer p.sampling.Store(false)

	if _, err := job.Run(context.Background()); err != nil {
		return fmt.Errorf("render failed: %w", err)
	}
	return p.finish(job)
}

// Close stops the render thread. Further renders fail with ErrClosed.
func (p *Progressive) Close() {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()
	p.stopRenderLocked()
	p.closed = true
}

// finish writes the file products of a completed render
func (p *Progressive) finish(job *renderJob) error {
	for _, view := range job.views {
		if err := writeProducts(view, p.logger); err != nil {
			p.logger.Warnf("Failed to write products of render view %d: %v\n", view.id, err)
			return err
		}
	}
	return nil
}

func (p *Progressive) stopRender() {
	p.threadMu.Lock()
	defer p.threadMu.Unlock()
	p.stopRenderLocked()
}

// stopRenderLocked cancels the render thread and waits for it to exit
func (p *Progressive) stopRenderLocked() {
	if p.cancel == nil {
		return
	}
	p.cancel()
	<-p.done
	p.cancel = nil
	p.done = nil
}

// newJob snapshots the backend state into a render job. nil ids render every
// view; nil opts use the session options.
func (p *Progressive) newJob(ids []RenderViewID, opts *Options) (*renderJob, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	options := p.options.Clone()
	if opts != nil {
		options = opts.Clone()
	}
	config := p.config
	if value, ok := options.Lookup(OptionMaxSamples); ok {
		if n, err := cast.ToIntE(value); err == nil && n > 0 {
			options.MaxSamples = n
		} else {
			p.logger.Warnf("Ignoring option %s=%v\n", OptionMaxSamples, value)
		}
	}
	// Batch renders skip the preview passes
	if mode, ok := options.Lookup(OptionRenderMode); ok && cast.ToString(mode) == RenderModeBatch {
		config.MaxPasses = 1
	}

	integrator, ok := p.integrators[p.active]
	if !ok {
		integrator = IntegratorDesc{Name: IntegratorPathTracer}
	}

	if ids == nil {
		for id := range p.views {
			ids = append(ids, id)
		}
		slices.Sort(ids)
	}

	job := &renderJob{
		config:     config,
		scene:      p.scene,
		integrator: integrator,
		options:    options,
		logger:     p.logger,
		onPass:     p.setProgress,
	}
	for _, id := range ids {
		desc, ok := p.views[id]
		if !ok {
			return nil, fmt.Errorf("%w: id %d", ErrUnknownRenderView, id)
		}
		job.views = append(job.views, newViewJob(id, desc, p.camera, options, p.config.TileSize))
	}
	p.progress = Progress{TotalPasses: job.totalPasses()}
	return job, nil
}

func (p *Progressive) setProgress(progress Progress) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.progress = progress
}
