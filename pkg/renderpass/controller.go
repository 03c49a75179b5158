package renderpass

import (
	"context"
	"errors"
	"fmt"
	"image"
	"time"

	"k8s.io/utils/clock"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
	"github.com/df07/go-progressive-renderpass/pkg/camera"
	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
	"github.com/df07/go-progressive-renderpass/pkg/renderview"
	"github.com/df07/go-progressive-renderpass/pkg/settings"
)

// unsetResolution forces the next Execute to push resolution and camera
var unsetResolution = image.Point{X: -1, Y: -1}

// Config contains configuration for the render pass
type Config struct {
	// EnableQuickIntegrate starts interactive renders with the quick
	// integrator and promotes them to the target integrator once the
	// interactive integrator timeout elapsed
	EnableQuickIntegrate bool
}

// PassState is the per call input of Execute
type PassState struct {
	AovBindings  []framebuffer.AovBinding
	CameraPath   string          // overrides the render spec camera
	Framing      camera.Framing  // wins over Viewport when valid
	Viewport     camera.Viewport // y-up, used when Framing is invalid
	WindowPolicy camera.WindowPolicy
}

// Option configures a Controller
type Option func(*Controller)

// WithLogger sets the logger
func WithLogger(logger core.Logger) Option {
	return func(c *Controller) {
		c.logger = logger
	}
}

// WithClock sets the clock used to time the interim integrator
func WithClock(clk clock.PassiveClock) Option {
	return func(c *Controller) {
		c.clock = clk
	}
}

// WithMetrics sets the metrics instruments
func WithMetrics(metrics *Metrics) Option {
	return func(c *Controller) {
		c.metrics = metrics
	}
}

// Controller drives a backend session once per display refresh: it keeps
// camera, framing and resolution in sync, restarts the render when the scene
// changed, switches between the quick and the target integrator and blits
// finished pixels into the bound render buffers.
//
// Execute must be called from a single goroutine.
type Controller struct {
	config   Config
	session  backend.Session
	settings settings.Provider
	cameras  camera.Index
	buffers  framebuffer.Index
	logger   core.Logger
	clock    clock.PassiveClock
	metrics  *Metrics

	camera      *camera.Context
	renderView  *renderview.Context
	framebuffer *framebuffer.FrameBuffer

	// handle is the backend handle acquired during the current Execute
	handle backend.Handle

	options             backend.Options
	lastSettingsVersion int
	lastRenderedVersion int64
	resolution          image.Point

	targetIntegrator   backend.IntegratorID
	targetName         string
	quickIntegrator    backend.IntegratorID
	quickName          string
	quickIntegrateTime time.Duration
	tier               tierState
	frameStart         time.Time
	converged          bool

	warnedNoSession bool
}

// New creates a render pass driving session. cameras resolves camera paths;
// buffers resolves AOV bindings bound by identifier and may be nil.
func New(session backend.Session, provider settings.Provider, cameras camera.Index, buffers framebuffer.Index, config Config, opts ...Option) *Controller {
	c := &Controller{
		config:              config,
		session:             session,
		settings:            provider,
		cameras:             cameras,
		buffers:             buffers,
		logger:              core.NewDefaultLogger(),
		clock:               clock.RealClock{},
		camera:              camera.NewContext(),
		renderView:          renderview.NewContext(),
		lastSettingsVersion: -1,
		lastRenderedVersion: -1,
		resolution:          unsetResolution,
		quickIntegrateTime:  settings.DefaultInteractiveIntegratorTimeout,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// IsConverged reports whether the last Execute found the render complete at
// the target integrator
func (c *Controller) IsConverged() bool {
	return c.converged
}

// CameraContext returns the camera state of the render pass
func (c *Controller) CameraContext() *camera.Context {
	return c.camera
}

// Framebuffer returns the intermediate framebuffer, nil when no AOVs are bound
func (c *Controller) Framebuffer() *framebuffer.FrameBuffer {
	return c.framebuffer
}

// Execute runs one render pass update
func (c *Controller) Execute(ctx context.Context, state *PassState) (err error) {
	if c.session == nil {
		if !c.warnedNoSession {
			c.logger.Warnf("render pass has no backend session, nothing to execute\n")
			c.warnedNoSession = true
		}
		return nil
	}
	if state == nil {
		state = &PassState{}
	}

	interactive := c.session.IsInteractive()
	if interactive {
		// No more updates if pause is pending
		if c.session.IsPauseRequested() {
			return nil
		}
	} else {
		// Switching from interactive to offline rendering
		c.session.DeleteRenderThread()
	}

	start := c.clock.Now()
	defer func() {
		c.handle = nil
		c.metrics.recordExecute(ctx, c.clock.Since(start), c.converged, err == nil)
	}()

	bindings := state.AovBindings
	settingsVersion := c.settings.Version()
	spec, specErr := settings.DecodeRenderSpec(c.settings)
	if specErr != nil {
		c.logger.Warnf("ignoring render spec: %v\n", specErr)
	}

	// The camera of the pass state wins over the render spec camera
	if state.CameraPath != "" {
		c.camera.SetCameraPath(state.CameraPath)
	} else if spec.Camera != "" {
		c.camera.SetCameraPath(spec.Camera)
	}

	bufferSize, _ := c.renderBufferSize(bindings)
	if state.Framing.IsValid() {
		c.camera.SetFraming(state.Framing)
	} else {
		c.camera.SetFraming(camera.FramingFromViewport(state.Viewport, bufferSize))
	}
	c.camera.SetWindowPolicy(state.WindowPolicy)
	c.camera.SetShutterCurve(camera.ShutterCurveFor(interactive))

	camChanged := c.camera.IsInvalid()
	c.camera.MarkValid()

	settingsChanged := settingsVersion != c.lastSettingsVersion

	var resolution image.Point
	if len(bindings) == 0 {
		// Without AOV bindings the render spec defines the render view. The
		// view is recreated when leaving the framebuffer topology and
		// whenever the render spec setting may have changed.
		createRenderView := c.deleteFramebuffer()
		if settingsChanged {
			createRenderView = true
		}
		resolution = c.specResolution(spec)
		if createRenderView {
			if err := c.createRenderViewFromSpec(ctx, spec, resolution); err != nil {
				return c.retryCamera(camChanged, err)
			}
		}
	} else {
		if err := c.ensureFramebuffer(ctx, bindings, bufferSize); err != nil {
			return c.retryCamera(camChanged, err)
		}
		resolution = bufferSize
	}

	if settingsChanged || camChanged {
		h := c.acquire(ctx)
		if err := c.updateIntegrators(h); err != nil {
			return c.retryCamera(camChanged, err)
		}
		if c.config.EnableQuickIntegrate {
			c.quickIntegrateTime = settings.Milliseconds(c.settings, settings.KeyInteractiveIntegratorTimeout,
				settings.DefaultInteractiveIntegratorTimeout)
		}
		c.updateOptions()
		if err := h.SetOptions(c.options); err != nil {
			return c.retryCamera(camChanged, fmt.Errorf("failed to set options: %w", err))
		}
		c.lastSettingsVersion = settingsVersion
	}

	resolutionChanged := resolution != c.resolution
	if camChanged || resolutionChanged {
		h := c.acquire(ctx)
		if resolutionChanged {
			options := c.options.Clone()
			options.Resolution = resolution
			if err := c.renderView.SetResolution(h, resolution); err != nil {
				return c.retryCamera(camChanged, err)
			}
			if err := h.SetOptions(options); err != nil {
				return c.retryCamera(camChanged, fmt.Errorf("failed to set options: %w", err))
			}
			c.options = options
			c.resolution = resolution
		}

		var camErr error
		if len(bindings) == 0 {
			camErr = c.camera.UpdateBackendCamera(h, c.cameras)
		} else {
			// With AOV bindings the screen window follows the framing
			camErr = c.camera.UpdateBackendCameraInteractive(h, c.cameras, resolution)
		}
		if camErr != nil {
			return c.retryCamera(true, fmt.Errorf("failed to set camera: %w", camErr))
		}
	}

	if c.framebuffer != nil {
		if cam, ok := c.camera.Camera(c.cameras); ok {
			// Depth is scaled with the camera projection
			c.framebuffer.SetProjection(cam.ComputeProjectionMatrix())
		}
	}

	var renderErr error
	if interactive {
		renderErr = c.restartIfNecessary(ctx)
	} else {
		renderErr = c.renderInMainThread(ctx)
	}

	if c.framebuffer != nil {
		copied := c.framebuffer.Blit(bindings, c.buffers, c.converged, c.logger)
		c.metrics.recordBlit(ctx, copied)
	}
	return renderErr
}

// retryCamera makes the next Execute push the camera again when this call
// consumed a camera change but failed before applying it
func (c *Controller) retryCamera(camChanged bool, err error) error {
	if camChanged {
		c.camera.MarkCameraInvalid(c.camera.CameraPath())
	}
	return err
}

// acquire halts the render and returns the backend handle. The handle is
// acquired at most once per Execute so grouped mutations share one halt.
func (c *Controller) acquire(ctx context.Context) backend.Handle {
	if c.handle == nil {
		c.handle = c.session.Acquire()
		c.metrics.recordHalt(ctx)
	}
	return c.handle
}

// restartIfNecessary restarts the interactive render when the scene changed
// and promotes a settled interim render to the target integrator
func (c *Controller) restartIfNecessary(ctx context.Context) error {
	err := c.advanceTier(ctx)
	c.converged = c.session.ActiveIntegrator() == c.targetIntegrator && !c.session.IsSampling()
	return err
}

func (c *Controller) advanceTier(ctx context.Context) error {
	sceneChanged := c.session.SceneVersion() != c.lastRenderedVersion
	ev := tierEvent{sceneChanged: sceneChanged}
	if sceneChanged {
		ev.eligible = c.usesQuickIntegrator()
	} else if c.session.ActiveIntegrator() != c.targetIntegrator {
		ev.timeoutElapsed = c.clock.Since(c.frameStart) > c.quickIntegrateTime
	}
	next := c.tier.next(ev)

	switch {
	case sceneChanged:
		integrator, name := c.targetIntegrator, c.targetName
		if next == tierInterim {
			integrator, name = c.quickIntegrator, c.quickName
		}
		if integrator != c.session.ActiveIntegrator() {
			if err := c.session.SetActiveIntegrator(integrator); err != nil {
				return fmt.Errorf("failed to activate integrator %s: %w", name, err)
			}
		}
		if err := c.session.StartRender(); err != nil {
			return fmt.Errorf("failed to start render: %w", err)
		}
		c.frameStart = c.clock.Now()
		c.tier = next
		c.metrics.recordRestart(ctx, reasonSceneChanged, name)
		c.logger.Debugf("Restarted render with %s\n", name)

	case next != c.tier:
		// One way promotion, eligibility is not evaluated again
		if err := c.session.SetActiveIntegrator(c.targetIntegrator); err != nil {
			return fmt.Errorf("failed to activate integrator %s: %w", c.targetName, err)
		}
		if err := c.session.StartRender(); err != nil {
			return fmt.Errorf("failed to start render: %w", err)
		}
		c.tier = next
		c.metrics.recordRestart(ctx, reasonPromotion, c.targetName)
		c.logger.Debugf("Promoted render to %s after %v\n", c.targetName, c.clock.Since(c.frameStart))
	}

	// Starting and switching integrators bump the scene version
	c.lastRenderedVersion = c.session.SceneVersion()
	return nil
}

// usesQuickIntegrator reports whether a restart may begin with the quick
// integrator: the feature is enabled, the timeout is positive and the target
// is one of the expensive primary integrators.
func (c *Controller) usesQuickIntegrator() bool {
	return c.config.EnableQuickIntegrate &&
		c.quickIntegrateTime > 0 &&
		c.quickIntegrator != 0 &&
		isPrimaryIntegrator(c.targetName)
}

func isPrimaryIntegrator(name string) bool {
	return name == backend.IntegratorPathTracer || name == backend.IntegratorPbsPathTracer
}

// renderInMainThread renders the render view to completion with the target
// integrator
func (c *Controller) renderInMainThread(ctx context.Context) error {
	c.converged = false
	c.acquire(ctx)
	if err := c.session.SetActiveIntegrator(c.targetIntegrator); err != nil {
		return fmt.Errorf("failed to activate integrator %s: %w", c.targetName, err)
	}
	c.tier = tierTarget

	id, ok := c.renderView.ID()
	if !ok {
		return fmt.Errorf("%w: no render view to render", backend.ErrUnknownRenderView)
	}

	options := c.options.Clone()
	options.Extra[backend.OptionRenderMode] = backend.RenderModeBatch
	if err := c.session.RenderOnce([]backend.RenderViewID{id}, options); err != nil {
		return fmt.Errorf("failed to render: %w", err)
	}
	c.metrics.recordRestart(ctx, reasonBatch, c.targetName)

	c.converged = true
	return nil
}

// updateIntegrators creates or updates the target and quick integrators from
// the render settings. Unknown integrator names fall back to the defaults.
func (c *Controller) updateIntegrators(h backend.Handle) error {
	params := settings.WithPrefix(c.settings, settings.IntegratorParamPrefix)

	name := settings.String(c.settings, settings.KeyIntegratorName, settings.DefaultIntegrator)
	id, name, err := c.upsertIntegrator(h, c.targetIntegrator, name, settings.DefaultIntegrator, params)
	if err != nil {
		return err
	}
	c.targetIntegrator, c.targetName = id, name

	quick := settings.String(c.settings, settings.KeyInteractiveIntegrator, settings.DefaultInteractiveIntegrator)
	id, quick, err = c.upsertIntegrator(h, c.quickIntegrator, quick, settings.DefaultInteractiveIntegrator, nil)
	if err != nil {
		return err
	}
	c.quickIntegrator, c.quickName = id, quick
	return nil
}

func (c *Controller) upsertIntegrator(h backend.Handle, id backend.IntegratorID, name, fallback string, params map[string]any) (backend.IntegratorID, string, error) {
	apply := func(name string) (backend.IntegratorID, error) {
		desc := backend.IntegratorDesc{Name: name, Params: params}
		if id == 0 {
			return h.CreateIntegrator(desc)
		}
		return id, h.ModifyIntegrator(id, desc)
	}

	newID, err := apply(name)
	if errors.Is(err, backend.ErrUnknownIntegrator) && name != fallback {
		c.logger.Warnf("unknown integrator %q, using %q\n", name, fallback)
		name = fallback
		newID, err = apply(name)
	}
	if err != nil {
		return id, name, fmt.Errorf("failed to update integrator %s: %w", name, err)
	}
	return newID, name, nil
}

// updateOptions rebuilds the backend options from the render settings
func (c *Controller) updateOptions() {
	maxSamples, ok := settings.IntOK(c.settings, settings.KeyConvergedSamplesPerPixel)
	if !ok {
		c.logger.Warnf("%s is not set, using %d\n", settings.KeyConvergedSamplesPerPixel, settings.DefaultMaxSamples)
		maxSamples = settings.DefaultMaxSamples
	}

	pixelVariance, ok := settings.FloatOK(c.settings, settings.KeyConvergedVariance)
	if !ok {
		c.logger.Warnf("%s is not set, using %g\n", settings.KeyConvergedVariance, settings.DefaultPixelVariance)
		pixelVariance = settings.DefaultPixelVariance
	}

	c.options = backend.Options{
		MaxSamples:    maxSamples,
		PixelVariance: pixelVariance,
		Resolution:    c.renderView.Resolution(),
		Extra:         settings.WithPrefix(c.settings, settings.OptionPrefix),
	}
}

// deleteFramebuffer drops the intermediate framebuffer and reports whether
// there was one
func (c *Controller) deleteFramebuffer() bool {
	if c.framebuffer == nil {
		return false
	}
	c.framebuffer = nil
	return true
}

// ensureFramebuffer creates the framebuffer and a render view writing into
// it unless the current framebuffer already matches the bindings
func (c *Controller) ensureFramebuffer(ctx context.Context, bindings []framebuffer.AovBinding, resolution image.Point) error {
	descs := framebuffer.DescsFromBindings(bindings)
	if c.framebuffer != nil && c.framebuffer.MatchesDescs(descs) {
		if _, ok := c.renderView.ID(); ok {
			return nil
		}
	}

	names := make([]string, len(descs))
	for i, desc := range descs {
		names[i] = desc.Name
	}
	fb := framebuffer.New(descs)

	h := c.acquire(ctx)
	err := c.renderView.Create(h, backend.RenderViewDesc{
		Resolution:  resolution,
		Displays:    []backend.Display{{Name: "framebuffer", Driver: backend.DriverFramebuffer, Aovs: names}},
		Framebuffer: fb,
	})
	if err != nil {
		return err
	}
	c.framebuffer = fb
	// A new view needs its resolution and camera pushed
	c.resolution = unsetResolution
	return nil
}

// createRenderViewFromSpec replaces the render view with one writing the
// render spec's products
func (c *Controller) createRenderViewFromSpec(ctx context.Context, spec settings.RenderSpec, resolution image.Point) error {
	displays := make([]backend.Display, 0, len(spec.Products))
	for _, product := range spec.Products {
		driver := product.Driver
		if driver == "" {
			driver = backend.DriverPNG
		}
		displays = append(displays, backend.Display{
			Name:   product.Name,
			Driver: driver,
			Path:   product.Path,
			Aovs:   product.Aovs,
		})
	}

	h := c.acquire(ctx)
	err := c.renderView.Create(h, backend.RenderViewDesc{Resolution: resolution, Displays: displays})
	if err != nil {
		return err
	}
	c.resolution = unsetResolution
	return nil
}

// specResolution is the display window size, or the first product
// resolution when there is no framing
func (c *Controller) specResolution(spec settings.RenderSpec) image.Point {
	if resolution := c.camera.ResolutionFromDisplayWindow(); resolution.X > 0 && resolution.Y > 0 {
		return resolution
	}
	for _, product := range spec.Products {
		if len(product.Resolution) == 2 {
			return image.Point{X: product.Resolution[0], Y: product.Resolution[1]}
		}
	}
	return image.Point{}
}

// renderBufferSize returns the size of the first render buffer the bindings
// resolve to. Unresolvable bindings are reported and skipped.
func (c *Controller) renderBufferSize(bindings []framebuffer.AovBinding) (image.Point, bool) {
	for _, binding := range bindings {
		rb := framebuffer.Resolve(binding, c.buffers)
		if rb == nil {
			c.logger.Warnf("coding error: no render buffer available for AOV %q\n", binding.Name)
			continue
		}
		return image.Point{X: rb.Width(), Y: rb.Height()}, true
	}
	return image.Point{}, false
}

// Close deletes the render view and the framebuffer
func (c *Controller) Close() {
	if c.session == nil {
		return
	}
	h := c.session.Acquire()
	c.renderView.Delete(h)
	c.framebuffer = nil
	c.resolution = unsetResolution
	c.lastSettingsVersion = -1
}
