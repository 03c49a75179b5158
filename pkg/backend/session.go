package backend

import (
	"errors"
	"image"
	"strings"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
)

//go:generate mockgen -destination=mocks/mock_session.go -package=mocks -source=session.go Session,Handle

// Errors reported by backends
var (
	ErrUnknownIntegrator = errors.New("unknown integrator")
	ErrUnknownRenderView = errors.New("unknown render view")
	ErrClosed            = errors.New("render session closed")
)

// RenderViewID identifies a render view. The zero value means no view.
type RenderViewID int64

// IntegratorID identifies an integrator instance. The zero value means none.
type IntegratorID int64

// Session is a progressive render session shared between the render pass,
// which drives it from the control goroutine, and the backend's own render
// goroutines.
type Session interface {
	// IsInteractive reports whether renders run progressively in the background
	IsInteractive() bool

	// IsPauseRequested reports whether the client asked to pause updates
	IsPauseRequested() bool

	// DeleteRenderThread stops and discards the background render thread
	DeleteRenderThread()

	// Acquire stops any in-flight render, bumps the scene version and returns
	// the handle used to mutate backend state. It does not return until
	// sampling has stopped.
	Acquire() Handle

	// SceneVersion returns the counter incremented by every backend mutation
	SceneVersion() int64

	// IsSampling reports whether the render thread is accumulating samples
	IsSampling() bool

	// StartRender (re)starts the background render and returns immediately
	StartRender() error

	// RenderOnce renders the views to completion on the calling goroutine
	RenderOnce(views []RenderViewID, opts Options) error

	// ActiveIntegrator returns the integrator used by renders
	ActiveIntegrator() IntegratorID

	// SetActiveIntegrator selects the integrator used by renders. Like any
	// mutation it stops the render first.
	SetActiveIntegrator(id IntegratorID) error
}

// Handle mutates backend state. It is only valid between Acquire and the
// next StartRender.
type Handle interface {
	SetOptions(opts Options) error
	SetCamera(params CameraParams) error
	CreateRenderView(desc RenderViewDesc) (RenderViewID, error)
	ModifyRenderView(id RenderViewID, resolution image.Point) error
	DeleteRenderView(id RenderViewID)
	CreateIntegrator(desc IntegratorDesc) (IntegratorID, error)
	ModifyIntegrator(id IntegratorID, desc IntegratorDesc) error
}

// Options are global render options
type Options struct {
	MaxSamples    int
	PixelVariance float64
	Resolution    image.Point
	Extra         map[string]any // options forwarded from render settings
}

// Forwarded options understood by the backend. Names match case insensitively.
const (
	OptionRenderMode = "renderMode"
	RenderModeBatch  = "batch"
	OptionMaxSamples = "hider:maxsamples" // overrides MaxSamples
)

// Lookup returns the forwarded option name
func (o Options) Lookup(name string) (any, bool) {
	for key, value := range o.Extra {
		if strings.EqualFold(key, name) {
			return value, true
		}
	}
	return nil, false
}

// Clone returns a deep copy of the options
func (o Options) Clone() Options {
	clone := o
	clone.Extra = make(map[string]any, len(o.Extra))
	for k, v := range o.Extra {
		clone.Extra[k] = v
	}
	return clone
}

// ScreenWindow is the region of the camera's normalised image plane that is
// rendered, y up. The full aperture spans [-1, 1] on both axes.
type ScreenWindow struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// FullScreenWindow covers the full aperture
var FullScreenWindow = ScreenWindow{Min: mgl64.Vec2{-1, -1}, Max: mgl64.Vec2{1, 1}}

// CameraParams is the camera state pushed to the backend
type CameraParams struct {
	Path          string
	CameraToWorld mgl64.Mat4
	Projection    mgl64.Mat4
	Orthographic  bool
	ScreenWindow  ScreenWindow
	ClipPlanes    []mgl64.Vec4
	ShutterOpen   float32
	ShutterClose  float32
	ShutterCurve  [8]float32
	Resolution    image.Point // zero when the render view's resolution applies
}

// Display is one output of a render view
type Display struct {
	Name   string
	Driver string   // "framebuffer" or "png"
	Path   string   // output file for file drivers
	Aovs   []string // AOV names written by the display
}

// Display drivers
const (
	DriverFramebuffer = "framebuffer"
	DriverPNG         = "png"
)

// RenderViewDesc describes a render view
type RenderViewDesc struct {
	Resolution  image.Point
	Displays    []Display
	Framebuffer *framebuffer.FrameBuffer // target of framebuffer displays
}

// IntegratorDesc names an integrator and its parameters
type IntegratorDesc struct {
	Name   string
	Params map[string]any
}
