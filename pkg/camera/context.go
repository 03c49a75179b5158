package camera

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-progressive-renderpass/pkg/backend"
)

// Context tracks the camera state that has to be pushed to the backend:
// the active camera path, framing, window policy and shutter curve. Every
// setter that changes a value invalidates the context; MarkValid clears the
// flag once the state has been applied.
//
// A Context belongs to the render pass and must only be used from the
// control goroutine.
type Context struct {
	cameraPath   string
	framing      Framing
	windowPolicy WindowPolicy
	shutterCurve ShutterCurve
	invalid      bool
}

// NewContext creates a valid context with no camera
func NewContext() *Context {
	return &Context{windowPolicy: Fit}
}

// SetCameraPath selects the active camera. Setting the current path is a no-op.
func (c *Context) SetCameraPath(path string) {
	if c.cameraPath == path {
		return
	}
	c.cameraPath = path
	c.invalid = true
}

// CameraPath returns the active camera path
func (c *Context) CameraPath() string {
	return c.cameraPath
}

// SetFraming sets the framing. Setting an equal framing is a no-op.
func (c *Context) SetFraming(framing Framing) {
	if c.framing == framing {
		return
	}
	c.framing = framing
	c.invalid = true
}

// Framing returns the current framing
func (c *Context) Framing() Framing {
	return c.framing
}

// SetWindowPolicy sets the window conform policy
func (c *Context) SetWindowPolicy(policy WindowPolicy) {
	if c.windowPolicy == policy {
		return
	}
	c.windowPolicy = policy
	c.invalid = true
}

// WindowPolicy returns the window conform policy
func (c *Context) WindowPolicy() WindowPolicy {
	return c.windowPolicy
}

// SetShutterCurve sets the shutter interval and curve
func (c *Context) SetShutterCurve(curve ShutterCurve) {
	if c.shutterCurve == curve {
		return
	}
	c.shutterCurve = curve
	c.invalid = true
}

// ShutterCurve returns the shutter interval and curve
func (c *Context) ShutterCurve() ShutterCurve {
	return c.shutterCurve
}

// MarkCameraInvalid invalidates the context when path is the active camera.
// The scene index calls it when a camera's parameters change.
func (c *Context) MarkCameraInvalid(path string) {
	if path == c.cameraPath {
		c.invalid = true
	}
}

// IsInvalid reports whether the state changed since the last MarkValid
func (c *Context) IsInvalid() bool {
	return c.invalid
}

// MarkValid records that the current state has been applied
func (c *Context) MarkValid() {
	c.invalid = false
}

// ResolutionFromDisplayWindow returns the output resolution implied by the
// framing's display window
func (c *Context) ResolutionFromDisplayWindow() image.Point {
	size := c.framing.DisplayWindow.Size()
	return image.Point{
		X: int(math.Round(size[0])),
		Y: int(math.Round(size[1])),
	}
}

// Camera returns the active scene camera, or false when the path is unset or
// unknown to the index
func (c *Context) Camera(index Index) (*Camera, bool) {
	if c.cameraPath == "" || index == nil {
		return nil, false
	}
	return index.Camera(c.cameraPath)
}

// UpdateBackendCamera pushes the camera and clip planes for spec driven
// render views. The screen window covers the camera's full aperture; the
// render view's resolution applies.
func (c *Context) UpdateBackendCamera(handle backend.Handle, index Index) error {
	cam := c.cameraOrDefault(index)
	return handle.SetCamera(c.params(cam, backend.FullScreenWindow, image.Point{}))
}

// UpdateBackendCameraInteractive pushes the camera and clip planes for
// framebuffer render views. The screen window is conformed to the framing's
// aspect ratio with the window policy and cropped to the data window.
func (c *Context) UpdateBackendCameraInteractive(handle backend.Handle, index Index, resolution image.Point) error {
	cam := c.cameraOrDefault(index)
	return handle.SetCamera(c.params(cam, c.ScreenWindow(cam), resolution))
}

func (c *Context) cameraOrDefault(index Index) *Camera {
	if cam, ok := c.Camera(index); ok {
		return cam
	}
	return DefaultCamera()
}

func (c *Context) params(cam *Camera, window backend.ScreenWindow, resolution image.Point) backend.CameraParams {
	return backend.CameraParams{
		Path:          cam.Path,
		CameraToWorld: cam.Transform,
		Projection:    cam.ComputeProjectionMatrix(),
		Orthographic:  cam.Projection == Orthographic,
		ScreenWindow:  window,
		ClipPlanes:    append([]mgl64.Vec4(nil), cam.ClipPlanes...),
		ShutterOpen:   c.shutterCurve.Open,
		ShutterClose:  c.shutterCurve.Close,
		ShutterCurve:  c.shutterCurve.Points,
		Resolution:    resolution,
	}
}

// ScreenWindow computes the screen window for the current framing. Without a
// valid framing the full aperture is used.
func (c *Context) ScreenWindow(cam *Camera) backend.ScreenWindow {
	if !c.framing.IsValid() {
		return backend.FullScreenWindow
	}

	// Conform in aperture units (half vertical aperture = 1), then back to
	// the normalised [-1, 1] image plane.
	camAspect := cam.Aspect()
	window := Range2f{Min: mgl64.Vec2{-camAspect, -1}, Max: mgl64.Vec2{camAspect, 1}}
	window = ConformWindow(window, c.windowPolicy, c.framing.Aspect())
	window.Min[0] /= camAspect
	window.Max[0] /= camAspect

	// Crop to the data window. Framing is y-down, the screen window y-up.
	display := c.framing.DisplayWindow
	displaySize := display.Size()
	data := c.framing.DataWindow
	fx0 := (float64(data.Min.X) - display.Min[0]) / displaySize[0]
	fx1 := (float64(data.Max.X) - display.Min[0]) / displaySize[0]
	fy0 := (float64(data.Min.Y) - display.Min[1]) / displaySize[1]
	fy1 := (float64(data.Max.Y) - display.Min[1]) / displaySize[1]

	size := window.Size()
	return backend.ScreenWindow{
		Min: mgl64.Vec2{window.Min[0] + fx0*size[0], window.Max[1] - fy1*size[1]},
		Max: mgl64.Vec2{window.Min[0] + fx1*size[0], window.Max[1] - fy0*size[1]},
	}
}
