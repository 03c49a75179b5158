package camera

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"
)

// Projection is the camera projection type
type Projection int

// Projection types
const (
	Perspective Projection = iota
	Orthographic
)

// Camera is a scene camera as stored in the scene index.
// Apertures and focal length share the same unit.
type Camera struct {
	Path               string
	Transform          mgl64.Mat4 // camera to world
	Projection         Projection
	FocalLength        float64
	HorizontalAperture float64
	VerticalAperture   float64
	Near               float64
	Far                float64
	ClipPlanes         []mgl64.Vec4 // camera space plane equations, points with dot >= 0 are kept
}

// LookAt creates a perspective camera at eye looking at target with the given
// vertical field of view (degrees) and aspect ratio
func LookAt(path string, eye, target, up mgl64.Vec3, vfov, aspect float64) *Camera {
	const focalLength = 50.0
	verticalAperture := 2 * focalLength * math.Tan(mgl64.DegToRad(vfov)/2)

	return &Camera{
		Path:               path,
		Transform:          mgl64.LookAtV(eye, target, up).Inv(),
		Projection:         Perspective,
		FocalLength:        focalLength,
		HorizontalAperture: verticalAperture * aspect,
		VerticalAperture:   verticalAperture,
		Near:               0.1,
		Far:                1000,
	}
}

// DefaultCamera returns the camera used when no scene camera is bound:
// at the origin looking down -Z with a 50 degree field of view.
func DefaultCamera() *Camera {
	return LookAt("", mgl64.Vec3{0, 0, 0}, mgl64.Vec3{0, 0, -1}, mgl64.Vec3{0, 1, 0}, 50, 1)
}

// Aspect returns the aperture aspect ratio
func (c *Camera) Aspect() float64 {
	if c.VerticalAperture == 0 {
		return 1
	}
	return c.HorizontalAperture / c.VerticalAperture
}

// ComputeProjectionMatrix returns the camera space to clip space projection
// mapping the full aperture to [-1, 1]
func (c *Camera) ComputeProjectionMatrix() mgl64.Mat4 {
	near, far := c.Near, c.Far
	if near <= 0 {
		near = 0.1
	}
	if far <= near {
		far = near * 10000
	}

	halfW := c.HorizontalAperture / 2
	halfH := c.VerticalAperture / 2
	if c.Projection == Orthographic {
		return mgl64.Ortho(-halfW, halfW, -halfH, halfH, near, far)
	}

	focal := c.FocalLength
	if focal <= 0 {
		focal = 50
	}
	scale := near / focal
	return mgl64.Frustum(-halfW*scale, halfW*scale, -halfH*scale, halfH*scale, near, far)
}

// Index looks scene cameras up by path
type Index interface {
	Camera(path string) (*Camera, bool)
}

// Registry is an Index that notifies subscribers when a camera changes.
// Subscribers run on the goroutine calling Set.
type Registry struct {
	mu          sync.RWMutex
	cameras     map[string]*Camera
	subscribers []func(path string)
}

// NewRegistry creates an empty camera registry
func NewRegistry() *Registry {
	return &Registry{cameras: make(map[string]*Camera)}
}

// Set inserts or replaces a camera and notifies subscribers
func (r *Registry) Set(cam *Camera) {
	copied := *cam
	copied.ClipPlanes = append([]mgl64.Vec4(nil), cam.ClipPlanes...)

	r.mu.Lock()
	r.cameras[cam.Path] = &copied
	subscribers := append([]func(string){}, r.subscribers...)
	r.mu.Unlock()

	for _, fn := range subscribers {
		fn(cam.Path)
	}
}

// Subscribe registers fn to be called with the path of every changed camera
func (r *Registry) Subscribe(fn func(path string)) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.subscribers = append(r.subscribers, fn)
}

// Camera implements Index. The returned camera is a copy.
func (r *Registry) Camera(path string) (*Camera, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cam, ok := r.cameras[path]
	if !ok {
		return nil, false
	}
	copied := *cam
	return &copied, true
}
