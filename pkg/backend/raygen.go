package backend

import (
	"image"
	"math"
	"math/rand"

	"github.com/go-gl/mathgl/mgl64"
)

var infinity = math.Inf(1)

// Ray is a world space ray with a normalised direction
type Ray struct {
	Origin    mgl64.Vec3
	Direction mgl64.Vec3
}

// At returns the point at distance t along the ray
func (r Ray) At(t float64) mgl64.Vec3 {
	return r.Origin.Add(r.Direction.Mul(t))
}

// rayGenerator turns pixel coordinates into camera rays. Pixels are laid out
// y-down over the camera's screen window.
type rayGenerator struct {
	proj          mgl64.Mat4
	cameraToWorld mgl64.Mat4
	worldToCamera mgl64.Mat4
	invProjection mgl64.Mat4
	orthographic  bool
	window        ScreenWindow
	clipPlanes    []mgl64.Vec4
	width, height int
}

// defaultCameraParams is used when no camera has been pushed: at the origin
// looking down -Z.
func defaultCameraParams(resolution image.Point) CameraParams {
	aspect := 1.0
	if resolution.X > 0 && resolution.Y > 0 {
		aspect = float64(resolution.X) / float64(resolution.Y)
	}
	return CameraParams{
		CameraToWorld: mgl64.Ident4(),
		Projection:    mgl64.Perspective(mgl64.DegToRad(50), aspect, 0.1, 1000),
		ScreenWindow:  FullScreenWindow,
	}
}

func newRayGenerator(params CameraParams, resolution image.Point) *rayGenerator {
	if params.Projection == (mgl64.Mat4{}) {
		params = defaultCameraParams(resolution)
	}
	window := params.ScreenWindow
	if window == (ScreenWindow{}) {
		window = FullScreenWindow
	}
	return &rayGenerator{
		proj:          params.Projection,
		cameraToWorld: params.CameraToWorld,
		worldToCamera: params.CameraToWorld.Inv(),
		invProjection: params.Projection.Inv(),
		orthographic:  params.Orthographic,
		window:        window,
		clipPlanes:    params.ClipPlanes,
		width:         resolution.X,
		height:        resolution.Y,
	}
}

func (g *rayGenerator) projection() mgl64.Mat4 {
	return g.proj
}

// unproject maps a screen window position at NDC depth z to camera space
func (g *rayGenerator) unproject(sx, sy, z float64) mgl64.Vec3 {
	p := g.invProjection.Mul4x1(mgl64.Vec4{sx, sy, z, 1})
	if p.W() == 0 {
		return p.Vec3()
	}
	return p.Vec3().Mul(1 / p.W())
}

// Ray returns a jittered ray through pixel (x, y)
func (g *rayGenerator) Ray(x, y int, random *rand.Rand) Ray {
	u := (float64(x) + random.Float64()) / float64(g.width)
	v := (float64(y) + random.Float64()) / float64(g.height)
	sx := g.window.Min[0] + u*(g.window.Max[0]-g.window.Min[0])
	sy := g.window.Max[1] - v*(g.window.Max[1]-g.window.Min[1])

	near := g.unproject(sx, sy, -1)
	var origin, dir mgl64.Vec3
	if g.orthographic {
		origin = near
		dir = mgl64.Vec3{0, 0, -1}
	} else {
		dir = near.Normalize()
	}

	worldOrigin := g.cameraToWorld.Mul4x1(origin.Vec4(1)).Vec3()
	worldDir := g.cameraToWorld.Mul4x1(dir.Vec4(0)).Vec3().Normalize()
	return Ray{Origin: worldOrigin, Direction: worldDir}
}

// EyeDistance returns the distance of a world space point in front of the
// camera along the view axis
func (g *rayGenerator) EyeDistance(p mgl64.Vec3) float64 {
	return -g.worldToCamera.Mul4x1(p.Vec4(1)).Z()
}

// Clipped reports whether a world space point lies outside any clip plane
func (g *rayGenerator) Clipped(p mgl64.Vec3) bool {
	if len(g.clipPlanes) == 0 {
		return false
	}
	cp := g.worldToCamera.Mul4x1(p.Vec4(1))
	for _, plane := range g.clipPlanes {
		if plane.Dot(cp) < 0 {
			return true
		}
	}
	return false
}
