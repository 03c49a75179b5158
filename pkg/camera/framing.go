package camera

import (
	"image"
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// Range2f is an axis aligned rectangle with floating point corners
type Range2f struct {
	Min mgl64.Vec2
	Max mgl64.Vec2
}

// Size returns the width and height of the range
func (r Range2f) Size() mgl64.Vec2 {
	return r.Max.Sub(r.Min)
}

// IsEmpty reports whether the range has no area
func (r Range2f) IsEmpty() bool {
	return r.Max[0] <= r.Min[0] || r.Max[1] <= r.Min[1]
}

// Aspect returns width over height, or 0 for an empty range
func (r Range2f) Aspect() float64 {
	if r.IsEmpty() {
		return 0
	}
	size := r.Size()
	return size[0] / size[1]
}

// Framing maps the rendered image onto the client's display region.
// The display window is the region the camera frustum maps to; the data window
// is the pixel region actually rendered. Both use a y-down pixel space.
type Framing struct {
	DisplayWindow    Range2f
	DataWindow       image.Rectangle
	PixelAspectRatio float64
}

// NewFraming creates a framing whose display and data windows both cover rect
func NewFraming(rect image.Rectangle) Framing {
	return Framing{
		DisplayWindow: Range2f{
			Min: mgl64.Vec2{float64(rect.Min.X), float64(rect.Min.Y)},
			Max: mgl64.Vec2{float64(rect.Max.X), float64(rect.Max.Y)},
		},
		DataWindow:       rect,
		PixelAspectRatio: 1,
	}
}

// IsValid reports whether the framing can be used. The zero Framing is invalid.
func (f Framing) IsValid() bool {
	return !f.DataWindow.Empty() && !f.DisplayWindow.IsEmpty() && f.PixelAspectRatio != 0
}

// Aspect returns the display aspect ratio including the pixel aspect ratio
func (f Framing) Aspect() float64 {
	return f.DisplayWindow.Aspect() * f.PixelAspectRatio
}

// Viewport is the legacy OpenGL style viewport: lower left corner and size,
// with y pointing up.
type Viewport struct {
	X, Y          float64
	Width, Height float64
}

// FramingFromViewport converts a y-up viewport into a y-down framing for an
// output of the given resolution.
func FramingFromViewport(vp Viewport, resolution image.Point) Framing {
	x := int(math.Round(vp.X))
	y := resolution.Y - int(math.Round(vp.Y+vp.Height))
	w := int(math.Round(vp.Width))
	h := int(math.Round(vp.Height))
	return NewFraming(image.Rect(x, y, x+w, y+h))
}
