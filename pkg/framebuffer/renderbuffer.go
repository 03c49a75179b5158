package framebuffer

import (
	"image"
	"image/color"
	"math"
	"sync"
)

// RenderBuffer is a client visible output buffer that a render pass blits
// into. It is safe for concurrent use.
type RenderBuffer struct {
	mu        sync.RWMutex
	id        string
	width     int
	height    int
	format    Format
	data      []byte
	converged bool
}

// NewRenderBuffer creates an empty render buffer with the given identifier
func NewRenderBuffer(id string) *RenderBuffer {
	return &RenderBuffer{id: id}
}

// ID returns the identifier used to look the buffer up in an Index
func (rb *RenderBuffer) ID() string {
	return rb.id
}

// Allocate sizes the buffer and clears its contents
func (rb *RenderBuffer) Allocate(width, height int, format Format) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	rb.width = width
	rb.height = height
	rb.format = format
	rb.data = make([]byte, width*height*format.PixelSize())
	rb.converged = false
}

// Width returns the allocated width
func (rb *RenderBuffer) Width() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.width
}

// Height returns the allocated height
func (rb *RenderBuffer) Height() int {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.height
}

// Format returns the allocated pixel format
func (rb *RenderBuffer) Format() Format {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.format
}

// IsConverged reports the convergence state forwarded by the last blit
func (rb *RenderBuffer) IsConverged() bool {
	rb.mu.RLock()
	defer rb.mu.RUnlock()
	return rb.converged
}

// SetConverged records the convergence state of the render feeding this buffer
func (rb *RenderBuffer) SetConverged(converged bool) {
	rb.mu.Lock()
	defer rb.mu.Unlock()
	rb.converged = converged
}

// Data returns a copy of the raw pixel bytes
func (rb *RenderBuffer) Data() []byte {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	data := make([]byte, len(rb.data))
	copy(data, rb.data)
	return data
}

// Blit copies a width x height image of the given format into the buffer.
// Matching formats and sizes copy the bytes directly; otherwise each
// destination pixel takes the nearest source pixel, converted per component.
func (rb *RenderBuffer) Blit(format Format, width, height int, data []byte) {
	rb.mu.Lock()
	defer rb.mu.Unlock()

	if rb.format == FormatInvalid || rb.width == 0 || rb.height == 0 {
		return
	}
	if width <= 0 || height <= 0 || len(data) < width*height*format.PixelSize() {
		return
	}

	if rb.format == format && rb.width == width && rb.height == height {
		copy(rb.data, data)
		return
	}

	var values [4]float64
	for y := 0; y < rb.height; y++ {
		srcY := y * height / rb.height
		for x := 0; x < rb.width; x++ {
			srcX := x * width / rb.width
			convertPixel(data, format, srcY*width+srcX, &values)
			dst := y*rb.width + x
			for c := 0; c < rb.format.Components(); c++ {
				writeComponent(rb.data, rb.format, dst, c, values[c])
			}
		}
	}
}

// convertPixel expands pixel p of data into four components. Single channel
// formats are replicated into rgb, and missing alpha is opaque.
func convertPixel(data []byte, format Format, p int, values *[4]float64) {
	switch format.Components() {
	case 1:
		v := readComponent(data, format, p, 0)
		*values = [4]float64{v, v, v, 1}
	case 3:
		for c := 0; c < 3; c++ {
			values[c] = readComponent(data, format, p, c)
		}
		values[3] = 1
	default:
		for c := 0; c < 4; c++ {
			values[c] = readComponent(data, format, p, c)
		}
	}
}

// Image converts the buffer into a displayable image. Colour formats are
// gamma corrected (gamma 2.0) and clamped; single channel formats are
// normalised against their maximum value.
func (rb *RenderBuffer) Image() *image.RGBA {
	rb.mu.RLock()
	defer rb.mu.RUnlock()

	img := image.NewRGBA(image.Rect(0, 0, rb.width, rb.height))
	if rb.format == FormatInvalid {
		return img
	}

	scale := 1.0
	if rb.format.Components() == 1 {
		maxValue := 0.0
		for p := 0; p < rb.width*rb.height; p++ {
			maxValue = math.Max(maxValue, readComponent(rb.data, rb.format, p, 0))
		}
		if maxValue > 0 {
			scale = 1.0 / maxValue
		}
	}

	var values [4]float64
	for y := 0; y < rb.height; y++ {
		for x := 0; x < rb.width; x++ {
			convertPixel(rb.data, rb.format, y*rb.width+x, &values)
			if rb.format.Components() == 1 {
				v := values[0] * scale
				img.SetRGBA(x, y, color.RGBA{R: toByte(v), G: toByte(v), B: toByte(v), A: 255})
				continue
			}
			if rb.format == FormatUNorm8Vec4 {
				img.SetRGBA(x, y, color.RGBA{R: toByte(values[0]), G: toByte(values[1]), B: toByte(values[2]), A: toByte(values[3])})
				continue
			}
			img.SetRGBA(x, y, color.RGBA{
				R: toByte(math.Sqrt(math.Max(0, values[0]))),
				G: toByte(math.Sqrt(math.Max(0, values[1]))),
				B: toByte(math.Sqrt(math.Max(0, values[2]))),
				A: 255,
			})
		}
	}
	return img
}

func toByte(v float64) uint8 {
	return uint8(255 * math.Max(0, math.Min(1, v)))
}
