package framebuffer

import (
	"math"
	"sync"

	"github.com/go-gl/mathgl/mgl64"

	"github.com/df07/go-progressive-renderpass/pkg/core"
)

// AovDesc describes one channel of the framebuffer
type AovDesc struct {
	Name       string
	Format     Format
	ClearValue [4]float64
}

// AovBuffer holds the raw pixels of one channel
type AovBuffer struct {
	Desc   AovDesc
	Pixels []byte
}

// FrameBuffer is the intermediate pixel store the render backend writes into
// and the render pass blits out of. Every access to the pixels, the new data
// flag and the dimensions happens under mu.
type FrameBuffer struct {
	mu      sync.Mutex
	width   int
	height  int
	aovs    []AovBuffer
	newData bool
	proj    mgl64.Mat4
}

// New creates a framebuffer with one channel per descriptor. The buffer has
// no pixels until the writer calls Resize.
func New(descs []AovDesc) *FrameBuffer {
	aovs := make([]AovBuffer, len(descs))
	for i, desc := range descs {
		aovs[i] = AovBuffer{Desc: desc}
	}
	return &FrameBuffer{aovs: aovs}
}

// DescsFromBindings builds channel descriptors for a list of AOV bindings
func DescsFromBindings(bindings []AovBinding) []AovDesc {
	descs := make([]AovDesc, len(bindings))
	for i, b := range bindings {
		format := b.Format
		if format == FormatInvalid {
			format = DefaultFormat(b.Name)
		}
		descs[i] = AovDesc{Name: b.Name, Format: format, ClearValue: b.ClearValue}
	}
	return descs
}

// MatchesDescs reports whether the framebuffer channels equal descs, in order
func (fb *FrameBuffer) MatchesDescs(descs []AovDesc) bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if len(descs) != len(fb.aovs) {
		return false
	}
	for i, desc := range descs {
		if fb.aovs[i].Desc != desc {
			return false
		}
	}
	return true
}

// Size returns the current width and height
func (fb *FrameBuffer) Size() (int, int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.width, fb.height
}

// Resize reallocates every channel for the new dimensions and fills them with
// their clear values. Resizing to the current size is a no-op.
func (fb *FrameBuffer) Resize(width, height int) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	if width == fb.width && height == fb.height {
		return
	}
	fb.width = width
	fb.height = height
	for i := range fb.aovs {
		aov := &fb.aovs[i]
		aov.Pixels = make([]byte, width*height*aov.Desc.Format.PixelSize())
		clearChannel(aov)
	}
	fb.newData = false
}

func clearChannel(aov *AovBuffer) {
	format := aov.Desc.Format
	pixelSize := format.PixelSize()
	if pixelSize == 0 {
		return
	}
	pixels := len(aov.Pixels) / pixelSize
	for p := 0; p < pixels; p++ {
		for c := 0; c < format.Components(); c++ {
			writeComponent(aov.Pixels, format, p, c, aov.Desc.ClearValue[c])
		}
	}
}

// SetProjection sets the camera projection used to map eye distances to depth
func (fb *FrameBuffer) SetProjection(proj mgl64.Mat4) {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	fb.proj = proj
}

// HasNewData reports whether the writer stored pixels since the last blit
func (fb *FrameBuffer) HasNewData() bool {
	fb.mu.Lock()
	defer fb.mu.Unlock()
	return fb.newData
}

// Store gives fn exclusive access to the pixel storage and flags the buffer as
// holding new data once fn returns.
func (fb *FrameBuffer) Store(fn func(frame *Frame)) {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	frame := &Frame{
		Width:  fb.width,
		Height: fb.height,
		Aovs:   fb.aovs,
		Proj:   fb.proj,
	}
	fn(frame)
	fb.newData = true
}

// Blit copies the channels into the bound output buffers. Channel i is copied
// into the output of bindings[i] when the writer stored new data since the
// last blit; every resolved output receives the convergence state. Outputs
// that cannot be resolved are skipped with a warning. Returns the number of
// channels copied.
func (fb *FrameBuffer) Blit(bindings []AovBinding, index Index, converged bool, logger core.Logger) int {
	fb.mu.Lock()
	defer fb.mu.Unlock()

	copied := 0
	for i, binding := range bindings {
		rb := Resolve(binding, index)
		if rb == nil {
			logger.Warnf("no render buffer for AOV %q (id %q), skipping\n", binding.Name, binding.BufferID)
			continue
		}

		if fb.newData {
			if i < len(fb.aovs) {
				aov := &fb.aovs[i]
				rb.Blit(aov.Desc.Format, fb.width, fb.height, aov.Pixels)
				copied++
			} else {
				logger.Warnf("AOV %q has no framebuffer channel, skipping\n", binding.Name)
			}
		}

		// Forward convergence state to the render buffers
		rb.SetConverged(converged)
	}

	fb.newData = false
	return copied
}

// Frame is the writer's view of the framebuffer during Store
type Frame struct {
	Width  int
	Height int
	Aovs   []AovBuffer
	Proj   mgl64.Mat4
}

// Aov returns the index of the channel with the given name
func (f *Frame) Aov(name string) (int, bool) {
	for i, aov := range f.Aovs {
		if aov.Desc.Name == name {
			return i, true
		}
	}
	return -1, false
}

// SetPixel writes values into the components of pixel (x, y) of channel aov.
// Extra values are ignored; missing components keep their current value.
func (f *Frame) SetPixel(aov, x, y int, values ...float64) {
	if aov < 0 || aov >= len(f.Aovs) || x < 0 || y < 0 || x >= f.Width || y >= f.Height {
		return
	}
	buf := &f.Aovs[aov]
	format := buf.Desc.Format
	p := y*f.Width + x
	for c := 0; c < format.Components() && c < len(values); c++ {
		writeComponent(buf.Pixels, format, p, c, values[c])
	}
}

// SetDepth writes the depth of a hit at the given eye-space distance. When a
// projection is set the value is stored as window depth in [0, 1]; misses
// (infinite distance) store the far plane.
func (f *Frame) SetDepth(aov, x, y int, distance float64) {
	if math.IsInf(distance, 1) || math.IsNaN(distance) {
		f.SetPixel(aov, x, y, 1.0)
		return
	}
	if f.Proj == (mgl64.Mat4{}) {
		f.SetPixel(aov, x, y, distance)
		return
	}
	clip := f.Proj.Mul4x1(mgl64.Vec4{0, 0, -distance, 1})
	if clip.W() == 0 {
		f.SetPixel(aov, x, y, 1.0)
		return
	}
	ndc := clip.Z() / clip.W()
	f.SetPixel(aov, x, y, mgl64.Clamp(ndc*0.5+0.5, 0, 1))
}
