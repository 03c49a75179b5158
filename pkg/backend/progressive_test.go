package backend

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"math/rand"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/go-gl/mathgl/mgl64"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
)

func newTestBackend(scene Scene) *Progressive {
	config := DefaultConfig()
	config.TileSize = 8
	config.NumWorkers = 2
	config.MaxPasses = 3
	if scene == nil {
		scene = NewDefaultScene()
	}
	return NewProgressive(scene, config, core.NewDiscardLogger())
}

func colorFramebuffer() *framebuffer.FrameBuffer {
	return framebuffer.New([]framebuffer.AovDesc{
		{Name: AovColor, Format: framebuffer.FormatFloat32Vec4},
		{Name: AovDepth, Format: framebuffer.FormatFloat32},
		{Name: AovSampleCount, Format: framebuffer.FormatInt32},
	})
}

func setupView(t *testing.T, p *Progressive, fb *framebuffer.FrameBuffer, integrator string) RenderViewID {
	t.Helper()
	h := p.Acquire()
	require.NoError(t, h.SetOptions(Options{MaxSamples: 4}))
	id, err := h.CreateIntegrator(IntegratorDesc{Name: integrator})
	require.NoError(t, err)
	require.NoError(t, p.SetActiveIntegrator(id))

	view, err := h.CreateRenderView(RenderViewDesc{
		Resolution:  image.Point{X: 16, Y: 12},
		Displays:    []Display{{Name: "fb", Driver: DriverFramebuffer, Aovs: []string{AovColor}}},
		Framebuffer: fb,
	})
	require.NoError(t, err)
	return view
}

func TestProgressive_AcquireBumpsSceneVersion(t *testing.T) {
	p := newTestBackend(nil)
	assert.Equal(t, int64(0), p.SceneVersion())

	p.Acquire()
	assert.Equal(t, int64(1), p.SceneVersion())
	assert.False(t, p.IsSampling())
}

func TestProgressive_StartRenderFillsFramebuffer(t *testing.T) {
	p := newTestBackend(nil)
	fb := colorFramebuffer()
	setupView(t, p, fb, IntegratorDirectLighting)

	require.NoError(t, p.StartRender())
	require.Eventually(t, func() bool { return !p.IsSampling() }, 10*time.Second, 5*time.Millisecond)

	width, height := fb.Size()
	assert.Equal(t, 16, width)
	assert.Equal(t, 12, height)
	assert.True(t, fb.HasNewData())

	progress := p.Progress()
	assert.True(t, progress.Done)
	assert.Equal(t, 4, progress.Stats.MaxSamplesUsed)

	rb := framebuffer.NewRenderBuffer("color")
	rb.Allocate(16, 12, framebuffer.FormatFloat32Vec4)
	fb.Blit([]framebuffer.AovBinding{{Name: AovColor, Buffer: rb}}, nil, true, core.NewDiscardLogger())
	img := rb.Image()
	nonBlack := 0
	for y := 0; y < 12; y++ {
		for x := 0; x < 16; x++ {
			c := img.RGBAAt(x, y)
			if c.R > 0 || c.G > 0 || c.B > 0 {
				nonBlack++
			}
		}
	}
	assert.Equal(t, 16*12, nonBlack, "sky and spheres are lit everywhere")
}

func TestProgressive_AcquireStopsSampling(t *testing.T) {
	p := newTestBackend(nil)
	setupView(t, p, colorFramebuffer(), IntegratorPathTracer)

	h := p.Acquire()
	require.NoError(t, h.SetOptions(Options{MaxSamples: 1 << 20}))
	require.NoError(t, p.StartRender())
	assert.True(t, p.IsSampling())

	version := p.SceneVersion()
	p.Acquire()
	assert.False(t, p.IsSampling(), "Acquire returns only once sampling stopped")
	assert.Equal(t, version+1, p.SceneVersion())
}

func TestProgressive_UnknownIntegrator(t *testing.T) {
	p := newTestBackend(nil)
	h := p.Acquire()

	_, err := h.CreateIntegrator(IntegratorDesc{Name: "noSuchIntegrator"})
	assert.ErrorIs(t, err, ErrUnknownIntegrator)

	err = p.SetActiveIntegrator(IntegratorID(42))
	assert.ErrorIs(t, err, ErrUnknownIntegrator)

	id, err := h.CreateIntegrator(IntegratorDesc{Name: IntegratorVisualizer})
	require.NoError(t, err)
	assert.ErrorIs(t, h.ModifyIntegrator(id, IntegratorDesc{Name: "bogus"}), ErrUnknownIntegrator)
	assert.NoError(t, h.ModifyIntegrator(id, IntegratorDesc{Name: IntegratorPathTracer}))
}

func TestProgressive_RenderViewValidation(t *testing.T) {
	p := newTestBackend(nil)
	h := p.Acquire()

	_, err := h.CreateRenderView(RenderViewDesc{Displays: []Display{{Name: "fb", Driver: DriverFramebuffer}}})
	assert.Error(t, err, "framebuffer displays need a framebuffer")

	_, err = h.CreateRenderView(RenderViewDesc{Displays: []Display{{Name: "x", Driver: "exr", Path: "x.exr"}}})
	assert.Error(t, err)

	assert.ErrorIs(t, h.ModifyRenderView(RenderViewID(7), image.Point{X: 1, Y: 1}), ErrUnknownRenderView)
	assert.ErrorIs(t, p.RenderOnce([]RenderViewID{7}, Options{MaxSamples: 1}), ErrUnknownRenderView)
}

func TestProgressive_RenderOnceWritesPNG(t *testing.T) {
	p := newTestBackend(nil)
	path := filepath.Join(t.TempDir(), "out", "beauty.png")

	h := p.Acquire()
	view, err := h.CreateRenderView(RenderViewDesc{
		Resolution: image.Point{X: 8, Y: 6},
		Displays:   []Display{{Name: "beauty", Driver: DriverPNG, Path: path, Aovs: []string{AovColor}}},
	})
	require.NoError(t, err)

	require.NoError(t, p.RenderOnce([]RenderViewID{view}, Options{MaxSamples: 2}))
	assert.False(t, p.IsSampling())

	file, err := os.Open(path)
	require.NoError(t, err)
	defer file.Close()
	img, err := png.Decode(file)
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 8, 6), img.Bounds())
}

func TestProgressive_RenderOnceHonoursForwardedOptions(t *testing.T) {
	p := newTestBackend(nil)
	h := p.Acquire()
	view, err := h.CreateRenderView(RenderViewDesc{Resolution: image.Point{X: 8, Y: 6}})
	require.NoError(t, err)

	opts := Options{
		MaxSamples: 1,
		Extra: map[string]any{
			OptionRenderMode:   RenderModeBatch,
			"Hider:MaxSamples": "3",
		},
	}
	require.NoError(t, p.RenderOnce([]RenderViewID{view}, opts))

	progress := p.Progress()
	assert.Equal(t, 1, progress.Pass)
	assert.Equal(t, 1, progress.TotalPasses, "batch renders take a single pass")
	assert.Equal(t, 3, progress.Stats.MaxSamplesUsed, "sample budget comes from the forwarded option")
	assert.Equal(t, 3, progress.Stats.MinSamples)
}

type failingCloser struct {
	bytes.Buffer
	closed bool
}

func (f *failingCloser) Close() error {
	f.closed = true
	return errors.New("disk full")
}

func TestEncodePNG_ReportsCloseError(t *testing.T) {
	w := &failingCloser{}
	err := encodePNG(w, image.NewRGBA(image.Rect(0, 0, 2, 2)))
	assert.EqualError(t, err, "disk full")
	assert.True(t, w.closed)
	assert.NotZero(t, w.Len(), "the image was encoded before closing")
}

func TestProgressive_PauseAndResume(t *testing.T) {
	p := newTestBackend(nil)
	setupView(t, p, colorFramebuffer(), IntegratorPathTracer)
	h := p.Acquire()
	require.NoError(t, h.SetOptions(Options{MaxSamples: 1 << 20}))
	require.NoError(t, p.StartRender())

	p.RequestPause()
	assert.True(t, p.IsPauseRequested())
	assert.False(t, p.IsSampling())

	version := p.SceneVersion()
	p.Resume()
	assert.False(t, p.IsPauseRequested())
	assert.Equal(t, version+1, p.SceneVersion(), "resuming restarts the render")

	p.Resume()
	assert.Equal(t, version+1, p.SceneVersion(), "resuming twice is a no-op")
}

func TestProgressive_Close(t *testing.T) {
	p := newTestBackend(nil)
	p.Close()
	assert.ErrorIs(t, p.StartRender(), ErrClosed)
	assert.ErrorIs(t, p.RenderOnce(nil, Options{}), ErrClosed)
}

func TestProgressive_EditBumpsVersion(t *testing.T) {
	scene := NewDefaultScene()
	p := newTestBackend(scene)
	version := p.SceneVersion()

	p.Edit(func() { scene.Ground = false })
	assert.False(t, scene.Ground)
	assert.Equal(t, version+1, p.SceneVersion())
}

func TestRenderJob_GetSamplesForPass(t *testing.T) {
	job := &renderJob{
		config:  Config{InitialSamples: 1, MaxPasses: 7},
		options: Options{MaxSamples: 50},
	}

	expected := []int{1, 9, 17, 25, 33, 41, 50}
	for pass, want := range expected {
		assert.Equal(t, want, job.getSamplesForPass(pass+1), "pass %d", pass+1)
	}

	job.config.MaxPasses = 1
	assert.Equal(t, 50, job.getSamplesForPass(1))
}

func TestRenderJob_AdaptiveSamplingStopsOnFlatPixels(t *testing.T) {
	// The visualizer renders misses as flat black, so every pixel converges
	// after the minimum sample count
	scene := &SphereScene{}
	p := newTestBackend(scene)
	fb := colorFramebuffer()

	h := p.Acquire()
	require.NoError(t, h.SetOptions(Options{MaxSamples: 64, PixelVariance: 0.01}))
	id, err := h.CreateIntegrator(IntegratorDesc{Name: IntegratorVisualizer})
	require.NoError(t, err)
	require.NoError(t, p.SetActiveIntegrator(id))
	_, err = h.CreateRenderView(RenderViewDesc{Resolution: image.Point{X: 8, Y: 8}, Framebuffer: fb})
	require.NoError(t, err)

	require.NoError(t, p.StartRender())
	require.Eventually(t, func() bool { return !p.IsSampling() }, 10*time.Second, 5*time.Millisecond)

	progress := p.Progress()
	assert.True(t, progress.Done)
	assert.Equal(t, 2, progress.Pass, "converged before the final pass")
	assert.InDelta(t, 6.0, progress.Stats.AverageSamples, 1e-9)
}

func TestRayGenerator_CenterRay(t *testing.T) {
	params := CameraParams{
		CameraToWorld: mgl64.Translate3D(0, 1, 5),
		Projection:    mgl64.Perspective(mgl64.DegToRad(60), 1, 0.1, 100),
		ScreenWindow:  FullScreenWindow,
	}
	gen := newRayGenerator(params, image.Point{X: 101, Y: 101})

	// A random source that always returns the pixel centre
	ray := gen.Ray(50, 50, rand.New(constSource(0.5)))
	assert.InDelta(t, 0.0, ray.Origin[0], 1e-9)
	assert.InDelta(t, 1.0, ray.Origin[1], 1e-9)
	assert.InDelta(t, 5.0, ray.Origin[2], 1e-9)
	assert.InDelta(t, -1.0, ray.Direction[2], 1e-9)

	assert.InDelta(t, 3.0, gen.EyeDistance(mgl64.Vec3{0, 1, 2}), 1e-9)
}

func TestRayGenerator_ClipPlanes(t *testing.T) {
	params := defaultCameraParams(image.Point{X: 1, Y: 1})
	// Keep points nearer than 4 units: -z - 4 <= 0  =>  z + 4 >= 0
	params.ClipPlanes = []mgl64.Vec4{{0, 0, 1, 4}}
	gen := newRayGenerator(params, image.Point{X: 1, Y: 1})

	assert.False(t, gen.Clipped(mgl64.Vec3{0, 0, -3}))
	assert.True(t, gen.Clipped(mgl64.Vec3{0, 0, -5}))

	scene := &SphereScene{Spheres: []Sphere{{Center: mgl64.Vec3{0, 0, -6}, Radius: 1}}}
	tc := &TraceContext{Random: rand.New(rand.NewSource(1)), Clipped: gen.Clipped}
	sample := scene.Trace(Ray{Direction: mgl64.Vec3{0, 0, -1}}, IntegratorDesc{Name: IntegratorVisualizer}, tc)
	assert.False(t, sample.Hit, "the sphere lies beyond the clip plane")
}

func TestSphereScene_Visualizer(t *testing.T) {
	scene := &SphereScene{Spheres: []Sphere{{Center: mgl64.Vec3{0, 0, -3}, Radius: 1}}}
	tc := &TraceContext{Random: rand.New(rand.NewSource(1))}

	sample := scene.Trace(Ray{Direction: mgl64.Vec3{0, 0, -1}}, IntegratorDesc{Name: IntegratorVisualizer}, tc)
	require.True(t, sample.Hit)
	assert.Equal(t, 1.0, sample.Alpha)
	assert.InDelta(t, -2.0, sample.Position[2], 1e-9)
	// Normal (0, 0, 1) maps to (0.5, 0.5, 1)
	assert.InDelta(t, 1.0, sample.Color[2], 1e-9)
	assert.InDelta(t, 0.5, sample.Color[0], 1e-9)
}

func TestWorkerPool_CancelledTasksReportError(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	rendered := 0
	pool := NewWorkerPool(1, 2, func(ctx context.Context, task TileTask) (RenderStats, error) {
		rendered++
		return RenderStats{}, nil
	})
	pool.Start(ctx)
	pool.SubmitTask(TileTask{TaskID: 0})
	pool.SubmitTask(TileTask{TaskID: 1})

	for i := 0; i < 2; i++ {
		result, ok := pool.GetResult()
		require.True(t, ok)
		assert.ErrorIs(t, result.Error, context.Canceled)
	}
	pool.Stop()
	assert.Equal(t, 0, rendered)
}

// constSource is a rand.Source returning the same value from Float64
type constSource float64

func (s constSource) Int63() int64 { return int64(float64(s) * (1 << 63)) }
func (s constSource) Seed(int64)   {}
