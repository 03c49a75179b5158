package backend

import (
	"context"
	"fmt"
	"image"
	"time"

	"github.com/df07/go-progressive-renderpass/pkg/core"
	"github.com/df07/go-progressive-renderpass/pkg/framebuffer"
)

// Progress describes the state of the current or last render
type Progress struct {
	Pass        int
	TotalPasses int
	Stats       RenderStats
	Done        bool // every pixel reached its sample budget or converged
}

// viewJob is the per view state of a render
type viewJob struct {
	id         RenderViewID
	desc       RenderViewDesc
	width      int
	height     int
	rays       *rayGenerator
	camera     CameraParams
	tiles      []*Tile
	pixelStats [][]PixelStats
}

// renderJob renders a snapshot of the backend state in progressive passes.
// It never reads the session's mutable state, so a Handle may be used while
// it runs.
type renderJob struct {
	config     Config
	scene      Scene
	integrator IntegratorDesc
	options    Options
	views      []*viewJob
	logger     core.Logger
	onPass     func(Progress)
}

func newViewJob(id RenderViewID, desc RenderViewDesc, camera CameraParams, options Options, tileSize int) *viewJob {
	resolution := desc.Resolution
	if resolution.X <= 0 || resolution.Y <= 0 {
		resolution = options.Resolution
	}
	if resolution.X <= 0 || resolution.Y <= 0 {
		resolution = camera.Resolution
	}
	resolution.X = max(resolution.X, 1)
	resolution.Y = max(resolution.Y, 1)

	pixelStats := make([][]PixelStats, resolution.Y)
	for y := range pixelStats {
		pixelStats[y] = make([]PixelStats, resolution.X)
	}

	view := &viewJob{
		id:         id,
		desc:       desc,
		width:      resolution.X,
		height:     resolution.Y,
		rays:       newRayGenerator(camera, resolution),
		camera:     camera,
		tiles:      NewTileGrid(resolution.X, resolution.Y, tileSize),
		pixelStats: pixelStats,
	}
	if fb := desc.Framebuffer; fb != nil {
		fb.Resize(view.width, view.height)
		fb.SetProjection(view.rays.projection())
	}
	return view
}

func (v *viewJob) size() image.Point {
	return image.Point{X: v.width, Y: v.height}
}

// getSamplesForPass calculates the target total samples for a given pass
func (j *renderJob) getSamplesForPass(passNumber int) int {
	maxSamples := j.maxSamples()

	// Special case: if only 1 pass, use all samples
	if j.config.MaxPasses <= 1 {
		return maxSamples
	}

	initial := min(max(j.config.InitialSamples, 1), maxSamples)
	if passNumber == 1 {
		return initial
	}

	// Divide remaining samples evenly across remaining passes
	remainingSamples := maxSamples - initial
	remainingPasses := j.config.MaxPasses - 1
	samplesPerPass := remainingSamples / remainingPasses

	// For the final pass, use all remaining samples
	if passNumber >= j.config.MaxPasses {
		return maxSamples
	}
	return initial + (passNumber-1)*samplesPerPass
}

func (j *renderJob) maxSamples() int {
	return max(j.options.MaxSamples, 1)
}

func (j *renderJob) totalPasses() int {
	return max(j.config.MaxPasses, 1)
}

// Run renders passes until every pixel is done, the final pass completes or
// ctx is cancelled
func (j *renderJob) Run(ctx context.Context) (Progress, error) {
	numTiles := 0
	for _, view := range j.views {
		numTiles += len(view.tiles)
	}

	pool := NewWorkerPool(j.config.NumWorkers, numTiles, j.renderTile)
	pool.Start(ctx)
	defer pool.Stop()

	j.logger.Debugf("Starting progressive rendering of %d views with %s (%d passes, %d workers)\n",
		len(j.views), j.integrator.Name, j.totalPasses(), pool.GetNumWorkers())

	var progress Progress
	for pass := 1; pass <= j.totalPasses(); pass++ {
		// Check for cancellation before starting this pass
		if err := ctx.Err(); err != nil {
			j.logger.Debugf("Rendering cancelled before pass %d\n", pass)
			return progress, err
		}

		startTime := time.Now()
		targetSamples := j.getSamplesForPass(pass)

		taskID := 0
		for _, view := range j.views {
			for _, tile := range view.tiles {
				pool.SubmitTask(TileTask{Tile: tile, View: view, TargetSamples: targetSamples, TaskID: taskID})
				taskID++
			}
		}

		var passErr error
		for i := 0; i < taskID; i++ {
			result, ok := pool.GetResult()
			if !ok {
				return progress, fmt.Errorf("worker pool closed unexpectedly")
			}
			if result.Error != nil && passErr == nil {
				passErr = result.Error
			}
		}
		if passErr != nil {
			return progress, passErr
		}

		progress = Progress{Pass: pass, TotalPasses: j.totalPasses()}
		progress.Stats, progress.Done = j.collectStats(targetSamples)
		for _, view := range j.views {
			j.storeFramebuffer(view)
		}

		j.logger.Debugf("Pass %d completed in %v (actual: %.1f samples/pixel)\n",
			pass, time.Since(startTime), progress.Stats.AverageSamples)

		if progress.Done || pass == j.totalPasses() {
			progress.Done = true
			if j.onPass != nil {
				j.onPass(progress)
			}
			break
		}
		if j.onPass != nil {
			j.onPass(progress)
		}
	}
	return progress, nil
}

// renderTile takes samples for every pixel of the tile until it reaches the
// pass target or its variance drops below the pixel variance threshold
func (j *renderJob) renderTile(ctx context.Context, task TileTask) (RenderStats, error) {
	view := task.View
	bounds := task.Tile.Bounds
	tc := &TraceContext{Random: task.Tile.Random, Clipped: view.rays.Clipped}

	stats := RenderStats{
		TotalPixels: bounds.Dx() * bounds.Dy(),
		MaxSamples:  task.TargetSamples,
		MinSamples:  task.TargetSamples,
	}

	for y := bounds.Min.Y; y < bounds.Max.Y; y++ {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		for x := bounds.Min.X; x < bounds.Max.X; x++ {
			ps := &view.pixelStats[y][x]
			before := ps.SampleCount
			for ps.SampleCount < task.TargetSamples && !j.converged(ps) {
				ray := view.rays.Ray(x, y, tc.Random)
				sample := j.scene.Trace(ray, j.integrator, tc)
				distance := infinity
				if sample.Hit {
					distance = view.rays.EyeDistance(sample.Position)
				}
				ps.AddSample(sample.Color, sample.Alpha, distance)
			}

			used := ps.SampleCount - before
			stats.TotalSamples += used
			stats.MinSamples = min(stats.MinSamples, used)
			stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, used)
		}
	}

	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
	return stats, nil
}

// converged reports whether adaptive sampling can stop for a pixel
func (j *renderJob) converged(ps *PixelStats) bool {
	if j.options.PixelVariance <= 0 {
		return false
	}
	// Calculate minimum samples as percentage of max samples, but ensure at least 2 samples
	minSamples := max(2, int(float64(j.maxSamples())*j.config.AdaptiveMinSamples))
	if ps.SampleCount < minSamples {
		return false
	}
	return ps.Variance() < j.options.PixelVariance
}

// collectStats computes image wide statistics and whether every pixel is done
func (j *renderJob) collectStats(targetSamples int) (RenderStats, bool) {
	stats := RenderStats{
		MaxSamples: targetSamples,
		MinSamples: j.maxSamples(),
	}
	done := true
	for _, view := range j.views {
		for y := range view.pixelStats {
			for x := range view.pixelStats[y] {
				ps := &view.pixelStats[y][x]
				stats.TotalPixels++
				stats.TotalSamples += ps.SampleCount
				stats.MinSamples = min(stats.MinSamples, ps.SampleCount)
				stats.MaxSamplesUsed = max(stats.MaxSamplesUsed, ps.SampleCount)
				if ps.SampleCount < j.maxSamples() && !j.converged(ps) {
					done = false
				}
			}
		}
	}
	if stats.TotalPixels > 0 {
		stats.AverageSamples = float64(stats.TotalSamples) / float64(stats.TotalPixels)
	}
	return stats, done
}

// storeFramebuffer writes the view's pixels into its framebuffer
func (j *renderJob) storeFramebuffer(view *viewJob) {
	fb := view.desc.Framebuffer
	if fb == nil {
		return
	}
	fb.Store(func(frame *framebuffer.Frame) {
		view.writeFrame(frame)
	})
}

// writeFrame writes the well known AOVs of the view into frame. Channels
// with other names keep their clear value.
func (v *viewJob) writeFrame(frame *framebuffer.Frame) {
	colorAov, hasColor := frame.Aov(AovColor)
	depthAov, hasDepth := frame.Aov(AovDepth)
	countAov, hasCount := frame.Aov(AovSampleCount)
	alphaAov, hasAlpha := frame.Aov(AovAlpha)

	for y := 0; y < v.height && y < frame.Height; y++ {
		for x := 0; x < v.width && x < frame.Width; x++ {
			ps := &v.pixelStats[y][x]
			if ps.SampleCount == 0 {
				continue
			}
			if hasColor {
				c := ps.GetColor()
				frame.SetPixel(colorAov, x, y, c[0], c[1], c[2], ps.GetAlpha())
			}
			if hasDepth {
				frame.SetDepth(depthAov, x, y, ps.GetDepth())
			}
			if hasCount {
				frame.SetPixel(countAov, x, y, float64(ps.SampleCount))
			}
			if hasAlpha {
				frame.SetPixel(alphaAov, x, y, ps.GetAlpha())
			}
		}
	}
}

// AOVs written by the progressive backend
const (
	AovColor       = "color"
	AovAlpha       = "a"
	AovDepth       = "depth"
	AovSampleCount = "sampleCount"
)
