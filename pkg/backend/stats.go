package backend

import (
	"math"

	"github.com/go-gl/mathgl/mgl64"
)

// RenderStats contains statistics about the rendering process
type RenderStats struct {
	TotalPixels    int     // Total number of pixels rendered
	TotalSamples   int     // Total number of samples taken
	AverageSamples float64 // Average samples per pixel
	MaxSamples     int     // Maximum samples allowed per pixel
	MinSamples     int     // Minimum samples taken per pixel
	MaxSamplesUsed int     // Maximum samples actually used by any pixel
}

// PixelStats tracks sampling statistics for a single pixel
type PixelStats struct {
	ColorAccum       mgl64.Vec3 // RGB accumulator for final result
	AlphaAccum       float64    // Coverage accumulator
	LuminanceAccum   float64    // Luminance accumulator for convergence
	LuminanceSqAccum float64    // Luminance squared for variance
	Depth            float64    // Nearest eye distance seen, +Inf when nothing was hit
	SampleCount      int        // Number of samples taken
}

// AddSample adds a new sample to the pixel statistics. distance is the eye
// distance of the primary hit, +Inf for a miss.
func (ps *PixelStats) AddSample(color mgl64.Vec3, alpha, distance float64) {
	if ps.SampleCount == 0 {
		ps.Depth = math.Inf(1)
	}
	ps.ColorAccum = ps.ColorAccum.Add(color)
	ps.AlphaAccum += alpha
	luminance := luminance(color)
	ps.LuminanceAccum += luminance
	ps.LuminanceSqAccum += luminance * luminance
	ps.Depth = math.Min(ps.Depth, distance)
	ps.SampleCount++
}

// GetColor returns the current average color for this pixel
func (ps *PixelStats) GetColor() mgl64.Vec3 {
	if ps.SampleCount == 0 {
		return mgl64.Vec3{0, 0, 0}
	}
	return ps.ColorAccum.Mul(1.0 / float64(ps.SampleCount))
}

// GetAlpha returns the average coverage of this pixel
func (ps *PixelStats) GetAlpha() float64 {
	if ps.SampleCount == 0 {
		return 0
	}
	return ps.AlphaAccum / float64(ps.SampleCount)
}

// GetDepth returns the nearest eye distance, +Inf when nothing was hit
func (ps *PixelStats) GetDepth() float64 {
	if ps.SampleCount == 0 {
		return math.Inf(1)
	}
	return ps.Depth
}

// Variance returns the variance of the mean luminance estimate
func (ps *PixelStats) Variance() float64 {
	if ps.SampleCount < 2 {
		return math.Inf(1)
	}
	n := float64(ps.SampleCount)
	mean := ps.LuminanceAccum / n
	meanSq := ps.LuminanceSqAccum / n
	return math.Max(0, meanSq-mean*mean) / n
}

func luminance(c mgl64.Vec3) float64 {
	return 0.2126*c[0] + 0.7152*c[1] + 0.0722*c[2]
}
