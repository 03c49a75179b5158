package renderpass

import (
	"context"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

// MeterName is the name of the render pass meter
const MeterName = "github.com/df07/go-progressive-renderpass/renderpass"

// Metrics holds the OpenTelemetry instruments of the render pass. A nil
// *Metrics records nothing.
type Metrics struct {
	halts           metric.Int64Counter
	restarts        metric.Int64Counter
	blitChannels    metric.Int64Counter
	executeDuration metric.Float64Histogram
	converged       metric.Int64Gauge
}

// NewMetrics creates the render pass instruments with the given meter provider.
// If provider is nil, it returns nil (no-op metrics).
func NewMetrics(provider metric.MeterProvider) (*Metrics, error) {
	if provider == nil {
		return nil, nil
	}

	meter := provider.Meter(MeterName)

	halts, err := meter.Int64Counter(
		"renderpass_halts_total",
		metric.WithDescription("Number of times the render was halted to mutate backend state"),
	)
	if err != nil {
		return nil, err
	}

	restarts, err := meter.Int64Counter(
		"renderpass_restarts_total",
		metric.WithDescription("Number of render restarts by reason"),
	)
	if err != nil {
		return nil, err
	}

	blitChannels, err := meter.Int64Counter(
		"renderpass_blit_channels_total",
		metric.WithDescription("Number of AOV channels copied into render buffers"),
	)
	if err != nil {
		return nil, err
	}

	executeDuration, err := meter.Float64Histogram(
		"renderpass_execute_duration_seconds",
		metric.WithDescription("Duration of render pass executions in seconds"),
		metric.WithUnit("s"),
		metric.WithExplicitBucketBoundaries(0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5),
	)
	if err != nil {
		return nil, err
	}

	converged, err := meter.Int64Gauge(
		"renderpass_converged",
		metric.WithDescription("1 when the render has converged at the target integrator"),
	)
	if err != nil {
		return nil, err
	}

	return &Metrics{
		halts:           halts,
		restarts:        restarts,
		blitChannels:    blitChannels,
		executeDuration: executeDuration,
		converged:       converged,
	}, nil
}

// Restart reasons
const (
	reasonSceneChanged = "scene_changed"
	reasonPromotion    = "promotion"
	reasonBatch        = "batch"
)

func (m *Metrics) recordHalt(ctx context.Context) {
	if m == nil {
		return
	}
	m.halts.Add(ctx, 1)
}

func (m *Metrics) recordRestart(ctx context.Context, reason, integrator string) {
	if m == nil {
		return
	}
	m.restarts.Add(ctx, 1, metric.WithAttributes(
		attribute.String("reason", reason),
		attribute.String("integrator", integrator),
	))
}

func (m *Metrics) recordBlit(ctx context.Context, channels int) {
	if m == nil || channels == 0 {
		return
	}
	m.blitChannels.Add(ctx, int64(channels))
}

func (m *Metrics) recordExecute(ctx context.Context, duration time.Duration, converged bool, success bool) {
	if m == nil {
		return
	}
	m.executeDuration.Record(ctx, duration.Seconds(), metric.WithAttributes(attribute.Bool("success", success)))
	value := int64(0)
	if converged {
		value = 1
	}
	m.converged.Record(ctx, value)
}
