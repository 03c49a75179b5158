package server

import (
	"context"
	"fmt"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	otelprom "go.opentelemetry.io/otel/exporters/prometheus"
	sdkmetric "go.opentelemetry.io/otel/sdk/metric"
)

// metricsExporter bridges OpenTelemetry instruments to a Prometheus scrape endpoint
type metricsExporter struct {
	provider *sdkmetric.MeterProvider
	handler  http.Handler
}

// newMetricsExporter creates a meter provider whose instruments are served
// from a private Prometheus registry
func newMetricsExporter() (*metricsExporter, error) {
	registry := prometheus.NewRegistry()
	exporter, err := otelprom.New(otelprom.WithRegisterer(registry))
	if err != nil {
		return nil, fmt.Errorf("failed to create prometheus exporter: %w", err)
	}

	return &metricsExporter{
		provider: sdkmetric.NewMeterProvider(sdkmetric.WithReader(exporter)),
		handler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
	}, nil
}

func (m *metricsExporter) shutdown(ctx context.Context) error {
	return m.provider.Shutdown(ctx)
}
