// Package opentelemetry provides tracing and metrics decorators for the
// Event Store, Aggregate Repositories and Worker Handlers.
package opentelemetry

import (
	"fmt"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

const instrumentationName = "github.com/get-eventually/tracker/opentelemetry"

// Option customizes the providers used by the instrumented components.
// The global OpenTelemetry providers are used otherwise.
type Option func(*config)

// WithMeterProvider records the duration histograms on provider.
func WithMeterProvider(provider metric.MeterProvider) Option {
	return func(c *config) { c.meters = provider }
}

// WithTracerProvider starts the spans from provider.
func WithTracerProvider(provider trace.TracerProvider) Option {
	return func(c *config) { c.tracers = provider }
}

type config struct {
	meters  metric.MeterProvider
	tracers trace.TracerProvider
}

func newConfig(options ...Option) config {
	cfg := config{
		meters:  otel.GetMeterProvider(),
		tracers: otel.GetTracerProvider(),
	}

	for _, apply := range options {
		apply(&cfg)
	}

	return cfg
}

func (c config) tracer() trace.Tracer {
	return c.tracers.Tracer(instrumentationName)
}

// durationHistogram registers a millisecond histogram on the configured meter.
func (c config) durationHistogram(name, description string) (metric.Int64Histogram, error) {
	h, err := c.meters.Meter(instrumentationName).Int64Histogram(name,
		metric.WithUnit("ms"),
		metric.WithDescription(description),
	)
	if err != nil {
		return nil, fmt.Errorf("opentelemetry: failed to register %s histogram, %w", name, err)
	}

	return h, nil
}
