package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.Handler = new(InstrumentedHandler)

// InstrumentedHandler wraps a worker.Handler with a span and
// a duration histogram for every Event handled.
type InstrumentedHandler struct {
	name    worker.Name
	handler worker.Handler

	tracer         trace.Tracer
	handleDuration metric.Int64Histogram
}

// NewInstrumentedHandler returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around the Handler of the named Worker.
func NewInstrumentedHandler(name worker.Name, handler worker.Handler, options ...Option) (*InstrumentedHandler, error) {
	cfg := newConfig(options...)

	histogram, err := cfg.durationHistogram(
		"tracker.worker.handle.duration.milliseconds",
		"Duration in milliseconds of worker.Handler.Handle operations performed.",
	)
	if err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedHandler: %w", err)
	}

	return &InstrumentedHandler{
		name:           name,
		handler:        handler,
		tracer:         cfg.tracer(),
		handleDuration: histogram,
	}, nil
}

// Handle calls the wrapped worker.Handler.Handle method and records metrics and traces around it.
func (ih *InstrumentedHandler) Handle(ctx context.Context, evt event.Persisted) error {
	ctx, span := ih.tracer.Start(ctx, "worker.Handler.Handle", trace.WithAttributes(
		WorkerNameAttribute.String(string(ih.name)),
		EventIDAttribute.String(evt.ID.String()),
		EventTypeAttribute.String(evt.Message.Name()),
		EventStreamIDAttribute.String(evt.StreamID.String()),
		EventSequenceAttribute.Int64(int64(evt.SequenceNumber)),
	))
	start := time.Now()

	err := ih.handler.Handle(ctx, evt)

	ih.handleDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
		WorkerNameAttribute.String(string(ih.name)),
		EventTypeAttribute.String(evt.Message.Name()),
		ErrorAttribute.Bool(err != nil),
	))

	endSpan(span, err)

	return err
}
