package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/version"
)

var _ event.Store = new(InstrumentedEventStore)

// InstrumentedEventStore is a wrapper type over an event.Store
// instance to provide instrumentation, in the form of metrics and traces
// using OpenTelemetry.
//
// Appended Events carry the current trace id in their Metadata, under TraceIDKey.
//
// Use NewInstrumentedEventStore for constructing a new instance of this type.
type InstrumentedEventStore struct {
	eventStore event.Store

	tracer         trace.Tracer
	appendDuration metric.Int64Histogram
	readDuration   metric.Int64Histogram
}

// NewInstrumentedEventStore returns a wrapper type to provide OpenTelemetry
// instrumentation (metrics and traces) around an event.Store.
//
// An error is returned if metrics could not be registered.
func NewInstrumentedEventStore(eventStore event.Store, options ...Option) (*InstrumentedEventStore, error) {
	cfg := newConfig(options...)

	ies := &InstrumentedEventStore{
		eventStore: eventStore,
		tracer:     cfg.tracer(),
	}

	var err error

	if ies.appendDuration, err = cfg.durationHistogram(
		"tracker.event_store.append.duration.milliseconds",
		"Duration in milliseconds of event.Store.Append operations performed.",
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedEventStore: %w", err)
	}

	if ies.readDuration, err = cfg.durationHistogram(
		"tracker.event_store.read.duration.milliseconds",
		"Duration in milliseconds of event.Store read operations performed.",
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedEventStore: %w", err)
	}

	return ies, nil
}

func (ies *InstrumentedEventStore) startRead(
	ctx context.Context,
	operation string,
	attributes ...attribute.KeyValue,
) (context.Context, func(error)) {
	ctx, span := ies.tracer.Start(ctx, operation, trace.WithAttributes(attributes...))
	start := time.Now()

	return ctx, func(err error) {
		ies.readDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			OperationAttribute.String(operation),
			ErrorAttribute.Bool(err != nil),
		))

		endSpan(span, err)
	}
}

// Append calls the wrapped event.Store.Append method and records metrics and traces around it.
func (ies *InstrumentedEventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Event,
) (newVersion version.Version, err error) {
	ctx, span := ies.tracer.Start(ctx, "event.Store.Append", trace.WithAttributes(
		EventStreamIDAttribute.String(id.String()),
		VersionCheckAttribute.Int64(int64(version.Expected(expected))),
		NumEventsAttribute.Int(len(events)),
	))
	start := time.Now()

	defer func() {
		ies.appendDuration.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			ErrorAttribute.Bool(err != nil),
		))

		if err == nil {
			span.SetAttributes(VersionNewAttribute.Int64(int64(newVersion)))
		}

		endSpan(span, err)
	}()

	if traceID := span.SpanContext().TraceID(); traceID.IsValid() {
		traced := make([]event.Event, len(events))

		for i, evt := range events {
			evt.Metadata = evt.Metadata.Clone().With(TraceIDKey, traceID.String())
			traced[i] = evt
		}

		events = traced
	}

	newVersion, err = ies.eventStore.Append(ctx, id, expected, events...)

	return newVersion, err
}

// FindEventStream calls the wrapped event.Store.FindEventStream method
// and records metrics and traces around it.
func (ies *InstrumentedEventStore) FindEventStream(ctx context.Context, id event.StreamID) (event.Stream, bool, error) {
	ctx, end := ies.startRead(ctx, "event.Store.FindEventStream", EventStreamIDAttribute.String(id.String()))

	stream, ok, err := ies.eventStore.FindEventStream(ctx, id)
	end(err)

	return stream, ok, err
}

// FindEvent calls the wrapped event.Store.FindEvent method and records metrics and traces around it.
func (ies *InstrumentedEventStore) FindEvent(ctx context.Context, id event.ID) (event.Event, bool, error) {
	ctx, end := ies.startRead(ctx, "event.Store.FindEvent", EventIDAttribute.String(id.String()))

	evt, ok, err := ies.eventStore.FindEvent(ctx, id)
	end(err)

	return evt, ok, err
}

// FindEventIDsAfter calls the wrapped event.Store.FindEventIDsAfter method
// and records metrics and traces around it.
func (ies *InstrumentedEventStore) FindEventIDsAfter(ctx context.Context, cursor event.ID) ([]event.ID, error) {
	ctx, end := ies.startRead(ctx, "event.Store.FindEventIDsAfter", EventIDAttribute.String(cursor.String()))

	ids, err := ies.eventStore.FindEventIDsAfter(ctx, cursor)
	end(err)

	return ids, err
}
