package opentelemetry

import (
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// Attribute keys used by the instrumentation.
const (
	ErrorAttribute            attribute.Key = "error"
	OperationAttribute        attribute.Key = "operation"
	EventStreamIDAttribute    attribute.Key = "event_stream.id"
	VersionCheckAttribute     attribute.Key = "event_stream.expected_version"
	VersionNewAttribute       attribute.Key = "event_stream.new_version"
	NumEventsAttribute        attribute.Key = "event_store.num_events"
	EventIDAttribute          attribute.Key = "event.id"
	EventTypeAttribute        attribute.Key = "event.type"
	EventSequenceAttribute    attribute.Key = "event.sequence_number"
	AggregateTypeAttribute    attribute.Key = "aggregate.type"
	AggregateIDAttribute      attribute.Key = "aggregate.id"
	AggregateVersionAttribute attribute.Key = "aggregate.version"
	WorkerNameAttribute       attribute.Key = "worker.name"
)

// TraceIDKey is the Metadata key the InstrumentedEventStore uses
// to record the trace that appended an Event.
const TraceIDKey = "Trace-Id"

func endSpan(span trace.Span, err error) {
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}

	span.End()
}
