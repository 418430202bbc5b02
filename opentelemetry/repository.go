package opentelemetry

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/get-eventually/tracker/aggregate"
)

// InstrumentedRepository traces the Find and Save calls of an aggregate.Repository,
// and records their duration.
type InstrumentedRepository[I aggregate.ID, T aggregate.Root[I]] struct {
	aggregateType string
	repository    aggregate.Repository[I, T]

	tracer       trace.Tracer
	findDuration metric.Int64Histogram
	saveDuration metric.Int64Histogram
}

// NewInstrumentedRepository wraps repository, reporting typ.Name
// as the Aggregate Type attribute of spans and histograms.
func NewInstrumentedRepository[I aggregate.ID, T aggregate.Root[I]](
	typ aggregate.Type[I, T],
	repository aggregate.Repository[I, T],
	options ...Option,
) (*InstrumentedRepository[I, T], error) {
	cfg := newConfig(options...)

	ir := &InstrumentedRepository[I, T]{
		aggregateType: typ.Name,
		repository:    repository,
		tracer:        cfg.tracer(),
	}

	var err error
	if ir.findDuration, err = cfg.durationHistogram(
		"tracker.repository.find.duration.milliseconds",
		"Duration in milliseconds of aggregate.Repository.Find operations performed.",
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedRepository: %w", err)
	}

	if ir.saveDuration, err = cfg.durationHistogram(
		"tracker.repository.save.duration.milliseconds",
		"Duration in milliseconds of aggregate.Repository.Save operations performed.",
	); err != nil {
		return nil, fmt.Errorf("opentelemetry.InstrumentedRepository: %w", err)
	}

	return ir, nil
}

func (ir *InstrumentedRepository[I, T]) start(
	ctx context.Context,
	operation string,
	histogram metric.Int64Histogram,
	spanAttributes ...attribute.KeyValue,
) (context.Context, func(error)) {
	typeAttribute := AggregateTypeAttribute.String(ir.aggregateType)

	ctx, span := ir.tracer.Start(ctx, operation, trace.WithAttributes(append(spanAttributes, typeAttribute)...))
	start := time.Now()

	return ctx, func(err error) {
		histogram.Record(ctx, time.Since(start).Milliseconds(), metric.WithAttributes(
			typeAttribute,
			ErrorAttribute.Bool(err != nil),
		))

		endSpan(span, err)
	}
}

// Find implements aggregate.Repository.
func (ir *InstrumentedRepository[I, T]) Find(ctx context.Context, id I) (T, bool, error) {
	ctx, end := ir.start(ctx, "aggregate.Repository.Find", ir.findDuration,
		AggregateIDAttribute.String(id.String()),
	)

	root, ok, err := ir.repository.Find(ctx, id)
	end(err)

	return root, ok, err
}

// Save implements aggregate.Repository.
func (ir *InstrumentedRepository[I, T]) Save(ctx context.Context, root T) error {
	ctx, end := ir.start(ctx, "aggregate.Repository.Save", ir.saveDuration,
		AggregateIDAttribute.String(root.AggregateID().String()),
		AggregateVersionAttribute.Int64(int64(root.Version())),
	)

	err := ir.repository.Save(ctx, root)
	end(err)

	return err
}
