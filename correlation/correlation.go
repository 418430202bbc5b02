// Package correlation records which Events caused which, by adding
// correlation and causation ids to the Metadata of appended Events.
//
// You can read more about events correlation here:
// https://blog.arkency.com/correlation-id-and-causation-id-in-evented-systems/
package correlation

import (
	"context"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
	"github.com/get-eventually/tracker/worker"
)

// Metadata keys set on correlated Events.
const (
	CorrelationIDKey = "Correlation-Id"
	CausationIDKey   = "Causation-Id"
)

type (
	correlationCtxKey struct{}
	causationCtxKey   struct{}
)

// WithCorrelationID returns a context carrying the correlation id.
func WithCorrelationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, correlationCtxKey{}, id)
}

// WithCausationID returns a context carrying the causation id.
func WithCausationID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, causationCtxKey{}, id)
}

func fromContext(ctx context.Context, key any) (string, bool) {
	id, ok := ctx.Value(key).(string)
	return id, ok && id != ""
}

// IDs returns the correlation and causation ids of the Metadata, if any.
func IDs(metadata message.Metadata) (correlationID, causationID string, ok bool) {
	correlationID, ok = metadata[CorrelationIDKey]
	if !ok {
		return "", "", false
	}

	causationID, ok = metadata[CausationIDKey]

	return correlationID, causationID, ok
}

var _ event.Appender = Appender{}

// Appender is an event.Appender adding correlation and causation ids
// to the Metadata of the Events before appending them.
//
// The ids are taken from the context. An Append outside of a correlated
// context starts a new correlation, caused by its first Event.
type Appender struct {
	event.Appender
}

// Append implements the event.Appender interface.
func (a Appender) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Event,
) (version.Version, error) {
	if len(events) == 0 {
		return a.Appender.Append(ctx, id, expected, events...)
	}

	causeID := events[0].ID.String()

	correlationID, ok := fromContext(ctx, correlationCtxKey{})
	if !ok {
		correlationID = causeID
	}

	causationID, ok := fromContext(ctx, causationCtxKey{})
	if !ok {
		causationID = causeID
	}

	correlated := make([]event.Event, len(events))

	for i, evt := range events {
		evt.Metadata = evt.Metadata.Clone().
			With(CorrelationIDKey, correlationID).
			With(CausationIDKey, causationID)

		correlated[i] = evt
	}

	return a.Appender.Append(ctx, id, expected, correlated...)
}

// Handler wraps a worker.Handler so that the Events appended while handling
// an Event are caused by it, and share its correlation id.
func Handler(handler worker.Handler) worker.Handler {
	return worker.HandlerFunc(func(ctx context.Context, evt event.Persisted) error {
		correlationID, _, ok := IDs(evt.Metadata)
		if !ok {
			correlationID = evt.ID.String()
		}

		ctx = WithCorrelationID(ctx, correlationID)
		ctx = WithCausationID(ctx, evt.ID.String())

		return handler.Handle(ctx, evt)
	})
}
