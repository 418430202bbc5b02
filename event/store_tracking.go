package event

import (
	"context"
	"sync"

	"github.com/get-eventually/tracker/version"
)

// TrackingStore is an Appender wrapper keeping track of the Events
// successfully appended through it.
//
// Useful for tests assertion.
type TrackingStore struct {
	Appender

	mx       sync.RWMutex
	recorded []Event
}

// NewTrackingStore wraps an Appender to capture the Events appended to it.
func NewTrackingStore(appender Appender) *TrackingStore {
	return &TrackingStore{Appender: appender}
}

// Recorded returns the Events appended so far, in append order.
//
// The Events do not carry the Sequence Number assigned by the wrapped store.
func (es *TrackingStore) Recorded() []Event {
	es.mx.RLock()
	defer es.mx.RUnlock()

	return append([]Event(nil), es.recorded...)
}

// Append forwards the call to the wrapped Appender and records
// the Events if the operation succeeds.
func (es *TrackingStore) Append(
	ctx context.Context,
	id StreamID,
	expected version.Check,
	events ...Event,
) (version.Version, error) {
	es.mx.Lock()
	defer es.mx.Unlock()

	v, err := es.Appender.Append(ctx, id, expected, events...)
	if err != nil {
		return v, err
	}

	es.recorded = append(es.recorded, events...)

	return v, nil
}
