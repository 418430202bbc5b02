package event

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/version"
)

// All the errors returned by Event Store implementations,
// other than version.ConflictError.
var (
	ErrEventNotFound  = errors.New("event: event not found")
	ErrNoEvents       = errors.New("event: no events to append")
	ErrInvalidCheck   = errors.New("event: invalid version check, exact versions start from 1")
	ErrInvalidVersion = errors.New("event: event versions must continue the expected stream version")
	ErrMissingID      = errors.New("event: event id is missing")
	ErrIndexKeyTaken  = errors.New("event: index key already registered to another stream")
)

// Appender is the Event Store component appending new Events to an Event Stream.
type Appender interface {
	// Append commits all the Events atomically at the end of the Event Stream,
	// if its current version matches the expected one, and returns the new
	// version of the Event Stream.
	//
	// A version.ConflictError (possibly wrapped) is returned when the
	// check fails, in which case nothing is written.
	Append(ctx context.Context, id StreamID, expected version.Check, events ...Event) (version.Version, error)
}

// StreamFinder is the Event Store component reading whole Event Streams.
type StreamFinder interface {
	// FindEventStream returns all the Events of the Event Stream in version
	// order, or false if the Event Stream has never been created.
	FindEventStream(ctx context.Context, id StreamID) (Stream, bool, error)
}

// Log is the Event Store component exposing the global order of Events,
// used by Workers to poll for new Events.
type Log interface {
	// FindEvent returns the Event with the specified id, or false if missing.
	FindEvent(ctx context.Context, id ID) (Event, bool, error)

	// FindEventIDsAfter returns the ids of the Events appended after
	// the cursor, in ascending global order. A zero cursor returns
	// all the Event ids; an unknown one fails with ErrEventNotFound.
	FindEventIDsAfter(ctx context.Context, cursor ID) ([]ID, error)
}

// Store is the full Event Store interface.
type Store interface {
	Appender
	StreamFinder
	Log
}

// FusedStore can be used to replace parts of a Store implementation,
// e.g. to decorate only the Appender.
type FusedStore struct {
	Appender
	StreamFinder
	Log
}

// ValidateAppend checks the arguments of an Append call, independently
// from the current state of the Event Stream. All Store implementations
// call it before touching the storage.
func ValidateAppend(id StreamID, expected version.Check, events []Event) error {
	if len(events) == 0 {
		return ErrNoEvents
	}

	if v, ok := expected.(version.CheckExact); ok && v == 0 {
		return ErrInvalidCheck
	}

	from := version.Expected(expected)

	for i, evt := range events {
		if evt.ID.IsZero() {
			return ErrMissingID
		}

		if evt.StreamID != id {
			return fmt.Errorf("%w: event %s", ErrForeignStreamEvent, evt.ID)
		}

		if want := from + version.Version(i) + 1; evt.Version != want {
			return fmt.Errorf("%w: event %s, want %d, got %d", ErrInvalidVersion, evt.ID, want, evt.Version)
		}

		if err := evt.Type.Validate(); err != nil {
			return err
		}

		if err := evt.Payload.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// IndexKey addresses a business id of an Aggregate type.
type IndexKey struct {
	AggregateType string
	AggregateID   string
}

func (k IndexKey) String() string { return k.AggregateType + ":" + k.AggregateID }

// Index maps Aggregate business ids to the Event Stream holding their history,
// for Aggregates whose id is not the StreamID itself.
type Index interface {
	LookupStreamID(ctx context.Context, key IndexKey) (StreamID, bool, error)

	// RegisterStreamID is idempotent for the same StreamID, and fails with
	// ErrIndexKeyTaken if the key already points to another one.
	RegisterStreamID(ctx context.Context, key IndexKey, id StreamID) error
}
