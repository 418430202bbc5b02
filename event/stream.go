package event

import (
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/version"
)

// All the errors returned when building an invalid Stream.
var (
	ErrEmptyStream         = errors.New("event: stream is empty")
	ErrForeignStreamEvent  = errors.New("event: event belongs to another stream")
	ErrNonContiguousStream = errors.New("event: stream versions are not contiguous from 1")
)

// Stream is the full, ordered history of one Aggregate instance.
//
// A Stream always holds the Events with versions 1 to Version(), in order:
// empty Streams do not exist, a Stream is created by its first Event.
type Stream struct {
	ID     StreamID
	Events []Event
}

// NewStream validates the Events belong to the Stream and form a gapless
// sequence of versions starting from 1.
func NewStream(id StreamID, events []Event) (Stream, error) {
	if len(events) == 0 {
		return Stream{}, fmt.Errorf("event.NewStream: %s, %w", id, ErrEmptyStream)
	}

	for i, evt := range events {
		if evt.StreamID != id {
			return Stream{}, fmt.Errorf("event.NewStream: %s at version %d, %w", evt.ID, evt.Version, ErrForeignStreamEvent)
		}

		if evt.Version != version.Version(i+1) {
			return Stream{}, fmt.Errorf(
				"event.NewStream: expected version %d, got %d, %w",
				i+1, evt.Version, ErrNonContiguousStream,
			)
		}
	}

	return Stream{ID: id, Events: events}, nil
}

// Version returns the version of the last Event in the Stream.
func (s Stream) Version() version.Version {
	return version.Version(len(s.Events))
}
