package event

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

// ErrInvalidID is returned when parsing a value that is not a version 4 UUID.
var ErrInvalidID = errors.New("event: invalid id, must be a version 4 uuid")

// ID uniquely identifies an Event across the whole Event Store.
//
// The zero value is not a valid ID and is used to signal the absence of one,
// e.g. a Worker that has not processed any Event yet.
type ID uuid.UUID

// NewID generates a new random ID.
func NewID() ID { return ID(uuid.New()) }

// ParseID parses the string representation of an ID.
func ParseID(s string) (ID, error) {
	u, err := parseUUIDv4(s)
	if err != nil {
		return ID{}, fmt.Errorf("event.ParseID: failed to parse '%s', %w", s, err)
	}

	return ID(u), nil
}

func (id ID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the ID is the zero value.
func (id ID) IsZero() bool { return id == ID{} }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error {
	v, err := ParseID(string(data))
	if err != nil {
		return err
	}

	*id = v

	return nil
}

// StreamID identifies an Event Stream, and so the Aggregate instance
// the Event Stream belongs to. It never changes for the Aggregate lifetime.
type StreamID uuid.UUID

// NewStreamID generates a new random StreamID.
func NewStreamID() StreamID { return StreamID(uuid.New()) }

// ParseStreamID parses the string representation of a StreamID.
func ParseStreamID(s string) (StreamID, error) {
	u, err := parseUUIDv4(s)
	if err != nil {
		return StreamID{}, fmt.Errorf("event.ParseStreamID: failed to parse '%s', %w", s, err)
	}

	return StreamID(u), nil
}

func (id StreamID) String() string { return uuid.UUID(id).String() }

// IsZero reports whether the StreamID is the zero value.
func (id StreamID) IsZero() bool { return id == StreamID{} }

// MarshalText implements encoding.TextMarshaler.
func (id StreamID) MarshalText() ([]byte, error) { return []byte(id.String()), nil }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *StreamID) UnmarshalText(data []byte) error {
	v, err := ParseStreamID(string(data))
	if err != nil {
		return err
	}

	*id = v

	return nil
}

func parseUUIDv4(s string) (uuid.UUID, error) {
	u, err := uuid.Parse(s)
	if err != nil {
		return uuid.Nil, errors.Join(ErrInvalidID, err)
	}

	if u.Version() != 4 { //nolint:mnd // UUID version.
		return uuid.Nil, ErrInvalidID
	}

	return u, nil
}
