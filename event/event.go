// Package event contains the Event Store model: Events, Event Streams,
// the Store interfaces and an in-memory Store implementation.
package event

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/serde"
	"github.com/get-eventually/tracker/version"
)

// MaxPayloadSize is the maximum size in bytes of a single Event Payload.
const MaxPayloadSize = 1_000_000

const maxTypeLength = 64

// All the validation errors for Event fields.
var (
	ErrInvalidType     = errors.New("event: invalid type, must match [a-z0-9_]{1,63}")
	ErrPayloadTooLarge = errors.New("event: payload too large")
	ErrInvalidPayload  = errors.New("event: invalid payload, must be valid json")
)

// Type is the name of the Domain Event variant carried by an Event,
// stored next to the Payload so that the Event Store never has to know
// the shape of Domain Events.
type Type string

// NewType validates and returns a Type.
func NewType(s string) (Type, error) {
	t := Type(s)
	if err := t.Validate(); err != nil {
		return "", err
	}

	return t, nil
}

// Validate returns ErrInvalidType if the Type is empty, too long
// or uses characters outside of [a-z0-9_].
func (t Type) Validate() error {
	if len(t) == 0 || len(t) >= maxTypeLength {
		return fmt.Errorf("%w: '%s'", ErrInvalidType, string(t))
	}

	for _, c := range []byte(t) {
		if (c < 'a' || c > 'z') && (c < '0' || c > '9') && c != '_' {
			return fmt.Errorf("%w: '%s'", ErrInvalidType, string(t))
		}
	}

	return nil
}

// Payload is the JSON serialized form of a Domain Event.
type Payload string

// NewPayload validates the serialized data and returns it as a Payload.
func NewPayload(data []byte) (Payload, error) {
	p := Payload(data)
	if err := p.Validate(); err != nil {
		return "", err
	}

	return p, nil
}

// Validate checks the Payload size and that it holds a single JSON value.
func (p Payload) Validate() error {
	if len(p) > MaxPayloadSize {
		return fmt.Errorf("%w: %d bytes, max %d", ErrPayloadTooLarge, len(p), MaxPayloadSize)
	}

	if !utf8.ValidString(string(p)) || !json.Valid([]byte(p)) {
		return ErrInvalidPayload
	}

	return nil
}

var payloadSerde = serde.Fuse[[]byte, Payload](
	serde.SerializerFunc[[]byte, Payload](NewPayload),
	serde.DeserializerFunc[[]byte, Payload](func(p Payload) ([]byte, error) {
		return []byte(p), nil
	}),
)

// EncodePayload serializes a structured value into a Payload.
func EncodePayload[T any](v T) (Payload, error) {
	data, err := serde.NewJSONSerializer[T]().Serialize(v)
	if err != nil {
		return "", fmt.Errorf("event.EncodePayload: failed to serialize, %w", err)
	}

	return payloadSerde.Serialize(data)
}

// DecodePayload deserializes a Payload into the structured value
// created by the factory.
func DecodePayload[T any](p Payload, factory func() T) (T, error) {
	return serde.Chain[T, []byte, Payload](serde.NewJSON(factory), payloadSerde).Deserialize(p)
}

// NormalizeTime returns the time in UTC, truncated to microseconds:
// the precision every Event Store implementation is able to persist.
func NormalizeTime(t time.Time) time.Time {
	return t.UTC().Truncate(time.Microsecond)
}

// Event is an immutable record of something that happened to
// an Aggregate, as persisted by the Event Store.
type Event struct {
	ID       ID
	Type     Type
	StreamID StreamID
	Version  version.Version
	At       time.Time
	Payload  Payload
	Metadata message.Metadata

	// SequenceNumber is the global position assigned by the Event Store;
	// zero until the Event has been appended.
	SequenceNumber version.SequenceNumber
}

// Envelope carries a Domain Event recorded by an Aggregate Root,
// not yet persisted in the Event Store.
type Envelope struct {
	Message  message.Message
	Metadata message.Metadata
	At       time.Time
}

// ToEnvelope wraps a Domain Event recorded at the given time, with no Metadata.
func ToEnvelope(msg message.Message, at time.Time) Envelope {
	return Envelope{
		Message:  msg,
		Metadata: nil,
		At:       NormalizeTime(at),
	}
}

// Persisted is a Domain Event decoded from an Event read from the Event Store.
type Persisted struct {
	Envelope

	ID             ID
	StreamID       StreamID
	Version        version.Version
	SequenceNumber version.SequenceNumber
}
