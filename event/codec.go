package event

import (
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/serde"
)

// ErrUnknownType is returned by a Codec for Domain Events it cannot handle.
var ErrUnknownType = errors.New("event: unknown type")

// Codec maps Domain Events to the (Type, Payload) pair stored in an Event,
// and back.
type Codec interface {
	Encode(msg message.Message) (Type, Payload, error)
	Decode(typ Type, payload Payload) (message.Message, error)
}

var _ Codec = JSONCodec{}

// JSONCodec is a Codec serializing Domain Events as JSON, using
// the Message name as the Event Type.
type JSONCodec struct {
	serdes map[Type]serde.Serde[message.Message, Payload]
}

// NewJSONCodec returns a JSONCodec for the Domain Events created by the factories.
//
// Every factory must return a non-nil pointer, whose Name is a valid Type
// not already registered by another factory.
func NewJSONCodec(factories ...func() message.Message) (JSONCodec, error) {
	codec := JSONCodec{serdes: make(map[Type]serde.Serde[message.Message, Payload], len(factories))}

	for _, factory := range factories {
		typ, err := NewType(factory().Name())
		if err != nil {
			return JSONCodec{}, fmt.Errorf("event.NewJSONCodec: invalid event name, %w", err)
		}

		if _, ok := codec.serdes[typ]; ok {
			return JSONCodec{}, fmt.Errorf("event.NewJSONCodec: type '%s' registered twice", typ)
		}

		codec.serdes[typ] = serde.Chain[message.Message, []byte, Payload](
			serde.NewJSON(factory),
			payloadSerde,
		)
	}

	return codec, nil
}

// MustNewJSONCodec is like NewJSONCodec but panics on error.
// Use it for package-level Codec variables.
func MustNewJSONCodec(factories ...func() message.Message) JSONCodec {
	codec, err := NewJSONCodec(factories...)
	if err != nil {
		panic(err)
	}

	return codec
}

// Encode implements the event.Codec interface.
func (c JSONCodec) Encode(msg message.Message) (Type, Payload, error) {
	typ := Type(msg.Name())

	s, ok := c.serdes[typ]
	if !ok {
		return "", "", fmt.Errorf("event.JSONCodec: failed to encode '%s', %w", typ, ErrUnknownType)
	}

	payload, err := s.Serialize(msg)
	if err != nil {
		return "", "", fmt.Errorf("event.JSONCodec: failed to encode '%s', %w", typ, err)
	}

	return typ, payload, nil
}

// Decode implements the event.Codec interface.
func (c JSONCodec) Decode(typ Type, payload Payload) (message.Message, error) {
	s, ok := c.serdes[typ]
	if !ok {
		return nil, fmt.Errorf("event.JSONCodec: failed to decode '%s', %w", typ, ErrUnknownType)
	}

	msg, err := s.Deserialize(payload)
	if err != nil {
		return nil, fmt.Errorf("event.JSONCodec: failed to decode '%s', %w", typ, err)
	}

	return msg, nil
}

// Decode turns a stored Event into a Persisted Domain Event using the Codec.
func Decode(codec Codec, evt Event) (Persisted, error) {
	msg, err := codec.Decode(evt.Type, evt.Payload)
	if err != nil {
		return Persisted{}, fmt.Errorf("event.Decode: failed to decode event %s, %w", evt.ID, err)
	}

	return Persisted{
		Envelope: Envelope{
			Message:  msg,
			Metadata: evt.Metadata,
			At:       evt.At,
		},
		ID:             evt.ID,
		StreamID:       evt.StreamID,
		Version:        evt.Version,
		SequenceNumber: evt.SequenceNumber,
	}, nil
}
