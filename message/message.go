// Package message exposes the Message type shared by Domain Events and
// Commands, and the Metadata that can travel alongside them.
package message

// Message is a named payload.
//
// The name is used to route a Message to its concrete type; for Domain Events
// it is also the persisted event type, so it must be a valid event.Type.
type Message interface {
	Name() string
}

// Metadata holds supporting information attached to a Message
// that is not part of its Domain meaning (e.g. correlation ids).
type Metadata map[string]string

// With returns the Metadata extended with the key/value pair,
// allocating a new map if the receiver is nil.
func (m Metadata) With(key, value string) Metadata {
	if m == nil {
		m = make(Metadata)
	}

	m[key] = value

	return m
}

// Merge copies the other Metadata into the current one.
func (m Metadata) Merge(other Metadata) Metadata {
	if m == nil {
		return other
	}

	for k, v := range other {
		m[k] = v
	}

	return m
}

// Clone returns a copy of the Metadata; nil and empty maps both clone to nil.
func (m Metadata) Clone() Metadata {
	if len(m) == 0 {
		return nil
	}

	clone := make(Metadata, len(m))
	for k, v := range m {
		clone[k] = v
	}

	return clone
}

// Envelope bundles a Message with optional Metadata.
type Envelope[T Message] struct {
	Message  T
	Metadata Metadata
}
