// Package serde converts values between two representations, such as
// a Domain Event and its persisted Payload.
package serde

// Serializer converts a Src value into its Dst representation.
type Serializer[Src, Dst any] interface {
	Serialize(src Src) (Dst, error)
}

// Deserializer converts a Dst representation back into a Src value.
type Deserializer[Src, Dst any] interface {
	Deserialize(dst Dst) (Src, error)
}

// Serde converts Src values to Dst and back.
type Serde[Src, Dst any] interface {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// SerializerFunc adapts a function into a Serializer.
type SerializerFunc[Src, Dst any] func(src Src) (Dst, error)

// Serialize calls fn.
func (fn SerializerFunc[Src, Dst]) Serialize(src Src) (Dst, error) { return fn(src) }

// DeserializerFunc adapts a function into a Deserializer.
type DeserializerFunc[Src, Dst any] func(dst Dst) (Src, error)

// Deserialize calls fn.
func (fn DeserializerFunc[Src, Dst]) Deserialize(dst Dst) (Src, error) { return fn(dst) }

// Fused is a Serde made of two independent halves.
type Fused[Src, Dst any] struct {
	Serializer[Src, Dst]
	Deserializer[Src, Dst]
}

// Fuse pairs s and d into a Serde.
func Fuse[Src, Dst any](s Serializer[Src, Dst], d Deserializer[Src, Dst]) Fused[Src, Dst] {
	return Fused[Src, Dst]{Serializer: s, Deserializer: d}
}
