package serde

import (
	"encoding/json"
	"fmt"
)

// NewJSONSerializer encodes T values with encoding/json.
func NewJSONSerializer[T any]() SerializerFunc[T, []byte] {
	return func(v T) ([]byte, error) {
		data, err := json.Marshal(v)
		if err != nil {
			return nil, fmt.Errorf("serde.JSON: failed to serialize data, %w", err)
		}

		return data, nil
	}
}

// NewJSONDeserializer decodes JSON into the value returned by newValue.
//
// When T is an interface type, newValue must return a non-nil pointer
// wrapped in it, so that the concrete type gets filled.
func NewJSONDeserializer[T any](newValue func() T) DeserializerFunc[T, []byte] {
	return func(data []byte) (T, error) {
		v := newValue()
		if err := json.Unmarshal(data, &v); err != nil {
			var zero T
			return zero, fmt.Errorf("serde.JSON: failed to deserialize data, %w", err)
		}

		return v, nil
	}
}

// NewJSON returns the Serde between T and its JSON encoding.
func NewJSON[T any](newValue func() T) Fused[T, []byte] {
	return Fuse[T, []byte](NewJSONSerializer[T](), NewJSONDeserializer(newValue))
}
