package serde

import "fmt"

// Chained converts Src to Dst going through an intermediate Mid representation.
type Chained[Src, Mid, Dst any] struct {
	inner Serde[Src, Mid]
	outer Serde[Mid, Dst]
}

// Chain returns a Serde applying inner, then outer, when serializing,
// and the other way around when deserializing.
func Chain[Src, Mid, Dst any](inner Serde[Src, Mid], outer Serde[Mid, Dst]) Chained[Src, Mid, Dst] {
	return Chained[Src, Mid, Dst]{inner: inner, outer: outer}
}

// Serialize implements Serializer.
func (c Chained[Src, Mid, Dst]) Serialize(src Src) (dst Dst, err error) {
	mid, err := c.inner.Serialize(src)
	if err != nil {
		return dst, fmt.Errorf("serde.Chained: inner serializer failed, %w", err)
	}

	if dst, err = c.outer.Serialize(mid); err != nil {
		return dst, fmt.Errorf("serde.Chained: outer serializer failed, %w", err)
	}

	return dst, nil
}

// Deserialize implements Deserializer.
func (c Chained[Src, Mid, Dst]) Deserialize(dst Dst) (src Src, err error) {
	mid, err := c.outer.Deserialize(dst)
	if err != nil {
		return src, fmt.Errorf("serde.Chained: outer deserializer failed, %w", err)
	}

	if src, err = c.inner.Deserialize(mid); err != nil {
		return src, fmt.Errorf("serde.Chained: inner deserializer failed, %w", err)
	}

	return src, nil
}
