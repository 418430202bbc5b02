// Package query contains the Query Handler abstractions of the read side,
// answering requests from the read models kept by the Workers.
package query

import (
	"context"

	"github.com/get-eventually/tracker/message"
)

// Query is a request for information, named in the imperative present
// tense, such as "GetUser".
type Query message.Message

// Envelope carries a Query and its optional Metadata.
type Envelope[T Query] message.Envelope[T]

// ToEnvelope wraps the Query in an Envelope with no Metadata.
func ToEnvelope[T Query](q T) Envelope[T] {
	return Envelope[T]{
		Message:  q,
		Metadata: nil,
	}
}

// Handler answers a specific kind of Query with a result of type R.
type Handler[T Query, R any] interface {
	Handle(ctx context.Context, query Envelope[T]) (R, error)
}

// HandlerFunc is a functional type that implements the Handler interface.
type HandlerFunc[T Query, R any] func(ctx context.Context, query Envelope[T]) (R, error)

// Handle calls the function.
func (fn HandlerFunc[T, R]) Handle(ctx context.Context, query Envelope[T]) (R, error) {
	return fn(ctx, query)
}
