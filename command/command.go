// Package command contains the Command types and the Command Handler
// interface used to update Aggregate Roots, together with the
// handler decorators and the scenario test DSL.
package command

import (
	"context"

	"github.com/get-eventually/tracker/message"
)

// Command is a Message representing an action being performed by something
// or somebody.
//
// In order to enforce this concept, it is suggested to name Command types
// using "present tense".
type Command message.Message

// Envelope carries both a Command and some optional Metadata attached to it.
type Envelope[T Command] message.Envelope[T]

// ToEnvelope is a convenience function that wraps the provided Command type
// into a command.Envelope, with no metadata attached to it.
func ToEnvelope[T Command](cmd T) Envelope[T] {
	return Envelope[T]{
		Message:  cmd,
		Metadata: nil,
	}
}

// Handler is the interface that defines a Command Handler,
// a component that receives a specific kind of Command
// and executes the business logic related to that particular Command.
type Handler[T Command] interface {
	Handle(ctx context.Context, cmd Envelope[T]) error
}

// HandlerFunc is a functional type that implements the Handler interface.
// Useful for testing and stateless Handlers.
type HandlerFunc[T Command] func(context.Context, Envelope[T]) error

// Handle handles the provided Command through the functional Handler.
func (fn HandlerFunc[T]) Handle(ctx context.Context, cmd Envelope[T]) error {
	return fn(ctx, cmd)
}
