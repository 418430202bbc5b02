// Package aggregate contains the Aggregate Root model, the replay of
// Event Streams into Aggregate Roots and the Repository abstraction
// to load and store them.
package aggregate

import (
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

// All the errors returned when recording or replaying Domain Events
// in the wrong order.
//
// ErrRecreateWithNonInitialEvent and ErrApplyWithInitialEvent are
// returned both when recording and replaying, every other replay error
// wraps ErrCorruptedEventStream.
var (
	ErrCorruptedEventStream        = errors.New("aggregate: corrupted event stream")
	ErrRecreateWithNonInitialEvent = errors.New("aggregate: root must be created with an initial event")
	ErrApplyWithInitialEvent       = errors.New("aggregate: initial event applied to an existing root")
	ErrVersionMismatch             = fmt.Errorf("%w: event version does not follow the root version", ErrCorruptedEventStream)
	ErrEmptyEventStream            = fmt.Errorf("%w: no events to replay", ErrCorruptedEventStream)
)

// ID represents an Aggregate ID type.
//
// Aggregate IDs should be able to be marshaled into a string format,
// in order to be looked up in an event.Index or parsed as an event.StreamID.
type ID interface {
	fmt.Stringer
}

// Aggregate is the segregated interface, part of the Aggregate Root interface,
// that describes the left-folding behavior of Domain Events to update the
// Aggregate Root state.
type Aggregate interface {
	// Apply applies the specified Domain Event to the Aggregate Root,
	// by causing a state change in the Aggregate Root instance.
	//
	// Since this method cause a state change, implementors should make sure
	// to use pointer semantics on their Aggregate Root method receivers.
	//
	// Please note, this method should not perform any kind of external request
	// and should be, save for the Aggregate Root state mutation, free of side effects.
	// For this reason, this method does not include a context.Context instance
	// in the input parameters.
	Apply(message.Message) error
}

// InitialEvent marks the Domain Events creating a new Aggregate Root.
type InitialEvent interface {
	message.Message
	InitialEvent()
}

func isInitial(msg message.Message) bool {
	_, ok := msg.(InitialEvent)
	return ok
}

// Root is the interface describing an Aggregate Root instance.
//
// This interface should be implemented by your Aggregate Root types.
// Make sure your Aggregate Root types embed the aggregate.BaseRoot type
// to complete the implementation of this interface.
type Root[I ID] interface {
	Aggregate

	// AggregateID returns the Aggregate Root identifier.
	AggregateID() I

	// StreamID returns the Event Stream holding the Aggregate Root history,
	// or the zero value if the Aggregate Root has not been created.
	StreamID() event.StreamID

	// Version returns the current version of the Aggregate Root.
	Version() version.Version

	// FlushRecordedEvents returns the Domain Events recorded and not
	// stored yet, and clears them from the Aggregate Root.
	FlushRecordedEvents() []event.Envelope

	unflush([]event.Envelope)
	setVersion(version.Version)
	setStreamID(event.StreamID)
	recordThat(Aggregate, ...event.Envelope) error
}

// Create records the initial Domain Event of a new Aggregate Root,
// whose history will be stored in the specified Event Stream.
func Create[I ID](root Root[I], streamID event.StreamID, env event.Envelope) error {
	if root.Version() != 0 {
		return fmt.Errorf("aggregate.Create: root already at version %d, %w", root.Version(), ErrApplyWithInitialEvent)
	}

	if !isInitial(env.Message) {
		return fmt.Errorf("aggregate.Create: '%s', %w", env.Message.Name(), ErrRecreateWithNonInitialEvent)
	}

	if err := root.recordThat(root, env); err != nil {
		return fmt.Errorf("aggregate.Create: %w", err)
	}

	root.setStreamID(streamID)

	return nil
}

// RecordThat records the Domain Events for the specified, existing
// Aggregate Root.
//
// Domain Events are applied in order. If one fails to apply, the error is
// returned and the Domain Events before it stay recorded.
func RecordThat[I ID](root Root[I], envs ...event.Envelope) error {
	if root.Version() == 0 {
		return fmt.Errorf("aggregate.RecordThat: %w", ErrRecreateWithNonInitialEvent)
	}

	for _, env := range envs {
		if isInitial(env.Message) {
			return fmt.Errorf("aggregate.RecordThat: '%s', %w", env.Message.Name(), ErrApplyWithInitialEvent)
		}
	}

	return root.recordThat(root, envs...)
}

// BaseRoot segregates and completes the aggregate.Root interface implementation
// when embedded to a user-defined Aggregate Root type.
//
// BaseRoot provides some common traits, such as tracking the current Aggregate
// Root version and Event Stream, and the recorded-but-uncommitted Domain Events,
// through the aggregate.Create and aggregate.RecordThat functions.
type BaseRoot struct {
	version        version.Version
	streamID       event.StreamID
	recordedEvents []event.Envelope
}

// Version returns the current version of the Aggregate Root instance.
func (br BaseRoot) Version() version.Version { return br.version }

// StreamID returns the Event Stream of the Aggregate Root instance.
func (br BaseRoot) StreamID() event.StreamID { return br.streamID }

// FlushRecordedEvents clears the recorded Domain Events and returns them.
func (br *BaseRoot) FlushRecordedEvents() []event.Envelope {
	flushed := br.recordedEvents
	br.recordedEvents = nil

	return flushed
}

// unflush puts back Domain Events returned by FlushRecordedEvents
// that could not be stored, ahead of any recorded since.
func (br *BaseRoot) unflush(envs []event.Envelope) {
	br.recordedEvents = append(append([]event.Envelope(nil), envs...), br.recordedEvents...)
}

func (br *BaseRoot) setVersion(v version.Version) { br.version = v }

func (br *BaseRoot) setStreamID(id event.StreamID) { br.streamID = id }

func (br *BaseRoot) recordThat(aggregate Aggregate, envs ...event.Envelope) error {
	for _, env := range envs {
		if err := aggregate.Apply(env.Message); err != nil {
			return fmt.Errorf("aggregate: failed to record event '%s', %w", env.Message.Name(), err)
		}

		br.recordedEvents = append(br.recordedEvents, env)
		br.version++
	}

	return nil
}

// RehydrateFromEvents replays the persisted Domain Events of an Event Stream
// on an empty Aggregate Root.
//
// The first Domain Event must be an InitialEvent, and every version must
// follow the previous one.
func RehydrateFromEvents[I ID](root Root[I], events []event.Persisted) error {
	if len(events) == 0 {
		return fmt.Errorf("aggregate.RehydrateFromEvents: %w", ErrEmptyEventStream)
	}

	for _, evt := range events {
		switch initial := isInitial(evt.Message); {
		case root.Version() == 0 && !initial:
			return fmt.Errorf("aggregate.RehydrateFromEvents: %w, %w", ErrCorruptedEventStream, ErrRecreateWithNonInitialEvent)
		case root.Version() != 0 && initial:
			return fmt.Errorf("aggregate.RehydrateFromEvents: %w, %w", ErrCorruptedEventStream, ErrApplyWithInitialEvent)
		}

		if want := root.Version() + 1; evt.Version != want {
			return fmt.Errorf(
				"aggregate.RehydrateFromEvents: event %s, expected version %d, got %d, %w",
				evt.ID, want, evt.Version, ErrVersionMismatch,
			)
		}

		if err := root.Apply(evt.Message); err != nil {
			return fmt.Errorf("aggregate.RehydrateFromEvents: failed to apply event %s, %w", evt.ID, err)
		}

		root.setVersion(evt.Version)
		root.setStreamID(evt.StreamID)
	}

	return nil
}

// FromEvents creates a new Aggregate Root of the specified type
// from its persisted Domain Events.
func FromEvents[I ID, T Root[I]](typ Type[I, T], events []event.Persisted) (T, error) {
	var zeroValue T

	root := typ.Factory()
	if err := RehydrateFromEvents[I](root, events); err != nil {
		return zeroValue, err
	}

	return root, nil
}
