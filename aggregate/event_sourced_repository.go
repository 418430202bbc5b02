package aggregate

import (
	"context"
	"fmt"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/version"
)

// EventSourcedRepositoryOption configures an EventSourcedRepository.
type EventSourcedRepositoryOption interface {
	apply(*repositoryOptions)
}

type repositoryOptions struct {
	index      event.Index
	generateID func() event.ID
}

type repositoryOptionFunc func(*repositoryOptions)

func (fn repositoryOptionFunc) apply(opts *repositoryOptions) { fn(opts) }

// WithIndex makes the EventSourcedRepository resolve Aggregate IDs to
// Event Streams through the specified event.Index, registering new
// Aggregate Roots on their first Save.
//
// Use it for Aggregates whose ID is a business identifier
// rather than the event.StreamID itself.
func WithIndex(index event.Index) EventSourcedRepositoryOption {
	return repositoryOptionFunc(func(opts *repositoryOptions) {
		opts.index = index
	})
}

// WithEventIDGenerator overrides the function generating the ids of the
// Events appended by the EventSourcedRepository.
func WithEventIDGenerator(generate func() event.ID) EventSourcedRepositoryOption {
	return repositoryOptionFunc(func(opts *repositoryOptions) {
		opts.generateID = generate
	})
}

// EventSourcedRepository provides an aggregate.Repository interface implementation
// that uses an event.Store to store and load the state of the Aggregate Root.
type EventSourcedRepository[I ID, T Root[I]] struct {
	store event.Store
	codec event.Codec
	typ   Type[I, T]
	opts  repositoryOptions
}

// NewEventSourcedRepository returns a new EventSourcedRepository implementation
// to store and load Aggregate Roots, specified by the aggregate.Type,
// using the provided event.Store and event.Codec.
func NewEventSourcedRepository[I ID, T Root[I]](
	store event.Store,
	codec event.Codec,
	typ Type[I, T],
	options ...EventSourcedRepositoryOption,
) EventSourcedRepository[I, T] {
	opts := repositoryOptions{
		index:      nil,
		generateID: event.NewID,
	}

	for _, option := range options {
		option.apply(&opts)
	}

	return EventSourcedRepository[I, T]{
		store: store,
		codec: codec,
		typ:   typ,
		opts:  opts,
	}
}

// IndexKeyOf returns the event.Index key used by EventSourcedRepository
// for the Aggregate Root of the specified type and id.
func IndexKeyOf[I ID, T Root[I]](typ Type[I, T], id I) event.IndexKey {
	return event.IndexKey{
		AggregateType: typ.Name,
		AggregateID:   id.String(),
	}
}

func (repo EventSourcedRepository[I, T]) indexKey(id I) event.IndexKey {
	return IndexKeyOf(repo.typ, id)
}

func (repo EventSourcedRepository[I, T]) streamID(ctx context.Context, id I) (event.StreamID, bool, error) {
	if repo.opts.index == nil {
		streamID, err := event.ParseStreamID(id.String())
		if err != nil {
			return event.StreamID{}, false, err
		}

		return streamID, true, nil
	}

	return repo.opts.index.LookupStreamID(ctx, repo.indexKey(id))
}

// Find returns the Aggregate Root with the specified id,
// or false if no Event Stream exists for it.
//
// An error is returned if the underlying Event Store fails, or if an error
// occurs while trying to rehydrate the Aggregate Root state from its Event Stream.
func (repo EventSourcedRepository[I, T]) Find(ctx context.Context, id I) (T, bool, error) {
	var zeroValue T

	streamID, ok, err := repo.streamID(ctx, id)
	if err != nil {
		return zeroValue, false, fmt.Errorf("aggregate.EventSourcedRepository: failed to resolve stream of %s, %w", id, err)
	}

	if !ok {
		return zeroValue, false, nil
	}

	stream, ok, err := repo.store.FindEventStream(ctx, streamID)
	if err != nil {
		return zeroValue, false, fmt.Errorf("aggregate.EventSourcedRepository: failed to read event stream, %w", err)
	}

	if !ok {
		return zeroValue, false, nil
	}

	events := make([]event.Persisted, 0, len(stream.Events))

	for _, evt := range stream.Events {
		persisted, err := event.Decode(repo.codec, evt)
		if err != nil {
			return zeroValue, false, fmt.Errorf("aggregate.EventSourcedRepository: %w", err)
		}

		events = append(events, persisted)
	}

	root, err := FromEvents(repo.typ, events)
	if err != nil {
		return zeroValue, false, fmt.Errorf("aggregate.EventSourcedRepository: failed to rehydrate aggregate root, %w", err)
	}

	return root, true, nil
}

// Save stores the Aggregate Root to the Event Store, by adding the
// new, uncommitted Domain Events recorded through the Root, if any.
//
// The version the Root had before recording them is used as the
// expected Event Stream version, so that concurrent updates of the
// same Aggregate Root result in a version.ConflictError.
//
// When Save fails the Domain Events stay recorded on the Root, so that
// saving it again retries the same append instead of storing nothing.
func (repo EventSourcedRepository[I, T]) Save(ctx context.Context, root T) error {
	envs := root.FlushRecordedEvents()
	if len(envs) == 0 {
		return nil
	}

	if err := repo.save(ctx, root, envs); err != nil {
		root.unflush(envs)
		return err
	}

	return nil
}

func (repo EventSourcedRepository[I, T]) save(ctx context.Context, root T, envs []event.Envelope) error {
	streamID := root.StreamID()
	prior := root.Version() - version.Version(len(envs))

	if prior == 0 && repo.opts.index != nil {
		key := repo.indexKey(root.AggregateID())
		if err := repo.opts.index.RegisterStreamID(ctx, key, streamID); err != nil {
			return fmt.Errorf("aggregate.EventSourcedRepository: failed to register %s, %w", key, err)
		}
	}

	events := make([]event.Event, 0, len(envs))

	for i, env := range envs {
		typ, payload, err := repo.codec.Encode(env.Message)
		if err != nil {
			return fmt.Errorf("aggregate.EventSourcedRepository: failed to encode event, %w", err)
		}

		events = append(events, event.Event{
			ID:             repo.opts.generateID(),
			Type:           typ,
			StreamID:       streamID,
			Version:        prior + version.Version(i) + 1,
			At:             event.NormalizeTime(env.At),
			Payload:        payload,
			Metadata:       env.Metadata.Clone(),
			SequenceNumber: 0,
		})
	}

	if _, err := repo.store.Append(ctx, streamID, version.CheckFrom(prior), events...); err != nil {
		return fmt.Errorf("aggregate.EventSourcedRepository: failed to commit recorded events, %w", err)
	}

	return nil
}
