package event

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/tracker/version"
)

// Interface implementation assertion.
var (
	_ Store = new(InMemoryStore)
	_ Index = new(InMemoryIndex)
)

// InMemoryStore is a thread-safe, in-memory event.Store implementation.
type InMemoryStore struct {
	mx      sync.RWMutex
	streams map[StreamID][]Event
	log     []Event
	offsets map[ID]int
}

// NewInMemoryStore creates a new event.InMemoryStore instance.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{
		mx:      sync.RWMutex{},
		streams: make(map[StreamID][]Event),
		log:     nil,
		offsets: make(map[ID]int),
	}
}

func contextErr(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("event.InMemoryStore: context error, %w", err)
	}

	return nil
}

// Append implements the event.Appender interface.
func (es *InMemoryStore) Append(
	ctx context.Context,
	id StreamID,
	expected version.Check,
	events ...Event,
) (version.Version, error) {
	if err := ValidateAppend(id, expected, events); err != nil {
		return 0, fmt.Errorf("event.InMemoryStore: invalid append, %w", err)
	}

	if err := contextErr(ctx); err != nil {
		return 0, err
	}

	es.mx.Lock()
	defer es.mx.Unlock()

	current := version.Version(len(es.streams[id]))
	if want := version.Expected(expected); current != want {
		return 0, fmt.Errorf("event.InMemoryStore: failed to append events, %w", version.ConflictError{
			Expected: want,
			Actual:   current,
		})
	}

	for _, evt := range events {
		if _, ok := es.offsets[evt.ID]; ok {
			return 0, fmt.Errorf("event.InMemoryStore: event %s already exists", evt.ID)
		}
	}

	for _, evt := range events {
		evt.At = NormalizeTime(evt.At)
		evt.Metadata = evt.Metadata.Clone()
		evt.SequenceNumber = version.SequenceNumber(len(es.log) + 1)

		es.offsets[evt.ID] = len(es.log)
		es.log = append(es.log, evt)
		es.streams[id] = append(es.streams[id], evt)
	}

	return current + version.Version(len(events)), nil
}

// FindEventStream implements the event.StreamFinder interface.
func (es *InMemoryStore) FindEventStream(ctx context.Context, id StreamID) (Stream, bool, error) {
	if err := contextErr(ctx); err != nil {
		return Stream{}, false, err
	}

	es.mx.RLock()
	defer es.mx.RUnlock()

	events, ok := es.streams[id]
	if !ok {
		return Stream{}, false, nil
	}

	copied := make([]Event, len(events))
	for i, evt := range events {
		copied[i] = evt.detached()
	}

	stream, err := NewStream(id, copied)
	if err != nil {
		return Stream{}, false, fmt.Errorf("event.InMemoryStore: corrupted stream, %w", err)
	}

	return stream, true, nil
}

// FindEvent implements the event.Log interface.
func (es *InMemoryStore) FindEvent(ctx context.Context, id ID) (Event, bool, error) {
	if err := contextErr(ctx); err != nil {
		return Event{}, false, err
	}

	es.mx.RLock()
	defer es.mx.RUnlock()

	offset, ok := es.offsets[id]
	if !ok {
		return Event{}, false, nil
	}

	return es.log[offset].detached(), true, nil
}

// detached returns a copy of a stored Event that shares no map with the store.
func (evt Event) detached() Event {
	evt.Metadata = evt.Metadata.Clone()
	return evt
}

// FindEventIDsAfter implements the event.Log interface.
func (es *InMemoryStore) FindEventIDsAfter(ctx context.Context, cursor ID) ([]ID, error) {
	if err := contextErr(ctx); err != nil {
		return nil, err
	}

	es.mx.RLock()
	defer es.mx.RUnlock()

	from := 0

	if !cursor.IsZero() {
		offset, ok := es.offsets[cursor]
		if !ok {
			return nil, fmt.Errorf("event.InMemoryStore: cursor %s, %w", cursor, ErrEventNotFound)
		}

		from = offset + 1
	}

	ids := make([]ID, 0, len(es.log)-from)
	for _, evt := range es.log[from:] {
		ids = append(ids, evt.ID)
	}

	return ids, nil
}

// InMemoryIndex is a thread-safe, in-memory event.Index implementation.
type InMemoryIndex struct {
	mx      sync.RWMutex
	entries map[IndexKey]StreamID
}

// NewInMemoryIndex creates a new event.InMemoryIndex instance.
func NewInMemoryIndex() *InMemoryIndex {
	return &InMemoryIndex{
		mx:      sync.RWMutex{},
		entries: make(map[IndexKey]StreamID),
	}
}

// LookupStreamID implements the event.Index interface.
func (idx *InMemoryIndex) LookupStreamID(_ context.Context, key IndexKey) (StreamID, bool, error) {
	idx.mx.RLock()
	defer idx.mx.RUnlock()

	id, ok := idx.entries[key]

	return id, ok, nil
}

// RegisterStreamID implements the event.Index interface.
func (idx *InMemoryIndex) RegisterStreamID(_ context.Context, key IndexKey, id StreamID) error {
	idx.mx.Lock()
	defer idx.mx.Unlock()

	if existing, ok := idx.entries[key]; ok && existing != id {
		return fmt.Errorf("event.InMemoryIndex: failed to register %s, %w", key, ErrIndexKeyTaken)
	}

	idx.entries[key] = id

	return nil
}
