// Package firestore contains the Cloud Firestore implementations of the Event Store,
// the stream index and the worker checkpoint store.
package firestore

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"cloud.google.com/go/firestore"
	"google.golang.org/api/iterator"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

// Collection names used by the Firestore components.
const (
	EventStreamsCollection      = "EventStreams"
	EventsCollection            = "Events"
	CountersCollection          = "Counters"
	StreamIndexCollection       = "StreamIndex"
	WorkerCheckpointsCollection = "WorkerCheckpoints"
)

const (
	sequenceCounterID = "events"

	// Appends to the same Event Stream, and to the global sequence counter,
	// contend with each other: give them more room than the default.
	maxTransactionAttempts = 10
)

// ErrDuplicateEventID is returned when appending an Event whose id is already in use.
var ErrDuplicateEventID = errors.New("firestore.EventStore: event id already exists")

type streamDocument struct {
	Version int64 `firestore:"version"`
}

type counterDocument struct {
	SequenceNumber int64 `firestore:"sequence_number"`
}

type eventDocument struct {
	EventID        string            `firestore:"event_id"`
	EventStreamID  string            `firestore:"event_stream_id"`
	Version        int64             `firestore:"version"`
	Type           string            `firestore:"type"`
	Payload        string            `firestore:"payload"`
	Metadata       map[string]string `firestore:"metadata,omitempty"`
	RecordedAt     time.Time         `firestore:"recorded_at"`
	SequenceNumber int64             `firestore:"sequence_number"`
}

func (doc eventDocument) toEvent() (event.Event, error) {
	id, err := event.ParseID(doc.EventID)
	if err != nil {
		return event.Event{}, err
	}

	streamID, err := event.ParseStreamID(doc.EventStreamID)
	if err != nil {
		return event.Event{}, err
	}

	return event.Event{
		ID:             id,
		Type:           event.Type(doc.Type),
		StreamID:       streamID,
		Version:        version.Version(doc.Version),
		At:             event.NormalizeTime(doc.RecordedAt),
		Payload:        event.Payload(doc.Payload),
		Metadata:       message.Metadata(doc.Metadata).Clone(),
		SequenceNumber: version.SequenceNumber(doc.SequenceNumber),
	}, nil
}

var _ event.Store = EventStore{}

// EventStore is an event.Store implementation using Cloud Firestore.
//
// Every append increments a single counter document in the same transaction,
// to assign gapless sequence numbers in commit order. This caps the append
// throughput of the whole Event Store to the write rate of one document.
type EventStore struct {
	Client *firestore.Client
}

func (es EventStore) eventsCollection() *firestore.CollectionRef {
	return es.Client.Collection(EventsCollection)
}

func (es EventStore) streamsCollection() *firestore.CollectionRef {
	return es.Client.Collection(EventStreamsCollection)
}

func (es EventStore) counterDoc() *firestore.DocumentRef {
	return es.Client.Collection(CountersCollection).Doc(sequenceCounterID)
}

// Append implements the event.Appender interface.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Event,
) (version.Version, error) {
	if err := event.ValidateAppend(id, expected, events); err != nil {
		return 0, fmt.Errorf("firestore.EventStore: invalid append, %w", err)
	}

	want := version.Expected(expected)
	newVersion := want + version.Version(len(events))

	err := es.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		streamRef := es.streamsCollection().Doc(id.String())

		var stream streamDocument

		switch doc, err := tx.Get(streamRef); {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return fmt.Errorf("failed to get event stream, %w", err)
		default:
			if err := doc.DataTo(&stream); err != nil {
				return fmt.Errorf("failed to decode event stream, %w", err)
			}
		}

		if actual := version.Version(stream.Version); actual != want {
			return version.ConflictError{Expected: want, Actual: actual}
		}

		var counter counterDocument

		switch doc, err := tx.Get(es.counterDoc()); {
		case status.Code(err) == codes.NotFound:
		case err != nil:
			return fmt.Errorf("failed to get sequence counter, %w", err)
		default:
			if err := doc.DataTo(&counter); err != nil {
				return fmt.Errorf("failed to decode sequence counter, %w", err)
			}
		}

		for _, evt := range events {
			counter.SequenceNumber++

			if err := tx.Create(es.eventsCollection().Doc(evt.ID.String()), eventDocument{
				EventID:        evt.ID.String(),
				EventStreamID:  id.String(),
				Version:        int64(evt.Version),
				Type:           string(evt.Type),
				Payload:        string(evt.Payload),
				Metadata:       evt.Metadata.Clone(),
				RecordedAt:     event.NormalizeTime(evt.At),
				SequenceNumber: counter.SequenceNumber,
			}); err != nil {
				return fmt.Errorf("failed to create event %s, %w", evt.ID, err)
			}
		}

		if err := tx.Set(streamRef, streamDocument{Version: int64(newVersion)}); err != nil {
			return fmt.Errorf("failed to update event stream, %w", err)
		}

		if err := tx.Set(es.counterDoc(), counter); err != nil {
			return fmt.Errorf("failed to update sequence counter, %w", err)
		}

		return nil
	}, firestore.MaxAttempts(maxTransactionAttempts))

	if status.Code(err) == codes.AlreadyExists {
		err = ErrDuplicateEventID
	}

	if err != nil {
		return 0, fmt.Errorf("firestore.EventStore: failed to append events, %w", err)
	}

	return newVersion, nil
}

func collectEvents(iter *firestore.DocumentIterator) ([]event.Event, error) {
	defer iter.Stop()

	var events []event.Event

	for {
		doc, err := iter.Next()
		if errors.Is(err, iterator.Done) {
			return events, nil
		}

		if err != nil {
			return nil, fmt.Errorf("failed while reading iterator, %w", err)
		}

		var evtDoc eventDocument
		if err := doc.DataTo(&evtDoc); err != nil {
			return nil, fmt.Errorf("failed to decode event document %s, %w", doc.Ref.ID, err)
		}

		evt, err := evtDoc.toEvent()
		if err != nil {
			return nil, err
		}

		events = append(events, evt)
	}
}

// FindEventStream implements the event.StreamFinder interface.
//
// Events are sorted client-side, so that the query only needs
// the automatic single-field index.
func (es EventStore) FindEventStream(ctx context.Context, id event.StreamID) (event.Stream, bool, error) {
	events, err := collectEvents(es.eventsCollection().Where("event_stream_id", "==", id.String()).Documents(ctx))
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("firestore.EventStore: %w", err)
	}

	if len(events) == 0 {
		return event.Stream{}, false, nil
	}

	slices.SortFunc(events, func(a, b event.Event) int {
		return int(a.Version) - int(b.Version)
	})

	stream, err := event.NewStream(id, events)
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("firestore.EventStore: corrupted stream, %w", err)
	}

	return stream, true, nil
}

// FindEvent implements the event.Log interface.
func (es EventStore) FindEvent(ctx context.Context, id event.ID) (event.Event, bool, error) {
	doc, err := es.eventsCollection().Doc(id.String()).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return event.Event{}, false, nil
	}

	if err != nil {
		return event.Event{}, false, fmt.Errorf("firestore.EventStore: failed to get event %s, %w", id, err)
	}

	var evtDoc eventDocument
	if err := doc.DataTo(&evtDoc); err != nil {
		return event.Event{}, false, fmt.Errorf("firestore.EventStore: failed to decode event %s, %w", id, err)
	}

	evt, err := evtDoc.toEvent()
	if err != nil {
		return event.Event{}, false, fmt.Errorf("firestore.EventStore: %w", err)
	}

	return evt, true, nil
}

// FindEventIDsAfter implements the event.Log interface.
func (es EventStore) FindEventIDsAfter(ctx context.Context, cursor event.ID) ([]event.ID, error) {
	var after version.SequenceNumber

	if !cursor.IsZero() {
		evt, ok, err := es.FindEvent(ctx, cursor)
		if err != nil {
			return nil, err
		}

		if !ok {
			return nil, fmt.Errorf("firestore.EventStore: cursor %s, %w", cursor, event.ErrEventNotFound)
		}

		after = evt.SequenceNumber
	}

	events, err := collectEvents(es.eventsCollection().
		Where("sequence_number", ">", int64(after)).
		OrderBy("sequence_number", firestore.Asc).
		Documents(ctx))
	if err != nil {
		return nil, fmt.Errorf("firestore.EventStore: %w", err)
	}

	ids := make([]event.ID, 0, len(events))
	for _, evt := range events {
		ids = append(ids, evt.ID)
	}

	return ids, nil
}
