package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/tracker/event"
)

type indexDocument struct {
	AggregateType string `firestore:"aggregate_type"`
	AggregateID   string `firestore:"aggregate_id"`
	EventStreamID string `firestore:"event_stream_id"`
}

var _ event.Index = StreamIndex{}

// StreamIndex is an event.Index implementation using Cloud Firestore,
// with one document per key.
type StreamIndex struct {
	Client *firestore.Client
}

func (idx StreamIndex) doc(key event.IndexKey) *firestore.DocumentRef {
	return idx.Client.Collection(StreamIndexCollection).Doc(key.String())
}

func decodeIndexDocument(doc *firestore.DocumentSnapshot) (event.StreamID, error) {
	var indexDoc indexDocument
	if err := doc.DataTo(&indexDoc); err != nil {
		return event.StreamID{}, err
	}

	return event.ParseStreamID(indexDoc.EventStreamID)
}

// LookupStreamID implements the event.Index interface.
func (idx StreamIndex) LookupStreamID(ctx context.Context, key event.IndexKey) (event.StreamID, bool, error) {
	doc, err := idx.doc(key).Get(ctx)
	if status.Code(err) == codes.NotFound {
		return event.StreamID{}, false, nil
	}

	if err != nil {
		return event.StreamID{}, false, fmt.Errorf("firestore.StreamIndex: failed to look up %s, %w", key, err)
	}

	id, err := decodeIndexDocument(doc)
	if err != nil {
		return event.StreamID{}, false, fmt.Errorf("firestore.StreamIndex: failed to decode %s, %w", key, err)
	}

	return id, true, nil
}

// RegisterStreamID implements the event.Index interface.
func (idx StreamIndex) RegisterStreamID(ctx context.Context, key event.IndexKey, id event.StreamID) error {
	err := idx.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		doc, err := tx.Get(idx.doc(key))
		if status.Code(err) == codes.NotFound {
			return tx.Create(idx.doc(key), indexDocument{
				AggregateType: key.AggregateType,
				AggregateID:   key.AggregateID,
				EventStreamID: id.String(),
			})
		}

		if err != nil {
			return err
		}

		existing, err := decodeIndexDocument(doc)
		if err != nil {
			return err
		}

		if existing != id {
			return event.ErrIndexKeyTaken
		}

		return nil
	})
	if err != nil {
		return fmt.Errorf("firestore.StreamIndex: failed to register %s, %w", key, err)
	}

	return nil
}
