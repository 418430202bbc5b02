package firestore

import (
	"context"
	"fmt"

	"cloud.google.com/go/firestore"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

type checkpointDocument struct {
	LastEventID string `firestore:"last_event_id"`
}

var _ worker.CheckpointStore = CheckpointStore{}

// CheckpointStore is a worker.CheckpointStore implementation using Cloud Firestore,
// with one document per Worker.
type CheckpointStore struct {
	Client *firestore.Client
}

func (cs CheckpointStore) doc(name worker.Name) *firestore.DocumentRef {
	return cs.Client.Collection(WorkerCheckpointsCollection).Doc(string(name))
}

func decodeCheckpoint(doc *firestore.DocumentSnapshot, err error) (event.ID, error) {
	if status.Code(err) == codes.NotFound {
		return event.ID{}, nil
	}

	if err != nil {
		return event.ID{}, err
	}

	var checkpoint checkpointDocument
	if err := doc.DataTo(&checkpoint); err != nil {
		return event.ID{}, err
	}

	return event.ParseID(checkpoint.LastEventID)
}

// LastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) LastEventID(ctx context.Context, name worker.Name) (event.ID, error) {
	id, err := decodeCheckpoint(cs.doc(name).Get(ctx))
	if err != nil {
		return event.ID{}, fmt.Errorf("firestore.CheckpointStore: failed to read checkpoint of %s, %w", name, err)
	}

	return id, nil
}

// StoreLastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) StoreLastEventID(ctx context.Context, name worker.Name, before, after event.ID) error {
	err := cs.Client.RunTransaction(ctx, func(_ context.Context, tx *firestore.Transaction) error {
		current, err := decodeCheckpoint(tx.Get(cs.doc(name)))
		if err != nil {
			return err
		}

		if current != before {
			return worker.CheckpointConflictError{Worker: name, Expected: before, Actual: current}
		}

		return tx.Set(cs.doc(name), checkpointDocument{LastEventID: after.String()})
	})
	if err != nil {
		return fmt.Errorf("firestore.CheckpointStore: failed to store checkpoint of %s, %w", name, err)
	}

	return nil
}
