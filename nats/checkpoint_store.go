// Package nats contains a worker.CheckpointStore implementation
// backed by a NATS JetStream Key-Value bucket.
package nats

import (
	"context"
	"errors"
	"fmt"

	"github.com/nats-io/nats.go/jetstream"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

// DefaultBucket is the Key-Value bucket used when none is specified.
const DefaultBucket = "tracker_worker_checkpoints"

var _ worker.CheckpointStore = CheckpointStore{}

// CheckpointStore keeps one key per Worker, holding the id of the last
// processed Event. Moves are compare-and-set on the key revision.
type CheckpointStore struct {
	KV jetstream.KeyValue
}

// NewCheckpointStore creates the Key-Value bucket, if missing,
// and returns a CheckpointStore using it.
func NewCheckpointStore(ctx context.Context, js jetstream.JetStream, bucket string) (CheckpointStore, error) {
	if bucket == "" {
		bucket = DefaultBucket
	}

	kv, err := js.CreateOrUpdateKeyValue(ctx, jetstream.KeyValueConfig{
		Bucket:      bucket,
		Description: "Last event processed by each worker",
		Storage:     jetstream.FileStorage,
		History:     1,
	})
	if err != nil {
		return CheckpointStore{}, fmt.Errorf("nats.NewCheckpointStore: failed to create bucket %s, %w", bucket, err)
	}

	return CheckpointStore{KV: kv}, nil
}

func (cs CheckpointStore) read(ctx context.Context, name worker.Name) (event.ID, uint64, error) {
	entry, err := cs.KV.Get(ctx, string(name))
	if errors.Is(err, jetstream.ErrKeyNotFound) {
		return event.ID{}, 0, nil
	}

	if err != nil {
		return event.ID{}, 0, err
	}

	id, err := event.ParseID(string(entry.Value()))
	if err != nil {
		return event.ID{}, 0, fmt.Errorf("invalid checkpoint value, %w", err)
	}

	return id, entry.Revision(), nil
}

// LastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) LastEventID(ctx context.Context, name worker.Name) (event.ID, error) {
	id, _, err := cs.read(ctx, name)
	if err != nil {
		return event.ID{}, fmt.Errorf("nats.CheckpointStore: failed to read checkpoint of %s, %w", name, err)
	}

	return id, nil
}

func isWrongRevision(err error) bool {
	var apiErr *jetstream.APIError

	return errors.As(err, &apiErr) && apiErr.ErrorCode == jetstream.JSErrCodeStreamWrongLastSequence
}

// StoreLastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) StoreLastEventID(ctx context.Context, name worker.Name, before, after event.ID) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("nats.CheckpointStore: failed to store checkpoint of %s, %w", name, err)
	}

	conflict := func() error {
		actual, _, err := cs.read(ctx, name)
		if err != nil {
			return wrapErr(err)
		}

		return wrapErr(worker.CheckpointConflictError{Worker: name, Expected: before, Actual: actual})
	}

	value := []byte(after.String())

	if before.IsZero() {
		_, err := cs.KV.Create(ctx, string(name), value)
		if errors.Is(err, jetstream.ErrKeyExists) {
			return conflict()
		}

		if err != nil {
			return wrapErr(err)
		}

		return nil
	}

	current, revision, err := cs.read(ctx, name)
	if err != nil {
		return wrapErr(err)
	}

	if current != before {
		return wrapErr(worker.CheckpointConflictError{Worker: name, Expected: before, Actual: current})
	}

	if _, err := cs.KV.Update(ctx, string(name), value, revision); isWrongRevision(err) {
		return conflict()
	} else if err != nil {
		return wrapErr(err)
	}

	return nil
}
