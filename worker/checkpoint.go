package worker

import (
	"context"
	"fmt"
	"sync"

	"github.com/get-eventually/tracker/event"
)

// CheckpointStore persists the id of the last Event processed by each Worker.
type CheckpointStore interface {
	// LastEventID returns the last Event processed by the Worker,
	// or the zero event.ID if it has not processed any.
	LastEventID(ctx context.Context, name Name) (event.ID, error)

	// StoreLastEventID moves the checkpoint of the Worker from before to after,
	// failing with a CheckpointConflictError if the current checkpoint
	// is not before. A zero before means the Worker has no checkpoint yet.
	StoreLastEventID(ctx context.Context, name Name, before, after event.ID) error
}

// CheckpointConflictError is returned by a CheckpointStore when the checkpoint
// has been moved by someone else, e.g. another instance of the same Worker.
type CheckpointConflictError struct {
	Worker   Name
	Expected event.ID
	Actual   event.ID
}

func (err CheckpointConflictError) Error() string {
	return fmt.Sprintf(
		"worker.CheckpointStore: conflict detected for %s; expected checkpoint: %s, actual: %s",
		err.Worker, checkpointString(err.Expected), checkpointString(err.Actual),
	)
}

func checkpointString(id event.ID) string {
	if id.IsZero() {
		return "none"
	}

	return id.String()
}

var _ CheckpointStore = new(InMemoryCheckpointStore)

// InMemoryCheckpointStore is a thread-safe, in-memory CheckpointStore.
type InMemoryCheckpointStore struct {
	mx          sync.RWMutex
	checkpoints map[Name]event.ID
}

// NewInMemoryCheckpointStore creates a new, empty InMemoryCheckpointStore.
func NewInMemoryCheckpointStore() *InMemoryCheckpointStore {
	return &InMemoryCheckpointStore{
		mx:          sync.RWMutex{},
		checkpoints: make(map[Name]event.ID),
	}
}

// LastEventID implements the worker.CheckpointStore interface.
func (s *InMemoryCheckpointStore) LastEventID(_ context.Context, name Name) (event.ID, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	return s.checkpoints[name], nil
}

// StoreLastEventID implements the worker.CheckpointStore interface.
func (s *InMemoryCheckpointStore) StoreLastEventID(_ context.Context, name Name, before, after event.ID) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	if current := s.checkpoints[name]; current != before {
		return CheckpointConflictError{Worker: name, Expected: before, Actual: current}
	}

	s.checkpoints[name] = after

	return nil
}
