package worker

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/event"
)

// CheckpointStoreSuite returns a test suite checking a CheckpointStore
// implementation honors the compare-and-set semantics of checkpoints.
func CheckpointStoreSuite(store CheckpointStore) func(t *testing.T) {
	return func(t *testing.T) {
		ctx := context.Background()
		newName := func() Name { return Name("suite_" + uuid.NewString()[:8]) }

		t.Run("workers with no checkpoint start from the beginning", func(t *testing.T) {
			id, err := store.LastEventID(ctx, newName())
			require.NoError(t, err)
			assert.True(t, id.IsZero())
		})

		t.Run("checkpoints move forward from the expected one", func(t *testing.T) {
			name := newName()
			first, second := event.NewID(), event.NewID()

			require.NoError(t, store.StoreLastEventID(ctx, name, event.ID{}, first))

			id, err := store.LastEventID(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, first, id)

			require.NoError(t, store.StoreLastEventID(ctx, name, first, second))

			id, err = store.LastEventID(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, second, id)
		})

		t.Run("stale checkpoints conflict", func(t *testing.T) {
			name := newName()
			first, second := event.NewID(), event.NewID()

			require.NoError(t, store.StoreLastEventID(ctx, name, event.ID{}, first))

			var conflictErr CheckpointConflictError

			err := store.StoreLastEventID(ctx, name, event.ID{}, second)
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, CheckpointConflictError{Worker: name, Expected: event.ID{}, Actual: first}, conflictErr)

			err = store.StoreLastEventID(ctx, name, second, event.NewID())
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, first, conflictErr.Actual)

			id, err := store.LastEventID(ctx, name)
			require.NoError(t, err)
			assert.Equal(t, first, id)
		})

		t.Run("a missing checkpoint conflicts with a non-zero expectation", func(t *testing.T) {
			name := newName()
			expected := event.NewID()

			var conflictErr CheckpointConflictError

			err := store.StoreLastEventID(ctx, name, expected, event.NewID())
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, CheckpointConflictError{Worker: name, Expected: expected, Actual: event.ID{}}, conflictErr)
		})

		t.Run("checkpoints of different workers are independent", func(t *testing.T) {
			first, second := newName(), newName()
			id := event.NewID()

			require.NoError(t, store.StoreLastEventID(ctx, first, event.ID{}, id))
			require.NoError(t, store.StoreLastEventID(ctx, second, event.ID{}, id))

			got, err := store.LastEventID(ctx, second)
			require.NoError(t, err)
			assert.Equal(t, id, got)
		})
	}
}
