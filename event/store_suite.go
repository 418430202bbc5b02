package event

import (
	"context"
	"fmt"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

const concurrentWriters = 4

func suiteEvent(streamID StreamID, v version.Version, metadata message.Metadata) Event {
	return Event{
		ID:             NewID(),
		Type:           "suite_event_recorded",
		StreamID:       streamID,
		Version:        v,
		At:             NormalizeTime(time.Now()),
		Payload:        Payload(fmt.Sprintf(`{"version":%d}`, v)),
		Metadata:       metadata,
		SequenceNumber: 0,
	}
}

func withoutSequenceNumbers(events []Event) []Event {
	result := make([]Event, 0, len(events))

	for _, evt := range events {
		evt.SequenceNumber = 0
		result = append(result, evt)
	}

	return result
}

func ids(events ...Event) []ID {
	result := make([]ID, 0, len(events))
	for _, evt := range events {
		result = append(result, evt.ID)
	}

	return result
}

// StoreSuite returns a test suite checking an event.Store implementation
// satisfies the Event Store contract.
//
// The suite only appends to newly generated Event Streams, and assumes no
// other writer uses the store while it runs.
func StoreSuite(store Store) func(t *testing.T) { //nolint:funlen // It's a test suite.
	return func(t *testing.T) {
		ctx := context.Background()

		t.Run("unknown event streams and events are not found", func(t *testing.T) {
			_, ok, err := store.FindEventStream(ctx, NewStreamID())
			require.NoError(t, err)
			assert.False(t, ok)

			_, ok, err = store.FindEvent(ctx, NewID())
			require.NoError(t, err)
			assert.False(t, ok)

			_, err = store.FindEventIDsAfter(ctx, NewID())
			assert.ErrorIs(t, err, ErrEventNotFound)
		})

		t.Run("appended events can be read back by stream and by id", func(t *testing.T) {
			id := NewStreamID()
			events := []Event{
				suiteEvent(id, 1, message.Metadata{"Correlation-Id": "suite"}),
				suiteEvent(id, 2, nil),
			}

			v, err := store.Append(ctx, id, version.NoStream, events...)
			require.NoError(t, err)
			assert.Equal(t, version.Version(2), v)

			stream, ok, err := store.FindEventStream(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, id, stream.ID)
			assert.Equal(t, version.Version(2), stream.Version())
			assert.Equal(t, events, withoutSequenceNumbers(stream.Events))
			assert.Less(t, stream.Events[0].SequenceNumber, stream.Events[1].SequenceNumber)

			evt, ok, err := store.FindEvent(ctx, events[1].ID)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, stream.Events[1], evt)

			third := suiteEvent(id, 3, nil)
			v, err = store.Append(ctx, id, version.CheckExact(2), third)
			require.NoError(t, err)
			assert.Equal(t, version.Version(3), v)
		})

		t.Run("the first append requires version.NoStream", func(t *testing.T) {
			id := NewStreamID()

			_, err := store.Append(ctx, id, version.CheckExact(1), suiteEvent(id, 2, nil))

			var conflictErr version.ConflictError
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, version.ConflictError{Expected: 1, Actual: 0}, conflictErr)

			_, ok, err := store.FindEventStream(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run("stale versions conflict and nothing is written", func(t *testing.T) {
			id := NewStreamID()

			_, err := store.Append(ctx, id, version.NoStream, suiteEvent(id, 1, nil), suiteEvent(id, 2, nil))
			require.NoError(t, err)

			var conflictErr version.ConflictError

			_, err = store.Append(ctx, id, version.NoStream, suiteEvent(id, 1, nil))
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, version.ConflictError{Expected: 0, Actual: 2}, conflictErr)

			_, err = store.Append(ctx, id, version.CheckExact(1), suiteEvent(id, 2, nil), suiteEvent(id, 3, nil))
			require.ErrorAs(t, err, &conflictErr)
			assert.Equal(t, version.ConflictError{Expected: 1, Actual: 2}, conflictErr)

			stream, ok, err := store.FindEventStream(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, version.Version(2), stream.Version())
		})

		t.Run("invalid batches are rejected", func(t *testing.T) {
			id := NewStreamID()

			_, err := store.Append(ctx, id, version.NoStream)
			require.ErrorIs(t, err, ErrNoEvents)

			_, err = store.Append(ctx, id, version.CheckExact(0), suiteEvent(id, 1, nil))
			require.ErrorIs(t, err, ErrInvalidCheck)

			_, err = store.Append(ctx, id, version.NoStream, suiteEvent(id, 2, nil))
			require.ErrorIs(t, err, ErrInvalidVersion)

			_, err = store.Append(ctx, id, version.NoStream, suiteEvent(id, 1, nil), suiteEvent(id, 3, nil))
			require.ErrorIs(t, err, ErrInvalidVersion)

			invalidType := suiteEvent(id, 1, nil)
			invalidType.Type = "Not-Valid"
			_, err = store.Append(ctx, id, version.NoStream, invalidType)
			require.ErrorIs(t, err, ErrInvalidType)

			_, ok, err := store.FindEventStream(ctx, id)
			require.NoError(t, err)
			assert.False(t, ok)
		})

		t.Run("events are ordered globally across streams", func(t *testing.T) {
			marker := NewStreamID()
			markerEvent := suiteEvent(marker, 1, nil)

			_, err := store.Append(ctx, marker, version.NoStream, markerEvent)
			require.NoError(t, err)

			first, second := NewStreamID(), NewStreamID()
			a1, a2 := suiteEvent(first, 1, nil), suiteEvent(first, 2, nil)
			b1 := suiteEvent(second, 1, nil)
			a3 := suiteEvent(first, 3, nil)

			_, err = store.Append(ctx, first, version.NoStream, a1, a2)
			require.NoError(t, err)
			_, err = store.Append(ctx, second, version.NoStream, b1)
			require.NoError(t, err)
			_, err = store.Append(ctx, first, version.CheckExact(2), a3)
			require.NoError(t, err)

			got, err := store.FindEventIDsAfter(ctx, markerEvent.ID)
			require.NoError(t, err)
			assert.Equal(t, ids(a1, a2, b1, a3), got)

			got, err = store.FindEventIDsAfter(ctx, b1.ID)
			require.NoError(t, err)
			assert.Equal(t, ids(a3), got)

			got, err = store.FindEventIDsAfter(ctx, a3.ID)
			require.NoError(t, err)
			assert.Empty(t, got)

			all, err := store.FindEventIDsAfter(ctx, ID{})
			require.NoError(t, err)
			assert.Subset(t, all, ids(markerEvent, a1, a2, b1, a3))
		})

		t.Run("concurrent appends with the same version have exactly one winner", func(t *testing.T) {
			id := NewStreamID()

			_, err := store.Append(ctx, id, version.NoStream, suiteEvent(id, 1, nil))
			require.NoError(t, err)

			var succeeded, conflicted atomic.Int32

			group, groupCtx := errgroup.WithContext(ctx)

			for range concurrentWriters {
				group.Go(func() error {
					_, err := store.Append(groupCtx, id, version.CheckExact(1), suiteEvent(id, 2, nil))

					var conflictErr version.ConflictError

					switch {
					case err == nil:
						succeeded.Add(1)
					case assert.ErrorAs(t, err, &conflictErr):
						conflicted.Add(1)
					}

					return nil
				})
			}

			require.NoError(t, group.Wait())
			assert.Equal(t, int32(1), succeeded.Load())
			assert.Equal(t, int32(concurrentWriters-1), conflicted.Load())

			stream, ok, err := store.FindEventStream(ctx, id)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, version.Version(2), stream.Version())
		})
	}
}
