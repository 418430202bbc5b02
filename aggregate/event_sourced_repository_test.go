package aggregate_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

func TestEventSourcedRepository(t *testing.T) {
	ctx := context.Background()
	now := time.Now()

	t.Run("roots are found by stream id when no index is used", func(t *testing.T) {
		store := event.NewInMemoryStore()
		repository := aggregate.NewEventSourcedRepository(store, noteCodec, noteType)

		streamID := event.NewStreamID()
		id := noteID(streamID.String())

		_, ok, err := repository.Find(ctx, id)
		require.NoError(t, err)
		assert.False(t, ok)

		n, err := createNote(streamID, id, "hello", now)
		require.NoError(t, err)
		require.NoError(t, repository.Save(ctx, n))

		got, ok, err := repository.Find(ctx, id)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, n, got)

		_, _, err = repository.Find(ctx, noteID("not-a-stream-id"))
		assert.ErrorIs(t, err, event.ErrInvalidID)
	})

	t.Run("roots are found through the index", func(t *testing.T) {
		inner := event.NewInMemoryStore()
		store := event.NewTrackingStore(inner)
		index := event.NewInMemoryIndex()
		ids := []event.ID{event.NewID(), event.NewID()}
		next := 0

		repository := aggregate.NewEventSourcedRepository(
			event.FusedStore{Appender: store, StreamFinder: inner, Log: inner},
			noteCodec,
			noteType,
			aggregate.WithIndex(index),
			aggregate.WithEventIDGenerator(func() event.ID {
				id := ids[next]
				next++

				return id
			}),
		)

		streamID := event.NewStreamID()

		n, err := createNote(streamID, "note-1", "hello", now)
		require.NoError(t, err)
		require.NoError(t, n.Edit("hello, world", now))
		require.NoError(t, repository.Save(ctx, n))

		registered, ok, err := index.LookupStreamID(ctx, event.IndexKey{AggregateType: "note", AggregateID: "note-1"})
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, streamID, registered)

		assert.Equal(t, []event.Event{
			{
				ID:       ids[0],
				Type:     "note_created",
				StreamID: streamID,
				Version:  1,
				At:       event.NormalizeTime(now),
				Payload:  `{"id":"note-1","text":"hello"}`,
				Metadata: message.Metadata(nil),
			},
			{
				ID:       ids[1],
				Type:     "note_edited",
				StreamID: streamID,
				Version:  2,
				At:       event.NormalizeTime(now),
				Payload:  `{"text":"hello, world"}`,
				Metadata: message.Metadata(nil),
			},
		}, store.Recorded())

		got, ok, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, "hello, world", got.text)
		assert.Equal(t, version.Version(2), got.Version())

		_, ok, err = repository.Find(ctx, "note-2")
		require.NoError(t, err)
		assert.False(t, ok)
	})

	t.Run("concurrent updates conflict", func(t *testing.T) {
		repository := aggregate.NewEventSourcedRepository(
			event.NewInMemoryStore(), noteCodec, noteType,
			aggregate.WithIndex(event.NewInMemoryIndex()),
		)

		n, err := createNote(event.NewStreamID(), "note-1", "hello", now)
		require.NoError(t, err)
		require.NoError(t, repository.Save(ctx, n))

		first, _, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)
		second, _, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)

		require.NoError(t, first.Edit("first", now))
		require.NoError(t, second.Edit("second", now))

		require.NoError(t, repository.Save(ctx, first))

		var conflictErr version.ConflictError

		err = repository.Save(ctx, second)
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, version.ConflictError{Expected: 1, Actual: 2}, conflictErr)
	})

	t.Run("a failed save keeps the recorded events", func(t *testing.T) {
		store := event.NewInMemoryStore()
		repository := aggregate.NewEventSourcedRepository(
			store, noteCodec, noteType,
			aggregate.WithIndex(event.NewInMemoryIndex()),
		)

		n, err := createNote(event.NewStreamID(), "note-1", "hello", now)
		require.NoError(t, err)
		require.NoError(t, repository.Save(ctx, n))

		winner, _, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)
		loser, _, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)

		require.NoError(t, winner.Edit("winner", now))
		require.NoError(t, loser.Edit("loser", now))
		require.NoError(t, repository.Save(ctx, winner))

		var conflictErr version.ConflictError

		require.ErrorAs(t, repository.Save(ctx, loser), &conflictErr)
		require.ErrorAs(t, repository.Save(ctx, loser), &conflictErr)
		assert.Equal(t, version.ConflictError{Expected: 1, Actual: 2}, conflictErr)

		assert.Equal(t, []event.Envelope{
			event.ToEnvelope(&noteEdited{Text: "loser"}, now),
		}, loser.FlushRecordedEvents())

		stored, _, err := repository.Find(ctx, "note-1")
		require.NoError(t, err)
		assert.Equal(t, "winner", stored.text)
		assert.Equal(t, version.Version(2), stored.Version())
	})

	t.Run("the same business id cannot be created twice", func(t *testing.T) {
		repository := aggregate.NewEventSourcedRepository(
			event.NewInMemoryStore(), noteCodec, noteType,
			aggregate.WithIndex(event.NewInMemoryIndex()),
		)

		n, err := createNote(event.NewStreamID(), "note-1", "hello", now)
		require.NoError(t, err)
		require.NoError(t, repository.Save(ctx, n))

		n, err = createNote(event.NewStreamID(), "note-1", "hello again", now)
		require.NoError(t, err)
		require.ErrorIs(t, repository.Save(ctx, n), event.ErrIndexKeyTaken)
	})

	t.Run("nothing to save", func(t *testing.T) {
		store := event.NewTrackingStore(event.NewInMemoryStore())
		repository := aggregate.NewEventSourcedRepository(
			event.FusedStore{Appender: store, StreamFinder: nil, Log: nil},
			noteCodec,
			noteType,
		)

		n, err := createNote(event.NewStreamID(), "note-1", "hello", now)
		require.NoError(t, err)
		n.FlushRecordedEvents()

		require.NoError(t, repository.Save(ctx, n))
		assert.Empty(t, store.Recorded())
	})
}
