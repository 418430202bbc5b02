package correlation_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/correlation"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
	"github.com/get-eventually/tracker/worker"
)

func newEvent(streamID event.StreamID, v version.Version) event.Event {
	return event.Event{
		ID:       event.NewID(),
		Type:     "note_taken",
		StreamID: streamID,
		Version:  v,
		At:       event.NormalizeTime(time.Now()),
		Payload:  `{"text":"hello"}`,
		Metadata: message.Metadata{"Origin": "test"},
	}
}

func TestAppender(t *testing.T) {
	ctx := context.Background()
	store := event.NewInMemoryStore()
	appender := correlation.Appender{Appender: store}

	t.Run("an append outside a correlated context starts a correlation", func(t *testing.T) {
		streamID := event.NewStreamID()
		first, second := newEvent(streamID, 1), newEvent(streamID, 2)

		_, err := appender.Append(ctx, streamID, version.NoStream, first, second)
		require.NoError(t, err)

		stream, ok, err := store.FindEventStream(ctx, streamID)
		require.NoError(t, err)
		require.True(t, ok)
		require.Len(t, stream.Events, 2)

		for _, evt := range stream.Events {
			correlationID, causationID, ok := correlation.IDs(evt.Metadata)
			require.True(t, ok)
			assert.Equal(t, first.ID.String(), correlationID)
			assert.Equal(t, first.ID.String(), causationID)
			assert.Equal(t, "test", evt.Metadata["Origin"])
		}

		_, _, ok = correlation.IDs(first.Metadata)
		assert.False(t, ok, "the appended events must not be modified")
	})

	t.Run("ids are taken from the context", func(t *testing.T) {
		ctx := correlation.WithCorrelationID(ctx, "correlation")
		ctx = correlation.WithCausationID(ctx, "causation")

		streamID := event.NewStreamID()

		_, err := appender.Append(ctx, streamID, version.NoStream, newEvent(streamID, 1))
		require.NoError(t, err)

		stream, _, err := store.FindEventStream(ctx, streamID)
		require.NoError(t, err)

		correlationID, causationID, ok := correlation.IDs(stream.Events[0].Metadata)
		require.True(t, ok)
		assert.Equal(t, "correlation", correlationID)
		assert.Equal(t, "causation", causationID)
	})
}

func TestHandler(t *testing.T) {
	ctx := context.Background()
	store := event.NewInMemoryStore()
	appender := correlation.Appender{Appender: store}

	causeStream, effectStream := event.NewStreamID(), event.NewStreamID()
	cause := newEvent(causeStream, 1)

	_, err := appender.Append(ctx, causeStream, version.NoStream, cause)
	require.NoError(t, err)

	handler := correlation.Handler(worker.HandlerFunc(func(ctx context.Context, _ event.Persisted) error {
		_, err := appender.Append(ctx, effectStream, version.NoStream, newEvent(effectStream, 1))
		return err
	}))

	stored, ok, err := store.FindEvent(ctx, cause.ID)
	require.NoError(t, err)
	require.True(t, ok)

	require.NoError(t, handler.Handle(ctx, event.Persisted{
		Envelope: event.Envelope{Message: nil, Metadata: stored.Metadata, At: stored.At},
		ID:       stored.ID,
		StreamID: stored.StreamID,
		Version:  stored.Version,
	}))

	stream, ok, err := store.FindEventStream(ctx, effectStream)
	require.NoError(t, err)
	require.True(t, ok)

	correlationID, causationID, ok := correlation.IDs(stream.Events[0].Metadata)
	require.True(t, ok)
	assert.Equal(t, cause.ID.String(), correlationID)
	assert.Equal(t, cause.ID.String(), causationID)
}
