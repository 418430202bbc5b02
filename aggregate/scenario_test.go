package aggregate_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/version"
)

func TestScenario(t *testing.T) {
	var (
		now      = time.Now()
		streamID = event.NewStreamID()
		id       = noteID("note-1")
	)

	t.Run("test an aggregate function with one factory", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			When(func() (*note, error) {
				return createNote(streamID, id, "hello", now)
			}).
			Then(1, event.ToEnvelope(&noteCreated{ID: id, Text: "hello"}, now)).
			AssertOn(t)
	})

	t.Run("test an aggregate function with one factory call that returns an error", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			When(func() (*note, error) {
				return createNote(streamID, id, "", now)
			}).
			ThenFails().
			AssertOn(t)
	})

	t.Run("test an aggregate function with one factory call that returns a specific error", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			When(func() (*note, error) {
				return createNote(streamID, id, "", now)
			}).
			ThenError(errEmptyText).
			AssertOn(t)
	})

	t.Run("test an aggregate function with an already-existing AggregateRoot instance", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			Given(persisted(streamID, 1, event.ToEnvelope(&noteCreated{ID: id, Text: "hello"}, now))).
			When(func(n *note) error {
				return n.Edit("hello, world", now)
			}).
			Then(2, event.ToEnvelope(&noteEdited{Text: "hello, world"}, now)).
			AssertOn(t)
	})

	t.Run("rehydrate from a history of messages", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			Given(aggregate.History(streamID, now,
				&noteCreated{ID: id, Text: "hello"},
				&noteEdited{Text: "hello, world"},
			)...).
			When(func(n *note) error {
				return n.Edit("bye", now)
			}).
			Then(3, event.ToEnvelope(&noteEdited{Text: "bye"}, now)).
			AssertOn(t)
	})

	t.Run("a broken history fails the When step", func(t *testing.T) {
		aggregate.
			Scenario(noteType).
			Given(aggregate.History(streamID, now, &noteEdited{Text: "orphan"})...).
			When(func(n *note) error {
				return n.Edit("bye", now)
			}).
			ThenFails().
			AssertOn(t)
	})
}

func TestHistory(t *testing.T) {
	streamID := event.NewStreamID()
	now := time.Now()

	events := aggregate.History(streamID, now, &noteCreated{ID: "n", Text: "a"}, &noteEdited{Text: "b"})

	if assert.Len(t, events, 2) {
		assert.Equal(t, version.Version(1), events[0].Version)
		assert.Equal(t, version.Version(2), events[1].Version)
		assert.Equal(t, streamID, events[1].StreamID)
		assert.NotEqual(t, events[0].ID, events[1].ID)
	}
}
