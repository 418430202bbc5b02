package command

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/version"
)

// ScenarioInit starts a Command Handler scenario: either from the Events
// already in the Event Store, with Given, or from an empty one, with When.
type ScenarioInit[Cmd Command, T Handler[Cmd]] struct{}

// Scenario tests the Events a Command Handler appends, or the error
// it returns, when handling a Command.
func Scenario[Cmd Command, T Handler[Cmd]]() ScenarioInit[Cmd, T] {
	return ScenarioInit[Cmd, T]{}
}

// Given stores the Events before the Command is handled.
//
// Events with no ID get a random one. Each Event is appended expecting
// the previous version of its Event Stream.
func (ScenarioInit[Cmd, T]) Given(events ...event.Event) ScenarioGiven[Cmd, T] {
	return ScenarioGiven[Cmd, T]{given: events}
}

// When sets the Command to handle on an empty Event Store.
func (sc ScenarioInit[Cmd, T]) When(cmd Envelope[Cmd]) ScenarioWhen[Cmd, T] {
	return ScenarioGiven[Cmd, T]{}.When(cmd)
}

// ScenarioGiven holds the Events stored before the Command is handled.
type ScenarioGiven[Cmd Command, T Handler[Cmd]] struct {
	given []event.Event
}

// When sets the Command to handle.
func (sc ScenarioGiven[Cmd, T]) When(cmd Envelope[Cmd]) ScenarioWhen[Cmd, T] {
	return ScenarioWhen[Cmd, T]{given: sc.given, cmd: cmd}
}

// ScenarioWhen holds the preconditions and the Command to handle.
type ScenarioWhen[Cmd Command, T Handler[Cmd]] struct {
	given []event.Event
	cmd   Envelope[Cmd]
}

// Then expects the Command to be handled successfully, appending exactly the Events.
//
// Event ids are generated while saving, so the expected Events leave the ID
// empty and the appended ones are compared without it.
func (sc ScenarioWhen[Cmd, T]) Then(events ...event.Event) ScenarioThen[Cmd, T] {
	return ScenarioThen[Cmd, T]{
		when: sc,
		expect: func(t *testing.T, appended []event.Event, err error) {
			if !assert.NoError(t, err) {
				return
			}

			for i := range appended {
				appended[i].ID = event.ID{}
			}

			assert.Equal(t, events, appended)
		},
	}
}

// ThenError expects the Command Handler to fail with an error matching err through errors.Is.
func (sc ScenarioWhen[Cmd, T]) ThenError(err error) ScenarioThen[Cmd, T] {
	return ScenarioThen[Cmd, T]{
		when: sc,
		expect: func(t *testing.T, _ []event.Event, actual error) {
			assert.ErrorIs(t, actual, err)
		},
	}
}

// ThenFails expects the Command Handler to fail with any error.
func (sc ScenarioWhen[Cmd, T]) ThenFails() ScenarioThen[Cmd, T] {
	return ScenarioThen[Cmd, T]{
		when: sc,
		expect: func(t *testing.T, _ []event.Event, err error) {
			assert.Error(t, err)
		},
	}
}

// ScenarioThen is a fully specified scenario, run with AssertOn.
type ScenarioThen[Cmd Command, T Handler[Cmd]] struct {
	when   ScenarioWhen[Cmd, T]
	expect func(t *testing.T, appended []event.Event, err error)
}

// AssertOn runs the scenario with the Command Handler built by newHandler.
//
// newHandler receives the Event Store holding the given Events,
// to build the Repositories the Command Handler needs.
func (sc ScenarioThen[Cmd, T]) AssertOn(t *testing.T, newHandler func(event.Store) T) {
	t.Helper()

	ctx := context.Background()
	store := event.NewInMemoryStore()

	for _, evt := range sc.when.given {
		if evt.ID.IsZero() {
			evt.ID = event.NewID()
		}

		if _, err := store.Append(ctx, evt.StreamID, version.CheckFrom(evt.Version-1), evt); err != nil {
			t.Fatalf("command.Scenario: failed to store given event: %v", err)
		}
	}

	tracking := event.NewTrackingStore(store)
	handler := newHandler(event.FusedStore{
		Appender:     tracking,
		StreamFinder: store,
		Log:          store,
	})

	err := handler.Handle(ctx, sc.when.cmd)
	sc.expect(t, tracking.Recorded(), err)
}
