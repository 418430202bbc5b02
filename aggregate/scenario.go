package aggregate

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

// History returns the Messages as the Persisted Events of a single Event Stream,
// with consecutive versions starting from 1, all recorded at the same time.
//
// Use it to build the preconditions of a Scenario.
func History(streamID event.StreamID, at time.Time, msgs ...message.Message) []event.Persisted {
	events := make([]event.Persisted, 0, len(msgs))

	for i, msg := range msgs {
		events = append(events, event.Persisted{
			Envelope:       event.ToEnvelope(msg, at),
			ID:             event.NewID(),
			StreamID:       streamID,
			Version:        version.Version(i + 1),
			SequenceNumber: 0,
		})
	}

	return events
}

// ScenarioInit is the entrypoint of the Aggregate Root scenario API.
//
// Use Given to start from an existing Aggregate Root, or When to test
// a function creating a new one.
type ScenarioInit[I ID, T Root[I]] struct {
	typ Type[I, T]
}

// Scenario tests the Domain Events recorded, or the errors returned, by
// the methods of an Aggregate Root of the specified type.
func Scenario[I ID, T Root[I]](typ Type[I, T]) ScenarioInit[I, T] {
	return ScenarioInit[I, T]{typ: typ}
}

// Given sets the Domain Events the Aggregate Root is rehydrated from.
func (sc ScenarioInit[I, T]) Given(events ...event.Persisted) ScenarioGiven[I, T] {
	return ScenarioGiven[I, T]{typ: sc.typ, given: events}
}

// When sets the function creating a new Aggregate Root.
func (sc ScenarioInit[I, T]) When(create func() (T, error)) ScenarioWhen[I, T] {
	return ScenarioWhen[I, T]{run: create}
}

// ScenarioGiven is the state of the scenario once the Domain Events
// of the Aggregate Root have been set.
type ScenarioGiven[I ID, T Root[I]] struct {
	typ   Type[I, T]
	given []event.Persisted
}

// When sets the method to call on the rehydrated Aggregate Root.
//
// A failure to rehydrate it is reported as the error of the method.
func (sc ScenarioGiven[I, T]) When(call func(T) error) ScenarioWhen[I, T] {
	return ScenarioWhen[I, T]{
		run: func() (T, error) {
			root, err := FromEvents(sc.typ, sc.given)
			if err == nil {
				err = call(root)
			}

			return root, err
		},
	}
}

// ScenarioWhen is the state of the scenario once the operation
// under test is known.
type ScenarioWhen[I ID, T Root[I]] struct {
	run func() (T, error)
}

// Then expects the operation to succeed, recording the Domain Events
// and leaving the Aggregate Root at the version.
func (sc ScenarioWhen[I, T]) Then(v version.Version, events ...event.Envelope) ScenarioThen[I, T] {
	return ScenarioThen[I, T]{
		run: sc.run,
		expect: func(t *testing.T, root T, err error) {
			if !assert.NoError(t, err) {
				return
			}

			assert.Equal(t, events, root.FlushRecordedEvents())
			assert.Equal(t, v, root.Version())
		},
	}
}

// ThenFails expects the operation to fail with any error.
func (sc ScenarioWhen[I, T]) ThenFails() ScenarioThen[I, T] {
	return sc.ThenErrors()
}

// ThenError expects the operation to fail with an error matching
// err through errors.Is.
func (sc ScenarioWhen[I, T]) ThenError(err error) ScenarioThen[I, T] {
	return sc.ThenErrors(err)
}

// ThenErrors expects the operation to fail with an error matching
// all of errs, e.g. one built with errors.Join.
func (sc ScenarioWhen[I, T]) ThenErrors(errs ...error) ScenarioThen[I, T] {
	return ScenarioThen[I, T]{
		run: sc.run,
		expect: func(t *testing.T, _ T, err error) {
			if !assert.Error(t, err) {
				return
			}

			for _, expected := range errs {
				assert.ErrorIs(t, err, expected)
			}
		},
	}
}

// ScenarioThen is a fully specified scenario, run with AssertOn.
type ScenarioThen[I ID, T Root[I]] struct {
	run    func() (T, error)
	expect func(t *testing.T, root T, err error)
}

// AssertOn runs the scenario on the testing.T instance.
func (sc ScenarioThen[I, T]) AssertOn(t *testing.T) {
	t.Helper()

	root, err := sc.run()
	sc.expect(t, root, err)
}
