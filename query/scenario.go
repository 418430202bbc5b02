package query

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

// ScenarioInit is the entrypoint of the Query Handler scenario API.
type ScenarioInit[Q Query, R any] struct{}

// Scenario tests the result of a Query against the read model built
// by a worker.Handler from a list of Events.
func Scenario[Q Query, R any]() ScenarioInit[Q, R] {
	return ScenarioInit[Q, R]{}
}

// Given sets the Events the read model is built from, in order.
func (ScenarioInit[Q, R]) Given(events ...event.Persisted) ScenarioGiven[Q, R] {
	return ScenarioGiven[Q, R]{given: events}
}

// When provides the Query to evaluate on an empty read model.
func (ScenarioInit[Q, R]) When(q Envelope[Q]) ScenarioWhen[Q, R] {
	return ScenarioWhen[Q, R]{
		ScenarioGiven: ScenarioGiven[Q, R]{given: nil},
		when:          q,
	}
}

// ScenarioGiven is the state of the scenario once the Events are set.
type ScenarioGiven[Q Query, R any] struct {
	given []event.Persisted
}

// When provides the Query to evaluate.
func (sc ScenarioGiven[Q, R]) When(q Envelope[Q]) ScenarioWhen[Q, R] {
	return ScenarioWhen[Q, R]{
		ScenarioGiven: sc,
		when:          q,
	}
}

// ScenarioWhen is the state of the scenario once the Query is set.
type ScenarioWhen[Q Query, R any] struct {
	ScenarioGiven[Q, R]
	when Envelope[Q]
}

// Then expects the Query to return the result.
func (sc ScenarioWhen[Q, R]) Then(result R) ScenarioThen[Q, R] {
	return ScenarioThen[Q, R]{
		ScenarioWhen: sc,
		then:         result,
		thenError:    nil,
		wantError:    false,
	}
}

// ThenError expects the Query to fail with an error matching err
// through errors.Is.
func (sc ScenarioWhen[Q, R]) ThenError(err error) ScenarioThen[Q, R] {
	var zero R

	return ScenarioThen[Q, R]{
		ScenarioWhen: sc,
		then:         zero,
		thenError:    err,
		wantError:    true,
	}
}

// ScenarioThen is the state of the scenario once the expectations are set.
type ScenarioThen[Q Query, R any] struct {
	ScenarioWhen[Q, R]

	then      R
	thenError error
	wantError bool
}

// AssertOn runs the scenario. The factory returns the worker.Handler
// building the read model and the Handler querying it, sharing
// the same fresh read model.
func (sc ScenarioThen[Q, R]) AssertOn(t *testing.T, factory func() (worker.Handler, Handler[Q, R])) {
	ctx := context.Background()
	projection, handler := factory()

	for _, evt := range sc.given {
		require.NoError(t, projection.Handle(ctx, evt), "event failed to be processed", evt.ID)
	}

	actual, err := handler.Handle(ctx, sc.when)

	if !sc.wantError {
		assert.NoError(t, err)
		assert.Equal(t, sc.then, actual)

		return
	}

	if assert.Error(t, err) && sc.thenError != nil {
		assert.ErrorIs(t, err, sc.thenError)
	}
}
