package command_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/logger"
	"github.com/get-eventually/tracker/version"
)

type renameIssue struct{ Title string }

func (renameIssue) Name() string { return "rename_issue" }

type retryCounter map[string][]int

func (c retryCounter) ObserveRetry(name string, attempt int) {
	c[name] = append(c[name], attempt)
}

func failingHandler(failures int, err error) (command.Handler[renameIssue], *int) {
	calls := 0

	return command.HandlerFunc[renameIssue](func(context.Context, command.Envelope[renameIssue]) error {
		calls++
		if calls <= failures {
			return err
		}

		return nil
	}), &calls
}

func TestRetryOnConflict(t *testing.T) {
	ctx := context.Background()
	cmd := command.ToEnvelope(renameIssue{Title: "new title"})
	conflict := version.ConflictError{Expected: 1, Actual: 2}

	t.Run("conflicts are retried until the handler succeeds", func(t *testing.T) {
		observer := retryCounter{}
		handler, calls := failingHandler(2, conflict)

		retrying := command.RetryOnConflict(handler, 3,
			command.WithRetryLogger(logger.NewTest(t)),
			command.WithRetryObserver(observer),
		)

		require.NoError(t, retrying.Handle(ctx, cmd))
		assert.Equal(t, 3, *calls)
		assert.Equal(t, retryCounter{"rename_issue": {2, 3}}, observer)
	})

	t.Run("the last conflict is returned once attempts are exhausted", func(t *testing.T) {
		handler, calls := failingHandler(5, conflict)

		err := command.RetryOnConflict(handler, 2).Handle(ctx, cmd)

		var conflictErr version.ConflictError
		require.ErrorAs(t, err, &conflictErr)
		assert.Equal(t, conflict, conflictErr)
		assert.Equal(t, 2, *calls)
	})

	t.Run("other errors are not retried", func(t *testing.T) {
		errBoom := errors.New("boom")
		handler, calls := failingHandler(1, errBoom)

		err := command.RetryOnConflict(handler, 3).Handle(ctx, cmd)
		require.ErrorIs(t, err, errBoom)
		assert.Equal(t, 1, *calls)
	})
}
