package workers_test

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/internal/twiq/workers"
	"github.com/get-eventually/tracker/logger"
)

func TestSendUserRequestHandler(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)
	errTimeout := errors.New("twitter: timeout")

	setup := func(t *testing.T, fetch userrequest.FetcherFunc) (workers.SendUserRequestHandler, *userrequest.UserRequest) {
		repository := workers.NewUserRequestRepository(event.NewInMemoryStore())

		request, err := userrequest.Create(user.NewRequestID(), twitterUserID, user.NewID(), now)
		require.NoError(t, err)
		require.NoError(t, repository.Save(ctx, request))

		return workers.SendUserRequestHandler{
			Clock:        func() time.Time { return now },
			UserRequests: repository,
			Fetcher:      fetch,
			Logger:       logger.NewTest(t),
		}, request
	}

	created := func(r *userrequest.UserRequest) event.Persisted {
		return event.Persisted{
			Envelope: event.ToEnvelope(&userrequest.Created{ID: r.ID, TwitterUserID: r.TwitterUserID, UserID: r.UserID}, now),
			ID:       event.NewID(),
			StreamID: r.StreamID(),
			Version:  1,
		}
	}

	t.Run("a started request is not sent again", func(t *testing.T) {
		calls := 0
		handler, request := setup(t, func(context.Context, string) (userrequest.Response, error) {
			calls++
			return userrequest.Response{StatusCode: http.StatusOK, Body: `{}`}, nil
		})

		require.NoError(t, request.Start(now))
		require.NoError(t, handler.UserRequests.Save(ctx, request))

		require.NoError(t, handler.Handle(ctx, created(request)))
		assert.Equal(t, 0, calls)
	})

	t.Run("fetch failures are returned and leave the request started", func(t *testing.T) {
		handler, request := setup(t, func(context.Context, string) (userrequest.Response, error) {
			return userrequest.Response{}, errTimeout
		})

		require.ErrorIs(t, handler.Handle(ctx, created(request)), errTimeout)

		stored, ok, err := handler.UserRequests.Find(ctx, request.ID)
		require.NoError(t, err)
		require.True(t, ok)
		assert.Equal(t, userrequest.StatusStarted, stored.Status)

		require.NoError(t, handler.Handle(ctx, created(request)))
	})
}
