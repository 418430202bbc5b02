package workers_test

import (
	"testing"
	"time"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/workers"
)

func TestRequestUserHandler(t *testing.T) {
	now := time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)
	id := user.NewID()
	requestID := user.NewRequestID()

	factory := func(store event.Store) workers.RequestUserHandler {
		return workers.RequestUserHandler{
			Clock:        func() time.Time { return now },
			Index:        event.NewInMemoryIndex(),
			Repository:   workers.NewUserRepository(store),
			NewUserID:    func() user.ID { return id },
			NewRequestID: func() user.RequestID { return requestID },
		}
	}

	t.Run("the first request creates the user", func(t *testing.T) {
		command.Scenario[workers.RequestUser, workers.RequestUserHandler]().
			When(command.ToEnvelope(workers.RequestUser{TwitterUserID: twitterUserID})).
			Then(
				event.Event{
					Type:     "user_created",
					StreamID: id.StreamID(),
					Version:  1,
					At:       now,
					Payload:  event.Payload(`{"user_id":"` + id.String() + `","twitter_user_id":"125962981"}`),
				},
				event.Event{
					Type:     "user_requested",
					StreamID: id.StreamID(),
					Version:  2,
					At:       now,
					Payload: event.Payload(`{"user_id":"` + id.String() + `","twitter_user_id":"125962981",` +
						`"user_request_id":"` + requestID.String() + `","at":"2022-09-06T22:58:00Z"}`),
				},
			).
			AssertOn(t, factory)
	})

	t.Run("the twitter user id is required", func(t *testing.T) {
		command.Scenario[workers.RequestUser, workers.RequestUserHandler]().
			When(command.ToEnvelope(workers.RequestUser{})).
			ThenError(user.ErrEmptyTwitterUserID).
			AssertOn(t, factory)
	})
}
