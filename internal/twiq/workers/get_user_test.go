package workers_test

import (
	"testing"
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/workers"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/query"
	"github.com/get-eventually/tracker/version"
	"github.com/get-eventually/tracker/worker"
)

func TestGetUser(t *testing.T) {
	id := user.NewID()
	now := time.Now()

	persisted := func(v version.Version, msg message.Message) event.Persisted {
		return event.Persisted{
			Envelope: event.ToEnvelope(msg, now),
			ID:       event.NewID(),
			StreamID: id.StreamID(),
			Version:  v,
		}
	}

	factory := func() (worker.Handler, query.Handler[workers.GetUser, workers.QueryUser]) {
		store := workers.NewInMemoryQueryUserStore()
		return workers.UpdateQueryUserHandler{QueryUsers: store}, workers.GetUserHandler{QueryUsers: store}
	}

	t.Run("returns the last fetched user name", func(t *testing.T) {
		query.Scenario[workers.GetUser, workers.QueryUser]().
			Given(
				persisted(1, &user.Created{ID: id, TwitterUserID: twitterUserID}),
				persisted(2, &user.Updated{ID: id, TwitterUserID: twitterUserID, TwitterUserName: "bouzuya"}),
				persisted(3, &user.Updated{ID: id, TwitterUserID: twitterUserID, TwitterUserName: "bouzuya2"}),
			).
			When(query.ToEnvelope(workers.GetUser{TwitterUserID: twitterUserID})).
			Then(workers.QueryUser{UserID: id, TwitterUserID: twitterUserID, TwitterUserName: "bouzuya2"}).
			AssertOn(t, factory)
	})

	t.Run("users are not found before their first fetch", func(t *testing.T) {
		query.Scenario[workers.GetUser, workers.QueryUser]().
			Given(persisted(1, &user.Created{ID: id, TwitterUserID: twitterUserID})).
			When(query.ToEnvelope(workers.GetUser{TwitterUserID: twitterUserID})).
			ThenError(workers.ErrUserNotFound).
			AssertOn(t, factory)

		query.Scenario[workers.GetUser, workers.QueryUser]().
			When(query.ToEnvelope(workers.GetUser{TwitterUserID: twitterUserID})).
			ThenError(workers.ErrUserNotFound).
			AssertOn(t, factory)
	})
}
