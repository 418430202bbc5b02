package userrequest_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/message"
)

func TestUserRequest(t *testing.T) {
	now := time.Now()
	id := user.NewRequestID()
	userID := user.NewID()
	created := &userrequest.Created{ID: id, TwitterUserID: "125962981", UserID: userID}
	response := userrequest.Response{StatusCode: http.StatusOK, Body: `{"data":{"username":"bouzuya"}}`}

	given := func(events ...message.Message) []event.Persisted {
		return aggregate.History(id.StreamID(), now, events...)
	}

	t.Run("create", func(t *testing.T) {
		aggregate.Scenario(userrequest.Type).
			When(func() (*userrequest.UserRequest, error) {
				return userrequest.Create(id, "125962981", userID, now)
			}).
			Then(1, event.ToEnvelope(created, now)).
			AssertOn(t)
	})

	t.Run("start then finish", func(t *testing.T) {
		aggregate.Scenario(userrequest.Type).
			Given(given(created)...).
			When(func(r *userrequest.UserRequest) error {
				if err := r.Start(now); err != nil {
					return err
				}

				return r.Finish(response, now)
			}).
			Then(3,
				event.ToEnvelope(&userrequest.Started{ID: id}, now),
				event.ToEnvelope(&userrequest.Finished{
					ID:            id,
					TwitterUserID: "125962981",
					UserID:        userID,
					StatusCode:    http.StatusOK,
					ResponseBody:  response.Body,
				}, now),
			).
			AssertOn(t)
	})

	t.Run("a request starts once", func(t *testing.T) {
		aggregate.Scenario(userrequest.Type).
			Given(given(created, &userrequest.Started{ID: id})...).
			When(func(r *userrequest.UserRequest) error { return r.Start(now) }).
			ThenError(userrequest.ErrAlreadyStarted).
			AssertOn(t)
	})

	t.Run("a request finishes once, after starting", func(t *testing.T) {
		aggregate.Scenario(userrequest.Type).
			Given(given(created)...).
			When(func(r *userrequest.UserRequest) error { return r.Finish(response, now) }).
			ThenError(userrequest.ErrNotStarted).
			AssertOn(t)

		finished := &userrequest.Finished{ID: id, StatusCode: http.StatusOK, ResponseBody: response.Body}

		aggregate.Scenario(userrequest.Type).
			Given(given(created, &userrequest.Started{ID: id}, finished)...).
			When(func(r *userrequest.UserRequest) error { return r.Finish(response, now) }).
			ThenError(userrequest.ErrAlreadyFinished).
			AssertOn(t)
	})
}

func TestResponse_TwitterUserName(t *testing.T) {
	name, err := userrequest.Response{
		StatusCode: http.StatusOK,
		Body:       `{"data":{"id":"125962981","name":"bouzuya","username":"bouzuya"}}`,
	}.TwitterUserName()
	require.NoError(t, err)
	assert.Equal(t, "bouzuya", name)

	_, err = userrequest.Response{StatusCode: http.StatusTooManyRequests, Body: "{}"}.TwitterUserName()
	assert.ErrorIs(t, err, userrequest.ErrUnexpectedStatus)

	_, err = userrequest.Response{StatusCode: http.StatusOK, Body: `{"data":{}}`}.TwitterUserName()
	assert.ErrorIs(t, err, userrequest.ErrMissingUserName)

	_, err = userrequest.Response{StatusCode: http.StatusOK, Body: "not json"}.TwitterUserName()
	assert.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}

		if r.URL.Path != "/2/users/125962981" {
			w.WriteHeader(http.StatusNotFound)
			return
		}

		_, _ = w.Write([]byte(`{"data":{"username":"bouzuya"}}`))
	}))
	defer server.Close()

	fetcher := userrequest.HTTPFetcher{Client: server.Client(), BaseURL: server.URL, BearerToken: "token"}

	response, err := fetcher.FetchUser(context.Background(), "125962981")
	require.NoError(t, err)
	assert.Equal(t, http.StatusOK, response.StatusCode)

	name, err := response.TwitterUserName()
	require.NoError(t, err)
	assert.Equal(t, "bouzuya", name)

	response, err = userrequest.HTTPFetcher{Client: server.Client(), BaseURL: server.URL}.FetchUser(context.Background(), "125962981")
	require.NoError(t, err)
	assert.Equal(t, http.StatusUnauthorized, response.StatusCode)
}
