package user_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/message"
)

func TestUser(t *testing.T) {
	now := time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)
	id := user.NewID()
	requestID := user.NewRequestID()
	created := &user.Created{ID: id, TwitterUserID: "125962981"}

	given := func(events ...message.Message) []event.Persisted {
		return aggregate.History(id.StreamID(), now, events...)
	}

	t.Run("create", func(t *testing.T) {
		aggregate.Scenario(user.Type).
			When(func() (*user.User, error) { return user.Create(id, "125962981", now) }).
			Then(1, event.ToEnvelope(created, now)).
			AssertOn(t)

		aggregate.Scenario(user.Type).
			When(func() (*user.User, error) { return user.Create(id, "", now) }).
			ThenError(user.ErrEmptyTwitterUserID).
			AssertOn(t)
	})

	t.Run("request", func(t *testing.T) {
		aggregate.Scenario(user.Type).
			Given(given(created)...).
			When(func(u *user.User) error { return u.Request(requestID, now) }).
			Then(2, event.ToEnvelope(&user.Requested{
				ID:            id,
				TwitterUserID: "125962981",
				RequestID:     requestID,
				At:            now,
			}, now)).
			AssertOn(t)
	})

	t.Run("requests are limited to one per day", func(t *testing.T) {
		requested := &user.Requested{ID: id, TwitterUserID: "125962981", RequestID: requestID, At: now}

		aggregate.Scenario(user.Type).
			Given(given(created, requested)...).
			When(func(u *user.User) error { return u.Request(user.NewRequestID(), now.Add(23*time.Hour)) }).
			ThenError(user.ErrTooManyRequests).
			AssertOn(t)

		u, err := aggregate.FromEvents(user.Type, given(created, requested))
		require.NoError(t, err)
		require.NoError(t, u.Request(user.NewRequestID(), now.Add(user.RequestInterval)))
		assert.Equal(t, now.Add(user.RequestInterval), u.RequestedAt)
	})

	t.Run("update", func(t *testing.T) {
		aggregate.Scenario(user.Type).
			Given(given(created)...).
			When(func(u *user.User) error { return u.Update("bouzuya", now) }).
			Then(2, event.ToEnvelope(&user.Updated{
				ID:              id,
				TwitterUserID:   "125962981",
				TwitterUserName: "bouzuya",
			}, now)).
			AssertOn(t)

		aggregate.Scenario(user.Type).
			Given(given(created)...).
			When(func(u *user.User) error { return u.Update("", now) }).
			ThenError(user.ErrEmptyTwitterUserName).
			AssertOn(t)
	})
}

func TestCodec(t *testing.T) {
	id := user.NewID()
	requested := &user.Requested{
		ID:            id,
		TwitterUserID: "125962981",
		RequestID:     user.NewRequestID(),
		At:            time.Date(2022, 9, 6, 22, 58, 0, 123000, time.UTC),
	}

	typ, payload, err := user.Codec.Encode(requested)
	require.NoError(t, err)
	assert.Equal(t, event.Type("user_requested"), typ)
	assert.Contains(t, string(payload), `"user_id":"`+id.String()+`"`)

	decoded, err := user.Codec.Decode(typ, payload)
	require.NoError(t, err)
	assert.Equal(t, requested, decoded)
}
