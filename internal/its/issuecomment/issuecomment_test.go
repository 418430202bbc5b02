package issuecomment_test

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issuecomment"
	"github.com/get-eventually/tracker/message"
)

func TestIssueComment(t *testing.T) {
	now := time.Date(2022, 9, 6, 22, 58, 0, 0, time.UTC)
	streamID := event.NewStreamID()
	id := issuecomment.ID(streamID)
	created := &issuecomment.Created{ID: id, Issue: 1, Text: "first"}

	given := func(events ...message.Message) []event.Persisted {
		return aggregate.History(streamID, now, events...)
	}

	t.Run("create", func(t *testing.T) {
		aggregate.Scenario(issuecomment.Type).
			When(func() (*issuecomment.IssueComment, error) {
				return issuecomment.Create(streamID, 1, "first", now)
			}).
			Then(1, event.ToEnvelope(created, now)).
			AssertOn(t)

		aggregate.Scenario(issuecomment.Type).
			When(func() (*issuecomment.IssueComment, error) {
				return issuecomment.Create(streamID, 1, strings.Repeat("a", 256), now)
			}).
			ThenError(issuecomment.ErrTextTooLong).
			AssertOn(t)
	})

	t.Run("update any number of times", func(t *testing.T) {
		aggregate.Scenario(issuecomment.Type).
			Given(given(created, &issuecomment.Updated{Text: "second"})...).
			When(func(c *issuecomment.IssueComment) error {
				return c.Update("third", now)
			}).
			Then(3, event.ToEnvelope(&issuecomment.Updated{Text: "third"}, now)).
			AssertOn(t)

		aggregate.Scenario(issuecomment.Type).
			Given(given(created)...).
			When(func(c *issuecomment.IssueComment) error {
				return c.Update(strings.Repeat("a", 256), now)
			}).
			ThenError(issuecomment.ErrTextTooLong).
			AssertOn(t)
	})

	t.Run("delete", func(t *testing.T) {
		aggregate.Scenario(issuecomment.Type).
			Given(given(created)...).
			When(func(c *issuecomment.IssueComment) error {
				return c.Delete(now)
			}).
			Then(2, event.ToEnvelope(&issuecomment.Deleted{}, now)).
			AssertOn(t)
	})

	t.Run("deleted comments cannot change", func(t *testing.T) {
		aggregate.Scenario(issuecomment.Type).
			Given(given(created, &issuecomment.Deleted{})...).
			When(func(c *issuecomment.IssueComment) error {
				return c.Update("again", now)
			}).
			ThenError(issuecomment.ErrDeleted).
			AssertOn(t)

		aggregate.Scenario(issuecomment.Type).
			Given(given(created, &issuecomment.Deleted{})...).
			When(func(c *issuecomment.IssueComment) error {
				return c.Delete(now)
			}).
			ThenError(issuecomment.ErrDeleted).
			AssertOn(t)
	})

	t.Run("state is rebuilt from events", func(t *testing.T) {
		c, err := aggregate.FromEvents(issuecomment.Type, given(created, &issuecomment.Updated{Text: "second"}))
		require.NoError(t, err)

		assert.Equal(t, id, c.AggregateID())
		assert.Equal(t, "second", c.Text)
		assert.False(t, c.Deleted)
	})
}

func TestCodec(t *testing.T) {
	id := issuecomment.ID(event.NewStreamID())

	typ, payload, err := issuecomment.Codec.Encode(&issuecomment.Created{ID: id, Issue: 3, Text: "hi"})
	require.NoError(t, err)
	assert.Equal(t, event.Type("issue_comment_created"), typ)
	assert.JSONEq(t, `{"issue_comment_id":"`+id.String()+`","issue_id":3,"text":"hi"}`, string(payload))
}
