package issueblocklink_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issueblocklink"
	"github.com/get-eventually/tracker/message"
)

func TestIssueBlockLink(t *testing.T) {
	now := time.Now()
	streamID := event.NewStreamID()
	id := issueblocklink.ID{Issue: 1, Blocked: 2}

	given := func(events ...message.Message) []event.Persisted {
		return aggregate.History(streamID, now, events...)
	}

	t.Run("an issue can block another one", func(t *testing.T) {
		aggregate.Scenario(issueblocklink.Type).
			When(func() (*issueblocklink.IssueBlockLink, error) {
				return issueblocklink.Block(streamID, 1, 2, now)
			}).
			Then(1, event.ToEnvelope(&issueblocklink.Blocked{ID: id}, now)).
			AssertOn(t)
	})

	t.Run("an issue cannot block itself", func(t *testing.T) {
		aggregate.Scenario(issueblocklink.Type).
			When(func() (*issueblocklink.IssueBlockLink, error) {
				return issueblocklink.Block(streamID, 1, 1, now)
			}).
			ThenError(issueblocklink.ErrSelfBlock).
			AssertOn(t)
	})

	t.Run("a block can be removed and restored", func(t *testing.T) {
		aggregate.Scenario(issueblocklink.Type).
			Given(given(&issueblocklink.Blocked{ID: id})...).
			When(func(l *issueblocklink.IssueBlockLink) error {
				if err := l.Unblock(now); err != nil {
					return err
				}

				return l.Reblock(now)
			}).
			Then(3,
				event.ToEnvelope(&issueblocklink.Unblocked{}, now),
				event.ToEnvelope(&issueblocklink.Reblocked{}, now),
			).
			AssertOn(t)
	})

	t.Run("unblocking twice fails", func(t *testing.T) {
		aggregate.Scenario(issueblocklink.Type).
			Given(given(&issueblocklink.Blocked{ID: id}, &issueblocklink.Unblocked{})...).
			When(func(l *issueblocklink.IssueBlockLink) error { return l.Unblock(now) }).
			ThenError(issueblocklink.ErrAlreadyUnblocked).
			AssertOn(t)
	})

	t.Run("blocking an active block fails", func(t *testing.T) {
		aggregate.Scenario(issueblocklink.Type).
			Given(given(&issueblocklink.Blocked{ID: id})...).
			When(func(l *issueblocklink.IssueBlockLink) error { return l.Reblock(now) }).
			ThenError(issueblocklink.ErrAlreadyBlocked).
			AssertOn(t)
	})

	t.Run("the id names both issues", func(t *testing.T) {
		assert.Equal(t, "1-blocks-2", id.String())
	})
}
