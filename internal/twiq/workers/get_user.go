package workers

import (
	"context"
	"fmt"

	"github.com/get-eventually/tracker/query"
)

// GetUser is the Query returning the QueryUser of a Twitter user id.
type GetUser struct {
	TwitterUserID string
}

// Name implements message.Message.
func (GetUser) Name() string { return "GetUser" }

var _ query.Handler[GetUser, QueryUser] = GetUserHandler{}

// GetUserHandler is the Query Handler for GetUser queries.
type GetUserHandler struct {
	QueryUsers QueryUserStore
}

// Handle implements the query.Handler interface.
//
// ErrUserNotFound is returned until the User has been fetched once.
func (h GetUserHandler) Handle(ctx context.Context, q query.Envelope[GetUser]) (QueryUser, error) {
	twitterUserID := q.Message.TwitterUserID

	u, ok, err := h.QueryUsers.FindByTwitterUserID(ctx, twitterUserID)
	if err != nil {
		return QueryUser{}, fmt.Errorf("workers.GetUser: failed to find %s, %w", twitterUserID, err)
	}

	if !ok {
		return QueryUser{}, fmt.Errorf("workers.GetUser: %s, %w", twitterUserID, ErrUserNotFound)
	}

	return u, nil
}
