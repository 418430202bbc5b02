package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
)

// RequestUser is the Command asking for the profile of a Twitter user
// to be fetched.
type RequestUser struct {
	TwitterUserID string
}

// Name implements message.Message.
func (RequestUser) Name() string { return "RequestUser" }

var _ command.Handler[RequestUser] = RequestUserHandler{}

// RequestUserHandler is the Command Handler for RequestUser commands.
//
// The User of a Twitter user id is found through the Index, and created
// on its first request.
type RequestUserHandler struct {
	Clock      func() time.Time
	Index      event.Index
	Repository UserRepository

	// Optional, default to user.NewID and user.NewRequestID.
	NewUserID    func() user.ID
	NewRequestID func() user.RequestID
}

func (h RequestUserHandler) userID(ctx context.Context, twitterUserID string) (user.ID, error) {
	key := user.TwitterUserIndexKey(twitterUserID)

	streamID, ok, err := h.Index.LookupStreamID(ctx, key)
	if err != nil {
		return user.ID{}, fmt.Errorf("failed to look up %s, %w", key, err)
	}

	if ok {
		return user.ID(streamID), nil
	}

	newID := user.NewID
	if h.NewUserID != nil {
		newID = h.NewUserID
	}

	id := newID()

	err = h.Index.RegisterStreamID(ctx, key, id.StreamID())
	if errors.Is(err, event.ErrIndexKeyTaken) {
		// Registered concurrently.
		return h.userID(ctx, twitterUserID)
	}

	if err != nil {
		return user.ID{}, fmt.Errorf("failed to register %s, %w", key, err)
	}

	return id, nil
}

// Handle implements the command.Handler interface.
func (h RequestUserHandler) Handle(ctx context.Context, cmd command.Envelope[RequestUser]) error {
	twitterUserID := cmd.Message.TwitterUserID
	if twitterUserID == "" {
		return fmt.Errorf("workers.RequestUser: %w", user.ErrEmptyTwitterUserID)
	}

	id, err := h.userID(ctx, twitterUserID)
	if err != nil {
		return fmt.Errorf("workers.RequestUser: %w", err)
	}

	now := h.Clock()

	u, ok, err := h.Repository.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("workers.RequestUser: failed to find user %s, %w", id, err)
	}

	// The Index entry may outlive a failed Save: the User is then created
	// on the registered Event Stream.
	if !ok {
		if u, err = user.Create(id, twitterUserID, now); err != nil {
			return fmt.Errorf("workers.RequestUser: %w", err)
		}
	}

	newRequestID := user.NewRequestID
	if h.NewRequestID != nil {
		newRequestID = h.NewRequestID
	}

	if err := u.Request(newRequestID(), now); err != nil {
		return fmt.Errorf("workers.RequestUser: %w", err)
	}

	if err := h.Repository.Save(ctx, u); err != nil {
		return fmt.Errorf("workers.RequestUser: failed to save user %s, %w", id, err)
	}

	return nil
}
