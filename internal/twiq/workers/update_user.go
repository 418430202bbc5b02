package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/logger"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.Handler = UpdateUserHandler{}

// UpdateUserHandler stores the Twitter user name of every finished
// UserRequest on its User.
//
// Unsuccessful responses are logged and skipped.
type UpdateUserHandler struct {
	Clock func() time.Time
	Users UserRepository

	// Optional.
	Logger logger.Logger
}

// Handle implements the worker.Handler interface.
func (h UpdateUserHandler) Handle(ctx context.Context, evt event.Persisted) error {
	finished, ok := evt.Message.(*userrequest.Finished)
	if !ok {
		return nil
	}

	name, err := finished.Response().TwitterUserName()
	if err != nil {
		logger.Info(h.Logger, "Skipping unsuccessful user request",
			logger.With("user_request.id", finished.ID.String()),
			logger.With("user_request.status_code", finished.StatusCode),
			logger.Err(err),
		)

		return nil
	}

	u, found, err := h.Users.Find(ctx, finished.UserID)
	if err != nil {
		return fmt.Errorf("workers.UpdateUser: failed to find user %s, %w", finished.UserID, err)
	}

	if !found {
		return fmt.Errorf("workers.UpdateUser: user %s, %w", finished.UserID, ErrUserNotFound)
	}

	if u.TwitterUserName == name {
		return nil
	}

	if err := u.Update(name, h.Clock()); err != nil {
		return fmt.Errorf("workers.UpdateUser: %w", err)
	}

	if err := h.Users.Save(ctx, u); err != nil {
		return fmt.Errorf("workers.UpdateUser: failed to save user %s, %w", finished.UserID, err)
	}

	return nil
}
