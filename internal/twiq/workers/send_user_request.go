package workers

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/logger"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.Handler = SendUserRequestHandler{}

// SendUserRequestHandler sends every new UserRequest to the Twitter API
// and records its response.
//
// A UserRequest is marked as started before calling the Fetcher, so that
// it is sent at most once: a request that was started but never finished
// is not sent again.
type SendUserRequestHandler struct {
	Clock        func() time.Time
	UserRequests UserRequestRepository
	Fetcher      userrequest.Fetcher

	// Optional.
	Logger logger.Logger
}

// Handle implements the worker.Handler interface.
func (h SendUserRequestHandler) Handle(ctx context.Context, evt event.Persisted) error {
	created, ok := evt.Message.(*userrequest.Created)
	if !ok {
		return nil
	}

	request, found, err := h.UserRequests.Find(ctx, created.ID)
	if err != nil {
		return fmt.Errorf("workers.SendUserRequest: failed to find request %s, %w", created.ID, err)
	}

	if !found {
		return fmt.Errorf("workers.SendUserRequest: request %s, %w", created.ID, ErrUserRequestNotFound)
	}

	if err := request.Start(h.Clock()); errors.Is(err, userrequest.ErrAlreadyStarted) {
		logger.Debug(h.Logger, "User request already sent", logger.With("user_request.id", created.ID.String()))
		return nil
	} else if err != nil {
		return fmt.Errorf("workers.SendUserRequest: %w", err)
	}

	if err := h.UserRequests.Save(ctx, request); err != nil {
		return fmt.Errorf("workers.SendUserRequest: failed to start request %s, %w", created.ID, err)
	}

	response, err := h.Fetcher.FetchUser(ctx, request.TwitterUserID)
	if err != nil {
		return fmt.Errorf("workers.SendUserRequest: failed to fetch user %s, %w", request.TwitterUserID, err)
	}

	if err := request.Finish(response, h.Clock()); err != nil {
		return fmt.Errorf("workers.SendUserRequest: %w", err)
	}

	if err := h.UserRequests.Save(ctx, request); err != nil {
		return fmt.Errorf("workers.SendUserRequest: failed to finish request %s, %w", created.ID, err)
	}

	return nil
}
