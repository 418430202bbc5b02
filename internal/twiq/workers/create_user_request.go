package workers

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.Handler = CreateUserRequestHandler{}

// CreateUserRequestHandler creates the UserRequest of every user.Requested Event.
type CreateUserRequestHandler struct {
	Clock        func() time.Time
	UserRequests UserRequestRepository
}

// Handle implements the worker.Handler interface.
func (h CreateUserRequestHandler) Handle(ctx context.Context, evt event.Persisted) error {
	requested, ok := evt.Message.(*user.Requested)
	if !ok {
		return nil
	}

	_, found, err := h.UserRequests.Find(ctx, requested.RequestID)
	if err != nil {
		return fmt.Errorf("workers.CreateUserRequest: failed to find request %s, %w", requested.RequestID, err)
	}

	if found {
		return nil
	}

	request, err := userrequest.Create(requested.RequestID, requested.TwitterUserID, requested.ID, h.Clock())
	if err != nil {
		return fmt.Errorf("workers.CreateUserRequest: %w", err)
	}

	if err := h.UserRequests.Save(ctx, request); err != nil {
		return fmt.Errorf("workers.CreateUserRequest: failed to save request %s, %w", requested.RequestID, err)
	}

	return nil
}
