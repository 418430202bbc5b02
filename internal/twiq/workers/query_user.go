package workers

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/worker"
)

// ErrQueryUserConflict is returned by QueryUserStore.Store when the stored
// QueryUser is not the expected one.
var ErrQueryUserConflict = errors.New("workers: query user changed concurrently")

// QueryUser is the read model of a User, keyed by Twitter user id.
type QueryUser struct {
	UserID          user.ID
	TwitterUserID   string
	TwitterUserName string
}

// QueryUserStore stores the QueryUser read models.
type QueryUserStore interface {
	FindByTwitterUserID(ctx context.Context, twitterUserID string) (QueryUser, bool, error)

	// Store replaces before with after, failing with ErrQueryUserConflict
	// if before is not the QueryUser currently stored. A nil before
	// expects no QueryUser to be stored.
	Store(ctx context.Context, before *QueryUser, after QueryUser) error
}

var _ QueryUserStore = new(InMemoryQueryUserStore)

// InMemoryQueryUserStore is a thread-safe, in-memory QueryUserStore.
type InMemoryQueryUserStore struct {
	mx    sync.RWMutex
	users map[string]QueryUser
}

// NewInMemoryQueryUserStore returns an empty InMemoryQueryUserStore.
func NewInMemoryQueryUserStore() *InMemoryQueryUserStore {
	return &InMemoryQueryUserStore{
		mx:    sync.RWMutex{},
		users: make(map[string]QueryUser),
	}
}

// FindByTwitterUserID implements the QueryUserStore interface.
func (s *InMemoryQueryUserStore) FindByTwitterUserID(_ context.Context, twitterUserID string) (QueryUser, bool, error) {
	s.mx.RLock()
	defer s.mx.RUnlock()

	u, ok := s.users[twitterUserID]

	return u, ok, nil
}

// Store implements the QueryUserStore interface.
func (s *InMemoryQueryUserStore) Store(_ context.Context, before *QueryUser, after QueryUser) error {
	s.mx.Lock()
	defer s.mx.Unlock()

	current, ok := s.users[after.TwitterUserID]

	if expected := before != nil; ok != expected || (ok && current != *before) {
		return fmt.Errorf("workers.InMemoryQueryUserStore: %s, %w", after.TwitterUserID, ErrQueryUserConflict)
	}

	s.users[after.TwitterUserID] = after

	return nil
}

var _ worker.Handler = UpdateQueryUserHandler{}

// UpdateQueryUserHandler keeps the QueryUser of every updated User current.
type UpdateQueryUserHandler struct {
	QueryUsers QueryUserStore
}

// Handle implements the worker.Handler interface.
func (h UpdateQueryUserHandler) Handle(ctx context.Context, evt event.Persisted) error {
	updated, ok := evt.Message.(*user.Updated)
	if !ok {
		return nil
	}

	after := QueryUser{
		UserID:          updated.ID,
		TwitterUserID:   updated.TwitterUserID,
		TwitterUserName: updated.TwitterUserName,
	}

	current, found, err := h.QueryUsers.FindByTwitterUserID(ctx, updated.TwitterUserID)
	if err != nil {
		return fmt.Errorf("workers.UpdateQueryUser: failed to find %s, %w", updated.TwitterUserID, err)
	}

	var before *QueryUser
	if found {
		if current == after {
			return nil
		}

		before = &current
	}

	if err := h.QueryUsers.Store(ctx, before, after); err != nil {
		return fmt.Errorf("workers.UpdateQueryUser: %w", err)
	}

	return nil
}
