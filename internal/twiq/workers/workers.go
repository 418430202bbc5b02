// Package workers contains the Command and Event handlers fetching
// Twitter user profiles: a User is requested, a UserRequest is created and
// sent, and its response updates both the User and the query side.
package workers

import (
	"errors"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/logger"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/worker"
)

// Names of the Workers, also used as their checkpoint keys.
const (
	CreateUserRequestName worker.Name = "create_user_request"
	SendUserRequestName   worker.Name = "send_user_request"
	UpdateUserName        worker.Name = "update_user"
	UpdateQueryUserName   worker.Name = "update_query_user"
)

// Errors returned when an Event refers to an Aggregate Root that does not exist.
var (
	ErrUserNotFound        = errors.New("workers: user not found")
	ErrUserRequestNotFound = errors.New("workers: user request not found")
)

type (
	// UserRepository is the Repository of Users.
	UserRepository = aggregate.Repository[user.ID, *user.User]

	// UserRequestRepository is the Repository of UserRequests.
	UserRequestRepository = aggregate.Repository[userrequest.ID, *userrequest.UserRequest]
)

// Codec decodes all the Events the Workers read from the Event Log.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &user.Created{} },
	func() message.Message { return &user.Requested{} },
	func() message.Message { return &user.Updated{} },
	func() message.Message { return &userrequest.Created{} },
	func() message.Message { return &userrequest.Started{} },
	func() message.Message { return &userrequest.Finished{} },
)

// NewUserRepository returns the UserRepository backed by the event.Store.
func NewUserRepository(store event.Store) aggregate.EventSourcedRepository[user.ID, *user.User] {
	return aggregate.NewEventSourcedRepository(store, user.Codec, user.Type)
}

// NewUserRequestRepository returns the UserRequestRepository backed by the event.Store.
func NewUserRequestRepository(
	store event.Store,
) aggregate.EventSourcedRepository[userrequest.ID, *userrequest.UserRequest] {
	return aggregate.NewEventSourcedRepository(store, userrequest.Codec, userrequest.Type)
}

// Dependencies holds everything the Worker handlers need.
type Dependencies struct {
	Clock        func() time.Time
	Users        UserRepository
	UserRequests UserRequestRepository
	Fetcher      userrequest.Fetcher
	QueryUsers   QueryUserStore

	// Optional.
	Logger logger.Logger
}

// Handlers returns the handler of every Worker, by Worker name.
func (deps Dependencies) Handlers() map[worker.Name]worker.Handler {
	return map[worker.Name]worker.Handler{
		CreateUserRequestName: CreateUserRequestHandler{
			Clock:        deps.Clock,
			UserRequests: deps.UserRequests,
		},
		SendUserRequestName: SendUserRequestHandler{
			Clock:        deps.Clock,
			UserRequests: deps.UserRequests,
			Fetcher:      deps.Fetcher,
			Logger:       deps.Logger,
		},
		UpdateUserName: UpdateUserHandler{
			Clock:  deps.Clock,
			Users:  deps.Users,
			Logger: deps.Logger,
		},
		UpdateQueryUserName: UpdateQueryUserHandler{
			QueryUsers: deps.QueryUsers,
		},
	}
}
