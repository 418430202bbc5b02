// Package user contains the User Aggregate Root: a Twitter user
// whose profile can be requested from the Twitter API.
package user

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
)

// RequestInterval is the minimum time between two requests of the same User.
const RequestInterval = 24 * time.Hour

// Errors that can be returned by domain commands on a User.
var (
	ErrEmptyTwitterUserID   = errors.New("user.User: empty twitter user id")
	ErrEmptyTwitterUserName = errors.New("user.User: empty twitter user name")
	ErrTooManyRequests      = errors.New("user.User: already requested in the last 24 hours")
)

// ID is the unique identifier of a User, and of its Event Stream.
type ID uuid.UUID

// NewID returns a new random ID.
func NewID() ID { return ID(event.NewStreamID()) }

func (id ID) String() string { return uuid.UUID(id).String() }

// StreamID returns the Event Stream of the User.
func (id ID) StreamID() event.StreamID { return event.StreamID(id) }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error { return (*uuid.UUID)(id).UnmarshalText(data) }

// RequestID identifies a request of the User profile, and the Event Stream
// of the corresponding userrequest.UserRequest.
type RequestID uuid.UUID

// NewRequestID returns a new random RequestID.
func NewRequestID() RequestID { return RequestID(event.NewStreamID()) }

func (id RequestID) String() string { return uuid.UUID(id).String() }

// StreamID returns the Event Stream of the UserRequest.
func (id RequestID) StreamID() event.StreamID { return event.StreamID(id) }

// MarshalText implements encoding.TextMarshaler.
func (id RequestID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *RequestID) UnmarshalText(data []byte) error { return (*uuid.UUID)(id).UnmarshalText(data) }

// TwitterUserIndexKey is the event.Index key resolving a Twitter user id
// to the Event Stream of the User.
func TwitterUserIndexKey(twitterUserID string) event.IndexKey {
	return event.IndexKey{AggregateType: "twitter_user", AggregateID: twitterUserID}
}

// Created is the Domain Event recorded when a User is created.
type Created struct {
	ID            ID     `json:"user_id"`
	TwitterUserID string `json:"twitter_user_id"`
}

// Name implements message.Message.
func (*Created) Name() string { return "user_created" }

// InitialEvent implements aggregate.InitialEvent.
func (*Created) InitialEvent() {}

// Requested is the Domain Event recorded when the User profile is requested.
type Requested struct {
	ID            ID        `json:"user_id"`
	TwitterUserID string    `json:"twitter_user_id"`
	RequestID     RequestID `json:"user_request_id"`
	At            time.Time `json:"at"`
}

// Name implements message.Message.
func (*Requested) Name() string { return "user_requested" }

// Updated is the Domain Event recorded when a fetched profile is stored on the User.
type Updated struct {
	ID              ID     `json:"user_id"`
	TwitterUserID   string `json:"twitter_user_id"`
	TwitterUserName string `json:"twitter_user_name"`
}

// Name implements message.Message.
func (*Updated) Name() string { return "user_updated" }

// Codec encodes and decodes all the User Domain Events.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &Created{} },
	func() message.Message { return &Requested{} },
	func() message.Message { return &Updated{} },
)

// Type represents the Aggregate Root type for usage with the aggregate package.
var Type = aggregate.Type[ID, *User]{
	Name:    "user",
	Factory: func() *User { return new(User) },
}

// User is a Twitter user known to the system.
type User struct {
	aggregate.BaseRoot

	ID              ID
	TwitterUserID   string
	TwitterUserName string
	RequestedAt     time.Time
}

// AggregateID implements aggregate.Root.
func (u *User) AggregateID() ID { return u.ID }

// Apply implements aggregate.Root.
func (u *User) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *Created:
		u.ID = evt.ID
		u.TwitterUserID = evt.TwitterUserID
	case *Requested:
		u.RequestedAt = evt.At
	case *Updated:
		u.TwitterUserName = evt.TwitterUserName
	default:
		return fmt.Errorf("user.User.Apply: invalid event, %T", evt)
	}

	return nil
}

// Create creates a new User for the Twitter user id.
func Create(id ID, twitterUserID string, now time.Time) (*User, error) {
	if twitterUserID == "" {
		return nil, fmt.Errorf("user.Create: failed to create user, %w", ErrEmptyTwitterUserID)
	}

	u := Type.Factory()

	if err := aggregate.Create(u, id.StreamID(), event.ToEnvelope(&Created{
		ID:            id,
		TwitterUserID: twitterUserID,
	}, now)); err != nil {
		return nil, fmt.Errorf("user.Create: failed to create user, %w", err)
	}

	return u, nil
}

// Request asks for the User profile to be fetched through a new request.
//
// ErrTooManyRequests is returned if the User was requested less than
// RequestInterval ago.
func (u *User) Request(requestID RequestID, now time.Time) error {
	now = event.NormalizeTime(now)

	if !u.RequestedAt.IsZero() && now.Before(u.RequestedAt.Add(RequestInterval)) {
		return fmt.Errorf("user.Request: failed to request %s, %w", u.ID, ErrTooManyRequests)
	}

	if err := aggregate.RecordThat[ID](u, event.ToEnvelope(&Requested{
		ID:            u.ID,
		TwitterUserID: u.TwitterUserID,
		RequestID:     requestID,
		At:            now,
	}, now)); err != nil {
		return fmt.Errorf("user.Request: failed to request %s, %w", u.ID, err)
	}

	return nil
}

// Update stores the Twitter user name fetched for the User.
func (u *User) Update(twitterUserName string, now time.Time) error {
	if twitterUserName == "" {
		return fmt.Errorf("user.Update: failed to update %s, %w", u.ID, ErrEmptyTwitterUserName)
	}

	if err := aggregate.RecordThat[ID](u, event.ToEnvelope(&Updated{
		ID:              u.ID,
		TwitterUserID:   u.TwitterUserID,
		TwitterUserName: twitterUserName,
	}, now)); err != nil {
		return fmt.Errorf("user.Update: failed to update %s, %w", u.ID, err)
	}

	return nil
}
