// Package userrequest contains the UserRequest Aggregate Root: one fetch
// of a User profile from the Twitter API.
package userrequest

import (
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/message"
)

// Errors that can be returned by domain commands on a UserRequest.
var (
	ErrAlreadyStarted  = errors.New("userrequest.UserRequest: already started")
	ErrNotStarted      = errors.New("userrequest.UserRequest: not started")
	ErrAlreadyFinished = errors.New("userrequest.UserRequest: already finished")
)

// ID is the unique identifier of a UserRequest, and of its Event Stream.
type ID = user.RequestID

// Status is the state of a UserRequest.
type Status string

// All the Status values of a UserRequest.
const (
	StatusCreated  Status = "created"
	StatusStarted  Status = "started"
	StatusFinished Status = "finished"
)

// Created is the Domain Event recorded when a UserRequest is created.
type Created struct {
	ID            ID      `json:"user_request_id"`
	TwitterUserID string  `json:"twitter_user_id"`
	UserID        user.ID `json:"user_id"`
}

// Name implements message.Message.
func (*Created) Name() string { return "user_request_created" }

// InitialEvent implements aggregate.InitialEvent.
func (*Created) InitialEvent() {}

// Started is the Domain Event recorded before calling the Twitter API.
type Started struct {
	ID ID `json:"user_request_id"`
}

// Name implements message.Message.
func (*Started) Name() string { return "user_request_started" }

// Finished is the Domain Event recorded with the Twitter API response.
type Finished struct {
	ID            ID      `json:"user_request_id"`
	TwitterUserID string  `json:"twitter_user_id"`
	UserID        user.ID `json:"user_id"`
	StatusCode    int     `json:"status_code"`
	ResponseBody  string  `json:"response_body"`
}

// Name implements message.Message.
func (*Finished) Name() string { return "user_request_finished" }

// Response returns the Twitter API response carried by the Event.
func (evt *Finished) Response() Response {
	return Response{StatusCode: evt.StatusCode, Body: evt.ResponseBody}
}

// Codec encodes and decodes all the UserRequest Domain Events.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &Created{} },
	func() message.Message { return &Started{} },
	func() message.Message { return &Finished{} },
)

// Type represents the Aggregate Root type for usage with the aggregate package.
var Type = aggregate.Type[ID, *UserRequest]{
	Name:    "user_request",
	Factory: func() *UserRequest { return new(UserRequest) },
}

// UserRequest tracks a single fetch of a User profile.
type UserRequest struct {
	aggregate.BaseRoot

	ID            ID
	TwitterUserID string
	UserID        user.ID
	Status        Status
	Response      *Response
}

// AggregateID implements aggregate.Root.
func (r *UserRequest) AggregateID() ID { return r.ID }

// Apply implements aggregate.Root.
func (r *UserRequest) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *Created:
		r.ID = evt.ID
		r.TwitterUserID = evt.TwitterUserID
		r.UserID = evt.UserID
		r.Status = StatusCreated
	case *Started:
		r.Status = StatusStarted
	case *Finished:
		response := evt.Response()
		r.Response = &response
		r.Status = StatusFinished
	default:
		return fmt.Errorf("userrequest.UserRequest.Apply: invalid event, %T", evt)
	}

	return nil
}

// Create creates a new UserRequest for the User.
func Create(id ID, twitterUserID string, userID user.ID, now time.Time) (*UserRequest, error) {
	if twitterUserID == "" {
		return nil, fmt.Errorf("userrequest.Create: failed to create request, %w", user.ErrEmptyTwitterUserID)
	}

	r := Type.Factory()

	if err := aggregate.Create(r, id.StreamID(), event.ToEnvelope(&Created{
		ID:            id,
		TwitterUserID: twitterUserID,
		UserID:        userID,
	}, now)); err != nil {
		return nil, fmt.Errorf("userrequest.Create: failed to create request, %w", err)
	}

	return r, nil
}

// Start marks the UserRequest as being sent.
//
// ErrAlreadyStarted is returned if it was started before, even if it has finished since.
func (r *UserRequest) Start(now time.Time) error {
	if r.Status != StatusCreated {
		return fmt.Errorf("userrequest.Start: failed to start %s, %w", r.ID, ErrAlreadyStarted)
	}

	if err := aggregate.RecordThat[ID](r, event.ToEnvelope(&Started{ID: r.ID}, now)); err != nil {
		return fmt.Errorf("userrequest.Start: failed to start %s, %w", r.ID, err)
	}

	return nil
}

// Finish records the response to a started UserRequest.
func (r *UserRequest) Finish(response Response, now time.Time) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("userrequest.Finish: failed to finish %s, %w", r.ID, err)
	}

	switch r.Status {
	case StatusCreated:
		return wrapErr(ErrNotStarted)
	case StatusFinished:
		return wrapErr(ErrAlreadyFinished)
	case StatusStarted:
	}

	if err := aggregate.RecordThat[ID](r, event.ToEnvelope(&Finished{
		ID:            r.ID,
		TwitterUserID: r.TwitterUserID,
		UserID:        r.UserID,
		StatusCode:    response.StatusCode,
		ResponseBody:  response.Body,
	}, now)); err != nil {
		return wrapErr(err)
	}

	return nil
}
