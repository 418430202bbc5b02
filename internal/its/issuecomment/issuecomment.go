// Package issuecomment contains the IssueComment Aggregate Root.
//
// Comments can be edited any number of times until they are deleted.
package issuecomment

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issue"
	"github.com/get-eventually/tracker/message"
)

// Errors that can be returned by domain commands on an IssueComment.
var (
	ErrTextTooLong = errors.New("issuecomment.IssueComment: text too long")
	ErrDeleted     = errors.New("issuecomment.IssueComment: deleted")
)

// ID identifies an IssueComment, and is the id of its Event Stream.
type ID uuid.UUID

func (id ID) String() string { return uuid.UUID(id).String() }

// StreamID returns the Event Stream of the IssueComment.
func (id ID) StreamID() event.StreamID { return event.StreamID(id) }

// MarshalText implements encoding.TextMarshaler.
func (id ID) MarshalText() ([]byte, error) { return uuid.UUID(id).MarshalText() }

// UnmarshalText implements encoding.TextUnmarshaler.
func (id *ID) UnmarshalText(data []byte) error { return (*uuid.UUID)(id).UnmarshalText(data) }

// Created is the Domain Event recorded when an Issue is commented.
type Created struct {
	ID    ID           `json:"issue_comment_id"`
	Issue issue.Number `json:"issue_id"`
	Text  string       `json:"text"`
}

// Name implements message.Message.
func (*Created) Name() string { return "issue_comment_created" }

// InitialEvent implements aggregate.InitialEvent.
func (*Created) InitialEvent() {}

// Updated is the Domain Event recorded when the text of a comment is edited.
type Updated struct {
	Text string `json:"text"`
}

// Name implements message.Message.
func (*Updated) Name() string { return "issue_comment_updated" }

// Deleted is the Domain Event recorded when a comment is deleted.
type Deleted struct{}

// Name implements message.Message.
func (*Deleted) Name() string { return "issue_comment_deleted" }

// Codec encodes and decodes all the IssueComment Domain Events.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &Created{} },
	func() message.Message { return &Updated{} },
	func() message.Message { return &Deleted{} },
)

// Type represents the Aggregate Root type for usage with the aggregate package.
var Type = aggregate.Type[ID, *IssueComment]{
	Name:    "issue_comment",
	Factory: func() *IssueComment { return new(IssueComment) },
}

// IssueComment is a text attached to an Issue.
type IssueComment struct {
	aggregate.BaseRoot

	ID      ID
	Issue   issue.Number
	Text    string
	Deleted bool
}

// AggregateID implements aggregate.Root.
func (c *IssueComment) AggregateID() ID { return c.ID }

// Apply implements aggregate.Root.
func (c *IssueComment) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *Created:
		c.ID = evt.ID
		c.Issue = evt.Issue
		c.Text = evt.Text
	case *Updated:
		c.Text = evt.Text
	case *Deleted:
		c.Deleted = true
	default:
		return fmt.Errorf("issuecomment.IssueComment.Apply: invalid event, %T", evt)
	}

	return nil
}

func validateText(text string) error {
	if len(text) > issue.MaxTextLength {
		return fmt.Errorf("%w: %d bytes", ErrTextTooLong, len(text))
	}

	return nil
}

// Create comments the Issue with the specified text.
func Create(streamID event.StreamID, n issue.Number, text string, now time.Time) (*IssueComment, error) {
	id := ID(streamID)

	if err := validateText(text); err != nil {
		return nil, fmt.Errorf("issuecomment.Create: failed to comment issue %s, %w", n, err)
	}

	comment := Type.Factory()

	if err := aggregate.Create(comment, streamID, event.ToEnvelope(&Created{ID: id, Issue: n, Text: text}, now)); err != nil {
		return nil, fmt.Errorf("issuecomment.Create: failed to comment issue %s, %w", n, err)
	}

	return comment, nil
}

// Update replaces the text of the comment.
func (c *IssueComment) Update(text string, now time.Time) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("issuecomment.Update: failed to update %s, %w", c.ID, err)
	}

	if c.Deleted {
		return wrapErr(ErrDeleted)
	}

	if err := validateText(text); err != nil {
		return wrapErr(err)
	}

	if err := aggregate.RecordThat[ID](c, event.ToEnvelope(&Updated{Text: text}, now)); err != nil {
		return wrapErr(err)
	}

	return nil
}

// Delete removes the comment. Deleted comments cannot change anymore.
func (c *IssueComment) Delete(now time.Time) error {
	if c.Deleted {
		return fmt.Errorf("issuecomment.Delete: failed to delete %s, %w", c.ID, ErrDeleted)
	}

	if err := aggregate.RecordThat[ID](c, event.ToEnvelope(&Deleted{}, now)); err != nil {
		return fmt.Errorf("issuecomment.Delete: failed to delete %s, %w", c.ID, err)
	}

	return nil
}
