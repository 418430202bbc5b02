// Package issueblocklink contains the IssueBlockLink Aggregate Root,
// recording that an Issue blocks another one.
package issueblocklink

import (
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issue"
	"github.com/get-eventually/tracker/message"
)

// Errors that can be returned by domain commands on an IssueBlockLink.
var (
	ErrSelfBlock        = errors.New("issueblocklink.IssueBlockLink: an issue cannot block itself")
	ErrAlreadyBlocked   = errors.New("issueblocklink.IssueBlockLink: already blocked")
	ErrAlreadyUnblocked = errors.New("issueblocklink.IssueBlockLink: already unblocked")
)

// ID identifies the link between an Issue and the Issue it blocks.
type ID struct {
	Issue   issue.Number `json:"issue"`
	Blocked issue.Number `json:"blocked_issue"`
}

func (id ID) String() string { return id.Issue.String() + "-blocks-" + id.Blocked.String() }

// Status is the state of an IssueBlockLink.
type Status string

// All the Status values of an IssueBlockLink.
const (
	StatusBlocked   Status = "blocked"
	StatusUnblocked Status = "unblocked"
)

// Blocked is the Domain Event recorded when an Issue blocks another one
// for the first time.
type Blocked struct {
	ID ID `json:"id"`
}

// Name implements message.Message.
func (*Blocked) Name() string { return "issue_blocked" }

// InitialEvent implements aggregate.InitialEvent.
func (*Blocked) InitialEvent() {}

// Unblocked is the Domain Event recorded when the blocking Issue is unlinked.
type Unblocked struct{}

// Name implements message.Message.
func (*Unblocked) Name() string { return "issue_unblocked" }

// Reblocked is the Domain Event recorded when an unblocked link is blocked again.
type Reblocked struct{}

// Name implements message.Message.
func (*Reblocked) Name() string { return "issue_reblocked" }

// Codec encodes and decodes all the IssueBlockLink Domain Events.
var Codec = event.MustNewJSONCodec(
	func() message.Message { return &Blocked{} },
	func() message.Message { return &Unblocked{} },
	func() message.Message { return &Reblocked{} },
)

// Type represents the Aggregate Root type for usage with the aggregate package.
var Type = aggregate.Type[ID, *IssueBlockLink]{
	Name:    "issue_block_link",
	Factory: func() *IssueBlockLink { return new(IssueBlockLink) },
}

// IssueBlockLink tracks whether an Issue is currently blocking another one.
type IssueBlockLink struct {
	aggregate.BaseRoot

	ID     ID
	Status Status
}

// AggregateID implements aggregate.Root.
func (l *IssueBlockLink) AggregateID() ID { return l.ID }

// Apply implements aggregate.Root.
func (l *IssueBlockLink) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *Blocked:
		l.ID = evt.ID
		l.Status = StatusBlocked
	case *Reblocked:
		l.Status = StatusBlocked
	case *Unblocked:
		l.Status = StatusUnblocked
	default:
		return fmt.Errorf("issueblocklink.IssueBlockLink.Apply: invalid event, %T", evt)
	}

	return nil
}

// Block creates the link of an Issue blocking another one.
func Block(streamID event.StreamID, blocking, blocked issue.Number, now time.Time) (*IssueBlockLink, error) {
	id := ID{Issue: blocking, Blocked: blocked}

	if blocking == blocked {
		return nil, fmt.Errorf("issueblocklink.Block: failed to block %s, %w", id, ErrSelfBlock)
	}

	link := Type.Factory()

	if err := aggregate.Create(link, streamID, event.ToEnvelope(&Blocked{ID: id}, now)); err != nil {
		return nil, fmt.Errorf("issueblocklink.Block: failed to block %s, %w", id, err)
	}

	return link, nil
}

// Unblock removes the block, failing with ErrAlreadyUnblocked if there is none.
func (l *IssueBlockLink) Unblock(now time.Time) error {
	if l.Status == StatusUnblocked {
		return fmt.Errorf("issueblocklink.Unblock: failed to unblock %s, %w", l.ID, ErrAlreadyUnblocked)
	}

	if err := aggregate.RecordThat[ID](l, event.ToEnvelope(&Unblocked{}, now)); err != nil {
		return fmt.Errorf("issueblocklink.Unblock: failed to unblock %s, %w", l.ID, err)
	}

	return nil
}

// Reblock restores a removed block, failing with ErrAlreadyBlocked if it is in place.
func (l *IssueBlockLink) Reblock(now time.Time) error {
	if l.Status == StatusBlocked {
		return fmt.Errorf("issueblocklink.Reblock: failed to block %s, %w", l.ID, ErrAlreadyBlocked)
	}

	if err := aggregate.RecordThat[ID](l, event.ToEnvelope(&Reblocked{}, now)); err != nil {
		return fmt.Errorf("issueblocklink.Reblock: failed to block %s, %w", l.ID, err)
	}

	return nil
}
