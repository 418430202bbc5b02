package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issueblocklink"
)

// ErrLinkNotFound is returned when unblocking Issues that were never blocked.
var ErrLinkNotFound = errors.New("command: issue block link not found")

// IssueBlockLinkRepository is the Repository of IssueBlockLinks used by the Command Handlers.
type IssueBlockLinkRepository = aggregate.Repository[issueblocklink.ID, *issueblocklink.IssueBlockLink]

// BlockIssue is the Command used to record that an Issue blocks another one.
type BlockIssue struct {
	ID issueblocklink.ID
}

// Name implements message.Message.
func (BlockIssue) Name() string { return "BlockIssue" }

var _ command.Handler[BlockIssue] = BlockIssueHandler{}

// BlockIssueHandler is the Command Handler for BlockIssue commands.
//
// Both Issues must exist. A link that was unblocked before is blocked again.
type BlockIssueHandler struct {
	Clock                    func() time.Time
	IssueRepository          IssueRepository
	IssueBlockLinkRepository IssueBlockLinkRepository
}

// Handle implements command.Handler.
func (h BlockIssueHandler) Handle(ctx context.Context, cmd command.Envelope[BlockIssue]) error {
	id := cmd.Message.ID
	now := h.Clock()

	link, ok, err := h.IssueBlockLinkRepository.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("command.BlockIssueHandler: failed to find %s, %w", id, err)
	}

	if ok {
		if err := link.Reblock(now); err != nil {
			return fmt.Errorf("command.BlockIssueHandler: %w", err)
		}
	} else {
		if _, err := findIssue(ctx, h.IssueRepository, id.Issue); err != nil {
			return fmt.Errorf("command.BlockIssueHandler: %w", err)
		}

		if _, err := findIssue(ctx, h.IssueRepository, id.Blocked); err != nil {
			return fmt.Errorf("command.BlockIssueHandler: %w", err)
		}

		if link, err = issueblocklink.Block(event.NewStreamID(), id.Issue, id.Blocked, now); err != nil {
			return fmt.Errorf("command.BlockIssueHandler: %w", err)
		}
	}

	if err := h.IssueBlockLinkRepository.Save(ctx, link); err != nil {
		return fmt.Errorf("command.BlockIssueHandler: failed to save %s to repository, %w", id, err)
	}

	return nil
}

// UnblockIssue is the Command used to remove a block between two Issues.
type UnblockIssue struct {
	ID issueblocklink.ID
}

// Name implements message.Message.
func (UnblockIssue) Name() string { return "UnblockIssue" }

var _ command.Handler[UnblockIssue] = UnblockIssueHandler{}

// UnblockIssueHandler is the Command Handler for UnblockIssue commands.
type UnblockIssueHandler struct {
	Clock                    func() time.Time
	IssueBlockLinkRepository IssueBlockLinkRepository
}

// Handle implements command.Handler.
func (h UnblockIssueHandler) Handle(ctx context.Context, cmd command.Envelope[UnblockIssue]) error {
	id := cmd.Message.ID

	link, ok, err := h.IssueBlockLinkRepository.Find(ctx, id)
	if err != nil {
		return fmt.Errorf("command.UnblockIssueHandler: failed to find %s, %w", id, err)
	}

	if !ok {
		return fmt.Errorf("command.UnblockIssueHandler: %w: %s", ErrLinkNotFound, id)
	}

	if err := link.Unblock(h.Clock()); err != nil {
		return fmt.Errorf("command.UnblockIssueHandler: %w", err)
	}

	if err := h.IssueBlockLinkRepository.Save(ctx, link); err != nil {
		return fmt.Errorf("command.UnblockIssueHandler: failed to save %s to repository, %w", id, err)
	}

	return nil
}
