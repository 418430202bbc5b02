package command

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/its/issue"
	"github.com/get-eventually/tracker/internal/its/issuecomment"
)

// ErrCommentNotFound is returned when a Command targets a comment that does not exist.
var ErrCommentNotFound = errors.New("command: issue comment not found")

// IssueCommentRepository is the Repository of IssueComments used by the Command Handlers.
type IssueCommentRepository = aggregate.Repository[issuecomment.ID, *issuecomment.IssueComment]

func findComment(ctx context.Context, repository IssueCommentRepository, id issuecomment.ID) (*issuecomment.IssueComment, error) {
	found, ok, err := repository.Find(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to find comment %s, %w", id, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrCommentNotFound, id)
	}

	return found, nil
}

// CreateIssueComment is the Command used to comment an Issue.
type CreateIssueComment struct {
	Issue issue.Number
	Text  string
}

// Name implements message.Message.
func (CreateIssueComment) Name() string { return "CreateIssueComment" }

var _ command.Handler[CreateIssueComment] = CreateIssueCommentHandler{}

// CreateIssueCommentHandler is the Command Handler for CreateIssueComment commands.
// The commented Issue must exist.
type CreateIssueCommentHandler struct {
	Clock             func() time.Time
	IssueRepository   IssueRepository
	CommentRepository IssueCommentRepository

	// Optional, receives the ID of the created comment.
	OnCreated func(issuecomment.ID)
}

// Handle implements command.Handler.
func (h CreateIssueCommentHandler) Handle(ctx context.Context, cmd command.Envelope[CreateIssueComment]) error {
	if _, err := findIssue(ctx, h.IssueRepository, cmd.Message.Issue); err != nil {
		return fmt.Errorf("command.CreateIssueCommentHandler: %w", err)
	}

	comment, err := issuecomment.Create(event.NewStreamID(), cmd.Message.Issue, cmd.Message.Text, h.Clock())
	if err != nil {
		return fmt.Errorf("command.CreateIssueCommentHandler: %w", err)
	}

	if err := h.CommentRepository.Save(ctx, comment); err != nil {
		return fmt.Errorf("command.CreateIssueCommentHandler: failed to save %s to repository, %w", comment.ID, err)
	}

	if h.OnCreated != nil {
		h.OnCreated(comment.ID)
	}

	return nil
}

// UpdateIssueComment is the Command used to edit the text of a comment.
type UpdateIssueComment struct {
	ID   issuecomment.ID
	Text string
}

// Name implements message.Message.
func (UpdateIssueComment) Name() string { return "UpdateIssueComment" }

var _ command.Handler[UpdateIssueComment] = UpdateIssueCommentHandler{}

// UpdateIssueCommentHandler is the Command Handler for UpdateIssueComment commands.
type UpdateIssueCommentHandler struct {
	Clock      func() time.Time
	Repository IssueCommentRepository
}

// Handle implements command.Handler.
func (h UpdateIssueCommentHandler) Handle(ctx context.Context, cmd command.Envelope[UpdateIssueComment]) error {
	comment, err := findComment(ctx, h.Repository, cmd.Message.ID)
	if err != nil {
		return fmt.Errorf("command.UpdateIssueCommentHandler: %w", err)
	}

	if err := comment.Update(cmd.Message.Text, h.Clock()); err != nil {
		return fmt.Errorf("command.UpdateIssueCommentHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, comment); err != nil {
		return fmt.Errorf("command.UpdateIssueCommentHandler: failed to save %s to repository, %w", comment.ID, err)
	}

	return nil
}

// DeleteIssueComment is the Command used to delete a comment.
type DeleteIssueComment struct {
	ID issuecomment.ID
}

// Name implements message.Message.
func (DeleteIssueComment) Name() string { return "DeleteIssueComment" }

var _ command.Handler[DeleteIssueComment] = DeleteIssueCommentHandler{}

// DeleteIssueCommentHandler is the Command Handler for DeleteIssueComment commands.
type DeleteIssueCommentHandler struct {
	Clock      func() time.Time
	Repository IssueCommentRepository
}

// Handle implements command.Handler.
func (h DeleteIssueCommentHandler) Handle(ctx context.Context, cmd command.Envelope[DeleteIssueComment]) error {
	comment, err := findComment(ctx, h.Repository, cmd.Message.ID)
	if err != nil {
		return fmt.Errorf("command.DeleteIssueCommentHandler: %w", err)
	}

	if err := comment.Delete(h.Clock()); err != nil {
		return fmt.Errorf("command.DeleteIssueCommentHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, comment); err != nil {
		return fmt.Errorf("command.DeleteIssueCommentHandler: failed to save %s to repository, %w", comment.ID, err)
	}

	return nil
}
