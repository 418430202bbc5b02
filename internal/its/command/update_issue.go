package command

import (
	"context"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/internal/its/issue"
)

func findIssue(ctx context.Context, repository IssueRepository, n issue.Number) (*issue.Issue, error) {
	found, ok, err := repository.Find(ctx, n)
	if err != nil {
		return nil, fmt.Errorf("failed to find issue %s, %w", n, err)
	}

	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrIssueNotFound, n)
	}

	return found, nil
}

// UpdateIssue is the Command used to change the due date of an Issue.
type UpdateIssue struct {
	Number issue.Number
	Due    *time.Time
}

// Name implements message.Message.
func (UpdateIssue) Name() string { return "UpdateIssue" }

var _ command.Handler[UpdateIssue] = UpdateIssueHandler{}

// UpdateIssueHandler is the Command Handler for UpdateIssue commands.
type UpdateIssueHandler struct {
	Clock      func() time.Time
	Repository IssueRepository
}

// Handle implements command.Handler.
func (h UpdateIssueHandler) Handle(ctx context.Context, cmd command.Envelope[UpdateIssue]) error {
	found, err := findIssue(ctx, h.Repository, cmd.Message.Number)
	if err != nil {
		return fmt.Errorf("command.UpdateIssueHandler: %w", err)
	}

	if err := found.ChangeDue(cmd.Message.Due, h.Clock()); err != nil {
		return fmt.Errorf("command.UpdateIssueHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, found); err != nil {
		return fmt.Errorf("command.UpdateIssueHandler: failed to save issue to repository, %w", err)
	}

	return nil
}

// UpdateIssueTitle is the Command used to rename an Issue.
type UpdateIssueTitle struct {
	Number issue.Number
	Title  string
}

// Name implements message.Message.
func (UpdateIssueTitle) Name() string { return "UpdateIssueTitle" }

var _ command.Handler[UpdateIssueTitle] = UpdateIssueTitleHandler{}

// UpdateIssueTitleHandler is the Command Handler for UpdateIssueTitle commands.
type UpdateIssueTitleHandler struct {
	Clock      func() time.Time
	Repository IssueRepository
}

// Handle implements command.Handler.
func (h UpdateIssueTitleHandler) Handle(ctx context.Context, cmd command.Envelope[UpdateIssueTitle]) error {
	found, err := findIssue(ctx, h.Repository, cmd.Message.Number)
	if err != nil {
		return fmt.Errorf("command.UpdateIssueTitleHandler: %w", err)
	}

	if err := found.ChangeTitle(cmd.Message.Title, h.Clock()); err != nil {
		return fmt.Errorf("command.UpdateIssueTitleHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, found); err != nil {
		return fmt.Errorf("command.UpdateIssueTitleHandler: failed to save issue to repository, %w", err)
	}

	return nil
}

// UpdateIssueDescription is the Command used to change the description of an Issue.
type UpdateIssueDescription struct {
	Number      issue.Number
	Description string
}

// Name implements message.Message.
func (UpdateIssueDescription) Name() string { return "UpdateIssueDescription" }

var _ command.Handler[UpdateIssueDescription] = UpdateIssueDescriptionHandler{}

// UpdateIssueDescriptionHandler is the Command Handler for UpdateIssueDescription commands.
type UpdateIssueDescriptionHandler struct {
	Clock      func() time.Time
	Repository IssueRepository
}

// Handle implements command.Handler.
func (h UpdateIssueDescriptionHandler) Handle(ctx context.Context, cmd command.Envelope[UpdateIssueDescription]) error {
	found, err := findIssue(ctx, h.Repository, cmd.Message.Number)
	if err != nil {
		return fmt.Errorf("command.UpdateIssueDescriptionHandler: %w", err)
	}

	if err := found.ChangeDescription(cmd.Message.Description, h.Clock()); err != nil {
		return fmt.Errorf("command.UpdateIssueDescriptionHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, found); err != nil {
		return fmt.Errorf("command.UpdateIssueDescriptionHandler: failed to save issue to repository, %w", err)
	}

	return nil
}

// FinishIssue is the Command used to mark an Issue as done.
type FinishIssue struct {
	Number     issue.Number
	Resolution string
}

// Name implements message.Message.
func (FinishIssue) Name() string { return "FinishIssue" }

var _ command.Handler[FinishIssue] = FinishIssueHandler{}

// FinishIssueHandler is the Command Handler for FinishIssue commands.
type FinishIssueHandler struct {
	Clock      func() time.Time
	Repository IssueRepository
}

// Handle implements command.Handler.
func (h FinishIssueHandler) Handle(ctx context.Context, cmd command.Envelope[FinishIssue]) error {
	found, err := findIssue(ctx, h.Repository, cmd.Message.Number)
	if err != nil {
		return fmt.Errorf("command.FinishIssueHandler: %w", err)
	}

	if err := found.Finish(cmd.Message.Resolution, h.Clock()); err != nil {
		return fmt.Errorf("command.FinishIssueHandler: %w", err)
	}

	if err := h.Repository.Save(ctx, found); err != nil {
		return fmt.Errorf("command.FinishIssueHandler: failed to save issue to repository, %w", err)
	}

	return nil
}
