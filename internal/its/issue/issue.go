// Package issue contains the Issue Aggregate Root of the issue tracker.
package issue

import (
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
)

// ErrAlreadyFinished is returned when finishing an Issue that is already done.
var ErrAlreadyFinished = errors.New("issue.Issue: already finished")

// Type represents the Aggregate Root type for usage with the aggregate package.
var Type = aggregate.Type[Number, *Issue]{
	Name:    "issue",
	Factory: func() *Issue { return new(Issue) },
}

// Issue is a unit of work tracked from creation (Todo) to completion (Done).
type Issue struct {
	aggregate.BaseRoot

	Number      Number
	Title       string
	Due         *time.Time
	Description string
	Resolution  string
	Status      Status
}

// AggregateID implements aggregate.Root.
func (i *Issue) AggregateID() Number { return i.Number }

// Apply implements aggregate.Root.
func (i *Issue) Apply(msg message.Message) error {
	switch evt := msg.(type) {
	case *Created:
		i.Number = evt.Number
		i.Title = evt.Title
		i.Due = NormalizeDue(evt.Due)
		i.Description = evt.Description
		i.Status = StatusTodo

	case *DueUpdated:
		i.Due = NormalizeDue(evt.Due)

	case *TitleUpdated:
		i.Title = evt.Title

	case *DescriptionUpdated:
		i.Description = evt.Description

	case *Finished:
		i.Resolution = evt.Resolution
		i.Status = StatusDone

	default:
		return fmt.Errorf("issue.Issue.Apply: invalid event, %T", evt)
	}

	return nil
}

// Create creates a new Issue, whose history is kept in the specified Event Stream.
func Create(streamID event.StreamID, number Number, title string, due *time.Time, now time.Time) (*Issue, error) {
	wrapErr := func(err error) error {
		return fmt.Errorf("issue.Create: failed to create issue %s, %w", number, err)
	}

	if number == 0 {
		return nil, wrapErr(ErrInvalidNumber)
	}

	if err := validateTitle(title); err != nil {
		return nil, wrapErr(err)
	}

	issue := Type.Factory()

	if err := aggregate.Create(issue, streamID, event.ToEnvelope(&Created{
		Number:      number,
		Title:       title,
		Due:         NormalizeDue(due),
		Description: "",
	}, now)); err != nil {
		return nil, wrapErr(err)
	}

	return issue, nil
}

// Finish marks the Issue as done, with an optional resolution.
//
// ErrAlreadyFinished is returned if the Issue is already done.
func (i *Issue) Finish(resolution string, now time.Time) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("issue.Finish: failed to finish issue %s, %w", i.Number, err)
	}

	if i.Status == StatusDone {
		return wrapErr(ErrAlreadyFinished)
	}

	if err := validateText(resolution, ErrResolutionTooLong); err != nil {
		return wrapErr(err)
	}

	if err := aggregate.RecordThat[Number](i, event.ToEnvelope(&Finished{Resolution: resolution}, now)); err != nil {
		return wrapErr(err)
	}

	return nil
}

// ChangeDue sets or clears the due date of the Issue.
func (i *Issue) ChangeDue(due *time.Time, now time.Time) error {
	if err := aggregate.RecordThat[Number](i, event.ToEnvelope(&DueUpdated{Due: NormalizeDue(due)}, now)); err != nil {
		return fmt.Errorf("issue.ChangeDue: failed to update issue %s, %w", i.Number, err)
	}

	return nil
}

// ChangeTitle renames the Issue.
func (i *Issue) ChangeTitle(title string, now time.Time) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("issue.ChangeTitle: failed to update issue %s, %w", i.Number, err)
	}

	if err := validateTitle(title); err != nil {
		return wrapErr(err)
	}

	if err := aggregate.RecordThat[Number](i, event.ToEnvelope(&TitleUpdated{Title: title}, now)); err != nil {
		return wrapErr(err)
	}

	return nil
}

// ChangeDescription replaces the description of the Issue.
func (i *Issue) ChangeDescription(description string, now time.Time) error {
	wrapErr := func(err error) error {
		return fmt.Errorf("issue.ChangeDescription: failed to update issue %s, %w", i.Number, err)
	}

	if err := validateText(description, ErrDescriptionTooLong); err != nil {
		return wrapErr(err)
	}

	if err := aggregate.RecordThat[Number](i, event.ToEnvelope(&DescriptionUpdated{Description: description}, now)); err != nil {
		return wrapErr(err)
	}

	return nil
}
