// Package command contains the Command Handlers of the issue tracker.
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
)

// ErrIssueNotFound is returned when a Command targets an Issue that does not exist.
var ErrIssueNotFound = errors.New("command: issue not found")

// IssueRepository is the Repository of Issues used by the Command Handlers.
type IssueRepository = aggregate.Repository[issue.Number, *issue.Issue]

// DefaultNumberAttempts is the number of Issue Numbers CreateIssueHandler
// tries when concurrent creations take the one it picked.
const DefaultNumberAttempts = 5

// CreateIssue is the Command used to create a new Issue.
type CreateIssue struct {
	Title string
	Due   *time.Time
}

// Name implements message.Message.
func (CreateIssue) Name() string { return "CreateIssue" }

var _ command.Handler[CreateIssue] = CreateIssueHandler{}

// CreateIssueHandler is the Command Handler for CreateIssue commands.
//
// New Issues take the Number following the last one registered
// in the Index. When a concurrent creation registers the same Number first,
// the handler moves on to the next one.
type CreateIssueHandler struct {
	Clock      func() time.Time
	Index      event.Index
	Repository IssueRepository

	// Optional, defaults to DefaultNumberAttempts.
	Attempts int

	// Optional, receives the Number of the created Issue.
	OnCreated func(issue.Number)
}

func (h CreateIssueHandler) registered(ctx context.Context, n issue.Number) (bool, error) {
	_, ok, err := h.Index.LookupStreamID(ctx, aggregate.IndexKeyOf(issue.Type, n))
	return ok, err
}

// nextNumber finds the first Number not registered yet, given that
// registered Numbers always form a prefix of 1, 2, 3, ...
func (h CreateIssueHandler) nextNumber(ctx context.Context) (issue.Number, error) {
	last, upper := issue.Number(0), issue.FirstNumber

	for {
		ok, err := h.registered(ctx, upper)
		if err != nil {
			return 0, err
		}

		if !ok {
			break
		}

		last, upper = upper, upper*2
	}

	// last is registered, upper is not: bisect the range in between.
	for upper-last > 1 {
		middle := last + (upper-last)/2

		ok, err := h.registered(ctx, middle)
		if err != nil {
			return 0, err
		}

		if ok {
			last = middle
		} else {
			upper = middle
		}
	}

	return upper, nil
}

// Handle implements command.Handler.
func (h CreateIssueHandler) Handle(ctx context.Context, cmd command.Envelope[CreateIssue]) error {
	attempts := h.Attempts
	if attempts <= 0 {
		attempts = DefaultNumberAttempts
	}

	var err error

	for range attempts {
		if err = h.create(ctx, cmd.Message); !errors.Is(err, event.ErrIndexKeyTaken) {
			return err
		}
	}

	return fmt.Errorf("command.CreateIssueHandler: no free issue number after %d attempts, %w", attempts, err)
}

func (h CreateIssueHandler) create(ctx context.Context, cmd CreateIssue) error {
	number, err := h.nextNumber(ctx)
	if err != nil {
		return fmt.Errorf("command.CreateIssueHandler: failed to allocate issue number, %w", err)
	}

	created, err := issue.Create(event.NewStreamID(), number, cmd.Title, cmd.Due, h.Clock())
	if err != nil {
		return fmt.Errorf("command.CreateIssueHandler: failed to create new issue, %w", err)
	}

	if err := h.Repository.Save(ctx, created); err != nil {
		return fmt.Errorf("command.CreateIssueHandler: failed to save issue to repository, %w", err)
	}

	if h.OnCreated != nil {
		h.OnCreated(number)
	}

	return nil
}
