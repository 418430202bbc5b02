package issue

import (
	"errors"
	"fmt"
	"strconv"
	"time"
)

// MaxTextLength is the maximum length in bytes of the text attributes of an Issue.
const MaxTextLength = 255

// Errors returned when validating Issue attributes.
var (
	ErrInvalidNumber      = errors.New("issue: number must be a positive integer")
	ErrEmptyTitle         = errors.New("issue: title must not be empty")
	ErrTitleTooLong       = errors.New("issue: title too long")
	ErrDescriptionTooLong = errors.New("issue: description too long")
	ErrResolutionTooLong  = errors.New("issue: resolution too long")
)

// Number is the business identifier of an Issue, assigned in creation order.
type Number uint64

// FirstNumber is the Number of the first Issue ever created.
const FirstNumber Number = 1

// ParseNumber parses a positive Issue Number.
func ParseNumber(s string) (Number, error) {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n == 0 {
		return 0, fmt.Errorf("%w: '%s'", ErrInvalidNumber, s)
	}

	return Number(n), nil
}

func (n Number) String() string { return strconv.FormatUint(uint64(n), 10) }

// Next returns the Number following this one.
func (n Number) Next() Number { return n + 1 }

// Status is the state of an Issue.
type Status string

// All the Status values of an Issue.
const (
	StatusTodo Status = "todo"
	StatusDone Status = "done"
)

func validateTitle(title string) error {
	if title == "" {
		return ErrEmptyTitle
	}

	if len(title) > MaxTextLength {
		return fmt.Errorf("%w: %d bytes", ErrTitleTooLong, len(title))
	}

	return nil
}

func validateText(text string, errTooLong error) error {
	if len(text) > MaxTextLength {
		return fmt.Errorf("%w: %d bytes", errTooLong, len(text))
	}

	return nil
}

// NormalizeDue truncates a due date to seconds in UTC, the precision
// an Issue keeps. A nil due date means the Issue has none.
func NormalizeDue(due *time.Time) *time.Time {
	if due == nil {
		return nil
	}

	normalized := due.UTC().Truncate(time.Second)

	return &normalized
}
