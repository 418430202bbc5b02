package version

import "fmt"

// NoStream is the Check to use when appending the first Events
// of a brand-new Event Stream.
var NoStream = CheckNoStream{}

// Check is used to specify the expected state of an Event Stream
// before appending new Events to it.
//
// The only implementations are CheckNoStream and CheckExact.
type Check interface {
	isVersionCheck()
}

// CheckNoStream expects the Event Stream not to exist yet.
type CheckNoStream struct{}

func (CheckNoStream) isVersionCheck() {}

// CheckExact expects the Event Stream to exist with exactly
// the specified version.
type CheckExact Version

func (CheckExact) isVersionCheck() {}

// CheckFrom returns the Check matching an Event Stream currently at the
// specified version: NoStream for 0, CheckExact otherwise.
func CheckFrom(v Version) Check {
	if v == 0 {
		return NoStream
	}

	return CheckExact(v)
}

// Expected returns the Event Stream version the Check expects,
// where 0 stands for a stream that does not exist.
func Expected(check Check) Version {
	if v, ok := check.(CheckExact); ok {
		return Version(v)
	}

	return 0
}

// ConflictError is returned by an Event Store when the Check used
// to append new Events does not match the actual Event Stream version.
//
// A ConflictError is always retryable: reload the state and try again.
type ConflictError struct {
	Expected Version
	Actual   Version
}

func (err ConflictError) Error() string {
	return fmt.Sprintf(
		"version.Check: conflict detected; expected stream version: %d, actual: %d",
		err.Expected,
		err.Actual,
	)
}
