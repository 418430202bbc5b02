package aggregate

import "context"

// Finder is an Aggregate Root repository interface
// that supports finding Aggregate Roots by their ID.
type Finder[I ID, T Root[I]] interface {
	// Find returns the Aggregate Root with the specified id,
	// or false if it has never been stored.
	Find(ctx context.Context, id I) (T, bool, error)
}

// Saver is an Aggregate Root repository interface
// that supports saving Aggregate Roots.
type Saver[I ID, T Root[I]] interface {
	// Save stores the Domain Events recorded by the Aggregate Root since
	// it has been created or found, failing with a version.ConflictError
	// if the Event Stream has been updated in the meantime.
	Save(ctx context.Context, root T) error
}

// Repository is an Aggregate Root repository interface,
// supporting finding and saving Aggregate Roots.
type Repository[I ID, T Root[I]] interface {
	Finder[I, T]
	Saver[I, T]
}

// FusedRepository is a convenience type that can be used to fuse together
// different implementations for the Finder and Saver Repository interface components.
type FusedRepository[I ID, T Root[I]] struct {
	Finder[I, T]
	Saver[I, T]
}
