// Package version contains the types used to express Event Stream versions,
// global Event Store positions and optimistic concurrency checks.
package version

// Version is the type to specify Event Stream versions.
// Versions start from 1, as they represent the length of a single Event Stream.
type Version uint32

// SequenceNumber is the global position of an Event in the Event Store,
// assigned by the store at append time in insertion order.
type SequenceNumber uint64
