package aggregate

// Type represents the type of an Aggregate, which will expose the
// name of the Aggregate (used as event.IndexKey type) and a factory method
// to create new instances of the type, without using reflection.
//
// Consider creating a global variable in the package containing the Aggregate,
// and make sure the name used for the Aggregate is unique in your system,
// as to avoid clashes with other Aggregate types.
type Type[I ID, T Root[I]] struct {
	Name    string
	Factory func() T
}
