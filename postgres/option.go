package postgres

// Option can be used to change the configuration of an AggregateRepository.
type Option interface {
	apply(*repositoryConfig)
}

type repositoryConfig struct {
	indexed bool
}

type option func(*repositoryConfig)

func (apply option) apply(cfg *repositoryConfig) { apply(cfg) }

// WithStreamIndex resolves Aggregate IDs to Event Streams through the
// "stream_index" table.
func WithStreamIndex() Option {
	return option(func(cfg *repositoryConfig) {
		cfg.indexed = true
	})
}
