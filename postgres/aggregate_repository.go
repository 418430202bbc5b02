package postgres

import (
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/tracker/aggregate"
	"github.com/get-eventually/tracker/event"
)

// NewAggregateRepository returns an event-sourced aggregate.Repository storing
// the Aggregate Roots of the specified type in the PostgreSQL Event Store.
//
// Use WithStreamIndex for Aggregate types identified by a business id.
func NewAggregateRepository[I aggregate.ID, T aggregate.Root[I]](
	conn *pgxpool.Pool,
	codec event.Codec,
	typ aggregate.Type[I, T],
	options ...Option,
) aggregate.EventSourcedRepository[I, T] {
	var cfg repositoryConfig
	for _, option := range options {
		option.apply(&cfg)
	}

	var repositoryOptions []aggregate.EventSourcedRepositoryOption
	if cfg.indexed {
		repositoryOptions = append(repositoryOptions, aggregate.WithIndex(StreamIndex{Conn: conn}))
	}

	return aggregate.NewEventSourcedRepository(EventStore{Conn: conn}, codec, typ, repositoryOptions...)
}
