package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/tracker/event"
)

var _ event.Index = StreamIndex{}

// StreamIndex is an event.Index implementation backed by the "stream_index" table.
type StreamIndex struct {
	Conn *pgxpool.Pool
}

// LookupStreamID implements the event.Index interface.
func (idx StreamIndex) LookupStreamID(ctx context.Context, key event.IndexKey) (event.StreamID, bool, error) {
	var id uuid.UUID

	row := idx.Conn.QueryRow(ctx,
		`SELECT event_stream_id FROM stream_index WHERE aggregate_type = $1 AND aggregate_id = $2`,
		key.AggregateType, key.AggregateID,
	)

	if err := row.Scan(&id); errors.Is(err, pgx.ErrNoRows) {
		return event.StreamID{}, false, nil
	} else if err != nil {
		return event.StreamID{}, false, fmt.Errorf("postgres.StreamIndex: failed to look up %s, %w", key, err)
	}

	return event.StreamID(id), true, nil
}

// RegisterStreamID implements the event.Index interface.
func (idx StreamIndex) RegisterStreamID(ctx context.Context, key event.IndexKey, id event.StreamID) error {
	_, err := idx.Conn.Exec(ctx,
		`INSERT INTO stream_index (aggregate_type, aggregate_id, event_stream_id) VALUES ($1, $2, $3)`,
		key.AggregateType, key.AggregateID, uuid.UUID(id),
	)
	if err == nil {
		return nil
	}

	if _, ok := isUniqueViolation(err); !ok {
		return fmt.Errorf("postgres.StreamIndex: failed to register %s, %w", key, err)
	}

	existing, _, err := idx.LookupStreamID(ctx, key)
	if err != nil {
		return err
	}

	if existing != id {
		return fmt.Errorf("postgres.StreamIndex: failed to register %s, %w", key, event.ErrIndexKeyTaken)
	}

	return nil
}
