package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/event"
)

var _ event.Index = StreamIndex{}

// StreamIndex is an event.Index implementation on a SQLite database opened with Open.
type StreamIndex struct {
	DB *sql.DB
}

// LookupStreamID implements the event.Index interface.
func (idx StreamIndex) LookupStreamID(ctx context.Context, key event.IndexKey) (event.StreamID, bool, error) {
	var raw string

	row := idx.DB.QueryRowContext(ctx,
		`SELECT event_stream_id FROM stream_index WHERE aggregate_type = ? AND aggregate_id = ?`,
		key.AggregateType, key.AggregateID,
	)

	if err := row.Scan(&raw); errors.Is(err, sql.ErrNoRows) {
		return event.StreamID{}, false, nil
	} else if err != nil {
		return event.StreamID{}, false, fmt.Errorf("sqlite.StreamIndex: failed to look up %s, %w", key, err)
	}

	id, err := event.ParseStreamID(raw)
	if err != nil {
		return event.StreamID{}, false, fmt.Errorf("sqlite.StreamIndex: %w", err)
	}

	return id, true, nil
}

// RegisterStreamID implements the event.Index interface.
func (idx StreamIndex) RegisterStreamID(ctx context.Context, key event.IndexKey, id event.StreamID) error {
	if _, err := idx.DB.ExecContext(ctx,
		`INSERT INTO stream_index (aggregate_type, aggregate_id, event_stream_id) VALUES (?, ?, ?)
		ON CONFLICT (aggregate_type, aggregate_id) DO NOTHING`,
		key.AggregateType, key.AggregateID, id.String(),
	); err != nil {
		return fmt.Errorf("sqlite.StreamIndex: failed to register %s, %w", key, err)
	}

	existing, _, err := idx.LookupStreamID(ctx, key)
	if err != nil {
		return err
	}

	if existing != id {
		return fmt.Errorf("sqlite.StreamIndex: failed to register %s, %w", key, event.ErrIndexKeyTaken)
	}

	return nil
}
