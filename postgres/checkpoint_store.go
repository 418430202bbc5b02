package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.CheckpointStore = CheckpointStore{}

// CheckpointStore is a worker.CheckpointStore implementation backed
// by the "worker_checkpoints" table.
type CheckpointStore struct {
	Conn *pgxpool.Pool
}

// LastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) LastEventID(ctx context.Context, name worker.Name) (event.ID, error) {
	var id uuid.UUID

	row := cs.Conn.QueryRow(ctx, `SELECT last_event_id FROM worker_checkpoints WHERE worker_name = $1`, string(name))
	if err := row.Scan(&id); errors.Is(err, pgx.ErrNoRows) {
		return event.ID{}, nil
	} else if err != nil {
		return event.ID{}, fmt.Errorf("postgres.CheckpointStore: failed to read checkpoint of %s, %w", name, err)
	}

	return event.ID(id), nil
}

// StoreLastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) StoreLastEventID(ctx context.Context, name worker.Name, before, after event.ID) error {
	if before.IsZero() {
		_, err := cs.Conn.Exec(ctx,
			`INSERT INTO worker_checkpoints (worker_name, last_event_id) VALUES ($1, $2)`,
			string(name), uuid.UUID(after),
		)

		if _, ok := isUniqueViolation(err); ok {
			return cs.conflict(ctx, name, before)
		}

		if err != nil {
			return fmt.Errorf("postgres.CheckpointStore: failed to create checkpoint of %s, %w", name, err)
		}

		return nil
	}

	tag, err := cs.Conn.Exec(ctx,
		`UPDATE worker_checkpoints SET last_event_id = $3, updated_at = now()
		WHERE worker_name = $1 AND last_event_id = $2`,
		string(name), uuid.UUID(before), uuid.UUID(after),
	)
	if err != nil {
		return fmt.Errorf("postgres.CheckpointStore: failed to update checkpoint of %s, %w", name, err)
	}

	if tag.RowsAffected() == 0 {
		return cs.conflict(ctx, name, before)
	}

	return nil
}

func (cs CheckpointStore) conflict(ctx context.Context, name worker.Name, expected event.ID) error {
	actual, err := cs.LastEventID(ctx, name)
	if err != nil {
		return err
	}

	return worker.CheckpointConflictError{
		Worker:   name,
		Expected: expected,
		Actual:   actual,
	}
}
