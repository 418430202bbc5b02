package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/worker"
)

var _ worker.CheckpointStore = CheckpointStore{}

// CheckpointStore is a worker.CheckpointStore implementation on a SQLite
// database opened with Open.
type CheckpointStore struct {
	DB *sql.DB
}

// LastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) LastEventID(ctx context.Context, name worker.Name) (event.ID, error) {
	var raw string

	row := cs.DB.QueryRowContext(ctx, `SELECT last_event_id FROM worker_checkpoints WHERE worker_name = ?`, string(name))
	if err := row.Scan(&raw); errors.Is(err, sql.ErrNoRows) {
		return event.ID{}, nil
	} else if err != nil {
		return event.ID{}, fmt.Errorf("sqlite.CheckpointStore: failed to read checkpoint of %s, %w", name, err)
	}

	id, err := event.ParseID(raw)
	if err != nil {
		return event.ID{}, fmt.Errorf("sqlite.CheckpointStore: %w", err)
	}

	return id, nil
}

// StoreLastEventID implements the worker.CheckpointStore interface.
func (cs CheckpointStore) StoreLastEventID(ctx context.Context, name worker.Name, before, after event.ID) error {
	var (
		result sql.Result
		err    error
	)

	if before.IsZero() {
		result, err = cs.DB.ExecContext(ctx,
			`INSERT INTO worker_checkpoints (worker_name, last_event_id) VALUES (?, ?)
			ON CONFLICT (worker_name) DO NOTHING`,
			string(name), after.String(),
		)
	} else {
		result, err = cs.DB.ExecContext(ctx,
			`UPDATE worker_checkpoints SET last_event_id = ? WHERE worker_name = ? AND last_event_id = ?`,
			after.String(), string(name), before.String(),
		)
	}

	if err != nil {
		return fmt.Errorf("sqlite.CheckpointStore: failed to store checkpoint of %s, %w", name, err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("sqlite.CheckpointStore: failed to store checkpoint of %s, %w", name, err)
	} else if n == 1 {
		return nil
	}

	actual, err := cs.LastEventID(ctx, name)
	if err != nil {
		return err
	}

	return worker.CheckpointConflictError{Worker: name, Expected: before, Actual: actual}
}
