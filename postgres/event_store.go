// Package postgres contains the PostgreSQL implementations of the Event Store,
// the stream index and the worker checkpoint store, using pgx.
package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/postgres/internal"
	"github.com/get-eventually/tracker/version"
)

// ErrDuplicateEventID is returned when appending an Event whose id is already in use.
var ErrDuplicateEventID = errors.New("postgres.EventStore: event id already exists")

var _ event.Store = EventStore{}

// EventStore is an event.Store implementation targeted to PostgreSQL databases.
//
// The implementation uses "event_streams" and "events" as their
// operational tables. Updates to these tables are transactional.
type EventStore struct {
	Conn *pgxpool.Pool
}

func isUniqueViolation(err error) (*pgconn.PgError, bool) {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) && pgErr.Code == pgerrcode.UniqueViolation {
		return pgErr, true
	}

	return nil, false
}

// Append implements the event.Appender interface.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Event,
) (version.Version, error) {
	if err := event.ValidateAppend(id, expected, events); err != nil {
		return 0, fmt.Errorf("postgres.EventStore: invalid append, %w", err)
	}

	want := version.Expected(expected)
	newVersion := want + version.Version(len(events))

	err := internal.RunTransaction(ctx, es.Conn, internal.ReadCommitted, func(ctx context.Context, tx pgx.Tx) error {
		if err := updateStreamVersion(ctx, tx, id, want, newVersion); err != nil {
			return err
		}

		batch := &pgx.Batch{}

		for _, evt := range events {
			metadata, err := serializeMetadata(evt.Metadata)
			if err != nil {
				return err
			}

			batch.Queue(
				`INSERT INTO events (event_id, event_stream_id, version, type, payload, metadata, recorded_at)
				VALUES ($1, $2, $3, $4, $5, $6, $7)`,
				uuid.UUID(evt.ID), uuid.UUID(id), int64(evt.Version),
				string(evt.Type), string(evt.Payload), metadata, event.NormalizeTime(evt.At),
			)
		}

		if err := tx.SendBatch(ctx, batch).Close(); err != nil {
			if pgErr, ok := isUniqueViolation(err); ok && pgErr.ConstraintName == "events_event_id_key" {
				return ErrDuplicateEventID
			}

			return fmt.Errorf("failed to insert events, %w", err)
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("postgres.EventStore: failed to append events, %w", err)
	}

	return newVersion, nil
}

// updateStreamVersion moves the Event Stream version from want to newVersion,
// creating the Event Stream when want is 0.
//
// Concurrent writers block on the Event Stream row until the first one commits,
// then see the updated version and fail the check.
func updateStreamVersion(ctx context.Context, tx pgx.Tx, id event.StreamID, want, newVersion version.Version) error {
	var (
		tag pgconn.CommandTag
		err error
	)

	if want == 0 {
		tag, err = tx.Exec(ctx,
			`INSERT INTO event_streams (event_stream_id, version) VALUES ($1, $2)
			ON CONFLICT (event_stream_id) DO NOTHING`,
			uuid.UUID(id), int64(newVersion),
		)
	} else {
		tag, err = tx.Exec(ctx,
			`UPDATE event_streams SET version = $3 WHERE event_stream_id = $1 AND version = $2`,
			uuid.UUID(id), int64(want), int64(newVersion),
		)
	}

	if err != nil {
		return fmt.Errorf("failed to update event stream version, %w", err)
	}

	if tag.RowsAffected() == 1 {
		return nil
	}

	var actual int64

	row := tx.QueryRow(ctx, `SELECT version FROM event_streams WHERE event_stream_id = $1`, uuid.UUID(id))
	if err := row.Scan(&actual); err != nil && !errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("failed to read event stream version, %w", err)
	}

	return version.ConflictError{
		Expected: want,
		Actual:   version.Version(actual),
	}
}

func serializeMetadata(metadata message.Metadata) ([]byte, error) {
	if len(metadata) == 0 {
		return nil, nil
	}

	data, err := json.Marshal(metadata)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal metadata to json, %w", err)
	}

	return data, nil
}

const selectEvent = `SELECT event_id, event_stream_id, version, type, payload, metadata, recorded_at, sequence_number
	FROM events`

func scanEvent(row pgx.Row) (event.Event, error) {
	var (
		eventID, streamID uuid.UUID
		eventVersion      int64
		typ, payload      string
		rawMetadata       []byte
		recordedAt        time.Time
		sequenceNumber    int64
	)

	if err := row.Scan(
		&eventID, &streamID, &eventVersion, &typ, &payload, &rawMetadata, &recordedAt, &sequenceNumber,
	); err != nil {
		return event.Event{}, err
	}

	var metadata message.Metadata
	if len(rawMetadata) > 0 {
		if err := json.Unmarshal(rawMetadata, &metadata); err != nil {
			return event.Event{}, fmt.Errorf("failed to deserialize metadata, %w", err)
		}
	}

	return event.Event{
		ID:             event.ID(eventID),
		Type:           event.Type(typ),
		StreamID:       event.StreamID(streamID),
		Version:        version.Version(eventVersion),
		At:             event.NormalizeTime(recordedAt),
		Payload:        event.Payload(payload),
		Metadata:       metadata.Clone(),
		SequenceNumber: version.SequenceNumber(sequenceNumber),
	}, nil
}

// FindEventStream implements the event.StreamFinder interface.
func (es EventStore) FindEventStream(ctx context.Context, id event.StreamID) (event.Stream, bool, error) {
	rows, err := es.Conn.Query(ctx, selectEvent+` WHERE event_stream_id = $1 ORDER BY version`, uuid.UUID(id))
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("postgres.EventStore: failed to query events table, %w", err)
	}

	events, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (event.Event, error) {
		return scanEvent(row)
	})
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("postgres.EventStore: failed to scan events, %w", err)
	}

	if len(events) == 0 {
		return event.Stream{}, false, nil
	}

	stream, err := event.NewStream(id, events)
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("postgres.EventStore: corrupted stream, %w", err)
	}

	return stream, true, nil
}

// FindEvent implements the event.Log interface.
func (es EventStore) FindEvent(ctx context.Context, id event.ID) (event.Event, bool, error) {
	evt, err := scanEvent(es.Conn.QueryRow(ctx, selectEvent+` WHERE event_id = $1`, uuid.UUID(id)))
	if errors.Is(err, pgx.ErrNoRows) {
		return event.Event{}, false, nil
	}

	if err != nil {
		return event.Event{}, false, fmt.Errorf("postgres.EventStore: failed to find event %s, %w", id, err)
	}

	return evt, true, nil
}

// FindEventIDsAfter implements the event.Log interface.
//
// Events are ordered by the id of the transaction that appended them, and only
// the Events of transactions older than every in-flight one are returned:
// a reader can never move its cursor past an Event committed later
// with a lower position.
func (es EventStore) FindEventIDsAfter(ctx context.Context, cursor event.ID) ([]event.ID, error) {
	var (
		rows pgx.Rows
		err  error
	)

	if cursor.IsZero() {
		rows, err = es.Conn.Query(ctx,
			`SELECT event_id FROM events
			WHERE transaction_id < pg_snapshot_xmin(pg_current_snapshot())
			ORDER BY transaction_id, sequence_number`,
		)
	} else {
		var exists bool

		row := es.Conn.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM events WHERE event_id = $1)`, uuid.UUID(cursor))
		if err := row.Scan(&exists); err != nil {
			return nil, fmt.Errorf("postgres.EventStore: failed to look up cursor, %w", err)
		}

		if !exists {
			return nil, fmt.Errorf("postgres.EventStore: cursor %s, %w", cursor, event.ErrEventNotFound)
		}

		rows, err = es.Conn.Query(ctx,
			`SELECT e.event_id FROM events e, events c
			WHERE c.event_id = $1
			AND (e.transaction_id, e.sequence_number) > (c.transaction_id, c.sequence_number)
			AND e.transaction_id < pg_snapshot_xmin(pg_current_snapshot())
			ORDER BY e.transaction_id, e.sequence_number`,
			uuid.UUID(cursor),
		)
	}

	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore: failed to query global order, %w", err)
	}

	ids, err := pgx.CollectRows(rows, func(row pgx.CollectableRow) (event.ID, error) {
		var id uuid.UUID
		err := row.Scan(&id)

		return event.ID(id), err
	})
	if err != nil {
		return nil, fmt.Errorf("postgres.EventStore: failed to scan event ids, %w", err)
	}

	return ids, nil
}
