package sqlite

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/ncruces/go-sqlite3"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/message"
	"github.com/get-eventually/tracker/version"
)

// ErrDuplicateEventID is returned when appending an Event whose id is already in use.
var ErrDuplicateEventID = errors.New("sqlite.EventStore: event id already exists")

var _ event.Store = EventStore{}

// EventStore is an event.Store implementation on a SQLite database opened with Open.
type EventStore struct {
	DB *sql.DB
}

// Append implements the event.Appender interface.
func (es EventStore) Append(
	ctx context.Context,
	id event.StreamID,
	expected version.Check,
	events ...event.Event,
) (version.Version, error) {
	if err := event.ValidateAppend(id, expected, events); err != nil {
		return 0, fmt.Errorf("sqlite.EventStore: invalid append, %w", err)
	}

	want := version.Expected(expected)
	newVersion := want + version.Version(len(events))

	err := runTransaction(ctx, es.DB, func(tx *sql.Tx) error {
		if err := updateStreamVersion(ctx, tx, id, want, newVersion); err != nil {
			return err
		}

		for _, evt := range events {
			var metadata sql.NullString

			if len(evt.Metadata) > 0 {
				data, err := json.Marshal(evt.Metadata)
				if err != nil {
					return fmt.Errorf("failed to marshal metadata, %w", err)
				}

				metadata = sql.NullString{String: string(data), Valid: true}
			}

			_, err := tx.ExecContext(ctx,
				`INSERT INTO events (event_id, event_stream_id, version, type, payload, metadata, recorded_at)
				VALUES (?, ?, ?, ?, ?, ?, ?)`,
				evt.ID.String(), id.String(), int64(evt.Version), string(evt.Type), string(evt.Payload),
				metadata, event.NormalizeTime(evt.At).UnixMicro(),
			)

			if errors.Is(err, sqlite3.CONSTRAINT_UNIQUE) {
				return ErrDuplicateEventID
			}

			if err != nil {
				return fmt.Errorf("failed to insert event %s, %w", evt.ID, err)
			}
		}

		return nil
	})
	if err != nil {
		return 0, fmt.Errorf("sqlite.EventStore: failed to append events, %w", err)
	}

	return newVersion, nil
}

func updateStreamVersion(ctx context.Context, tx *sql.Tx, id event.StreamID, want, newVersion version.Version) error {
	var (
		result sql.Result
		err    error
	)

	if want == 0 {
		result, err = tx.ExecContext(ctx,
			`INSERT INTO event_streams (event_stream_id, version) VALUES (?, ?)
			ON CONFLICT (event_stream_id) DO NOTHING`,
			id.String(), int64(newVersion),
		)
	} else {
		result, err = tx.ExecContext(ctx,
			`UPDATE event_streams SET version = ? WHERE event_stream_id = ? AND version = ?`,
			int64(newVersion), id.String(), int64(want),
		)
	}

	if err != nil {
		return fmt.Errorf("failed to update event stream version, %w", err)
	}

	if n, err := result.RowsAffected(); err != nil {
		return fmt.Errorf("failed to update event stream version, %w", err)
	} else if n == 1 {
		return nil
	}

	var actual int64

	row := tx.QueryRowContext(ctx, `SELECT version FROM event_streams WHERE event_stream_id = ?`, id.String())
	if err := row.Scan(&actual); err != nil && !errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("failed to read event stream version, %w", err)
	}

	return version.ConflictError{
		Expected: want,
		Actual:   version.Version(actual),
	}
}

const selectEvent = `SELECT event_id, event_stream_id, version, type, payload, metadata, recorded_at, sequence_number
	FROM events`

type scanner interface {
	Scan(dest ...any) error
}

func scanEvent(row scanner) (event.Event, error) {
	var (
		rawID, rawStreamID string
		eventVersion       int64
		typ, payload       string
		rawMetadata        sql.NullString
		recordedAt         int64
		sequenceNumber     int64
	)

	if err := row.Scan(
		&rawID, &rawStreamID, &eventVersion, &typ, &payload, &rawMetadata, &recordedAt, &sequenceNumber,
	); err != nil {
		return event.Event{}, err
	}

	id, err := event.ParseID(rawID)
	if err != nil {
		return event.Event{}, err
	}

	streamID, err := event.ParseStreamID(rawStreamID)
	if err != nil {
		return event.Event{}, err
	}

	var metadata message.Metadata
	if rawMetadata.Valid {
		if err := json.Unmarshal([]byte(rawMetadata.String), &metadata); err != nil {
			return event.Event{}, fmt.Errorf("failed to deserialize metadata, %w", err)
		}
	}

	return event.Event{
		ID:             id,
		Type:           event.Type(typ),
		StreamID:       streamID,
		Version:        version.Version(eventVersion),
		At:             time.UnixMicro(recordedAt).UTC(),
		Payload:        event.Payload(payload),
		Metadata:       metadata.Clone(),
		SequenceNumber: version.SequenceNumber(sequenceNumber),
	}, nil
}

// FindEventStream implements the event.StreamFinder interface.
func (es EventStore) FindEventStream(ctx context.Context, id event.StreamID) (event.Stream, bool, error) {
	rows, err := es.DB.QueryContext(ctx, selectEvent+` WHERE event_stream_id = ? ORDER BY version`, id.String())
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("sqlite.EventStore: failed to query events, %w", err)
	}
	defer rows.Close()

	var events []event.Event

	for rows.Next() {
		evt, err := scanEvent(rows)
		if err != nil {
			return event.Stream{}, false, fmt.Errorf("sqlite.EventStore: failed to scan event, %w", err)
		}

		events = append(events, evt)
	}

	if err := rows.Err(); err != nil {
		return event.Stream{}, false, fmt.Errorf("sqlite.EventStore: failed to read events, %w", err)
	}

	if len(events) == 0 {
		return event.Stream{}, false, nil
	}

	stream, err := event.NewStream(id, events)
	if err != nil {
		return event.Stream{}, false, fmt.Errorf("sqlite.EventStore: corrupted stream, %w", err)
	}

	return stream, true, nil
}

// FindEvent implements the event.Log interface.
func (es EventStore) FindEvent(ctx context.Context, id event.ID) (event.Event, bool, error) {
	evt, err := scanEvent(es.DB.QueryRowContext(ctx, selectEvent+` WHERE event_id = ?`, id.String()))
	if errors.Is(err, sql.ErrNoRows) {
		return event.Event{}, false, nil
	}

	if err != nil {
		return event.Event{}, false, fmt.Errorf("sqlite.EventStore: failed to find event %s, %w", id, err)
	}

	return evt, true, nil
}

// FindEventIDsAfter implements the event.Log interface.
//
// SQLite has a single writer, so the sequence number order is also the commit order.
func (es EventStore) FindEventIDsAfter(ctx context.Context, cursor event.ID) ([]event.ID, error) {
	var after int64

	if !cursor.IsZero() {
		row := es.DB.QueryRowContext(ctx, `SELECT sequence_number FROM events WHERE event_id = ?`, cursor.String())
		if err := row.Scan(&after); errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlite.EventStore: cursor %s, %w", cursor, event.ErrEventNotFound)
		} else if err != nil {
			return nil, fmt.Errorf("sqlite.EventStore: failed to look up cursor, %w", err)
		}
	}

	rows, err := es.DB.QueryContext(ctx,
		`SELECT event_id FROM events WHERE sequence_number > ? ORDER BY sequence_number`, after,
	)
	if err != nil {
		return nil, fmt.Errorf("sqlite.EventStore: failed to query global order, %w", err)
	}
	defer rows.Close()

	var ids []event.ID

	for rows.Next() {
		var raw string
		if err := rows.Scan(&raw); err != nil {
			return nil, fmt.Errorf("sqlite.EventStore: failed to scan event id, %w", err)
		}

		id, err := event.ParseID(raw)
		if err != nil {
			return nil, fmt.Errorf("sqlite.EventStore: %w", err)
		}

		ids = append(ids, id)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite.EventStore: failed to read event ids, %w", err)
	}

	return ids, nil
}
