// Package sqlite contains the SQLite implementations of the Event Store,
// the stream index and the worker checkpoint store, for single-file
// deployments and local development.
package sqlite

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"
	"time"

	_ "github.com/ncruces/go-sqlite3/driver" // Registers the "sqlite3" database/sql driver.
	_ "github.com/ncruces/go-sqlite3/embed"  // Embeds the SQLite library.
)

// DefaultBusyTimeout is how long a writer waits for the database lock.
const DefaultBusyTimeout = 10 * time.Second

//go:embed schema.sql
var schema string

// Open opens the SQLite database at the specified path, creating it and its
// tables if missing.
//
// Transactions take the write lock when they begin, so that concurrent
// appends are serialized instead of failing on lock upgrades.
func Open(ctx context.Context, path string) (*sql.DB, error) {
	var dsn strings.Builder

	fmt.Fprintf(&dsn, "file:%s?_txlock=immediate", path)
	fmt.Fprintf(&dsn, "&_pragma=busy_timeout(%d)", DefaultBusyTimeout.Milliseconds())
	dsn.WriteString("&_pragma=foreign_keys(1)&_pragma=journal_mode(wal)")

	db, err := sql.Open("sqlite3", dsn.String())
	if err != nil {
		return nil, fmt.Errorf("sqlite.Open: failed to open database, %w", err)
	}

	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("sqlite.Open: failed to create schema, %w", err)
	}

	return db, nil
}

func runTransaction(ctx context.Context, db *sql.DB, do func(tx *sql.Tx) error) (err error) {
	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction, %w", err)
	}

	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	if err = do(tx); err != nil {
		return err
	}

	if err = tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit transaction, %w", err)
	}

	return nil
}
