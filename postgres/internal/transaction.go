// Package internal contains the helpers shared by the postgres components
// and their tests.
package internal

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// TxBeginner is implemented by pgxpool.Pool and pgx.Conn.
type TxBeginner interface {
	BeginTx(ctx context.Context, options pgx.TxOptions) (pgx.Tx, error)
}

// ReadCommitted are the options used by every write path: conflicting writers
// serialize on row locks and re-check their conditions once the lock is released.
var ReadCommitted = pgx.TxOptions{
	IsoLevel:       pgx.ReadCommitted,
	AccessMode:     pgx.ReadWrite,
	DeferrableMode: pgx.NotDeferrable,
	BeginQuery:     "",
	CommitQuery:    "",
}

// RunTransaction calls do inside a transaction, committed when do succeeds
// and rolled back otherwise.
//
// Errors returned by do are returned unwrapped, so that callers can
// classify them with errors.Is and errors.As.
func RunTransaction(
	ctx context.Context,
	db TxBeginner,
	options pgx.TxOptions,
	do func(ctx context.Context, tx pgx.Tx) error,
) (err error) {
	tx, err := db.BeginTx(ctx, options)
	if err != nil {
		return fmt.Errorf("internal.RunTransaction: failed to begin transaction, %w", err)
	}

	defer func() {
		if err == nil {
			return
		}

		rollbackErr := tx.Rollback(context.WithoutCancel(ctx))
		if rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			err = fmt.Errorf("internal.RunTransaction: failed to rollback transaction, %w (caused by: %w)", rollbackErr, err)
		}
	}()

	if err = do(ctx, tx); err != nil {
		return err
	}

	if err = tx.Commit(ctx); err != nil {
		return fmt.Errorf("internal.RunTransaction: failed to commit transaction, %w", err)
	}

	return nil
}
