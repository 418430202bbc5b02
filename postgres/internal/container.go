package internal

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// PostgresContainer is a disposable Postgres server for integration tests.
type PostgresContainer struct {
	*postgres.PostgresContainer

	ConnectionDSN string
}

// NewPostgresContainer starts a Postgres 16 container holding an empty tracker database.
// Callers terminate it once done.
func NewPostgresContainer(ctx context.Context) (*PostgresContainer, error) {
	container, err := postgres.Run(
		ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("tracker"),
		postgres.WithUsername("postgres"),
		postgres.WithPassword("notasecret"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	if err != nil {
		return nil, fmt.Errorf("internal.NewPostgresContainer: failed to run container, %w", err)
	}

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		return nil, fmt.Errorf("internal.NewPostgresContainer: failed to get connection dsn, %w", err)
	}

	return &PostgresContainer{PostgresContainer: container, ConnectionDSN: dsn}, nil
}

// NewPool opens a connection pool to the container database.
func (c *PostgresContainer) NewPool(ctx context.Context) (*pgxpool.Pool, error) {
	pool, err := pgxpool.New(ctx, c.ConnectionDSN)
	if err != nil {
		return nil, fmt.Errorf("internal.PostgresContainer: failed to open pool, %w", err)
	}

	return pool, nil
}
