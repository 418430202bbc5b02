package main

import (
	"context"
	"fmt"

	gcpfirestore "cloud.google.com/go/firestore"
	"github.com/jackc/pgx/v5/pgxpool"
	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/firestore"
	"github.com/get-eventually/tracker/nats"
	"github.com/get-eventually/tracker/postgres"
	"github.com/get-eventually/tracker/sqlite"
	"github.com/get-eventually/tracker/worker"
)

// backend holds the storage the workers run on.
type backend struct {
	store       event.Store
	index       event.Index
	checkpoints worker.CheckpointStore
	closers     []func()
}

func (b *backend) close() {
	for i := len(b.closers) - 1; i >= 0; i-- {
		b.closers[i]()
	}
}

func openBackend(ctx context.Context, cfg *config) (*backend, error) {
	b := new(backend)

	switch cfg.Backend {
	case backendMemory:
		b.store = event.NewInMemoryStore()
		b.index = event.NewInMemoryIndex()
		b.checkpoints = worker.NewInMemoryCheckpointStore()

	case backendPostgres:
		if err := postgres.RunMigrations(cfg.Postgres.URL); err != nil {
			return nil, err
		}

		conn, err := pgxpool.New(ctx, cfg.Postgres.URL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres, %w", err)
		}

		b.closers = append(b.closers, conn.Close)
		b.store = postgres.EventStore{Conn: conn}
		b.index = postgres.StreamIndex{Conn: conn}
		b.checkpoints = postgres.CheckpointStore{Conn: conn}

	case backendSQLite:
		db, err := sqlite.Open(ctx, cfg.SQLite.Path)
		if err != nil {
			return nil, err
		}

		b.closers = append(b.closers, func() { _ = db.Close() })
		b.store = sqlite.EventStore{DB: db}
		b.index = sqlite.StreamIndex{DB: db}
		b.checkpoints = sqlite.CheckpointStore{DB: db}

	case backendFirestore:
		client, err := gcpfirestore.NewClient(ctx, cfg.Firestore.ProjectID)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to firestore, %w", err)
		}

		b.closers = append(b.closers, func() { _ = client.Close() })
		b.store = firestore.EventStore{Client: client}
		b.index = firestore.StreamIndex{Client: client}
		b.checkpoints = firestore.CheckpointStore{Client: client}
	}

	if cfg.NATS.URL == "" {
		return b, nil
	}

	nc, err := natsgo.Connect(cfg.NATS.URL)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("failed to connect to nats, %w", err)
	}

	b.closers = append(b.closers, nc.Close)

	js, err := jetstream.New(nc)
	if err != nil {
		b.close()
		return nil, fmt.Errorf("failed to open jetstream, %w", err)
	}

	if b.checkpoints, err = nats.NewCheckpointStore(ctx, js, cfg.NATS.Bucket); err != nil {
		b.close()
		return nil, err
	}

	return b, nil
}
