package nats_test

import (
	"context"
	"os"
	"testing"

	natsgo "github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/wait"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/nats"
	"github.com/get-eventually/tracker/worker"
)

// connect uses the server in NATS_URL, or starts a JetStream enabled
// NATS container when the variable is not set.
func connect(t *testing.T) jetstream.JetStream {
	t.Helper()

	if testing.Short() {
		t.SkipNow()
	}

	ctx := context.Background()

	url, ok := os.LookupEnv("NATS_URL")
	if !ok {
		container, err := testcontainers.GenericContainer(ctx, testcontainers.GenericContainerRequest{
			ContainerRequest: testcontainers.ContainerRequest{
				Image:        "nats:2.10-alpine",
				Cmd:          []string{"-js"},
				ExposedPorts: []string{"4222/tcp"},
				WaitingFor:   wait.ForLog("Server is ready"),
			},
			Started: true,
		})
		testcontainers.CleanupContainer(t, container)
		require.NoError(t, err)

		url, err = container.PortEndpoint(ctx, "4222/tcp", "nats")
		require.NoError(t, err)
	}

	nc, err := natsgo.Connect(url, natsgo.MaxReconnects(3))
	require.NoError(t, err)
	t.Cleanup(nc.Close)

	js, err := jetstream.New(nc)
	require.NoError(t, err)

	return js
}

func TestCheckpointStore(t *testing.T) {
	js := connect(t)
	ctx := context.Background()

	store, err := nats.NewCheckpointStore(ctx, js, "")
	require.NoError(t, err)

	t.Run("suite", worker.CheckpointStoreSuite(store))

	t.Run("the bucket can be opened twice", func(t *testing.T) {
		other, err := nats.NewCheckpointStore(ctx, js, nats.DefaultBucket)
		require.NoError(t, err)

		name := worker.Name("bucket_reopened_" + event.NewID().String()[:8])
		id := event.NewID()

		require.NoError(t, store.StoreLastEventID(ctx, name, event.ID{}, id))

		got, err := other.LastEventID(ctx, name)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	})

	t.Run("concurrent moves from the same checkpoint conflict", func(t *testing.T) {
		name := worker.Name("racing_instances_" + event.NewID().String()[:8])
		first, second, third := event.NewID(), event.NewID(), event.NewID()

		require.NoError(t, store.StoreLastEventID(ctx, name, event.ID{}, first))
		require.NoError(t, store.StoreLastEventID(ctx, name, first, second))

		var conflict worker.CheckpointConflictError
		err := store.StoreLastEventID(ctx, name, first, third)
		require.ErrorAs(t, err, &conflict)
		assert.Equal(t, second, conflict.Actual)
	})
}
