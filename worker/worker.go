// Package worker runs checkpointed Event handlers over the global
// Event Log, resuming from the last Event each Worker has processed.
package worker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/logger"
)

// Name identifies a Worker and its checkpoint.
type Name string

// Handler processes a single Event read from the Event Log.
//
// Handlers may see the same Event more than once, e.g. if the process stops
// between handling an Event and storing the checkpoint, so they should be
// idempotent.
type Handler interface {
	Handle(ctx context.Context, evt event.Persisted) error
}

// HandlerFunc is a functional type that implements the Handler interface.
type HandlerFunc func(ctx context.Context, evt event.Persisted) error

// Handle calls the function.
func (fn HandlerFunc) Handle(ctx context.Context, evt event.Persisted) error {
	return fn(ctx, evt)
}

// Metrics receives the outcome of every Event processed by a Worker.
type Metrics interface {
	EventHandled(name Name, typ event.Type, duration time.Duration)
	EventSkipped(name Name, typ event.Type)
	EventFailed(name Name, typ event.Type, duration time.Duration)
}

// Worker processes all the Events appended to the Event Log after its
// checkpoint, in global order, one at a time.
//
// Events with a Type the Codec does not know are not passed to the Handler,
// but still move the checkpoint forward.
type Worker struct {
	Name        Name
	Log         event.Log
	Codec       event.Codec
	Checkpoints CheckpointStore
	Handler     Handler

	// Optional.
	Logger  logger.Logger
	Metrics Metrics
}

// Run processes every Event not processed yet and returns when
// it has caught up with the Event Log.
//
// The checkpoint is stored after every Event. A Handler error stops the run
// without moving the checkpoint, so the Event is processed again on
// the next run.
func (w Worker) Run(ctx context.Context) error {
	_, err := w.run(ctx)
	return err
}

func (w Worker) run(ctx context.Context) (int, error) {
	log := logger.WithFields(w.Logger, logger.With("worker", string(w.Name)))

	cursor, err := w.Checkpoints.LastEventID(ctx, w.Name)
	if err != nil {
		return 0, fmt.Errorf("worker.Worker: failed to read checkpoint of %s, %w", w.Name, err)
	}

	ids, err := w.Log.FindEventIDsAfter(ctx, cursor)
	if err != nil {
		return 0, fmt.Errorf("worker.Worker: failed to read events after %s, %w", cursor, err)
	}

	for i, id := range ids {
		if err := ctx.Err(); err != nil {
			return i, err
		}

		if err := w.process(ctx, log, id); err != nil {
			return i, err
		}

		if err := w.Checkpoints.StoreLastEventID(ctx, w.Name, cursor, id); err != nil {
			return i, fmt.Errorf("worker.Worker: failed to store checkpoint of %s, %w", w.Name, err)
		}

		cursor = id
	}

	return len(ids), nil
}

func (w Worker) process(ctx context.Context, log logger.Logger, id event.ID) error {
	evt, ok, err := w.Log.FindEvent(ctx, id)
	if err != nil {
		return fmt.Errorf("worker.Worker: failed to read event %s, %w", id, err)
	}

	if !ok {
		return fmt.Errorf("worker.Worker: event %s, %w", id, event.ErrEventNotFound)
	}

	persisted, err := event.Decode(w.Codec, evt)
	if errors.Is(err, event.ErrUnknownType) {
		logger.Debug(log, "Skipping event", logger.With("event.id", id), logger.With("event.type", evt.Type))

		if w.Metrics != nil {
			w.Metrics.EventSkipped(w.Name, evt.Type)
		}

		return nil
	}

	if err != nil {
		return fmt.Errorf("worker.Worker: %w", err)
	}

	start := time.Now()

	if err := w.Handler.Handle(ctx, persisted); err != nil {
		logger.Error(log, "Failed to handle event",
			logger.With("event.id", id),
			logger.With("event.type", evt.Type),
			logger.Err(err),
		)

		if w.Metrics != nil {
			w.Metrics.EventFailed(w.Name, evt.Type, time.Since(start))
		}

		return fmt.Errorf("worker.Worker: failed to handle event %s, %w", id, err)
	}

	logger.Debug(log, "Event handled", logger.With("event.id", id), logger.With("event.type", evt.Type))

	if w.Metrics != nil {
		w.Metrics.EventHandled(w.Name, evt.Type, time.Since(start))
	}

	return nil
}
