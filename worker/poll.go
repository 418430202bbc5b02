package worker

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/get-eventually/tracker/logger"
)

// Default values used by Poll.
const (
	DefaultPollInterval    = 100 * time.Millisecond
	DefaultMaxPollInterval = 5 * time.Second
)

// PollOption configures Poll.
type PollOption func(*backoff.ExponentialBackOff)

// WithPollInterval sets the interval between runs while new Events keep coming.
func WithPollInterval(d time.Duration) PollOption {
	return func(b *backoff.ExponentialBackOff) {
		if d > 0 {
			b.InitialInterval = d
		}
	}
}

// WithMaxPollInterval caps the interval between runs when the Event Log is idle.
// Use this value to ensure a specific eventual consistency window.
func WithMaxPollInterval(d time.Duration) PollOption {
	return func(b *backoff.ExponentialBackOff) {
		if d > 0 {
			b.MaxInterval = d
		}
	}
}

// Poll runs the Worker repeatedly until the context is canceled,
// backing off exponentially while there are no new Events.
//
// Poll stops at the first failed run: restart it to retry
// from the last checkpoint.
func Poll(ctx context.Context, w Worker, options ...PollOption) error {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = DefaultPollInterval
	b.MaxInterval = DefaultMaxPollInterval
	b.MaxElapsedTime = 0 // Never stop polling.

	for _, option := range options {
		option(b)
	}

	b.Reset()

	timer := time.NewTimer(0)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case <-timer.C:
			processed, err := w.run(ctx)
			if err != nil {
				return err
			}

			if processed > 0 {
				logger.Debug(w.Logger, "Worker caught up",
					logger.With("worker", string(w.Name)),
					logger.With("processed", processed),
				)

				b.Reset()
			}

			timer.Reset(b.NextBackOff())
		}
	}
}
