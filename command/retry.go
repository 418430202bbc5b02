package command

import (
	"context"
	"errors"
	"fmt"

	"github.com/get-eventually/tracker/logger"
	"github.com/get-eventually/tracker/version"
)

// RetryObserver is notified every time a Command is retried after a conflict.
type RetryObserver interface {
	ObserveRetry(commandName string, attempt int)
}

// RetryOption configures the Handler returned by RetryOnConflict.
type RetryOption func(*retryHandler)

// WithRetryLogger logs every retry at debug level.
func WithRetryLogger(l logger.Logger) RetryOption {
	return func(h *retryHandler) { h.logger = l }
}

// WithRetryObserver reports every retry to the RetryObserver.
func WithRetryObserver(observer RetryObserver) RetryOption {
	return func(h *retryHandler) { h.observer = observer }
}

type retryHandler struct {
	attempts int
	logger   logger.Logger
	observer RetryObserver
}

// RetryOnConflict returns a Handler running the whole Command handling again,
// up to the specified number of attempts, when it fails with a
// version.ConflictError.
//
// The wrapped Handler must load the Aggregate Root on every call,
// so that each attempt works on the latest version of it.
// Any other error is returned immediately.
func RetryOnConflict[T Command](handler Handler[T], attempts int, options ...RetryOption) Handler[T] {
	rh := &retryHandler{
		attempts: max(attempts, 1),
		logger:   nil,
		observer: nil,
	}

	for _, option := range options {
		option(rh)
	}

	return HandlerFunc[T](func(ctx context.Context, cmd Envelope[T]) error {
		var err error

		for attempt := 1; attempt <= rh.attempts; attempt++ {
			if attempt > 1 {
				logger.Debug(rh.logger, "Retrying command after version conflict",
					logger.With("command", cmd.Message.Name()),
					logger.With("attempt", attempt),
					logger.Err(err),
				)

				if rh.observer != nil {
					rh.observer.ObserveRetry(cmd.Message.Name(), attempt)
				}
			}

			if err = handler.Handle(ctx, cmd); err == nil {
				return nil
			}

			var conflictErr version.ConflictError
			if !errors.As(err, &conflictErr) {
				return err
			}

			if ctx.Err() != nil {
				break
			}
		}

		return fmt.Errorf("command.RetryOnConflict: gave up after %d attempts, %w", rh.attempts, err)
	})
}
