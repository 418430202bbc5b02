// Package main contains the entrypoint of the worker process fetching
// the profiles of the requested Twitter users.
package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/get-eventually/tracker/command"
	"github.com/get-eventually/tracker/correlation"
	"github.com/get-eventually/tracker/event"
	"github.com/get-eventually/tracker/internal/twiq/user"
	"github.com/get-eventually/tracker/internal/twiq/userrequest"
	"github.com/get-eventually/tracker/internal/twiq/workers"
	"github.com/get-eventually/tracker/logger/zaplogger"
	"github.com/get-eventually/tracker/opentelemetry"
	trackerprometheus "github.com/get-eventually/tracker/prometheus"
	"github.com/get-eventually/tracker/worker"
)

const requestUserAttempts = 3

// instrument wraps the backend Event Store with tracing, and with
// correlation ids on every appended Event.
func instrument(store event.Store) (event.Store, error) {
	instrumented, err := opentelemetry.NewInstrumentedEventStore(store)
	if err != nil {
		return nil, err
	}

	return event.FusedStore{
		Appender:     correlation.Appender{Appender: instrumented},
		StreamFinder: instrumented,
		Log:          instrumented,
	}, nil
}

func newDependencies(cfg *config, store event.Store, log *zaplogger.Logger) (workers.Dependencies, error) {
	users, err := opentelemetry.NewInstrumentedRepository(user.Type, workers.NewUserRepository(store))
	if err != nil {
		return workers.Dependencies{}, err
	}

	userRequests, err := opentelemetry.NewInstrumentedRepository(
		userrequest.Type,
		workers.NewUserRequestRepository(store),
	)
	if err != nil {
		return workers.Dependencies{}, err
	}

	return workers.Dependencies{
		Clock:        time.Now,
		Users:        users,
		UserRequests: userRequests,
		Fetcher: userrequest.HTTPFetcher{
			Client:      &http.Client{Timeout: cfg.Twitter.Timeout},
			BaseURL:     cfg.Twitter.BaseURL,
			BearerToken: cfg.Twitter.BearerToken,
		},
		QueryUsers: workers.NewInMemoryQueryUserStore(),
		Logger:     log,
	}, nil
}

// requestUsers requests the profile of every configured Twitter user.
// Users requested in the last day are skipped.
func requestUsers(ctx context.Context, cfg *config, handler command.Handler[workers.RequestUser], log *zap.Logger) error {
	for _, twitterUserID := range cfg.RequestUsers {
		err := handler.Handle(ctx, command.ToEnvelope(workers.RequestUser{TwitterUserID: twitterUserID}))

		switch {
		case errors.Is(err, user.ErrTooManyRequests):
			log.Sugar().Infow("user already requested", "twitter_user_id", twitterUserID)
		case err != nil:
			return fmt.Errorf("failed to request user %s, %w", twitterUserID, err)
		default:
			log.Sugar().Infow("user requested", "twitter_user_id", twitterUserID)
		}
	}

	return nil
}

// poll runs the Worker until the context is canceled,
// restarting it from its checkpoint after a failure.
func poll(ctx context.Context, cfg *config, w worker.Worker, log *zap.Logger) error {
	for {
		err := worker.Poll(ctx, w,
			worker.WithPollInterval(cfg.Poll.Interval),
			worker.WithMaxPollInterval(cfg.Poll.MaxInterval),
		)
		if ctx.Err() != nil {
			return nil
		}

		log.Sugar().Errorw("worker stopped, restarting", "worker", w.Name, "error", err)

		select {
		case <-ctx.Done():
			return nil
		case <-time.After(cfg.Poll.MaxInterval):
		}
	}
}

func serveMetrics(ctx context.Context, cfg *config, reg *prometheus.Registry, log *zap.Logger) error {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}))

	srv := &http.Server{
		Addr:              cfg.Metrics.Address,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		_ = srv.Shutdown(shutdownCtx)
	}()

	log.Sugar().Infow("metrics server started", "address", cfg.Metrics.Address)

	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("metrics server exited with error, %w", err)
	}

	return nil
}

func run() error {
	config, err := parseConfig()
	if err != nil {
		return fmt.Errorf("tracker.main: failed to parse config, %w", err)
	}

	log, err := zaplogger.New(config.Development)
	if err != nil {
		return fmt.Errorf("tracker.main: failed to initialize logger, %w", err)
	}

	zapLogger := (*zap.Logger)(log)

	//nolint:errcheck // No need for this error to come up if it happens.
	defer zapLogger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	backend, err := openBackend(ctx, config)
	if err != nil {
		return fmt.Errorf("tracker.main: failed to open %s backend, %w", config.Backend, err)
	}

	defer backend.close()

	store, err := instrument(backend.store)
	if err != nil {
		return fmt.Errorf("tracker.main: failed to instrument event store, %w", err)
	}

	deps, err := newDependencies(config, store, log)
	if err != nil {
		return fmt.Errorf("tracker.main: failed to build workers, %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	metrics := trackerprometheus.NewWorkerMetrics(reg)

	requestUser := command.RetryOnConflict[workers.RequestUser](
		workers.RequestUserHandler{
			Clock:      time.Now,
			Index:      backend.index,
			Repository: deps.Users,
		},
		requestUserAttempts,
		command.WithRetryLogger(log),
		command.WithRetryObserver(trackerprometheus.NewRetryMetrics(reg)),
	)

	if err := requestUsers(ctx, config, requestUser, zapLogger); err != nil {
		return fmt.Errorf("tracker.main: %w", err)
	}

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() error { return serveMetrics(ctx, config, reg, zapLogger) })

	for name, handler := range deps.Handlers() {
		instrumented, err := opentelemetry.NewInstrumentedHandler(name, correlation.Handler(handler))
		if err != nil {
			return fmt.Errorf("tracker.main: failed to instrument %s, %w", name, err)
		}

		w := worker.Worker{
			Name:        name,
			Log:         store,
			Codec:       workers.Codec,
			Checkpoints: backend.checkpoints,
			Handler:     instrumented,
			Logger:      log,
			Metrics:     metrics,
		}

		group.Go(func() error { return poll(ctx, config, w, zapLogger) })
	}

	zapLogger.Sugar().Infow("workers started", "backend", config.Backend)

	if err := group.Wait(); err != nil {
		return fmt.Errorf("tracker.main: %w", err)
	}

	return nil
}

func main() {
	if err := run(); err != nil {
		panic(err)
	}
}
