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

	"github.com/okian/coffeematch/internal/adapters/http/api"
	"github.com/okian/coffeematch/internal/adapters/matching"
	"github.com/okian/coffeematch/internal/adapters/repository"
	"github.com/okian/coffeematch/internal/adapters/scheduler"
	app "github.com/okian/coffeematch/internal/app"
	"github.com/okian/coffeematch/internal/config"
	"github.com/okian/coffeematch/pkg/logger"
	"github.com/okian/coffeematch/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	writeTimeout      = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
	shutdownTimeout   = 30 * time.Second
)

func main() {
	// Initialize logging
	if err := logger.Init(); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() { _ = logger.Sync() }()

	log := logger.Get()

	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := run(ctx, cfg, log); err != nil {
		log.Error(ctx, "coffeematch stopped with error", logger.Error(err))
		os.Exit(1)
	}
}

// application holds the wired process components.
type application struct {
	store     *repository.SQLiteStore
	clients   *matching.Lifecycle
	service   *app.Service
	scheduler *scheduler.Scheduler
	server    *http.Server
}

// newApplication wires every component from cfg without starting anything.
// A matching client configuration error is fatal here.
func newApplication(cfg *config.Config, log logger.Logger) (*application, error) {
	if err := metrics.RegisterRuntimeCollectors(); err != nil {
		log.Warn(context.Background(), "runtime metrics unavailable", logger.Error(err))
	}

	clients := matching.NewLifecycle(
		func() (matching.Config, error) { return cfg.MatchingClientConfig(), nil },
		matching.WithLogger(log),
		matching.WithSinkFactory(prometheusSink),
	)
	if _, err := clients.Client(); err != nil {
		return nil, err
	}

	store, err := repository.NewSQLiteStore(cfg.DatabasePath)
	if err != nil {
		return nil, err
	}

	svc := app.New(
		app.WithLogger(log.Named("service")),
		app.WithStore(store),
		app.WithClientProvider(clients),
	)

	sched, err := scheduler.New(svc,
		scheduler.WithLogger(log.Named("scheduler")),
		scheduler.WithInterval(cfg.MatchingInterval),
		scheduler.WithRunOnStart(cfg.RunOnStart),
	)
	if err != nil {
		_ = store.Close()
		return nil, err
	}

	mux := http.NewServeMux()
	apiServer := api.NewServer(clients, svc,
		api.WithTriggerToken(cfg.MetricsTriggerToken),
		api.WithLogger(log.Named("api")),
	)
	apiServer.Register(context.Background(), mux)

	return &application{
		store:     store,
		clients:   clients,
		service:   svc,
		scheduler: sched,
		server: &http.Server{
			Addr:              cfg.Addr,
			Handler:           mux,
			ReadTimeout:       readTimeout,
			WriteTimeout:      writeTimeout,
			IdleTimeout:       idleTimeout,
			ReadHeaderTimeout: readHeaderTimeout,
		},
	}, nil
}

// prometheusSink registers the matching-service collectors on the package
// registry.
func prometheusSink() (matching.Sink, error) {
	m, err := metrics.NewManager()
	if err != nil {
		return nil, err
	}
	return m, nil
}

func run(ctx context.Context, cfg *config.Config, log logger.Logger) error {
	a, err := newApplication(cfg, log)
	if err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	defer func() { _ = a.store.Close() }()

	if err := a.scheduler.Start(ctx); err != nil {
		return fmt.Errorf("startup: %w", err)
	}
	if next, err := a.scheduler.NextRun(); err == nil {
		log.Info(ctx, "next matching run scheduled", logger.String("at", next.Format(time.RFC3339)))
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := a.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal or a server failure
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			_ = a.scheduler.Stop(context.Background())
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := a.scheduler.Stop(shutdownCtx); err != nil {
		log.Error(ctx, "scheduler shutdown failed", logger.Error(err))
	}
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}

	log.Info(ctx, "server stopped")
	return nil
}
