package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/okian/scorebridge/internal/adapters/http/api"
	"github.com/okian/scorebridge/internal/adapters/port"
	"github.com/okian/scorebridge/internal/adapters/repository"
	app "github.com/okian/scorebridge/internal/app"
	"github.com/okian/scorebridge/internal/bridge"
	"github.com/okian/scorebridge/internal/config"
	"github.com/okian/scorebridge/internal/domain/seed"
	"github.com/okian/scorebridge/pkg/logger"
	"github.com/okian/scorebridge/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
)

// HTTP server timeout constants.
const (
	readTimeout               = 10 * time.Second
	idleTimeout               = 60 * time.Second
	readHeaderTimeout         = 5 * time.Second
	shutdownTimeout           = 30 * time.Second
	systemMetricsInterval     = 10 * time.Second
	nanosecondsPerMillisecond = 1e6
)

func main() {
	// Disable default Go metrics collection to avoid duplicate metrics.
	prometheus.Unregister(collectors.NewGoCollector())
	prometheus.Unregister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	if err := logger.Init(); err != nil {
		_, _ = os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		logger.Get().Error(ctx, "scorebridge exited", logger.Error(err))
		_ = logger.Sync()
		stop()
		os.Exit(1) //nolint:gocritic // exitAfterDefer: stop called above
	}
	_ = logger.Sync()
}

func run(ctx context.Context) error {
	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.InitWithWriter(os.Stdout, cfg.LogFormat); err != nil {
		return fmt.Errorf("init logging: %w", err)
	}
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	// A host without a secure random source cannot serve sessions at all.
	if _, err := seed.Generate(ctx); err != nil {
		return fmt.Errorf("secure random source: %w", err)
	}

	policy, err := bridge.ParseReadPolicy(cfg.ReadPolicy)
	if err != nil {
		return err
	}

	collection, err := openCollection(ctx, cfg)
	if err != nil {
		return err
	}

	svc := app.New(collection,
		app.WithLogger(log.Named("service")),
		app.WithWorkerCount(cfg.WriteWorkers),
		app.WithQueueSize(cfg.WriteQueueSize),
		app.WithReadPolicy(policy),
		app.WithFailureNotify(cfg.NotifyWriteFailures),
	)
	if err := svc.Start(ctx); err != nil {
		_ = collection.Close()
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	go startSystemMetricsUpdater(ctx)

	apiServer := api.NewServer(svc, svc,
		api.WithLogger(log.Named("http")),
		api.WithAllowedOrigins(cfg.Origins()),
		api.WithPortOptions(
			port.WithSendBuffer(cfg.WSSendBuffer),
			port.WithMaxMessageSize(cfg.WSMaxMessageSize),
			port.WithPingInterval(time.Duration(cfg.WSPingIntervalMS)*time.Millisecond),
		),
	)
	mux := http.NewServeMux()
	apiServer.Register(ctx, mux)

	// No WriteTimeout: websocket sessions are long lived and the ports set
	// their own per-frame write deadlines.
	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           apiServer.Handler(mux),
		ReadTimeout:       readTimeout,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(ctx, "shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(ctx, "server shutdown failed", logger.Error(err))
	}
	// Shutdown does not touch hijacked websocket connections.
	apiServer.Close()

	log.Info(ctx, "server stopped")
	return nil
}

// openCollection connects the configured leaderboard backend.
func openCollection(ctx context.Context, cfg *config.Config) (repository.Collection, error) {
	log := logger.Get().Named("collection")
	switch cfg.Backend {
	case config.BackendNATS:
		kv, err := repository.DialKV(ctx, cfg.NATSURL,
			repository.WithPath(cfg.CollectionPath),
			repository.WithLogger(log),
		)
		if err != nil {
			return nil, fmt.Errorf("open nats collection: %w", err)
		}
		log.Info(ctx, "using nats kv collection",
			logger.String("url", cfg.NATSURL),
			logger.String("bucket", cfg.CollectionPath),
		)
		return kv, nil
	case config.BackendMemory:
		log.Info(ctx, "using in-memory collection", logger.String("path", cfg.CollectionPath))
		return repository.NewMemoryCollection(
			repository.WithPath(cfg.CollectionPath),
			repository.WithLogger(log),
		), nil
	default:
		return nil, fmt.Errorf("%w: unknown backend %q", config.ErrInvalidConfig, cfg.Backend)
	}
}

// startSystemMetricsUpdater starts a background goroutine that updates system metrics.
func startSystemMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(systemMetricsInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			updateSystemMetrics()
		}
	}
}

// updateSystemMetrics updates system-level metrics.
func updateSystemMetrics() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	metrics.UpdateSystemMemoryUsage(m.Alloc)
	metrics.UpdateSystemGoroutineCount(runtime.NumGoroutine())

	if m.NumGC > 0 {
		avgPauseMs := float64(m.PauseTotalNs) / float64(m.NumGC) / nanosecondsPerMillisecond
		metrics.RecordSystemGCPauseTime(avgPauseMs)
	}
}
