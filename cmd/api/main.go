package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/redis/go-redis/v9"

	"github.com/Hyllekvist/dripdrops/internal/app"
	"github.com/Hyllekvist/dripdrops/internal/cache"
	"github.com/Hyllekvist/dripdrops/internal/clock"
	"github.com/Hyllekvist/dripdrops/internal/events"
	"github.com/Hyllekvist/dripdrops/internal/obs"
	"github.com/Hyllekvist/dripdrops/internal/storage/memory"
	"github.com/Hyllekvist/dripdrops/internal/storage/postgres"
	transporthttp "github.com/Hyllekvist/dripdrops/internal/transport/http"
	"github.com/Hyllekvist/dripdrops/migrations"
)

const (
	defaultPort        = "8080"
	defaultCORSOrigins = "http://localhost:3000,http://127.0.0.1:3000"
	shutdownTimeout    = 10 * time.Second
)

func main() {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, nil))
	slog.SetDefault(logger)

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		logger.Warn("failed to load .env", slog.String("error", err.Error()))
	}

	port := os.Getenv("PORT")
	if port == "" {
		logger.Warn("PORT not set, using default", slog.String("port", defaultPort))
		port = defaultPort
	}

	corsEnv := os.Getenv("CORS_ORIGINS")
	if corsEnv == "" {
		logger.Warn("CORS_ORIGINS not set, using default local origins")
		corsEnv = defaultCORSOrigins
	}

	holdTTL := 120 * time.Second
	if raw := os.Getenv("HOLD_TTL_SECONDS"); raw != "" {
		secs, err := strconv.Atoi(raw)
		if err != nil || secs <= 0 {
			logger.Warn("invalid HOLD_TTL_SECONDS, keeping default", slog.String("value", raw))
		} else {
			holdTTL = time.Duration(secs) * time.Second
		}
	}

	startupCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ledger, cleanup, err := openLedger(startupCtx, logger)
	if err != nil {
		logger.Error("open ledger", slog.String("error", err.Error()))
		os.Exit(1)
	}
	defer cleanup()

	metrics := obs.NewMetrics(prometheus.DefaultRegisterer)
	publisher := openPublisher(logger)
	if closer, ok := publisher.(*events.AMQPPublisher); ok {
		defer func() { _ = closer.Close() }()
	}

	clk := clock.NewSystem()
	reserveSvc := app.NewReserveService(ledger.items, clk,
		app.WithHoldTTL(holdTTL),
		app.WithReserveMetrics(metrics),
		app.WithReserveEvents(publisher),
	)
	saleSvc := app.NewSaleService(ledger.items, clk,
		app.WithSaleMetrics(metrics),
		app.WithSaleEvents(publisher),
	)

	statusOpts := []app.StatusServiceOption{}
	if snapCache := openStatusCache(logger); snapCache != nil {
		statusOpts = append(statusOpts, app.WithSnapshotCache(snapCache))
	}
	statusSvc := app.NewStatusService(ledger.items, clk, statusOpts...)
	catalogSvc := app.NewCatalogService(ledger.catalog, clk)

	handler := transporthttp.NewRouter(reserveSvc, saleSvc, statusSvc, catalogSvc, logger, parseCSV(corsEnv))

	server := &http.Server{
		Addr:    ":" + port,
		Handler: handler,
	}

	logger.Info("api listening", slog.String("port", port), slog.Duration("hold_ttl", holdTTL))

	srvErr := make(chan error, 1)
	go func() {
		srvErr <- server.ListenAndServe()
	}()

	stopCtx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	select {
	case err := <-srvErr:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("server error", slog.String("error", err.Error()))
		}
	case <-stopCtx.Done():
		logger.Info("shutdown signal received, stopping server")
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logger.Error("server shutdown error", slog.String("error", err.Error()))
	}
	logger.Info("server stopped")
}

// itemLedger bundles the full ledger contract the services consume. Both
// backends satisfy every slice of it.
type itemLedger interface {
	app.ReserveLedger
	app.SaleLedger
	app.StatusLedger
}

type ledgerSet struct {
	items   itemLedger
	catalog app.CatalogRepository
}

// openLedger picks the durable Postgres ledger when DATABASE_URL is set, and
// the in-process one otherwise.
func openLedger(ctx context.Context, logger *slog.Logger) (ledgerSet, func(), error) {
	dbURL := os.Getenv("DATABASE_URL")
	if dbURL == "" {
		logger.Warn("DATABASE_URL not set, using in-memory ledger (state is not durable)")
		mem := memory.NewLedger()
		return ledgerSet{items: mem, catalog: mem}, func() {}, nil
	}

	pool, err := pgxpool.New(ctx, dbURL)
	if err != nil {
		return ledgerSet{}, nil, err
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return ledgerSet{}, nil, err
	}
	if err := migrations.Apply(ctx, pool); err != nil {
		pool.Close()
		return ledgerSet{}, nil, err
	}

	return ledgerSet{
		items:   postgres.NewItemRepository(pool),
		catalog: postgres.NewCatalogRepository(pool),
	}, pool.Close, nil
}

func openStatusCache(logger *slog.Logger) app.SnapshotCache {
	redisURL := os.Getenv("REDIS_URL")
	if redisURL == "" {
		return nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		logger.Warn("invalid REDIS_URL, status cache disabled", slog.String("error", err.Error()))
		return nil
	}
	logger.Info("status cache enabled", slog.String("addr", opts.Addr))
	return cache.NewSnapshotCache(redis.NewClient(opts), logger)
}

func openPublisher(logger *slog.Logger) app.EventPublisher {
	amqpURL := os.Getenv("AMQP_URL")
	if amqpURL == "" {
		return app.NopPublisher{}
	}
	publisher, err := events.NewAMQPPublisher(amqpURL, logger)
	if err != nil {
		logger.Warn("broker unreachable, lifecycle events disabled", slog.String("error", err.Error()))
		return app.NopPublisher{}
	}
	logger.Info("lifecycle events enabled")
	return publisher
}

func parseCSV(input string) []string {
	if input == "" {
		return nil
	}
	parts := strings.Split(input, ",")
	out := make([]string, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		out = append(out, part)
	}
	return out
}
