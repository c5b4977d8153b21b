// Command analytics starts the standalone phrase-analytics service.
//
// It consumes query events from Kafka, aggregates them in memory (totals per
// variant, latency percentiles, cache hit rate, top and zero-match queries),
// and exposes the aggregates at GET /api/v1/analytics. With PostgreSQL
// available it also snapshots the aggregates periodically and serves the
// snapshot history.
//
// Usage:
//
//	go run ./cmd/analytics [-config configs/development.yaml]
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/phraselab/phrase-search-platform/internal/analytics"
	aggstore "github.com/phraselab/phrase-search-platform/internal/analytics/aggregator"
	"github.com/phraselab/phrase-search-platform/pkg/config"
	"github.com/phraselab/phrase-search-platform/pkg/health"
	"github.com/phraselab/phrase-search-platform/pkg/kafka"
	"github.com/phraselab/phrase-search-platform/pkg/logger"
	"github.com/phraselab/phrase-search-platform/pkg/middleware"
	"github.com/phraselab/phrase-search-platform/pkg/postgres"
)

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting analytics service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	aggregator := analytics.NewAggregator()
	consumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.QueryEvents, analytics.HandleEvent(aggregator))
	go func() {
		if err := consumer.Start(ctx); err != nil {
			slog.Error("event consumer error", "error", err)
		}
	}()
	defer consumer.Close()
	slog.Info("query event consumer started", "topic", cfg.Kafka.Topics.QueryEvents)

	var store *aggstore.Store
	pgClient, err := postgres.New(cfg.Postgres)
	if err != nil {
		slog.Warn("postgres unavailable, snapshots disabled", "error", err)
	} else {
		defer pgClient.Close()
		store = aggstore.NewStore(pgClient)
		store.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)
		slog.Info("analytics snapshots enabled", "interval", cfg.Analytics.SnapshotInterval)
	}

	analyticsHandler := analytics.NewHandler(aggregator)

	checker := health.NewChecker()
	checker.Register("postgres", func(ctx context.Context) health.ComponentHealth {
		if pgClient == nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not configured"}
		}
		if err := pgClient.Ping(ctx); err != nil {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: err.Error()}
		}
		return health.ComponentHealth{Status: health.StatusUp}
	})

	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/v1/analytics", analyticsHandler.Stats)
	mux.HandleFunc("GET /api/v1/analytics/snapshots", listSnapshots(store))
	mux.HandleFunc("GET /api/v1/analytics/snapshots/latest", latestSnapshot(store))
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()

	slog.Info("analytics service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("analytics service stopped")
}

func listSnapshots(store *aggstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots disabled"})
			return
		}
		limit := 20
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				limit = n
			}
		}
		snapshots, err := store.ListSnapshots(r.Context(), limit)
		if err != nil {
			slog.Error("listing snapshots failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to list snapshots"})
			return
		}
		writeJSON(w, http.StatusOK, snapshots)
	}
}

func latestSnapshot(store *aggstore.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if store == nil {
			writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "snapshots disabled"})
			return
		}
		snapshot, err := store.LatestSnapshot(r.Context())
		if err != nil {
			slog.Error("loading latest snapshot failed", "error", err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "failed to load snapshot"})
			return
		}
		if snapshot == nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "no snapshots yet"})
			return
		}
		writeJSON(w, http.StatusOK, snapshot)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("failed to write response", "error", err)
	}
}
