package main

import (
	"context"
	"database/sql"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	clog "github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/shopspring/decimal"

	"github.com/GhanshyamSharma122/server-for-payment/internal/accounts"
	"github.com/GhanshyamSharma122/server-for-payment/internal/api"
	"github.com/GhanshyamSharma122/server-for-payment/internal/api/middleware"
	"github.com/GhanshyamSharma122/server-for-payment/internal/events/kafka"
	"github.com/GhanshyamSharma122/server-for-payment/internal/interfaces"
	"github.com/GhanshyamSharma122/server-for-payment/internal/reconcile"
	"github.com/GhanshyamSharma122/server-for-payment/internal/storage/memory"
	"github.com/GhanshyamSharma122/server-for-payment/internal/storage/postgres"
	"github.com/GhanshyamSharma122/server-for-payment/internal/verify"
	"github.com/GhanshyamSharma122/server-for-payment/pkg/metrics"
)

func main() {
	// A missing .env file is fine; production configures via real env vars.
	_ = godotenv.Load()
	logger := setupLogger()

	startingBalance := accounts.DefaultStartingBalance
	if v := os.Getenv("STARTING_BALANCE"); v != "" {
		parsed, err := decimal.NewFromString(v)
		if err != nil {
			logger.Error("invalid STARTING_BALANCE", slog.String("value", v))
			os.Exit(1)
		}
		startingBalance = parsed
	}

	store := setupStore(logger)

	var verifier verify.Verifier = verify.AcceptAll{}
	if secret := os.Getenv("SYNC_SECRET"); secret != "" {
		verifier = verify.NewHMACVerifier(secret)
		logger.Info("transaction signature verification enabled")
	}

	var publisher interfaces.EventPublisher
	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		publisher = kafka.NewPublisher(strings.Split(brokers, ","))
		logger.Info("kafka publisher enabled", slog.String("brokers", brokers))
	}

	collector := metrics.NewCollector(logger)
	metricsServer := collector.StartServer(envOr("METRICS_ADDR", ":9090"))

	accountStore := accounts.NewStore(store, startingBalance)
	engine := reconcile.NewEngine(store, verifier, publisher, collector, startingBalance, logger)
	handler := api.NewHandler(accountStore, engine, store, logger)

	router := chi.NewRouter()
	router.Get("/health", handler.Health)
	router.Post("/login", handler.Login)
	router.Method(http.MethodPost, "/sync", setupSyncHandler(handler, logger))
	router.Get("/accounts/balance", handler.AccountBalance)
	router.Get("/transactions", handler.Transactions)

	server := &http.Server{
		Addr:         envOr("ADDR", ":8080"),
		Handler:      router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server failed", slog.String("error", err.Error()))
			os.Exit(1)
		}
	}()

	waitForShutdown(logger, server, metricsServer, publisher)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func setupLogger() *slog.Logger {
	handler := clog.NewWithOptions(os.Stderr, clog.Options{
		ReportTimestamp: true,
		Level:           clog.InfoLevel,
	})
	return slog.New(handler)
}

func setupStore(logger *slog.Logger) interfaces.LedgerStore {
	dbURL := os.Getenv("DB_URL")
	if dbURL == "" {
		logger.Info("using in-memory ledger store")
		return memory.NewMemoryLedgerStore()
	}

	db, err := sql.Open("postgres", dbURL)
	if err != nil {
		logger.Error("opening postgres failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := db.Ping(); err != nil {
		logger.Error("postgres ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	if err := postgres.InitSchema(db); err != nil {
		logger.Error("schema init failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("using postgres ledger store")
	return postgres.NewPostgresLedgerStore(db)
}

func setupSyncHandler(handler *api.Handler, logger *slog.Logger) http.Handler {
	var sync http.Handler = http.HandlerFunc(handler.Sync)

	redisAddr := os.Getenv("REDIS_ADDR")
	if redisAddr == "" {
		return sync
	}

	rdb := redis.NewClient(&redis.Options{Addr: redisAddr})
	if _, err := rdb.Ping(context.Background()).Result(); err != nil {
		logger.Error("redis ping failed", slog.String("error", err.Error()))
		os.Exit(1)
	}
	logger.Info("sync idempotency cache enabled", slog.String("redis", redisAddr))
	return middleware.Idempotency(rdb, logger)(sync)
}

func waitForShutdown(logger *slog.Logger, server, metricsServer *http.Server, publisher interfaces.EventPublisher) {
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, os.Interrupt, syscall.SIGTERM)

	<-stop
	logger.Info("shutdown signal received")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		logger.Error("server shutdown failed", slog.String("error", err.Error()))
	}
	if err := metricsServer.Shutdown(ctx); err != nil {
		logger.Error("metrics server shutdown failed", slog.String("error", err.Error()))
	}
	if closer, ok := publisher.(interface{ Close() error }); ok {
		if err := closer.Close(); err != nil {
			logger.Error("publisher close failed", slog.String("error", err.Error()))
		}
	}
	logger.Info("shutdown complete")
}
