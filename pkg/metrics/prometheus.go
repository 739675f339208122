package metrics

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Collector exposes reconciliation counters on a dedicated registry.
type Collector struct {
	registry       *prometheus.Registry
	txOutcomes     *prometheus.CounterVec
	batchDuration  prometheus.Histogram
	accountBalance *prometheus.GaugeVec
	logger         *slog.Logger
}

func NewCollector(logger *slog.Logger) *Collector {
	if logger == nil {
		logger = slog.Default()
	}

	registry := prometheus.NewRegistry()

	return &Collector{
		registry: registry,
		txOutcomes: promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
			Name: "sync_transactions_total",
			Help: "Synced transactions by outcome (applied, skipped_*, failed)",
		}, []string{"outcome"}),
		batchDuration: promauto.With(registry).NewHistogram(prometheus.HistogramOpts{
			Name:    "sync_batch_duration_seconds",
			Help:    "Time taken to reconcile one sync batch",
			Buckets: prometheus.DefBuckets,
		}),
		accountBalance: promauto.With(registry).NewGaugeVec(prometheus.GaugeOpts{
			Name: "account_balance",
			Help: "Last reported balance per account",
		}, []string{"account_id"}),
		logger: logger,
	}
}

func (c *Collector) RecordTransaction(outcome string) {
	c.txOutcomes.WithLabelValues(outcome).Inc()
}

func (c *Collector) ObserveBatch(duration time.Duration) {
	c.batchDuration.Observe(duration.Seconds())
}

func (c *Collector) UpdateAccountBalance(accountID string, balance float64) {
	c.accountBalance.WithLabelValues(accountID).Set(balance)
}

func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// StartServer serves /metrics on its own listener and returns the server so
// the caller can shut it down.
func (c *Collector) StartServer(addr string) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", c.Handler())

	server := &http.Server{
		Addr:    addr,
		Handler: mux,
	}

	go func() {
		c.logger.Info("starting metrics server", slog.String("addr", addr))
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			c.logger.Error("metrics server failed", slog.String("error", err.Error()))
		}
	}()

	return server
}

func (c *Collector) Shutdown(ctx context.Context) error {
	return nil
}
