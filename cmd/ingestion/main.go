// Command ingestion accepts documents with their intervals via
// POST /api/v1/documents, validates them, and publishes them to Kafka for
// the indexer.
//
// Usage:
//
//	go run ./cmd/ingestion [-config configs/development.yaml]
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/ingestion/handler"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/ingestion/publisher"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/middleware"
)

const routeDocuments = "/api/v1/documents"

func main() {
	configPath := flag.String("config", "configs/development.yaml", "path to config file")
	flag.Parse()
	cfg, err := config.Load(*configPath)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	logger.Setup(cfg.Logging.Level, cfg.Logging.Format)
	slog.Info("starting ingestion service", "port", cfg.Server.Port)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.DocumentIngest)
	defer producer.Close()
	slog.Info("kafka producer initialized", "topic", cfg.Kafka.Topics.DocumentIngest)

	pub := publisher.New(producer, cfg.Search.IntervalField)
	h := handler.New(pub)

	checker := health.NewChecker()
	checker.Register("kafka", health.PingCheck(func(ctx context.Context) error {
		return kafka.Ping(ctx, cfg.Kafka.Brokers)
	}, false))

	mux := http.NewServeMux()
	mux.HandleFunc("POST "+routeDocuments, h.Ingest)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))(chain)
	}
	chain = middleware.Metrics(m, routeDocuments)(chain)
	chain = middleware.RequestID(chain)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Server.Port),
		Handler:      chain,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	go func() {
		<-ctx.Done()
		slog.Info("shutdown signal received")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			slog.Error("server shutdown error", "error", err)
		}
	}()
	slog.Info("ingestion service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
	slog.Info("ingestion service stopped")
}
