package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer/consumer"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
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
	slog.Info("starting indexer service", "data_dir", cfg.Indexer.DataDir)

	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	engine.StartFlushLoop(ctx)

	kafkaConsumer := kafka.NewConsumer(
		cfg.Kafka,
		cfg.Kafka.Topics.DocumentIngest,
		consumer.HandleMessage(engine),
	)

	slog.Info("indexer service ready, consuming from kafka",
		"topic", cfg.Kafka.Topics.DocumentIngest,
		"group", cfg.Kafka.ConsumerGroup,
	)
	if err := kafkaConsumer.Start(ctx); err != nil {
		slog.Error("consumer error", "error", err)
	}

	slog.Info("flushing before shutdown", "buffered", engine.BufferedDocs())
	if err := engine.Flush(); err != nil {
		slog.Error("final flush failed", "error", err)
	}
	slog.Info("indexer service stopped")
}
