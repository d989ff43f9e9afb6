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
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"golang.org/x/time/rate"

	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/audit"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/indexer"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/cache"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/executor"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/handler"
	"github.com/Adithya-Monish-Kumar-K/interval-search/internal/searcher/parser"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/interval-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/interval-search/pkg/resilience"
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
	slog.Info("starting search service", "port", cfg.Server.Port, "data_dir", cfg.Indexer.DataDir)

	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	m := metrics.New(reg)

	engine, err := indexer.NewEngine(cfg.Indexer, m)
	if err != nil {
		slog.Error("failed to open index", "error", err)
		os.Exit(1)
	}
	defer engine.Close()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	engine.StartReloadLoop(ctx)

	checker := health.NewChecker()
	checker.Register("index", func(ctx context.Context) health.ComponentHealth {
		return health.ComponentHealth{
			Status:  health.StatusUp,
			Message: fmt.Sprintf("%d segments", engine.SegmentCount()),
		}
	})

	var queryCache *cache.QueryCache
	if cfg.Redis.Enabled {
		redisClient, err := pkgredis.NewClient(cfg.Redis)
		if err != nil {
			slog.Warn("redis unavailable, search caching disabled", "error", err)
		} else {
			defer redisClient.Close()
			breaker := resilience.NewBreaker("redis", resilience.BreakerConfig{Failures: 5, Cooldown: 30 * time.Second})
			queryCache = cache.New(cache.Guard(redisClient, breaker), cfg.Redis.CacheTTL, m)
			checker.Register("redis", health.PingCheck(redisClient.Ping, true))
			slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
		}
	}

	var auditor handler.Auditor
	if cfg.Audit.Enabled {
		var db *postgres.Client
		err := resilience.Retry(ctx, "postgres connect", resilience.RetryConfig{
			MaxAttempts:  5,
			InitialDelay: time.Second,
			Jitter:       0.2,
		}, func(context.Context) error {
			var err error
			db, err = postgres.New(cfg.Postgres)
			return err
		})
		if err != nil {
			slog.Error("failed to connect to postgres", "error", err)
			os.Exit(1)
		}
		defer db.Close()
		store := audit.NewStore(db)
		if err := store.EnsureSchema(ctx); err != nil {
			slog.Error("failed to prepare audit schema", "error", err)
			os.Exit(1)
		}
		auditor = store
		checker.Register("postgres", health.PingCheck(db.Ping, false))
		slog.Info("explain audit enabled", "database", cfg.Postgres.Database)
	}

	exec := executor.New(engine, m)
	h := handler.New(exec, queryCache, auditor, handler.Config{
		Parser: parser.Config{
			DefaultField:  cfg.Search.DefaultField,
			IntervalField: cfg.Search.IntervalField,
		},
		DefaultLimit: cfg.Search.DefaultLimit,
		MaxResults:   cfg.Search.MaxResults,
	}, m)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.RequestTimeout)(chain)
	if cfg.Server.RateLimit > 0 {
		chain = middleware.RateLimit(rate.NewLimiter(rate.Limit(cfg.Server.RateLimit), cfg.Server.RateBurst))(chain)
	}
	chain = middleware.Metrics(m, handler.Routes()...)(chain)
	chain = middleware.CORS(middleware.DefaultCORSConfig())(chain)
	chain = middleware.RequestID(chain)

	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, reg)
		defer shutdownMetrics(context.Background())
	}

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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
