// Command searcher serves the post search API: advanced query
// interpretation, Postgres-backed post retrieval behind a Redis page cache,
// and per-field result highlighting.
//
// Usage:
//
//	go run ./cmd/searcher [-config configs/development.yaml]
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

	"github.com/Adithya-Monish-Kumar-K/post-search/internal/analytics"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/cache"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/categories"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/handler"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/interpret"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/results"
	"github.com/Adithya-Monish-Kumar-K/post-search/internal/search/store"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/config"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/health"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/kafka"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/logger"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/metrics"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/middleware"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/postgres"
	pkgredis "github.com/Adithya-Monish-Kumar-K/post-search/pkg/redis"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/resilience"
	"github.com/Adithya-Monish-Kumar-K/post-search/pkg/tracing"
	"github.com/prometheus/client_golang/prometheus"
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
	slog.Info("starting search service", "port", cfg.Server.Port)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	m := metrics.New(prometheus.DefaultRegisterer)
	if cfg.Metrics.Enabled {
		shutdownMetrics := metrics.StartServer(cfg.Metrics.Port, prometheus.DefaultGatherer)
		defer shutdownMetrics(context.Background())
	}

	db, err := postgres.New(ctx, cfg.Postgres)
	if err != nil {
		slog.Error("failed to connect to postgres", "error", err)
		os.Exit(1)
	}
	defer db.Close()
	slog.Info("postgres connected", "host", cfg.Postgres.Host, "database", cfg.Postgres.Database)

	directory := categories.NewDirectory(categories.NewPostgresSource(db.DB), cfg.Categories.RefreshInterval, func(size int) {
		m.CategoriesLoaded.Set(float64(size))
	})
	if err := directory.Refresh(ctx); err != nil {
		slog.Warn("initial category load failed, category: directives will not resolve until the next refresh", "error", err)
	}
	go directory.Start(ctx)

	breaker := resilience.NewCircuitBreaker("post-store", resilience.CircuitBreakerConfig{
		OnStateChange: func(name string, _, to resilience.State) {
			m.CircuitBreakerState.WithLabelValues(name).Set(float64(to))
		},
	})
	postStore := store.NewPostgresStore(db, breaker, cfg.Search.StoreTimeout)

	memo, err := interpret.NewMemo(cfg.ParseCache.Size, func(hit bool) {
		label := "miss"
		if hit {
			label = "hit"
		}
		m.InterpretMemoTotal.WithLabelValues(label).Inc()
	})
	if err != nil {
		slog.Error("failed to create interpretation memo", "error", err)
		os.Exit(1)
	}

	annotator := results.NewAnnotator(cfg.Search.HighlightWorkers, func(field string, matched int) {
		m.HighlightMatches.WithLabelValues(field).Observe(float64(matched))
	})

	deps := handler.Deps{
		Store:      postStore,
		Categories: directory,
		Memo:       memo,
		Annotator:  annotator,
		Metrics:    m,
	}

	var pageCache *cache.PageCache
	redisClient, err := pkgredis.NewClient(ctx, cfg.Redis)
	if err != nil {
		slog.Warn("redis unavailable, search caching disabled", "error", err)
	} else {
		defer redisClient.Close()
		pageCache = cache.New(redisClient, cfg.Redis.CacheTTL, func(hit bool) {
			if hit {
				m.CacheHitsTotal.Inc()
			} else {
				m.CacheMissesTotal.Inc()
			}
		})
		deps.Cache = pageCache
		slog.Info("search cache enabled", "addr", cfg.Redis.Addr, "ttl", cfg.Redis.CacheTTL)
	}

	aggregator := analytics.NewAggregator()
	snapshots := analytics.NewSnapshotStore(db.DB)
	if cfg.Kafka.Enabled {
		producer := kafka.NewProducer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents)
		defer producer.Close()
		collector := analytics.NewCollector(producer, cfg.Analytics.BufferSize, cfg.Analytics.BatchSize, cfg.Analytics.FlushInterval)
		collector.Start(ctx)
		defer collector.Close()
		deps.Events = collector

		eventsConsumer := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.SearchEvents, "analytics", analytics.HandleEvent(aggregator))
		go func() {
			if err := eventsConsumer.Start(ctx); err != nil {
				slog.Error("analytics consumer error", "error", err)
			}
		}()

		changes := kafka.NewConsumer(cfg.Kafka, cfg.Kafka.Topics.CacheInvalidate, "invalidate", cache.InvalidationHandler(pageCache, directory))
		go func() {
			if err := changes.Start(ctx); err != nil {
				slog.Error("change consumer error", "error", err)
			}
		}()
		slog.Info("kafka wired",
			"events_topic", cfg.Kafka.Topics.SearchEvents,
			"changes_topic", cfg.Kafka.Topics.CacheInvalidate,
		)
	} else {
		slog.Warn("kafka disabled, analytics and change-driven invalidation are off")
	}
	snapshots.StartPeriodicSave(ctx, aggregator, cfg.Analytics.SnapshotInterval)

	checker := health.NewChecker()
	checker.Register("postgres", health.PingCheck(db.Ping, true))
	var redisPing func(context.Context) error
	if redisClient != nil {
		redisPing = redisClient.Ping
	}
	checker.Register("redis", health.PingCheck(redisPing, false))
	checker.Register("categories", func(ctx context.Context) health.ComponentHealth {
		snap := directory.Snapshot()
		if snap.Version == 0 {
			return health.ComponentHealth{Status: health.StatusDegraded, Message: "not loaded"}
		}
		return health.ComponentHealth{Status: health.StatusUp, Message: fmt.Sprintf("%d categories, version %d", len(snap.Refs), snap.Version)}
	})

	h := handler.New(deps, cfg.Search)
	analyticsH := analytics.NewHandler(aggregator, snapshots)

	mux := http.NewServeMux()
	h.Register(mux)
	mux.HandleFunc("GET /api/v1/analytics", analyticsH.Stats)
	mux.HandleFunc("GET /api/v1/analytics/history", analyticsH.History)
	mux.HandleFunc("GET /health/live", checker.LiveHandler())
	mux.HandleFunc("GET /health/ready", checker.ReadyHandler())

	var chain http.Handler = mux
	chain = middleware.Timeout(cfg.Server.WriteTimeout)(chain)
	if rl := cfg.Server.RateLimit; rl.RequestsPerWindow > 0 {
		limiter := middleware.NewLimiter(rl.RequestsPerWindow, rl.Window)
		go limiter.RunSweeper(ctx.Done(), 5*time.Minute)
		chain = middleware.RateLimit(limiter)(chain)
	}
	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.Server.CORS.AllowOrigins
	corsCfg.MaxAge = cfg.Server.CORS.MaxAge
	chain = middleware.CORS(corsCfg)(chain)
	chain = tracing.Middleware(cfg.Tracing)(chain)
	chain = middleware.Metrics(m)(chain)
	chain = middleware.AccessLog(chain)
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

	slog.Info("search service listening", "addr", server.Addr)
	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}

	slog.Info("search service stopped")
}
