// Package main is the entry point for the API server.
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
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"

	"github.com/nearlist/nearlist/internal/api"
	"github.com/nearlist/nearlist/internal/config"
	"github.com/nearlist/nearlist/internal/db"
	"github.com/nearlist/nearlist/internal/decay"
	"github.com/nearlist/nearlist/internal/engine"
	"github.com/nearlist/nearlist/internal/gazetteer"
	"github.com/nearlist/nearlist/internal/health"
	"github.com/nearlist/nearlist/internal/jobs"
	"github.com/nearlist/nearlist/internal/listing"
	"github.com/nearlist/nearlist/internal/middleware"
	"github.com/nearlist/nearlist/internal/owner"
	"github.com/nearlist/nearlist/internal/reputation"
	"github.com/nearlist/nearlist/internal/search"
	"github.com/nearlist/nearlist/internal/stats"
	"github.com/nearlist/nearlist/internal/tracing"
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Nearlist API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	if len(errs) > 0 {
		for _, err := range errs {
			fmt.Fprintln(os.Stderr, "config error:", err)
		}
		os.Exit(1)
	}

	logger := middleware.NewLogger(cfg.Env)
	slog.SetDefault(logger)
	logger.Info("configuration loaded", "summary", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tracingProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  "nearlist-api",
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		ExporterType: cfg.TracingExporter,
		OTLPEndpoint: cfg.OTLPEndpoint,
		SamplingRate: cfg.TracingSampleRate,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracingProvider.Shutdown(shutdownCtx); err != nil {
			logger.Warn("tracing shutdown failed", "error", err)
		}
	}()

	// Stores: Postgres when DATABASE_URL is set, in-memory otherwise.
	var (
		listings   listing.Repository
		owners     owner.Repository
		resolver   gazetteer.Resolver
		voteStore  reputation.Store
		decayLog   decay.LogStore
		dbChecker  api.HealthChecker
		levelTable = reputation.DefaultLevelTable()
	)

	if cfg.DatabaseURL != "" {
		connectCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		pool, err := db.Connect(connectCtx, cfg.DatabaseURL, logger)
		cancel()
		if err != nil {
			logger.Error("failed to connect to database", "error", err)
			os.Exit(1)
		}
		defer pool.Close()

		listings = listing.NewPostgresRepository(pool, logger)
		owners = owner.NewPostgresRepository(pool)
		resolver = gazetteer.NewPostgresGazetteer(pool, logger)
		voteStore = reputation.NewPostgresStore(pool, levelTable, logger)
		decayLog = decay.NewPostgresLogStore(pool)
		dbChecker = health.NewDBChecker(pool)
		logger.Info("using postgres stores")
	} else {
		memListings := listing.NewInMemoryRepository()
		memOwners := owner.NewInMemoryRepository()
		listings = memListings
		owners = memOwners
		resolver = gazetteer.NewInMemoryGazetteer()
		voteStore = reputation.NewInMemoryStore(memOwners, levelTable)
		decayLog = decay.NewInMemoryLogStore()
		logger.Warn("DATABASE_URL not set, using in-memory stores")
	}

	// Redis: rate limit store, reputation cache, readiness check.
	var (
		redisClient  *redis.Client
		redisChecker api.HealthChecker
	)
	if cfg.RedisAddr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.RedisAddr,
			Password: cfg.RedisPassword,
		})
		defer redisClient.Close()
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("redis enabled", "addr", cfg.RedisAddr)
	}

	// Metrics
	registry := prometheus.NewRegistry()

	httpMetrics := middleware.NewMetrics()
	searchMetrics := search.NewMetrics()
	reputationMetrics := reputation.NewMetrics()
	decayMetrics := decay.NewMetrics()
	jobMetrics := jobs.NewMetrics()
	for name, m := range map[string]interface {
		Register(prometheus.Registerer) error
	}{
		"http":       httpMetrics,
		"search":     searchMetrics,
		"reputation": reputationMetrics,
		"decay":      decayMetrics,
		"jobs":       jobMetrics,
	} {
		if err := m.Register(registry); err != nil {
			logger.Error("failed to register metrics", "collector", name, "error", err)
			os.Exit(1)
		}
	}

	// Services
	searchSvc := search.NewService(listings, resolver, search.ServiceConfig{
		Owners:      owners,
		MaxRadiusKm: cfg.MaxSearchRadiusKm,
		Logger:      logger,
		Metrics:     searchMetrics,
	})

	ledger := reputation.NewLedger(voteStore, owners, levelTable, reputation.NewCache(redisClient), reputation.LedgerConfig{
		Cooldown: cfg.VoteCooldown,
		Logger:   logger,
		Metrics:  reputationMetrics,
		Stats:    stats.NewMutationStats(),
	})

	scheduler := decay.NewScheduler(listings, decayLog, decay.SchedulerConfig{
		CheckInterval: cfg.DecayCheckInterval,
		CycleTimeout:  cfg.DecayCycleTimeout,
		Logger:        logger,
		Metrics:       decayMetrics,
		JobMetrics:    jobMetrics,
	})
	if err := scheduler.Start(ctx); err != nil {
		logger.Error("failed to start decay scheduler", "error", err)
		os.Exit(1)
	}
	defer scheduler.Stop()

	eng := engine.New(listings, searchSvc, ledger, scheduler)

	// Rate limiting for vote mutations.
	var rateLimitStore middleware.RateLimitStore
	if redisClient != nil {
		rateLimitStore = middleware.NewRedisRateLimitStore(redisClient).WithMetrics(httpMetrics)
	} else {
		rateLimitStore = middleware.NewInMemoryRateLimitStore()
	}
	voteLimit := middleware.RateLimitConfig{
		RequestsPerWindow: cfg.VoteRateLimitPerMinute,
		WindowDuration:    time.Minute,
	}
	voteRateLimiter := middleware.RateLimiter(rateLimitStore, voteLimit, middleware.IPKeyFunc(), httpMetrics)

	mux := api.NewRouter(api.RouterConfig{
		Engine: eng,
		Health: api.HealthHandlersConfig{
			DBChecker:    dbChecker,
			RedisChecker: redisChecker,
		},
		MetricsHandler:  promhttp.HandlerFor(registry, promhttp.HandlerOpts{}),
		VoteRateLimiter: voteRateLimiter,
	})

	// Middleware chain: RequestID -> CORS -> Tracing -> Logging -> HTTP metrics.
	cors := middleware.CORS(middleware.CORSConfig{
		AllowedOrigins: cfg.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "X-Request-ID"},
		MaxAge:         300,
	})
	handler := middleware.RequestID(
		cors(
			middleware.Tracing("nearlist-api")(
				middleware.Logging(logger)(
					middleware.HTTPMetrics(httpMetrics)(mux),
				),
			),
		),
	)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		logger.Info("starting server", "port", cfg.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("server error", "error", err)
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}

	logger.Info("server stopped")
}
