package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.uber.org/zap"

	"github.com/Maciej19820502/windykacja/internal/api"
	"github.com/Maciej19820502/windykacja/internal/circuitbreaker"
	"github.com/Maciej19820502/windykacja/internal/config"
	"github.com/Maciej19820502/windykacja/internal/db"
	"github.com/Maciej19820502/windykacja/internal/dunning"
	"github.com/Maciej19820502/windykacja/internal/metrics"
	"github.com/Maciej19820502/windykacja/internal/observ"
	"github.com/Maciej19820502/windykacja/internal/rates"
	"github.com/Maciej19820502/windykacja/internal/redis"
	"github.com/Maciej19820502/windykacja/internal/registry"
	"github.com/Maciej19820502/windykacja/internal/scheduler"
	"github.com/Maciej19820502/windykacja/internal/transport"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	// Load config
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	// Setup logger
	logger, err := observ.NewLogger(cfg.Env, cfg.LogLevel)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = logger.Sync() }()

	logger.Info("starting windykacja",
		zap.String("env", cfg.Env),
		zap.Int("port", cfg.Port),
	)

	// Initialize database connection
	ctx := context.Background()
	dbConfig := db.Config{
		Host:     cfg.DBHost,
		Port:     cfg.DBPort,
		User:     cfg.DBUser,
		Password: cfg.DBPassword,
		Database: cfg.DBName,
		SSLMode:  cfg.DBSSLMode,
	}

	database, err := db.New(ctx, dbConfig, logger)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer database.Close()

	logger.Info("database connection established",
		zap.String("host", cfg.DBHost),
		zap.Int("port", cfg.DBPort),
		zap.String("database", cfg.DBName),
	)

	repo := db.NewRepository(database, logger)
	settings := db.NewSettingsStore(database, logger)

	// Seed default templates and schedules on first start
	if err := dunning.SeedTemplates(ctx, repo); err != nil {
		return fmt.Errorf("failed to seed templates: %w", err)
	}
	schedules := dunning.NewScheduleStore(settings)
	if err := schedules.Seed(ctx); err != nil {
		return fmt.Errorf("failed to seed schedules: %w", err)
	}

	// Initialize Redis for dispatch locking and rate limiting
	redisConfig := redis.Config{
		Host:     cfg.RedisHost,
		Port:     cfg.RedisPort,
		Password: cfg.RedisPassword,
		DB:       cfg.RedisDB,
	}

	redisClient, err := redis.New(ctx, redisConfig, logger)
	if err != nil {
		logger.Warn("redis unavailable, dispatch locking disabled",
			zap.Error(err),
			zap.String("host", cfg.RedisHost),
		)
	}

	var locker dunning.Locker
	var rateLimiter *redis.RateLimiter
	if redisClient != nil {
		locker = redis.NewDispatchLock(redisClient, logger)
		rateLimiter = redis.NewRateLimiter(redisClient, logger, redis.RateLimitConfig{
			Limit:  100,             // 100 requests
			Window: 1 * time.Minute, // per minute per client
		})
		defer redisClient.Close()
	}

	// Delivery transports. Email is required; SMS degrades gracefully.
	var senders []transport.Sender

	if cfg.Env == "development" {
		senders = append(senders, transport.NewLogSender(logger))
		logger.Info("development mode, deliveries are logged instead of sent")
	} else {
		sesSender, err := transport.NewSESSender(ctx, transport.SESConfig{
			Region:    cfg.AWSRegion,
			FromEmail: cfg.SESFromEmail,
		}, logger)
		if err != nil {
			return fmt.Errorf("failed to create SES email sender: %w", err)
		}
		emailBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("ses"), logger)
		senders = append(senders, circuitbreaker.NewProtectedSender(sesSender, emailBreaker, logger))

		snsSender, err := transport.NewSNSSender(ctx, transport.SNSConfig{
			Region: cfg.SNSRegion,
		}, logger)
		if err != nil {
			logger.Warn("SNS sender unavailable, SMS dispatches will fail",
				zap.Error(err),
			)
		} else {
			smsBreaker := circuitbreaker.New(circuitbreaker.DefaultConfig("sns"), logger)
			senders = append(senders, circuitbreaker.NewProtectedSender(snsSender, smsBreaker, logger))
		}
	}

	sender := transport.NewRouter(logger, senders...)

	// Dunning engine
	resolver := dunning.NewResolver(repo, schedules, logger)
	dispatcher := dunning.NewDispatcher(repo, settings, sender, locker, logger)
	engine := dunning.NewEngine(repo, resolver, dispatcher, logger)

	// Minute scheduler for configured stage runs
	trigger := scheduler.New(schedules, engine, logger)
	schedCtx, schedCancel := context.WithCancel(context.Background())
	defer schedCancel()
	go trigger.Start(schedCtx)

	logger.Info("stage scheduler started")

	// Rates and company registries for the read API
	rateSource := rates.New(logger)
	gusKey, err := settings.Get(ctx, db.SettingGUSAPIKey, cfg.GUSAPIKey)
	if err != nil {
		logger.Warn("failed to read gus api key setting", zap.Error(err))
		gusKey = cfg.GUSAPIKey
	}
	lookup := registry.NewChain(logger,
		registry.NewWhitelistClient(logger),
		registry.NewGUSClient(gusKey, logger),
	)

	// Setup router
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(60 * time.Second))
	r.Use(metrics.Middleware)

	// Custom logging middleware
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			logger.Info("request completed",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration_ms", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())),
			)
		})
	})

	// API routes
	handler := api.NewHandler(logger, engine, repo, schedules, repo, rateSource, lookup, database)
	r.Route("/v1", func(r chi.Router) {
		// Apply rate limiting to API routes
		r.Use(api.RateLimitMiddleware(rateLimiter, logger, api.IPKeyFunc))

		r.Post("/stages/{stage}/run", handler.RunStage)
		r.Post("/contractors", handler.CreateContractor)
		r.Post("/contractors/{id}/dispatch", handler.Dispatch)
		r.Get("/contractors/{id}/stage", handler.ResolveStage)
		r.Get("/contractors/{id}/obligations", handler.Obligations)
		r.Get("/correspondence", handler.ListCorrespondence)
		r.Get("/schedules", handler.ListSchedules)
		r.Put("/schedules/{stage}", handler.UpdateSchedule)
		r.Post("/templates/reset", handler.ResetTemplates)
	})

	// Health check
	r.Get("/health", handler.Health)

	// Prometheus metrics endpoint
	r.Handle("/metrics", metrics.Handler())

	// Setup HTTP server
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      r,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in a goroutine
	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("server listening", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	// Listen for shutdown signals
	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		logger.Info("shutdown signal received", zap.String("signal", sig.String()))

		schedCancel()

		shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()

		if err := srv.Shutdown(shutdownCtx); err != nil {
			_ = srv.Close()
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}

		logger.Info("shutdown complete")
	}

	return nil
}
