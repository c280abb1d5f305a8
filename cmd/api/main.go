// Package main is the entry point for the charrank API server.
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

	"github.com/onnwee/charrank/internal/api"
	"github.com/onnwee/charrank/internal/auth"
	"github.com/onnwee/charrank/internal/catalog"
	"github.com/onnwee/charrank/internal/config"
	"github.com/onnwee/charrank/internal/db"
	"github.com/onnwee/charrank/internal/health"
	"github.com/onnwee/charrank/internal/image"
	"github.com/onnwee/charrank/internal/middleware"
	"github.com/onnwee/charrank/internal/notify"
	"github.com/onnwee/charrank/internal/rankings"
	"github.com/onnwee/charrank/internal/sessions"
	"github.com/onnwee/charrank/internal/tracing"
)

const serviceName = "charrank-api"

// Background maintenance intervals.
const (
	flushInterval   = 30 * time.Second
	cleanupInterval = time.Hour
)

func main() {
	configPath := flag.String("config", "", "path to optional YAML config file")
	help := flag.Bool("help", false, "display help message")
	flag.Parse()

	if *help {
		fmt.Println("Charrank API Server")
		fmt.Println()
		fmt.Println("Usage: api [options]")
		fmt.Println()
		fmt.Println("Options:")
		flag.PrintDefaults()
		os.Exit(0)
	}

	cfg, errs := config.Load(*configPath)
	logger := middleware.NewLogger(cfgEnv(cfg))
	slog.SetDefault(logger)

	if len(errs) > 0 {
		for _, err := range errs {
			logger.Error("configuration error", "error", err)
		}
		os.Exit(1)
	}

	logger.Info("configuration loaded", "config", cfg.LogSummary())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Tracing
	tracerProvider, err := tracing.NewProvider(tracing.Config{
		ServiceName:  serviceName,
		Enabled:      cfg.TracingEnabled,
		Environment:  cfg.Env,
		OTLPEndpoint: cfg.TracingEndpoint,
		SamplingRate: 1.0,
		InsecureMode: cfg.Env != "production",
	})
	if err != nil {
		logger.Error("failed to initialize tracing", "error", err)
		os.Exit(1)
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tracerProvider.Shutdown(shutdownCtx); err != nil {
			logger.Error("failed to shut down tracer provider", "error", err)
		}
	}()

	// Database
	dbConn, err := db.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		logger.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer dbConn.Close()

	// Metrics
	registry := prometheus.NewRegistry()
	httpMetrics := middleware.NewMetrics()
	if err := httpMetrics.Register(registry); err != nil {
		logger.Error("failed to register HTTP metrics", "error", err)
		os.Exit(1)
	}
	sessionMetrics := sessions.NewMetrics()
	if err := sessionMetrics.Register(registry); err != nil {
		logger.Error("failed to register session metrics", "error", err)
		os.Exit(1)
	}

	// Core services
	catalogSvc := catalog.NewService(cfg.CharactersDir, cfg.FallbackCharacters, logger)
	if catalogSvc.Count() < 2 {
		logger.Error("catalog has too few characters to rank", "count", catalogSvc.Count())
		os.Exit(1)
	}

	sessionStore := sessions.NewPostgresStore(dbConn, logger)
	sessionSvc := sessions.NewService(sessionStore, logger, sessionMetrics)
	rankingsRepo := rankings.NewPostgresRepository(dbConn, logger)
	renderer := image.NewRenderer(image.DefaultPortraitConfig())
	jwtSvc := auth.NewJWTService(cfg.JWTSecret)
	broadcaster := notify.NewBroadcaster(logger)

	tracker := notify.NewTracker(logger)
	tracker.Add(catalogSvc.NewlyDiscovered())

	// Rate limiting: Redis-backed when configured, per-process otherwise.
	var (
		limitStore   middleware.RateLimitStore
		redisChecker api.HealthChecker
	)
	if cfg.RedisURL != "" {
		opts, err := redis.ParseURL(cfg.RedisURL)
		if err != nil {
			logger.Error("invalid REDIS_URL", "error", err)
			os.Exit(1)
		}
		redisClient := redis.NewClient(opts)
		defer redisClient.Close()
		limitStore = middleware.NewRedisRateLimitStore(redisClient).
			WithLogger(logger).
			WithMetrics(httpMetrics)
		redisChecker = health.NewRedisChecker(redisClient)
		logger.Info("rate limiting backed by redis")
	} else {
		memStore := middleware.NewInMemoryRateLimitStore()
		go func() {
			ticker := time.NewTicker(time.Minute)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					memStore.Cleanup()
				}
			}
		}()
		limitStore = memStore
		logger.Info("rate limiting backed by process memory")
	}

	globalLimit := middleware.DefaultGlobalLimit()
	if cfg.RateLimitPerMinute > 0 {
		globalLimit = middleware.RateLimitConfig{
			RequestsPerWindow: cfg.RateLimitPerMinute,
			WindowDuration:    time.Minute,
		}
	}

	// Handlers
	authHandlers := api.NewAuthHandlers(jwtSvc)
	characterHandlers := api.NewCharacterHandlers(catalogSvc, renderer, tracker, broadcaster)
	sessionHandlers := api.NewSessionHandlers(sessionSvc, catalogSvc, rankingsRepo, tracker, broadcaster, cfg.BudgetForMode)
	rankingHandlers := api.NewRankingHandlers(sessionSvc, catalogSvc, rankingsRepo, tracker, cfg.GlobalTopN)
	wsHandlers := api.NewWSHandlers(broadcaster, cfg.AllowedOrigins)
	healthHandlers := api.NewHealthHandlers(api.HealthHandlersConfig{
		DBChecker:      health.NewDBChecker(dbConn),
		RedisChecker:   redisChecker,
		CatalogChecker: health.NewCatalogChecker(catalogSvc),
	})

	requireAuth := middleware.RequireAuth(jwtSvc)
	choiceLimiter := middleware.RateLimiter(limitStore, middleware.DefaultChoiceLimit(), middleware.UserKeyFunc())
	imageLimiter := middleware.RateLimiter(limitStore, middleware.DefaultImageLimit(), middleware.UserKeyFunc())

	protected := func(h http.HandlerFunc) http.Handler {
		return requireAuth(h)
	}

	mux := http.NewServeMux()
	mux.HandleFunc("/auth/token", authHandlers.IssueToken)

	mux.Handle("/characters", protected(characterHandlers.List))
	mux.Handle("/characters/reload", protected(characterHandlers.Reload))
	mux.Handle("/characters/", requireAuth(imageLimiter(http.HandlerFunc(characterHandlers.Image))))

	mux.Handle("/sessions", protected(sessionHandlers.Sessions))
	mux.Handle("/sessions/current-pair", protected(sessionHandlers.CurrentPair))
	mux.Handle("/sessions/choice", requireAuth(choiceLimiter(http.HandlerFunc(sessionHandlers.Choice))))
	mux.Handle("/sessions/undo", protected(sessionHandlers.Undo))
	mux.Handle("/sessions/stats", protected(sessionHandlers.Stats))

	mux.Handle("/rankings/me", protected(rankingHandlers.Me))
	mux.Handle("/rankings/full", protected(rankingHandlers.Full))
	mux.Handle("/rankings/global", protected(rankingHandlers.Global))

	mux.Handle("/ws", protected(wsHandlers.Live))

	mux.HandleFunc("/health", healthHandlers.Health)
	mux.HandleFunc("/ready", healthHandlers.Ready)
	mux.Handle("/metrics", promhttp.HandlerFor(registry, promhttp.HandlerOpts{}))

	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			rctx := middleware.SetErrorCode(r.Context(), api.ErrCodeNotFound)
			api.WriteError(w, rctx, http.StatusNotFound, api.ErrCodeNotFound, "The requested resource was not found")
			return
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte(`{"service":"charrank-api","version":"0.1.0"}`)); err != nil {
			slog.Error("failed to write response", "error", err)
		}
	})

	// Middleware chain, outermost first: request ID, tracing, logging,
	// metrics, CORS, then the global rate limit keyed by client IP.
	var handler http.Handler = mux
	handler = middleware.RateLimiter(limitStore, globalLimit, middleware.IPKeyFunc())(handler)
	handler = middleware.CORS(middleware.DefaultCORSConfig(cfg.AllowedOrigins))(handler)
	handler = middleware.HTTPMetrics(httpMetrics)(handler)
	handler = middleware.Logging(logger)(handler)
	if cfg.TracingEnabled {
		handler = middleware.Tracing(serviceName)(handler)
	}
	handler = middleware.RequestID(handler)

	server := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.Port),
		Handler:      handler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// Background maintenance: periodic snapshot flushes and eviction of
	// completed sessions that have outlived the retention window.
	go func() {
		flush := time.NewTicker(flushInterval)
		cleanup := time.NewTicker(cleanupInterval)
		defer flush.Stop()
		defer cleanup.Stop()
		maxAge := time.Duration(cfg.SessionTimeoutHours) * time.Hour
		for {
			select {
			case <-ctx.Done():
				return
			case <-flush.C:
				sessionSvc.FlushDirty(ctx)
			case <-cleanup.C:
				if n := sessionSvc.CleanupCompleted(ctx, maxAge); n > 0 {
					logger.Info("evicted stale sessions", "count", n)
				}
			}
		}
	}()

	go func() {
		logger.Info("starting server", "port", cfg.Port, "env", cfg.Env)
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
	}

	// Persist any dirty sessions before the process exits.
	if n := sessionSvc.FlushDirty(shutdownCtx); n > 0 {
		logger.Info("flushed sessions on shutdown", "count", n)
	}

	logger.Info("server stopped")
}

// cfgEnv tolerates a nil config when Load fails before producing one.
func cfgEnv(cfg *config.Config) string {
	if cfg == nil {
		return config.DefaultEnv
	}
	return cfg.Env
}
