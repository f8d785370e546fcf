package main

import (
	"context"
	"net"
	"net/http"
	"os/signal"
	"sync/atomic"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/duynhne/masjid-connect-service/config"
	database "github.com/duynhne/masjid-connect-service/internal/core"
	"github.com/duynhne/masjid-connect-service/internal/core/domain"
	"github.com/duynhne/masjid-connect-service/internal/core/feed"
	"github.com/duynhne/masjid-connect-service/internal/core/repository/memory"
	"github.com/duynhne/masjid-connect-service/internal/core/repository/psql"
	logicv1 "github.com/duynhne/masjid-connect-service/internal/logic/v1"
	v1 "github.com/duynhne/masjid-connect-service/internal/web/v1"
	"github.com/duynhne/masjid-connect-service/middleware"
)

func main() {
	// Load configuration from environment variables (with .env file support for local dev)
	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		panic("Configuration validation failed: " + err.Error())
	}

	// Initialize structured logger
	logger, err := middleware.NewLoggerFromConfig(cfg.Logging)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer logger.Sync()

	logger.Info("Service starting",
		zap.String("service", cfg.Service.Name),
		zap.String("version", cfg.Service.Version),
		zap.String("env", cfg.Service.Env),
		zap.String("port", cfg.Service.Port),
	)

	// Initialize OpenTelemetry tracing with centralized config
	var tp interface{ Shutdown(context.Context) error }
	if cfg.Tracing.Enabled {
		tp, err = middleware.InitTracing(cfg)
		if err != nil {
			logger.Warn("Failed to initialize tracing", zap.Error(err))
			tp = nil
		} else {
			logger.Info("Tracing initialized",
				zap.String("endpoint", cfg.Tracing.Endpoint),
				zap.Float64("sample_rate", cfg.Tracing.SampleRate),
			)
		}
	} else {
		logger.Info("Tracing disabled (TRACING_ENABLED=false)")
	}

	// Initialize Pyroscope profiling
	if cfg.Profiling.Enabled {
		if err := middleware.InitProfiling(cfg.Profiling); err != nil {
			logger.Warn("Failed to initialize profiling", zap.Error(err))
		} else {
			logger.Info("Profiling initialized",
				zap.String("endpoint", cfg.Profiling.Endpoint),
			)
			defer middleware.StopProfiling()
		}
	} else {
		logger.Info("Profiling disabled (PROFILING_ENABLED=false)")
	}

	// Storage: PostgreSQL when DB_HOST is set, otherwise the in-memory store
	var (
		profiles domain.ProfileRepository
		requests domain.RequestRepository
	)
	if cfg.Database.Enabled() {
		pool, err := database.Connect(context.Background(), cfg.Database)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer pool.Close()
		logger.Info("Database connection pool established")

		if cfg.Database.Migrate {
			if err := database.NewMigrator(pool, logger).RunMigrations(context.Background()); err != nil {
				logger.Fatal("Failed to apply migrations", zap.Error(err))
			}
		}
		profiles = psql.NewProfileRepository(pool)
		requests = psql.NewRequestRepository(pool)
	} else {
		logger.Warn("DB_HOST not set, using in-memory store (data is lost on restart)")
		store := memory.NewStore()
		profiles, requests = store, store
	}

	// Live views: in-process broker, optionally relayed through Redis
	liveCtx, cancelLive := context.WithCancel(context.Background())
	defer cancelLive()

	broker := feed.NewBroker()
	var (
		rdb   *redis.Client
		relay *feed.RedisRelay
	)
	if cfg.Redis.Enabled() {
		rdb = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		relay = feed.NewRedisRelay(rdb, cfg.Redis.Channel, broker, logger)
		if err := relay.Start(liveCtx); err != nil {
			logger.Fatal("Failed to start live feed relay", zap.Error(err))
		}
	} else {
		logger.Info("Live feed relay disabled (REDIS_ADDR not set)")
	}

	verifier, err := middleware.NewIdentityVerifier(cfg.Auth)
	if err != nil {
		logger.Fatal("Failed to initialize identity verifier", zap.Error(err))
	}
	logger.Info("Identity verifier initialized", zap.String("mode", cfg.Auth.Mode))

	profileService := logicv1.NewProfileService(profiles, broker, logger)
	requestService := logicv1.NewRequestService(requests, broker, logger)
	handoffService := logicv1.NewHandoffService(requests, profiles, cfg.Handoff, logger)

	if cfg.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery())

	var isShuttingDown atomic.Bool

	// Tracing middleware (must be first for context propagation)
	r.Use(middleware.TracingMiddleware())

	// Logging middleware (must be before Prometheus middleware)
	r.Use(middleware.LoggingMiddleware(logger))

	// Prometheus middleware
	if cfg.Metrics.Enabled {
		r.Use(middleware.PrometheusMiddleware())
	}

	// Health check
	r.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Readiness check
	// Returns 503 once shutdown has started, to drain traffic before HTTP shutdown.
	r.GET("/ready", func(c *gin.Context) {
		if isShuttingDown.Load() {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "shutting_down"})
			return
		}
		if pool := database.GetPool(); pool != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			if err := pool.Ping(ctx); err != nil {
				c.JSON(http.StatusServiceUnavailable, gin.H{"status": "database_unavailable"})
				return
			}
		}
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	// Metrics endpoint
	if cfg.Metrics.Enabled {
		r.GET(cfg.Metrics.Path, gin.WrapH(promhttp.Handler()))
	}

	// API v1
	v1.RegisterRoutes(
		r.Group("/api/v1"),
		middleware.AuthMiddleware(verifier, logger, cfg.Auth.AllowUnauthenticatedFallback),
		v1.Handlers{
			Profiles: profileService,
			Session:  v1.NewSessionHandler(),
			Profile:  v1.NewProfileHandler(profileService),
			Requests: v1.NewRequestHandler(requestService, handoffService),
			Live:     v1.NewLiveHandler(profileService, requestService, verifier, cfg.GetLivePingIntervalDuration()),
		},
	)

	// Create HTTP server. Live connections are hijacked, so they hang off liveCtx
	// and are cancelled explicitly on shutdown.
	srv := &http.Server{
		Addr:        ":" + cfg.Service.Port,
		Handler:     r,
		BaseContext: func(net.Listener) context.Context { return liveCtx },
	}
	srv.RegisterOnShutdown(cancelLive)

	// Start server in a goroutine
	go func() {
		logger.Info("Starting masjid connect service", zap.String("port", cfg.Service.Port))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown - modern signal handling with context
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Wait for shutdown signal
	<-ctx.Done()
	logger.Info("Shutdown signal received")

	// Fail readiness first and wait for propagation.
	isShuttingDown.Store(true)
	drainDelay := cfg.GetReadinessDrainDelayDuration()
	if drainDelay > 0 {
		logger.Info("Readiness drain delay started", zap.Duration("delay", drainDelay))
		time.Sleep(drainDelay)
		logger.Info("Readiness drain delay completed", zap.Duration("delay", drainDelay))
	}

	// Shutdown context with configurable timeout
	shutdownTimeout := cfg.GetShutdownTimeoutDuration()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	logger.Info("Shutting down server...", zap.Duration("timeout", shutdownTimeout))

	// Cleanup sequence: HTTP Server → Live relay → Redis → Database → Tracer

	// 1. Shutdown HTTP server (stop accepting new connections, wait for in-flight requests)
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("HTTP server shutdown error", zap.Error(err))
	} else {
		logger.Info("HTTP server shutdown complete")
	}

	// 2. Stop relaying live events
	if relay != nil {
		if err := relay.Close(); err != nil {
			logger.Error("Live feed relay close error", zap.Error(err))
		}
	}
	if rdb != nil {
		if err := rdb.Close(); err != nil {
			logger.Error("Redis client close error", zap.Error(err))
		} else {
			logger.Info("Redis client closed")
		}
	}

	// 3. Close database connections
	if pool := database.GetPool(); pool != nil {
		pool.Close()
		logger.Info("Database pool closed")
	}

	// 4. Shutdown tracer (flush pending spans)
	if tp != nil {
		if err := tp.Shutdown(shutdownCtx); err != nil {
			logger.Error("Tracer shutdown error", zap.Error(err))
		} else {
			logger.Info("Tracer shutdown complete")
		}
	}

	logger.Info("Graceful shutdown complete")
}
