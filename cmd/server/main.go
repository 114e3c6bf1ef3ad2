package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberlogger "github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/valyala/fasthttp/fasthttpadaptor"
	"go.uber.org/zap"

	"github.com/savoro/menuvoice/internal/adapter/ai/anthropic"
	"github.com/savoro/menuvoice/internal/adapter/cache"
	"github.com/savoro/menuvoice/internal/adapter/http/fiber/handlers"
	"github.com/savoro/menuvoice/internal/adapter/http/fiber/middleware"
	"github.com/savoro/menuvoice/internal/adapter/queue"
	"github.com/savoro/menuvoice/internal/adapter/vault"
	wsAdapter "github.com/savoro/menuvoice/internal/adapter/websocket"
	"github.com/savoro/menuvoice/internal/observability/telemetry"
	"github.com/savoro/menuvoice/internal/ports"
	"github.com/savoro/menuvoice/internal/service/auth"
	"github.com/savoro/menuvoice/internal/service/broadcast"
	"github.com/savoro/menuvoice/internal/service/dialogue"
	"github.com/savoro/menuvoice/internal/service/health"
	"github.com/savoro/menuvoice/internal/service/interpreter"
	"github.com/savoro/menuvoice/internal/service/menustore"
	"github.com/savoro/menuvoice/internal/service/session"
	"github.com/savoro/menuvoice/pkg/config"
)

const (
	serviceName    = "menuvoice"
	serviceVersion = "v1.0.0"
)

func main() {
	// 1. Initialize Logger
	logger, err := zap.NewProduction()
	if err != nil {
		log.Fatal("Failed to initialize logger:", err)
	}
	defer logger.Sync()

	logger.Info("Starting MenuVoice",
		zap.String("service", serviceName),
		zap.String("version", serviceVersion),
	)

	// 2. Load Configuration
	cfg, err := config.Load()
	if err != nil {
		logger.Fatal("Failed to load configuration", zap.Error(err))
	}

	// 3. Secrets from Vault override config values when enabled
	if cfg.Vault.Enabled {
		secrets, err := vault.NewSecretManager(cfg.Vault.Address, cfg.Vault.Token)
		if err != nil {
			logger.Fatal("Failed to connect to Vault", zap.Error(err))
		}
		if key, err := secrets.GetLLMAPIKey(); err == nil {
			cfg.Anthropic.APIKey = key
		} else {
			logger.Warn("Vault has no LLM API key, using config value", zap.Error(err))
		}
		if secret, err := secrets.GetTokenSecret(); err == nil {
			cfg.Token.Secret = secret
		} else {
			logger.Warn("Vault has no token secret, using config value", zap.Error(err))
		}
	}
	if cfg.Token.Secret == "" {
		logger.Fatal("Token signing secret is not configured")
	}

	// 4. Initialize OpenTelemetry (Distributed Tracing)
	if cfg.OpenTelemetry.Enabled {
		tracerProvider, err := telemetry.InitTracer(serviceName, serviceVersion, cfg.OpenTelemetry.Jaeger.Endpoint)
		if err != nil {
			logger.Fatal("Failed to initialize tracer", zap.Error(err))
		}
		defer func() {
			if err := tracerProvider.Shutdown(context.Background()); err != nil {
				logger.Error("Error shutting down tracer provider", zap.Error(err))
			}
		}()
	}

	// 5. Initialize Cache (Redis, with in-process fallback)
	var sessionCache ports.Cache
	if cfg.Redis.Enabled {
		sessionCache, err = cache.NewRedisCache(cfg.Redis.URL, logger)
		if err != nil {
			logger.Fatal("Failed to connect to Redis", zap.Error(err))
		}
	} else {
		sessionCache = cache.NewLocalCache(time.Minute, logger)
	}

	// 6. Initialize Message Queue
	messageQueue, err := queue.New(cfg.Queue.Driver, cfg.Queue.URL, logger)
	if err != nil {
		logger.Fatal("Failed to connect to message queue", zap.Error(err))
	}
	if messageQueue != nil {
		defer messageQueue.Close()
	}

	// 7. Initialize Dashboard Hub and Change Broadcaster
	hub := wsAdapter.NewHub(logger)
	go hub.Run()

	var queueLeg broadcast.Queue
	if messageQueue != nil {
		queueLeg = messageQueue
	}
	broadcaster := broadcast.NewBroadcaster(hub, queueLeg, logger)

	// 8. Initialize Menu Store
	store := menustore.NewStore(broadcaster, logger)
	store.OnStale(func(newVersion uint64) {
		logger.Info("Menu document replaced externally", zap.Uint64("version", newVersion))
	})

	// 9. Initialize Interpreter (rules first, LLM fallback behind a breaker)
	var llm ports.LLMClient
	if cfg.Anthropic.APIKey != "" {
		llm = anthropic.NewClient(cfg.Anthropic.APIKey, logger, anthropic.WithModel(cfg.Anthropic.Model))
	} else {
		logger.Warn("No LLM API key configured, interpreter runs on rules only")
	}
	interp := interpreter.NewService(llm, logger)

	// 10. Initialize Dialogue Engine and Session Manager
	engine := dialogue.NewEngine(store, interp, cfg.Dialogue.MaxRetries, logger)
	sessions := session.NewManager(engine, sessionCache, cfg.Dialogue.SessionTTL, logger)

	// 11. Initialize Token Service
	tokenService := auth.NewTokenService(cfg.Token.Secret, cfg.Token.DefaultTTL, logger)

	// 12. Initialize Fiber HTTP Server
	app := fiber.New(fiber.Config{
		AppName:               serviceName,
		ServerHeader:          serviceName,
		DisableStartupMessage: true,
		ReadTimeout:           cfg.HTTP.ReadTimeout,
		WriteTimeout:          cfg.HTTP.WriteTimeout,
		IdleTimeout:           cfg.HTTP.IdleTimeout,
		ErrorHandler:          middleware.ErrorHandler(logger),
	})

	// Global Middleware
	app.Use(recover.New())
	app.Use(fiberlogger.New())
	if cfg.CORS.Enabled {
		app.Use(middleware.NewCORS(cfg.CORS))
	} else {
		app.Use(middleware.DefaultCORS())
	}
	app.Use(middleware.CircuitBreaker(logger))

	// Health Check Endpoints
	healthService := health.NewService(&health.Config{
		Version:  serviceVersion,
		Cache:    sessionCache,
		QueueURL: cfg.Queue.URL,
	}, logger)
	health.NewFiberHandler(healthService).RegisterRoutes(app)

	// Metrics endpoint for Prometheus
	if cfg.Prometheus.Enabled {
		metricsHandler := fasthttpadaptor.NewFastHTTPHandler(promhttp.Handler())
		app.Get(cfg.Prometheus.Path, func(c *fiber.Ctx) error {
			metricsHandler(c.Context())
			return nil
		})
	}

	// API v1 Routes
	v1 := app.Group("/api/v1")

	tokenHandler := handlers.NewTokenHandler(tokenService, cfg.HTTP.PublicWSURL, logger)
	v1.Post("/token", tokenHandler.Issue)

	menuHandler := handlers.NewMenuHandler(store, logger)
	v1.Get("/menu", menuHandler.Get)
	v1.Post("/menu/context", menuHandler.PushContext)

	// WebSocket Routes (token-gated)
	tokenGate := middleware.TokenRequired(tokenService)

	voiceHandler := wsAdapter.NewVoiceStreamHandler(sessions, logger)
	wsAdapter.SetupVoiceRoutes(app, voiceHandler, tokenGate)

	dashboardHandler := wsAdapter.NewDashboardStreamHandler(hub, store, logger)
	wsAdapter.SetupDashboardRoutes(app, dashboardHandler, tokenGate)

	// 13. Start HTTP Server
	go func() {
		logger.Info("Starting HTTP Server", zap.Int("port", cfg.HTTP.Port))
		if err := app.Listen(fmt.Sprintf(":%d", cfg.HTTP.Port)); err != nil {
			logger.Fatal("HTTP Server failed", zap.Error(err))
		}
	}()

	// 14. Graceful Shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	logger.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := app.ShutdownWithContext(ctx); err != nil {
		logger.Fatal("Server forced to shutdown", zap.Error(err))
	}

	logger.Info("Server exited gracefully")
}
