package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	budgetapp "github.com/erp/budget/internal/application/budget"
	"github.com/erp/budget/internal/domain/budget"
	"github.com/erp/budget/internal/infrastructure/cache"
	"github.com/erp/budget/internal/infrastructure/config"
	"github.com/erp/budget/internal/infrastructure/currency"
	"github.com/erp/budget/internal/infrastructure/event"
	"github.com/erp/budget/internal/infrastructure/logger"
	"github.com/erp/budget/internal/infrastructure/migration"
	"github.com/erp/budget/internal/infrastructure/persistence"
	"github.com/erp/budget/internal/infrastructure/telemetry"
	"github.com/erp/budget/internal/interfaces/http/handler"
	"github.com/erp/budget/internal/interfaces/http/middleware"
	"github.com/erp/budget/internal/interfaces/http/router"
	"github.com/erp/budget/migrations"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger
	log, err := logger.NewForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting BOQ budget service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
		zap.String("version", version),
	)

	ctx := context.Background()

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:         cfg.Telemetry.ProfilingEnabled,
		ServerAddress:   cfg.Telemetry.ProfilingServerAddress,
		ApplicationName: cfg.Telemetry.ServiceName,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	defer func() {
		if err := profiler.Stop(); err != nil {
			log.Error("Error stopping profiler", zap.Error(err))
		}
	}()

	// Telemetry: tracer provider first so the DB plugin and HTTP middleware see it
	tracerProvider, err := telemetry.NewTracerProvider(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		ServiceName:       cfg.Telemetry.ServiceName,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceVersion:    version,
		SpanProfiles:      profiler.IsEnabled(),
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize tracer provider", zap.Error(err))
	}
	defer func() {
		if err := tracerProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down tracer provider", zap.Error(err))
		}
	}()

	meterProvider, err := telemetry.NewMeterProvider(ctx, telemetry.MetricsConfig{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ExportInterval:    cfg.Telemetry.MetricsInterval,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize meter provider", zap.Error(err))
	}
	defer func() {
		if err := meterProvider.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down meter provider", zap.Error(err))
		}
	}()

	logExporter, err := telemetry.NewLogExporter(ctx, telemetry.LogsConfig{
		Enabled:           cfg.Telemetry.Enabled && cfg.Telemetry.LogsEnabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		Insecure:          cfg.Telemetry.Insecure,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize log exporter", zap.Error(err))
	}
	defer func() {
		if err := logExporter.Shutdown(context.Background()); err != nil {
			log.Error("Error shutting down log exporter", zap.Error(err))
		}
	}()
	log = logExporter.Attach(log)

	// Database with zap-backed GORM logger and query tracing
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level))
	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:    cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBSystem:   "postgresql",
	}, log)
	db, err := persistence.NewDatabase(&cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithPlugins(dbTracing),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	sqlDB, err := db.DB.DB()
	if err != nil {
		log.Fatal("Failed to access database handle", zap.Error(err))
	}
	if cfg.Database.AutoMigrate {
		// The migrator is not closed: closing it would close sqlDB as well.
		migrator, err := migration.NewFromFS(sqlDB, migrations.FS, log)
		if err != nil {
			log.Fatal("Failed to initialize migrator", zap.Error(err))
		}
		if err := migrator.Up(); err != nil {
			log.Fatal("Failed to apply migrations", zap.Error(err))
		}
	}

	// Redis is optional: without it idempotency keys live in process memory and
	// exchange rates are not shared between instances.
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to Redis", zap.Error(err))
		}
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}
	idempotencyStore := cache.NewIdempotencyStore(redisClient, log)
	defer func() {
		// Also closes redisClient when the store is Redis-backed.
		if err := idempotencyStore.Close(); err != nil {
			log.Error("Error closing idempotency store", zap.Error(err))
		}
	}()

	rateProvider, err := currency.NewRateProvider(cfg.Currency, log)
	if err != nil {
		log.Fatal("Failed to initialize exchange rate provider", zap.Error(err))
	}
	if redisClient != nil {
		rateProvider = cache.NewCachedRateProvider(redisClient, rateProvider, cfg.Currency.CacheTTL, log)
	}

	// Event bus: domain events are logged for audit
	eventBus := event.NewInMemoryEventBus(log)
	auditHandler := event.NewAuditLogHandler(log)
	eventBus.Subscribe(auditHandler)
	if err := eventBus.Start(ctx); err != nil {
		log.Fatal("Failed to start event bus", zap.Error(err))
	}
	defer func() {
		if err := eventBus.Stop(context.Background()); err != nil {
			log.Error("Error stopping event bus", zap.Error(err))
		}
	}()
	log.Info("Event handlers registered", zap.Strings("audit_events", auditHandler.EventTypes()))

	// Application services
	var recorder budgetapp.ConsumptionRecorder
	if meterProvider.IsEnabled() {
		budgetMetrics, err := telemetry.NewBudgetMetrics(meterProvider.Meter("boq-budget"), log)
		if err != nil {
			log.Warn("Budget metrics unavailable", zap.Error(err))
		} else {
			recorder = budgetMetrics
		}
	}

	txScope := persistence.NewGormTransactionScope(db.DB, persistence.WithLockTimeout(cfg.Budget.LockTimeout))
	boqService := budgetapp.NewBOQService(txScope, budgetapp.NewRevisionEngine(log), log)
	boqService.SetEventPublisher(eventBus)
	gateway := budgetapp.NewConsumptionGateway(budgetapp.ConsumptionGatewayConfig{
		TxScope:    txScope,
		Normalizer: budgetapp.NewCurrencyNormalizer(rateProvider),
		Tolerance: budget.Tolerance{
			Quantity: cfg.Budget.QuantityTolerance,
			Amount:   cfg.Budget.AmountTolerance,
		},
		Recorder: recorder,
		Logger:   log,
	})
	gateway.SetEventPublisher(eventBus)
	reportService := budgetapp.NewReportService(txScope)
	sectionService := budgetapp.NewSectionService(txScope)

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if len(cfg.HTTP.TrustedProxies) > 0 {
		if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
			log.Warn("Failed to set trusted proxies", zap.Error(err))
		}
	}

	// Middleware order:
	// 1. RequestID - generate/propagate request ID
	// 2. Tracing - start the server span
	// 3. Logger - request-scoped logger, carries trace IDs
	// 4. Recovery - catch panics
	// 5. SpanEnricher/HTTPMetrics - record outcome
	// 6. CORS, security headers, body limit, rate limit
	engine.Use(middleware.RequestID())
	engine.Use(middleware.Tracing(middleware.TracingConfig{
		ServiceName: cfg.Telemetry.ServiceName,
		Enabled:     tracerProvider.IsEnabled(),
	}))
	engine.Use(logger.GinMiddleware(log))
	engine.Use(logger.Recovery(log))
	engine.Use(middleware.SpanEnricher())
	if meterProvider.IsEnabled() {
		engine.Use(middleware.HTTPMetrics(meterProvider.Meter("boq-budget/http")))
	}

	corsConfig := middleware.DefaultCORSConfig()
	corsConfig.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsConfig.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsConfig.AllowHeaders = cfg.HTTP.CORSAllowHeaders
	engine.Use(middleware.CORSWithConfig(corsConfig))
	engine.Use(middleware.Secure())
	engine.Use(middleware.BodyLimit(cfg.HTTP.MaxBodySize))

	if cfg.HTTP.RateLimitEnabled {
		rateLimiter := middleware.NewRateLimiter(cfg.HTTP.RateLimitRPS, cfg.HTTP.RateLimitBurst)
		defer rateLimiter.Close()
		engine.Use(middleware.RateLimit(rateLimiter))
		log.Info("Rate limiting enabled",
			zap.Float64("rps", cfg.HTTP.RateLimitRPS),
			zap.Int("burst", cfg.HTTP.RateLimitBurst),
		)
	}

	checks := map[string]handler.HealthChecker{"database": sqlDB}
	if redisClient != nil {
		checks["redis"] = handler.HealthCheckerFunc(func(ctx context.Context) error {
			return redisClient.Ping(ctx).Err()
		})
	}
	systemHandler := handler.NewSystemHandler(cfg.App.Name, version, checks)

	// Health check endpoint (outside API versioning)
	engine.GET("/health", systemHandler.Health)

	identityConfig := middleware.DefaultIdentityConfig()
	identityConfig.Logger = log

	r := router.NewRouter(engine, router.WithAPIVersion("v1"))
	r.Use(middleware.Identity(identityConfig))
	router.RegisterBudgetRoutes(r, router.BudgetHandlers{
		BOQ:         handler.NewBOQHandler(boqService, reportService),
		Consumption: handler.NewConsumptionHandler(gateway),
		Section:     handler.NewSectionHandler(sectionService),
		System:      systemHandler,
	}, middleware.Idempotency(middleware.IdempotencyConfig{
		Store: idempotencyStore,
		TTL:   cfg.HTTP.IdempotencyTTL,
	}))
	r.Setup()

	srv := &http.Server{
		Addr:           ":" + cfg.App.Port,
		Handler:        engine,
		ReadTimeout:    cfg.HTTP.ReadTimeout,
		WriteTimeout:   cfg.HTTP.WriteTimeout,
		IdleTimeout:    cfg.HTTP.IdleTimeout,
		MaxHeaderBytes: cfg.HTTP.MaxHeaderBytes,
	}

	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	// Graceful shutdown
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
		return
	}

	log.Info("Server exited gracefully")
}
