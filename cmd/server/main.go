package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	reservationapp "github.com/printhub/fulfillment/internal/application/reservation"
	routingapp "github.com/printhub/fulfillment/internal/application/routing"
	"github.com/printhub/fulfillment/internal/application/supplysync"
	"github.com/printhub/fulfillment/internal/infrastructure/cache"
	"github.com/printhub/fulfillment/internal/infrastructure/config"
	"github.com/printhub/fulfillment/internal/infrastructure/logger"
	"github.com/printhub/fulfillment/internal/infrastructure/messaging"
	"github.com/printhub/fulfillment/internal/infrastructure/persistence"
	"github.com/printhub/fulfillment/internal/infrastructure/scheduler"
	"github.com/printhub/fulfillment/internal/infrastructure/storage"
	"github.com/printhub/fulfillment/internal/infrastructure/suppliers"
	"github.com/printhub/fulfillment/internal/infrastructure/telemetry"
	"github.com/printhub/fulfillment/internal/interfaces/http/handler"
	"github.com/printhub/fulfillment/internal/interfaces/http/middleware"
	"github.com/printhub/fulfillment/internal/interfaces/http/router"
)

// version is set at build time with -ldflags "-X main.version=..."
var version = "dev"

const shutdownTimeout = 30 * time.Second

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(logger.ConfigForEnvironment(cfg.App.Env, cfg.Log.Level, cfg.Log.Format, cfg.Log.Output), cfg.App.Name)
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("Starting fulfillment service",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("version", version),
		zap.String("port", cfg.App.Port),
	)

	// Telemetry
	otelProviders, err := telemetry.Setup(ctx, telemetry.Config{
		Enabled:           cfg.Telemetry.Enabled,
		CollectorEndpoint: cfg.Telemetry.CollectorEndpoint,
		Insecure:          cfg.Telemetry.Insecure,
		ServiceName:       cfg.Telemetry.ServiceName,
		ServiceVersion:    version,
		SamplingRatio:     cfg.Telemetry.SamplingRatio,
		MetricsInterval:   cfg.Telemetry.MetricsInterval,
	}, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = otelProviders.Logs.Bridge(log)
	meterProvider := otelProviders.Meter

	profiler, err := telemetry.NewProfiler(telemetry.ProfilerConfig{
		Enabled:           cfg.Profiling.Enabled,
		ServerAddress:     cfg.Profiling.ServerAddress,
		ApplicationName:   cfg.Telemetry.ServiceName,
		Environment:       cfg.App.Env,
		BasicAuthUser:     cfg.Profiling.BasicAuthUser,
		BasicAuthPassword: cfg.Profiling.BasicAuthPassword,
		ProfileGoroutines: cfg.Profiling.ProfileGoroutines,
		ProfileLocks:      cfg.Profiling.ProfileLocks,
	}, log)
	if err != nil {
		log.Fatal("Failed to start profiler", zap.Error(err))
	}
	if cfg.Profiling.SpanProfiles && profiler.IsEnabled() {
		if err := otelProviders.Tracer.EnableSpanProfiles(); err != nil {
			log.Warn("Failed to link profiles to spans", zap.Error(err))
		}
	}

	metrics, err := telemetry.NewFulfillmentMetrics(telemetry.FulfillmentMetricsConfig{
		Meter:  meterProvider.Meter("fulfillment"),
		Logger: log,
	})
	if err != nil {
		log.Fatal("Failed to create fulfillment metrics", zap.Error(err))
	}

	// Database
	gormLog := logger.NewGormLogger(log, logger.MapGormLogLevel(cfg.Log.Level),
		logger.WithSlowThreshold(cfg.Telemetry.DBSlowQueryThresh),
		logger.WithFullSQL(cfg.Telemetry.DBLogFullSQL),
		logger.WithExpectedErrors(persistence.IsContention),
	)
	db, err := persistence.Open(ctx, &cfg.Database,
		persistence.WithGormLogger(gormLog),
		persistence.WithLogger(log),
	)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	log.Info("Database connected")

	dbTracing := telemetry.NewDBTracingPlugin(telemetry.DBTracingConfig{
		Enabled:          cfg.Telemetry.Enabled && cfg.Telemetry.DBTraceEnabled,
		LogFullSQL:       cfg.Telemetry.DBLogFullSQL,
		SlowQueryThresh:  cfg.Telemetry.DBSlowQueryThresh,
		DBSystem:         "postgresql",
		WithoutVariables: !cfg.Telemetry.DBLogFullSQL,
	}, log)
	if err := dbTracing.RegisterOtelGorm(db.DB); err != nil {
		log.Warn("Failed to register database tracing", zap.Error(err))
	}
	dbMetricsCfg := telemetry.DefaultDBMetricsConfig()
	dbMetricsCfg.SlowQueryThreshold = cfg.Telemetry.DBSlowQueryThresh
	dbMetrics, err := telemetry.RegisterDBMetrics(db.DB, meterProvider, dbMetricsCfg, log)
	if err != nil {
		log.Warn("Failed to register database metrics", zap.Error(err))
	}

	supplierRepo := persistence.NewGormSupplierRepository(db.DB)
	offerRepo := persistence.NewGormOfferRepository(db.DB)
	reservationStore := persistence.NewGormReservationStore(db.DB,
		persistence.WithLockTimeout(cfg.Reservation.LockTimeout),
	)
	outcomeRepo := persistence.NewGormRoutingOutcomeRepository(db.DB)

	// Supplier adapters
	adapters := suppliers.NewRegistry(offerRepo)
	if cfg.Suppliers.PrintfulAPIKey != "" {
		printfulCfg := suppliers.NewPrintfulConfig(cfg.Suppliers.PrintfulAPIKey)
		printfulCfg.APIBaseURL = cfg.Suppliers.PrintfulBaseURL
		printfulCfg.Timeout = cfg.Suppliers.PrintfulTimeout
		printfulCfg.RequestsPerSecond = cfg.Suppliers.PrintfulRequestsPerSecond
		printfulCfg.Burst = cfg.Suppliers.PrintfulBurst
		printful, err := suppliers.NewPrintfulAdapter(printfulCfg, log)
		if err != nil {
			log.Fatal("Failed to create Printful adapter", zap.Error(err))
		}
		adapters.SetDefaultPrintful(printful)
	} else {
		log.Warn("Printful API key not configured, printful suppliers will be unavailable")
	}

	// Sync dependencies
	idempotencyStore, err := cache.NewIdempotencyStoreFactory(cfg.Redis,
		cache.WithLogger(log),
		cache.WithInMemoryFallback(cfg.App.Env != "production"),
	).CreateStore(ctx)
	if err != nil {
		log.Fatal("Failed to create idempotency store", zap.Error(err))
	}

	var archive supplysync.CatalogArchive = storage.NoopCatalogArchive{}
	if cfg.Storage.Enabled {
		s3Archive, err := storage.NewS3CatalogArchive(&cfg.Storage, storage.WithLogger(log))
		if err != nil {
			log.Fatal("Failed to create catalog archive", zap.Error(err))
		}
		if err := s3Archive.EnsureBucket(ctx); err != nil {
			log.Fatal("Failed to prepare catalog archive bucket", zap.Error(err), zap.String("bucket", s3Archive.Bucket()))
		}
		archive = s3Archive
	}

	var forwarder supplysync.StatusForwarder = messaging.NewLogStatusForwarder(log)
	var kafkaForwarder *messaging.KafkaStatusForwarder
	if cfg.Kafka.Enabled {
		kafkaForwarder, err = messaging.NewKafkaStatusForwarder(messaging.KafkaForwarderConfig{
			Brokers:      cfg.Kafka.Brokers,
			Topic:        cfg.Kafka.OrderStatusTopic,
			ClientID:     cfg.Kafka.ClientID,
			BatchTimeout: cfg.Kafka.BatchTimeout,
			WriteTimeout: cfg.Kafka.WriteTimeout,
		}, log)
		if err != nil {
			log.Fatal("Failed to create Kafka forwarder", zap.Error(err))
		}
		forwarder = kafkaForwarder
	}

	// Application services
	ledger := reservationapp.NewLedger(reservationStore, log,
		reservationapp.WithConfig(reservationapp.Config{
			SequenceAttempts: cfg.Reservation.SequenceAttempts,
			JitterMin:        cfg.Reservation.JitterMin,
			JitterMax:        cfg.Reservation.JitterMax,
		}),
		reservationapp.WithMetrics(metrics),
	)
	creditService := reservationapp.NewCreditService(ledger, reservationStore, log)
	stockService := reservationapp.NewStockService(ledger)
	versionService := reservationapp.NewVersionService(ledger)

	routingEngine := routingapp.NewEngine(offerRepo, supplierRepo, log,
		routingapp.WithConfig(routingapp.Config{
			StoreRetries:         cfg.Routing.StoreRetries,
			StoreRetryBackoff:    cfg.Routing.StoreRetryBackoff,
			InventoryTimeout:     cfg.Routing.InventoryTimeout,
			InventoryConcurrency: cfg.Routing.InventoryConcurrency,
		}),
		routingapp.WithStockReserver(stockService),
		routingapp.WithAdapters(adapters),
		routingapp.WithOutcomeLog(outcomeRepo),
		routingapp.WithMetrics(metrics),
	)

	syncService := supplysync.NewService(supplierRepo, offerRepo, adapters, log,
		supplysync.WithConfig(supplysync.Config{
			AdapterRetries: cfg.Sync.AdapterRetries,
			RetryBackoff:   cfg.Sync.RetryBackoff,
			AdapterTimeout: cfg.Sync.AdapterTimeout,
			IdempotencyTTL: cfg.Sync.IdempotencyTTL,
		}),
		supplysync.WithArchive(archive),
		supplysync.WithIdempotencyStore(idempotencyStore),
		supplysync.WithForwarder(forwarder),
		supplysync.WithMetrics(metrics),
	)

	// Background sync
	syncScheduler, err := scheduler.NewSupplySyncScheduler(scheduler.SupplySyncSchedulerConfig{
		MaxConcurrentJobs: cfg.Sync.MaxConcurrentJobs,
		QueueSize:         cfg.Sync.QueueSize,
		JobTimeout:        cfg.Sync.JobTimeout,
		RetryAttempts:     cfg.Sync.RetryAttempts,
		RetryDelay:        cfg.Sync.RetryDelay,
		HistorySize:       cfg.Sync.HistorySize,
	}, syncService, log.Named("sync-scheduler"))
	if err != nil {
		log.Fatal("Failed to create sync scheduler", zap.Error(err))
	}
	if cfg.Sync.SchedulerEnabled {
		if err := syncScheduler.Start(ctx); err != nil {
			log.Fatal("Failed to start sync scheduler", zap.Error(err))
		}
	} else {
		log.Info("Sync scheduler disabled, sync requests will be rejected")
	}

	var syncTrigger *scheduler.SupplySyncTrigger
	if cfg.Sync.SchedulerEnabled && cfg.Sync.TriggerEnabled {
		location, err := cfg.Sync.Location()
		if err != nil {
			log.Fatal("Invalid sync timezone", zap.Error(err))
		}
		triggerCfg := scheduler.DefaultSupplySyncTriggerConfig()
		triggerCfg.CheckInterval = cfg.Sync.CheckInterval
		triggerCfg.Location = location
		syncTrigger, err = scheduler.NewSupplySyncTrigger(triggerCfg, syncScheduler, nil, log.Named("sync-trigger"))
		if err != nil {
			log.Fatal("Failed to create sync trigger", zap.Error(err))
		}
		if err := syncTrigger.Start(ctx); err != nil {
			log.Fatal("Failed to start sync trigger", zap.Error(err))
		}
	}

	// HTTP
	if cfg.App.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	middleware.SetupValidator()

	engine := gin.New()
	if err := engine.SetTrustedProxies(cfg.HTTP.TrustedProxies); err != nil {
		log.Fatal("Invalid trusted proxies", zap.Error(err))
	}

	corsCfg := middleware.DefaultCORSConfig()
	corsCfg.AllowOrigins = cfg.HTTP.CORSAllowOrigins
	corsCfg.AllowMethods = cfg.HTTP.CORSAllowMethods
	corsCfg.AllowHeaders = cfg.HTTP.CORSAllowHeaders

	engine.Use(
		middleware.RequestID(),
		logger.GinMiddleware(log),
		logger.Recovery(log),
		middleware.TracingWithConfig(middleware.TracingConfig{
			ServiceName: cfg.Telemetry.ServiceName,
			Enabled:     cfg.Telemetry.Enabled,
		}),
		middleware.SpanErrorMarker(),
		middleware.HTTPMetrics(meterProvider),
		middleware.CORSWithConfig(corsCfg),
		middleware.Secure(cfg.App.Env == "production"),
		middleware.BodyLimit(cfg.HTTP.MaxBodySize),
		middleware.Timeout(cfg.HTTP.WriteTimeout),
	)

	apiMiddleware := []gin.HandlerFunc{middleware.SpanAttributes()}
	var webhookLimit gin.HandlerFunc
	if cfg.HTTP.RateLimitEnabled {
		apiMiddleware = append(apiMiddleware,
			middleware.RateLimit(middleware.NewRateLimiter(cfg.HTTP.RateLimitRequests, cfg.HTTP.RateLimitWindow)))
		webhookLimit = middleware.RateLimitByKey(
			middleware.NewRateLimiter(cfg.HTTP.WebhookRateLimitRequests, cfg.HTTP.WebhookRateLimitWindow),
			middleware.PathParamKey("supplierId"),
			log,
		)
	}

	handlers := router.Handlers{
		Routing:     handler.NewRoutingHandler(routingEngine),
		Reservation: handler.NewReservationHandler(ledger),
		Version:     handler.NewVersionHandler(versionService),
		Credit:      handler.NewCreditHandler(creditService),
		Supply:      handler.NewSupplyHandler(syncService, syncScheduler),
		System:      handler.NewSystemHandler(cfg.App.Name, version, db),
	}

	r := router.NewRouter(engine,
		router.WithAPIVersion("v1"),
		router.WithAPIMiddleware(apiMiddleware...),
	)
	groups := router.FulfillmentRoutes(handlers, webhookLimit)
	r.Register(groups...)
	r.Setup()
	for _, g := range groups {
		dg, ok := g.(*router.DomainGroup)
		if !ok {
			continue
		}
		for _, route := range dg.Routes() {
			log.Debug("Route registered",
				zap.String("method", route.Method),
				zap.String("path", r.BasePath()+route.Path),
			)
		}
	}
	router.RegisterHealth(engine, handlers.System)

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

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if syncTrigger != nil {
		if err := syncTrigger.Stop(shutdownCtx); err != nil {
			log.Warn("Error stopping sync trigger", zap.Error(err))
		}
	}
	if err := syncScheduler.Stop(shutdownCtx); err != nil {
		log.Warn("Error stopping sync scheduler", zap.Error(err))
	}
	if kafkaForwarder != nil {
		if err := kafkaForwarder.Close(); err != nil {
			log.Warn("Error closing Kafka forwarder", zap.Error(err))
		}
	}
	if err := idempotencyStore.Close(); err != nil {
		log.Warn("Error closing idempotency store", zap.Error(err))
	}
	if dbMetrics != nil {
		dbMetrics.Stop()
	}
	if err := db.Close(); err != nil {
		log.Error("Error closing database", zap.Error(err))
	}
	if err := profiler.Stop(); err != nil {
		log.Warn("Error stopping profiler", zap.Error(err))
	}

	log.Info("Server exited gracefully")
	if err := otelProviders.Shutdown(shutdownCtx); err != nil {
		_, _ = os.Stderr.WriteString("Error shutting down telemetry: " + err.Error() + "\n")
	}
}
