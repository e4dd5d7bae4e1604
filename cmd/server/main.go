package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"
	_ "time/tzdata"

	"github.com/ThreeDotsLabs/watermill/pubsub/gochannel"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/ulule/limiter/v3"
	"go.uber.org/zap"

	appevent "github.com/erp/mfgerp/internal/application/event"
	appnumbering "github.com/erp/mfgerp/internal/application/numbering"
	"github.com/erp/mfgerp/internal/application/partner"
	"github.com/erp/mfgerp/internal/application/settings"
	"github.com/erp/mfgerp/internal/application/trade"
	"github.com/erp/mfgerp/internal/domain/shared"
	"github.com/erp/mfgerp/internal/infrastructure/auth"
	"github.com/erp/mfgerp/internal/infrastructure/cache"
	"github.com/erp/mfgerp/internal/infrastructure/config"
	"github.com/erp/mfgerp/internal/infrastructure/event"
	"github.com/erp/mfgerp/internal/infrastructure/logger"
	"github.com/erp/mfgerp/internal/infrastructure/migration"
	"github.com/erp/mfgerp/internal/infrastructure/persistence"
	"github.com/erp/mfgerp/internal/infrastructure/telemetry"
	"github.com/erp/mfgerp/internal/interfaces/http/handler"
	"github.com/erp/mfgerp/internal/interfaces/http/middleware"
	"github.com/erp/mfgerp/internal/interfaces/http/router"
	"github.com/erp/mfgerp/migrations"
)

//	@title			Manufacturing ERP API
//	@version		1.0
//	@description	Tenant scoped clients, purchase orders, goods receipts and invoices with sequential document numbers.

//	@BasePath	/api/v1

//	@securityDefinitions.apikey	BearerAuth
//	@in							header
//	@name						Authorization
//	@description				Bearer token authentication. Format: "Bearer {token}"

const version = "1.0.0"

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	log, err := logger.New(&logger.Config{
		Level:   cfg.Log.Level,
		Format:  cfg.Log.Format,
		Output:  cfg.Log.Output,
		Service: cfg.App.Name,
	})
	if err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	defer func() {
		_ = log.Sync()
	}()

	log.Info("Starting manufacturing ERP",
		zap.String("app", cfg.App.Name),
		zap.String("env", cfg.App.Env),
		zap.String("port", cfg.App.Port),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	providers, err := telemetry.Setup(ctx, cfg.Telemetry, log)
	if err != nil {
		log.Fatal("Failed to initialize telemetry", zap.Error(err))
	}
	log = providers.BridgeLogger(log)

	if err := middleware.SetupErrorReporting(cfg.Telemetry.SentryDSN, cfg.App.Env, cfg.App.Name+"@"+version); err != nil {
		log.Fatal("Failed to initialize error reporting", zap.Error(err))
	}
	defer middleware.FlushErrorReporting()

	db, err := persistence.NewDatabase(&cfg.Database, log)
	if err != nil {
		log.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer func() {
		if err := db.Close(); err != nil {
			log.Error("Error closing database", zap.Error(err))
		}
	}()
	log.Info("Database connected successfully")

	if err := telemetry.InstrumentDB(db.DB, providers.Meter(), telemetry.DBConfig{
		Tracing:    cfg.Telemetry.DBTraceEnabled,
		LogFullSQL: cfg.Telemetry.DBLogFullSQL,
		DBName:     cfg.Database.DBName,
	}, log); err != nil {
		log.Fatal("Failed to instrument database", zap.Error(err))
	}

	if err := migrate(db, log); err != nil {
		log.Fatal("Failed to apply migrations", zap.Error(err))
	}

	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient, err = cache.NewRedisClient(cfg.Redis)
		if err != nil {
			log.Fatal("Failed to connect to redis", zap.Error(err))
		}
		defer func() { _ = redisClient.Close() }()
		log.Info("Redis connected", zap.String("addr", cfg.Redis.Addr()))
	}

	tenantCache := cache.NewTenantCache(cfg.Cache, redisClient, log)
	defer tenantCache.Close()
	go func() {
		if err := tenantCache.StartInvalidationSubscription(ctx); err != nil && ctx.Err() == nil {
			log.Error("Cache invalidation subscription stopped", zap.Error(err))
		}
	}()

	numberingMetrics, err := telemetry.NewNumberingMetrics(providers.Meter())
	if err != nil {
		log.Fatal("Failed to create numbering metrics", zap.Error(err))
	}

	// Numbering
	configRepo := persistence.NewGormNumberingConfigRepository(db.DB)
	generator := appnumbering.NewGenerator(db.DB, configRepo,
		persistence.NewGormSequenceAllocator(nil, cfg.Numbering.AllocationAttempts, log),
		appnumbering.GeneratorOptions{
			RetryAttempts: cfg.Numbering.RetryAttempts,
			RetryBackoff:  cfg.Numbering.RetryBackoff,
			Cache:         tenantCache,
			Metrics:       numberingMetrics,
			Logger:        log,
		})
	numberingService := appnumbering.NewConfigService(configRepo, generator, log)

	// Settings drive how every response renders its audit timestamps
	settingsService := settings.NewService(persistence.NewGormCompanySettingsRepository(db.DB), tenantCache, nil, log)

	// Stores and services
	publisher := event.NewOutboxPublisher(cfg.Outbox.MaxRetries)
	clientStore := persistence.NewClientStore(db.DB, log)
	orderStore := persistence.NewPurchaseOrderStore(db.DB, log)

	clientService := partner.NewClientService(clientStore, log)
	orderService := trade.NewPurchaseOrderService(orderStore, clientStore, generator, publisher, log)
	grnService := trade.NewGoodsReceiptService(persistence.NewGoodsReceiptNoteStore(db.DB, log), orderStore, clientStore, generator, publisher, log)
	invoiceService := trade.NewInvoiceService(persistence.NewInvoiceStore(db.DB, log), clientStore, generator, publisher, log)
	clientService.SetDisplayProvider(settingsService)
	orderService.SetDisplayProvider(settingsService)
	grnService.SetDisplayProvider(settingsService)
	invoiceService.SetDisplayProvider(settingsService)

	// Outbox
	outboxRepo := event.NewGormOutboxRepository(db.DB)
	outboxService := appevent.NewOutboxService(outboxRepo, log)
	var processor *event.OutboxProcessor
	if cfg.Outbox.ProcessorEnabled {
		processor = event.NewOutboxProcessor(outboxRepo, event.ProcessorConfigFrom(cfg.Outbox), log)
		if cfg.Outbox.BrokerEnabled {
			// delivered events fan out through the in-process broker; the
			// logging consumer is its first subscriber
			pubSub := gochannel.NewGoChannel(gochannel.Config{OutputChannelBuffer: 256}, event.NewWatermillLogger(log))
			defer func() { _ = pubSub.Close() }()
			broker := event.NewBrokerNotifier(pubSub, cfg.Outbox.TopicPrefix)
			processor.Register(event.AllEvents, broker)
			go func() {
				topic := broker.Topic(shared.EventTypeDocumentNumbered)
				if err := event.Consume(ctx, pubSub, topic, event.NewLoggingNotifier(log), log); err != nil {
					log.Error("Broker consumer stopped", zap.Error(err))
				}
			}()
		} else {
			processor.Register(event.AllEvents, event.NewLoggingNotifier(log))
		}
		if err := processor.Start(ctx); err != nil {
			log.Fatal("Failed to start outbox processor", zap.Error(err))
		}
	}

	// Auth
	jwtService := auth.NewJWTService(cfg.JWT)
	var revocations auth.RevocationList = auth.NewInMemoryRevocationList()
	if redisClient != nil {
		revocations = auth.NewRedisRevocationList(redisClient, cfg.Cache.RedisPrefix+"revoked:")
	}

	var rateLimiter *limiter.Limiter
	if cfg.HTTP.TenantRateLimit != "" {
		var limiterStore redis.UniversalClient
		if redisClient != nil {
			limiterStore = redisClient
		}
		rateLimiter, err = middleware.NewTenantLimiter(cfg.HTTP.TenantRateLimit, limiterStore, cfg.Cache.RedisPrefix)
		if err != nil {
			log.Fatal("Failed to create rate limiter", zap.Error(err))
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

	r := router.NewRouter(engine, router.Config{
		ServiceName:    cfg.Telemetry.ServiceName,
		TracingEnabled: providers.Enabled(),
		Meter:          providers.Meter(),
		HTTP:           cfg.HTTP,
		Tenancy:        cfg.Tenancy,
		JWT:            jwtService,
		Revocations:    revocations,
		RateLimiter:    rateLimiter,
		ErrorReporting: cfg.Telemetry.SentryDSN != "",
		Logger:         log,
	})
	r.Public(handler.NewHealthHandler(db, redisClient, version))
	r.Tenant(
		handler.NewAuthHandler(revocations),
		handler.NewClientHandler(clientService),
		handler.NewPurchaseOrderHandler(orderService),
		handler.NewGoodsReceiptHandler(grnService),
		handler.NewInvoiceHandler(invoiceService),
		handler.NewNumberingHandler(numberingService),
		handler.NewSettingsHandler(settingsService),
	)
	r.Admin(handler.NewAdminHandler(clientService, outboxService))
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

	<-ctx.Done()
	log.Info("Shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("Server forced to shutdown", zap.Error(err))
	}
	if processor != nil {
		if err := processor.Stop(shutdownCtx); err != nil {
			log.Error("Outbox processor did not stop in time", zap.Error(err))
		}
	}
	if err := providers.Shutdown(shutdownCtx); err != nil {
		log.Error("Telemetry shutdown failed", zap.Error(err))
	}

	log.Info("Server exited gracefully")
}

// migrate brings the schema up to the latest embedded migration
func migrate(db *persistence.Database, log *zap.Logger) error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	m, err := migration.New(sqlDB, migrations.FS, log)
	if err != nil {
		return err
	}
	return m.Up()
}
