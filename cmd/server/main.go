package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"adstudio-backend-go/internal/api"
	"adstudio-backend-go/internal/cache"
	"adstudio-backend-go/internal/config"
	"adstudio-backend-go/internal/core"
	"adstudio-backend-go/internal/db"
	"adstudio-backend-go/internal/events"
	"adstudio-backend-go/internal/identity"
	"adstudio-backend-go/internal/mailer"
	"adstudio-backend-go/internal/metrics"
	"adstudio-backend-go/internal/middleware"
)

func newLogger(ginMode, level string) (*zap.Logger, error) {
	cfg := zap.NewDevelopmentConfig()
	if ginMode == gin.ReleaseMode {
		cfg = zap.NewProductionConfig()
	}
	lvl, err := zapcore.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("invalid LOG_LEVEL %q: %w", level, err)
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	return cfg.Build()
}

// closer releases a backing resource on shutdown.
type closer struct {
	name  string
	close func() error
}

func main() {
	// .env is a local development convenience; release deployments set the environment.
	if os.Getenv("GIN_MODE") != gin.ReleaseMode {
		if err := godotenv.Load(); err != nil {
			log.Println("Warning: no .env file loaded:", err)
		}
	}

	appConfig, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to load application configuration: %v", err)
	}

	zapLogger, err := newLogger(appConfig.GinMode, appConfig.LogLevel)
	if err != nil {
		log.Fatalf("CRITICAL_ERROR: Failed to initialize Zap logger: %v", err)
	}
	defer zapLogger.Sync() //nolint:errcheck
	zapLogger.Info("Configuration loaded",
		zap.String("store_driver", appConfig.StoreDriver),
		zap.String("events_driver", appConfig.EventsDriver))

	catalog, err := config.LoadCatalog(appConfig.CatalogPath)
	if err != nil {
		zapLogger.Warn("Product catalog not loaded, using built-in catalog",
			zap.String("path", appConfig.CatalogPath), zap.Error(err))
		catalog = config.DefaultCatalog()
	}
	zapLogger.Info("Product catalog ready", zap.Int("products", catalog.Len()))

	initCtx, cancelInit := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancelInit()

	// Firebase Auth is needed by every store driver for token verification and claims.
	if err := db.InitFirebase(initCtx, appConfig, zapLogger); err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize Firebase Admin SDK", zap.Error(err))
	}
	firebaseAuthClient := db.GetFirebaseAuthClient()
	if firebaseAuthClient == nil {
		zapLogger.Fatal("CRITICAL_ERROR: Firebase Auth client is nil after initialization")
	}

	var closers []closer

	// --- Account store ---
	var (
		accountRepo db.AccountRepository
		auditRepo   db.AuditRepository
	)
	switch appConfig.StoreDriver {
	case config.StorePostgres:
		pool, err := db.NewPostgresPool(initCtx, appConfig.DatabaseURL, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to Postgres", zap.Error(err))
		}
		closers = append(closers, closer{"postgres", func() error { pool.Close(); return nil }})
		if accountRepo, err = db.NewPostgresAccountRepository(pool); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create account repository", zap.Error(err))
		}
		if auditRepo, err = db.NewPostgresAuditRepository(pool); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create audit repository", zap.Error(err))
		}
	case config.StoreMemory:
		zapLogger.Warn("Using in-memory account store; balances are lost on restart")
		store := db.NewMemoryStore()
		accountRepo = store
		auditRepo = store.AuditRepository()
	default:
		firestoreClient := db.GetFirestoreClient()
		if firestoreClient == nil {
			zapLogger.Fatal("CRITICAL_ERROR: Firestore client is nil after initialization")
		}
		closers = append(closers, closer{"firestore", firestoreClient.Close})
		if accountRepo, err = db.NewFirestoreAccountRepository(firestoreClient); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create account repository", zap.Error(err))
		}
		if auditRepo, err = db.NewFirestoreAuditRepository(firestoreClient); err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create audit repository", zap.Error(err))
		}
	}
	zapLogger.Info("Account store initialized", zap.String("driver", appConfig.StoreDriver))

	// --- Balance cache ---
	var balanceCache cache.BalanceCache = cache.NoopCache{}
	if appConfig.RedisAddr != "" {
		rc, err := cache.NewRedisBalanceCache(initCtx, cache.RedisConfig{
			Address:  appConfig.RedisAddr,
			Password: appConfig.RedisPassword,
			DB:       appConfig.RedisDB,
			TTL:      appConfig.BalanceCacheTTL,
		}, zapLogger)
		if err != nil {
			// Peek falls back to the store, so a missing cache is not fatal.
			zapLogger.Warn("Redis balance cache unavailable, continuing without it", zap.Error(err))
		} else {
			balanceCache = rc
			closers = append(closers, closer{"redis", rc.Close})
		}
	}

	// --- Ledger event publisher ---
	var publisher events.Publisher = events.NoopPublisher{}
	switch appConfig.EventsDriver {
	case config.EventsRabbitMQ:
		p, err := events.NewRabbitMQPublisher(appConfig.RabbitMQURL, appConfig.RabbitMQQueue, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to connect to RabbitMQ", zap.Error(err))
		}
		publisher = p
	case config.EventsKafka:
		p, err := events.NewKafkaPublisher(appConfig.KafkaBrokerList(), appConfig.KafkaTopic, zapLogger)
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Failed to create Kafka publisher", zap.Error(err))
		}
		publisher = p
	}
	closers = append(closers, closer{"events", publisher.Close})

	// --- Mail ---
	var mail mailer.Mailer = mailer.Noop{}
	if appConfig.MailEnabled() {
		m, err := mailer.NewSMTPMailer(mailer.SMTPConfig{
			Host:     appConfig.SMTPHost,
			Port:     appConfig.SMTPPort,
			User:     appConfig.SMTPUser,
			Password: appConfig.SMTPPass,
			From:     appConfig.MailFrom,
		})
		if err != nil {
			zapLogger.Fatal("CRITICAL_ERROR: Invalid SMTP configuration", zap.Error(err))
		}
		mail = m
	} else {
		zapLogger.Warn("SMTP not configured; purchase-created accounts will not receive sign-in links")
	}

	// --- Metrics ---
	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	ledgerMetrics := metrics.NewLedgerMetrics(registry)

	// --- Services ---
	directory, err := identity.NewFirebaseDirectory(firebaseAuthClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to create identity directory", zap.Error(err))
	}
	followUps := &core.FollowUps{
		Claims:    core.NewClaimsService(directory),
		Cache:     balanceCache,
		Publisher: publisher,
		Audit:     core.NewAuditService(auditRepo),
		Metrics:   ledgerMetrics,
		Logger:    zapLogger,
	}
	ledgerService := core.NewLedgerService(accountRepo, followUps)
	provisioningService, err := core.NewProvisioningService(core.ProvisioningDeps{
		Repo:        accountRepo,
		Catalog:     catalog,
		Directory:   directory,
		Mailer:      mail,
		SignupBonus: appConfig.SignupBonusCredits,
		FollowUps:   followUps,
	})
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize ProvisioningService", zap.Error(err))
	}
	billingService, err := core.NewBillingService(provisioningService, appConfig.StripeWebhookSecret, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to initialize BillingService", zap.Error(err))
	}
	zapLogger.Info("Core services initialized")

	// --- HTTP ---
	if appConfig.IsRelease() {
		gin.SetMode(gin.ReleaseMode)
	} else {
		gin.SetMode(gin.DebugMode)
	}
	router := gin.New()
	router.Use(middleware.RequestID())
	router.Use(middleware.RequestLogger(zapLogger))
	router.Use(middleware.RecoveryMiddleware(zapLogger))
	if appConfig.ClientURL != "" {
		router.Use(middleware.CORSMiddleware(appConfig.ClientURL))
		zapLogger.Info("CORS Middleware enabled", zap.String("clientURL", appConfig.ClientURL))
	} else {
		zapLogger.Warn("CORS Middleware SKIPPED: CLIENT_URL is not configured")
	}

	authMW, err := middleware.NewAuthMiddleware(firebaseAuthClient, zapLogger)
	if err != nil {
		zapLogger.Fatal("CRITICAL_ERROR: Failed to create auth middleware", zap.Error(err))
	}
	api.SetupRoutes(router, zapLogger, authMW, api.Services{
		Ledger:       ledgerService,
		Provisioning: provisioningService,
		Billing:      billingService,
	}, registry)

	httpServer := &http.Server{
		Addr:              ":" + appConfig.Port,
		Handler:           router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	go func() {
		zapLogger.Info("Starting HTTP server", zap.String("address", httpServer.Addr), zap.String("ginMode", gin.Mode()))
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zapLogger.Fatal("Failed to start HTTP server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	zapLogger.Info("Received shutdown signal", zap.String("signal", sig.String()))

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancelShutdown()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		zapLogger.Error("Server forced to shutdown", zap.Error(err))
	}

	// Close in reverse order of creation.
	for i := len(closers) - 1; i >= 0; i-- {
		if err := closers[i].close(); err != nil {
			zapLogger.Warn("Failed to close resource", zap.String("resource", closers[i].name), zap.Error(err))
		}
	}
	zapLogger.Info("Server exiting")
}
