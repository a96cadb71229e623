package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/straye-as/deal-engine/docs"
	"github.com/straye-as/deal-engine/internal/auth"
	"github.com/straye-as/deal-engine/internal/catalog"
	"github.com/straye-as/deal-engine/internal/config"
	"github.com/straye-as/deal-engine/internal/database"
	"github.com/straye-as/deal-engine/internal/http/handler"
	"github.com/straye-as/deal-engine/internal/http/middleware"
	"github.com/straye-as/deal-engine/internal/http/router"
	"github.com/straye-as/deal-engine/internal/jobs"
	"github.com/straye-as/deal-engine/internal/logger"
	"github.com/straye-as/deal-engine/internal/repository"
	"github.com/straye-as/deal-engine/internal/service"
	"github.com/straye-as/deal-engine/internal/storage"
	"go.uber.org/zap"
)

// @title Straye Deal Engine API
// @version 1.0
// @description Versioned B2B deal negotiation with documents and numbering

// @contact.name API Support
// @contact.email support@straye.io

// @host localhost:8080
// @BasePath /api/v1

// @securityDefinitions.apikey BearerAuth
// @in header
// @name Authorization
// @description JWT Bearer token carrying a company_id claim

// @securityDefinitions.apikey ApiKeyAuth
// @in header
// @name X-API-Key
// @description Service API key, requires X-Company-ID
// @Security BearerAuth
// @Security ApiKeyAuth

func main() {
	if err := run(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func run() error {
	ctx := context.Background()

	// Load basic configuration first (for logging setup)
	basicCfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := logger.NewLogger(&basicCfg.Logging, &basicCfg.App)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	log.Info("Starting application",
		zap.String("app", basicCfg.App.Name),
		zap.String("env", basicCfg.App.Environment),
		zap.Int("port", basicCfg.App.Port),
	)

	if host := os.Getenv("SWAGGER_HOST"); host != "" {
		docs.SwaggerInfo.Host = host
	} else {
		docs.SwaggerInfo.Host = fmt.Sprintf("localhost:%d", basicCfg.App.Port)
	}

	// In staging/production secrets may come from Azure Key Vault
	cfg, err := config.LoadWithSecrets(ctx, log)
	if err != nil {
		return fmt.Errorf("failed to load secrets: %w", err)
	}

	db, err := database.NewDatabase(&cfg.Database, log)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	fileStorage, err := storage.NewStorage(ctx, &cfg.Storage, log)
	if err != nil {
		return fmt.Errorf("failed to initialize storage: %w", err)
	}
	log.Info("Storage initialized", zap.String("mode", cfg.Storage.Mode))

	// The warehouse is optional unless it is the configured catalog source
	warehouse, err := catalog.NewWarehouseCatalog(ctx, &cfg.Warehouse, log)
	if err != nil {
		log.Warn("Warehouse connection failed, continuing without it", zap.Error(err))
		warehouse = nil
	} else if warehouse != nil {
		log.Info("Warehouse connected",
			zap.Int("max_open_conns", cfg.Warehouse.MaxOpenConns),
			zap.Int("query_timeout_seconds", cfg.Warehouse.QueryTimeout),
		)
	}

	// Repositories
	dealRepo := repository.NewDealRepository(db)
	dealItemRepo := repository.NewDealItemRepository(db)
	documentRepo := repository.NewDealDocumentRepository(db)
	historyRepo := repository.NewDealHistoryRepository(db)
	numberSequenceRepo := repository.NewNumberSequenceRepository(db)
	pendingRepo := repository.NewPendingDeletionRepository(db)
	companyRepo := repository.NewCompanyRepository(db)
	productRepo := repository.NewProductRepository(db)

	productCatalog, err := catalog.Select(cfg.Catalog.Source, productRepo, warehouse)
	if err != nil {
		return fmt.Errorf("failed to select product catalog: %w", err)
	}
	log.Info("Product catalog selected", zap.String("source", cfg.Catalog.Source))

	// Services
	history := service.NewHistoryRecorder(historyRepo)
	access := service.NewDealAccessService(dealRepo)
	numbers := service.NewNumberSequenceService(numberSequenceRepo, log)
	cleanup := service.NewObjectCleanupService(fileStorage, pendingRepo, log)

	dealService := service.NewDealService(
		dealRepo,
		dealItemRepo,
		documentRepo,
		history,
		numbers,
		access,
		productCatalog,
		companyRepo,
		cleanup,
		cfg.Negotiation,
		log,
		db,
	)
	documentService := service.NewDocumentService(dealRepo, documentRepo, history, access, fileStorage, cleanup, log, db)
	formService := service.NewDocumentFormService(dealRepo, documentRepo, history, access, log, db)

	// Middleware
	authMiddleware := auth.NewMiddleware(&cfg.Auth, log)
	rateLimiter := middleware.NewRateLimiter(&cfg.RateLimit, log)

	// Handlers
	errorMapper := handler.NewErrorMapper(access, cfg.Negotiation.DistinguishForbidden, log)
	dealHandler := handler.NewDealHandler(dealService, errorMapper, log)
	documentHandler := handler.NewDocumentHandler(documentService, errorMapper, cfg.Storage.MaxUploadSizeMB, log)
	formHandler := handler.NewFormHandler(formService, errorMapper, log)

	var warehouseHealth router.WarehouseHealth
	if warehouse != nil {
		warehouseHealth = warehouse
	}

	rt := router.NewRouter(
		cfg,
		log,
		db,
		warehouseHealth,
		authMiddleware,
		rateLimiter,
		dealHandler,
		documentHandler,
		formHandler,
	)

	scheduler := jobs.NewScheduler(log)
	jobCount := 0

	if cfg.Jobs.CleanupEnabled {
		if err := jobs.RegisterStorageCleanupJob(
			scheduler,
			cleanup,
			log,
			cfg.Jobs.CleanupSchedule,
			cfg.Jobs.CleanupBatchSize,
			cfg.Jobs.CleanupMaxAttempts,
		); err != nil {
			log.Error("Failed to register storage cleanup job", zap.Error(err))
		} else {
			jobCount++
		}
	}

	if cfg.Jobs.CatalogSyncEnabled && warehouse != nil {
		syncer := catalog.NewSyncer(warehouse, productRepo, log)
		if err := jobs.RegisterCatalogSyncJob(
			scheduler,
			syncer,
			log,
			cfg.Jobs.CatalogSyncSchedule,
			cfg.Jobs.CatalogSyncTimeoutDuration(),
			true,
		); err != nil {
			log.Error("Failed to register catalog sync job", zap.Error(err))
		} else {
			jobCount++
		}
	} else {
		log.Info("Catalog sync disabled",
			zap.Bool("sync_enabled", cfg.Jobs.CatalogSyncEnabled),
			zap.Bool("warehouse_available", warehouse != nil),
		)
	}

	if jobCount > 0 {
		scheduler.Start()
		log.Info("Scheduler started", zap.Strings("jobs", scheduler.GetJobNames()))
	}

	var h http.Handler = rt.Setup()
	if timeout := cfg.Server.RequestTimeoutDuration(); timeout > 0 {
		h = http.TimeoutHandler(h, timeout, `{"title":"Request timeout","status":503}`)
	}

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", cfg.App.Port),
		Handler:      h,
		ReadTimeout:  cfg.Server.ReadTimeoutDuration(),
		WriteTimeout: cfg.Server.WriteTimeoutDuration(),
	}

	serverErrors := make(chan error, 1)
	go func() {
		log.Info("Server starting", zap.String("addr", srv.Addr))
		serverErrors <- srv.ListenAndServe()
	}()

	shutdown := make(chan os.Signal, 1)
	signal.Notify(shutdown, os.Interrupt, syscall.SIGTERM)

	select {
	case err := <-serverErrors:
		return fmt.Errorf("server error: %w", err)
	case sig := <-shutdown:
		log.Info("Shutdown signal received", zap.String("signal", sig.String()))

		if jobCount > 0 {
			stopCtx := scheduler.Stop()
			<-stopCtx.Done()
			log.Info("Scheduler stopped")
		}

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			log.Error("Failed to shutdown gracefully", zap.Error(err))
			return err
		}

		if err := warehouse.Close(); err != nil {
			log.Warn("Error closing warehouse connection", zap.Error(err))
		}

		log.Info("Server stopped gracefully")
	}

	return nil
}
