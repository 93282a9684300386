package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"docflow/internal/api"
	"docflow/internal/api/handlers"
	"docflow/internal/extract"
	"docflow/internal/repository"
	"docflow/internal/repository/memory"
	"docflow/internal/service"
	"docflow/internal/storage"
	"docflow/internal/watcher"
	"docflow/pkg/auth"
	"docflow/pkg/config"
	"docflow/pkg/logger"
	"docflow/pkg/postgres"

	"go.uber.org/zap"
)

// @title docflow API
// @version 1.0
// @description Document ingestion, review and invoicing API.

// @BasePath /

// @securityDefinitions.apikey Bearer
// @in header
// @name Authorization
// @description Type "Bearer" followed by a space and JWT token.

const shutdownTimeout = 30 * time.Second

type metadataStore interface {
	repository.Transactor
	Repositories() repository.Repositories
}

func main() {
	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Failed to load config: %v\n", err)
		os.Exit(1)
	}

	// Initialize global logger
	if err := logger.Init(cfg.Logger.Level); err != nil {
		fmt.Printf("Failed to initialize logger: %v\n", err)
		os.Exit(1)
	}
	defer logger.Sync()

	appLogger := logger.Get()
	appLogger.Info("Starting docflow service",
		zap.String("storage", cfg.Storage.Driver),
		zap.String("blob", cfg.Blob.Driver),
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Metadata store
	var store metadataStore
	checks := map[string]handlers.HealthCheck{}
	switch cfg.Storage.Driver {
	case "memory":
		appLogger.Warn("Using in-memory metadata store, data is lost on restart")
		store = memory.NewStore()
	default:
		if err := postgres.Migrate(&cfg.Database, appLogger); err != nil {
			logger.Fatal("Failed to apply migrations", zap.Error(err))
		}
		db, err := postgres.NewPool(ctx, &cfg.Database, appLogger)
		if err != nil {
			logger.Fatal("Failed to connect to database", zap.Error(err))
		}
		defer db.Close()
		checks["database"] = db.Ping
		store = repository.NewStore(db, logger.Component("repository"))
	}
	repos := store.Repositories()

	// Blob store
	blobs, err := storage.New(ctx, cfg.Blob, logger.Component("storage"))
	if err != nil {
		logger.Fatal("Failed to initialize blob storage", zap.Error(err))
	}
	if c, ok := blobs.(io.Closer); ok {
		defer c.Close()
	}

	// Field parser: GigaChat when configured, regex otherwise
	var parser service.FieldParser = service.NewRegexFieldParser()
	if cfg.GigaChat.APIKey != "" {
		llmParser, err := service.NewLLMFieldParser(&cfg.GigaChat, parser, logger.Component("llm"))
		if err != nil {
			logger.Fatal("Failed to initialize LLM field parser", zap.Error(err))
		}
		defer llmParser.Close()
		parser = llmParser
	} else {
		appLogger.Info("GIGACHAT_API_KEY not set, using regex field extraction")
	}

	// Services
	broker := service.NewBroker(64)
	defer broker.Close()

	intake := service.NewIntakeService(repos.Documents, blobs, &cfg.Upload, extract.PageCount, broker, logger.Component("intake"))
	processor := service.NewProcessor(
		repos.Documents,
		blobs,
		extract.NewFitzExtractor(logger.Component("extract")),
		parser,
		broker,
		logger.Component("processor"),
		service.WithWorkers(cfg.Worker.Count),
		service.WithQueueSize(cfg.Worker.QueueSize),
		service.WithProcessTimeout(cfg.Worker.ProcessTimeout),
	)
	if err := processor.Recover(ctx); err != nil {
		appLogger.Warn("Failed to recover interrupted documents", zap.Error(err))
	}
	processor.Start()

	review := service.NewReviewService(store, repos, logger.Component("review"))
	invoices := service.NewInvoiceService(repos.Invoices, repos.Clients, logger.Component("invoices"))
	query := service.NewQueryService(repos.Documents, repos.Invoices, logger.Component("query"))
	clients := service.NewClientDirectory(repos.Clients, cfg.Cache.ClientSize, cfg.Cache.ClientTTL, logger.Component("clients"))

	// Watched folder
	if cfg.Watch.Dir != "" {
		w := watcher.New(watcher.Config{
			Dir:               cfg.Watch.Dir,
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			Debounce:          cfg.Watch.Debounce,
			AutoProcess:       cfg.Watch.AutoProcess,
		}, intake, processor, logger.Component("watcher"))
		go func() {
			if err := w.Run(ctx); err != nil {
				appLogger.Error("Directory watcher stopped", zap.Error(err))
			}
		}()
	}

	var jwtManager *auth.JWTManager
	if cfg.JWT.Enabled() {
		jwtManager = auth.NewJWTManager(cfg.JWT.SecretKey, cfg.JWT.Expiration)
	}

	// Setup router
	app := api.SetupRouter(api.Handlers{
		Documents: handlers.NewDocumentHandler(intake, processor, query, appLogger),
		Events:    handlers.NewEventsHandler(broker, appLogger),
		Review:    handlers.NewReviewHandler(review, appLogger),
		Invoices:  handlers.NewInvoiceHandler(invoices, appLogger),
		Clients:   handlers.NewClientHandler(clients, appLogger),
		Dashboard: handlers.NewDashboardHandler(query, appLogger),
		Health:    handlers.NewHealthHandler(checks, appLogger),
	}, &cfg.Server, jwtManager, appLogger)

	// Start server
	go func() {
		addr := ":" + cfg.Server.Port
		logger.Info("Server starting", zap.String("address", addr))
		if err := app.Listen(addr); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
	}()

	<-ctx.Done()
	appLogger.Info("Shutting down server")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	broker.Close()
	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Error("Server shutdown error", zap.Error(err))
	}
	if err := processor.Shutdown(shutdownCtx); err != nil {
		logger.Error("Processor shutdown error", zap.Error(err))
	}
	appLogger.Info("Shutdown complete")
}
