package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"go.uber.org/zap"

	"github.com/tunebridge/console/internal/backend"
	"github.com/tunebridge/console/internal/config"
	"github.com/tunebridge/console/internal/database"
	"github.com/tunebridge/console/internal/handlers"
	"github.com/tunebridge/console/internal/middleware"
	"github.com/tunebridge/console/internal/repository"
	"github.com/tunebridge/console/internal/services"
	"github.com/tunebridge/console/internal/storage"
	"github.com/tunebridge/console/internal/workflow"
	"github.com/tunebridge/console/pkg/utils"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	zapLogger, err := initLogger(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer zapLogger.Sync()

	db, err := database.Connect(&cfg.Database, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to database", zap.Error(err))
	}
	defer database.Close(db)

	if err := database.Migrate(db, zapLogger); err != nil {
		zapLogger.Fatal("Failed to run migrations", zap.Error(err))
	}

	redisClient, err := database.ConnectRedis(&cfg.Redis, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to Redis", zap.Error(err))
	}
	defer database.CloseRedis(redisClient)

	minioStorage, err := storage.NewMinIOStorage(&cfg.MinIO, cfg.Export.URLExpiry, zapLogger)
	if err != nil {
		zapLogger.Fatal("Failed to connect to MinIO", zap.Error(err))
	}

	jwtManager := utils.NewJWTManager(cfg.JWT.Secret, cfg.JWT.Issuer)
	sessionStore := database.NewSessionStore(redisClient)
	backendClient := backend.NewClient(cfg.Backend, zapLogger)
	registry := workflow.DefaultRegistry()

	actionLogRepo := repository.NewActionLogRepository(db)
	bulkRunRepo := repository.NewBulkRunRepository(db)

	actionLogService := services.NewActionLogService(actionLogRepo, zapLogger)
	workflowService := services.NewWorkflowService(registry, backendClient, sessionStore, cfg.Query.CacheTTL, actionLogService, zapLogger)
	bulkService := services.NewBulkService(registry, workflowService, bulkRunRepo, sessionStore, cfg.Bulk.ProgressTTL, cfg.Bulk.MaxItems, zapLogger)
	exportService := services.NewExportService(backendClient, minioStorage, cfg.Export.ChunkSize, zapLogger)
	mediaService := services.NewMediaService(minioStorage, cfg.Media.MaxSize, cfg.Media.Extensions, zapLogger)

	retention := services.NewRetentionMonitor(actionLogService, cfg.Audit.RetentionDays, cfg.Audit.PruneInterval, zapLogger)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	retention.Start(ctx)
	defer retention.Stop()

	validate := validator.New()

	healthHandler := handlers.NewHealthHandler(map[string]handlers.Pinger{
		"database": func(context.Context) error { return database.Ping(db) },
		"redis":    sessionStore.Ping,
		"storage":  minioStorage.Ping,
		"backend":  backendClient.Ping,
	})
	authHandler := handlers.NewAuthHandler(jwtManager, sessionStore)
	workflowHandler := handlers.NewWorkflowHandler(workflowService)
	entityHandler := handlers.NewEntityHandler(workflowService, validate, cfg.Query.DefaultLimit, cfg.Query.MaxLimit)
	bulkHandler := handlers.NewBulkHandler(bulkService, validate)
	exportHandler := handlers.NewExportHandler(exportService)
	mediaHandler := handlers.NewMediaHandler(mediaService)
	actionLogHandler := handlers.NewActionLogHandler(actionLogService)
	searchSocket := handlers.NewSearchSocket(workflowService, cfg.Query.Debounce, cfg.Query.DefaultLimit, cfg.Query.MaxLimit, zapLogger)

	authMiddleware := middleware.NewAuthMiddleware(jwtManager, sessionStore)

	app := fiber.New(fiber.Config{
		AppName:      "Tunebridge Console Gateway",
		ErrorHandler: customErrorHandler,
		BodyLimit:    int(cfg.Media.MaxSize) + 1<<20,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	app.Use(cors.New(cors.Config{
		AllowOrigins:     strings.Join(cfg.Server.AllowOrigins, ","),
		AllowMethods:     "GET,POST,PUT,DELETE,PATCH,OPTIONS",
		AllowHeaders:     "Origin,Content-Type,Accept,Authorization",
		AllowCredentials: true,
	}))

	registerRoutes(app, routes{
		auth:      authMiddleware,
		logs:      actionLogService,
		logger:    zapLogger,
		health:    healthHandler,
		authH:     authHandler,
		workflows: workflowHandler,
		entities:  entityHandler,
		bulk:      bulkHandler,
		exports:   exportHandler,
		media:     mediaHandler,
		actionLog: actionLogHandler,
		search:    searchSocket,
	})

	go func() {
		addr := fmt.Sprintf("%s:%s", cfg.Server.Host, cfg.Server.Port)
		zapLogger.Info("Server starting", zap.String("addr", addr))
		if err := app.Listen(addr); err != nil {
			zapLogger.Fatal("Failed to start server", zap.Error(err))
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	zapLogger.Info("Shutting down server...")
	if err := app.ShutdownWithTimeout(30 * time.Second); err != nil {
		zapLogger.Error("Error during shutdown", zap.Error(err))
	}
	// Bulk runs already started keep going until every item is dispatched.
	bulkService.Wait()
	zapLogger.Info("Server stopped")
}

type routes struct {
	auth      *middleware.AuthMiddleware
	logs      services.ActionLogService
	logger    *zap.Logger
	health    *handlers.HealthHandler
	authH     *handlers.AuthHandler
	workflows *handlers.WorkflowHandler
	entities  *handlers.EntityHandler
	bulk      *handlers.BulkHandler
	exports   *handlers.ExportHandler
	media     *handlers.MediaHandler
	actionLog *handlers.ActionLogHandler
	search    *handlers.SearchSocket
}

func registerRoutes(app *fiber.App, r routes) {
	api := app.Group("/api")
	v1 := api.Group("/v1")

	v1.Get("/health", r.health.Health)
	v1.Get("/ready", r.health.Ready)

	authn := r.auth.Authenticate()
	// Workflow actions are audited by the workflow service; this covers
	// the other mutations.
	audit := middleware.ActionLogger(middleware.ActionLoggerConfig{
		Enabled:     true,
		SkipMethods: []string{fiber.MethodGet, fiber.MethodHead, fiber.MethodOptions},
		LogService:  r.logs,
		Logger:      r.logger,
	})

	auth := v1.Group("/auth", authn)
	auth.Post("/logout", audit, r.authH.Logout)
	auth.Get("/me", r.authH.Me)

	workflows := v1.Group("/workflows", authn)
	workflows.Get("/:entity", r.workflows.GetTable)
	workflows.Get("/:entity/graph", r.workflows.GetGraph)

	entities := v1.Group("/entities", authn)
	entities.Get("/:entity", r.entities.List)
	entities.Get("/:entity/:id", r.entities.Get)
	entities.Get("/:entity/:id/actions", r.entities.GetActions)
	entities.Post("/:entity/:id/actions/:action", r.entities.Execute)

	bulk := v1.Group("/bulk-runs", authn)
	bulk.Post("/", r.auth.RequirePermission("bulk:run"), r.bulk.Start)
	bulk.Get("/", r.bulk.List)
	bulk.Get("/:id", r.bulk.Get)

	exports := v1.Group("/exports", authn, r.auth.RequirePermission("exports:run"))
	exports.Get("/releases/chunks", r.exports.ListChunks)
	exports.Post("/releases/chunks/:page", audit, r.exports.RenderChunk)

	v1.Post("/media", authn, r.auth.RequirePermission("media:upload"), audit, r.media.Upload)

	logs := v1.Group("/action-logs", authn, r.auth.RequirePermission("action-logs:view"))
	logs.Get("/", r.actionLog.ListActionLogs)
	logs.Get("/stats", r.actionLog.GetStats)
	logs.Get("/filter-options", r.actionLog.GetFilterOptions)
	logs.Get("/entity/:entity/:id", r.actionLog.GetEntityHistory)
	logs.Delete("/cleanup", r.auth.RequirePermission("action-logs:manage"), audit, r.actionLog.CleanupOldLogs)
	logs.Get("/:id", r.actionLog.GetActionLog)

	app.Get("/ws/search/:entity", authn, r.search.Upgrade, r.search.Handler())
}

func initLogger(cfg config.LogConfig) (*zap.Logger, error) {
	var zapCfg zap.Config

	if cfg.Format == "json" {
		zapCfg = zap.NewProductionConfig()
	} else {
		zapCfg = zap.NewDevelopmentConfig()
	}

	switch cfg.Level {
	case "debug":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
	case "warn":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)
	case "error":
		zapCfg.Level = zap.NewAtomicLevelAt(zap.ErrorLevel)
	default:
		zapCfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	}

	return zapCfg.Build()
}

func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"success": false,
		"error":   message,
	})
}
