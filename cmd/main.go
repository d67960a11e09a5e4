package main

import (
	"drawing-service/internal/handler"
	"drawing-service/internal/middleware"
	"drawing-service/internal/model"
	"drawing-service/internal/repository"
	"drawing-service/internal/storage"
	"drawing-service/internal/tenant"
	"drawing-service/pkg/config"
	"drawing-service/pkg/database"
	"drawing-service/pkg/jwtutil"
	"drawing-service/pkg/logger"
	"drawing-service/pkg/mobiletoken"
	"drawing-service/prometheus"

	"github.com/labstack/echo/v4"
	echomiddleware "github.com/labstack/echo/v4/middleware"
	"go.uber.org/zap"
)

func main() {
	// Load configuration from .env file and environment variables
	cfg, err := config.Load()
	if err != nil {
		panic("Failed to load configuration: " + err.Error())
	}

	// Initialize logger with config
	if err := logger.InitLogger(&logger.LogConfig{
		Level:       cfg.Log.Level,
		Environment: cfg.Server.Env,
		ServiceName: "drawing-service",
	}); err != nil {
		panic("Failed to initialize logger: " + err.Error())
	}
	log := logger.GetLogger()
	log.Info("Starting drawing service...", cfg.LogFields()...)

	// Shared identity store
	db, err := database.Open(&cfg.DB)
	if err != nil {
		log.Fatal("Failed to initialize database", zap.Error(err))
	}
	if err := database.Migrate(db, &model.ActivationCode{}, &model.User{}, &model.Drawing{}); err != nil {
		log.Fatal("Failed to migrate shared store", zap.Error(err))
	}
	log.Info("Database connection established")

	// File storage backend
	files, err := storage.NewStore(cfg.Storage.Root)
	if err != nil {
		log.Fatal("Failed to initialize file store", zap.Error(err))
	}

	// Tenancy core: provisioning + connection routing
	provisioner := tenant.NewProvisioner(db, files)
	router := tenant.NewRouter(db, provisioner)

	// Repositories and token utilities
	drawings := repository.NewDrawingRepository(cfg.Storage.MaxSearchResults)
	accounts := repository.NewAccountRepository(db, provisioner)
	tokens := mobiletoken.NewCodec(cfg.Token.Secret, cfg.Token.TTL)
	jwt := jwtutil.New(&cfg.JWT)

	h := handler.New(cfg, router, drawings, accounts, files, tokens, jwt)

	// Initialize Echo framework
	e := echo.New()
	e.HideBanner = true

	// Apply global middleware - order matters
	e.Use(echomiddleware.Recover())
	e.Use(echomiddleware.CORS())
	e.Use(middleware.RequestIDMiddleware)
	e.Use(logger.Middleware())
	e.Use(prometheus.MetricsMiddleware())

	// Public routes - no authentication required
	e.GET("/health", handler.HealthCheck)
	e.GET("/metrics", handler.MetricsHandler)

	// Web authentication - issues JWT session tokens
	auth := e.Group("/auth")
	auth.POST("/login", h.Login)
	auth.POST("/register", h.Register)
	auth.GET("/username-exists", h.UsernameExists)

	// Mobile API - compact HMAC bearer tokens, verified per request
	mobile := e.Group("/api/mobile")
	mobile.POST("/register", h.MobileRegister)
	mobile.POST("/login", h.MobileLogin)
	mobile.POST("/verify", h.MobileVerify)
	mobile.POST("/upload", h.MobileUpload)
	mobile.GET("/pdf/:id", h.MobileServePDF)

	// Session API - requires a valid JWT
	api := e.Group("/api", middleware.SessionAuth(jwt))
	api.POST("/search", h.Search)
	api.POST("/search/fuzzy", h.SearchFuzzy)
	api.GET("/pdf/:id", h.ServePDF)
	api.GET("/statistics", h.Statistics)

	// Admin surface - drawing CRUD and activation code management
	admin := api.Group("/admin")
	admin.GET("/drawings", h.ListDrawings)
	admin.POST("/drawings", h.AddDrawing)
	admin.POST("/drawings/batch", h.AddDrawingsBatch)
	admin.PUT("/drawings/:id", h.UpdateDrawing)
	admin.POST("/drawings/upload", h.UploadDrawing)
	admin.PUT("/drawings/:id/upload", h.UpdateDrawingFile)
	admin.DELETE("/drawings/:id", h.DeleteDrawing)
	admin.DELETE("/drawings/batch", h.DeleteDrawingsBatch)
	admin.GET("/activation-codes", h.ListActivationCodes)
	admin.POST("/activation-codes", h.CreateActivationCode)

	port := cfg.Server.Port
	log.Info("Starting server", zap.String("port", port))
	if err := e.Start(":" + port); err != nil {
		log.Fatal("Failed to start server", zap.Error(err))
	}
}
