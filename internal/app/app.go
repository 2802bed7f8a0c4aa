package app

import (
	"context"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"github.com/inkmuse/atelier/internal/config"
	"github.com/inkmuse/atelier/internal/database"
	"github.com/inkmuse/atelier/internal/handlers"
	"github.com/inkmuse/atelier/internal/middleware"
	"github.com/inkmuse/atelier/internal/services"
	"github.com/inkmuse/atelier/internal/validation"
)

type App struct {
	config   *config.Config
	logger   *logrus.Logger
	db       *database.Database
	services *services.Services
	handlers *handlers.Handlers
	router   *gin.Engine
}

func New(cfg *config.Config) (*App, error) {
	app := &App{
		config: cfg,
		logger: setupLogger(cfg),
	}

	// Initialize database connections
	db, err := database.New(cfg, app.logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %w", err)
	}
	app.db = db

	if err := db.Migrate(context.Background()); err != nil {
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}

	// Initialize services
	services, err := services.New(cfg, app.logger, db)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize services: %w", err)
	}
	app.services = services

	// Initialize handlers
	app.handlers = handlers.New(app.logger, services)

	// Setup router
	if err := app.setupRouter(); err != nil {
		return nil, err
	}

	return app, nil
}

func (a *App) Router() *gin.Engine {
	return a.router
}

func (a *App) Shutdown(ctx context.Context) error {
	a.logger.Info("Shutting down application...")

	if err := a.services.EventBus.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing event bus")
	}

	if err := a.db.Close(); err != nil {
		a.logger.WithError(err).Error("Error closing database connections")
		return err
	}

	return nil
}

func setupLogger(cfg *config.Config) *logrus.Logger {
	logger := logrus.New()

	level, err := logrus.ParseLevel(cfg.Logging.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	logger.SetLevel(level)

	if cfg.Logging.Format == "json" {
		logger.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logger.SetFormatter(&logrus.TextFormatter{
			FullTimestamp: true,
		})
	}

	return logger
}

func (a *App) setupRouter() error {
	if a.config.Server.Mode == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	validator, err := validation.NewSchemaValidator()
	if err != nil {
		return fmt.Errorf("failed to load request schemas: %w", err)
	}
	requestValidation := middleware.NewValidationMiddleware(validator)

	// Warm-redis response cache for the read-heavy snapshot routes
	responseCache := middleware.ResponseCache(a.db.Redis.Warm, time.Minute, a.logger)

	router := gin.New()

	// Global middleware
	router.Use(middleware.Logger(a.logger))
	router.Use(middleware.Recovery(a.logger))
	router.Use(middleware.CORS(a.config))
	router.Use(middleware.Security())
	router.Use(middleware.CompressionMiddleware())

	// Health check endpoint (no auth required)
	router.GET("/health", a.handlers.Health.Check)

	// Prometheus metrics endpoint (no auth required)
	router.GET("/metrics", gin.WrapH(promhttp.Handler()))

	// API routes
	api := router.Group("/api/v1")
	{
		api.Use(middleware.Auth(a.services.Auth, a.logger))
		api.Use(middleware.RateLimit(a.services.RateLimiter, a.config, a.logger))
		api.Use(requestValidation.ValidateQueryParams())
		api.Use(middleware.CacheInvalidation(a.db.Redis.Warm, a.logger))

		// Generation event routes
		events := api.Group("/events")
		{
			events.POST("", requestValidation.ValidateGenerationEvent(), a.handlers.Event.Record)
			events.GET("/:eventId", a.handlers.Event.Get)
		}

		// Feedback routes
		feedback := api.Group("/feedback")
		{
			feedback.POST("", requestValidation.ValidateFeedback(), a.handlers.Feedback.Submit)
			feedback.POST("/implicit", a.handlers.Feedback.SubmitImplicit)
			feedback.POST("/batch", requestValidation.ValidateFeedbackBatch(), a.handlers.Feedback.SubmitBatch)
		}

		// Preference routes
		api.GET("/preferences/global", responseCache, a.handlers.Preference.GetGlobal)
		users := api.Group("/users")
		{
			users.GET("/:userId/preferences", responseCache, a.handlers.Preference.GetUser)
			users.GET("/:userId/preferences/tags/:tag", responseCache, a.handlers.Preference.GetTag)
			users.PUT("/:userId/preferences/tags/:tag", a.handlers.Preference.SetTag)
			users.GET("/:userId/bias", a.handlers.Recommendation.Bias)
		}

		// Recommendation routes
		api.GET("/recommendations/:userId", responseCache, a.handlers.Recommendation.Get)

		// Knowledge object routes
		api.GET("/knowledge/objects", a.handlers.Knowledge.List)

		// Admin routes (additional auth/role checking would be added in production)
		admin := api.Group("/admin")
		{
			admin.GET("/metrics/learning", a.handlers.Admin.LearningMetrics)
			admin.POST("/preferences/global/refresh", a.handlers.Admin.RefreshGlobal)
			admin.POST("/preferences/:userId/decay", a.handlers.Admin.DecayUser)
			admin.POST("/sweeps/deprecation", a.handlers.Admin.DeprecationSweep)
			admin.POST("/sweeps/retention", a.handlers.Admin.RetentionSweep)
		}
	}

	a.router = router
	return nil
}
