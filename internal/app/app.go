package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/jmoiron/sqlx"
	"github.com/redis/go-redis/v9"
	"github.com/templui/feedbackloop/internal/config"
	"github.com/templui/feedbackloop/internal/db"
	"github.com/templui/feedbackloop/internal/handler"
	"github.com/templui/feedbackloop/internal/markdown"
	"github.com/templui/feedbackloop/internal/middleware"
	"github.com/templui/feedbackloop/internal/model"
	"github.com/templui/feedbackloop/internal/repository"
	"github.com/templui/feedbackloop/internal/service"
	"github.com/templui/feedbackloop/internal/storage"
)

type App struct {
	Cfg            *config.Config
	DB             *sqlx.DB
	ProjectService *service.ProjectService
	IngestService  *service.IngestService
	Dispatcher     *service.Dispatcher
	Limiter        middleware.Limiter
	Storage        storage.Storage

	redis      *redis.Client
	memLimiter *middleware.RateLimiter
}

func New(ctx context.Context, cfg *config.Config) (*App, error) {
	// Initialize database
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	// Run database migrations
	err = db.RunMigrations(ctx, database.DB, cfg.DBDriver)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to run migrations: %v", err)
	}

	// Repositories
	organizationRepository := repository.NewOrganizationRepository(database)
	projectRepository := repository.NewProjectRepository(database)
	feedbackRepository := repository.NewFeedbackRepository(database)
	mediaRepository := repository.NewMediaRepository(database)

	// Storage
	mediaStorage, err := storage.New(ctx, cfg)
	if err != nil {
		_ = database.Close()
		return nil, fmt.Errorf("failed to initialize storage: %v", err)
	}

	// Notifications
	dispatcher, err := newDispatcher(cfg)
	if err != nil {
		_ = database.Close()
		return nil, err
	}

	// Services
	ingestCfg := ingestConfig(cfg)
	projectService := service.NewProjectService(projectRepository, organizationRepository)
	feedbackService := service.NewFeedbackService(feedbackRepository, ingestCfg.DefaultType)
	mediaService := service.NewMediaService(mediaRepository, mediaStorage, ingestCfg)
	ingestService := service.NewIngestService(projectService, feedbackService, mediaService, dispatcher, ingestCfg)

	a := &App{
		Cfg:            cfg,
		DB:             database,
		ProjectService: projectService,
		IngestService:  ingestService,
		Dispatcher:     dispatcher,
		Storage:        mediaStorage,
	}

	// Rate limiting: shared through Redis when configured, per process otherwise
	if cfg.RedisURL != "" {
		client, err := middleware.NewRedisClient(ctx, cfg.RedisURL)
		if err != nil {
			_ = database.Close()
			return nil, fmt.Errorf("failed to initialize rate limiter: %v", err)
		}
		a.redis = client
		a.Limiter = middleware.NewRedisLimiter(client, cfg.RateLimitRequests, cfg.RateLimitWindow)
		slog.Info("rate limiter using redis", "limit", cfg.RateLimitRequests, "window", cfg.RateLimitWindow)
	} else {
		a.memLimiter = middleware.NewRateLimiter(cfg.RateLimitRequests, cfg.RateLimitWindow)
		a.Limiter = a.memLimiter
	}

	return a, nil
}

// NewCLI opens only what operator commands need: the database and the
// project service.
func NewCLI(cfg *config.Config) (*App, error) {
	database, err := db.Init(cfg.DBDriver, cfg.DBConnection)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize database: %v", err)
	}

	return &App{
		Cfg: cfg,
		DB:  database,
		ProjectService: service.NewProjectService(
			repository.NewProjectRepository(database),
			repository.NewOrganizationRepository(database),
		),
	}, nil
}

func newDispatcher(cfg *config.Config) (*service.Dispatcher, error) {
	notifiers := []service.Notifier{
		service.NewEmailNotifier(cfg.ResendAPIKey, cfg.EmailFrom, cfg.AppName, cfg.EmailDevMode, markdown.NewParser()),
	}

	if cfg.NotifyWebhookURL != "" {
		webhook, err := service.NewWebhookNotifier(cfg.NotifyWebhookURL, cfg.NotifyWebhookSecret, &http.Client{Timeout: cfg.NotifyTimeout})
		if err != nil {
			return nil, fmt.Errorf("failed to initialize webhook notifier: %v", err)
		}
		notifiers = append(notifiers, webhook)
	}

	return service.NewDispatcher(cfg.NotifyTimeout, notifiers...), nil
}

// ingestConfig is the only place ingestion limits are read from config.
func ingestConfig(cfg *config.Config) service.IngestConfig {
	return service.IngestConfig{
		MaxFileSize:       cfg.MaxFileSize,
		MaxAttachments:    cfg.MaxAttachments,
		MaxJSONSize:       cfg.MaxJSONSize,
		UploadTimeout:     cfg.UploadTimeout,
		UploadConcurrency: cfg.UploadConcurrency,
		DefaultType:       model.FeedbackType(cfg.DefaultType),
	}
}

// HealthChecks lists the dependencies reported by /healthz. Storage is not
// critical: uploads are skipped when it is down, feedback is still accepted.
func (a *App) HealthChecks() []handler.HealthCheck {
	checks := []handler.HealthCheck{
		{Name: "database", Check: a.DB.PingContext, Critical: true},
	}
	if p, ok := a.Storage.(storage.Pinger); ok {
		checks = append(checks, handler.HealthCheck{Name: "storage", Check: p.Ping})
	}
	return checks
}

// Close stops accepting notifications, waits for in-flight ones, then
// releases connections.
func (a *App) Close() error {
	if a.Dispatcher != nil {
		a.Dispatcher.Close()
	}
	if a.memLimiter != nil {
		a.memLimiter.Close()
	}
	if a.redis != nil {
		err := a.redis.Close()
		if err != nil {
			slog.Error("failed to close redis", "error", err)
		}
	}
	if a.DB != nil {
		return a.DB.Close()
	}
	return nil
}
