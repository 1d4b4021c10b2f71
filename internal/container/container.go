package container

import (
	"context"
	"fmt"

	"studyfeedback/adapters/postgres"
	"studyfeedback/app"
	"studyfeedback/internal"
	"studyfeedback/internal/config"
	"studyfeedback/internal/feedback/render"
	"studyfeedback/internal/notify"
	"studyfeedback/ports"

	"github.com/jmoiron/sqlx"
)

// Container holds all application dependencies and manages their lifecycle
type Container struct {
	Config *config.Config
	Logger *internal.Logger

	// Infrastructure
	DB *sqlx.DB

	// Repositories (data access layer)
	TemplateRepo ports.TemplateRepository
	ResultRepo   ports.ResultRepository

	// Feedback components
	Renderer        *render.Renderer
	NotifyCache     *notify.Cache
	Messages        *notify.Messages
	FeedbackService *app.FeedbackService
}

// New creates a new dependency injection container
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if logger == nil {
		logger = internal.NewNopLogger()
	}

	cache, err := notify.NewCache(cfg.Notify.CacheSize, cfg.Notify.TTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create notification cache: %w", err)
	}

	return &Container{
		Config:      cfg,
		Logger:      logger,
		Renderer:    render.New(logger.Named("render")),
		NotifyCache: cache,
		Messages:    notify.NewMessages(cache, logger.Named("notify")),
	}, nil
}

// InitWithDatabase initializes components that require database access
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return fmt.Errorf("database connection cannot be nil")
	}
	if err := db.PingContext(ctx); err != nil {
		return fmt.Errorf("database connection test failed: %w", err)
	}
	c.DB = db

	c.TemplateRepo = postgres.NewTemplateRepository(db)
	c.ResultRepo = postgres.NewResultRepository(db)
	c.FeedbackService = app.NewFeedbackService(
		c.TemplateRepo,
		c.ResultRepo,
		c.Renderer,
		c.Messages,
		c.Config.Render.Concurrency,
		c.Logger,
	)

	c.Logger.Info("container initialized (driver=%s, render concurrency=%d)", db.DriverName(), c.Config.Render.Concurrency)
	return nil
}

// Shutdown gracefully shuts down all components
func (c *Container) Shutdown(ctx context.Context) error {
	c.NotifyCache.Purge()
	_ = c.Logger.Sync()
	if c.DB != nil {
		return c.DB.Close()
	}
	return nil
}
