// Package api exposes feedback rendering and validation over HTTP.
package api

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"studyfeedback/app"
	"studyfeedback/domain/core"
	"studyfeedback/internal"
	"studyfeedback/internal/feedback/render"
	"studyfeedback/internal/feedback/validate"
	"studyfeedback/ports"
)

// maxBodyBytes bounds request bodies; a study export fits comfortably
const maxBodyBytes = 8 << 20

// FeedbackService is the stored-feedback surface the handlers need
type FeedbackService interface {
	RenderForResult(ctx context.Context, resultID core.ResultID) (*app.RenderedFeedback, error)
	RenderStudy(ctx context.Context, studyID core.StudyID) ([]app.RenderedFeedback, error)
	SaveTemplate(ctx context.Context, studyID core.StudyID, body string) (*ports.FeedbackTemplate, validate.Report, error)
}

// App represents the HTTP application
type App struct {
	router   *chi.Mux
	service  FeedbackService
	renderer *render.Renderer
	validate *validator.Validate
	logger   *internal.Logger
}

// NewApp creates the HTTP application
func NewApp(service FeedbackService, renderer *render.Renderer, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.NewNopLogger()
	}
	if renderer == nil {
		renderer = render.New(logger)
	}
	a := &App{
		router:   chi.NewRouter(),
		service:  service,
		renderer: renderer,
		validate: validator.New(),
		logger:   logger.Named("api"),
	}
	a.setupMiddleware()
	a.setupRoutes()
	return a
}

// setupMiddleware configures HTTP middleware
func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

// setupRoutes configures the application routes
func (a *App) setupRoutes() {
	a.router.Get("/healthz", a.handleHealth)

	// Stateless engine endpoints
	a.router.Post("/api/feedback/render", a.handleRender)
	a.router.Post("/api/feedback/validate", a.handleValidate)
	a.router.Post("/api/feedback/preview", a.handlePreview)

	// Stored studies and results
	a.router.Get("/api/results/{id}/feedback", a.handleResultFeedback)
	a.router.Put("/api/studies/{id}/template", a.handleSaveTemplate)
	a.router.Get("/api/studies/{id}/feedback", a.handleStudyFeedback)
}

// ServeHTTP makes App an http.Handler
func (a *App) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	a.router.ServeHTTP(w, r)
}
