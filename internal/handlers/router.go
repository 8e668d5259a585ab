package handlers

import (
	"context"
	"net/http"
	"time"

	"github.com/1282saa/paperone/internal/auth"
	appMiddleware "github.com/1282saa/paperone/internal/middleware"
	"github.com/1282saa/paperone/internal/observability"
	"github.com/1282saa/paperone/pkg/api"
	"github.com/1282saa/paperone/pkg/errors"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

// ReadinessCheck reports whether a dependency can serve requests.
type ReadinessCheck func(ctx context.Context) error

// RouterConfig carries everything the router mounts.
type RouterConfig struct {
	Version        string
	AllowedOrigins []string

	Subjects  *SubjectHandler
	Documents *DocumentHandler
	Uploads   *UploadHandler
	Tutor     *TutorHandler
	Auth      *auth.Middleware

	// Metrics and Tracer are optional.
	Metrics *observability.Collector
	Tracer  trace.Tracer
	Ready   []ReadinessCheck
}

// Router creates and configures the HTTP router
type Router struct {
	cfg          RouterConfig
	logger       *zap.Logger
	errorHandler *errors.ErrorHandler
}

// NewRouter creates a new router instance
func NewRouter(cfg RouterConfig, logger *zap.Logger, errorHandler *errors.ErrorHandler) *Router {
	if len(cfg.AllowedOrigins) == 0 {
		cfg.AllowedOrigins = []string{"*"}
	}
	return &Router{cfg: cfg, logger: logger, errorHandler: errorHandler}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(middleware.Recoverer)
	if rt.cfg.Tracer != nil {
		router.Use(appMiddleware.Tracing(rt.cfg.Tracer))
	}
	router.Use(appMiddleware.Logger(rt.logger))
	router.Use(appMiddleware.Metrics(rt.cfg.Metrics))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   rt.cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
		ExposedHeaders:   []string{"X-Request-ID", "X-Trace-ID"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.cfg.Metrics != nil {
		router.Handle("/metrics", rt.cfg.Metrics.Handler())
	}

	router.Route("/api/v1", func(r chi.Router) {
		r.Use(rt.cfg.Auth.Handler)

		r.Route("/subjects", func(r chi.Router) {
			subjects := rt.cfg.Subjects
			documents := rt.cfg.Documents

			r.Post("/", subjects.Create)
			r.Get("/", subjects.List)

			r.Post("/documents", documents.Create)
			r.Get("/documents/{document_id}", documents.Get)
			r.Patch("/documents/{document_id}", documents.Update)
			r.Delete("/documents/{document_id}", documents.Delete)
			r.Patch("/documents/{document_id}/review", documents.ToggleReview)
			r.Post("/documents/{document_id}/ai-correction", documents.Correct)
			r.Post("/documents/{document_id}/ai-correction-stream", documents.CorrectStream)
			r.Get("/reviews", documents.DueReviews)
			r.Post("/upload-image", rt.cfg.Uploads.UploadImage)

			r.Get("/{subject_id}", subjects.Get)
			r.Patch("/{subject_id}", subjects.Update)
			r.Delete("/{subject_id}", subjects.Delete)
			r.Get("/{subject_id}/documents", documents.ListBySubject)
		})

		r.Route("/ai", func(r chi.Router) {
			r.Post("/tutor", rt.cfg.Tutor.Chat)
			r.Get("/tutor/conversations", rt.cfg.Tutor.ListConversations)
			r.Get("/tutor/conversations/{conversation_id}", rt.cfg.Tutor.GetConversation)
			questionRoutes(r)
		})

		r.Route("/learning", LearningRoutes)
		r.Route("/calendar", CalendarRoutes)
		r.Route("/tasks", TaskRoutes)
		r.Route("/statistics", StatisticsRoutes)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	api.Success(w, http.StatusOK, map[string]string{
		"status":  "healthy",
		"version": rt.cfg.Version,
		"app":     "오늘 한 장",
	})
}

func (rt *Router) readinessCheck(w http.ResponseWriter, r *http.Request) {
	ctx, cancel := context.WithTimeout(r.Context(), 3*time.Second)
	defer cancel()

	for _, check := range rt.cfg.Ready {
		if err := check(ctx); err != nil {
			rt.logger.Warn("Readiness check failed", zap.Error(err))
			api.Success(w, http.StatusServiceUnavailable, map[string]string{"status": "not ready"})
			return
		}
	}
	api.Success(w, http.StatusOK, map[string]string{"status": "ready"})
}
