package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/yegors/inspect-ocr/internal/config"
	"github.com/yegors/inspect-ocr/internal/ocr"
	"github.com/yegors/inspect-ocr/internal/review"
	"github.com/yegors/inspect-ocr/internal/storage"
	"github.com/yegors/inspect-ocr/pkg/logger"
)

// Router is the API router
type Router struct {
	handler    *Handler
	middleware *Middleware
	config     config.ServerConfig
	logger     *logger.Logger
}

// NewRouter creates a new API router
func NewRouter(extractor ocr.Extractor, drafts *review.Manager, store storage.Store, cfg config.ServerConfig, logger *logger.Logger) *Router {
	return &Router{
		handler:    NewHandler(extractor, drafts, store, int64(cfg.MaxUploadMB)<<20, logger),
		middleware: NewMiddleware(logger),
		config:     cfg,
		logger:     logger.Named("api-router"),
	}
}

// Routes returns the API routes
func (r *Router) Routes() http.Handler {
	router := chi.NewRouter()

	// Middleware
	router.Use(r.middleware.RequestID)
	router.Use(r.middleware.Logger)
	router.Use(r.middleware.Recoverer)
	router.Use(r.middleware.CORS(r.config.CORSAllowedOrigins))

	router.Route("/api/v1", func(router chi.Router) {
		// Health check
		router.Get("/health", r.handler.GetHealth)

		// One-shot extraction
		router.Post("/extractions", r.handler.CreateExtraction)

		// Registered records
		router.Get("/records", r.handler.ListRecords)
		router.Post("/records", r.handler.CreateRecord)
		router.Get("/records/{id}", r.handler.GetRecord)

		// Draft review
		router.Route("/drafts/{session}", func(router chi.Router) {
			router.Get("/", r.handler.GetDraft)
			router.Put("/", r.handler.UpdateDraft)
			router.Delete("/", r.handler.DeleteDraft)
			router.Post("/extract", r.handler.ExtractDraft)
			router.Post("/commit", r.handler.CommitDraft)
		})
	})

	return router
}
