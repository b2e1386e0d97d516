package rest

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"graphsync/application/services"
	"graphsync/interfaces/http/rest/handlers"
	"graphsync/interfaces/http/rest/middleware"
	"graphsync/pkg/auth"
	pkgerrors "graphsync/pkg/errors"
	"graphsync/pkg/observability"
)

// Router creates and configures the HTTP router
type Router struct {
	registry   *services.Registry
	validator  *auth.JWTValidator
	metrics    *observability.Collector
	errors     *pkgerrors.ErrorHandler
	logger     *zap.Logger
	enableCORS bool
}

// NewRouter creates a new router instance
func NewRouter(
	registry *services.Registry,
	validator *auth.JWTValidator,
	metrics *observability.Collector,
	errorHandler *pkgerrors.ErrorHandler,
	logger *zap.Logger,
	enableCORS bool,
) *Router {
	return &Router{
		registry:   registry,
		validator:  validator,
		metrics:    metrics,
		errors:     errorHandler,
		logger:     logger,
		enableCORS: enableCORS,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	// Global middleware
	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errors.Middleware)
	router.Use(middleware.Logger(rt.logger))
	router.Use(middleware.Metrics(rt.metrics))

	if rt.enableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	router.Get("/ready", rt.readinessCheck)
	if rt.metrics != nil {
		router.Handle("/metrics", rt.metrics.Handler())
	}

	router.Route("/api/v2", func(r chi.Router) {
		r.Use(middleware.Authenticate(rt.validator, rt.errors, rt.logger))

		h := handlers.NewKnowledgeHandler(rt.registry, rt.errors, rt.logger)

		r.Route("/repositories", func(r chi.Router) {
			r.Post("/", h.CreateRepository)
			r.Route("/{repositoryID}", func(r chi.Router) {
				r.Get("/", h.GetRepository)
				r.Delete("/", h.DeleteRepository)
				r.Get("/default-branch", h.GetDefaultBranch)
				r.Put("/branches/{branch}/staged", h.StageNode)
				r.Get("/divergence", h.GetDivergence)
				r.Post("/checkout", h.Checkout)
				r.Post("/merge", h.Merge)
			})
		})

		r.Post("/commit", h.CommitAll)
		r.Put("/workspace", h.SetWorkspace)
		r.Put("/views/{key}", h.PutView)
		r.Delete("/views/{key}", h.DeleteView)
		r.Post("/contacts", h.AddContact)
		r.Get("/contacts", h.ListContacts)
		r.Post("/sync/publish", h.Publish)
		r.Post("/sync/pull", h.Pull)
		r.Get("/knowledge", h.GetKnowledge)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"healthy"}`))
}

func (rt *Router) readinessCheck(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ready"}`))
}
