package rest

import (
	"net/http"

	"literature-flow/application/services"
	"literature-flow/interfaces/http/rest/handlers"
	"literature-flow/interfaces/http/rest/middleware"
	pkgerrors "literature-flow/pkg/errors"
	"literature-flow/pkg/observability"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// RouterOptions toggles the optional surfaces of the router
type RouterOptions struct {
	EnableCORS    bool
	EnableMetrics bool
	Debug         bool
}

// Router creates and configures the HTTP router
type Router struct {
	sessions     *services.SessionRegistry
	metrics      *observability.Collector
	logger       *zap.Logger
	errorHandler *pkgerrors.ErrorHandler
	opts         RouterOptions
}

// NewRouter creates a new router instance
func NewRouter(
	sessions *services.SessionRegistry,
	metrics *observability.Collector,
	logger *zap.Logger,
	opts RouterOptions,
) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		sessions:     sessions,
		metrics:      metrics,
		logger:       logger,
		errorHandler: pkgerrors.NewErrorHandler(logger, opts.Debug),
		opts:         opts,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(rt.errorHandler.Middleware)
	router.Use(middleware.Logger(rt.logger.Named("http"), rt.metrics))

	if rt.opts.EnableCORS {
		router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{"http://localhost:3000", "https://*.literature-flow.app"},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-ID"},
			ExposedHeaders:   []string{"X-Request-ID"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	router.Get("/health", rt.healthCheck)
	if rt.opts.EnableMetrics && rt.metrics != nil {
		router.Handle("/metrics", promhttp.HandlerFor(rt.metrics.GetRegistry(), promhttp.HandlerOpts{}))
	}

	mapHandler := handlers.NewMapHandler(rt.sessions, rt.logger, rt.errorHandler)
	router.Route("/api/v1", func(r chi.Router) {
		r.Route("/projects/{projectID}/map", mapHandler.Routes)
	})

	return router
}

// healthCheck handles health check requests
func (rt *Router) healthCheck(w http.ResponseWriter, req *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(`{"status":"healthy"}`))
}
