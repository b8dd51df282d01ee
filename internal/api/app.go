// Package api exposes the causal engine over HTTP. Every query endpoint
// answers 200 with a tagged result body; the status field inside the body,
// not the HTTP code, reports whether the query succeeded.
package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"gocause/internal"
	"gocause/internal/service"
)

// App wires the HTTP surface around a service.
type App struct {
	router *chi.Mux
	svc    *service.Service
	log    *internal.Logger
}

// NewApp builds the router with middleware and routes configured.
func NewApp(svc *service.Service, logger *internal.Logger) *App {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	app := &App{
		router: chi.NewRouter(),
		svc:    svc,
		log:    logger,
	}
	app.setupMiddleware()
	app.setupRoutes()
	return app
}

func (a *App) setupMiddleware() {
	a.router.Use(middleware.RequestID)
	a.router.Use(middleware.Logger)
	a.router.Use(middleware.Recoverer)
	a.router.Use(middleware.Compress(5))
}

func (a *App) setupRoutes() {
	a.router.Get("/health", a.handleHealth)

	a.router.Route("/api/models", func(r chi.Router) {
		r.Get("/", a.handleListModels)
		r.Post("/", a.handleBuild)
		r.Delete("/{name}", a.handleDeleteModel)
		r.Post("/{name}/evaluate", a.handleEvaluate)
	})

	a.router.Route("/api/queries", func(r chi.Router) {
		r.Post("/intervention", a.handleIntervention)
		r.Post("/counterfactual", a.handleCounterfactual)
		r.Post("/arrow-strength", a.handleArrowStrength)
		r.Post("/intrinsic-influence", a.handleIntrinsicInfluence)
		r.Post("/anomaly-attribution", a.handleAnomalyAttribution)
		r.Post("/falsify", a.handleFalsify)
	})
}

// Router returns the configured handler for mounting or serving.
func (a *App) Router() http.Handler {
	return a.router
}

// Start serves the app on the given port.
func (a *App) Start(port string) error {
	a.log.Info("causal engine listening on :%s", port)
	return http.ListenAndServe(":"+port, a.router)
}
