// Package server implements the Invoicedeck HTTP server and its route table.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/invoicedeck/invoicedeck/internal/auth"
	"github.com/invoicedeck/invoicedeck/internal/blob"
	"github.com/invoicedeck/invoicedeck/internal/config"
	"github.com/invoicedeck/invoicedeck/internal/handlers"
	"github.com/invoicedeck/invoicedeck/internal/metadata"
	"github.com/invoicedeck/invoicedeck/internal/project"
)

// Server is the Invoicedeck HTTP server.
type Server struct {
	cfg        *config.Config
	router     chi.Router
	api        huma.API
	meta       metadata.Store
	blobs      blob.Store
	log        *slog.Logger
	httpServer *http.Server
}

// HealthBody is the JSON body returned by the health check endpoint.
type HealthBody struct {
	Status string `json:"status" example:"ok" doc:"Health status"`
}

// HealthOutput is the Huma output struct for the health check endpoint.
type HealthOutput struct {
	Body HealthBody
}

// Option is a functional option for configuring the Server.
type Option func(*Server)

// WithLogger sets the server's logger.
func WithLogger(log *slog.Logger) Option {
	return func(s *Server) { s.log = log }
}

// New creates a Server wiring the coordinator and handlers over the given
// stores and registers all routes on a Chi router with a Huma API for the
// documented endpoints.
func New(cfg *config.Config, meta metadata.Store, blobs blob.Store, opts ...Option) *Server {
	router := chi.NewMux()

	humaConfig := huma.DefaultConfig("Invoicedeck API", "1.0.0")
	humaConfig.DocsPath = "/docs"
	humaConfig.OpenAPIPath = "/openapi"
	api := humachi.New(router, humaConfig)

	s := &Server{
		cfg:    cfg,
		router: router,
		api:    api,
		meta:   meta,
		blobs:  blobs,
		log:    slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}

	coord := project.NewCoordinator(meta, blobs, s.log)
	ph := handlers.NewProjectHandler(coord, meta, cfg.Server.MaxUploadBytes, s.log)
	ch := handlers.NewClientHandler(meta)
	ih := handlers.NewImageHandler(blobs)
	s.registerRoutes(ph, ch, ih)
	return s
}

// ListenAndServe starts the HTTP server on the given address.
// Middleware chain: metricsMiddleware -> commonHeaders -> authMiddleware -> router.
func (s *Server) ListenAndServe(addr string) error {
	s.httpServer = &http.Server{
		Addr:    addr,
		Handler: s.Handler(),
	}
	return s.httpServer.ListenAndServe()
}

// Handler returns the fully wrapped HTTP handler, exposed for tests.
func (s *Server) Handler() http.Handler {
	var handler http.Handler = s.router
	handler = auth.Middleware(s.cfg.Auth.AccessToken)(handler)
	handler = commonHeaders(handler)
	handler = metricsMiddleware(handler)
	return handler
}

// Shutdown gracefully shuts down the HTTP server, waiting for in-flight
// requests to complete within the given context deadline.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer == nil {
		return nil
	}
	return s.httpServer.Shutdown(ctx)
}

// registerRoutes configures all routes on the Chi router. The health route
// goes through Huma for auto-generated OpenAPI documentation; everything else
// is a plain chi route.
func (s *Server) registerRoutes(ph *handlers.ProjectHandler, ch *handlers.ClientHandler, ih *handlers.ImageHandler) {
	huma.Register(s.api, huma.Operation{
		OperationID: "get-health",
		Method:      http.MethodGet,
		Path:        "/api/health",
		Summary:     "Health check",
		Description: "Returns the health status of the Invoicedeck server and its stores.",
		Tags:        []string{"System"},
	}, func(ctx context.Context, input *struct{}) (*HealthOutput, error) {
		if err := s.meta.Ping(ctx); err != nil {
			return nil, huma.Error503ServiceUnavailable("metadata store unreachable")
		}
		return &HealthOutput{Body: HealthBody{Status: "ok"}}, nil
	})

	s.router.Handle("/metrics", promhttp.Handler())

	s.router.Post("/api/create/project", ph.CreateProject)
	s.router.Post("/api/update/project", ph.UpdateProject)
	s.router.Post("/api/delete/project", ph.DeleteProject)
	s.router.Get("/api/projects", ph.ListProjects)
	s.router.Get("/api/image/*", ih.GetImage)

	s.router.Get("/api/clients", ch.ListClients)
	s.router.Post("/api/new/client", ch.CreateClient)
	s.router.Delete("/api/client/{id}", ch.DeleteClient)
	s.router.Get("/api/client-invoices/{clientId}", ch.ListInvoices)
	s.router.Get("/api/invoice-details", ch.InvoiceDetails)
	s.router.Post("/api/new/invoice", ch.CreateInvoice)
	s.router.Post("/api/update/invoice-status", ch.UpdateInvoiceStatus)
	s.router.Delete("/api/invoice", ch.DeleteInvoice)
}
