// Package server provides the HTTP API over the newsboat cache.
package server

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"nbserver/internal/database"
	"nbserver/internal/enrich"
)

// Server is the main HTTP server.
type Server struct {
	store    database.Store
	pipeline *enrich.Pipeline
	dearrow  *enrich.DeArrowClient
	log      *slog.Logger
	httpSrv  *http.Server
}

// New creates a server over the given store. dearrow may be nil to
// disable branding lookups entirely.
func New(store database.Store, dearrow *enrich.DeArrowClient, log *slog.Logger) *Server {
	s := &Server{
		store:    store,
		pipeline: enrich.New(dearrow, log),
		dearrow:  dearrow,
		log:      log,
	}
	s.httpSrv = &http.Server{Handler: s.routes()}
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api", func(r chi.Router) {
		// The browser frontend is served from a different origin.
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{"*"},
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodDelete, http.MethodOptions},
			AllowedHeaders: []string{"Content-Type"},
		}))

		r.Get("/items", s.handleListItems)
		r.Get("/items/unqualified", s.handleListUnqualified)
		r.Post("/items/batch-delete", s.handleBatchDelete)
		r.Get("/items/{itemID}", s.handleGetItem)
		r.Delete("/items/{itemID}", s.handleDeleteItem)
		r.Post("/items/{itemID}", s.handleToggleUnread)
		r.Post("/items/{itemID}/starred", s.handleStar)
		r.Delete("/items/{itemID}/starred", s.handleUnstar)
		r.Post("/dearrow/batch", s.handleDearrowBatch)
	})

	return r
}

// Handler exposes the router, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.httpSrv.Handler
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start(addr string) error {
	s.httpSrv.Addr = addr
	s.log.Info("server starting", "addr", addr)
	err := s.httpSrv.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpSrv.Shutdown(ctx)
}
