// Package web provides the read-only ops HTTP API over the manifest and
// the data map index.
package web

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/quantmill/fexingest/internal/config"
	"github.com/quantmill/fexingest/internal/store"
	"github.com/quantmill/fexingest/internal/web/middleware"
)

// Server is the ops HTTP server.
type Server struct {
	store  *store.Store
	router *chi.Mux
	server *http.Server
}

// NewServer creates a server over the given store.
func NewServer(st *store.Store, cfg *config.Config) *Server {
	s := &Server{
		store:  st,
		router: chi.NewRouter(),
	}

	s.router.Use(chimw.RequestID)
	s.router.Use(chimw.RealIP)
	s.router.Use(middleware.Logger)
	s.router.Use(chimw.Recoverer)
	s.router.Use(chimw.Timeout(30 * time.Second))

	s.setupRoutes()

	s.server = &http.Server{
		Addr:         cfg.Server.Addr(),
		Handler:      s.router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

func (s *Server) setupRoutes() {
	s.router.Get("/healthz", s.handleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Get("/manifest", s.handleManifestByStatus)
		r.Get("/manifest/{hash}", s.handleManifestByHash)
		r.Get("/index/{entity}", s.handleIndexByEntity)
		r.Get("/index/{entity}/{date}", s.handleIndexLookup)
	})
}

// Start runs the server until Shutdown is called.
func (s *Server) Start() error {
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.server.Shutdown(ctx)
}
