package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"vaultrag/internal/domain"
	"vaultrag/internal/logger"
	"vaultrag/internal/port"
	"vaultrag/internal/usecase"
)

// Config holds server configuration.
type Config struct {
	Port           int
	Root           string // vault directory
	TopK           int
	Boost          domain.BoostConfig
	AllowAll       bool // allow all CORS origins (dev mode)
	RequestTimeout time.Duration
}

// Deps are the use cases the API exposes.
type Deps struct {
	Index     port.VectorIndex
	Retriever port.Retriever
	Indexer   *usecase.IndexUseCase
	Chat      *usecase.ChatUseCase
	Verify    *usecase.VerifyUseCase
	Model     string // embedding model name
}

// Server is the vault HTTP API.
type Server struct {
	cfg        Config
	deps       Deps
	router     chi.Router
	httpServer *http.Server
}

// New creates a server with all dependencies.
func New(cfg Config, deps Deps) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 2 * time.Minute
	}
	s := &Server{cfg: cfg, deps: deps}
	s.router = s.buildRouter()
	return s
}

// buildRouter creates and configures the chi router with all routes.
func (s *Server) buildRouter() chi.Router {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	corsOpts := cors.Options{
		AllowedOrigins:   []string{"http://localhost:*", "http://127.0.0.1:*"},
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type"},
		AllowCredentials: true,
		MaxAge:           300,
	}
	if s.cfg.AllowAll {
		corsOpts.AllowedOrigins = []string{"*"}
		corsOpts.AllowCredentials = false
	}
	r.Use(cors.Handler(corsOpts))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Timeout(s.cfg.RequestTimeout))
		r.Get("/status", s.handleStatus)
		r.Get("/documents", s.handleDocuments)
		r.Post("/search", s.handleSearch)
		r.Post("/context", s.handleContext)
		r.Post("/chat", s.handleChat)
		r.Post("/verify", s.handleVerify)
		r.Get("/sessions/{id}", s.handleGetSession)
		r.Delete("/sessions/{id}", s.handleDeleteSession)
	})

	// Rebuilds run as long as they need; a client disconnect cancels them.
	r.Post("/rebuild", s.handleRebuild)

	return r
}

// Handler returns the router.
func (s *Server) Handler() http.Handler { return s.router }

// Start begins listening on the configured port.
func (s *Server) Start() error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	s.httpServer = &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	logger.Info("vaultrag server listening on %s", addr)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.httpServer != nil {
		return s.httpServer.Shutdown(ctx)
	}
	return nil
}
