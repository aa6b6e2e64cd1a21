// Package api provides the HTTP API server and handlers for PageTune.
package api

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/pagetune/pagetune-server/internal/search"
	"github.com/pagetune/pagetune-server/internal/sse"
	"github.com/pagetune/pagetune-server/internal/validation"
)

// Pinger reports whether the database is reachable.
type Pinger interface {
	Ping() error
}

// Options configures optional server behavior.
type Options struct {
	// CORSOrigins lists allowed browser origins. Empty allows any origin.
	CORSOrigins []string
	// SessionOpenRate caps session opens per client per minute.
	SessionOpenRate int
	// DB and Index feed the health check. Both are optional.
	DB    Pinger
	Index *search.SearchIndex
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	db         Pinger
	index      *search.SearchIndex
	sseManager *sse.Manager
	sseHandler *sse.Handler
	router     *chi.Mux
	api        huma.API
	validator  *validation.Validator
	logger     *slog.Logger

	sessionLimiter *RateLimiter
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if opts.SessionOpenRate <= 0 {
		opts.SessionOpenRate = defaultSessionOpenRate
	}

	router := chi.NewRouter()

	s := &Server{
		services:       services,
		db:             opts.DB,
		index:          opts.Index,
		sseManager:     sseManager,
		router:         router,
		validator:      validation.New(),
		logger:         logger,
		sessionLimiter: NewRateLimiter(opts.SessionOpenRate, time.Minute, opts.SessionOpenRate),
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, logger)
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig("PageTune API", "1.0.0")
	humaConfig.Info.Description = "Chapter-synchronized background music for e-book reading sessions."
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)
	s.api = humachi.New(router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close releases background resources held by the server.
func (s *Server) Close() {
	s.sessionLimiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(requestLogger(s.logger))
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Content-Type", "Last-Event-ID"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerDocumentRoutes()
	s.registerSessionRoutes()

	// SSE bypasses huma: the response is a long-lived stream, not a body.
	s.router.Get("/api/v1/sessions/{id}/events", s.handleSessionEvents)
	if s.sseHandler != nil {
		s.router.Get("/api/v1/events", s.sseHandler.ServeHTTP)
	}
}
