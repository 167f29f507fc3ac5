// Package server provides the HTTP API of the health assistant.
package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/hyperjump/healthrag/internal/config"
	"github.com/hyperjump/healthrag/internal/indexer"
	"github.com/hyperjump/healthrag/internal/keyword"
	"github.com/hyperjump/healthrag/internal/models"
)

// Answerer answers one question.
type Answerer interface {
	Answer(ctx context.Context, question string) (*models.QueryResult, error)
}

// Corpus exposes the loaded index for status and browsing. *indexer.Index implements it.
type Corpus interface {
	Stats(ctx context.Context) (*indexer.Stats, error)
	SearchDocuments(ctx context.Context, query string, limit int, opts *keyword.SearchOptions) ([]*models.ScoredDocument, error)
	Document(ctx context.Context, id string) (*models.Document, error)
}

// GenerationStatus reports the state of the guarded generative model.
type GenerationStatus interface {
	State() string
	Pending() int
}

// Server is the HTTP server for the assistant API.
type Server struct {
	answerer   Answerer
	corpus     Corpus
	generation GenerationStatus
	config     *config.ServerConfig
	limiter    *rate.Limiter
	logger     *zap.Logger
	server     *http.Server
}

// Option configures a Server.
type Option func(*Server)

// WithGenerationStatus adds the generation guard state to /api/v1/status.
func WithGenerationStatus(g GenerationStatus) Option {
	return func(s *Server) { s.generation = g }
}

// NewServer creates a server with the given dependencies.
func NewServer(answerer Answerer, corpus Corpus, cfg *config.ServerConfig, logger *zap.Logger, opts ...Option) *Server {
	s := &Server{
		answerer: answerer,
		corpus:   corpus,
		config:   cfg,
		logger:   logger,
	}
	if cfg.RateLimit > 0 {
		burst := cfg.RateBurst
		if burst <= 0 {
			burst = 1
		}
		s.limiter = rate.NewLimiter(rate.Limit(cfg.RateLimit), burst)
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Handler returns the routed HTTP handler.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
		AllowedHeaders: []string{"*"},
	}))

	// /query is bounded by the generation guard's timeout, which answers 504
	// itself; the request timeout only covers the browse routes.
	r.With(s.rateLimit).Post("/query", s.handleQuery)
	r.Group(func(r chi.Router) {
		if s.config.RequestTimeout > 0 {
			r.Use(middleware.Timeout(s.config.RequestTimeout))
		}
		r.Get("/health", s.handleHealth)
		r.Route("/api/v1", func(r chi.Router) {
			r.Get("/status", s.handleStatus)
			r.Get("/documents/search", s.handleDocumentSearch)
			r.Get("/documents/{id}", s.handleGetDocument)
		})
	})
	return r
}

// Start starts the HTTP server and blocks until it stops.
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.Host, s.config.Port)
	s.server = &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	s.logger.Info("Starting server", zap.String("addr", addr))
	return s.server.ListenAndServe()
}

// Stop gracefully shuts down the server.
func (s *Server) Stop(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.logger.Info("request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.Status()),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("request_id", middleware.GetReqID(r.Context())),
		)
	})
}

func (s *Server) rateLimit(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.limiter != nil && !s.limiter.Allow() {
			w.Header().Set("Retry-After", "1")
			s.respondError(w, http.StatusTooManyRequests, "too many requests, please retry shortly")
			return
		}
		next.ServeHTTP(w, r)
	})
}
