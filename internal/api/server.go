// Package api exposes the HTTP interface for the generator service.
package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/sitedesc/llmstxt/internal/pipeline"
	"github.com/sitedesc/llmstxt/internal/robots"
	"github.com/sitedesc/llmstxt/internal/runstore"
)

// Generator runs one generation end to end.
type Generator interface {
	Run(ctx context.Context, input pipeline.Input) (pipeline.Output, error)
}

// AccessChecker evaluates robots.txt for the LLM crawler identities.
type AccessChecker interface {
	Check(ctx context.Context, target string) (robots.Report, error)
}

// Config controls the HTTP surface.
type Config struct {
	RequestTimeout time.Duration
	// APIKey, when set, is required on every request via X-API-Key.
	APIKey string
}

// Server wires HTTP handlers to the pipeline and run store.
type Server struct {
	router    chi.Router
	generator Generator
	checker   AccessChecker
	runs      *runstore.Store
	logger    *zap.Logger
}

// NewServer constructs a Server with middleware and routes.
func NewServer(generator Generator, checker AccessChecker, runs *runstore.Store, cfg Config, logger *zap.Logger) *Server {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = 60 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Server{
		generator: generator,
		checker:   checker,
		runs:      runs,
		logger:    logger,
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(s.loggingMiddleware)
	r.Use(s.recoverMiddleware)
	if cfg.APIKey != "" {
		r.Use(apiKeyMiddleware(cfg.APIKey))
	}

	r.Get("/healthz", s.healthz)
	r.Get("/readyz", s.readyz)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	r.Route("/v1", func(r chi.Router) {
		r.Get("/access-check", s.accessCheck)
		r.Route("/runs", func(r chi.Router) {
			r.Post("/", s.submitRun)
			r.Route("/{run_id}", func(r chi.Router) {
				r.Get("/status", s.runStatus)
				r.Get("/document", s.runDocument)
				r.Post("/cancel", s.cancelRun)
			})
		})
	})

	s.router = r
	return s
}

// Handler returns the router for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) readyz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

type runRequest struct {
	SitemapURL string   `json:"sitemap_url"`
	URLs       []string `json:"urls"`
}

// submitRun accepts a generation request and runs it asynchronously.
func (s *Server) submitRun(w http.ResponseWriter, r *http.Request) {
	var req runRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON")
		return
	}
	if req.SitemapURL == "" && len(req.URLs) == 0 {
		writeError(w, http.StatusBadRequest, "sitemap_url or urls required")
		return
	}
	if req.SitemapURL != "" && len(req.URLs) > 0 {
		writeError(w, http.StatusBadRequest, "sitemap_url and urls are mutually exclusive")
		return
	}

	trackID := uuid.NewString()
	runCtx, cancel := context.WithCancel(context.Background())
	s.runs.Begin(trackID, time.Now().UTC(), cancel)

	go func() {
		defer cancel()
		out, err := s.generator.Run(runCtx, pipeline.Input{
			SitemapURL: req.SitemapURL,
			URLs:       req.URLs,
		})
		finished := time.Now().UTC()
		if err != nil {
			s.logger.Error("run failed", zap.String("run_id", trackID), zap.Error(err))
			s.runs.Fail(trackID, finished, err)
			return
		}
		s.runs.Complete(trackID, finished, out.Summary, out.Document, out.ArtifactURI, runCtx.Err() != nil)
	}()

	writeJSON(w, http.StatusAccepted, map[string]string{"run_id": trackID})
}

func (s *Server) runStatus(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	run, err := s.runs.Get(runID)
	if err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, run)
}

func (s *Server) runDocument(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	document, err := s.runs.Document(runID)
	if err != nil {
		if errors.Is(err, runstore.ErrNotFound) {
			writeError(w, http.StatusNotFound, "run not found")
			return
		}
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	if _, err := w.Write([]byte(document)); err != nil {
		s.logger.Error("write document failed", zap.Error(err))
	}
}

func (s *Server) cancelRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "run_id")
	if err := s.runs.Cancel(runID); err != nil {
		writeError(w, http.StatusNotFound, "run not found")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"run_id": runID, "state": string(runstore.StateCanceled)})
}

func (s *Server) accessCheck(w http.ResponseWriter, r *http.Request) {
	target := r.URL.Query().Get("url")
	if target == "" {
		writeError(w, http.StatusBadRequest, "url query parameter required")
		return
	}
	report, err := s.checker.Check(r.Context(), target)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, report)
}

type requestIDKey struct{}

func requestIDMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		reqID := uuid.NewString()
		ctx := context.WithValue(r.Context(), requestIDKey{}, reqID)
		w.Header().Set("X-Request-ID", reqID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := &responseWriter{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(ww, r)
		s.logger.Info("request completed",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", ww.status),
			zap.Int64("duration_ms", time.Since(start).Milliseconds()),
		)
	})
}

func (s *Server) recoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				s.logger.Error("panic recovered", zap.Any("error", rec))
				writeError(w, http.StatusInternalServerError, "internal server error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func apiKeyMiddleware(expected string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := r.Header.Get("X-API-Key")
			if key == "" {
				key = r.URL.Query().Get("api_key")
			}
			if key != expected {
				writeError(w, http.StatusForbidden, "unauthorized")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

type responseWriter struct {
	http.ResponseWriter
	status int
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.status = code
	rw.ResponseWriter.WriteHeader(code)
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		zap.L().Error("write JSON failed", zap.Error(err))
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
