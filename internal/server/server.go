// Package server exposes the engine over HTTP
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/kyleking/sqlassist/internal/catalog"
	"github.com/kyleking/sqlassist/internal/config"
	"github.com/kyleking/sqlassist/internal/engine"
	"github.com/kyleking/sqlassist/internal/errors"
	"github.com/kyleking/sqlassist/internal/logging"
)

// Asker answers one utterance
type Asker interface {
	Ask(ctx context.Context, req engine.Request) engine.Response
}

// Pinger reports database reachability
type Pinger interface {
	Ping(ctx context.Context) error
}

// Server is the HTTP front end
type Server struct {
	asker   Asker
	catalog *catalog.Catalog
	pinger  Pinger
	cfg     config.ServerConfig
	logger  *logging.Logger
	version string
	router  chi.Router
}

// New builds the router. pinger may be nil.
func New(asker Asker, cat *catalog.Catalog, pinger Pinger, cfg config.ServerConfig, logger *logging.Logger, version string) *Server {
	if logger == nil {
		logger = logging.NewNop()
	}

	s := &Server{
		asker:   asker,
		catalog: cat,
		pinger:  pinger,
		cfg:     cfg,
		logger:  logger.WithField("component", "server"),
		version: version,
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.requestLogger)
	r.Use(middleware.Recoverer)

	r.Get("/health", s.handleHealth)
	r.Get("/schema", s.handleSchema)
	r.With(middleware.AllowContentType("application/json")).Post("/query", s.handleQuery)

	s.router = r

	return s
}

// Handler returns the root handler
func (s *Server) Handler() http.Handler {
	return s.router
}

// Run serves until ctx is canceled, then drains in-flight requests
func (s *Server) Run(ctx context.Context) error {
	srv := &http.Server{
		Addr:         s.cfg.Addr,
		Handler:      s.router,
		ReadTimeout:  config.Duration(s.cfg.ReadTimeout),
		WriteTimeout: config.Duration(s.cfg.WriteTimeout),
		IdleTimeout:  config.Duration(s.cfg.IdleTimeout),
	}

	errCh := make(chan error, 1)

	go func() {
		s.logger.Infof("listening on %s", s.cfg.Addr)
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		return errors.Wrap(err, errors.ErrTypeInternal, "server failed")
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), config.Duration(s.cfg.ShutdownTimeout))
	defer cancel()

	s.logger.Info("shutting down")

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return errors.Wrap(err, errors.ErrTypeInternal, "graceful shutdown failed")
	}

	return nil
}

type errorBody struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	if s.cfg.MaxBodyBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)
	}

	var req engine.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{Error: "invalid request body"})
		return
	}

	writeJSON(w, http.StatusOK, s.asker.Ask(r.Context(), req))
}

type healthBody struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Database string `json:"database,omitempty"`
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	body := healthBody{Status: "ok", Version: s.version}

	if s.pinger != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := s.pinger.Ping(ctx); err != nil {
			s.logger.WithError(err).Warn("health check failed")

			body.Status = "degraded"
			body.Database = "unreachable"
			writeJSON(w, http.StatusServiceUnavailable, body)

			return
		}

		body.Database = "ok"
	}

	writeJSON(w, http.StatusOK, body)
}

type schemaBody struct {
	Table   string           `json:"table"`
	Columns []catalog.Column `json:"columns"`
}

func (s *Server) handleSchema(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, schemaBody{Table: s.catalog.TableName(), Columns: s.catalog.Columns()})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// requestLogger logs method, path, status and duration of every request
func (s *Server) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()

		defer func() {
			s.logger.WithFields(map[string]any{
				"request_id":  middleware.GetReqID(r.Context()),
				"method":      r.Method,
				"path":        r.URL.Path,
				"status":      ww.Status(),
				"bytes":       ww.BytesWritten(),
				"duration_ms": time.Since(start).Milliseconds(),
			}).Info("request")
		}()

		next.ServeHTTP(ww, r)
	})
}
