// Package server is the HTTP front end over the modhost core. It
// translates incoming requests into domain resolutions and typed
// dispatch errors into status codes. The core itself defines no
// transport; this adapter is the host program's.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/modhost/modhost"
)

// Server serves every bound domain through one chi router.
type Server struct {
	registry *modhost.DomainRegistry
	log      modhost.Logger
	router   chi.Router
}

// New builds the front end over a loaded domain registry.
func New(registry *modhost.DomainRegistry, log modhost.Logger) *Server {
	if log == nil {
		log = modhost.NewSlogLogger(nil)
	}
	s := &Server{registry: registry, log: log}
	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Handle("/*", http.HandlerFunc(s.handle))
	s.router = r
	return s
}

// Router exposes the underlying chi router so host programs can mount
// additional middleware or endpoints.
func (s *Server) Router() chi.Router { return s.router }

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

type responseEnvelope struct {
	RequestID string `json:"requestId"`
	Module    string `json:"module"`
	Value     any    `json:"value"`
}

type errorEnvelope struct {
	Error string `json:"error"`
}

func (s *Server) handle(w http.ResponseWriter, r *http.Request) {
	res, err := s.registry.Resolve(r.Host, r.URL.Path, r.Method)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.log.Error("Dispatch failed", "host", r.Host, "path", r.URL.Path, "error", err)
		} else {
			s.log.Debug("Dispatch rejected", "host", r.Host, "path", r.URL.Path, "status", status)
		}
		writeJSON(w, status, errorEnvelope{Error: err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, responseEnvelope{
		RequestID: res.RequestID,
		Module:    res.Module,
		Value:     res.Value,
	})
}

// statusFor maps the core's typed dispatch errors onto HTTP status
// codes. The core never decides user-visible behavior itself.
func statusFor(err error) int {
	switch {
	case errors.Is(err, modhost.ErrRouteNotFound), errors.Is(err, modhost.ErrNoMatch):
		return http.StatusNotFound
	case errors.Is(err, modhost.ErrMethodNotAllowed):
		return http.StatusMethodNotAllowed
	case errors.Is(err, modhost.ErrHandlerNotFound), errors.Is(err, modhost.ErrModuleNotReady):
		return http.StatusBadGateway
	case errors.Is(err, modhost.ErrSiteNotReady), errors.Is(err, modhost.ErrAllModulesFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

func writeJSON(w http.ResponseWriter, status int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

// Start runs the server until the context is cancelled, then shuts it
// down gracefully.
func (s *Server) Start(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	s.log.Info("HTTP front end listening", "addr", addr)
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
