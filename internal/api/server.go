package api

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/cyncbridge/cyncbridge/internal/auth"
	"github.com/cyncbridge/cyncbridge/internal/command"
	"github.com/cyncbridge/cyncbridge/internal/config"
	"github.com/cyncbridge/cyncbridge/internal/device"
	"github.com/cyncbridge/cyncbridge/internal/eventlog"
	"github.com/cyncbridge/cyncbridge/internal/logging"
)

// gracefulShutdownTimeout bounds how long Close waits for in-flight
// requests before forcing the listener closed.
const gracefulShutdownTimeout = 10 * time.Second

// Deps holds the dependencies the diagnostics API needs. Every
// dependency it reads is already owned elsewhere in the process; the
// API never becomes a second source of truth for any of it.
type Deps struct {
	Config   config.APIConfig
	Security config.SecurityConfig
	Logger   *logging.Logger
	Registry *device.Registry
	Events   *eventlog.Repository
	Queue    *command.Queue
	Version  string
}

// Server is the optional diagnostics/commissioning HTTP server.
type Server struct {
	cfg      config.APIConfig
	secret   string
	logger   *logging.Logger
	registry *device.Registry
	events   *eventlog.Repository
	queue    *command.Queue
	version  string
	hub      *Hub
	server   *http.Server
	cancel   context.CancelFunc
}

// New builds a Server from deps. The server is not listening until Start.
func New(deps Deps) (*Server, error) {
	if deps.Logger == nil {
		return nil, fmt.Errorf("api: logger is required")
	}
	if deps.Registry == nil {
		return nil, fmt.Errorf("api: device registry is required")
	}
	return &Server{
		cfg:      deps.Config,
		secret:   deps.Security.JWT.Secret,
		logger:   deps.Logger,
		registry: deps.Registry,
		events:   deps.Events,
		queue:    deps.Queue,
		version:  deps.Version,
		hub:      NewHub(deps.Logger),
	}, nil
}

// Start launches the HTTP listener in the background. It is a no-op
// when the API is disabled in configuration.
func (s *Server) Start(ctx context.Context) error {
	if !s.cfg.Enabled {
		s.logger.Info("diagnostics API disabled")
		return nil
	}

	var runCtx context.Context
	runCtx, s.cancel = context.WithCancel(ctx)
	go s.hub.Run(runCtx)

	s.server = &http.Server{
		Addr:              fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port),
		Handler:           s.buildRouter(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		var err error
		if s.cfg.TLS.Enabled {
			s.logger.Info("diagnostics API starting with TLS", "address", s.server.Addr)
			err = s.server.ListenAndServeTLS(s.cfg.TLS.CertFile, s.cfg.TLS.KeyFile)
		} else {
			s.logger.Info("diagnostics API starting", "address", s.server.Addr)
			err = s.server.ListenAndServe()
		}
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("diagnostics API error", "err", err)
		}
	}()
	return nil
}

// Hub returns the server's diagnostics WebSocket hub so callers can wire
// it as a reconciliation event sink even when the HTTP listener itself
// is disabled (Start runs the hub only when the API is enabled; with no
// connected clients Broadcast is a no-op).
func (s *Server) Hub() *Hub {
	return s.hub
}

// Close gracefully shuts the server down, if it was started.
func (s *Server) Close() error {
	if s.server == nil {
		return nil
	}
	if s.cancel != nil {
		s.cancel()
	}
	ctx, cancel := context.WithTimeout(context.Background(), gracefulShutdownTimeout)
	defer cancel()
	if err := s.server.Shutdown(ctx); err != nil {
		return fmt.Errorf("api: shutting down: %w", err)
	}
	return nil
}

func (s *Server) buildRouter() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(s.loggingMiddleware)

	r.Get("/healthz", s.handleHealthz)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/devices", s.handleListDevices)
		r.Get("/devices/{id}", s.handleGetDevice)
		r.Get("/events", s.handleListEvents)
		r.Get("/events/stream", s.handleEventStream)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireBearer(s.secret))
			r.Post("/devices/{id}/commands", s.handlePostDeviceCommand)
		})
	})

	return r
}

func (s *Server) loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		next.ServeHTTP(w, r)
		s.logger.Debug("api request", "method", r.Method, "path", r.URL.Path, "duration", time.Since(start))
	})
}

func (s *Server) handleHealthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{"status": "ok", "version": s.version})
}
