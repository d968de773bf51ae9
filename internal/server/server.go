// Package server provides the HTTP and WebSocket surface of fingerspell.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/ayusman/fingerspell/internal/app"
	"github.com/ayusman/fingerspell/internal/capture"
	"github.com/ayusman/fingerspell/internal/observe"
	"github.com/ayusman/fingerspell/internal/server/api"
	"github.com/ayusman/fingerspell/internal/session"
	"github.com/ayusman/fingerspell/internal/store"
)

// Controller is the part of the recognizer the server drives.
type Controller interface {
	Status() app.Status
	Start(ctx context.Context) error
	Stop(ctx context.Context)
	SetEnabled(enabled bool)
	Confirm(ctx context.Context) (session.Event, error)
	Reject(ctx context.Context) (session.Event, error)
	ResetWord(ctx context.Context) (session.Event, error)
	Control(ctx context.Context, command string) error
	AddListener(l app.Listener)
	LatestFrame() (jpeg []byte, seq uint64, ok bool)
}

// Config holds the server configuration. Every field is optional; routes
// whose dependencies are missing are not registered.
type Config struct {
	StaticDir      string
	Store          *store.Store
	App            Controller
	Reloader       api.TemplateReloader
	Plugins        api.PluginCatalog
	Metrics        *observe.Metrics
	MetricsHandler http.Handler
	Logger         *slog.Logger
}

// Server is the fingerspell HTTP server.
type Server struct {
	config  Config
	mux     *http.ServeMux
	handler http.Handler
	updates *Hub
	log     *slog.Logger
	start   time.Time
}

// New creates a Server with the given configuration.
func New(config Config) *Server {
	log := config.Logger
	if log == nil {
		log = slog.Default()
	}
	s := &Server{
		config: config,
		mux:    http.NewServeMux(),
		log:    log,
		start:  time.Now(),
	}
	s.setupRoutes()

	metrics := config.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	s.handler = observe.Middleware(metrics, log)(s.mux)
	return s
}

func (s *Server) setupRoutes() {
	s.mux.HandleFunc("/api/health", s.handleHealth)

	if s.config.App != nil {
		s.mux.HandleFunc("/api/session", s.handleStatus)
		s.mux.HandleFunc("/api/session/start", post(s.handleStart))
		s.mux.HandleFunc("/api/session/stop", post(s.handleStop))
		s.mux.HandleFunc("/api/session/pause", post(s.handlePause(false)))
		s.mux.HandleFunc("/api/session/resume", post(s.handlePause(true)))
		s.mux.HandleFunc("/api/session/confirm", post(s.handleDecision(s.config.App.Confirm)))
		s.mux.HandleFunc("/api/session/reject", post(s.handleDecision(s.config.App.Reject)))
		s.mux.HandleFunc("/api/session/reset", post(s.handleDecision(s.config.App.ResetWord)))

		s.updates = NewHub(s.config.App, s.log)
		s.config.App.AddListener(s.updates.Broadcast)
		s.mux.Handle("/api/updates", s.updates)
		s.mux.Handle("/api/stream", NewStreamHandler(s.config.App))
	}

	if s.config.Store != nil {
		templates := api.NewTemplateHandler(s.config.Store, s.config.Reloader, s.log)
		s.mux.Handle("/api/templates", templates)
		s.mux.Handle("/api/templates/", templates)

		bindings := api.NewBindingHandler(s.config.Store, s.config.Plugins)
		s.mux.Handle("/api/bindings", bindings)
		s.mux.Handle("/api/bindings/", bindings)

		sessions := api.NewSessionHandler(s.config.Store)
		s.mux.Handle("/api/sessions", sessions)
		s.mux.Handle("/api/sessions/", sessions)
	}

	s.mux.Handle("/api/plugins", api.PluginsHandler(s.config.Plugins))

	if s.config.MetricsHandler != nil {
		s.mux.Handle("/metrics", s.config.MetricsHandler)
	}

	if s.config.StaticDir != "" {
		s.mux.Handle("/", http.FileServer(http.Dir(s.config.StaticDir)))
	}
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.handler.ServeHTTP(w, r)
}

// Updates returns the WebSocket hub, or nil when no App is configured.
func (s *Server) Updates() *Hub {
	return s.updates
}

// ListenAndServe serves on addr until ctx is done, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()
	s.log.Info("http server listening", slog.String("addr", addr))

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()
	if s.updates != nil {
		s.updates.Close()
	}
	if err := srv.Shutdown(shutdownCtx); err != nil {
		return err
	}
	if err := <-errCh; !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func post(h http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}
		h(w, r)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}

// handleHealth handles GET requests to /api/health.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	response := map[string]any{
		"status": "ok",
		"uptime": time.Since(s.start).String(),
	}
	if s.config.App != nil {
		response["running"] = s.config.App.Status().Running
	}
	if s.config.Store != nil {
		if err := s.config.Store.Ping(r.Context()); err != nil {
			response["status"] = "degraded"
			response["store"] = err.Error()
		}
	}
	writeJSON(w, http.StatusOK, response)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.config.App.Start(r.Context()); err != nil {
		if errors.Is(err, capture.ErrCameraUnavailable) {
			writeError(w, http.StatusServiceUnavailable, "Camera unavailable")
			return
		}
		s.log.Error("failed to start sampler", slog.Any("error", err))
		writeError(w, http.StatusInternalServerError, "Failed to start")
		return
	}
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.config.App.Stop(r.Context())
	writeJSON(w, http.StatusOK, s.config.App.Status())
}

func (s *Server) handlePause(enabled bool) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s.config.App.SetEnabled(enabled)
		writeJSON(w, http.StatusOK, s.config.App.Status())
	}
}

type decisionResponse struct {
	Event  session.Event `json:"event"`
	Status app.Status    `json:"status"`
}

func (s *Server) handleDecision(decide func(context.Context) (session.Event, error)) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ev, err := decide(r.Context())
		if err != nil {
			if errors.Is(err, session.ErrNothingPending) {
				writeError(w, http.StatusConflict, "No letter awaiting confirmation")
				return
			}
			if errors.Is(err, app.ErrSessionEnded) {
				writeError(w, http.StatusConflict, "Session has ended, start a new one")
				return
			}
			writeError(w, http.StatusInternalServerError, err.Error())
			return
		}
		writeJSON(w, http.StatusOK, decisionResponse{Event: ev, Status: s.config.App.Status()})
	}
}


