package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/murli1234/Gemini-live-cam/config"
	"github.com/murli1234/Gemini-live-cam/messages"
	"github.com/murli1234/Gemini-live-cam/session"
)

// API is the REST control and inspection surface: session listing,
// transcripts, forced teardown, health and metrics.
type API struct {
	httpServer     *http.Server
	sessionManager *session.Manager
	config         *config.Config
	log            zerolog.Logger
	startedAt      time.Time
}

type statusResponse struct {
	Status   string `json:"status"`
	Sessions int    `json:"sessions"`
	Uptime   string `json:"uptime"`
	Model    string `json:"model"`
	Modality string `json:"modality"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// NewAPI creates the REST API server
func NewAPI(cfg *config.Config, sessionManager *session.Manager, logger zerolog.Logger) *API {
	a := &API{
		sessionManager: sessionManager,
		config:         cfg,
		log:            logger,
		startedAt:      time.Now(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(a.requestLogger)

	r.Get("/health", a.handleHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", a.handleStatus)
		r.Get("/sessions", a.handleListSessions)
		r.Get("/sessions/{id}/transcript", a.handleTranscript)
		r.Delete("/sessions/{id}", a.handleKillSession)
	})

	a.httpServer = &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.APIPort),
		Handler:           r,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return a
}

// Handler exposes the router for tests
func (a *API) Handler() http.Handler {
	return a.httpServer.Handler
}

// Start begins listening for connections
func (a *API) Start() error {
	a.log.Info().Int("port", a.config.APIPort).Msg("control API listening")
	return a.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (a *API) Shutdown(ctx context.Context) error {
	a.log.Info().Msg("shutting down control API")
	return a.httpServer.Shutdown(ctx)
}

// requestLogger logs every request with its id, status and duration
func (a *API) requestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)

		next.ServeHTTP(ww, r)

		a.log.Info().
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Int("status", ww.Status()).
			Dur("duration", time.Since(start)).
			Msg("api request")
	})
}

func (a *API) writeJSON(w http.ResponseWriter, status int, body any) {
	data, err := messages.Encode(body)
	if err != nil {
		a.log.Error().Err(err).Msg("failed to encode API response")
		w.WriteHeader(http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

func (a *API) handleHealth(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": a.sessionManager.GetActiveSessionCount(),
	})
}

func (a *API) handleStatus(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, statusResponse{
		Status:   "ok",
		Sessions: a.sessionManager.GetActiveSessionCount(),
		Uptime:   time.Since(a.startedAt).Round(time.Second).String(),
		Model:    a.config.Model,
		Modality: a.config.ResponseModality,
	})
}

func (a *API) handleListSessions(w http.ResponseWriter, _ *http.Request) {
	a.writeJSON(w, http.StatusOK, a.sessionManager.Snapshot())
}

func (a *API) handleTranscript(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	turns, ok := a.sessionManager.GetTranscript(id)
	if !ok {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	a.writeJSON(w, http.StatusOK, turns)
}

func (a *API) handleKillSession(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := a.sessionManager.GetSession(id); !ok {
		a.writeJSON(w, http.StatusNotFound, errorResponse{Error: "session not found"})
		return
	}
	if err := a.sessionManager.RemoveSession(r.Context(), id); err != nil {
		a.writeJSON(w, http.StatusInternalServerError, errorResponse{Error: err.Error()})
		return
	}
	a.writeJSON(w, http.StatusOK, map[string]string{"status": "removed"})
}
