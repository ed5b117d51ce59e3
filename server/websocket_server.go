package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/murli1234/Gemini-live-cam/config"
	"github.com/murli1234/Gemini-live-cam/messages"
	"github.com/murli1234/Gemini-live-cam/session"
	"github.com/murli1234/Gemini-live-cam/web"
)

// Server serves the browser UI and the WebSocket endpoint
type Server struct {
	httpServer     *http.Server
	upgrader       websocket.Upgrader
	sessionManager *session.Manager
	config         *config.Config
	log            zerolog.Logger
}

// NewServerWebsocket creates the UI + WebSocket server
func NewServerWebsocket(cfg *config.Config, sessionManager *session.Manager, logger zerolog.Logger) *Server {
	s := &Server{
		sessionManager: sessionManager,
		config:         cfg,
		log:            logger,
		upgrader: websocket.Upgrader{
			ReadBufferSize:    64 * 1024, // frames and audio chunks
			WriteBufferSize:   64 * 1024,
			EnableCompression: true,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				for _, allowed := range cfg.AllowedOrigins {
					if allowed == "*" || allowed == origin {
						return true
					}
				}
				return false
			},
		},
	}

	mux := http.NewServeMux()
	mux.Handle("/", http.FileServer(http.FS(web.Assets())))
	mux.HandleFunc("/ws", s.handleWebSocket)
	mux.HandleFunc("/health", s.handleHealth)

	s.httpServer = &http.Server{
		Addr:    fmt.Sprintf(":%d", cfg.Port),
		Handler: mux,
		// No global timeouts: they would kill long-lived WebSocket
		// connections. Writes are bounded per-message inside the session.
		ReadHeaderTimeout: 10 * time.Second,
	}

	return s
}

// Start begins listening for connections
func (s *Server) Start() error {
	s.log.Info().Int("port", s.config.Port).Msgf("🚀 UI on http://localhost:%d, WebSocket on ws://localhost:%d/ws", s.config.Port, s.config.Port)
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the server
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info().Msg("shutting down WebSocket server")
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	clientSession, err := s.sessionManager.CreateSession(r.Context(), conn)
	if err != nil {
		s.log.Error().Err(err).Msg("failed to create session")
		errMsg := messages.NewErrorMessage("", messages.ErrCodeSessionFailed, err.Error())
		if data, encErr := messages.Encode(errMsg); encErr == nil {
			_ = conn.WriteMessage(websocket.TextMessage, data)
		}
		conn.Close()
		return
	}

	s.log.Info().Str("session", clientSession.ID).Msg("new session created")
	clientSession.Start()

	<-clientSession.CloseChan

	_ = s.sessionManager.RemoveSession(context.Background(), clientSession.ID)
	s.log.Info().Str("session", clientSession.ID).Msg("session closed")
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, `{"status":"ok","sessions":%d}`, s.sessionManager.GetActiveSessionCount())
}
