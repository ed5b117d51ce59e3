package session

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/murli1234/Gemini-live-cam/config"
	"github.com/murli1234/Gemini-live-cam/functions"
	"github.com/murli1234/Gemini-live-cam/gemini"
	"github.com/murli1234/Gemini-live-cam/messages"
	"github.com/murli1234/Gemini-live-cam/metrics"
)

const defaultSystemPrompt = `You are a helpful assistant in a live conversation. The user may share
camera frames alongside text; use what you can see to ground your answers.
Keep replies conversational and concise.`

// Info is a read-only snapshot of a session for the control API
type Info struct {
	ID           string    `json:"id"`
	State        State     `json:"state"`
	CreatedAt    time.Time `json:"createdAt"`
	LastActivity time.Time `json:"lastActivity"`
	Turns        int       `json:"turns"`
}

// Manager manages all client sessions
type Manager struct {
	sessions map[string]*ClientSession
	mu       sync.RWMutex
	redis    *redis.Client
	config   *config.Config
	log      zerolog.Logger
}

// NewManager creates a session manager. Redis is optional: if the server is
// unreachable the manager runs memory-only.
func NewManager(cfg *config.Config, logger zerolog.Logger) (*Manager, error) {
	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisURL,
		Password: cfg.RedisPassword,
		DB:       0,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := redisClient.Ping(ctx).Err(); err != nil {
		logger.Warn().Str("addr", cfg.RedisURL).Msg("Redis unavailable, running memory-only")
		redisClient = nil
	}

	return &Manager{
		sessions: make(map[string]*ClientSession),
		redis:    redisClient,
		config:   cfg,
		log:      logger,
	}, nil
}

func (sm *Manager) liveConfig() gemini.LiveConfig {
	prompt := sm.config.SystemPrompt
	if prompt == "" {
		prompt = defaultSystemPrompt
	}
	return gemini.LiveConfig{
		Model:        sm.config.Model,
		Modality:     sm.config.ResponseModality,
		VoiceName:    sm.config.VoiceName,
		SystemPrompt: prompt,
		Tools:        functions.BuildTools(sm.config.SearchGrounding),
	}
}

// CreateSession creates a new idle client session for a WebSocket connection
func (sm *Manager) CreateSession(ctx context.Context, clientConn *websocket.Conn) (*ClientSession, error) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if len(sm.sessions) >= sm.config.MaxSessions {
		return nil, fmt.Errorf("maximum sessions reached")
	}

	sessionID := uuid.New().String()

	proxy, err := gemini.NewProxy(ctx, sm.config.GeminiAPIKey)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini proxy: %w", err)
	}

	session := NewClientSession(context.Background(), sessionID, clientConn, proxy, Options{
		Live:          sm.liveConfig(),
		MaxBufferSize: sm.config.MaxBufferSize,
		MaxFrameEdge:  sm.config.MaxFrameEdge,
		FrameInterval: sm.config.FrameInterval,
		OnTurn:        sm.recordTurn,
		Logger:        sm.log,
	})

	sm.storeSession(ctx, sessionID, session)
	metrics.SessionsTotal.Inc()
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
	return session, nil
}

// storeSession saves a session to memory and mirrors metadata to Redis
func (sm *Manager) storeSession(ctx context.Context, sessionID string, session *ClientSession) {
	sm.sessions[sessionID] = session

	if sm.redis != nil {
		sm.redis.HSet(ctx, "session:"+sessionID, map[string]interface{}{
			"created_at":    session.CreatedAt.Format(time.RFC3339),
			"last_activity": session.LastActivity().Format(time.RFC3339),
			"status":        "active",
		})
		sm.redis.SAdd(ctx, "active_sessions", sessionID)
		sm.redis.Expire(ctx, "session:"+sessionID, sm.config.SessionTimeout)
	}
}

// recordTurn mirrors a completed conversation turn to Redis
func (sm *Manager) recordTurn(sessionID string, turn Turn) {
	if sm.redis == nil {
		return
	}

	data, err := messages.Encode(turn)
	if err != nil {
		sm.log.Error().Err(err).Msg("failed to encode transcript turn")
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	key := "transcript:" + sessionID
	sm.redis.RPush(ctx, key, data)
	sm.redis.Expire(ctx, key, sm.config.SessionTimeout)
}

// GetSession retrieves a session by ID
func (sm *Manager) GetSession(sessionID string) (*ClientSession, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	return session, exists
}

// RemoveSession cleans up and removes a session
func (sm *Manager) RemoveSession(ctx context.Context, sessionID string) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil
	}

	_ = session.Close()
	delete(sm.sessions, sessionID)
	sm.dropRedisKeys(ctx, sessionID)
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))

	return nil
}

func (sm *Manager) dropRedisKeys(ctx context.Context, sessionID string) {
	if sm.redis == nil {
		return
	}
	sm.redis.Del(ctx, "session:"+sessionID, "transcript:"+sessionID)
	sm.redis.SRem(ctx, "active_sessions", sessionID)
}

// GetActiveSessionCount returns current session count
func (sm *Manager) GetActiveSessionCount() int {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	return len(sm.sessions)
}

// Snapshot returns read-only info for all active sessions
func (sm *Manager) Snapshot() []Info {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	infos := make([]Info, 0, len(sm.sessions))
	for id, s := range sm.sessions {
		infos = append(infos, Info{
			ID:           id,
			State:        s.State(),
			CreatedAt:    s.CreatedAt,
			LastActivity: s.LastActivity(),
			Turns:        s.Transcript.Len(),
		})
	}
	return infos
}

// GetTranscript returns the conversation turns of a session
func (sm *Manager) GetTranscript(sessionID string) ([]Turn, bool) {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	session, exists := sm.sessions[sessionID]
	if !exists {
		return nil, false
	}
	return session.Transcript.Turns(), true
}

// CleanupInactiveSessions removes sessions idle past the configured timeout
func (sm *Manager) CleanupInactiveSessions(ctx context.Context) {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	now := time.Now()
	for id, session := range sm.sessions {
		if now.Sub(session.LastActivity()) > sm.config.SessionTimeout {
			sm.log.Info().Str("session", shortID(id)).Msg("removing inactive session")
			_ = session.Close()
			delete(sm.sessions, id)
			sm.dropRedisKeys(ctx, id)
		}
	}
	metrics.ActiveSessions.Set(float64(len(sm.sessions)))
}

// StartCleanupRoutine starts periodic cleanup of inactive sessions
func (sm *Manager) StartCleanupRoutine(ctx context.Context) {
	ticker := time.NewTicker(1 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			sm.CleanupInactiveSessions(ctx)
		}
	}
}

// Shutdown closes all sessions
func (sm *Manager) Shutdown() {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	for id, session := range sm.sessions {
		_ = session.Close()
		delete(sm.sessions, id)
	}
	metrics.ActiveSessions.Set(0)

	if sm.redis != nil {
		_ = sm.redis.Close()
	}
}
