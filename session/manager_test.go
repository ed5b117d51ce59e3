package session

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murli1234/Gemini-live-cam/config"
)

func testConfig(redisAddr string) *config.Config {
	return &config.Config{
		Port:             8080,
		APIPort:          8081,
		GeminiAPIKey:     "test-key",
		Model:            "models/gemini-2.0-flash-live-001",
		ResponseModality: "TEXT",
		VoiceName:        "Leda",
		SearchGrounding:  true,
		RedisURL:         redisAddr,
		MaxSessions:      2,
		SessionTimeout:   30 * time.Minute,
		MaxBufferSize:    1024,
		AllowedOrigins:   []string{"*"},
		FrameInterval:    time.Second,
		MaxFrameEdge:     1024,
	}
}

func newTestManager(t *testing.T) (*Manager, *miniredis.Miniredis) {
	t.Helper()

	mr := miniredis.RunT(t)
	m, err := NewManager(testConfig(mr.Addr()), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)
	return m, mr
}

func TestManagerCreateAndRemoveSession(t *testing.T) {
	m, mr := newTestManager(t)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	assert.Equal(t, 1, m.GetActiveSessionCount())
	assert.Equal(t, StateIdle, sess.State())

	got, ok := m.GetSession(sess.ID)
	require.True(t, ok)
	assert.Same(t, sess, got)

	assert.True(t, mr.Exists("session:"+sess.ID))
	members, err := mr.Members("active_sessions")
	require.NoError(t, err)
	assert.Contains(t, members, sess.ID)

	require.NoError(t, m.RemoveSession(context.Background(), sess.ID))
	assert.Equal(t, 0, m.GetActiveSessionCount())
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.True(t, sess.IsClosed())
}

func TestManagerEnforcesMaxSessions(t *testing.T) {
	m, _ := newTestManager(t)
	m.config.MaxSessions = 1

	_, serverConn := newWSPair(t)
	_, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	_, serverConn2 := newWSPair(t)
	_, err = m.CreateSession(context.Background(), serverConn2)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "maximum sessions")
}

func TestManagerCleanupRemovesStaleSessions(t *testing.T) {
	m, mr := newTestManager(t)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	sess.mu.Lock()
	sess.lastActivity = time.Now().Add(-time.Hour)
	sess.mu.Unlock()

	m.CleanupInactiveSessions(context.Background())

	assert.Equal(t, 0, m.GetActiveSessionCount())
	assert.False(t, mr.Exists("session:"+sess.ID))
	assert.True(t, sess.IsClosed())
}

func TestManagerCleanupKeepsActiveSessions(t *testing.T) {
	m, _ := newTestManager(t)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	m.CleanupInactiveSessions(context.Background())

	assert.Equal(t, 1, m.GetActiveSessionCount())
	assert.False(t, sess.IsClosed())
}

func TestManagerMirrorsTranscriptToRedis(t *testing.T) {
	m, mr := newTestManager(t)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	sess.Transcript.AddUser("what is this?")
	sess.Transcript.AppendModel("a test")
	sess.Transcript.EndModelTurn()

	entries, err := mr.List("transcript:" + sess.ID)
	require.NoError(t, err)
	require.Len(t, entries, 2)
	assert.Contains(t, entries[0], `"role":"user"`)
	assert.Contains(t, entries[1], `"role":"model"`)

	turns, ok := m.GetTranscript(sess.ID)
	require.True(t, ok)
	assert.Len(t, turns, 2)
}

func TestManagerSnapshot(t *testing.T) {
	m, _ := newTestManager(t)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)
	sess.Transcript.AddUser("hi")

	infos := m.Snapshot()
	require.Len(t, infos, 1)
	assert.Equal(t, sess.ID, infos[0].ID)
	assert.Equal(t, StateIdle, infos[0].State)
	assert.Equal(t, 1, infos[0].Turns)
}

func TestManagerRunsWithoutRedis(t *testing.T) {
	// Nothing listens on port 1, so the manager should degrade to memory-only
	m, err := NewManager(testConfig("127.0.0.1:1"), zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(m.Shutdown)

	_, serverConn := newWSPair(t)
	sess, err := m.CreateSession(context.Background(), serverConn)
	require.NoError(t, err)

	sess.Transcript.AddUser("hi")
	turns, ok := m.GetTranscript(sess.ID)
	require.True(t, ok)
	assert.Len(t, turns, 1)

	_, ok = m.GetTranscript("missing")
	assert.False(t, ok)
}
