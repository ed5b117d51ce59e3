package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadRequiresAPIKey(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "GEMINI_API_KEY")
}

func TestLoadDefaults(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 8080, cfg.Port)
	assert.Equal(t, 8081, cfg.APIPort)
	assert.Equal(t, "models/gemini-2.0-flash-live-001", cfg.Model)
	assert.Equal(t, "TEXT", cfg.ResponseModality)
	assert.Equal(t, "Leda", cfg.VoiceName)
	assert.True(t, cfg.SearchGrounding)
	assert.Equal(t, 30*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, 5*1024*1024, cfg.MaxBufferSize)
	assert.Equal(t, []string{"*"}, cfg.AllowedOrigins)
	assert.Equal(t, time.Second, cfg.FrameInterval)
	assert.Equal(t, 1024, cfg.MaxFrameEdge)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("PORT", "9000")
	t.Setenv("RESPONSE_MODALITY", "AUDIO")
	t.Setenv("SESSION_TIMEOUT", "5m")
	t.Setenv("ALLOWED_ORIGINS", "https://a.example,https://b.example")
	t.Setenv("FRAME_INTERVAL", "250ms")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 9000, cfg.Port)
	assert.Equal(t, "AUDIO", cfg.ResponseModality)
	assert.Equal(t, 5*time.Minute, cfg.SessionTimeout)
	assert.Equal(t, []string{"https://a.example", "https://b.example"}, cfg.AllowedOrigins)
	assert.Equal(t, 250*time.Millisecond, cfg.FrameInterval)
}

func TestLoadRejectsInvalidModality(t *testing.T) {
	t.Setenv("GEMINI_API_KEY", "test-key")
	t.Setenv("RESPONSE_MODALITY", "VIDEO")

	_, err := Load()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "RESPONSE_MODALITY")
}

func TestValidatePortBounds(t *testing.T) {
	cfg := &Config{
		GeminiAPIKey:     "k",
		ResponseModality: "TEXT",
		Port:             70000,
		APIPort:          8081,
		MaxFrameEdge:     1024,
	}
	require.Error(t, cfg.Validate())

	cfg.Port = 8080
	cfg.MaxFrameEdge = 0
	require.Error(t, cfg.Validate())

	cfg.MaxFrameEdge = 512
	require.NoError(t, cfg.Validate())
}
