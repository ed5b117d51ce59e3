package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds all server configuration
type Config struct {
	Port    int `env:"PORT" envDefault:"8080"`
	APIPort int `env:"API_PORT" envDefault:"8081"` // REST control API listener

	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	Model            string `env:"GEMINI_MODEL" envDefault:"models/gemini-2.0-flash-live-001"`
	ResponseModality string `env:"RESPONSE_MODALITY" envDefault:"TEXT"` // Live API accepts exactly one of TEXT, AUDIO
	VoiceName        string `env:"VOICE_NAME" envDefault:"Leda"`
	SystemPrompt     string `env:"SYSTEM_PROMPT"`
	SearchGrounding  bool   `env:"SEARCH_GROUNDING" envDefault:"true"`

	RedisURL      string `env:"REDIS_URL" envDefault:"localhost:6379"`
	RedisPassword string `env:"REDIS_PASSWORD"`

	MaxSessions    int           `env:"MAX_SESSIONS" envDefault:"100"`
	SessionTimeout time.Duration `env:"SESSION_TIMEOUT" envDefault:"30m"`
	MaxBufferSize  int           `env:"MAX_BUFFER_SIZE" envDefault:"5242880"` // audio buffer cap in bytes per session

	AllowedOrigins []string `env:"ALLOWED_ORIGINS" envDefault:"*" envSeparator:","`

	FrameInterval time.Duration `env:"FRAME_INTERVAL" envDefault:"1s"` // minimum spacing between forwarded camera frames
	MaxFrameEdge  int           `env:"MAX_FRAME_EDGE" envDefault:"1024"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogPretty bool   `env:"LOG_PRETTY" envDefault:"true"`
}

// Load reads configuration from the environment, with .env as a fallback.
// A missing .env file is not an error.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg := &Config{}
	if err := env.Parse(cfg); err != nil {
		return nil, fmt.Errorf("failed to parse environment: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks required fields and enum values
func (c *Config) Validate() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}
	switch c.ResponseModality {
	case "TEXT", "AUDIO":
	default:
		return fmt.Errorf("invalid RESPONSE_MODALITY: must be 'TEXT' or 'AUDIO'")
	}
	if c.Port <= 0 || c.Port > 65535 {
		return fmt.Errorf("invalid PORT: %d", c.Port)
	}
	if c.APIPort <= 0 || c.APIPort > 65535 {
		return fmt.Errorf("invalid API_PORT: %d", c.APIPort)
	}
	if c.MaxFrameEdge <= 0 {
		return fmt.Errorf("invalid MAX_FRAME_EDGE: %d", c.MaxFrameEdge)
	}
	if c.FrameInterval < 0 {
		return fmt.Errorf("invalid FRAME_INTERVAL: %s", c.FrameInterval)
	}
	return nil
}
