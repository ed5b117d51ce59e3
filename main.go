package main

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/murli1234/Gemini-live-cam/config"
	"github.com/murli1234/Gemini-live-cam/server"
	"github.com/murli1234/Gemini-live-cam/session"
)

func main() {
	port := flag.Int("port", 0, "UI/WebSocket port (overrides PORT)")
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("failed to load config")
	}
	if *port != 0 {
		cfg.Port = *port
	}

	logger := newLogger(cfg)

	sessionManager, err := session.NewManager(cfg, logger)
	if err != nil {
		logger.Fatal().Err(err).Msg("failed to create session manager")
	}

	ctx, cancel := context.WithCancel(context.Background())
	go sessionManager.StartCleanupRoutine(ctx)

	srv := server.NewServerWebsocket(cfg, sessionManager, logger)
	api := server.NewAPI(cfg, sessionManager, logger)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	go func() {
		<-sigChan
		logger.Info().Msg("received shutdown signal")
		cancel()
		sessionManager.Shutdown()

		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer shutdownCancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("WebSocket server shutdown error")
		}
		if err := api.Shutdown(shutdownCtx); err != nil {
			logger.Error().Err(err).Msg("API server shutdown error")
		}
	}()

	// Control API in the background, UI/WebSocket server in the foreground
	go func() {
		if err := api.Start(); err != nil && err.Error() != "http: Server closed" {
			logger.Fatal().Err(err).Msg("API server error")
		}
	}()

	if err := srv.Start(); err != nil && err.Error() != "http: Server closed" {
		logger.Fatal().Err(err).Msg("server error")
	}

	logger.Info().Msg("server stopped")
}

func newLogger(cfg *config.Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = zerolog.InfoLevel
	}

	var logger zerolog.Logger
	if cfg.LogPretty {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.Kitchen})
	} else {
		logger = zerolog.New(os.Stderr)
	}
	logger = logger.Level(level).With().Timestamp().Logger()
	log.Logger = logger
	return logger
}
