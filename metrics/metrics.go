// Package metrics exposes Prometheus collectors for the gateway.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// ActiveSessions tracks sessions currently registered with the manager
	ActiveSessions = promauto.NewGauge(prometheus.GaugeOpts{
		Namespace: "livecam",
		Name:      "active_sessions",
		Help:      "Number of active client sessions.",
	})

	// SessionsTotal counts sessions created since start
	SessionsTotal = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "sessions_total",
		Help:      "Total client sessions created.",
	})

	// FramesForwarded counts camera frames forwarded to Gemini
	FramesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "frames_forwarded_total",
		Help:      "Camera frames forwarded to the Live API.",
	})

	// FramesDropped counts frames dropped by the per-session throttle
	FramesDropped = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "frames_dropped_total",
		Help:      "Camera frames dropped by the forward-rate throttle.",
	})

	// TextMessages counts user text turns forwarded to Gemini
	TextMessages = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "text_messages_total",
		Help:      "User text messages forwarded to the Live API.",
	})

	// AudioBytesForwarded counts PCM bytes forwarded to Gemini
	AudioBytesForwarded = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "audio_bytes_forwarded_total",
		Help:      "PCM audio bytes forwarded to the Live API.",
	})

	// GeminiErrors counts errors surfaced by the Live API leg
	GeminiErrors = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "livecam",
		Name:      "gemini_errors_total",
		Help:      "Errors returned by the Live API connection.",
	})
)
