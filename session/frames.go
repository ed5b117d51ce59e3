package session

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"sync"
	"time"

	"golang.org/x/image/draw"
)

const jpegQuality = 85

// FrameProcessor normalizes camera frames before they are forwarded to
// Gemini: decode, downscale so the longest edge fits maxEdge, re-encode JPEG.
type FrameProcessor struct {
	maxEdge int
}

// NewFrameProcessor creates a processor with the given maximum edge in pixels
func NewFrameProcessor(maxEdge int) *FrameProcessor {
	return &FrameProcessor{maxEdge: maxEdge}
}

// Process decodes a JPEG frame and returns a JPEG no larger than maxEdge on
// its longest side. Frames already within bounds are returned unchanged.
func (fp *FrameProcessor) Process(jpegData []byte) ([]byte, error) {
	cfg, err := jpeg.DecodeConfig(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("invalid JPEG frame: %w", err)
	}

	if cfg.Width <= fp.maxEdge && cfg.Height <= fp.maxEdge {
		return jpegData, nil
	}

	src, err := jpeg.Decode(bytes.NewReader(jpegData))
	if err != nil {
		return nil, fmt.Errorf("failed to decode JPEG frame: %w", err)
	}

	w, h := scaledBounds(cfg.Width, cfg.Height, fp.maxEdge)
	dst := image.NewRGBA(image.Rect(0, 0, w, h))
	draw.ApproxBiLinear.Scale(dst, dst.Bounds(), src, src.Bounds(), draw.Over, nil)

	var out bytes.Buffer
	if err := jpeg.Encode(&out, dst, &jpeg.Options{Quality: jpegQuality}); err != nil {
		return nil, fmt.Errorf("failed to encode scaled frame: %w", err)
	}
	return out.Bytes(), nil
}

// scaledBounds shrinks (w, h) proportionally so the longest edge equals maxEdge
func scaledBounds(w, h, maxEdge int) (int, int) {
	if w >= h {
		scaled := h * maxEdge / w
		if scaled < 1 {
			scaled = 1
		}
		return maxEdge, scaled
	}
	scaled := w * maxEdge / h
	if scaled < 1 {
		scaled = 1
	}
	return scaled, maxEdge
}

// FrameThrottle rate-limits forwarded frames. Frames arriving faster than the
// interval are dropped (latest-wins on the client side, stale frames only add
// latency on ours).
type FrameThrottle struct {
	mu       sync.Mutex
	interval time.Duration
	last     time.Time
}

// NewFrameThrottle creates a throttle with the given minimum spacing.
// A zero interval disables throttling.
func NewFrameThrottle(interval time.Duration) *FrameThrottle {
	return &FrameThrottle{interval: interval}
}

// Allow reports whether a frame observed at now may be forwarded
func (ft *FrameThrottle) Allow(now time.Time) bool {
	ft.mu.Lock()
	defer ft.mu.Unlock()

	if ft.interval == 0 {
		return true
	}
	if !ft.last.IsZero() && now.Sub(ft.last) < ft.interval {
		return false
	}
	ft.last = now
	return true
}
