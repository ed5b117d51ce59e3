package session

import (
	"errors"
	"sync"
)

// ErrBufferFull is returned when appending would exceed the buffer cap
var ErrBufferFull = errors.New("audio buffer full")

// AudioBuffer accumulates microphone PCM chunks until the client ends its
// turn, at which point the whole batch goes to Gemini in one send.
type AudioBuffer struct {
	mu        sync.Mutex
	chunks    [][]byte
	totalSize int
	maxSize   int
}

// NewAudioBuffer creates a buffer capped at maxSize bytes
func NewAudioBuffer(maxSize int) *AudioBuffer {
	return &AudioBuffer{maxSize: maxSize}
}

// MaxSize returns the buffer cap in bytes
func (ab *AudioBuffer) MaxSize() int {
	return ab.maxSize
}

// Append adds an audio chunk. Returns ErrBufferFull when the chunk would
// push the buffer past its cap; the chunk is dropped in that case.
func (ab *AudioBuffer) Append(chunk []byte) error {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if ab.totalSize+len(chunk) > ab.maxSize {
		return ErrBufferFull
	}

	ab.chunks = append(ab.chunks, chunk)
	ab.totalSize += len(chunk)
	return nil
}

// Flush concatenates all buffered chunks in arrival order, clears the buffer,
// and returns the batch along with the number of chunks it held.
func (ab *AudioBuffer) Flush() ([]byte, int) {
	ab.mu.Lock()
	defer ab.mu.Unlock()

	if len(ab.chunks) == 0 {
		return nil, 0
	}

	batch := make([]byte, 0, ab.totalSize)
	for _, chunk := range ab.chunks {
		batch = append(batch, chunk...)
	}
	count := len(ab.chunks)

	ab.chunks = nil
	ab.totalSize = 0
	return batch, count
}

// Clear empties the buffer without returning data
func (ab *AudioBuffer) Clear() {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	ab.chunks = nil
	ab.totalSize = 0
}

// Size returns the current total buffered bytes
func (ab *AudioBuffer) Size() int {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return ab.totalSize
}

// IsEmpty reports whether no chunks are buffered
func (ab *AudioBuffer) IsEmpty() bool {
	ab.mu.Lock()
	defer ab.mu.Unlock()
	return len(ab.chunks) == 0
}
