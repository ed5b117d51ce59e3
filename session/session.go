package session

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"google.golang.org/genai"

	"github.com/murli1234/Gemini-live-cam/gemini"
	"github.com/murli1234/Gemini-live-cam/messages"
	"github.com/murli1234/Gemini-live-cam/metrics"
)

const (
	writeBufferSize = 256
	writeTimeout    = 10 * time.Second
	maxReadLimit    = 2 * 1024 * 1024 // 2MB: JPEG frames are larger than audio chunks
)

// State is the session lifecycle state
type State string

const (
	// StateIdle means the WebSocket is connected but no Live session is up.
	// Text, frame and audio input is rejected in this state.
	StateIdle State = "idle"
	// StateLive means the Gemini Live session is established
	StateLive State = "live"
)

// Options carries everything a session needs beyond its two connections
type Options struct {
	Live          gemini.LiveConfig
	MaxBufferSize int
	MaxFrameEdge  int
	FrameInterval time.Duration
	OnTurn        func(id string, turn Turn) // completed-turn hook (Redis mirror)
	Logger        zerolog.Logger
}

// ClientSession represents a single user's connection
type ClientSession struct {
	ID          string
	ClientConn  *websocket.Conn
	GeminiProxy *gemini.Proxy
	AudioBuffer *AudioBuffer
	Transcript  *Transcript
	CreatedAt   time.Time

	frames   *FrameProcessor
	throttle *FrameThrottle
	live     gemini.LiveConfig
	log      zerolog.Logger

	// All outgoing writes funnel through a single pump
	writeChan chan *messages.ServerMessage

	mu           sync.RWMutex
	state        State
	lastActivity time.Time
	closed       bool

	CloseChan chan struct{}
	ctx       context.Context
	cancel    context.CancelFunc

	// Cancels the receive loop of the current live leg only
	liveCancel context.CancelFunc
}

// NewClientSession creates an idle session. The Gemini Live connection is not
// established until the client sends a start control message.
func NewClientSession(ctx context.Context, id string, clientConn *websocket.Conn, proxy *gemini.Proxy, opts Options) *ClientSession {
	ctx, cancel := context.WithCancel(ctx)

	clientConn.SetReadLimit(maxReadLimit)
	clientConn.EnableWriteCompression(true)
	_ = clientConn.SetCompressionLevel(6)

	cs := &ClientSession{
		ID:          id,
		ClientConn:  clientConn,
		GeminiProxy: proxy,
		AudioBuffer: NewAudioBuffer(opts.MaxBufferSize),
		CreatedAt:   time.Now(),
		frames:      NewFrameProcessor(opts.MaxFrameEdge),
		throttle:    NewFrameThrottle(opts.FrameInterval),
		live:        opts.Live,
		log:         opts.Logger.With().Str("session", shortID(id)).Logger(),
		writeChan:   make(chan *messages.ServerMessage, writeBufferSize),
		state:       StateIdle,
		CloseChan:   make(chan struct{}),
		ctx:         ctx,
		cancel:      cancel,
	}
	cs.lastActivity = cs.CreatedAt

	var onTurn func(Turn)
	if opts.OnTurn != nil {
		hook := opts.OnTurn
		onTurn = func(turn Turn) { hook(id, turn) }
	}
	cs.Transcript = NewTranscript(onTurn)

	return cs
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// Start begins the bidirectional message handling
func (cs *ClientSession) Start() {
	go cs.writePump()
	cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusConnected, "Session established, send a start control message to begin"))
	go cs.handleClientMessages()
}

// State returns the current lifecycle state
func (cs *ClientSession) State() State {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.state
}

// LastActivity returns the time of the most recent client or model traffic
func (cs *ClientSession) LastActivity() time.Time {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.lastActivity
}

func (cs *ClientSession) touch() {
	cs.mu.Lock()
	cs.lastActivity = time.Now()
	cs.mu.Unlock()
}

// writePump handles all outgoing messages in a single goroutine
func (cs *ClientSession) writePump() {
	defer func() {
		_ = cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
		_ = cs.ClientConn.WriteMessage(
			websocket.CloseMessage,
			websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		)
	}()

	for {
		select {
		case <-cs.CloseChan:
			return
		case msg, ok := <-cs.writeChan:
			if !ok {
				return
			}
			if err := cs.writeMessage(msg); err != nil {
				return
			}

			// Drain whatever queued up behind the first write
			n := len(cs.writeChan)
			for i := 0; i < n; i++ {
				select {
				case msg, ok := <-cs.writeChan:
					if !ok {
						return
					}
					if err := cs.writeMessage(msg); err != nil {
						return
					}
				default:
				}
			}
		}
	}
}

func (cs *ClientSession) writeMessage(msg *messages.ServerMessage) error {
	data, err := messages.Encode(msg)
	if err != nil {
		cs.log.Error().Err(err).Msg("failed to encode server message")
		return nil
	}
	_ = cs.ClientConn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return cs.ClientConn.WriteMessage(websocket.TextMessage, data)
}

// queueMessage adds a message to the write queue (non-blocking)
func (cs *ClientSession) queueMessage(msg *messages.ServerMessage) {
	cs.mu.RLock()
	closed := cs.closed
	cs.mu.RUnlock()
	if closed {
		return
	}
	select {
	case cs.writeChan <- msg:
		cs.touch()
	default:
		// Queue full, drop message (shouldn't happen with proper sizing)
	}
}

func (cs *ClientSession) handleClientMessages() {
	defer cs.Close()

	for {
		select {
		case <-cs.CloseChan:
			return
		default:
			messageType, message, err := cs.ClientConn.ReadMessage()
			if err != nil {
				return
			}
			cs.touch()

			// Binary messages are raw PCM audio chunks
			if messageType == websocket.BinaryMessage {
				cs.handleAudioChunk(message)
				continue
			}

			clientMsg, err := messages.DecodeClient(message)
			if err != nil {
				cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid message format"))
				continue
			}
			cs.processClientMessage(clientMsg)
		}
	}
}

func (cs *ClientSession) processClientMessage(msg *messages.ClientMessage) {
	switch msg.Type {
	case "text":
		var payload messages.TextPayload
		if err := messages.DecodePayload(msg, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid text payload"))
			return
		}
		cs.handleText(payload.Text)

	case "frame":
		var payload messages.FramePayload
		if err := messages.DecodePayload(msg, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid frame payload"))
			return
		}
		jpegData, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 frame data"))
			return
		}
		cs.handleFrame(jpegData)

	case "audio":
		var payload messages.AudioPayload
		if err := messages.DecodePayload(msg, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid audio payload"))
			return
		}
		audioBytes, err := base64.StdEncoding.DecodeString(payload.Data)
		if err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid base64 audio data"))
			return
		}
		cs.handleAudioChunk(audioBytes)

	case "control":
		var payload messages.ControlPayload
		if err := messages.DecodePayload(msg, &payload); err != nil {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Invalid control payload"))
			return
		}
		cs.handleControlMessage(&payload)

	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown message type: "+msg.Type))
	}
}

func (cs *ClientSession) handleControlMessage(payload *messages.ControlPayload) {
	switch payload.Action {
	case "start":
		cs.handleStart()
	case "stop":
		cs.handleStop()
	case "ping":
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusPong, ""))
	case "end_turn":
		cs.handleEndTurn()
	default:
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeInvalidMessage, "Unknown control action: "+payload.Action))
	}
}

// handleStart establishes the Gemini Live leg
func (cs *ClientSession) handleStart() {
	if cs.State() == StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeAlreadyStarted, "Session already started"))
		return
	}

	if err := cs.GeminiProxy.Setup(cs.ctx, cs.live); err != nil {
		if errors.Is(err, gemini.ErrAlreadyConnected) {
			cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeAlreadyStarted, "Session already started"))
			return
		}
		cs.log.Error().Err(err).Msg("failed to start Live session")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionFailed, err.Error()))
		return
	}

	cs.setupGeminiCallbacks()

	liveCtx, liveCancel := context.WithCancel(cs.ctx)
	cs.mu.Lock()
	cs.state = StateLive
	cs.liveCancel = liveCancel
	cs.mu.Unlock()

	cs.GeminiProxy.StartReceiving(liveCtx)
	cs.log.Info().Msg("live session started")
	cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusSessionStarted, "Live session started"))
}

// handleStop tears down the Live leg but keeps the WebSocket open so the
// client can start again.
func (cs *ClientSession) handleStop() {
	if cs.State() != StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionNotStarted, "Session is not started"))
		return
	}

	cs.mu.Lock()
	cs.state = StateIdle
	liveCancel := cs.liveCancel
	cs.liveCancel = nil
	cs.mu.Unlock()

	if liveCancel != nil {
		liveCancel()
	}
	cs.AudioBuffer.Clear()
	cs.Transcript.EndModelTurn()

	if err := cs.GeminiProxy.Teardown(); err != nil {
		cs.log.Warn().Err(err).Msg("error closing Live session")
	}

	cs.log.Info().Msg("live session stopped")
	cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusSessionStopped, "Live session stopped"))
}

func (cs *ClientSession) handleText(text string) {
	if cs.State() != StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionNotStarted, "Please start the session first"))
		return
	}
	if text == "" {
		text = "."
	}

	cs.Transcript.AddUser(text)
	if err := cs.GeminiProxy.SendText(text); err != nil {
		cs.log.Error().Err(err).Msg("failed to send text to Gemini")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
		return
	}
	metrics.TextMessages.Inc()
}

func (cs *ClientSession) handleFrame(jpegData []byte) {
	if cs.State() != StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionNotStarted, "Please start the session first"))
		return
	}

	if !cs.throttle.Allow(time.Now()) {
		metrics.FramesDropped.Inc()
		return
	}

	processed, err := cs.frames.Process(jpegData)
	if err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeFrameError, err.Error()))
		return
	}

	if err := cs.GeminiProxy.SendVideoFrame(processed); err != nil {
		cs.log.Error().Err(err).Msg("failed to send frame to Gemini")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
		return
	}
	metrics.FramesForwarded.Inc()
}

func (cs *ClientSession) handleAudioChunk(chunk []byte) {
	if cs.State() != StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionNotStarted, "Please start the session first"))
		return
	}

	if err := cs.AudioBuffer.Append(chunk); err != nil {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeBufferFull,
			fmt.Sprintf("Audio buffer full (max %d bytes)", cs.AudioBuffer.MaxSize())))
	}
}

// handleEndTurn flushes buffered audio to Gemini as one batch
func (cs *ClientSession) handleEndTurn() {
	if cs.State() != StateLive {
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeSessionNotStarted, "Please start the session first"))
		return
	}
	if cs.AudioBuffer.IsEmpty() {
		cs.log.Debug().Msg("end_turn with empty buffer, ignoring")
		return
	}

	audioData, chunkCount := cs.AudioBuffer.Flush()
	cs.log.Debug().Int("bytes", len(audioData)).Int("chunks", chunkCount).Msg("sending batched audio to Gemini")

	if err := cs.GeminiProxy.SendAudioBatch(audioData); err != nil {
		cs.log.Error().Err(err).Msg("failed to send audio batch")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
		return
	}
	metrics.AudioBytesForwarded.Add(float64(len(audioData)))
}

func (cs *ClientSession) setupGeminiCallbacks() {
	cs.GeminiProxy.OnText = func(text string) {
		cs.Transcript.AppendModel(text)
		cs.queueMessage(messages.NewTextMessage(cs.ID, text))
	}

	cs.GeminiProxy.OnAudioRaw = func(base64Data string) {
		cs.queueMessage(messages.NewAudioMessage(cs.ID, base64Data))
	}

	cs.GeminiProxy.OnComplete = func() {
		cs.Transcript.EndModelTurn()
		cs.queueMessage(messages.NewStatusMessage(cs.ID, messages.StatusTurnComplete, ""))
	}

	cs.GeminiProxy.OnToolCall = func(functionCalls []*genai.FunctionCall) {
		cs.handleToolCalls(functionCalls)
	}

	cs.GeminiProxy.OnError = func(err error) {
		metrics.GeminiErrors.Inc()
		cs.log.Error().Err(err).Msg("Gemini error")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
		if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) ||
			websocket.IsUnexpectedCloseError(err) {
			cs.log.Warn().Msg("closing session after Gemini connection error")
			_ = cs.Close()
		}
	}
}

// handleToolCalls answers function calls from Gemini. Search grounding runs
// server-side, so any call that arrives here names a function we don't have.
func (cs *ClientSession) handleToolCalls(functionCalls []*genai.FunctionCall) {
	var responses []*genai.FunctionResponse

	for _, fc := range functionCalls {
		cs.log.Warn().Str("function", fc.Name).Msg("unknown function called")
		responses = append(responses, &genai.FunctionResponse{
			ID:       fc.ID,
			Name:     fc.Name,
			Response: map[string]any{"error": fmt.Sprintf("Unknown function: %s", fc.Name)},
		})
	}

	if err := cs.GeminiProxy.SendToolResponse(responses); err != nil {
		cs.log.Error().Err(err).Msg("failed to send tool response")
		cs.queueMessage(messages.NewErrorMessage(cs.ID, messages.ErrCodeGeminiError, err.Error()))
	}
}

// IsClosed reports whether the session is closed
func (cs *ClientSession) IsClosed() bool {
	cs.mu.RLock()
	defer cs.mu.RUnlock()
	return cs.closed
}

// Close terminates the session and cleans up resources
func (cs *ClientSession) Close() error {
	cs.mu.Lock()
	if cs.closed {
		cs.mu.Unlock()
		return nil
	}
	cs.closed = true
	cs.state = StateIdle
	cs.mu.Unlock()

	cs.cancel()

	// Stop writePump first, then signal everyone else
	close(cs.writeChan)
	close(cs.CloseChan)

	cs.AudioBuffer.Clear()

	if cs.GeminiProxy != nil {
		_ = cs.GeminiProxy.Close()
	}
	if cs.ClientConn != nil {
		_ = cs.ClientConn.Close()
	}

	return nil
}
