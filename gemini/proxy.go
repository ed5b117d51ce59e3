package gemini

import (
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"sync"

	"github.com/rs/zerolog/log"
	"google.golang.org/genai"
)

// ErrNotConnected is returned by senders before Setup has established a live session
var ErrNotConnected = errors.New("live session not connected")

// ErrAlreadyConnected is returned by Setup when a live session is already up
var ErrAlreadyConnected = errors.New("live session already connected")

// LiveConfig describes how the Live session is established
type LiveConfig struct {
	Model        string
	Modality     string // "TEXT" or "AUDIO" — the Live API accepts exactly one
	VoiceName    string
	SystemPrompt string
	Tools        []*genai.Tool
}

// Proxy manages the connection to the Gemini Live API using the official SDK.
// The client is created once; the live session is established by Setup and can
// be torn down and re-established without recreating the Proxy.
type Proxy struct {
	client  *genai.Client
	session *genai.Session

	// Callbacks for handling responses
	OnAudio    func(data []byte)       // Decoded audio bytes
	OnAudioRaw func(base64Data string) // Raw base64 (avoids re-encoding)
	OnText     func(text string)
	OnComplete func()
	OnToolCall func(functionCalls []*genai.FunctionCall)
	OnError    func(err error)

	mu     sync.RWMutex
	closed bool
}

// NewProxy creates the GenAI client. No network session is opened until Setup.
func NewProxy(ctx context.Context, apiKey string) (*Proxy, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}

	return &Proxy{
		client: client,
	}, nil
}

// Setup establishes the Live session
func (gp *Proxy) Setup(ctx context.Context, cfg LiveConfig) error {
	gp.mu.Lock()
	defer gp.mu.Unlock()

	if gp.closed {
		return fmt.Errorf("proxy is closed")
	}
	if gp.session != nil {
		return ErrAlreadyConnected
	}

	config := &genai.LiveConnectConfig{
		ResponseModalities: []genai.Modality{genai.Modality(cfg.Modality)},
		Tools:              cfg.Tools,
	}
	if cfg.SystemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{
				{Text: cfg.SystemPrompt},
			},
		}
	}
	if cfg.Modality == "AUDIO" && cfg.VoiceName != "" {
		config.SpeechConfig = &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{
					VoiceName: cfg.VoiceName,
				},
			},
		}
	}

	session, err := gp.client.Live.Connect(ctx, cfg.Model, config)
	if err != nil {
		return fmt.Errorf("failed to connect to Live API: %w", err)
	}

	gp.session = session
	log.Info().Str("model", cfg.Model).Str("modality", cfg.Modality).Msg("connected to Gemini Live")
	return nil
}

// Connected reports whether a live session is established
func (gp *Proxy) Connected() bool {
	gp.mu.RLock()
	defer gp.mu.RUnlock()
	return gp.session != nil && !gp.closed
}

// StartReceiving begins listening for Gemini responses on the current session.
// The loop exits when the session is torn down or the receive stream errors.
func (gp *Proxy) StartReceiving(ctx context.Context) {
	gp.mu.RLock()
	session := gp.session
	gp.mu.RUnlock()
	if session == nil {
		return
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			resp, err := session.Receive()
			if err != nil {
				gp.mu.RLock()
				// Deliberate teardown: the stored session was swapped or cleared
				detached := gp.closed || gp.session != session
				gp.mu.RUnlock()

				if !detached {
					log.Error().Err(err).Msg("Gemini receive error")
					if gp.OnError != nil {
						gp.OnError(err)
					}
				}
				return
			}

			gp.handleResponse(resp)
		}
	}()
}

func (gp *Proxy) handleResponse(resp *genai.LiveServerMessage) {
	if resp.ToolCall != nil && len(resp.ToolCall.FunctionCalls) > 0 {
		log.Debug().Int("calls", len(resp.ToolCall.FunctionCalls)).Msg("received function calls from Gemini")
		if gp.OnToolCall != nil {
			gp.OnToolCall(resp.ToolCall.FunctionCalls)
		}
	}

	if resp.ServerContent != nil {
		if resp.ServerContent.ModelTurn != nil {
			for _, part := range resp.ServerContent.ModelTurn.Parts {
				if part.Text != "" && gp.OnText != nil {
					gp.OnText(part.Text)
				}
				if part.InlineData != nil {
					if gp.OnAudioRaw != nil {
						encoded := base64.StdEncoding.EncodeToString(part.InlineData.Data)
						gp.OnAudioRaw(encoded)
					} else if gp.OnAudio != nil {
						gp.OnAudio(part.InlineData.Data)
					}
				}
			}
		}

		if resp.ServerContent.TurnComplete && gp.OnComplete != nil {
			gp.OnComplete()
		}
	}
}

// SendText sends a user text turn to Gemini
func (gp *Proxy) SendText(text string) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return ErrNotConnected
	}

	turnComplete := true
	err := session.SendClientContent(genai.LiveSendClientContentParameters{
		Turns: []*genai.Content{
			{
				Role:  "user",
				Parts: []*genai.Part{{Text: text}},
			},
		},
		TurnComplete: &turnComplete,
	})
	if err != nil {
		return fmt.Errorf("failed to send text: %w", err)
	}
	return nil
}

// SendVideoFrame forwards a JPEG camera frame to Gemini as realtime input
func (gp *Proxy) SendVideoFrame(jpegData []byte) error {
	return gp.sendRealtimeBlob(jpegData, "image/jpeg")
}

// SendAudio forwards a PCM audio chunk to Gemini
func (gp *Proxy) SendAudio(audioData []byte) error {
	return gp.sendRealtimeBlob(audioData, "audio/pcm;rate=16000")
}

// SendAudioBatch sends complete batched audio data followed by a stream-end
// signal, which triggers Gemini to process the accumulated audio and respond.
func (gp *Proxy) SendAudioBatch(audioData []byte) error {
	if len(audioData) == 0 {
		return nil
	}

	if err := gp.sendRealtimeBlob(audioData, "audio/pcm;rate=16000"); err != nil {
		return fmt.Errorf("failed to send audio batch: %w", err)
	}
	return gp.sendAudioStreamEnd()
}

func (gp *Proxy) sendRealtimeBlob(data []byte, mimeType string) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return ErrNotConnected
	}

	err := session.SendRealtimeInput(genai.LiveRealtimeInput{
		Media: &genai.Blob{
			MIMEType: mimeType,
			Data:     data,
		},
	})
	if err != nil {
		return fmt.Errorf("failed to send realtime input (%s): %w", mimeType, err)
	}
	return nil
}

func (gp *Proxy) sendAudioStreamEnd() error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return ErrNotConnected
	}

	err := session.SendRealtimeInput(genai.LiveRealtimeInput{
		AudioStreamEnd: true,
	})
	if err != nil {
		return fmt.Errorf("failed to send audio stream end: %w", err)
	}
	return nil
}

// SendToolResponse sends function call responses back to Gemini
func (gp *Proxy) SendToolResponse(responses []*genai.FunctionResponse) error {
	gp.mu.RLock()
	session := gp.session
	closed := gp.closed
	gp.mu.RUnlock()

	if closed || session == nil {
		return ErrNotConnected
	}

	err := session.SendToolResponse(genai.LiveToolResponseInput{
		FunctionResponses: responses,
	})
	if err != nil {
		return fmt.Errorf("failed to send tool response: %w", err)
	}
	return nil
}

// Teardown closes the live session but keeps the client, so the session can
// be re-established with another Setup call.
func (gp *Proxy) Teardown() error {
	gp.mu.Lock()
	session := gp.session
	gp.session = nil
	gp.mu.Unlock()

	if session == nil {
		return nil
	}
	return session.Close()
}

// Close terminates the Gemini connection for good
func (gp *Proxy) Close() error {
	gp.mu.Lock()
	if gp.closed {
		gp.mu.Unlock()
		return nil
	}
	gp.closed = true
	session := gp.session
	gp.session = nil
	gp.mu.Unlock()

	if session != nil {
		return session.Close()
	}
	return nil
}
