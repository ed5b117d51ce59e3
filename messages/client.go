package messages

import "encoding/json"

// ClientMessage represents a message from the frontend client
type ClientMessage struct {
	Type    string          `json:"type"` // "text", "frame", "audio", "control"
	Payload json.RawMessage `json:"payload"`
}

// TextPayload contains a user chat message
type TextPayload struct {
	Text string `json:"text"`
}

// FramePayload contains a camera frame from the client
type FramePayload struct {
	Data string `json:"data"` // Base64-encoded JPEG
}

// AudioPayload contains audio data from the client
type AudioPayload struct {
	Data string `json:"data"` // Base64-encoded PCM audio (16kHz, 16-bit LE)
}

// ControlPayload contains control commands
type ControlPayload struct {
	Action string `json:"action"` // "start", "stop", "ping", "end_turn"
}
