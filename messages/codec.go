package messages

import (
	"fmt"

	"github.com/bytedance/sonic"
)

// Encode marshals a server message for the wire
func Encode(msg any) ([]byte, error) {
	data, err := sonic.Marshal(msg)
	if err != nil {
		return nil, fmt.Errorf("failed to encode message: %w", err)
	}
	return data, nil
}

// DecodeClient parses a raw text frame from the client
func DecodeClient(data []byte) (*ClientMessage, error) {
	var msg ClientMessage
	if err := sonic.Unmarshal(data, &msg); err != nil {
		return nil, fmt.Errorf("failed to decode client message: %w", err)
	}
	return &msg, nil
}

// DecodePayload parses a client message payload into the typed struct
func DecodePayload(msg *ClientMessage, out any) error {
	if err := sonic.Unmarshal(msg.Payload, out); err != nil {
		return fmt.Errorf("failed to decode %s payload: %w", msg.Type, err)
	}
	return nil
}
