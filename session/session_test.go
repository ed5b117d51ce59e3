package session

import (
	"context"
	"encoding/base64"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bytedance/sonic"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/murli1234/Gemini-live-cam/gemini"
	"github.com/murli1234/Gemini-live-cam/messages"
)

// newWSPair returns a connected client/server WebSocket pair
func newWSPair(t *testing.T) (client, server *websocket.Conn) {
	t.Helper()

	upgrader := websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}
	connCh := make(chan *websocket.Conn, 1)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		c, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			connCh <- nil
			return
		}
		connCh <- c
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	client, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { client.Close() })

	server = <-connCh
	require.NotNil(t, server)
	return client, server
}

func newTestSession(t *testing.T) (*ClientSession, *websocket.Conn) {
	t.Helper()

	clientConn, serverConn := newWSPair(t)

	proxy, err := gemini.NewProxy(context.Background(), "test-key")
	require.NoError(t, err)

	cs := NewClientSession(context.Background(), "0123456789abcdef", serverConn, proxy, Options{
		Live: gemini.LiveConfig{
			Model:    "models/gemini-2.0-flash-live-001",
			Modality: "TEXT",
		},
		MaxBufferSize: 1024,
		MaxFrameEdge:  1024,
		FrameInterval: time.Second,
		Logger:        zerolog.Nop(),
	})
	t.Cleanup(func() { _ = cs.Close() })

	cs.Start()
	return cs, clientConn
}

type wirePayload struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	Code    string `json:"code"`
	Text    string `json:"text"`
}

type wireMessage struct {
	Type      string      `json:"type"`
	SessionID string      `json:"sessionId"`
	Payload   wirePayload `json:"payload"`
}

func readServerMessage(t *testing.T, conn *websocket.Conn) wireMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg wireMessage
	require.NoError(t, sonic.Unmarshal(data, &msg))
	return msg
}

func sendClientMessage(t *testing.T, conn *websocket.Conn, msgType string, payload any) {
	t.Helper()
	raw, err := sonic.Marshal(map[string]any{"type": msgType, "payload": payload})
	require.NoError(t, err)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, raw))
}

func TestSessionAnnouncesConnection(t *testing.T) {
	_, client := newTestSession(t)

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.TypeStatus, msg.Type)
	assert.Equal(t, messages.StatusConnected, msg.Payload.Status)
	assert.Equal(t, "0123456789abcdef", msg.SessionID)
}

func TestSessionRejectsTextBeforeStart(t *testing.T) {
	cs, client := newTestSession(t)
	readServerMessage(t, client) // connected

	assert.Equal(t, StateIdle, cs.State())

	sendClientMessage(t, client, "text", map[string]string{"text": "hello"})

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.TypeError, msg.Type)
	assert.Equal(t, messages.ErrCodeSessionNotStarted, msg.Payload.Code)
	assert.Zero(t, cs.Transcript.Len())
}

func TestSessionRejectsFrameBeforeStart(t *testing.T) {
	_, client := newTestSession(t)
	readServerMessage(t, client)

	frame := base64.StdEncoding.EncodeToString([]byte("fake-jpeg"))
	sendClientMessage(t, client, "frame", map[string]string{"data": frame})

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.TypeError, msg.Type)
	assert.Equal(t, messages.ErrCodeSessionNotStarted, msg.Payload.Code)
}

func TestSessionRejectsBinaryAudioBeforeStart(t *testing.T) {
	cs, client := newTestSession(t)
	readServerMessage(t, client)

	require.NoError(t, client.WriteMessage(websocket.BinaryMessage, []byte{0, 1, 2, 3}))

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.ErrCodeSessionNotStarted, msg.Payload.Code)
	assert.True(t, cs.AudioBuffer.IsEmpty())
}

func TestSessionStopWithoutStart(t *testing.T) {
	_, client := newTestSession(t)
	readServerMessage(t, client)

	sendClientMessage(t, client, "control", map[string]string{"action": "stop"})

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.TypeError, msg.Type)
	assert.Equal(t, messages.ErrCodeSessionNotStarted, msg.Payload.Code)
}

func TestSessionPingPong(t *testing.T) {
	_, client := newTestSession(t)
	readServerMessage(t, client)

	sendClientMessage(t, client, "control", map[string]string{"action": "ping"})

	msg := readServerMessage(t, client)
	assert.Equal(t, messages.TypeStatus, msg.Type)
	assert.Equal(t, messages.StatusPong, msg.Payload.Status)
}

func TestSessionRejectsMalformedInput(t *testing.T) {
	_, client := newTestSession(t)
	readServerMessage(t, client)

	require.NoError(t, client.WriteMessage(websocket.TextMessage, []byte("not json")))
	msg := readServerMessage(t, client)
	assert.Equal(t, messages.ErrCodeInvalidMessage, msg.Payload.Code)

	sendClientMessage(t, client, "teleport", map[string]string{})
	msg = readServerMessage(t, client)
	assert.Equal(t, messages.ErrCodeInvalidMessage, msg.Payload.Code)

	sendClientMessage(t, client, "control", map[string]string{"action": "dance"})
	msg = readServerMessage(t, client)
	assert.Equal(t, messages.ErrCodeInvalidMessage, msg.Payload.Code)
}

func TestSessionClosesOnClientDisconnect(t *testing.T) {
	cs, client := newTestSession(t)
	readServerMessage(t, client)

	require.NoError(t, client.Close())

	assert.Eventually(t, cs.IsClosed, 3*time.Second, 20*time.Millisecond)
}
