// Command livecam-client is a terminal test client for the gateway: it opens
// a WebSocket, starts a live session, optionally sends a JPEG frame, sends a
// text prompt, and prints streamed replies. Audio replies are piped to sox.
package main

import (
	"encoding/base64"
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"os/exec"
	"os/signal"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

// Message types matching the server
type ClientMessage struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

type ServerMessage struct {
	Type      string          `json:"type"`
	SessionID string          `json:"sessionId,omitempty"`
	Payload   json.RawMessage `json:"payload"`
}

type AudioResponsePayload struct {
	Data     string `json:"data"`
	MimeType string `json:"mimeType"`
}

type TextResponsePayload struct {
	Text string `json:"text"`
}

type StatusPayload struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// AudioPlayer streams PCM audio via sox
type AudioPlayer struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	mu     sync.Mutex
	closed bool
}

func NewAudioPlayer() *AudioPlayer {
	cmd := exec.Command("sox",
		"-t", "raw",
		"-r", "24000",
		"-b", "16",
		"-c", "1",
		"-e", "signed-integer",
		"-",
		"-d",
	)

	stdin, err := cmd.StdinPipe()
	if err != nil {
		log.Println("sox stdin error:", err)
		return nil
	}
	if err := cmd.Start(); err != nil {
		log.Println("sox start error:", err)
		return nil
	}
	return &AudioPlayer{cmd: cmd, stdin: stdin}
}

func (p *AudioPlayer) Play(audioData []byte) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.stdin == nil {
		return
	}
	_, _ = p.stdin.Write(audioData)
}

func (p *AudioPlayer) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	if p.stdin != nil {
		p.stdin.Close()
	}
	if p.cmd != nil && p.cmd.Process != nil {
		_ = p.cmd.Wait()
	}
}

func main() {
	serverURL := flag.String("server", "ws://localhost:8080/ws", "WebSocket server URL")
	imageFile := flag.String("image", "", "JPEG frame to send before the prompt")
	prompt := flag.String("prompt", "What do you see?", "text prompt to send")
	playAudio := flag.Bool("play", false, "play audio replies via sox")
	timeout := flag.Duration("timeout", 30*time.Second, "how long to wait for a reply")
	flag.Parse()

	log.Printf("connecting to %s...", *serverURL)
	conn, _, err := websocket.DefaultDialer.Dial(*serverURL, nil)
	if err != nil {
		log.Fatalf("failed to connect: %v", err)
	}
	defer conn.Close()
	log.Println("connected")

	var player *AudioPlayer
	if *playAudio {
		player = NewAudioPlayer()
		if player == nil {
			log.Fatal("failed to create audio player (is sox installed?)")
		}
		defer player.Close()
	}

	interrupt := make(chan os.Signal, 1)
	signal.Notify(interrupt, os.Interrupt)

	done := make(chan struct{})
	turnDone := make(chan struct{}, 1)

	go func() {
		defer close(done)
		for {
			_, message, err := conn.ReadMessage()
			if err != nil {
				return
			}

			var msg ServerMessage
			if err := json.Unmarshal(message, &msg); err != nil {
				log.Println("parse error:", err)
				continue
			}

			switch msg.Type {
			case "audio":
				var payload AudioResponsePayload
				_ = json.Unmarshal(msg.Payload, &payload)
				audioBytes, err := base64.StdEncoding.DecodeString(payload.Data)
				if err == nil && player != nil {
					player.Play(audioBytes)
				}

			case "text":
				var payload TextResponsePayload
				_ = json.Unmarshal(msg.Payload, &payload)
				fmt.Print(payload.Text)

			case "status":
				var payload StatusPayload
				_ = json.Unmarshal(msg.Payload, &payload)
				log.Printf("status: %s %s", payload.Status, payload.Message)
				if payload.Status == "turn_complete" {
					fmt.Println()
					select {
					case turnDone <- struct{}{}:
					default:
					}
				}

			case "error":
				log.Printf("error: %s", string(msg.Payload))
			}
		}
	}()

	send := func(msg ClientMessage) {
		if err := conn.WriteJSON(msg); err != nil {
			log.Fatalf("send error: %v", err)
		}
	}

	send(ClientMessage{Type: "control", Payload: map[string]string{"action": "start"}})
	time.Sleep(500 * time.Millisecond)

	if *imageFile != "" {
		data, err := os.ReadFile(*imageFile)
		if err != nil {
			log.Fatalf("failed to read image: %v", err)
		}
		log.Printf("sending frame: %s (%d bytes)", *imageFile, len(data))
		send(ClientMessage{Type: "frame", Payload: map[string]string{
			"data": base64.StdEncoding.EncodeToString(data),
		}})
	}

	log.Printf("sending prompt: %s", *prompt)
	send(ClientMessage{Type: "text", Payload: map[string]string{"text": *prompt}})

	select {
	case <-turnDone:
		log.Println("turn complete")
	case <-done:
		log.Println("connection closed")
	case <-interrupt:
		log.Println("interrupted, closing...")
		_ = conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	case <-time.After(*timeout):
		log.Println("timeout waiting for response")
	}
}
