package session

import (
	"strings"
	"sync"
	"time"
)

// Role identifies who produced a conversation turn
type Role string

const (
	RoleUser  Role = "user"
	RoleModel Role = "model"
)

// Turn is one completed conversation turn
type Turn struct {
	Role Role      `json:"role"`
	Text string    `json:"text"`
	At   time.Time `json:"at"`
}

// Transcript keeps the ordered list of conversation turns for a session.
// Model text arrives in streamed chunks; chunks accumulate until the model
// signals turn completion, at which point they collapse into a single turn.
type Transcript struct {
	mu      sync.Mutex
	turns   []Turn
	partial strings.Builder
	onTurn  func(Turn) // optional hook, invoked outside the lock
}

// NewTranscript creates an empty transcript. The onTurn hook, if non-nil, is
// called for every completed turn.
func NewTranscript(onTurn func(Turn)) *Transcript {
	return &Transcript{onTurn: onTurn}
}

// AddUser records a completed user turn
func (t *Transcript) AddUser(text string) {
	turn := Turn{Role: RoleUser, Text: text, At: time.Now().UTC()}

	t.mu.Lock()
	t.turns = append(t.turns, turn)
	hook := t.onTurn
	t.mu.Unlock()

	if hook != nil {
		hook(turn)
	}
}

// AppendModel accumulates a streamed model text chunk
func (t *Transcript) AppendModel(chunk string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.partial.WriteString(chunk)
}

// EndModelTurn collapses accumulated chunks into one model turn.
// A no-op when nothing has been accumulated (audio-only turns).
func (t *Transcript) EndModelTurn() {
	t.mu.Lock()
	text := t.partial.String()
	t.partial.Reset()
	if text == "" {
		t.mu.Unlock()
		return
	}
	turn := Turn{Role: RoleModel, Text: text, At: time.Now().UTC()}
	t.turns = append(t.turns, turn)
	hook := t.onTurn
	t.mu.Unlock()

	if hook != nil {
		hook(turn)
	}
}

// Turns returns a copy of all completed turns in order
func (t *Transcript) Turns() []Turn {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make([]Turn, len(t.turns))
	copy(out, t.turns)
	return out
}

// Len returns the number of completed turns
func (t *Transcript) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.turns)
}
