package session

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTranscriptOrdering(t *testing.T) {
	tr := NewTranscript(nil)

	tr.AddUser("hello")
	tr.AppendModel("hi ")
	tr.AppendModel("there")
	tr.EndModelTurn()
	tr.AddUser("bye")

	turns := tr.Turns()
	require.Len(t, turns, 3)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.Equal(t, "hello", turns[0].Text)
	assert.Equal(t, RoleModel, turns[1].Role)
	assert.Equal(t, "hi there", turns[1].Text)
	assert.Equal(t, "bye", turns[2].Text)
}

func TestTranscriptEmptyModelTurnIgnored(t *testing.T) {
	tr := NewTranscript(nil)

	tr.AddUser("hello")
	// Audio-only reply: turn completes with no text accumulated
	tr.EndModelTurn()

	assert.Equal(t, 1, tr.Len())
}

func TestTranscriptChunksResetBetweenTurns(t *testing.T) {
	tr := NewTranscript(nil)

	tr.AppendModel("first")
	tr.EndModelTurn()
	tr.AppendModel("second")
	tr.EndModelTurn()

	turns := tr.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, "first", turns[0].Text)
	assert.Equal(t, "second", turns[1].Text)
}

func TestTranscriptHook(t *testing.T) {
	var seen []Turn
	tr := NewTranscript(func(turn Turn) {
		seen = append(seen, turn)
	})

	tr.AddUser("hello")
	tr.AppendModel("hi")
	tr.EndModelTurn()

	require.Len(t, seen, 2)
	assert.Equal(t, RoleUser, seen[0].Role)
	assert.Equal(t, RoleModel, seen[1].Role)
}

func TestTranscriptTurnsReturnsCopy(t *testing.T) {
	tr := NewTranscript(nil)
	tr.AddUser("hello")

	turns := tr.Turns()
	turns[0].Text = "mutated"

	assert.Equal(t, "hello", tr.Turns()[0].Text)
}
