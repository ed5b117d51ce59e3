package functions

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuildTools(t *testing.T) {
	tools := BuildTools(true)
	require.Len(t, tools, 1)
	assert.NotNil(t, tools[0].GoogleSearch)

	assert.Empty(t, BuildTools(false))
}
