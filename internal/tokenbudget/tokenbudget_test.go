package tokenbudget

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCountIsPositiveForNonEmptyText(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)
	assert.Greater(t, c.Count("hello world"), 0)
	assert.Equal(t, 0, c.Count(""))
}

func TestCapTextLeavesShortTextUnchanged(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)
	text := "short text"
	assert.Equal(t, text, c.CapText(text, 1000))
}

func TestCapTextTruncatesAndAnnotates(t *testing.T) {
	c, err := NewCounter("gpt-4")
	require.NoError(t, err)
	long := strings.Repeat("word ", 5000)
	capped := c.CapText(long, 10)
	assert.Contains(t, capped, "truncated")
	assert.Less(t, len(capped), len(long))
}

func TestUnrecognizedModelFallsBackToCl100k(t *testing.T) {
	c, err := NewCounter("some-unknown-future-model")
	require.NoError(t, err)
	assert.Greater(t, c.Count("test"), 0)
}
