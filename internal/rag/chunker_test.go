package rag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewChunkerValidation(t *testing.T) {
	_, err := NewChunker(0, 0)
	require.Error(t, err)
	_, err = NewChunker(100, -1)
	require.Error(t, err)
	_, err = NewChunker(100, 100)
	require.Error(t, err)
	_, err = NewChunker(100, 20)
	require.NoError(t, err)
}

func TestChunkerShortInput(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	chunks := c.Split("short document")
	require.Equal(t, []string{"short document"}, chunks)
}

func TestChunkerEmptyInput(t *testing.T) {
	c, err := NewChunker(100, 20)
	require.NoError(t, err)

	require.Nil(t, c.Split(""))
	require.Nil(t, c.Split("   \n\t  "))
}

func TestChunkerRespectsSizeBound(t *testing.T) {
	c, err := NewChunker(50, 10)
	require.NoError(t, err)

	text := strings.Repeat("alpha beta gamma delta epsilon. ", 20)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk)), 50, "chunk %q exceeds size", chunk)
	}
}

func TestChunkerPrefersParagraphBreaks(t *testing.T) {
	c, err := NewChunker(30, 0)
	require.NoError(t, err)

	text := "first paragraph here\n\nsecond paragraph here"
	chunks := c.Split(text)
	require.Len(t, chunks, 2)
	require.Equal(t, "first paragraph here\n\n", chunks[0])
	require.Equal(t, "second paragraph here", chunks[1])
}

func TestChunkerOverlapCarriesTail(t *testing.T) {
	c, err := NewChunker(20, 5)
	require.NoError(t, err)

	text := "aaaa bbbb cccc dddd eeee ffff gggg hhhh"
	chunks := c.Split(text)
	require.Greater(t, len(chunks), 1)
	for i := 1; i < len(chunks); i++ {
		prev := []rune(chunks[i-1])
		tail := string(prev[len(prev)-5:])
		require.True(t, strings.HasPrefix(chunks[i], tail),
			"chunk %d %q does not start with previous tail %q", i, chunks[i], tail)
	}
}

func TestChunkerHardSplitsOversizedWord(t *testing.T) {
	c, err := NewChunker(10, 2)
	require.NoError(t, err)

	text := strings.Repeat("x", 25)
	chunks := c.Split(text)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len(chunk), 10)
	}
	// step is size-overlap, so consecutive chunks share 2 characters
	require.Equal(t, "xxxxxxxxxx", chunks[0])
	require.Len(t, chunks, 3)
}

func TestChunkerDeterministic(t *testing.T) {
	c, err := NewChunker(40, 8)
	require.NoError(t, err)

	text := strings.Repeat("the quick brown fox jumps over the lazy dog. ", 10)
	first := c.Split(text)
	second := c.Split(text)
	require.Equal(t, first, second)
}

func TestChunkerUnicodeBoundaries(t *testing.T) {
	c, err := NewChunker(10, 0)
	require.NoError(t, err)

	text := strings.Repeat("한", 25)
	chunks := c.Split(text)
	for _, chunk := range chunks {
		require.LessOrEqual(t, len([]rune(chunk)), 10)
		for _, r := range chunk {
			require.Equal(t, '한', r)
		}
	}
}
