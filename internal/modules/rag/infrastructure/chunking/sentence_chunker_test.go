package chunking

import (
	"context"
	"strings"
	"testing"

	"DocLink/pkg/xerr"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSentenceChunkerValidation(t *testing.T) {
	_, err := NewSentenceChunker(0, 0)
	assert.ErrorIs(t, err, xerr.ErrInvalidParameters)

	_, err = NewSentenceChunker(-1, 0)
	assert.ErrorIs(t, err, xerr.ErrInvalidParameters)

	_, err = NewSentenceChunker(100, -1)
	assert.ErrorIs(t, err, xerr.ErrInvalidParameters)

	c, err := NewSentenceChunker(100, 0)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestChunkEmptyInput(t *testing.T) {
	c, err := NewSentenceChunker(100, 0)
	require.NoError(t, err)

	_, err = c.Chunk(context.Background(), "")
	assert.ErrorIs(t, err, xerr.ErrEmptyInput)

	_, err = c.Chunk(context.Background(), "   \n\t  ")
	assert.ErrorIs(t, err, xerr.ErrEmptyInput)
}

func TestChunkSingleSentence(t *testing.T) {
	c, err := NewSentenceChunker(100, 0)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "Paris is the capital of France.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, "Paris is the capital of France", chunks[0])
}

func TestChunkNoTerminator(t *testing.T) {
	c, err := NewSentenceChunker(100, 0)
	require.NoError(t, err)

	text := "a document with no sentence terminators at all"
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Equal(t, text, chunks[0])
}

func TestChunkPacksSentencesUpToLimit(t *testing.T) {
	// 每句 4 个词，限制 8 词：应两两打包
	c, err := NewSentenceChunker(8, 0)
	require.NoError(t, err)

	text := "one two three four. five six seven eight. nine ten eleven twelve. thirteen fourteen fifteen sixteen."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 2)
	assert.Equal(t, "one two three four five six seven eight", chunks[0])
	assert.Equal(t, "nine ten eleven twelve thirteen fourteen fifteen sixteen", chunks[1])

	for _, chunk := range chunks {
		assert.LessOrEqual(t, len(strings.Fields(chunk)), 8)
	}
}

func TestChunkOverlongSentenceGetsOwnChunk(t *testing.T) {
	c, err := NewSentenceChunker(3, 0)
	require.NoError(t, err)

	text := "short one. this sentence has way more than three words in it. tail bit."
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)
	require.Len(t, chunks, 3)
	// 超长句不硬切，独占片段
	assert.Equal(t, "this sentence has way more than three words in it", chunks[1])
}

func TestChunkPreservesAllSentenceText(t *testing.T) {
	c, err := NewSentenceChunker(5, 0)
	require.NoError(t, err)

	text := "Alpha beta gamma. Delta epsilon. Zeta eta theta iota. Kappa!"
	chunks, err := c.Chunk(context.Background(), text)
	require.NoError(t, err)

	joined := strings.Join(chunks, " ")
	for _, word := range []string{"Alpha", "beta", "gamma", "Delta", "epsilon", "Zeta", "eta", "theta", "iota", "Kappa"} {
		assert.Contains(t, joined, word)
	}
}

func TestChunkMixedTerminators(t *testing.T) {
	c, err := NewSentenceChunker(100, 0)
	require.NoError(t, err)

	chunks, err := c.Chunk(context.Background(), "Really? Yes! Absolutely... certain.")
	require.NoError(t, err)
	require.Len(t, chunks, 1)
	assert.Contains(t, chunks[0], "Really")
	assert.Contains(t, chunks[0], "certain")
}

func TestNewRecursiveChunkerValidation(t *testing.T) {
	_, err := NewRecursiveChunker(100, 100)
	assert.ErrorIs(t, err, xerr.ErrInvalidParameters)

	_, err = NewRecursiveChunker(100, 150)
	assert.ErrorIs(t, err, xerr.ErrInvalidParameters)

	c, err := NewRecursiveChunker(100, 20)
	require.NoError(t, err)
	assert.NotNil(t, c)
}

func TestRecursiveChunkProducesBoundedChunks(t *testing.T) {
	c, err := NewRecursiveChunker(80, 10)
	require.NoError(t, err)

	var sb strings.Builder
	for i := 0; i < 30; i++ {
		sb.WriteString("The quick brown fox jumps over the lazy dog. ")
	}
	chunks, err := c.Chunk(context.Background(), sb.String())
	require.NoError(t, err)
	require.NotEmpty(t, chunks)
	for _, chunk := range chunks {
		assert.NotEmpty(t, strings.TrimSpace(chunk))
	}
}
