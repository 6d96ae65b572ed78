package chunk

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestEmbeddingText(t *testing.T) {
	c := CodeChunk{
		Content:   "function greet() { return 'hello'; }",
		StartLine: 1,
		EndLine:   1,
		ChunkType: "function_declaration",
		Name:      "greet",
		Language:  "typescript",
	}

	text := EmbeddingText(c)
	assert.Contains(t, text, "function_declaration")
	assert.Contains(t, text, "greet")
	assert.Contains(t, text, "function greet()")
}

func TestEmbeddingTextWithoutName(t *testing.T) {
	c := CodeChunk{Content: "plain block content", ChunkType: "block"}
	assert.Equal(t, "plain block content", EmbeddingText(c))
}

func TestEstimateTokens(t *testing.T) {
	text := "This is a test string for token estimation"
	tokens := EstimateTokens(text)
	assert.Greater(t, tokens, 0)
	assert.Less(t, tokens, len(text))
}

func TestEstimateChunksTokens(t *testing.T) {
	chunks := []CodeChunk{
		{Content: "first chunk content"},
		{Content: "second chunk content", ChunkType: "function", Name: "fn"},
	}
	assert.Greater(t, EstimateChunksTokens(chunks), 0)
}
