package model

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNormalizeEmbeddingTextCollapsesWhitespace(t *testing.T) {
	assert.Equal(t, "func F() int", NormalizeEmbeddingText("  func F()   int\n\n"))
}

func TestNewEmbeddingIDIsDeterministic(t *testing.T) {
	id1 := NewEmbeddingID("ada-002", "func F() int { return 1 }")
	id2 := NewEmbeddingID("ada-002", "func F() int { return 1 }")
	assert.Equal(t, id1, id2)
	assert.Len(t, id1, 16)
}

func TestNewEmbeddingIDIgnoresWhitespaceDifferences(t *testing.T) {
	id1 := NewEmbeddingID("ada-002", "func F()  int")
	id2 := NewEmbeddingID("ada-002", "func F() int")
	assert.Equal(t, id1, id2)
}

func TestNewEmbeddingIDDiffersByModel(t *testing.T) {
	id1 := NewEmbeddingID("ada-002", "same text")
	id2 := NewEmbeddingID("nomic-embed-text", "same text")
	assert.NotEqual(t, id1, id2)
}

func TestNewChunkIDFormat(t *testing.T) {
	assert.Equal(t, "pkg/file.go:10-20", NewChunkID("pkg/file.go", 10, 20))
}

func TestNewTextHashIsDeterministicAndModelIndependent(t *testing.T) {
	h1 := NewTextHash("func F() int { return 1 }")
	h2 := NewTextHash("func F()  int { return 1 }")
	assert.Equal(t, h1, h2)
	assert.Len(t, h1, 32)
}

func TestNewTextHashDiffersByText(t *testing.T) {
	assert.NotEqual(t, NewTextHash("a"), NewTextHash("b"))
}
