package parser

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlvector/cv-core/internal/model"
)

func TestChunkWholeFileUnderThreshold(t *testing.T) {
	content := "line1\nline2\nline3"
	pf := model.ParsedFile{RepoID: "r1", Path: "notes.md", Language: model.LanguageMarkdown, LineCount: 3}

	chunks := Chunk(pf, []byte(content), 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, "notes.md:1-3", chunks[0].ID)
	assert.Equal(t, content, chunks[0].Text)
	assert.Equal(t, 1, chunks[0].StartLine)
	assert.Equal(t, 3, chunks[0].EndLine)
}

func TestChunkWholeFileOverThresholdProducesNothing(t *testing.T) {
	lines := make([]string, 250)
	for i := range lines {
		lines[i] = "x"
	}
	content := strings.Join(lines, "\n")
	pf := model.ParsedFile{RepoID: "r1", Path: "big.md", LineCount: 250}

	chunks := Chunk(pf, []byte(content), 200)

	assert.Nil(t, chunks)
}

func TestChunkEmptyFileProducesNothing(t *testing.T) {
	pf := model.ParsedFile{RepoID: "r1", Path: "empty.go", LineCount: 0}
	assert.Nil(t, Chunk(pf, []byte("   \n  "), 200))
}

func TestChunkPerSymbol(t *testing.T) {
	content := "package main\n\nfunc A() {\n  return\n}\n\nfunc B() {\n  return\n}\n"
	pf := model.ParsedFile{
		RepoID:   "r1",
		Path:     "main.go",
		Language: model.LanguageGo,
		Symbols: []model.SymbolNode{
			{QualifiedName: "main.go:A", StartLine: 3, EndLine: 5},
			{QualifiedName: "main.go:B", StartLine: 7, EndLine: 9},
		},
	}

	chunks := Chunk(pf, []byte(content), 200)

	require.Len(t, chunks, 2)
	assert.Equal(t, "main.go:3-5", chunks[0].ID)
	assert.Equal(t, "main.go:A", chunks[0].SymbolID)
	assert.Contains(t, chunks[0].Text, "func A()")
	assert.Equal(t, "main.go:7-9", chunks[1].ID)
	assert.Contains(t, chunks[1].Text, "func B()")
}

func TestChunkCarriesSymbolContextForEmbeddingTemplate(t *testing.T) {
	content := "package main\n\n// Add returns the sum.\nfunc Add(a, b int) int {\n  return a + b\n}\n"
	pf := model.ParsedFile{
		RepoID:   "r1",
		Path:     "main.go",
		Language: model.LanguageGo,
		Symbols: []model.SymbolNode{
			{
				QualifiedName: "main.go:Add", StartLine: 4, EndLine: 6,
				Kind: model.SymbolFunction, Name: "Add", DocComment: "Add returns the sum.",
			},
		},
	}

	chunks := Chunk(pf, []byte(content), 200)

	require.Len(t, chunks, 1)
	assert.Equal(t, model.SymbolFunction, chunks[0].SymbolKind)
	assert.Equal(t, "Add", chunks[0].SymbolName)
	assert.Equal(t, "Add returns the sum.", chunks[0].DocComment)
}

func TestSliceLinesClampsToBounds(t *testing.T) {
	lines := []string{"a", "b", "c"}
	assert.Equal(t, "a\nb\nc", sliceLines(lines, 0, 10))
	assert.Equal(t, "", sliceLines(lines, 5, 2))
	assert.Equal(t, "b", sliceLines(lines, 2, 2))
}
