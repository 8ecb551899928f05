package vector

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/controlvector/cv-core/internal/model"
)

func TestBuildEmbeddingTextIncludesLanguageFilePathAndSymbol(t *testing.T) {
	text := BuildEmbeddingText(model.CodeChunk{
		Language:   model.LanguageGo,
		FilePath:   "internal/foo/bar.go",
		SymbolKind: model.SymbolFunction,
		SymbolName: "DoThing",
		DocComment: "DoThing does a thing.",
		Text:       "func DoThing() {}",
	})

	assert.True(t, strings.HasPrefix(text, "language: go\nfile: internal/foo/bar.go\n"))
	assert.Contains(t, text, "symbol: function DoThing")
	assert.Contains(t, text, "doc: DoThing does a thing.")
	assert.True(t, strings.HasSuffix(text, "func DoThing() {}"))
}

func TestBuildEmbeddingTextOmitsEmptySymbolAndDoc(t *testing.T) {
	text := BuildEmbeddingText(model.CodeChunk{
		Language: model.LanguageMarkdown,
		FilePath: "README.md",
		Text:     "# hello",
	})

	assert.NotContains(t, text, "symbol:")
	assert.NotContains(t, text, "doc:")
	assert.True(t, strings.HasSuffix(text, "# hello"))
}
