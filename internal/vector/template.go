package vector

import (
	"strings"

	"github.com/controlvector/cv-core/internal/model"
)

// BuildEmbeddingText renders the deterministic embedding-text template
// spec.md §4.6 step 4 requires: language, file path, symbol kind+name,
// docstring, then the raw chunk text, each on its own line. Applying this
// before every embed call (and before every cache lookup/store, so the two
// stay keyed the same way) lets the embedding carry the chunk's surrounding
// context instead of just its bare body.
func BuildEmbeddingText(c model.CodeChunk) string {
	var b strings.Builder
	b.WriteString("language: ")
	b.WriteString(string(c.Language))
	b.WriteString("\nfile: ")
	b.WriteString(c.FilePath)
	if c.SymbolName != "" {
		b.WriteString("\nsymbol: ")
		b.WriteString(string(c.SymbolKind))
		b.WriteString(" ")
		b.WriteString(c.SymbolName)
	}
	if c.DocComment != "" {
		b.WriteString("\ndoc: ")
		b.WriteString(c.DocComment)
	}
	b.WriteString("\n\n")
	b.WriteString(c.Text)
	return b.String()
}
