package regexfallback

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/controlvector/cv-core/internal/model"
)

func TestParseGoExtractsFunctionsAndTypes(t *testing.T) {
	content := []byte("package main\n\nfunc Foo() {\n\tif true {\n\t}\n}\n\ntype Bar struct {\n\tX int\n}\n")

	pf, err := New().Parse("repo1", "main.go", content, model.LanguageGo)

	require.NoError(t, err)
	require.Len(t, pf.Symbols, 2)

	var names []string
	for _, s := range pf.Symbols {
		names = append(names, s.Name)
	}
	assert.Contains(t, names, "Foo")
	assert.Contains(t, names, "Bar")
}

func TestParseGoFunctionComplexityCountsDecisionWords(t *testing.T) {
	content := []byte("package main\n\nfunc Foo() {\n\tif true {\n\t} else if false {\n\t}\n\tfor i := 0; i < 1; i++ {\n\t}\n}\n")

	pf, err := New().Parse("repo1", "main.go", content, model.LanguageGo)

	require.NoError(t, err)
	require.Len(t, pf.Symbols, 1)
	assert.GreaterOrEqual(t, pf.Symbols[0].Complexity, 3) // base 1 + if + for, at least
}

func TestParseUnsupportedLanguageReturnsNoSymbols(t *testing.T) {
	pf, err := New().Parse("repo1", "notes.md", []byte("# hello\n"), model.LanguageMarkdown)

	require.NoError(t, err)
	assert.Empty(t, pf.Symbols)
	assert.Equal(t, 2, pf.LineCount)
}

func TestParseNoMatchingDeclarationsReturnsNoSymbols(t *testing.T) {
	pf, err := New().Parse("repo1", "main.go", []byte("package main\n"), model.LanguageGo)

	require.NoError(t, err)
	assert.Empty(t, pf.Symbols)
}

func TestParseGoExtractsImportsIncludingBlock(t *testing.T) {
	content := []byte("package main\n\nimport (\n\t\"fmt\"\n\t\"os\"\n)\n\nimport \"strings\"\n\nfunc Foo() {}\n")

	pf, err := New().Parse("repo1", "main.go", content, model.LanguageGo)

	require.NoError(t, err)
	var paths []string
	for _, imp := range pf.Imports {
		paths = append(paths, imp.Path)
	}
	assert.Contains(t, paths, "fmt")
	assert.Contains(t, paths, "os")
	assert.Contains(t, paths, "strings")
}

func TestParseGoDocCommentAndVisibility(t *testing.T) {
	content := []byte("package main\n\n// Foo does a thing.\nfunc Foo() {}\n\nfunc bar() {}\n")

	pf, err := New().Parse("repo1", "main.go", content, model.LanguageGo)

	require.NoError(t, err)
	require.Len(t, pf.Symbols, 2)

	byName := map[string]model.SymbolNode{}
	for _, s := range pf.Symbols {
		byName[s.Name] = s
	}
	assert.Equal(t, "Foo does a thing.", byName["Foo"].DocComment)
	assert.Equal(t, model.VisibilityPublic, byName["Foo"].Visibility)
	assert.Equal(t, model.VisibilityPrivate, byName["bar"].Visibility)

	var exportNames []string
	for _, e := range pf.Exports {
		exportNames = append(exportNames, e.Name)
	}
	assert.Contains(t, exportNames, "Foo")
	assert.NotContains(t, exportNames, "bar")
}

func TestParsePythonAsyncAndStaticDetection(t *testing.T) {
	content := []byte("class Widget:\n    @staticmethod\n    def make():\n        pass\n\nasync def fetch():\n    pass\n")

	pf, err := New().Parse("repo1", "widget.py", content, model.LanguagePython)

	require.NoError(t, err)
	byName := map[string]model.SymbolNode{}
	for _, s := range pf.Symbols {
		byName[s.Name] = s
	}
	require.Contains(t, byName, "fetch")
	assert.True(t, byName["fetch"].IsAsync)
}

func TestParsePythonAllExports(t *testing.T) {
	content := []byte("__all__ = [\"foo\", \"Bar\"]\n\ndef foo():\n    pass\n\nclass Bar:\n    pass\n")

	pf, err := New().Parse("repo1", "mod.py", content, model.LanguagePython)

	require.NoError(t, err)
	var names []string
	for _, e := range pf.Exports {
		names = append(names, e.Name)
	}
	assert.ElementsMatch(t, []string{"foo", "Bar"}, names)
}
