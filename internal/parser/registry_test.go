package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
)

func TestParseFileFallsBackForUnsupportedNativeLanguage(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	pf, mode, err := r.ParseFile("repo1", "notes.md", []byte("# heading\n"), model.LanguageMarkdown)

	require.NoError(t, err)
	assert.Equal(t, model.ParserModeFallback, mode)
	assert.Equal(t, "repo1", pf.RepoID)
}

func TestParseFileRejectsUnknownLanguage(t *testing.T) {
	r := NewRegistry(zap.NewNop())

	_, _, err := r.ParseFile("repo1", "mystery", []byte("???"), model.LanguageUnknown)

	assert.Error(t, err)
}

func TestModeDefaultsToFallbackForUnseenLanguage(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	assert.Equal(t, model.ParserModeFallback, r.Mode(model.LanguageMarkdown))
}

func TestDominantModeIsFallbackAfterAFallbackParse(t *testing.T) {
	r := NewRegistry(zap.NewNop())
	_, _, err := r.ParseFile("repo1", "notes.md", []byte("# heading\n"), model.LanguageMarkdown)
	require.NoError(t, err)

	assert.Equal(t, model.ParserModeFallback, r.DominantMode())
}
