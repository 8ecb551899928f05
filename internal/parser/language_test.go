package parser

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/controlvector/cv-core/internal/model"
)

func TestDetectLanguage(t *testing.T) {
	tests := []struct {
		path     string
		expected model.Language
	}{
		{"main.go", model.LanguageGo},
		{"script.py", model.LanguagePython},
		{"legacy.pyw", model.LanguagePython},
		{"app.js", model.LanguageJavaScript},
		{"component.jsx", model.LanguageJavaScript},
		{"module.mjs", model.LanguageJavaScript},
		{"common.cjs", model.LanguageJavaScript},
		{"types.ts", model.LanguageTypeScript},
		{"component.tsx", model.LanguageTypeScript},
		{"Main.java", model.LanguageJava},
		{"README.md", model.LanguageMarkdown},
		{"notes.markdown", model.LanguageMarkdown},
		{"Dockerfile", model.LanguageTypeScript},
		{"config.yaml", model.LanguageTypeScript},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			assert.Equal(t, tt.expected, DetectLanguage(tt.path))
		})
	}
}

func TestIsExtensionSupported(t *testing.T) {
	assert.True(t, IsExtensionSupported(".go"))
	assert.True(t, IsExtensionSupported(".PY"))
	assert.True(t, IsExtensionSupported(".tsx"))
	assert.False(t, IsExtensionSupported(".yaml"))
	assert.False(t, IsExtensionSupported(""))
}
