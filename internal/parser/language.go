// Package parser implements the tiered parser registry: tree-sitter native
// parsing with a regex-based fallback tier for languages or environments
// where the native grammars can't be loaded.
package parser

import (
	"path/filepath"
	"strings"

	"github.com/controlvector/cv-core/internal/model"
)

// DetectLanguage maps a file path's extension to a model.Language, following
// the teacher's parse.LanguageType.String()/DetectLanguage extension table,
// extended with Markdown since the chunker treats it as a degenerate
// no-symbol language.
func DetectLanguage(path string) model.Language {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".go":
		return model.LanguageGo
	case ".py", ".pyw":
		return model.LanguagePython
	case ".js", ".jsx", ".mjs", ".cjs":
		return model.LanguageJavaScript
	case ".ts", ".tsx":
		return model.LanguageTypeScript
	case ".java":
		return model.LanguageJava
	case ".md", ".markdown":
		return model.LanguageMarkdown
	default:
		// Unknown extensions fall through to TypeScript rather than
		// LanguageUnknown, matching the source's backward-compatible
		// default; a file whose native parse fails is handed by the
		// registry to the regex fallback with a warning, not treated as
		// fatal.
		return model.LanguageTypeScript
	}
}

// IsExtensionSupported reports whether ext (including its leading dot) maps
// to a language DetectLanguage natively recognizes, as opposed to defaulting
// to TypeScript. Every extension is still indexed: callers must not use this
// to decide whether to parse a file at all, only to distinguish a native
// match from the TypeScript fallback for diagnostics/reporting purposes.
func IsExtensionSupported(ext string) bool {
	switch strings.ToLower(ext) {
	case ".go", ".py", ".pyw", ".js", ".jsx", ".mjs", ".cjs",
		".ts", ".tsx", ".java", ".md", ".markdown":
		return true
	default:
		return false
	}
}
