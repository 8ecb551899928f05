// Package regexfallback implements the parser registry's fallback tier: a
// single regex-rule-table-driven engine used whenever the native
// tree-sitter grammar for a language can't be loaded.
//
// Grounded on two patterns found in the retrieval pack: the per-language
// top-of-declaration regex tables in Guru2308-rag-code's regex_parser.go,
// and the //go:build !cgo fallback-parser shape in
// moabualruz-rice-search's ast-fallback.go.
package regexfallback

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"

	"github.com/controlvector/cv-core/internal/model"
)

// declPatterns names, per language, the regexes that match the start of a
// top-level function/method/class-like declaration. Complexity here is
// necessarily approximate: it counts decision keywords textually rather
// than walking a syntax tree.
var declPatterns = map[model.Language][]*regexp.Regexp{
	model.LanguageGo: {
		regexp.MustCompile(`(?m)^func\s+(\([^)]*\)\s+)?\w+`),
		regexp.MustCompile(`(?m)^type\s+\w+\s+(struct|interface)\b`),
	},
	model.LanguagePython: {
		regexp.MustCompile(`(?m)^(async\s+def\s+\w+|def\s+\w+|class\s+\w+)`),
	},
	model.LanguageJavaScript: {
		regexp.MustCompile(`(?m)^(export\s+)?(default\s+)?(async\s+)?function\s+\w+`),
		regexp.MustCompile(`(?m)^(export\s+)?(default\s+)?class\s+\w+`),
		regexp.MustCompile(`(?m)^(export\s+)?(const|let|var)\s+\w+\s*=\s*(async\s+)?\(`),
	},
	model.LanguageTypeScript: {
		regexp.MustCompile(`(?m)^(export\s+)?(async\s+)?function\s+\w+`),
		regexp.MustCompile(`(?m)^(export\s+)?(abstract\s+)?class\s+\w+`),
		regexp.MustCompile(`(?m)^(export\s+)?interface\s+\w+`),
	},
	model.LanguageJava: {
		regexp.MustCompile(`(?m)^\s*(public|private|protected|static|final|abstract|synchronized)[\w\s<>\[\]]*\s+\w+\s*\(`),
		regexp.MustCompile(`(?m)^\s*(public|private|protected)?\s*(abstract\s+)?class\s+\w+`),
		regexp.MustCompile(`(?m)^\s*(public\s+)?interface\s+\w+`),
	},
}

var decisionWords = regexp.MustCompile(`\b(if|for|while|case|catch|except|elif|&&|\|\|)\b`)

// importPatterns captures a single import target per match; languages whose
// grammar groups several imports under one parenthesized block (Go, some JS
// destructuring forms) are handled line-by-line instead, see extractImports.
var importPatterns = map[model.Language]*regexp.Regexp{
	model.LanguageGo:         regexp.MustCompile(`^\s*(?:import\s+)?"([^"]+)"`),
	model.LanguagePython:     regexp.MustCompile(`^\s*(?:from\s+(\S+)\s+import|import\s+(\S+))`),
	model.LanguageJavaScript: regexp.MustCompile(`from\s+['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\)`),
	model.LanguageTypeScript: regexp.MustCompile(`from\s+['"]([^'"]+)['"]|require\(\s*['"]([^'"]+)['"]\s*\)`),
	model.LanguageJava:       regexp.MustCompile(`^\s*import\s+(?:static\s+)?([\w.]+)\s*;`),
}

// docCommentLeader maps a language to the line-comment prefix its doc
// comments use, duplicated from the native tier's table since importing it
// here would create a parser<->regexfallback import cycle.
var docCommentLeader = map[model.Language]string{
	model.LanguageGo:         "//",
	model.LanguageJavaScript: "//",
	model.LanguageTypeScript: "//",
	model.LanguageJava:       "//",
	model.LanguagePython:     "#",
}

// Parser is the shared regex-fallback engine. It holds no state and is safe
// for concurrent use.
type Parser struct{}

func New() *Parser { return &Parser{} }

// Parse extracts approximate symbols from content using the per-language
// declaration patterns. When no pattern is registered for lang or none
// match, the result carries no symbols.
func (p *Parser) Parse(repoID, path string, content []byte, lang model.Language) (model.ParsedFile, error) {
	text := string(content)
	lines := strings.Split(text, "\n")

	sum := sha256.Sum256(content)
	pf := model.ParsedFile{
		RepoID:    repoID,
		Path:      path,
		Language:  lang,
		Hash:      hex.EncodeToString(sum[:]),
		LineCount: len(lines),
	}

	pf.Imports = extractImports(lang, lines)

	patterns, ok := declPatterns[lang]
	if !ok {
		pf.Exports = extractExports(lang, lines, pf.Symbols)
		return pf, nil
	}

	matchLines := matchingLines(lines, patterns)
	if len(matchLines) == 0 {
		pf.Exports = extractExports(lang, lines, pf.Symbols)
		return pf, nil
	}

	leader := docCommentLeader[lang]
	for i, start := range matchLines {
		end := len(lines)
		if i+1 < len(matchLines) {
			end = matchLines[i+1]
		}
		for end > start+1 && strings.TrimSpace(lines[end-1]) == "" {
			end--
		}
		body := strings.Join(lines[start:end], "\n")
		declLine := lines[start]
		name := declName(declLine)
		if name == "" {
			continue
		}
		kind := model.SymbolFunction
		if strings.Contains(declLine, "interface") {
			kind = model.SymbolInterface
		} else if strings.Contains(declLine, "class") || strings.Contains(declLine, "struct") {
			kind = model.SymbolClass
		}
		pf.Symbols = append(pf.Symbols, model.SymbolNode{
			RepoID:        repoID,
			FilePath:      path,
			Kind:          kind,
			Name:          name,
			QualifiedName: name,
			StartLine:     start + 1,
			EndLine:       end,
			Complexity:    approximateComplexity(body),
			Signature:     strings.TrimSpace(declLine),
			DocComment:    extractDocComment(lines, start+1, leader),
			Visibility:    detectVisibility(lang, declLine, name),
			IsAsync:       strings.Contains(declLine, "async "),
			IsStatic:      strings.Contains(declLine, "static "),
		})
	}

	pf.Exports = extractExports(lang, lines, pf.Symbols)

	return pf, nil
}

// extractDocComment walks upward from startLine (1-based) through the
// contiguous run of comment lines directly above it, mirroring the native
// tier's docstring rule with the same "stop at the first non-comment or
// blank line" semantics.
func extractDocComment(lines []string, startLine int, leader string) string {
	if leader == "" || startLine < 2 {
		return ""
	}
	var collected []string
	for i := startLine - 2; i >= 0; i-- {
		line := strings.TrimSpace(lines[i])
		if line == "" || !strings.HasPrefix(line, leader) {
			break
		}
		collected = append(collected, strings.TrimSpace(strings.TrimPrefix(line, leader)))
	}
	if len(collected) == 0 {
		return ""
	}
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, "\n")
}

// detectVisibility applies each language's textual modifier convention to a
// single matched declaration line: explicit private/protected keywords where
// the grammar has them, leading-underscore convention for Python, and
// capitalization for Go.
func detectVisibility(lang model.Language, declLine, name string) model.Visibility {
	switch lang {
	case model.LanguageGo:
		if name != "" && strings.ToUpper(name[:1]) == name[:1] {
			return model.VisibilityPublic
		}
		return model.VisibilityPrivate
	case model.LanguagePython:
		if strings.HasPrefix(name, "_") {
			return model.VisibilityPrivate
		}
		return model.VisibilityPublic
	case model.LanguageJavaScript, model.LanguageTypeScript, model.LanguageJava:
		if strings.Contains(declLine, "private ") {
			return model.VisibilityPrivate
		}
		if strings.Contains(declLine, "protected ") {
			return model.VisibilityProtected
		}
		return model.VisibilityPublic
	default:
		return model.VisibilityPublic
	}
}

// extractImports collects every import target in content, handling both
// single-line imports and Go's parenthesized import block (whose member
// lines carry no "import" keyword of their own).
func extractImports(lang model.Language, lines []string) []model.Import {
	pat, ok := importPatterns[lang]
	if !ok {
		return nil
	}

	var out []model.Import
	inGoBlock := false
	for i, line := range lines {
		trimmed := strings.TrimSpace(line)
		if lang == model.LanguageGo {
			if strings.HasPrefix(trimmed, "import (") {
				inGoBlock = true
				continue
			}
			if inGoBlock && trimmed == ")" {
				inGoBlock = false
				continue
			}
			if !inGoBlock && !strings.HasPrefix(trimmed, "import ") {
				continue
			}
		}

		match := pat.FindStringSubmatch(line)
		if match == nil {
			continue
		}
		var target string
		for _, g := range match[1:] {
			if g != "" {
				target = g
				break
			}
		}
		if target == "" {
			continue
		}
		out = append(out, model.Import{Path: target, Line: i + 1})
	}
	return out
}

// extractExports approximates each language's visibility-as-export rule
// textually: an "export"/"public" keyword on the declaration line, a
// capitalized Go identifier, or Python's module-level __all__ list.
func extractExports(lang model.Language, lines []string, symbols []model.SymbolNode) []model.Export {
	switch lang {
	case model.LanguageGo:
		var out []model.Export
		for _, s := range symbols {
			if s.Kind == model.SymbolMethod || s.Visibility != model.VisibilityPublic {
				continue
			}
			out = append(out, model.Export{Name: s.Name, Kind: s.Kind, Line: s.StartLine})
		}
		return out
	case model.LanguageJavaScript, model.LanguageTypeScript:
		var out []model.Export
		for _, s := range symbols {
			if s.StartLine < 1 || s.StartLine > len(lines) {
				continue
			}
			if strings.Contains(lines[s.StartLine-1], "export ") {
				out = append(out, model.Export{Name: s.Name, Kind: s.Kind, Line: s.StartLine})
			}
		}
		return out
	case model.LanguageJava:
		var out []model.Export
		for _, s := range symbols {
			if (s.Kind == model.SymbolClass || s.Kind == model.SymbolInterface) && s.Visibility == model.VisibilityPublic {
				out = append(out, model.Export{Name: s.Name, Kind: s.Kind, Line: s.StartLine})
			}
		}
		return out
	case model.LanguagePython:
		return extractPythonAllExports(lines, symbols)
	default:
		return nil
	}
}

var pythonAllPattern = regexp.MustCompile(`^\s*__all__\s*=`)
var quotedNamePattern = regexp.MustCompile(`['"](\w+)['"]`)

func extractPythonAllExports(lines []string, symbols []model.SymbolNode) []model.Export {
	byName := make(map[string]model.SymbolKind, len(symbols))
	for _, s := range symbols {
		byName[s.Name] = s.Kind
	}

	var out []model.Export
	for i, line := range lines {
		if !pythonAllPattern.MatchString(line) {
			continue
		}
		block := line
		for j := i + 1; j < len(lines) && !strings.Contains(block, "]"); j++ {
			block += "\n" + lines[j]
		}
		for _, m := range quotedNamePattern.FindAllStringSubmatch(block, -1) {
			name := m[1]
			kind, ok := byName[name]
			if !ok {
				kind = model.SymbolFunction
			}
			out = append(out, model.Export{Name: name, Kind: kind, Line: i + 1})
		}
	}
	return out
}

// approximateComplexity counts decision keywords textually. It is never
// claimed to match the native parser's tree-walk count exactly; callers
// should only rely on it being >= 1 and moving in the same direction as
// control flow density.
func approximateComplexity(body string) int {
	return 1 + len(decisionWords.FindAllString(body, -1))
}

func matchingLines(lines []string, patterns []*regexp.Regexp) []int {
	seen := make(map[int]bool)
	for _, pat := range patterns {
		for i, line := range lines {
			if pat.MatchString(line) {
				seen[i] = true
			}
		}
	}
	result := make([]int, 0, len(seen))
	for i := range seen {
		result = append(result, i)
	}
	for i := 1; i < len(result); i++ {
		for j := i; j > 0 && result[j] < result[j-1]; j-- {
			result[j], result[j-1] = result[j-1], result[j]
		}
	}
	return result
}

// declName extracts a best-effort identifier from a matched declaration
// line, stripping common keyword prefixes.
func declName(line string) string {
	line = strings.TrimSpace(line)
	for _, kw := range []string{
		"export default ", "export ", "public ", "private ", "protected ",
		"static ", "async ", "abstract ", "final ", "func ", "def ",
		"class ", "function ", "type ", "interface ", "struct ",
	} {
		if strings.HasPrefix(line, kw) {
			line = line[len(kw):]
		}
	}
	end := strings.IndexAny(line, " \t(<{:[=")
	if end > 0 {
		return line[:end]
	}
	if len(line) > 64 {
		return line[:64]
	}
	return line
}
