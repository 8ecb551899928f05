package parser

import "strings"

// docCommentLeader maps a language to the line-comment prefix its doc
// comments use. Languages without a line-comment convention in this table
// (e.g. Markdown) get no docstring extraction.
var docCommentLeader = map[string]string{
	"go":         "//",
	"javascript": "//",
	"typescript": "//",
	"java":       "//",
	"python":     "#",
}

// extractDocComment walks upward from startLine (1-based, the symbol's first
// line) through lines, accumulating the contiguous run of comment lines
// immediately above it, and returns them joined in source order. Stops at
// the first blank or non-comment line, per spec.md §4.2's docstring rule.
// Block comments (/* ... */, Python triple-quoted strings) are left to the
// caller: this only recognizes single-line leaders, which cover the common
// case in every language this package parses natively.
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
		text := strings.TrimSpace(strings.TrimPrefix(line, leader))
		collected = append(collected, text)
	}
	if len(collected) == 0 {
		return ""
	}
	for i, j := 0, len(collected)-1; i < j; i, j = i+1, j-1 {
		collected[i], collected[j] = collected[j], collected[i]
	}
	return strings.Join(collected, "\n")
}
