package parser

import (
	"strings"

	"github.com/controlvector/cv-core/internal/model"
)

// DefaultWholeFileChunkMaxLines is the default threshold for
// Chunk's whole-file fallback rule, overridable via config.SyncConfig.
const DefaultWholeFileChunkMaxLines = 200

// Chunk derives the code chunks for a parsed file, following the rule in
// SPEC_FULL.md §4 (unchanged from spec.md): one chunk per function/method/
// class (or Go struct) symbol; a whole-file chunk only when the file has no
// such symbols and is under maxLines; otherwise no chunk is produced for
// that file. Variable, constant, interface and type-alias symbols get no
// chunk of their own.
//
// Grounded on the teacher's CodeChunkService.parseAndChunk, generalized to
// apply the whole-file threshold uniformly regardless of parser tier (native
// or fallback), per SPEC_FULL.md §10's Open Question resolution.
func Chunk(pf model.ParsedFile, content []byte, maxLines int) []model.CodeChunk {
	if maxLines <= 0 {
		maxLines = DefaultWholeFileChunkMaxLines
	}
	lines := strings.Split(string(content), "\n")

	var symbols []model.SymbolNode
	for _, sym := range pf.Symbols {
		switch sym.Kind {
		case model.SymbolVariable, model.SymbolConstant, model.SymbolInterface, model.SymbolType:
			continue
		}
		symbols = append(symbols, sym)
	}

	if len(symbols) == 0 {
		if pf.LineCount >= maxLines {
			return nil
		}
		if strings.TrimSpace(string(content)) == "" {
			return nil
		}
		return []model.CodeChunk{{
			ID:        model.NewChunkID(pf.Path, 1, pf.LineCount),
			RepoID:    pf.RepoID,
			FilePath:  pf.Path,
			StartLine: 1,
			EndLine:   pf.LineCount,
			Text:      string(content),
			Language:  pf.Language,
		}}
	}

	chunks := make([]model.CodeChunk, 0, len(symbols))
	for _, sym := range symbols {
		text := sliceLines(lines, sym.StartLine, sym.EndLine)
		chunks = append(chunks, model.CodeChunk{
			ID:         model.NewChunkID(pf.Path, sym.StartLine, sym.EndLine),
			RepoID:     pf.RepoID,
			FilePath:   pf.Path,
			StartLine:  sym.StartLine,
			EndLine:    sym.EndLine,
			Text:       text,
			SymbolID:   sym.QualifiedName,
			Language:   pf.Language,
			SymbolKind: sym.Kind,
			SymbolName: sym.Name,
			DocComment: sym.DocComment,
		})
	}
	return chunks
}

// sliceLines returns lines[start-1:end] (1-based inclusive), clamped to the
// file's actual bounds.
func sliceLines(lines []string, start, end int) string {
	if start < 1 {
		start = 1
	}
	if end > len(lines) {
		end = len(lines)
	}
	if start > end {
		return ""
	}
	return strings.Join(lines[start-1:end], "\n")
}
