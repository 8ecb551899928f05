package parser

import (
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
	"github.com/controlvector/cv-core/internal/parser/regexfallback"
)

// Registry is the parser registry: it loads a native tree-sitter parser per
// language on first use, recording per-language ParserMode, and falls back
// to the regex engine when the native grammar fails to load. Grounded on the
// teacher's parse.FileParser, which eagerly builds one shared
// *tree_sitter.Parser and reconfigures its language per call; Registry
// instead keeps one nativeParser per language so a load failure on one
// language doesn't affect the others, per SPEC_FULL.md §3's supplement.
type Registry struct {
	logger   *zap.Logger
	fallback *regexfallback.Parser

	mu      sync.Mutex
	natives map[model.Language]*nativeParser
	modes   map[model.Language]model.ParserMode
}

func NewRegistry(logger *zap.Logger) *Registry {
	return &Registry{
		logger:   logger,
		fallback: regexfallback.New(),
		natives:  make(map[model.Language]*nativeParser),
		modes:    make(map[model.Language]model.ParserMode),
	}
}

// ParseFile parses content as lang, preferring the native tier and falling
// back to regex parsing if the native grammar can't be loaded or the
// language has none (e.g. Markdown).
func (r *Registry) ParseFile(repoID, path string, content []byte, lang model.Language) (model.ParsedFile, model.ParserMode, error) {
	if lang == model.LanguageUnknown {
		return model.ParsedFile{}, model.ParserModeFallback, fmt.Errorf("cannot parse file with unknown language: %s", path)
	}

	if np, err := r.nativeFor(lang); err == nil {
		pf, perr := np.parse(repoID, path, content)
		if perr == nil {
			return pf, model.ParserModeNative, nil
		}
		r.logger.Warn("native parse failed, falling back to regex",
			zap.String("path", path), zap.String("language", string(lang)), zap.Error(perr))
		r.mu.Lock()
		r.modes[lang] = model.ParserModeFallback
		r.mu.Unlock()
	}

	pf, err := r.fallback.Parse(repoID, path, content, lang)
	return pf, model.ParserModeFallback, err
}

// Mode reports the tier recorded for a language, for SyncState: native once
// its grammar has loaded, fallback once the grammar failed to load or a
// native parse of it fell back to regex, and fallback for a language not
// seen yet.
func (r *Registry) Mode(lang model.Language) model.ParserMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	if mode, ok := r.modes[lang]; ok {
		return mode
	}
	return model.ParserModeFallback
}

// DominantMode reports model.ParserModeFallback if any language ever fell
// back, and model.ParserModeNative only if every language parsed so far
// used native grammars, per SPEC_FULL.md §3.
func (r *Registry) DominantMode() model.ParserMode {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, mode := range r.modes {
		if mode == model.ParserModeFallback {
			return model.ParserModeFallback
		}
	}
	return model.ParserModeNative
}

func (r *Registry) nativeFor(lang model.Language) (np *nativeParser, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if np, ok := r.natives[lang]; ok {
		return np, nil
	}

	// Loading a tree-sitter grammar can panic on a build without its cgo
	// dependencies satisfied; recover so one missing grammar doesn't take
	// down the whole registry.
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("panic loading native grammar for %s: %v", lang, rec)
			r.modes[lang] = model.ParserModeFallback
		}
	}()

	np, err = newNativeParser(lang)
	if err != nil {
		r.modes[lang] = model.ParserModeFallback
		return nil, err
	}
	r.natives[lang] = np
	r.modes[lang] = model.ParserModeNative
	return np, nil
}
