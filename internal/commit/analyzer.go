// Package commit implements the commit analyzer: it inspects a repository's
// staged changes and classifies them the way spec.md §4.7 describes —
// symbol-level delta against the graph, breaking-change detection via
// caller queries, and a conventional-commit-style suggested type/scope.
//
// Grounded on the teacher's internal/util/git.go exec.Command idiom (see
// cochange.go and the GetStagedDiff/GetStagedFiles additions to that file)
// and internal/signals/util/git_analyzer.go's working GetCoChangedFiles body.
package commit

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/graph"
	"github.com/controlvector/cv-core/internal/model"
	"github.com/controlvector/cv-core/internal/parser"
	"github.com/controlvector/cv-core/internal/util"
)

// Analyzer computes a CommitAnalysis for a repository's staged changes.
// Graph may be nil, in which case every current symbol is reported as
// added and BaselineKnown is false, per spec.md §4.7 step 3.
type Analyzer struct {
	registry *parser.Registry
	graph    *graph.Facade
	logger   *zap.Logger
}

func NewAnalyzer(registry *parser.Registry, g *graph.Facade, logger *zap.Logger) *Analyzer {
	return &Analyzer{registry: registry, graph: g, logger: logger}
}

// AnalyzeStagedChanges implements spec.md §4.7's analyzeStaged algorithm.
func (a *Analyzer) AnalyzeStagedChanges(ctx context.Context, repo model.Repository) (model.CommitAnalysis, error) {
	rawDiff, err := util.GetStagedDiff(repo.Path)
	if err != nil {
		return model.CommitAnalysis{}, fmt.Errorf("failed to get staged diff: %w", err)
	}

	staged, err := util.GetStagedFiles(repo.Path)
	if err != nil {
		return model.CommitAnalysis{}, fmt.Errorf("failed to get staged files: %w", err)
	}

	analysis := model.CommitAnalysis{RawDiff: rawDiff, BaselineKnown: a.graph != nil}
	var filesChanged []string
	for _, f := range staged {
		filesChanged = append(filesChanged, f.Path)
		analysis.LinesAdded += f.Added
		analysis.LinesRemoved += f.Removed
	}
	analysis.FilesChanged = filesChanged

	var addedComplexity, deletedComplexity int

	for _, f := range staged {
		content, err := util.GetStagedFileContent(repo.Path, f.Path)
		if err != nil {
			a.logger.Debug("skipping staged file with no stageable content", zap.String("path", f.Path), zap.Error(err))
			continue
		}

		lang := parser.DetectLanguage(f.Path)
		pf, _, err := a.registry.ParseFile(repo.ID, f.Path, content, lang)
		if err != nil {
			a.logger.Warn("failed to parse staged file for commit analysis", zap.String("path", f.Path), zap.Error(err))
			continue
		}
		current := pf.Symbols

		if a.graph == nil {
			for _, s := range current {
				analysis.SymbolsAdded = append(analysis.SymbolsAdded, s.QualifiedName)
				addedComplexity += s.Complexity
			}
			continue
		}

		prior, err := a.graph.GetSymbolsForFile(ctx, repo.ID, f.Path)
		if err != nil {
			a.logger.Warn("failed to read prior symbols from graph", zap.String("path", f.Path), zap.Error(err))
			continue
		}

		added, modified, deleted := diffSymbols(prior, current)
		for _, s := range added {
			analysis.SymbolsAdded = append(analysis.SymbolsAdded, s.QualifiedName)
			addedComplexity += s.Complexity
		}
		for _, s := range deleted {
			analysis.SymbolsDeleted = append(analysis.SymbolsDeleted, s.QualifiedName)
			deletedComplexity += s.Complexity
		}
		for _, s := range modified {
			analysis.SymbolsModified = append(analysis.SymbolsModified, s.QualifiedName)
		}

		for _, s := range deleted {
			if bc, ok := a.breakingChange(ctx, repo.ID, f.Path, s.QualifiedName, "deleted"); ok {
				analysis.BreakingChanges = append(analysis.BreakingChanges, bc)
			}
		}
		for _, s := range modified {
			if bc, ok := a.breakingChange(ctx, repo.ID, f.Path, s.QualifiedName, "signature changed"); ok {
				analysis.BreakingChanges = append(analysis.BreakingChanges, bc)
			}
		}
	}

	analysis.Breaking = len(analysis.BreakingChanges) > 0
	analysis.ComplexityDelta = addedComplexity - deletedComplexity
	analysis.Kind = suggestType(filesChanged, analysis.SymbolsAdded, analysis.SymbolsModified, analysis.SymbolsDeleted)
	analysis.Scope = suggestScope(filesChanged)

	return analysis, nil
}

// breakingChange queries the graph for qualifiedName's callers and reports
// it as breaking when at least one caller lives outside ownerFile, per
// spec.md §4.7 step 5.
func (a *Analyzer) breakingChange(ctx context.Context, repoID, ownerFile, qualifiedName, reason string) (model.BreakingChange, bool) {
	callers, err := a.graph.GetCallers(ctx, repoID, qualifiedName, 1)
	if err != nil {
		a.logger.Warn("failed to query callers for breaking-change detection", zap.String("symbol", qualifiedName), zap.Error(err))
		return model.BreakingChange{}, false
	}

	var external []string
	for _, caller := range callers {
		if callerFile(caller) != ownerFile {
			external = append(external, caller)
		}
	}
	if len(external) == 0 {
		return model.BreakingChange{}, false
	}
	return model.BreakingChange{QualifiedName: qualifiedName, Reason: reason, AffectedCallers: external}, true
}

// callerFile extracts the file component of a "path:[Class.]name" qualified
// name, per spec.md §3's SymbolNode.qualifiedName format.
func callerFile(qualifiedName string) string {
	if i := strings.Index(qualifiedName, ":"); i >= 0 {
		return qualifiedName[:i]
	}
	return qualifiedName
}

// diffSymbols compares a file's prior and current symbol sets by
// qualifiedName: new names are added, names present in both with a changed
// signature are modified, and names missing from current are deleted.
func diffSymbols(prior, current []model.SymbolNode) (added, modified, deleted []model.SymbolNode) {
	priorByName := make(map[string]model.SymbolNode, len(prior))
	for _, s := range prior {
		priorByName[s.QualifiedName] = s
	}
	currentByName := make(map[string]bool, len(current))

	for _, s := range current {
		currentByName[s.QualifiedName] = true
		old, existed := priorByName[s.QualifiedName]
		switch {
		case !existed:
			added = append(added, s)
		case old.Signature != s.Signature:
			modified = append(modified, s)
		}
	}
	for _, s := range prior {
		if !currentByName[s.QualifiedName] {
			deleted = append(deleted, s)
		}
	}
	return added, modified, deleted
}

var (
	testPathRe = regexp.MustCompile(`(?i)(^|/)(test|tests|__tests__|spec)(/|_test\.|\.test\.|\.spec\.)|_test\.go$|test_.*\.py$`)
	docsPathRe = regexp.MustCompile(`(?i)(^|/)(docs?)/|\.md$|^readme`)
	buildPathRe = regexp.MustCompile(`(?i)package\.json$|tsconfig.*\.json$|.*\.config\.[jt]s$|.*\.ya?ml$|go\.mod$|go\.sum$`)
	ciPathRe    = regexp.MustCompile(`(?i)(^|/)\.github/workflows/|(^|/)\.gitlab-ci|(^|/)\.circleci/|(^|/)Jenkinsfile$`)
)

// suggestType implements spec.md §4.7 step 6's type heuristic.
func suggestType(filesChanged, added, modified, deleted []string) model.CommitKind {
	if len(filesChanged) == 0 {
		return model.CommitUnknown
	}

	allMatch := func(re *regexp.Regexp) bool {
		for _, f := range filesChanged {
			if !re.MatchString(f) {
				return false
			}
		}
		return true
	}
	anyMatch := func(re *regexp.Regexp) bool {
		for _, f := range filesChanged {
			if re.MatchString(f) {
				return true
			}
		}
		return false
	}

	switch {
	case allMatch(testPathRe):
		return model.CommitTest
	case allMatch(docsPathRe):
		return model.CommitDocs
	case allMatch(buildPathRe):
		return model.CommitBuild
	case anyMatch(ciPathRe):
		return model.CommitCI
	}

	nAdded, nModified, nDeleted := len(added), len(modified), len(deleted)

	switch {
	case nAdded > 0 && nDeleted == 0 && nModified == 0:
		return model.CommitFeat
	case nAdded > 0 && nDeleted == 0:
		if nModified >= 2*nAdded {
			return model.CommitRefactor
		}
		return model.CommitFeat
	case nDeleted > 0 && nAdded == 0 && nModified == 0:
		return model.CommitRefactor
	case nModified > 0 && nAdded == 0 && nDeleted == 0:
		return model.CommitFix
	default:
		return model.CommitChore
	}
}

// suggestScope implements spec.md §4.7 step 7: the most frequent second
// directory component under packages/, src/, or lib/, falling back to the
// first directory component.
func suggestScope(filesChanged []string) string {
	counts := make(map[string]int)
	for _, f := range filesChanged {
		parts := strings.Split(path.Clean(f), "/")
		for i, p := range parts {
			if (p == "packages" || p == "src" || p == "lib") && i+1 < len(parts) {
				counts[parts[i+1]]++
				break
			}
		}
	}
	if scope := mostFrequent(counts); scope != "" {
		return scope
	}

	fallback := make(map[string]int)
	for _, f := range filesChanged {
		parts := strings.Split(path.Clean(f), "/")
		if len(parts) > 1 {
			fallback[parts[0]]++
		}
	}
	return mostFrequent(fallback)
}

func mostFrequent(counts map[string]int) string {
	var best string
	var bestCount int
	keys := make([]string, 0, len(counts))
	for k := range counts {
		keys = append(keys, k)
	}
	sort.Strings(keys) // stable tie-break
	for _, k := range keys {
		if counts[k] > bestCount {
			best, bestCount = k, counts[k]
		}
	}
	return best
}
