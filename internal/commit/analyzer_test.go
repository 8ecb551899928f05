package commit

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/controlvector/cv-core/internal/model"
)

func TestDiffSymbolsAddedModifiedDeleted(t *testing.T) {
	prior := []model.SymbolNode{
		{QualifiedName: "a.go:F", Signature: "func F()"},
		{QualifiedName: "a.go:G", Signature: "func G()"},
	}
	current := []model.SymbolNode{
		{QualifiedName: "a.go:F", Signature: "func F(x int)"},
		{QualifiedName: "a.go:H", Signature: "func H()"},
	}

	added, modified, deleted := diffSymbols(prior, current)

	assert.Len(t, added, 1)
	assert.Equal(t, "a.go:H", added[0].QualifiedName)
	assert.Len(t, modified, 1)
	assert.Equal(t, "a.go:F", modified[0].QualifiedName)
	assert.Len(t, deleted, 1)
	assert.Equal(t, "a.go:G", deleted[0].QualifiedName)
}

func TestDiffSymbolsUnchangedSignatureIsNotModified(t *testing.T) {
	prior := []model.SymbolNode{{QualifiedName: "a.go:F", Signature: "func F()"}}
	current := []model.SymbolNode{{QualifiedName: "a.go:F", Signature: "func F()"}}

	added, modified, deleted := diffSymbols(prior, current)

	assert.Empty(t, added)
	assert.Empty(t, modified)
	assert.Empty(t, deleted)
}

func TestCallerFile(t *testing.T) {
	assert.Equal(t, "src/a.go", callerFile("src/a.go:Foo"))
	assert.Equal(t, "src/a.go", callerFile("src/a.go:Class.Method"))
	assert.Equal(t, "standalone", callerFile("standalone"))
}

func TestSuggestTypeAllTests(t *testing.T) {
	files := []string{"pkg/foo_test.go", "pkg/bar_test.go"}
	assert.Equal(t, model.CommitTest, suggestType(files, nil, nil, nil))
}

func TestSuggestTypeAllDocs(t *testing.T) {
	files := []string{"docs/guide.md", "README.md"}
	assert.Equal(t, model.CommitDocs, suggestType(files, nil, nil, nil))
}

func TestSuggestTypeCI(t *testing.T) {
	files := []string{".github/workflows/ci.yaml", "Jenkinsfile"}
	assert.Equal(t, model.CommitCI, suggestType(files, nil, nil, nil))
}

func TestSuggestTypeAdditionsOnlyIsFeat(t *testing.T) {
	files := []string{"pkg/new.go"}
	added := []string{"pkg/new.go:New"}
	assert.Equal(t, model.CommitFeat, suggestType(files, added, nil, nil))
}

func TestSuggestTypeHeavyModificationFlipsToRefactor(t *testing.T) {
	files := []string{"pkg/a.go"}
	added := []string{"pkg/a.go:New"}
	modified := []string{"pkg/a.go:M1", "pkg/a.go:M2"}
	assert.Equal(t, model.CommitRefactor, suggestType(files, added, modified, nil))
}

func TestSuggestTypeDeletionsOnlyIsRefactor(t *testing.T) {
	files := []string{"pkg/a.go"}
	deleted := []string{"pkg/a.go:Old"}
	assert.Equal(t, model.CommitRefactor, suggestType(files, nil, nil, deleted))
}

func TestSuggestTypeModificationsOnlyIsFix(t *testing.T) {
	files := []string{"pkg/a.go"}
	modified := []string{"pkg/a.go:M"}
	assert.Equal(t, model.CommitFix, suggestType(files, nil, modified, nil))
}

func TestSuggestTypeMixedIsChore(t *testing.T) {
	files := []string{"pkg/a.go"}
	added := []string{"pkg/a.go:New"}
	deleted := []string{"pkg/a.go:Old"}
	assert.Equal(t, model.CommitChore, suggestType(files, added, nil, deleted))
}

func TestSuggestTypeNoFilesIsUnknown(t *testing.T) {
	assert.Equal(t, model.CommitUnknown, suggestType(nil, nil, nil, nil))
}

func TestSuggestScopeUnderSrc(t *testing.T) {
	files := []string{"src/auth/login.go", "src/auth/logout.go", "src/billing/invoice.go"}
	assert.Equal(t, "auth", suggestScope(files))
}

func TestSuggestScopeFallsBackToFirstSegment(t *testing.T) {
	files := []string{"cmd/cv-core/main.go", "cmd/cv-core/flags.go"}
	assert.Equal(t, "cmd", suggestScope(files))
}

func TestSuggestScopeEmptyWhenNoDirectories(t *testing.T) {
	assert.Equal(t, "", suggestScope([]string{"README.md"}))
}
