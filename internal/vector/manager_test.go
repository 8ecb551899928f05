package vector

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/config"
	"github.com/controlvector/cv-core/internal/model"
)

type fakeEmbeddingModel struct {
	backend EmbeddingBackend
	model   string
	dims    int
}

func (f *fakeEmbeddingModel) Backend() EmbeddingBackend { return f.backend }
func (f *fakeEmbeddingModel) Model() string              { return f.model }
func (f *fakeEmbeddingModel) Dimensions() int             { return f.dims }
func (f *fakeEmbeddingModel) Embed(ctx context.Context, text string) ([]float32, error) {
	return make([]float32, f.dims), nil
}
func (f *fakeEmbeddingModel) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = make([]float32, f.dims)
	}
	return out, nil
}

type fakeVectorDB struct {
	collections map[string]CollectionCompatibility
	upserted    map[string][]Point
	deleted     map[string][2]string // collection -> [key, value]
	searchResults []SearchResult
}

func newFakeVectorDB() *fakeVectorDB {
	return &fakeVectorDB{
		collections: make(map[string]CollectionCompatibility),
		upserted:    make(map[string][]Point),
		deleted:     make(map[string][2]string),
	}
}

func (f *fakeVectorDB) EnsureCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error {
	if _, exists := f.collections[collection]; !exists {
		f.collections[collection] = CollectionCompatibility{ExistingDims: dims}
	}
	return nil
}

func (f *fakeVectorDB) CollectionInfo(ctx context.Context, collection string) (CollectionCompatibility, bool, error) {
	info, exists := f.collections[collection]
	return info, exists, nil
}

func (f *fakeVectorDB) RecreateCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error {
	f.collections[collection] = CollectionCompatibility{ExistingDims: dims}
	return nil
}

func (f *fakeVectorDB) DeleteCollection(ctx context.Context, collection string) error {
	delete(f.collections, collection)
	return nil
}

func (f *fakeVectorDB) UpsertBatch(ctx context.Context, collection string, points []Point) error {
	f.upserted[collection] = append(f.upserted[collection], points...)
	return nil
}

func (f *fakeVectorDB) DeleteWhere(ctx context.Context, collection string, payloadKey, payloadValue string) error {
	f.deleted[collection] = [2]string{payloadKey, payloadValue}
	return nil
}

func (f *fakeVectorDB) Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]SearchResult, error) {
	return f.searchResults, nil
}

func (f *fakeVectorDB) Close() error { return nil }

func TestSelectBackendExplicitLocalWins(t *testing.T) {
	local := &fakeEmbeddingModel{backend: BackendLocal}
	cloudA := &fakeEmbeddingModel{backend: BackendCloudA}

	picked, err := SelectBackend(config.EmbeddingBackendLocal, local, cloudA, nil)

	require.NoError(t, err)
	assert.Same(t, local, picked)
}

func TestSelectBackendPrefersCloudAOverCloudB(t *testing.T) {
	cloudA := &fakeEmbeddingModel{backend: BackendCloudA}
	cloudB := &fakeEmbeddingModel{backend: BackendCloudB}

	picked, err := SelectBackend("", nil, cloudA, cloudB)

	require.NoError(t, err)
	assert.Same(t, cloudA, picked)
}

func TestSelectBackendFallsBackToLocal(t *testing.T) {
	local := &fakeEmbeddingModel{backend: BackendLocal}

	picked, err := SelectBackend("", local, nil, nil)

	require.NoError(t, err)
	assert.Same(t, local, picked)
}

func TestSelectBackendErrorsWhenNoneConfigured(t *testing.T) {
	_, err := SelectBackend("", nil, nil, nil)
	assert.Error(t, err)
}

func TestCollectionNameIsPerRepoPerKind(t *testing.T) {
	assert.Equal(t, "repo1_code_chunks", CollectionName("repo1", CollectionCodeChunks))
	assert.Equal(t, "repo1_docstrings", CollectionName("repo1", CollectionDocstrings))
	assert.Equal(t, "repo1_commits", CollectionName("repo1", CollectionCommits))
	assert.Equal(t, "repo1_document_chunks", CollectionName("repo1", CollectionDocumentChunks))
}

func newTestManager(active EmbeddingModel, db *fakeVectorDB) *Manager {
	return NewManager(db, active, zap.NewNop())
}

func TestEnsureAllCollectionsCreatesAllFour(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 1536}, db)

	require.NoError(t, m.EnsureAllCollections(context.Background(), "repo1"))

	for _, kind := range AllCollections {
		_, exists := db.collections[CollectionName("repo1", kind)]
		assert.True(t, exists, "expected collection %s to exist", kind)
	}
}

func TestMigrateCollectionIfNeededCreatesWhenMissing(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 1536}, db)

	result, err := m.MigrateCollectionIfNeeded(context.Background(), "repo1", CollectionCodeChunks, false)

	require.NoError(t, err)
	assert.Equal(t, 1536, result.NewDims)
	assert.False(t, result.Migrated)
}

func TestMigrateCollectionIfNeededNoOpWhenCompatible(t *testing.T) {
	db := newFakeVectorDB()
	db.collections["repo1_code_chunks"] = CollectionCompatibility{ExistingDims: 1536}
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 1536}, db)

	result, err := m.MigrateCollectionIfNeeded(context.Background(), "repo1", CollectionCodeChunks, false)

	require.NoError(t, err)
	assert.False(t, result.Migrated)
	assert.Equal(t, 1536, result.OldDims)
}

func TestMigrateCollectionIfNeededRequiresForceOnMismatch(t *testing.T) {
	db := newFakeVectorDB()
	db.collections["repo1_code_chunks"] = CollectionCompatibility{ExistingDims: 768}
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 1536}, db)

	_, err := m.MigrateCollectionIfNeeded(context.Background(), "repo1", CollectionCodeChunks, false)

	require.Error(t, err)
	var mismatch *DimensionMismatchError
	require.ErrorAs(t, err, &mismatch)
	assert.Equal(t, 768, mismatch.ExistingDims)
	assert.Equal(t, 1536, mismatch.RequiredDims)
}

func TestMigrateCollectionIfNeededRecreatesWhenForced(t *testing.T) {
	db := newFakeVectorDB()
	db.collections["repo1_code_chunks"] = CollectionCompatibility{ExistingDims: 768, PointCount: 42}
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 1536}, db)

	result, err := m.MigrateCollectionIfNeeded(context.Background(), "repo1", CollectionCodeChunks, true)

	require.NoError(t, err)
	assert.True(t, result.Migrated)
	assert.Equal(t, int64(42), result.PointsLost)
	assert.Equal(t, 1536, result.NewDims)
}

func TestUpsertChunksEmbedsOnlyMissingVectors(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	chunks := []model.CodeChunk{
		{ID: "a:1-2", RepoID: "repo1", FilePath: "a.go", Text: "chunk a", Language: model.LanguageGo},
		{ID: "b:1-2", RepoID: "repo1", FilePath: "b.go", Text: "chunk b", Language: model.LanguageGo},
	}
	precomputed := [][]float32{{1, 2}, nil}

	err := m.UpsertChunks(context.Background(), "repo1", chunks, precomputed)

	require.NoError(t, err)
	points := db.upserted["repo1_code_chunks"]
	require.Len(t, points, 2)
}

func TestUpsertChunksRoutesMarkdownToDocumentChunks(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	chunks := []model.CodeChunk{
		{ID: "readme.md:1-5", RepoID: "repo1", FilePath: "readme.md", Text: "docs", Language: model.LanguageMarkdown},
	}
	err := m.UpsertChunks(context.Background(), "repo1", chunks, [][]float32{nil})

	require.NoError(t, err)
	assert.Len(t, db.upserted["repo1_document_chunks"], 1)
	assert.Empty(t, db.upserted["repo1_code_chunks"])
}

func TestUpsertDocstringsWritesToDocstringsCollection(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	symbols := []model.SymbolNode{{ID: "a.go:F", RepoID: "repo1", QualifiedName: "a.go:F"}}
	err := m.UpsertDocstrings(context.Background(), "repo1", symbols, []string{"F does a thing"}, [][]float32{nil})

	require.NoError(t, err)
	assert.Len(t, db.upserted["repo1_docstrings"], 1)
}

func TestUpsertCommitMessageWritesToCommitsCollection(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	err := m.UpsertCommitMessage(context.Background(), "repo1", "point-1", "feat: add thing", map[string]any{"repoId": "repo1"})

	require.NoError(t, err)
	assert.Len(t, db.upserted["repo1_commits"], 1)
}

func TestSearchFiltersBelowMinScore(t *testing.T) {
	db := newFakeVectorDB()
	db.searchResults = []SearchResult{{ID: "a", Score: 0.9}, {ID: "b", Score: 0.1}}
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	results, err := m.Search(context.Background(), "repo1", CollectionCodeChunks, "query", 10, 0.5)

	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "a", results[0].ID)
}

func TestRemoveFileDeletesFromContentCollections(t *testing.T) {
	db := newFakeVectorDB()
	m := newTestManager(&fakeEmbeddingModel{model: "ada-002", dims: 2}, db)

	err := m.RemoveFile(context.Background(), "repo1", "a.go")

	require.NoError(t, err)
	assert.Equal(t, [2]string{"filePath", "a.go"}, db.deleted["repo1_code_chunks"])
	assert.Equal(t, [2]string{"filePath", "a.go"}, db.deleted["repo1_document_chunks"])
}
