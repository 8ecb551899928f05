// Package vector brokers between the graph-adjacent sync/commit pipelines
// and a remote vector store, selecting one of three embedding backends
// (local, cloudA, cloudB) per spec.md §4.4.
//
// Grounded on the teacher's internal/service/vector.CodeChunkService, which
// couples a single VectorDatabase/EmbeddingModel pair; this package
// generalizes that pairing into a Manager that owns backend selection,
// batching, retry, and collection-dimension migration, and on
// smartramana-developer-mesh's EmbeddingManager for the "registry of named
// backends behind one interface" shape.
package vector

import (
	"context"
	"fmt"
)

// DistanceMetric names a vector store's similarity metric.
type DistanceMetric string

const DistanceMetricCosine DistanceMetric = "cosine"

// Collection names one of the four per-repository vector-store collections
// spec.md §4.4/§6 require: code chunks, docstrings, commit messages, and
// whole-file document chunks (markdown and the like) each get their own
// collection so an embedding-model switch or point-count query on one never
// entangles with the others.
type Collection string

const (
	CollectionCodeChunks     Collection = "code_chunks"
	CollectionDocstrings     Collection = "docstrings"
	CollectionCommits        Collection = "commits"
	CollectionDocumentChunks Collection = "document_chunks"
)

// AllCollections enumerates every collection a repository gets, in the
// fixed order spec.md §6 lists them.
var AllCollections = []Collection{CollectionCodeChunks, CollectionDocstrings, CollectionCommits, CollectionDocumentChunks}

// Point is a single vector-store record: a cached/content-addressed id, its
// vector, and an opaque payload (file, language, symbol context, etc).
type Point struct {
	ID      string
	Vector  []float32
	Payload map[string]any
}

// SearchResult is a single k-NN hit.
type SearchResult struct {
	ID      string
	Score   float32
	Payload map[string]any
}

// CollectionCompatibility reports whether an existing collection's
// dimensionality matches the active embedding model.
type CollectionCompatibility struct {
	ExistingDims    int
	RequiredDims    int
	NeedsRecreation bool
	PointCount      int64
}

// MigrationResult reports the outcome of migrateCollectionIfNeeded.
type MigrationResult struct {
	Migrated   bool
	PointsLost int64
	OldDims    int
	NewDims    int
}

// VectorDatabase is the store-side contract: collection lifecycle, upserts,
// and k-NN search. Backed by Qdrant in this module.
type VectorDatabase interface {
	EnsureCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error
	CollectionInfo(ctx context.Context, collection string) (CollectionCompatibility, bool, error)
	RecreateCollection(ctx context.Context, collection string, dims int, metric DistanceMetric) error
	DeleteCollection(ctx context.Context, collection string) error

	UpsertBatch(ctx context.Context, collection string, points []Point) error
	DeleteWhere(ctx context.Context, collection string, payloadKey, payloadValue string) error

	Search(ctx context.Context, collection string, query []float32, limit int, filter map[string]string) ([]SearchResult, error)

	Close() error
}

// EmbeddingBackend names one of the three recognized embedding providers.
type EmbeddingBackend string

const (
	BackendLocal  EmbeddingBackend = "local"
	BackendCloudA EmbeddingBackend = "cloudA"
	BackendCloudB EmbeddingBackend = "cloudB"
)

// EmbeddingModel is the backend-side contract every provider implements.
type EmbeddingModel interface {
	Backend() EmbeddingBackend
	Model() string
	Dimensions() int
	Embed(ctx context.Context, text string) ([]float32, error)
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// knownDimensions is the static model -> dimension table named in
// spec.md §4.4.
var knownDimensions = map[string]int{
	"3-small":           1536,
	"ada-002":           1536,
	"3-large":           3072,
	"nomic-embed-text":  768,
	"mxbai-embed-large": 1024,
	"all-minilm":        384,
}

// DimensionsFor returns the known vector width for model, or 0 if the model
// isn't in the static table (callers should then probe the backend).
func DimensionsFor(model string) int {
	return knownDimensions[model]
}

// ErrAccessDenied is returned by an EmbeddingModel when the backend reports
// 403/"model not accessible". withRetry returns it at once, without backoff;
// Manager keeps no list of fallback models, so it does not switch to another
// model and passes the error on to its caller.
var ErrAccessDenied = fmt.Errorf("embedding backend denied access to model")

// ErrTransient is returned (or wrapped) by an EmbeddingModel for a retryable
// failure: provider unavailable, 429, 503, or a network timeout.
var ErrTransient = fmt.Errorf("embedding backend returned a transient error")

// DimensionMismatchError is returned by MigrateCollectionIfNeeded when a
// collection's dimension doesn't match the active model and force was not
// set, per spec.md §7.5: this is a migration-required indicator, not a
// destructive default.
type DimensionMismatchError struct {
	Collection   string
	ExistingDims int
	RequiredDims int
}

func (e *DimensionMismatchError) Error() string {
	return fmt.Sprintf("collection %s has dimension %d, model requires %d: migration required",
		e.Collection, e.ExistingDims, e.RequiredDims)
}
