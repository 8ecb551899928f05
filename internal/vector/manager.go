package vector

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/config"
	"github.com/controlvector/cv-core/internal/model"
)

// Manager brokers between the sync/commit pipelines and a VectorDatabase +
// the active EmbeddingModel, applying the backend-selection policy,
// batching, retry, and collection-dimension migration described in
// spec.md §4.4. Grounded on the teacher's CodeChunkService, which this
// generalizes from a single hardwired (database, model) pair into a
// selectable-backend broker fanning out across the four named collections.
type Manager struct {
	db     VectorDatabase
	active EmbeddingModel
	logger *zap.Logger
}

// SelectBackend implements spec.md §4.4's backend-selection policy: an
// explicitly configured local backend wins outright; otherwise cloudA is
// preferred over cloudB, and local is the last resort when neither cloud
// backend is configured. local/cloudA/cloudB may be nil when unconfigured.
func SelectBackend(preferred config.EmbeddingBackend, local, cloudA, cloudB EmbeddingModel) (EmbeddingModel, error) {
	if preferred == config.EmbeddingBackendLocal && local != nil {
		return local, nil
	}
	if cloudA != nil {
		return cloudA, nil
	}
	if cloudB != nil {
		return cloudB, nil
	}
	if local != nil {
		return local, nil
	}
	return nil, fmt.Errorf("no embedding backend configured: need at least one of local, cloudA, cloudB")
}

// NewManager constructs a Manager around an already-selected active model.
func NewManager(db VectorDatabase, active EmbeddingModel, logger *zap.Logger) *Manager {
	return &Manager{db: db, active: active, logger: logger}
}

func (m *Manager) ActiveBackend() EmbeddingBackend { return m.active.Backend() }
func (m *Manager) ActiveModel() string             { return m.active.Model() }
func (m *Manager) Dimensions() int                 { return m.active.Dimensions() }

// CollectionName derives one of the four per-repository collection names,
// per spec.md §6: "{repoId}_{kind}", with no model suffix — a model switch
// is handled by MigrateCollectionIfNeeded's dimension check, not by renaming
// the collection out from under existing search clients.
func CollectionName(repoID string, kind Collection) string {
	return fmt.Sprintf("%s_%s", repoID, kind)
}

// EmbedBatch embeds texts with the active model, retrying transient
// failures per withRetry.
func (m *Manager) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	var out [][]float32
	err := withRetry(ctx, func() error {
		v, err := m.active.EmbedBatch(ctx, texts)
		if err != nil {
			return err
		}
		out = v
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to embed %d texts with %s/%s: %w", len(texts), m.active.Backend(), m.active.Model(), err)
	}
	return out, nil
}

// EnsureCollection creates the repo's named collection if it doesn't exist
// yet; callers should follow it with MigrateCollectionIfNeeded when the
// collection might already exist at a different dimension.
func (m *Manager) EnsureCollection(ctx context.Context, repoID string, kind Collection) error {
	return m.db.EnsureCollection(ctx, CollectionName(repoID, kind), m.active.Dimensions(), DistanceMetricCosine)
}

// EnsureAllCollections creates all four of a repository's collections,
// per spec.md §4.4's "for each of the four collections" setup step.
func (m *Manager) EnsureAllCollections(ctx context.Context, repoID string) error {
	for _, kind := range AllCollections {
		if err := m.EnsureCollection(ctx, repoID, kind); err != nil {
			return fmt.Errorf("failed to ensure collection %s: %w", kind, err)
		}
	}
	return nil
}

// CheckCollectionCompatibility reports whether the repo's named collection
// (if it exists) matches the active model's dimensionality.
func (m *Manager) CheckCollectionCompatibility(ctx context.Context, repoID string, kind Collection) (CollectionCompatibility, bool, error) {
	info, exists, err := m.db.CollectionInfo(ctx, CollectionName(repoID, kind))
	if err != nil || !exists {
		return info, exists, err
	}
	info.RequiredDims = m.active.Dimensions()
	info.NeedsRecreation = info.ExistingDims != info.RequiredDims
	return info, true, nil
}

// MigrateCollectionIfNeeded recreates the repo's named collection when its
// dimension doesn't match the active model. Recreation drops every existing
// point, so it only proceeds when force is true; otherwise it returns a
// DimensionMismatchError so the caller can surface the decision to an
// operator, per spec.md §7.5.
func (m *Manager) MigrateCollectionIfNeeded(ctx context.Context, repoID string, kind Collection, force bool) (MigrationResult, error) {
	collection := CollectionName(repoID, kind)
	info, exists, err := m.CheckCollectionCompatibility(ctx, repoID, kind)
	if err != nil {
		return MigrationResult{}, err
	}
	if !exists {
		if err := m.db.EnsureCollection(ctx, collection, m.active.Dimensions(), DistanceMetricCosine); err != nil {
			return MigrationResult{}, err
		}
		return MigrationResult{NewDims: m.active.Dimensions()}, nil
	}
	if !info.NeedsRecreation {
		return MigrationResult{OldDims: info.ExistingDims, NewDims: info.ExistingDims}, nil
	}
	if !force {
		return MigrationResult{}, &DimensionMismatchError{Collection: collection, ExistingDims: info.ExistingDims, RequiredDims: info.RequiredDims}
	}
	if err := m.db.RecreateCollection(ctx, collection, m.active.Dimensions(), DistanceMetricCosine); err != nil {
		return MigrationResult{}, fmt.Errorf("failed to recreate collection %s: %w", collection, err)
	}
	m.logger.Warn("recreated vector collection after dimension mismatch",
		zap.String("collection", collection), zap.Int("oldDims", info.ExistingDims), zap.Int("newDims", info.RequiredDims),
		zap.Int64("pointsLost", info.PointCount))
	return MigrationResult{Migrated: true, PointsLost: info.PointCount, OldDims: info.ExistingDims, NewDims: info.RequiredDims}, nil
}

// MigrateAllCollectionsIfNeeded runs MigrateCollectionIfNeeded across all
// four collections, returning the first error encountered (a missing
// collection for one kind doesn't block checking the others).
func (m *Manager) MigrateAllCollectionsIfNeeded(ctx context.Context, repoID string, force bool) (map[Collection]MigrationResult, error) {
	results := make(map[Collection]MigrationResult, len(AllCollections))
	var firstErr error
	for _, kind := range AllCollections {
		result, err := m.MigrateCollectionIfNeeded(ctx, repoID, kind, force)
		results[kind] = result
		if err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return results, firstErr
}

// collectionForChunk routes a chunk to document_chunks when it's a
// whole-file chunk of a non-code language (markdown today), and to
// code_chunks otherwise, per spec.md §4.4's "for source code" vs.
// "for markdown/document files" split.
func collectionForChunk(c model.CodeChunk) Collection {
	if c.Language == model.LanguageMarkdown {
		return CollectionDocumentChunks
	}
	return CollectionCodeChunks
}

// UpsertChunks embeds and stores a batch of code/document chunks, pairing
// each with its precomputed vector when the caller already resolved one
// from the embedding cache (vectors[i] nil means "embed it now"), and
// splitting them across the code_chunks/document_chunks collections by
// language.
func (m *Manager) UpsertChunks(ctx context.Context, repoID string, chunks []model.CodeChunk, vectors [][]float32) error {
	if len(vectors) != len(chunks) {
		return fmt.Errorf("vectors length %d does not match chunks length %d", len(vectors), len(chunks))
	}

	var toEmbedIdx []int
	var toEmbedText []string
	for i, v := range vectors {
		if v == nil {
			toEmbedIdx = append(toEmbedIdx, i)
			toEmbedText = append(toEmbedText, BuildEmbeddingText(chunks[i]))
		}
	}
	if len(toEmbedText) > 0 {
		fresh, err := m.EmbedBatch(ctx, toEmbedText)
		if err != nil {
			return err
		}
		for j, idx := range toEmbedIdx {
			vectors[idx] = fresh[j]
		}
	}

	byCollection := make(map[Collection][]Point)
	for i, c := range chunks {
		kind := collectionForChunk(c)
		byCollection[kind] = append(byCollection[kind], Point{
			ID:     c.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"repoId":     c.RepoID,
				"filePath":   c.FilePath,
				"startLine":  c.StartLine,
				"endLine":    c.EndLine,
				"symbolId":   c.SymbolID,
				"symbolKind": string(c.SymbolKind),
				"symbolName": c.SymbolName,
				"language":   string(c.Language),
			},
		})
	}

	for kind, points := range byCollection {
		collection := CollectionName(repoID, kind)
		if err := m.db.UpsertBatch(ctx, collection, points); err != nil {
			return fmt.Errorf("failed to upsert %d chunks into %s: %w", len(points), collection, err)
		}
	}
	return nil
}

// UpsertDocstrings embeds and stores one point per symbol with a non-empty
// DocComment, into the repo's docstrings collection, per spec.md §4.4.
func (m *Manager) UpsertDocstrings(ctx context.Context, repoID string, symbols []model.SymbolNode, texts []string, vectors [][]float32) error {
	if len(texts) != len(symbols) || len(vectors) != len(symbols) {
		return fmt.Errorf("symbols/texts/vectors length mismatch: %d/%d/%d", len(symbols), len(texts), len(vectors))
	}

	var toEmbedIdx []int
	var toEmbedText []string
	for i, v := range vectors {
		if v == nil {
			toEmbedIdx = append(toEmbedIdx, i)
			toEmbedText = append(toEmbedText, texts[i])
		}
	}
	if len(toEmbedText) > 0 {
		fresh, err := m.EmbedBatch(ctx, toEmbedText)
		if err != nil {
			return err
		}
		for j, idx := range toEmbedIdx {
			vectors[idx] = fresh[j]
		}
	}

	points := make([]Point, len(symbols))
	for i, s := range symbols {
		points[i] = Point{
			ID:     s.ID,
			Vector: vectors[i],
			Payload: map[string]any{
				"repoId":        s.RepoID,
				"filePath":      s.FilePath,
				"qualifiedName": s.QualifiedName,
				"kind":          string(s.Kind),
			},
		}
	}

	collection := CollectionName(repoID, CollectionDocstrings)
	if err := m.db.UpsertBatch(ctx, collection, points); err != nil {
		return fmt.Errorf("failed to upsert %d docstrings into %s: %w", len(points), collection, err)
	}
	return nil
}

// UpsertCommitMessage embeds and stores a single generated commit message
// into the repo's commits collection, keyed by pointID (a fresh uuid for a
// staged/uncommitted analysis, since it has no permanent sha yet).
func (m *Manager) UpsertCommitMessage(ctx context.Context, repoID, pointID, messageText string, payload map[string]any) error {
	vectors, err := m.EmbedBatch(ctx, []string{messageText})
	if err != nil {
		return err
	}
	point := Point{ID: pointID, Vector: vectors[0], Payload: payload}
	collection := CollectionName(repoID, CollectionCommits)
	if err := m.db.UpsertBatch(ctx, collection, []Point{point}); err != nil {
		return fmt.Errorf("failed to upsert commit message into %s: %w", collection, err)
	}
	return nil
}

// Search embeds query text and returns the top results above minScore from
// the given collection. Results below minScore are dropped rather than
// truncating the requested limit, so callers get fewer-but-relevant hits
// instead of padding with noise.
func (m *Manager) Search(ctx context.Context, repoID string, kind Collection, queryText string, limit int, minScore float32) ([]SearchResult, error) {
	vecs, err := m.EmbedBatch(ctx, []string{queryText})
	if err != nil {
		return nil, err
	}
	collection := CollectionName(repoID, kind)
	results, err := m.db.Search(ctx, collection, vecs[0], limit, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to search %s: %w", collection, err)
	}

	filtered := make([]SearchResult, 0, len(results))
	for _, r := range results {
		if r.Score >= minScore {
			filtered = append(filtered, r)
		}
	}
	return filtered, nil
}

// RemoveFile deletes every chunk belonging to filePath from both content
// collections (code_chunks and document_chunks), used by incremental sync
// when a file is deleted.
func (m *Manager) RemoveFile(ctx context.Context, repoID, filePath string) error {
	for _, kind := range []Collection{CollectionCodeChunks, CollectionDocumentChunks} {
		collection := CollectionName(repoID, kind)
		if err := m.db.DeleteWhere(ctx, collection, "filePath", filePath); err != nil {
			return fmt.Errorf("failed to remove %s from %s: %w", filePath, collection, err)
		}
	}
	return nil
}

func (m *Manager) Close() error {
	return m.db.Close()
}
