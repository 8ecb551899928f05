// Package cache implements the content-addressed embedding cache described
// in spec.md §4.3 and §6: index.json metadata plus raw little-endian f32
// vector blobs under vectors/, with LRU eviction and an export/import bundle
// format.
package cache

import (
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
)

func nowUnix() int64 { return time.Now().Unix() }

// ErrBundleModelMismatch is returned by Import when a bundle's recorded
// model doesn't match the cache's configured model, per spec.md §4.3
// invariant 5.
var ErrBundleModelMismatch = errors.New("cache: bundle model does not match configured model")

// Stats summarizes the cache's current contents, grounded in the teacher's
// general preference (CodeChunkService) for rich structured logging at each
// pipeline stage rather than terse counters.
type Stats struct {
	TotalEntries int
	TotalBytes   int64
	HitRate      float64
	OldestEntry  int64
	NewestEntry  int64
}

// BundleEntry is one embedding within an export/import Bundle. It carries
// TextHash rather than the raw text, matching spec.md §6's wire format.
type BundleEntry struct {
	ID       string    `json:"id"`
	TextHash string    `json:"textHash"`
	Vector   []float32 `json:"vector"`
}

// Bundle is the export/import wire format for moving cache contents between
// machines or workspaces, matching spec.md §6 exactly.
type Bundle struct {
	Version    string        `json:"version"`
	Model      string        `json:"model"`
	Dimensions int           `json:"dimensions"`
	ExportedAt string        `json:"exportedAt"`
	Embeddings []BundleEntry `json:"embeddings"`
}

// ImportResult reports how many bundle entries were newly written versus
// skipped because an equivalent id already existed.
type ImportResult struct {
	Imported int
	Skipped  int
}

// BatchResult is the outcome of GetBatch: texts already cached, texts that
// still need embedding, and every text's content-addressed id (useful to
// callers that want to log/correlate ids without a second lookup).
type BatchResult struct {
	Cached  map[string][]float32
	Missing []string
	IDs     map[string]string
}

// indexFile is the on-disk shape of index.json: the configured model it was
// built against (so a later Open can detect a mismatch) plus one metadata
// row per cached id.
type indexFile struct {
	Model   string                  `json:"model"`
	Entries []model.EmbeddingEntry `json:"entries"`
}

// Cache is a content-addressed, disk-backed embedding cache with LRU
// eviction. One Cache instance owns one directory; it is safe for
// concurrent use.
type Cache struct {
	dir             string
	logger          *zap.Logger
	maxBytes        int64
	configuredModel string

	mu     sync.Mutex
	index  map[string]*model.EmbeddingEntry
	hits   int64
	misses int64
}

const indexFileName = "index.json"

func vectorsDir(dir string) string { return filepath.Join(dir, "vectors") }

// Open loads (or initializes) a cache rooted at dir. maxBytes bounds the
// on-disk vector payload size before LRU eviction kicks in; 0 means
// unbounded. configuredModel is the embedding model this process will use;
// per spec.md §4.3 invariant 4, if the persisted index was built against a
// different model, it is discarded wholesale rather than migrated (the
// blobs it still references are left on disk as orphans; Clear and Evict
// only delete blobs the current index references, so they stay).
func Open(dir string, maxBytes int64, configuredModel string, logger *zap.Logger) (*Cache, error) {
	if err := os.MkdirAll(vectorsDir(dir), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create cache directory: %w", err)
	}

	c := &Cache{dir: dir, logger: logger, maxBytes: maxBytes, configuredModel: configuredModel, index: make(map[string]*model.EmbeddingEntry)}

	indexPath := filepath.Join(dir, indexFileName)
	data, err := os.ReadFile(indexPath)
	if err != nil {
		if os.IsNotExist(err) {
			return c, nil
		}
		return nil, fmt.Errorf("failed to read cache index: %w", err)
	}

	var persisted indexFile
	if err := json.Unmarshal(data, &persisted); err != nil {
		return nil, fmt.Errorf("failed to parse cache index: %w", err)
	}

	if persisted.Model != "" && configuredModel != "" && persisted.Model != configuredModel {
		if logger != nil {
			logger.Warn("cache index model mismatch, discarding stale index",
				zap.String("indexModel", persisted.Model), zap.String("configuredModel", configuredModel))
		}
		return c, nil
	}

	for i := range persisted.Entries {
		e := persisted.Entries[i]
		c.index[e.ID] = &e
	}
	return c, nil
}

// Get returns the cached embedding for (model, text), or ok=false on a
// cache miss. A miss is also recorded when the index entry exists but its
// backing .bin file is gone or truncated (index entry is dropped in that
// case, per spec.md §7's cache-miss-on-corruption requirement).
func (c *Cache) Get(modelName, text string) (model.EmbeddingEntry, bool) {
	id := model.NewEmbeddingID(modelName, text)

	c.mu.Lock()
	entry, ok := c.index[id]
	c.mu.Unlock()
	if !ok {
		c.recordMiss()
		return model.EmbeddingEntry{}, false
	}

	vec, err := c.readVector(id, entry.Dimension)
	if err != nil {
		c.mu.Lock()
		delete(c.index, id)
		c.mu.Unlock()
		c.recordMiss()
		return model.EmbeddingEntry{}, false
	}

	c.mu.Lock()
	entry.AccessCount++
	entry.LastAccessed = nowUnix()
	result := *entry
	c.mu.Unlock()

	c.recordHit()
	result.Vector = vec
	return result, true
}

// GetBatch resolves texts against the cache in one call, per spec.md §4.3's
// getBatch(texts) → {cached, missing, ids} contract.
func (c *Cache) GetBatch(modelName string, texts []string) BatchResult {
	result := BatchResult{Cached: make(map[string][]float32, len(texts)), IDs: make(map[string]string, len(texts))}
	for _, t := range texts {
		result.IDs[t] = model.NewEmbeddingID(modelName, t)
		if entry, ok := c.Get(modelName, t); ok {
			result.Cached[t] = entry.Vector
		} else {
			result.Missing = append(result.Missing, t)
		}
	}
	return result
}

// Set stores an embedding, writing its vector blob and updating the index.
// Callers must Flush the index after a batch of writes, matching spec.md
// §7's crash-safety ordering (vector bytes land on disk before the index
// entry that points at them).
func (c *Cache) Set(modelName, text string, vector []float32) (model.EmbeddingEntry, error) {
	id := model.NewEmbeddingID(modelName, text)
	if err := c.writeVector(id, vector); err != nil {
		return model.EmbeddingEntry{}, fmt.Errorf("failed to write vector blob: %w", err)
	}

	entry := model.EmbeddingEntry{
		ID:           id,
		Model:        modelName,
		TextHash:     model.NewTextHash(text),
		Dimension:    len(vector),
		LastAccessed: nowUnix(),
		CreatedAt:    nowUnix(),
	}

	c.mu.Lock()
	c.index[id] = &entry
	c.mu.Unlock()

	result := entry
	result.Vector = vector
	return result, nil
}

// SetBatch stores one embedding per (text, vector) pair, per spec.md §4.3's
// setBatch(map) contract.
func (c *Cache) SetBatch(modelName string, vectors map[string][]float32) error {
	for text, vec := range vectors {
		if _, err := c.Set(modelName, text, vec); err != nil {
			return fmt.Errorf("failed to set batch entry: %w", err)
		}
	}
	return nil
}

// Flush persists the in-memory index to index.json. Must be called after
// Set calls for them to survive a process restart.
func (c *Cache) Flush() error {
	c.mu.Lock()
	entries := make([]model.EmbeddingEntry, 0, len(c.index))
	for _, e := range c.index {
		entries = append(entries, *e)
	}
	configuredModel := c.configuredModel
	c.mu.Unlock()

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })

	data, err := json.MarshalIndent(indexFile{Model: configuredModel, Entries: entries}, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal cache index: %w", err)
	}
	return os.WriteFile(filepath.Join(c.dir, indexFileName), data, 0o644)
}

// Evict removes cache entries least-recently-accessed first until the total
// on-disk vector payload is at or under maxBytes.
func (c *Cache) Evict() error {
	if c.maxBytes <= 0 {
		return nil
	}

	c.mu.Lock()
	entries := make([]*model.EmbeddingEntry, 0, len(c.index))
	var total int64
	for _, e := range c.index {
		entries = append(entries, e)
		total += int64(e.Dimension) * 4
	}
	sort.Slice(entries, func(i, j int) bool { return entries[i].LastAccessed < entries[j].LastAccessed })

	var toEvict []*model.EmbeddingEntry
	for _, e := range entries {
		if total <= c.maxBytes {
			break
		}
		toEvict = append(toEvict, e)
		total -= int64(e.Dimension) * 4
		delete(c.index, e.ID)
	}
	c.mu.Unlock()

	for _, e := range toEvict {
		if err := os.Remove(c.vectorPath(e.ID)); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to evict %s: %w", e.ID, err)
		}
	}
	if len(toEvict) > 0 && c.logger != nil {
		c.logger.Debug("evicted cache entries", zap.Int("count", len(toEvict)))
	}
	return c.Flush()
}

// Clear removes every entry from the cache, on disk and in memory.
func (c *Cache) Clear() error {
	c.mu.Lock()
	ids := make([]string, 0, len(c.index))
	for id := range c.index {
		ids = append(ids, id)
	}
	c.index = make(map[string]*model.EmbeddingEntry)
	c.mu.Unlock()

	for _, id := range ids {
		if err := os.Remove(c.vectorPath(id)); err != nil && !os.IsNotExist(err) {
			return err
		}
	}
	return c.Flush()
}

// Export serializes every cache entry (including its vector) into a Bundle
// matching spec.md §6's wire format.
func (c *Cache) Export() (Bundle, error) {
	c.mu.Lock()
	ids := make([]string, 0, len(c.index))
	for id := range c.index {
		ids = append(ids, id)
	}
	configuredModel := c.configuredModel
	c.mu.Unlock()
	sort.Strings(ids)

	bundle := Bundle{Version: "1.0", Model: configuredModel, ExportedAt: time.Now().UTC().Format(time.RFC3339)}
	for _, id := range ids {
		c.mu.Lock()
		entry := *c.index[id]
		c.mu.Unlock()
		vec, err := c.readVector(id, entry.Dimension)
		if err != nil {
			return Bundle{}, fmt.Errorf("failed to export entry %s: %w", id, err)
		}
		if bundle.Dimensions == 0 {
			bundle.Dimensions = entry.Dimension
		}
		bundle.Embeddings = append(bundle.Embeddings, BundleEntry{ID: entry.ID, TextHash: entry.TextHash, Vector: vec})
	}
	return bundle, nil
}

// Import merges a Bundle's entries into the cache, per spec.md §4.3
// invariant 5: a bundle whose model doesn't match the cache's configured
// model is rejected outright, and ids already present in the index are
// skipped rather than overwritten (content-addressing guarantees they're
// equivalent).
func (c *Cache) Import(bundle Bundle) (ImportResult, error) {
	if bundle.Model != "" && c.configuredModel != "" && bundle.Model != c.configuredModel {
		return ImportResult{}, fmt.Errorf("%w: bundle model %q, configured model %q", ErrBundleModelMismatch, bundle.Model, c.configuredModel)
	}

	var result ImportResult
	for _, e := range bundle.Embeddings {
		c.mu.Lock()
		_, exists := c.index[e.ID]
		c.mu.Unlock()
		if exists {
			result.Skipped++
			continue
		}

		if err := c.writeVector(e.ID, e.Vector); err != nil {
			return result, fmt.Errorf("failed to import entry %s: %w", e.ID, err)
		}
		entry := &model.EmbeddingEntry{
			ID:           e.ID,
			Model:        bundle.Model,
			TextHash:     e.TextHash,
			Dimension:    len(e.Vector),
			CreatedAt:    nowUnix(),
			LastAccessed: nowUnix(),
		}
		c.mu.Lock()
		c.index[e.ID] = entry
		c.mu.Unlock()
		result.Imported++
	}

	if err := c.Flush(); err != nil {
		return result, err
	}
	return result, nil
}

// Stats reports the cache's current size and hit rate.
func (c *Cache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Stats{TotalEntries: len(c.index)}
	for _, e := range c.index {
		s.TotalBytes += int64(e.Dimension) * 4
		if s.OldestEntry == 0 || e.CreatedAt < s.OldestEntry {
			s.OldestEntry = e.CreatedAt
		}
		if e.CreatedAt > s.NewestEntry {
			s.NewestEntry = e.CreatedAt
		}
	}
	total := c.hits + c.misses
	if total > 0 {
		s.HitRate = float64(c.hits) / float64(total)
	}
	return s
}

func (c *Cache) recordHit() {
	c.mu.Lock()
	c.hits++
	c.mu.Unlock()
}

func (c *Cache) recordMiss() {
	c.mu.Lock()
	c.misses++
	c.mu.Unlock()
}

func (c *Cache) vectorPath(id string) string {
	return filepath.Join(vectorsDir(c.dir), id+".bin")
}

func (c *Cache) writeVector(id string, vector []float32) error {
	buf := make([]byte, len(vector)*4)
	for i, f := range vector {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return os.WriteFile(c.vectorPath(id), buf, 0o644)
}

func (c *Cache) readVector(id string, dimension int) ([]float32, error) {
	data, err := os.ReadFile(c.vectorPath(id))
	if err != nil {
		return nil, err
	}
	if len(data) != dimension*4 {
		return nil, fmt.Errorf("vector blob %s has %d bytes, expected %d", id, len(data), dimension*4)
	}
	vec := make([]float32, dimension)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[i*4:]))
	}
	return vec, nil
}
