// Package sync implements the indexing pipeline: enumerate a repository's
// files, parse and chunk each one, push the results into the graph and
// vector stores, and persist a SyncState so a later run can index only what
// changed.
//
// Grounded on the teacher's internal/controller.IndexBuilder and
// RepoProcessor: the same phase-1 (per-file processing) / phase-2
// (post-processing) split, generalized from the teacher's FileProcessor
// registry and hand-rolled goroutine/WaitGroup pool onto a bounded
// golang.org/x/sync/errgroup + semaphore.Weighted pool, since the teacher's
// own directory-walk helper (util.WalkDirTree) was referenced by
// index_builder.go/repo_processor.go but never present in the retrieved
// source and is reproduced here with the standard library's filepath.WalkDir
// instead.
package sync

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/semaphore"

	"github.com/controlvector/cv-core/internal/cache"
	"github.com/controlvector/cv-core/internal/config"
	"github.com/controlvector/cv-core/internal/graph"
	"github.com/controlvector/cv-core/internal/model"
	"github.com/controlvector/cv-core/internal/parser"
	"github.com/controlvector/cv-core/internal/util"
	"github.com/controlvector/cv-core/internal/vector"
)

// DefaultNumWorkers is the bounded worker pool size used when
// config.SyncConfig.NumWorkers is unset, per spec.md §4.6.
const DefaultNumWorkers = 8

// Phase names reported on a ProgressEvent, matching the teacher's
// IndexBuilder's "Processing files" / "Running post-processing steps" log
// messages.
const (
	PhaseEnumerate = "enumerate"
	PhaseParse     = "parse"
	PhaseEmbed     = "embed"
	PhaseFinalize  = "finalize"
)

// ProgressEvent is delivered on the engine's progress channel as a sync
// proceeds, so a CLI or caller can render a progress bar without polling.
type ProgressEvent struct {
	Phase   string
	Current int
	Total   int
	Message string
}

// FileFailure records one file the sync pipeline could not process, kept
// alongside the successful count rather than aborting the whole sync.
type FileFailure struct {
	Path  string
	Stage string
	Err   string
}

// Result summarizes one FullSync/IncrementalSync run.
type Result struct {
	State    model.SyncState
	Failures []FileFailure
}

// Engine drives the indexing pipeline for one repository. It is not safe for
// concurrent use by multiple goroutines against the same repository.
type Engine struct {
	cfg      config.SyncConfig
	registry *parser.Registry
	cache    *cache.Cache
	graph    *graph.Facade
	vectors  *vector.Manager
	logger   *zap.Logger

	progress chan<- ProgressEvent
}

// New constructs a sync Engine. progress may be nil if the caller doesn't
// want progress events.
func New(cfg config.SyncConfig, registry *parser.Registry, embeddingCache *cache.Cache, g *graph.Facade, vm *vector.Manager, logger *zap.Logger, progress chan<- ProgressEvent) *Engine {
	return &Engine{cfg: cfg, registry: registry, cache: embeddingCache, graph: g, vectors: vm, logger: logger, progress: progress}
}

func (e *Engine) emit(ev ProgressEvent) {
	if e.progress == nil {
		return
	}
	select {
	case e.progress <- ev:
	default:
	}
}

func (e *Engine) numWorkers() int64 {
	if e.cfg.NumWorkers > 0 {
		return int64(e.cfg.NumWorkers)
	}
	return DefaultNumWorkers
}

func (e *Engine) chunkMaxLines() int {
	if e.cfg.WholeFileChunkMaxLines > 0 {
		return e.cfg.WholeFileChunkMaxLines
	}
	return parser.DefaultWholeFileChunkMaxLines
}

// fileUnit is one file carried between the enumerate and parse/embed
// phases.
type fileUnit struct {
	path     string // absolute
	relPath  string
	content  []byte
	hash     string
	language model.Language
}

// FullSync indexes every eligible file in repoPath from scratch: it does not
// consult a prior SyncState, so every file is (re)written to the graph and
// vector stores.
func (e *Engine) FullSync(ctx context.Context, repo model.Repository) (Result, error) {
	return e.run(ctx, repo, nil)
}

// IncrementalSync indexes only files whose content hash changed since prev,
// removes graph/vector data for files that were deleted, and leaves
// unchanged files untouched.
func (e *Engine) IncrementalSync(ctx context.Context, repo model.Repository, prev model.SyncState) (Result, error) {
	return e.run(ctx, repo, &prev)
}

func (e *Engine) run(ctx context.Context, repo model.Repository, prev *model.SyncState) (Result, error) {
	units, err := e.enumerate(ctx, repo.Path)
	if err != nil {
		return Result{}, fmt.Errorf("failed to enumerate repository %s: %w", repo.Name, err)
	}

	var toProcess []fileUnit
	seen := make(map[string]bool, len(units))
	for _, u := range units {
		seen[u.relPath] = true
		if prev != nil {
			if h, ok := prev.FileHashes[u.relPath]; ok && h == u.hash {
				continue // unchanged, skip re-indexing
			}
		}
		toProcess = append(toProcess, u)
	}

	var removed []string
	if prev != nil {
		for relPath := range prev.FileHashes {
			if !seen[relPath] {
				removed = append(removed, relPath)
			}
		}
	}

	e.emit(ProgressEvent{Phase: PhaseParse, Current: 0, Total: len(toProcess), Message: "parsing files"})

	var mu sync.Mutex
	var failures []FileFailure
	fileHashes := make(map[string]string, len(units))
	for _, u := range units {
		fileHashes[u.relPath] = u.hash
	}

	symbolsFound := 0
	chunksEmbedded := 0
	var allChunks []model.CodeChunk
	var documentedSymbols []model.SymbolNode

	sem := semaphore.NewWeighted(e.numWorkers())
	group, gctx := errgroup.WithContext(ctx)

	var processed int
	for i := range toProcess {
		u := toProcess[i]
		if err := sem.Acquire(gctx, 1); err != nil {
			break
		}
		group.Go(func() error {
			defer sem.Release(1)

			pf, _, err := e.registry.ParseFile(repo.ID, u.relPath, u.content, u.language)
			if err != nil {
				mu.Lock()
				failures = append(failures, FileFailure{Path: u.relPath, Stage: PhaseParse, Err: err.Error()})
				mu.Unlock()
				return nil
			}
			pf.Hash = u.hash

			e.graph.Stage(pf)
			if err := e.graph.Flush(gctx, repo.ID, u.relPath, pf); err != nil {
				mu.Lock()
				failures = append(failures, FileFailure{Path: u.relPath, Stage: "graph", Err: err.Error()})
				mu.Unlock()
				return nil
			}

			chunks := parser.Chunk(pf, u.content, e.chunkMaxLines())

			var documented []model.SymbolNode
			for _, s := range pf.Symbols {
				if s.DocComment != "" {
					documented = append(documented, s)
				}
			}

			mu.Lock()
			symbolsFound += len(pf.Symbols)
			allChunks = append(allChunks, chunks...)
			documentedSymbols = append(documentedSymbols, documented...)
			processed++
			mu.Unlock()
			e.emit(ProgressEvent{Phase: PhaseParse, Current: processed, Total: len(toProcess), Message: u.relPath})
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return Result{}, fmt.Errorf("sync pipeline aborted: %w", err)
	}

	for _, relPath := range removed {
		if err := e.graph.Remove(ctx, repo.ID, relPath); err != nil {
			failures = append(failures, FileFailure{Path: relPath, Stage: "graph-remove", Err: err.Error()})
		}
		if e.vectors != nil {
			if err := e.vectors.RemoveFile(ctx, repo.ID, relPath); err != nil {
				failures = append(failures, FileFailure{Path: relPath, Stage: "vector-remove", Err: err.Error()})
			}
		}
	}

	if e.vectors != nil && len(allChunks) > 0 {
		n, err := e.embedAndUpsert(ctx, repo, allChunks)
		if err != nil {
			return Result{}, fmt.Errorf("failed to embed and upsert chunks: %w", err)
		}
		chunksEmbedded = n
	}
	if e.vectors != nil && len(documentedSymbols) > 0 {
		if err := e.embedAndUpsertDocstrings(ctx, repo, documentedSymbols); err != nil {
			failures = append(failures, FileFailure{Path: repo.ID, Stage: "embed-docstrings", Err: err.Error()})
		}
	}

	e.emit(ProgressEvent{Phase: PhaseFinalize, Current: 1, Total: 1, Message: "finalizing sync state"})

	headSHA := ""
	if gitInfo, gerr := util.GetGitInfo(repo.Path); gerr == nil && gitInfo.IsGitRepo {
		headSHA = gitInfo.HeadCommitSHA
	}

	state := model.SyncState{
		RepoID:         repo.ID,
		LastSyncedAt:   time.Now().Unix(),
		HeadCommitSHA:  headSHA,
		FileHashes:     fileHashes,
		ParserMode:     e.registry.DominantMode(),
		FilesIndexed:   len(toProcess),
		SymbolsFound:   symbolsFound,
		ChunksEmbedded: chunksEmbedded,
	}

	return Result{State: state, Failures: failures}, nil
}

// embedAndUpsert resolves each chunk's vector through the embedding cache's
// batch contract before falling back to the active backend, then upserts
// the whole batch. Both the cache key and the embedding input are the
// templated text (vector.BuildEmbeddingText), not the chunk's raw body, so
// a cache hit always means "this exact templated text was embedded before".
// Returns the number of chunks that required a fresh embedding call (cache
// misses).
func (e *Engine) embedAndUpsert(ctx context.Context, repo model.Repository, chunks []model.CodeChunk) (int, error) {
	modelName := e.vectors.ActiveModel()
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = vector.BuildEmbeddingText(c)
	}

	batch := e.cache.GetBatch(modelName, texts)

	vectors := make([][]float32, len(chunks))
	for i, text := range texts {
		if vec, ok := batch.Cached[text]; ok {
			vectors[i] = vec
		}
	}

	if err := e.vectors.UpsertChunks(ctx, repo.ID, chunks, vectors); err != nil {
		return 0, err
	}

	toCache := make(map[string][]float32, len(batch.Missing))
	for i, text := range texts {
		if vectors[i] != nil {
			if _, wasMissing := batch.IDs[text]; wasMissing {
				if _, hit := batch.Cached[text]; !hit {
					toCache[text] = vectors[i]
				}
			}
		}
	}
	if len(toCache) > 0 {
		if err := e.cache.SetBatch(modelName, toCache); err != nil {
			e.logger.Warn("failed to populate embedding cache", zap.Error(err))
		}
	}
	if err := e.cache.Flush(); err != nil {
		e.logger.Warn("failed to flush embedding cache index", zap.Error(err))
	}

	return len(batch.Missing), nil
}

// embedAndUpsertDocstrings embeds every documented symbol's comment and
// writes it into the repo's docstrings collection, per spec.md §4.4.
func (e *Engine) embedAndUpsertDocstrings(ctx context.Context, repo model.Repository, symbols []model.SymbolNode) error {
	texts := make([]string, len(symbols))
	for i, s := range symbols {
		texts[i] = s.DocComment
	}
	vectors := make([][]float32, len(symbols))
	return e.vectors.UpsertDocstrings(ctx, repo.ID, symbols, texts, vectors)
}

// enumerate walks repoPath, skipping directories/files per util's skip
// rules, and returns every eligible file with its content hashed and
// language detected.
func (e *Engine) enumerate(ctx context.Context, repoPath string) ([]fileUnit, error) {
	var units []fileUnit
	count := 0

	err := filepath.WalkDir(repoPath, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			e.logger.Warn("error accessing path during enumeration", zap.String("path", path), zap.Error(err))
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if d.IsDir() {
			if path != repoPath && util.ShouldSkipDirectory(path) {
				return filepath.SkipDir
			}
			return nil
		}

		if util.ShouldSkipFile(path, nil) || matchesExcludePattern(path, e.cfg.ExcludePatterns) {
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			e.logger.Warn("failed to read file during enumeration", zap.String("path", path), zap.Error(err))
			return nil
		}

		relPath, err := filepath.Rel(repoPath, path)
		if err != nil {
			relPath = path
		}
		relPath = filepath.ToSlash(relPath)

		units = append(units, fileUnit{
			path:     path,
			relPath:  relPath,
			content:  content,
			hash:     util.CalculateFileSHA256(content),
			language: parser.DetectLanguage(path),
		})
		count++
		if count%200 == 0 {
			e.emit(ProgressEvent{Phase: PhaseEnumerate, Current: count, Message: "enumerating files"})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return units, nil
}

// matchesExcludePattern reports whether any of the configured glob patterns
// (e.g. "*_test.go", "testdata/*") matches path's base name, the whole path,
// or any trailing run of its path segments.
func matchesExcludePattern(path string, patterns []string) bool {
	base := filepath.Base(path)
	parts := strings.Split(filepath.ToSlash(path), "/")
	for _, p := range patterns {
		if ok, _ := filepath.Match(p, base); ok {
			return true
		}
		if ok, _ := filepath.Match(p, path); ok {
			return true
		}
		for i := range parts {
			if ok, _ := filepath.Match(p, strings.Join(parts[i:], "/")); ok {
				return true
			}
		}
	}
	return false
}
