package graph

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
)

// Facade wraps a GraphDatabase with per-file write buffering, so a parallel
// sync can accumulate a file's symbols/calls/imports in memory and flush
// them in one batch rather than issuing a write per symbol. Grounded on the
// teacher's CodeGraph/Buffer/FlushNodes, generalized from file-ID-keyed
// *ast.Node buffers to path-keyed model.SymbolNode/model.Import buffers.
type Facade struct {
	db     GraphDatabase
	logger *zap.Logger

	mu      sync.Mutex
	batches map[string]*writeBatch // keyed by repoID + ":" + filePath
}

func NewFacade(db GraphDatabase, logger *zap.Logger) *Facade {
	return &Facade{db: db, logger: logger, batches: make(map[string]*writeBatch)}
}

func batchKey(repoID, filePath string) string { return repoID + ":" + filePath }

// Stage buffers a file's parse results for later flushing. It does not
// touch the database.
func (f *Facade) Stage(pf model.ParsedFile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.batches[batchKey(pf.RepoID, pf.Path)] = &writeBatch{symbols: pf.Symbols, imports: pf.Imports}
}

// Flush writes pf's symbols, calls, and imports to the backend and drops any
// buffer staged for filePath; the staged copy itself is not read. Safe to
// call even if nothing was staged for filePath.
func (f *Facade) Flush(ctx context.Context, repoID, filePath string, pf model.ParsedFile) error {
	key := batchKey(repoID, filePath)
	f.mu.Lock()
	delete(f.batches, key)
	f.mu.Unlock()

	if err := f.db.UpsertFile(ctx, pf); err != nil {
		return fmt.Errorf("failed to upsert file %s: %w", filePath, err)
	}
	if err := f.db.UpsertSymbols(ctx, repoID, filePath, pf.Symbols); err != nil {
		return fmt.Errorf("failed to upsert symbols for %s: %w", filePath, err)
	}
	if err := f.db.UpsertCalls(ctx, repoID, pf.Symbols); err != nil {
		return fmt.Errorf("failed to upsert calls for %s: %w", filePath, err)
	}
	if err := f.db.UpsertImports(ctx, repoID, filePath, pf.Imports); err != nil {
		return fmt.Errorf("failed to upsert imports for %s: %w", filePath, err)
	}
	f.logger.Debug("flushed file to graph",
		zap.String("path", filePath), zap.Int("symbols", len(pf.Symbols)), zap.Int("imports", len(pf.Imports)))
	return nil
}

// Remove deletes a file and its declared symbols from the graph, used by
// incremental sync when a file is deleted from the workspace.
func (f *Facade) Remove(ctx context.Context, repoID, filePath string) error {
	return f.db.RemoveFile(ctx, repoID, filePath)
}

func (f *Facade) GetCallers(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	return f.db.GetCallers(ctx, repoID, qualifiedName, depth)
}

func (f *Facade) GetCallees(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	return f.db.GetCallees(ctx, repoID, qualifiedName, depth)
}

func (f *Facade) GetFileDependents(ctx context.Context, repoID, filePath string) ([]string, error) {
	return f.db.GetFileDependents(ctx, repoID, filePath)
}

func (f *Facade) GetFileDependencies(ctx context.Context, repoID, filePath string) ([]string, error) {
	return f.db.GetFileDependencies(ctx, repoID, filePath)
}

func (f *Facade) GetSymbolsForFile(ctx context.Context, repoID, filePath string) ([]model.SymbolNode, error) {
	return f.db.GetSymbolsForFile(ctx, repoID, filePath)
}

func (f *Facade) GetOwnership(ctx context.Context) (Ownership, bool, error) {
	return f.db.GetOwnership(ctx)
}

// ClaimOwnership stamps the graph with repoID if no Ownership node exists
// yet. When one already exists for a different repoID, it returns
// *OwnershipMismatchError without touching the graph, so the caller can warn
// and let an operator decide whether to proceed.
func (f *Facade) ClaimOwnership(ctx context.Context, repoID string) error {
	return f.db.SetOwnership(ctx, repoID)
}

func (f *Facade) GetStats(ctx context.Context, repoID string) (Stats, error) {
	return f.db.GetStats(ctx, repoID)
}

func (f *Facade) Close(ctx context.Context) error {
	return f.db.Close(ctx)
}
