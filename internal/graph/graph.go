// Package graph is the graph store facade: it defines the GraphDatabase
// interface the rest of the engine programs against, and dispatches to
// whichever backend (Neo4j or embedded Kuzu) a workspace is configured for.
//
// Grounded on the teacher's internal/service/codegraph.CodeGraph, which wraps
// a GraphDatabase in file-scoped write buffers; that type itself doesn't
// compile as retrieved (it imports the never-present bot-go/internal/model/ast
// and bot-go/pkg/lsp/base packages), so the batching idiom is reproduced here
// against this package's own model types instead of kept verbatim.
package graph

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/config"
	"github.com/controlvector/cv-core/internal/model"
)

// Ownership is the singleton (repoId, createdAt) node spec.md §4.5 requires:
// on a graph's first write, the facade stamps it with the repository that
// created it, so a later connect from a different repoId can be detected and
// surfaced as a mismatch rather than silently mixing two repositories' data
// in one graph.
type Ownership struct {
	RepoID    string
	CreatedAt int64 // unix seconds
}

// OwnershipMismatchError is returned by SetOwnership when a graph already
// carries an Ownership node for a different repoId.
type OwnershipMismatchError struct {
	Existing  string
	Attempted string
}

func (e *OwnershipMismatchError) Error() string {
	return fmt.Sprintf("graph is owned by repo %q, refusing to claim it for %q", e.Existing, e.Attempted)
}

// Stats summarizes a graph's current size, used for health checks and sync
// progress reporting.
type Stats struct {
	FileCount   int
	SymbolCount int
	CallCount   int
	ImportCount int
}

// GraphDatabase is the interface every backend (Neo4j, Kuzu) implements. All
// write methods are idempotent upserts keyed by repo-relative path or
// qualified symbol name, so a re-sync never creates duplicate nodes.
type GraphDatabase interface {
	UpsertFile(ctx context.Context, pf model.ParsedFile) error
	UpsertSymbols(ctx context.Context, repoID, filePath string, symbols []model.SymbolNode) error
	UpsertCalls(ctx context.Context, repoID string, symbols []model.SymbolNode) error
	UpsertImports(ctx context.Context, repoID, filePath string, imports []model.Import) error

	RemoveFile(ctx context.Context, repoID, filePath string) error

	GetCallers(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error)
	GetCallees(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error)
	GetFileDependents(ctx context.Context, repoID, filePath string) ([]string, error)
	GetFileDependencies(ctx context.Context, repoID, filePath string) ([]string, error)

	// GetSymbolsForFile returns the symbols the graph currently has on
	// record for filePath, as of the last completed sync. The commit
	// analyzer diffs this against a file's freshly parsed symbols to find
	// additions, signature changes, and deletions ahead of a commit.
	GetSymbolsForFile(ctx context.Context, repoID, filePath string) ([]model.SymbolNode, error)

	// GetOwnership returns the graph's singleton ownership node, if one has
	// been written yet.
	GetOwnership(ctx context.Context) (Ownership, bool, error)

	// SetOwnership writes the singleton ownership node on a graph's first
	// write for repoID. If an Ownership node already exists for a different
	// repoID, it returns *OwnershipMismatchError and leaves the existing node
	// untouched, per spec.md §4.5's "never silently overwritten" rule. A call
	// for the repo that already owns the graph is a no-op.
	SetOwnership(ctx context.Context, repoID string) error

	GetStats(ctx context.Context, repoID string) (Stats, error)

	Close(ctx context.Context) error
}

// writeBatch mirrors the teacher's Buffer type: per-file accumulation of
// pending upserts so a parallel sync can flush once per file rather than
// once per symbol.
type writeBatch struct {
	symbols []model.SymbolNode
	imports []model.Import
}

// ErrUnknownBackend is returned by Open for an unrecognized backend name.
var ErrUnknownBackend = fmt.Errorf("unknown graph backend")

// Open dispatches to the configured graph backend: "neo4j" connects to a
// Neo4jConfig-described server, "kuzu" or an empty string opens the embedded
// Kuzu backend rooted at cfg.Kuzu.Path, per SPEC_FULL.md's dual-backend
// requirement that a workspace work fully offline with no external graph
// server. Any other name returns ErrUnknownBackend.
func Open(ctx context.Context, backend string, cfg *config.Config, logger *zap.Logger) (GraphDatabase, error) {
	switch backend {
	case "neo4j":
		return NewNeo4jGraph(ctx, cfg.Neo4j.URI, cfg.Neo4j.Username, cfg.Neo4j.Password, logger)
	case "", "kuzu":
		return NewKuzuGraph(cfg.Kuzu.Path, logger)
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownBackend, backend)
	}
}
