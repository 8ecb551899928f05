package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/controlvector/cv-core/internal/cache"
	"github.com/controlvector/cv-core/internal/commit"
	"github.com/controlvector/cv-core/internal/config"
	"github.com/controlvector/cv-core/internal/graph"
	"github.com/controlvector/cv-core/internal/model"
	"github.com/controlvector/cv-core/internal/parser"
	"github.com/controlvector/cv-core/internal/sync"
	"github.com/controlvector/cv-core/internal/vector"
)

// stringSliceFlag lets -repo be specified more than once, mirroring the
// teacher's -build-index flag.
type stringSliceFlag []string

func (s *stringSliceFlag) String() string { return strings.Join(*s, ",") }
func (s *stringSliceFlag) Set(value string) error {
	*s = append(*s, value)
	return nil
}

func main() {
	appConfigPath := flag.String("app", "app.yaml", "Path to app configuration file")
	sourceConfigPath := flag.String("source", "source.yaml", "Path to source configuration file")
	command := flag.String("command", "sync", "Command to run: sync, search, analyze-commit")
	var repoNames stringSliceFlag
	flag.Var(&repoNames, "repo", "Repository name to operate on (can be specified multiple times; default: all configured repositories)")
	full := flag.Bool("full", false, "Force a full sync instead of incremental")
	query := flag.String("query", "", "Query text for the search command")
	limit := flag.Int("limit", 10, "Maximum results for the search command")
	minScore := flag.Float64("min-score", 0.0, "Minimum similarity score for the search command")
	forceMigrate := flag.Bool("force-migrate", false, "Allow dropping an existing vector collection on dimension mismatch")
	flag.Parse()

	zapCfg := zap.NewProductionConfig()
	zapCfg.Level.SetLevel(zapcore.InfoLevel)
	zapCfg.OutputPaths = []string{"stdout"}
	logger, err := zapCfg.Build()
	if err != nil {
		log.Fatal("failed to initialize logger:", err)
	}
	defer logger.Sync()

	cfg, err := config.LoadConfig(*appConfigPath, *sourceConfigPath)
	if err != nil {
		logger.Fatal("failed to load configuration", zap.Error(err))
	}

	repos := selectRepositories(cfg, []string(repoNames))
	if len(repos) == 0 {
		logger.Fatal("no repositories selected", zap.Strings("requested", []string(repoNames)))
	}

	ctx := context.Background()

	registry := parser.NewRegistry(logger)

	g, gdb, err := openGraph(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("failed to open graph store", zap.Error(err))
	}
	if gdb != nil {
		defer gdb.Close(ctx)
	}

	vm, err := openVectorManager(ctx, cfg, logger)
	if err != nil {
		logger.Warn("vector manager unavailable, embeddings disabled", zap.Error(err))
	}

	var configuredModel string
	if vm != nil {
		configuredModel = vm.ActiveModel()
	}
	embeddingCache, err := cache.Open(cacheDir(cfg), 0, configuredModel, logger)
	if err != nil {
		logger.Fatal("failed to open embedding cache", zap.Error(err))
	}

	switch *command {
	case "sync":
		runSync(ctx, cfg, repos, registry, embeddingCache, g, vm, logger, *full, *forceMigrate)
	case "search":
		runSearch(ctx, repos, vm, *query, *limit, float32(*minScore), logger)
	case "analyze-commit":
		runAnalyzeCommit(ctx, repos, registry, g, vm, logger)
	default:
		logger.Fatal("unknown command", zap.String("command", *command))
	}
}

func selectRepositories(cfg *config.Config, requested []string) []model.Repository {
	var out []model.Repository
	if len(requested) == 0 {
		for _, r := range cfg.Source.Repositories {
			if r.Disabled {
				continue
			}
			out = append(out, model.Repository{ID: r.Name, Name: r.Name, Path: r.Path})
		}
		return out
	}
	for _, name := range requested {
		repo, err := cfg.GetRepository(name)
		if err != nil {
			continue
		}
		out = append(out, model.Repository{ID: repo.Name, Name: repo.Name, Path: repo.Path})
	}
	return out
}

func cacheDir(cfg *config.Config) string {
	if cfg.App.WorkDir != "" {
		return fmt.Sprintf("%s/.cv/embeddings", cfg.App.WorkDir)
	}
	return ".cv/embeddings"
}

// openGraph dispatches to graph.Open, wrapping the result in a Facade. It
// returns the GraphDatabase too so main can close it after the Facade (the
// Facade itself has no separate Close beyond the one it delegates).
func openGraph(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*graph.Facade, graph.GraphDatabase, error) {
	backend := "kuzu"
	if cfg.Neo4j.URI != "" {
		backend = "neo4j"
	}
	db, err := graph.Open(ctx, backend, cfg, logger)
	if err != nil {
		return nil, nil, err
	}
	return graph.NewFacade(db, logger), db, nil
}

// openVectorManager wires whichever embedding backends are configured and
// applies spec.md §4.4's selection policy. It returns an error when Qdrant
// is not configured or no embedding backend is available; main then logs a
// warning and runs with a nil manager, so the sync engine skips embedding.
func openVectorManager(ctx context.Context, cfg *config.Config, logger *zap.Logger) (*vector.Manager, error) {
	if cfg.Qdrant.Host == "" {
		return nil, fmt.Errorf("qdrant not configured")
	}

	var local, cloudA, cloudB vector.EmbeddingModel
	if cfg.Ollama.URL != "" {
		local = vector.NewOllamaEmbedding(vector.OllamaEmbeddingConfig{
			APIURL: cfg.Ollama.URL, APIKey: cfg.Ollama.APIKey, Model: cfg.Ollama.Model, Dimension: cfg.Ollama.Dimension,
		}, logger)
	}
	if cfg.Embedding.CloudA.APIKey != "" {
		m, err := vector.NewCloudAEmbedding(ctx, vector.CloudAEmbeddingConfig{
			APIKey: cfg.Embedding.CloudA.APIKey, Model: cfg.Embedding.CloudA.Model, Dimension: cfg.Embedding.CloudA.Dimension,
		}, logger)
		if err != nil {
			logger.Warn("failed to initialize cloudA embedding backend", zap.Error(err))
		} else {
			cloudA = m
		}
	}
	if cfg.Embedding.CloudB.APIKey != "" {
		cloudB = vector.NewCloudBEmbedding(vector.CloudBEmbeddingConfig{
			APIKey: cfg.Embedding.CloudB.APIKey, Model: cfg.Embedding.CloudB.Model, Dimension: cfg.Embedding.CloudB.Dimension,
		}, logger)
	}

	active, err := vector.SelectBackend(cfg.Embedding.Backend, local, cloudA, cloudB)
	if err != nil {
		return nil, err
	}

	db, err := vector.NewQdrantDatabase(cfg.Qdrant.Host, cfg.Qdrant.Port, cfg.Qdrant.APIKey, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to qdrant: %w", err)
	}

	logger.Info("vector manager ready", zap.String("backend", string(active.Backend())), zap.String("model", active.Model()))
	return vector.NewManager(db, active, logger), nil
}

func runSync(ctx context.Context, cfg *config.Config, repos []model.Repository, registry *parser.Registry, embeddingCache *cache.Cache, g *graph.Facade, vm *vector.Manager, logger *zap.Logger, forceFull, forceMigrate bool) {
	progress := make(chan sync.ProgressEvent, 16)
	go func() {
		for ev := range progress {
			logger.Info("sync progress", zap.String("phase", ev.Phase), zap.Int("current", ev.Current), zap.Int("total", ev.Total), zap.String("message", ev.Message))
		}
	}()

	engine := sync.New(cfg.Sync, registry, embeddingCache, g, vm, logger, progress)

	for _, repo := range repos {
		if _, existing, err := g.GetOwnership(ctx); err != nil {
			logger.Warn("failed to read graph ownership", zap.Error(err))
		} else if !existing {
			if err := g.ClaimOwnership(ctx, repo.ID); err != nil {
				logger.Warn("failed to claim graph ownership", zap.String("repo", repo.ID), zap.Error(err))
			}
		} else if err := g.ClaimOwnership(ctx, repo.ID); err != nil {
			var mismatch *graph.OwnershipMismatchError
			if errors.As(err, &mismatch) {
				logger.Error("graph is owned by a different repository, skipping", zap.String("repo", repo.ID), zap.Error(mismatch))
				continue
			}
		}

		if vm != nil {
			if _, err := vm.MigrateAllCollectionsIfNeeded(ctx, repo.ID, forceMigrate); err != nil {
				logger.Warn("a vector collection needs migration, re-run with -force-migrate to allow it", zap.String("repo", repo.ID), zap.Error(err))
			}
		}

		prev, hasPrev, err := sync.LoadState(repo.Path)
		if err != nil {
			logger.Warn("failed to load prior sync state, falling back to full sync", zap.String("repo", repo.ID), zap.Error(err))
			hasPrev = false
		}

		var result sync.Result
		if forceFull || !hasPrev {
			result, err = engine.FullSync(ctx, repo)
		} else {
			result, err = engine.IncrementalSync(ctx, repo, prev)
		}
		if err != nil {
			logger.Error("sync failed", zap.String("repo", repo.ID), zap.Error(err))
			continue
		}

		if err := sync.SaveState(repo.Path, result.State); err != nil {
			logger.Error("failed to persist sync state", zap.String("repo", repo.ID), zap.Error(err))
		}
		logger.Info("sync completed",
			zap.String("repo", repo.ID),
			zap.Int("filesIndexed", len(result.State.FileHashes)),
			zap.Int("failures", len(result.Failures)))
	}

	close(progress)
}

func runSearch(ctx context.Context, repos []model.Repository, vm *vector.Manager, query string, limit int, minScore float32, logger *zap.Logger) {
	if vm == nil {
		logger.Fatal("search requires a configured vector manager")
	}
	if query == "" {
		logger.Fatal("search requires -query")
	}
	for _, repo := range repos {
		results, err := vm.Search(ctx, repo.ID, vector.CollectionCodeChunks, query, limit, minScore)
		if err != nil {
			logger.Error("search failed", zap.String("repo", repo.ID), zap.Error(err))
			continue
		}
		for _, r := range results {
			fmt.Printf("%s\t%.4f\t%v\n", r.ID, r.Score, r.Payload)
		}
	}
}

func runAnalyzeCommit(ctx context.Context, repos []model.Repository, registry *parser.Registry, g *graph.Facade, vm *vector.Manager, logger *zap.Logger) {
	analyzer := commit.NewAnalyzer(registry, g, logger)
	for _, repo := range repos {
		analysis, err := analyzer.AnalyzeStagedChanges(ctx, repo)
		if err != nil {
			logger.Error("commit analysis failed", zap.String("repo", repo.ID), zap.Error(err))
			continue
		}

		message := commit.GenerateTemplateMessage(analysis)
		fmt.Fprintln(os.Stdout, message.String())

		if vm != nil {
			// A staged analysis has no permanent sha yet, so the commits
			// collection keys it by a fresh uuid rather than HEAD's.
			pointID := uuid.NewString()
			payload := map[string]any{
				"repoId":   repo.ID,
				"kind":     string(analysis.Kind),
				"scope":    analysis.Scope,
				"breaking": analysis.Breaking,
				"subject":  message.Subject,
			}
			if err := vm.UpsertCommitMessage(ctx, repo.ID, pointID, message.String(), payload); err != nil {
				logger.Warn("failed to index commit message", zap.String("repo", repo.ID), zap.Error(err))
			}
		}
	}
}
