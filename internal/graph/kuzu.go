package graph

import (
	"context"
	"fmt"

	"github.com/kuzudb/go-kuzu"
	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
)

// KuzuGraph is the embedded-database GraphDatabase backend, for workspaces
// that run without a standalone Neo4j instance. Kuzu speaks a Cypher-like
// query language close to Neo4j's, so KuzuGraph's queries mirror
// Neo4jGraph's, but it keeps its own query text: writes go one row per
// statement instead of through UNWIND batches, and call edges match the
// callee by qualifiedName rather than by name.
type KuzuGraph struct {
	db     *kuzu.Database
	conn   *kuzu.Connection
	logger *zap.Logger
}

// NewKuzuGraph opens (creating if necessary) an embedded Kuzu database at
// path and ensures the File/Symbol node and relationship tables exist.
func NewKuzuGraph(path string, logger *zap.Logger) (*KuzuGraph, error) {
	db, err := kuzu.OpenDatabase(path, kuzu.DefaultSystemConfig())
	if err != nil {
		return nil, fmt.Errorf("failed to open kuzu database at %s: %w", path, err)
	}
	conn, err := kuzu.OpenConnection(db)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to open kuzu connection: %w", err)
	}

	g := &KuzuGraph{db: db, conn: conn, logger: logger}
	if err := g.ensureSchema(); err != nil {
		conn.Close()
		db.Close()
		return nil, err
	}
	return g, nil
}

func (g *KuzuGraph) ensureSchema() error {
	stmts := []string{
		`CREATE NODE TABLE IF NOT EXISTS File(repoId STRING, path STRING, language STRING, hash STRING, lineCount INT64, PRIMARY KEY(repoId, path))`,
		`CREATE NODE TABLE IF NOT EXISTS Symbol(repoId STRING, qualifiedName STRING, filePath STRING, name STRING, kind STRING, startLine INT64, endLine INT64, complexity INT64, signature STRING, unresolved BOOLEAN, docComment STRING, visibility STRING, isAsync BOOLEAN, isStatic BOOLEAN, PRIMARY KEY(repoId, qualifiedName))`,
		`CREATE NODE TABLE IF NOT EXISTS Ownership(repoId STRING, createdAt INT64, PRIMARY KEY(repoId))`,
		`CREATE REL TABLE IF NOT EXISTS DECLARES(FROM File TO Symbol)`,
		`CREATE REL TABLE IF NOT EXISTS CALLS(FROM Symbol TO Symbol, line INT64, isConditional BOOLEAN)`,
		`CREATE REL TABLE IF NOT EXISTS IMPORTS(FROM File TO File, line INT64)`,
	}
	for _, s := range stmts {
		if _, err := g.conn.Query(s); err != nil {
			return fmt.Errorf("failed to apply kuzu schema statement: %w", err)
		}
	}
	return nil
}

func (g *KuzuGraph) Close(_ context.Context) error {
	g.conn.Close()
	g.db.Close()
	return nil
}

func (g *KuzuGraph) exec(query string, params map[string]any) error {
	stmt, err := g.conn.Prepare(query)
	if err != nil {
		return fmt.Errorf("failed to prepare kuzu statement: %w", err)
	}
	defer stmt.Close()
	result, err := g.conn.Execute(stmt, params)
	if err != nil {
		return err
	}
	result.Close()
	return nil
}

func (g *KuzuGraph) UpsertFile(_ context.Context, pf model.ParsedFile) error {
	return g.exec(`
		MERGE (f:File {repoId: $repoId, path: $path})
		SET f.language = $language, f.hash = $hash, f.lineCount = $lineCount
	`, map[string]any{
		"repoId": pf.RepoID, "path": pf.Path, "language": string(pf.Language),
		"hash": pf.Hash, "lineCount": int64(pf.LineCount),
	})
}

func (g *KuzuGraph) UpsertSymbols(_ context.Context, repoID, filePath string, symbols []model.SymbolNode) error {
	for _, s := range symbols {
		if err := g.exec(`
			MERGE (sy:Symbol {repoId: $repoId, qualifiedName: $qualifiedName})
			SET sy.filePath = $filePath, sy.name = $name, sy.kind = $kind,
				sy.startLine = $startLine, sy.endLine = $endLine,
				sy.complexity = $complexity, sy.signature = $signature,
				sy.docComment = $docComment, sy.visibility = $visibility,
				sy.isAsync = $isAsync, sy.isStatic = $isStatic
			WITH sy
			MATCH (f:File {repoId: $repoId, path: $filePath})
			MERGE (f)-[:DECLARES]->(sy)
		`, map[string]any{
			"repoId": repoID, "filePath": filePath, "qualifiedName": s.QualifiedName,
			"name": s.Name, "kind": string(s.Kind), "startLine": int64(s.StartLine),
			"endLine": int64(s.EndLine), "complexity": int64(s.Complexity), "signature": s.Signature,
			"docComment": s.DocComment, "visibility": string(s.Visibility),
			"isAsync": s.IsAsync, "isStatic": s.IsStatic,
		}); err != nil {
			return fmt.Errorf("failed to upsert symbol %s: %w", s.QualifiedName, err)
		}
	}
	return nil
}

func (g *KuzuGraph) UpsertCalls(_ context.Context, repoID string, symbols []model.SymbolNode) error {
	for _, s := range symbols {
		for _, c := range s.Calls {
			if err := g.exec(`
				MATCH (caller:Symbol {repoId: $repoId, qualifiedName: $caller})
				MERGE (callee:Symbol {repoId: $repoId, qualifiedName: $callee})
				ON CREATE SET callee.unresolved = true
				MERGE (caller)-[r:CALLS {line: $line}]->(callee)
				SET r.isConditional = $isConditional
			`, map[string]any{
				"repoId": repoID, "caller": s.QualifiedName, "callee": c.CalleeName,
				"line": int64(c.Line), "isConditional": c.IsConditional,
			}); err != nil {
				return fmt.Errorf("failed to upsert call %s->%s: %w", s.QualifiedName, c.CalleeName, err)
			}
		}
	}
	return nil
}

func (g *KuzuGraph) UpsertImports(_ context.Context, repoID, filePath string, imports []model.Import) error {
	for _, imp := range imports {
		if err := g.exec(`
			MATCH (f:File {repoId: $repoId, path: $filePath})
			MERGE (dep:File {repoId: $repoId, path: $depPath})
			MERGE (f)-[r:IMPORTS]->(dep)
			SET r.line = $line
		`, map[string]any{
			"repoId": repoID, "filePath": filePath, "depPath": imp.Path, "line": int64(imp.Line),
		}); err != nil {
			return fmt.Errorf("failed to upsert import %s: %w", imp.Path, err)
		}
	}
	return nil
}

func (g *KuzuGraph) RemoveFile(_ context.Context, repoID, filePath string) error {
	return g.exec(`
		MATCH (f:File {repoId: $repoId, path: $path})
		OPTIONAL MATCH (f)-[:DECLARES]->(s:Symbol)
		DETACH DELETE f, s
	`, map[string]any{"repoId": repoID, "path": filePath})
}

func (g *KuzuGraph) query(query string, params map[string]any, field string) ([]string, error) {
	stmt, err := g.conn.Prepare(query)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare kuzu statement: %w", err)
	}
	defer stmt.Close()
	result, err := g.conn.Execute(stmt, params)
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var out []string
	for result.HasNext() {
		row, err := result.Next()
		if err != nil {
			return nil, err
		}
		tuple, err := row.GetAsMap()
		if err != nil {
			return nil, err
		}
		if v, ok := tuple[field].(string); ok {
			out = append(out, v)
		}
	}
	return out, nil
}

func (g *KuzuGraph) GetCallers(_ context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	q := fmt.Sprintf(`
		MATCH (callee:Symbol {repoId: $repoId, qualifiedName: $qualifiedName})
		MATCH (caller:Symbol)-[:CALLS*1..%d]->(callee)
		RETURN DISTINCT caller.qualifiedName AS name
	`, clampDepth(depth))
	return g.query(q, map[string]any{"repoId": repoID, "qualifiedName": qualifiedName}, "name")
}

func (g *KuzuGraph) GetCallees(_ context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	q := fmt.Sprintf(`
		MATCH (caller:Symbol {repoId: $repoId, qualifiedName: $qualifiedName})
		MATCH (caller)-[:CALLS*1..%d]->(callee:Symbol)
		RETURN DISTINCT callee.qualifiedName AS name
	`, clampDepth(depth))
	return g.query(q, map[string]any{"repoId": repoID, "qualifiedName": qualifiedName}, "name")
}

func (g *KuzuGraph) GetFileDependents(_ context.Context, repoID, filePath string) ([]string, error) {
	return g.query(`
		MATCH (dep:File {repoId: $repoId, path: $path})
		MATCH (f:File)-[:IMPORTS]->(dep)
		RETURN DISTINCT f.path AS name
	`, map[string]any{"repoId": repoID, "path": filePath}, "name")
}

func (g *KuzuGraph) GetFileDependencies(_ context.Context, repoID, filePath string) ([]string, error) {
	return g.query(`
		MATCH (f:File {repoId: $repoId, path: $path})
		MATCH (f)-[:IMPORTS]->(dep:File)
		RETURN DISTINCT dep.path AS name
	`, map[string]any{"repoId": repoID, "path": filePath}, "name")
}

func (g *KuzuGraph) GetSymbolsForFile(_ context.Context, repoID, filePath string) ([]model.SymbolNode, error) {
	stmt, err := g.conn.Prepare(`
		MATCH (f:File {repoId: $repoId, path: $path})-[:DECLARES]->(s:Symbol)
		RETURN s.qualifiedName AS qualifiedName, s.name AS name, s.kind AS kind,
			s.startLine AS startLine, s.endLine AS endLine, s.complexity AS complexity, s.signature AS signature,
			s.docComment AS docComment, s.visibility AS visibility, s.isAsync AS isAsync, s.isStatic AS isStatic
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to prepare kuzu statement: %w", err)
	}
	defer stmt.Close()
	result, err := g.conn.Execute(stmt, map[string]any{"repoId": repoID, "path": filePath})
	if err != nil {
		return nil, err
	}
	defer result.Close()

	var symbols []model.SymbolNode
	for result.HasNext() {
		row, err := result.Next()
		if err != nil {
			return nil, err
		}
		tuple, err := row.GetAsMap()
		if err != nil {
			return nil, err
		}
		s := model.SymbolNode{
			RepoID:     repoID,
			FilePath:   filePath,
			StartLine:  kuzuInt(tuple["startLine"]),
			EndLine:    kuzuInt(tuple["endLine"]),
			Complexity: kuzuInt(tuple["complexity"]),
		}
		if v, ok := tuple["name"].(string); ok {
			s.Name = v
		}
		if v, ok := tuple["qualifiedName"].(string); ok {
			s.QualifiedName = v
		}
		if v, ok := tuple["kind"].(string); ok {
			s.Kind = model.SymbolKind(v)
		}
		if v, ok := tuple["signature"].(string); ok {
			s.Signature = v
		}
		if v, ok := tuple["docComment"].(string); ok {
			s.DocComment = v
		}
		if v, ok := tuple["visibility"].(string); ok {
			s.Visibility = model.Visibility(v)
		}
		if v, ok := tuple["isAsync"].(bool); ok {
			s.IsAsync = v
		}
		if v, ok := tuple["isStatic"].(bool); ok {
			s.IsStatic = v
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func (g *KuzuGraph) GetOwnership(_ context.Context) (Ownership, bool, error) {
	stmt, err := g.conn.Prepare(`MATCH (o:Ownership) RETURN o.repoId AS repoId, o.createdAt AS createdAt LIMIT 1`)
	if err != nil {
		return Ownership{}, false, err
	}
	defer stmt.Close()
	result, err := g.conn.Execute(stmt, map[string]any{})
	if err != nil {
		return Ownership{}, false, err
	}
	defer result.Close()

	if !result.HasNext() {
		return Ownership{}, false, nil
	}
	row, err := result.Next()
	if err != nil {
		return Ownership{}, false, err
	}
	tuple, err := row.GetAsMap()
	if err != nil {
		return Ownership{}, false, err
	}
	o := Ownership{CreatedAt: int64(kuzuInt(tuple["createdAt"]))}
	if s, ok := tuple["repoId"].(string); ok {
		o.RepoID = s
	}
	return o, true, nil
}

func (g *KuzuGraph) SetOwnership(ctx context.Context, repoID string) error {
	existing, ok, err := g.GetOwnership(ctx)
	if err != nil {
		return err
	}
	if ok {
		if existing.RepoID != repoID {
			return &OwnershipMismatchError{Existing: existing.RepoID, Attempted: repoID}
		}
		return nil
	}
	return g.exec(`CREATE (o:Ownership {repoId: $repoId, createdAt: $createdAt})`,
		map[string]any{"repoId": repoID, "createdAt": nowUnix()})
}

func (g *KuzuGraph) GetStats(_ context.Context, repoID string) (Stats, error) {
	stmt, err := g.conn.Prepare(`
		MATCH (f:File {repoId: $repoId})
		OPTIONAL MATCH (f)-[:DECLARES]->(s:Symbol)
		OPTIONAL MATCH (s)-[c:CALLS]->()
		OPTIONAL MATCH (f)-[i:IMPORTS]->()
		RETURN count(DISTINCT f) AS files, count(DISTINCT s) AS symbols,
			count(DISTINCT c) AS calls, count(DISTINCT i) AS imports
	`)
	if err != nil {
		return Stats{}, err
	}
	defer stmt.Close()
	result, err := g.conn.Execute(stmt, map[string]any{"repoId": repoID})
	if err != nil {
		return Stats{}, err
	}
	defer result.Close()

	if !result.HasNext() {
		return Stats{}, nil
	}
	row, err := result.Next()
	if err != nil {
		return Stats{}, err
	}
	tuple, err := row.GetAsMap()
	if err != nil {
		return Stats{}, err
	}
	return Stats{
		FileCount:   kuzuInt(tuple["files"]),
		SymbolCount: kuzuInt(tuple["symbols"]),
		CallCount:   kuzuInt(tuple["calls"]),
		ImportCount: kuzuInt(tuple["imports"]),
	}, nil
}

func kuzuInt(v any) int {
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}
