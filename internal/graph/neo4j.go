package graph

import (
	"context"
	"fmt"
	"time"

	"github.com/neo4j/neo4j-go-driver/v5/neo4j"
	"go.uber.org/zap"

	"github.com/controlvector/cv-core/internal/model"
)

func nowUnix() int64 { return time.Now().Unix() }

// Neo4jGraph is the Neo4j-backed GraphDatabase, grounded on the teacher's
// CodeGraph/writeNode/readNodes idiom of issuing parameterized Cypher through
// a single shared driver and managed transactions.
type Neo4jGraph struct {
	driver neo4j.DriverWithContext
	logger *zap.Logger
}

// NewNeo4jGraph opens a driver against uri and verifies connectivity before
// returning, matching the teacher's NewCodeGraph.
func NewNeo4jGraph(ctx context.Context, uri, username, password string, logger *zap.Logger) (*Neo4jGraph, error) {
	driver, err := neo4j.NewDriverWithContext(uri, neo4j.BasicAuth(username, password, ""))
	if err != nil {
		return nil, fmt.Errorf("failed to create neo4j driver: %w", err)
	}
	if err := driver.VerifyConnectivity(ctx); err != nil {
		driver.Close(ctx)
		return nil, fmt.Errorf("failed to verify neo4j connectivity: %w", err)
	}
	return &Neo4jGraph{driver: driver, logger: logger}, nil
}

func (g *Neo4jGraph) Close(ctx context.Context) error {
	return g.driver.Close(ctx)
}

func (g *Neo4jGraph) write(ctx context.Context, query string, params map[string]any) error {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeWrite})
	defer session.Close(ctx)

	_, err := session.ExecuteWrite(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		return tx.Run(ctx, query, params)
	})
	return err
}

func (g *Neo4jGraph) read(ctx context.Context, query string, params map[string]any) ([]*neo4j.Record, error) {
	session := g.driver.NewSession(ctx, neo4j.SessionConfig{AccessMode: neo4j.AccessModeRead})
	defer session.Close(ctx)

	result, err := session.ExecuteRead(ctx, func(tx neo4j.ManagedTransaction) (any, error) {
		res, err := tx.Run(ctx, query, params)
		if err != nil {
			return nil, err
		}
		return res.Collect(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*neo4j.Record), nil
}

func (g *Neo4jGraph) UpsertFile(ctx context.Context, pf model.ParsedFile) error {
	query := `
		MERGE (f:File {repoId: $repoId, path: $path})
		SET f.language = $language, f.hash = $hash, f.lineCount = $lineCount
	`
	return g.write(ctx, query, map[string]any{
		"repoId":    pf.RepoID,
		"path":      pf.Path,
		"language":  string(pf.Language),
		"hash":      pf.Hash,
		"lineCount": pf.LineCount,
	})
}

func (g *Neo4jGraph) UpsertSymbols(ctx context.Context, repoID, filePath string, symbols []model.SymbolNode) error {
	if len(symbols) == 0 {
		return nil
	}
	params := make([]map[string]any, 0, len(symbols))
	for _, s := range symbols {
		params = append(params, map[string]any{
			"repoId":        repoID,
			"filePath":      filePath,
			"qualifiedName": s.QualifiedName,
			"name":          s.Name,
			"kind":          string(s.Kind),
			"startLine":     s.StartLine,
			"endLine":       s.EndLine,
			"complexity":    s.Complexity,
			"signature":     s.Signature,
			"docComment":    s.DocComment,
			"visibility":    string(s.Visibility),
			"isAsync":       s.IsAsync,
			"isStatic":      s.IsStatic,
		})
	}
	query := `
		UNWIND $symbols AS sym
		MERGE (s:Symbol {repoId: sym.repoId, qualifiedName: sym.qualifiedName})
		SET s.filePath = sym.filePath, s.name = sym.name, s.kind = sym.kind,
			s.startLine = sym.startLine, s.endLine = sym.endLine,
			s.complexity = sym.complexity, s.signature = sym.signature,
			s.docComment = sym.docComment, s.visibility = sym.visibility,
			s.isAsync = sym.isAsync, s.isStatic = sym.isStatic
		WITH s, sym
		MATCH (f:File {repoId: sym.repoId, path: sym.filePath})
		MERGE (f)-[:DECLARES]->(s)
	`
	return g.write(ctx, query, map[string]any{"symbols": params})
}

func (g *Neo4jGraph) UpsertCalls(ctx context.Context, repoID string, symbols []model.SymbolNode) error {
	var params []map[string]any
	for _, s := range symbols {
		for _, c := range s.Calls {
			params = append(params, map[string]any{
				"repoId":        repoID,
				"caller":        s.QualifiedName,
				"callee":        c.CalleeName,
				"line":          c.Line,
				"isConditional": c.IsConditional,
			})
		}
	}
	if len(params) == 0 {
		return nil
	}
	query := `
		UNWIND $calls AS call
		MATCH (caller:Symbol {repoId: call.repoId, qualifiedName: call.caller})
		MERGE (callee:Symbol {repoId: call.repoId, name: call.callee})
		ON CREATE SET callee.qualifiedName = call.callee, callee.unresolved = true
		MERGE (caller)-[r:CALLS {line: call.line}]->(callee)
		SET r.isConditional = call.isConditional
	`
	return g.write(ctx, query, map[string]any{"calls": params})
}

func (g *Neo4jGraph) UpsertImports(ctx context.Context, repoID, filePath string, imports []model.Import) error {
	if len(imports) == 0 {
		return nil
	}
	params := make([]map[string]any, 0, len(imports))
	for _, imp := range imports {
		params = append(params, map[string]any{
			"repoId":   repoID,
			"filePath": filePath,
			"path":     imp.Path,
			"line":     imp.Line,
		})
	}
	query := `
		UNWIND $imports AS imp
		MATCH (f:File {repoId: imp.repoId, path: imp.filePath})
		MERGE (dep:File {repoId: imp.repoId, path: imp.path})
		MERGE (f)-[r:IMPORTS]->(dep)
		SET r.line = imp.line
	`
	return g.write(ctx, query, map[string]any{"imports": params})
}

func (g *Neo4jGraph) RemoveFile(ctx context.Context, repoID, filePath string) error {
	query := `
		MATCH (f:File {repoId: $repoId, path: $path})
		OPTIONAL MATCH (f)-[:DECLARES]->(s:Symbol)
		DETACH DELETE f, s
	`
	return g.write(ctx, query, map[string]any{"repoId": repoID, "path": filePath})
}

func (g *Neo4jGraph) GetCallers(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	query := fmt.Sprintf(`
		MATCH (callee:Symbol {repoId: $repoId, qualifiedName: $qualifiedName})
		MATCH (caller:Symbol)-[:CALLS*1..%d]->(callee)
		RETURN DISTINCT caller.qualifiedName AS name
	`, clampDepth(depth))
	return g.collectStrings(ctx, query, repoID, qualifiedName, "name")
}

func (g *Neo4jGraph) GetCallees(ctx context.Context, repoID, qualifiedName string, depth int) ([]string, error) {
	query := fmt.Sprintf(`
		MATCH (caller:Symbol {repoId: $repoId, qualifiedName: $qualifiedName})
		MATCH (caller)-[:CALLS*1..%d]->(callee:Symbol)
		RETURN DISTINCT callee.qualifiedName AS name
	`, clampDepth(depth))
	return g.collectStrings(ctx, query, repoID, qualifiedName, "name")
}

func (g *Neo4jGraph) GetFileDependents(ctx context.Context, repoID, filePath string) ([]string, error) {
	query := `
		MATCH (dep:File {repoId: $repoId, path: $path})
		MATCH (f:File)-[:IMPORTS]->(dep)
		RETURN DISTINCT f.path AS name
	`
	return g.collectStrings(ctx, query, repoID, filePath, "name")
}

func (g *Neo4jGraph) GetFileDependencies(ctx context.Context, repoID, filePath string) ([]string, error) {
	query := `
		MATCH (f:File {repoId: $repoId, path: $path})
		MATCH (f)-[:IMPORTS]->(dep:File)
		RETURN DISTINCT dep.path AS name
	`
	return g.collectStrings(ctx, query, repoID, filePath, "name")
}

func (g *Neo4jGraph) GetSymbolsForFile(ctx context.Context, repoID, filePath string) ([]model.SymbolNode, error) {
	query := `
		MATCH (f:File {repoId: $repoId, path: $path})-[:DECLARES]->(s:Symbol)
		RETURN s.qualifiedName AS qualifiedName, s.name AS name, s.kind AS kind,
			s.startLine AS startLine, s.endLine AS endLine, s.complexity AS complexity, s.signature AS signature,
			s.docComment AS docComment, s.visibility AS visibility, s.isAsync AS isAsync, s.isStatic AS isStatic
	`
	records, err := g.read(ctx, query, map[string]any{"repoId": repoID, "path": filePath})
	if err != nil {
		return nil, fmt.Errorf("failed to read symbols for file %s: %w", filePath, err)
	}

	symbols := make([]model.SymbolNode, 0, len(records))
	for _, rec := range records {
		name, _ := rec.Get("name")
		qn, _ := rec.Get("qualifiedName")
		kind, _ := rec.Get("kind")
		sig, _ := rec.Get("signature")
		doc, _ := rec.Get("docComment")
		vis, _ := rec.Get("visibility")
		isAsync, _ := rec.Get("isAsync")
		isStatic, _ := rec.Get("isStatic")
		s := model.SymbolNode{
			RepoID:        repoID,
			FilePath:      filePath,
			StartLine:     intOf(rec, "startLine"),
			EndLine:       intOf(rec, "endLine"),
			Complexity:    intOf(rec, "complexity"),
		}
		if v, ok := name.(string); ok {
			s.Name = v
		}
		if v, ok := qn.(string); ok {
			s.QualifiedName = v
		}
		if v, ok := kind.(string); ok {
			s.Kind = model.SymbolKind(v)
		}
		if v, ok := sig.(string); ok {
			s.Signature = v
		}
		if v, ok := doc.(string); ok {
			s.DocComment = v
		}
		if v, ok := vis.(string); ok {
			s.Visibility = model.Visibility(v)
		}
		if v, ok := isAsync.(bool); ok {
			s.IsAsync = v
		}
		if v, ok := isStatic.(bool); ok {
			s.IsStatic = v
		}
		symbols = append(symbols, s)
	}
	return symbols, nil
}

func (g *Neo4jGraph) GetOwnership(ctx context.Context) (Ownership, bool, error) {
	query := `MATCH (o:Ownership) RETURN o.repoId AS repoId, o.createdAt AS createdAt LIMIT 1`
	records, err := g.read(ctx, query, nil)
	if err != nil {
		return Ownership{}, false, fmt.Errorf("failed to read ownership: %w", err)
	}
	if len(records) == 0 {
		return Ownership{}, false, nil
	}
	repoID, _ := records[0].Get("repoId")
	o := Ownership{CreatedAt: int64(intOf(records[0], "createdAt"))}
	if s, ok := repoID.(string); ok {
		o.RepoID = s
	}
	return o, true, nil
}

func (g *Neo4jGraph) SetOwnership(ctx context.Context, repoID string) error {
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
	return g.write(ctx, `CREATE (o:Ownership {repoId: $repoId, createdAt: $createdAt})`,
		map[string]any{"repoId": repoID, "createdAt": nowUnix()})
}

func (g *Neo4jGraph) GetStats(ctx context.Context, repoID string) (Stats, error) {
	query := `
		MATCH (f:File {repoId: $repoId})
		OPTIONAL MATCH (f)-[:DECLARES]->(s:Symbol)
		OPTIONAL MATCH (s)-[c:CALLS]->()
		OPTIONAL MATCH (f)-[i:IMPORTS]->()
		RETURN count(DISTINCT f) AS files, count(DISTINCT s) AS symbols,
			count(DISTINCT c) AS calls, count(DISTINCT i) AS imports
	`
	records, err := g.read(ctx, query, map[string]any{"repoId": repoID})
	if err != nil {
		return Stats{}, fmt.Errorf("failed to read graph stats: %w", err)
	}
	if len(records) == 0 {
		return Stats{}, nil
	}
	return Stats{
		FileCount:   intOf(records[0], "files"),
		SymbolCount: intOf(records[0], "symbols"),
		CallCount:   intOf(records[0], "calls"),
		ImportCount: intOf(records[0], "imports"),
	}, nil
}

func (g *Neo4jGraph) collectStrings(ctx context.Context, query, repoID, key, field string) ([]string, error) {
	var paramKey string
	if field == "name" {
		paramKey = "qualifiedName"
	}
	params := map[string]any{"repoId": repoID}
	if paramKey != "" {
		params[paramKey] = key
	}
	params["path"] = key
	records, err := g.read(ctx, query, params)
	if err != nil {
		return nil, err
	}
	out := make([]string, 0, len(records))
	for _, r := range records {
		v, ok := r.Get(field)
		if !ok {
			continue
		}
		if s, ok := v.(string); ok {
			out = append(out, s)
		}
	}
	return out, nil
}

func intOf(record *neo4j.Record, key string) int {
	v, ok := record.Get(key)
	if !ok {
		return 0
	}
	switch n := v.(type) {
	case int64:
		return int(n)
	case int:
		return n
	default:
		return 0
	}
}

func clampDepth(depth int) int {
	if depth <= 0 {
		return 1
	}
	if depth > 10 {
		return 10
	}
	return depth
}
