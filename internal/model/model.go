// Package model defines the data shapes shared by the parser, graph store,
// vector manager, sync engine, and commit analyzer.
package model

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
)

// Language identifies the source language a file was parsed as.
type Language string

const (
	LanguageGo         Language = "go"
	LanguagePython     Language = "python"
	LanguageJavaScript Language = "javascript"
	LanguageTypeScript Language = "typescript"
	LanguageJava       Language = "java"
	LanguageMarkdown   Language = "markdown"
	LanguageUnknown    Language = "unknown"
)

// SymbolKind enumerates the kinds of symbols a parser can extract.
type SymbolKind string

const (
	SymbolFunction  SymbolKind = "function"
	SymbolMethod    SymbolKind = "method"
	SymbolClass     SymbolKind = "class"
	SymbolStruct    SymbolKind = "struct"
	SymbolInterface SymbolKind = "interface"
	SymbolType      SymbolKind = "type"
	SymbolVariable  SymbolKind = "variable"
	SymbolConstant  SymbolKind = "constant"
)

// Visibility enumerates a symbol's externally-visible access level.
type Visibility string

const (
	VisibilityPublic    Visibility = "public"
	VisibilityPrivate   Visibility = "private"
	VisibilityProtected Visibility = "protected"
)

// Repository identifies a workspace the engine has been asked to index.
type Repository struct {
	ID   string
	Name string
	Path string
}

// ParsedFile is the output of parsing a single source file.
type ParsedFile struct {
	RepoID    string
	Path      string
	Language  Language
	Hash      string // sha256 of file content, hex encoded
	Symbols   []SymbolNode
	Imports   []Import
	Exports   []Export
	LineCount int
}

// SymbolNode is a function, method, class, struct, interface, type,
// variable, or constant extracted from a parsed file.
//
// Invariants: StartLine and EndLine are 1-based and inclusive, EndLine >=
// StartLine, Complexity >= 1, and QualifiedName is unique within a file.
type SymbolNode struct {
	ID            string
	RepoID        string
	FilePath      string
	Kind          SymbolKind
	Name          string
	QualifiedName string
	StartLine     int
	EndLine       int
	Complexity    int
	Calls         []CallInfo
	Signature     string
	DocComment    string
	Visibility    Visibility
	IsAsync       bool
	IsStatic      bool
}

// Import is a single import/require statement. ResolvedTo holds the
// repo-relative file it points at when known; the parsers leave it empty.
type Import struct {
	Path       string // as written in source
	ResolvedTo string // repo-relative path, empty if unresolved/external
	Line       int
}

// Export is a symbol a file makes visible outside its package/module.
type Export struct {
	Name string
	Kind SymbolKind
	Line int
}

// CallInfo records a call from one symbol to another, along with whether the
// call site is reached only conditionally (inside an if/for/while/switch
// ancestor in the caller's body).
type CallInfo struct {
	CalleeName    string
	Line          int
	IsConditional bool
}

// CodeChunk is a unit of text handed to the embedding pipeline.
//
// ID is deterministic: "{file}:{startLine}-{endLine}".
type CodeChunk struct {
	ID         string
	RepoID     string
	FilePath   string
	StartLine  int
	EndLine    int
	Text       string
	SymbolID   string // empty for whole-file chunks
	SymbolKind SymbolKind
	SymbolName string
	DocComment string
	Language   Language
}

// NewChunkID derives a CodeChunk's deterministic identifier.
func NewChunkID(filePath string, startLine, endLine int) string {
	return fmt.Sprintf("%s:%d-%d", filePath, startLine, endLine)
}

// EmbeddingEntry is a cached embedding vector, keyed by content hash. The raw
// text is never persisted in the index — only its TextHash — so the index
// doesn't grow into a second copy of the source tree and stays independent
// of the content-addressing guarantee (two texts differing only by
// normalization still resolve to the same id and hash).
type EmbeddingEntry struct {
	ID           string
	Model        string
	TextHash     string
	Vector       []float32
	Dimension    int
	AccessCount  int64
	LastAccessed int64 // unix seconds
	CreatedAt    int64 // unix seconds
}

// NormalizeEmbeddingText applies the normalization rule used when deriving
// an embedding cache key: trim surrounding whitespace and collapse internal
// whitespace runs so that reformatted-but-identical code hits the cache.
func NormalizeEmbeddingText(text string) string {
	fields := strings.Fields(text)
	return strings.Join(fields, " ")
}

// NewEmbeddingID derives the content-addressed cache key for (model, text):
// sha256("{model}:{normalize(text)}") truncated to 16 hex digits.
func NewEmbeddingID(model, text string) string {
	sum := sha256.Sum256([]byte(model + ":" + NormalizeEmbeddingText(text)))
	return hex.EncodeToString(sum[:])[:16]
}

// NewTextHash derives the content-only hash stored alongside an
// EmbeddingEntry and in the export/import bundle format: sha256(normalize(text))
// truncated to 32 hex digits. Unlike NewEmbeddingID it does not fold in the
// model name, so it identifies the same source text across re-embeddings
// with a different model.
func NewTextHash(text string) string {
	sum := sha256.Sum256([]byte(NormalizeEmbeddingText(text)))
	return hex.EncodeToString(sum[:])[:32]
}

// ParserMode records which tier of the parser registry produced a result.
type ParserMode string

const (
	ParserModeNative   ParserMode = "native"
	ParserModeFallback ParserMode = "fallback"
)

// SyncState is the crash-safe record of the last completed sync, persisted
// as JSON under the workspace's .cv/ directory.
type SyncState struct {
	RepoID        string            `json:"repoId"`
	LastSyncedAt  int64             `json:"lastSyncedAt"`
	HeadCommitSHA string            `json:"headCommitSha"`
	FileHashes    map[string]string `json:"fileHashes"` // repo-relative path -> content hash
	ParserMode    ParserMode        `json:"parserMode"`
	FilesIndexed  int               `json:"filesIndexed"`
	SymbolsFound  int               `json:"symbolsFound"`
	ChunksEmbedded int              `json:"chunksEmbedded"`
}

// CommitKind classifies a commit using conventional-commit prefixes.
type CommitKind string

const (
	CommitFeat     CommitKind = "feat"
	CommitFix      CommitKind = "fix"
	CommitRefactor CommitKind = "refactor"
	CommitDocs     CommitKind = "docs"
	CommitTest     CommitKind = "test"
	CommitBuild    CommitKind = "build"
	CommitCI       CommitKind = "ci"
	CommitChore    CommitKind = "chore"
	CommitUnknown  CommitKind = "unknown"
)

// BreakingChange records a single breaking change found by the commit
// analyzer: a deleted or signature-modified symbol with at least one caller
// outside its own file.
type BreakingChange struct {
	QualifiedName   string
	Reason          string // "deleted" or "signature changed"
	AffectedCallers []string
}

// CommitAnalysis is the result of analyzing a repository's staged changes.
type CommitAnalysis struct {
	Kind            CommitKind
	Scope           string
	Breaking        bool
	BreakingChanges []BreakingChange
	FilesChanged    []string
	LinesAdded      int
	LinesRemoved    int
	SymbolsAdded    []string // qualified names
	SymbolsModified []string
	SymbolsDeleted  []string
	ComplexityDelta int
	RawDiff         string
	// BaselineKnown is false when the analysis ran without a prior graph
	// snapshot to diff against, in which case every changed symbol is
	// reported as added and Breaking is always false.
	BaselineKnown bool
}
