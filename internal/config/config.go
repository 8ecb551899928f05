package config

import (
	"fmt"
	"io/ioutil"
	"os"
	"regexp"

	"gopkg.in/yaml.v2"
)

type SourceConfig struct {
	Repositories []Repository `yaml:"repositories"`
}

type Repository struct {
	Name               string `yaml:"name"`
	Path               string `yaml:"path"`
	Test               string `yaml:"test,omitempty"`
	Language           string `yaml:"language"`
	Disabled           bool   `yaml:"disabled,omitempty"`
	SkipOtherLanguages bool   `yaml:"skip_other_languages,omitempty"`
}

type App struct {
	Port           int    `yaml:"port"`
	CodeGraph      bool   `yaml:"codegraph"`
	Gopls          string `yaml:"gopls"`
	Python         string `yaml:"python"`
	WorkDir        string `yaml:"workdir,omitempty"`
	GCThreshold    int64  `yaml:"gc_threshold,omitempty"`
	NumFileThreads int    `yaml:"num_file_threads,omitempty"`
}

type McpConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

type Neo4jConfig struct {
	URI      string `yaml:"uri"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

type KuzuConfig struct {
	Path string `yaml:"path"`
}

type QdrantConfig struct {
	Host   string `yaml:"host"`
	Port   int    `yaml:"port"`
	APIKey string `yaml:"apikey"`
}

type OllamaConfig struct {
	URL       string `yaml:"url"`
	APIKey    string `yaml:"apikey"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

type ChunkingConfig struct {
	MinConditionalLines int `yaml:"min_conditional_lines"`
	MinLoopLines        int `yaml:"min_loop_lines"`
}

type BloomFilterConfig struct {
	Enabled           bool    `yaml:"enabled"`
	StorageDir        string  `yaml:"storage_dir"`
	ExpectedItems     uint    `yaml:"expected_items"`
	FalsePositiveRate float64 `yaml:"false_positive_rate"`
}

type IndexBuildingConfig struct {
	EnableCodeGraph  bool `yaml:"enable_code_graph"`
	EnableEmbeddings bool `yaml:"enable_embeddings"`
	EnableNgram      bool `yaml:"enable_ngram"`
}

func (c *McpConfig) GetAddress() string {
	//return fmt.Sprintf("%s:%d", c.Host, c.Port) //, c.Path)
	return fmt.Sprintf(":%d", c.Port) //, c.Path)
}

// EmbeddingBackend selects which embedding provider the vector manager uses.
type EmbeddingBackend string

const (
	EmbeddingBackendLocal  EmbeddingBackend = "local"
	EmbeddingBackendCloudA EmbeddingBackend = "cloudA"
	EmbeddingBackendCloudB EmbeddingBackend = "cloudB"
)

// EmbeddingConfig selects and configures the embedding backends available to
// the vector manager. Backend set to local picks the local backend when it
// is configured; any other value, including empty, leaves the manager's
// order among the configured backends: cloudA -> cloudB -> local.
type EmbeddingConfig struct {
	Backend EmbeddingBackend `yaml:"backend,omitempty"`
	CloudA  CloudAConfig     `yaml:"cloud_a"`
	CloudB  CloudBConfig     `yaml:"cloud_b"`
}

// CloudAConfig configures the Gemini-backed embedding client.
type CloudAConfig struct {
	APIKey    string `yaml:"apikey"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// CloudBConfig configures the OpenAI-backed embedding client.
type CloudBConfig struct {
	APIKey    string `yaml:"apikey"`
	Model     string `yaml:"model"`
	Dimension int    `yaml:"dimension"`
}

// SyncConfig tunes the sync engine's worker pool, file filters, and chunking
// threshold.
type SyncConfig struct {
	NumWorkers              int      `yaml:"num_workers,omitempty"`
	ExcludePatterns         []string `yaml:"exclude_patterns,omitempty"`
	IncludeLanguages        []string `yaml:"include_languages,omitempty"`
	WholeFileChunkMaxLines  int      `yaml:"whole_file_chunk_max_lines,omitempty"`
}

type MySQLConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Database string `yaml:"database"`
}

type Config struct {
	Source        SourceConfig        `yaml:"source"`
	Mcp           McpConfig           `yaml:"mcp"`
	Neo4j         Neo4jConfig         `yaml:"neo4j"`
	Kuzu          KuzuConfig          `yaml:"kuzu"`
	Qdrant        QdrantConfig        `yaml:"qdrant"`
	Chunking      ChunkingConfig      `yaml:"chunking"`
	Ollama        OllamaConfig        `yaml:"ollama"`
	Embedding     EmbeddingConfig     `yaml:"embedding"`
	Sync          SyncConfig          `yaml:"sync"`
	BloomFilter   BloomFilterConfig   `yaml:"bloom_filter"`
	IndexBuilding IndexBuildingConfig `yaml:"index_building"`
	MySQL         MySQLConfig         `yaml:"mysql"`
	App           App                 `yaml:"app"`
}

var (
	reBraced = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)(:-([^}]*))?\}`)
	reBare   = regexp.MustCompile(`\$([A-Za-z_][A-Za-z0-9_]*)`)
)

// expandEnvVars interpolates ${VAR}, ${VAR:-default}, and $VAR references
// against the process environment. A bare $VAR with no matching environment
// variable is left untouched; a braced ${VAR} with no default and no
// environment variable expands to the empty string.
func expandEnvVars(s string) string {
	s = reBraced.ReplaceAllStringFunc(s, func(m string) string {
		sub := reBraced.FindStringSubmatch(m)
		name, hasDefault, def := sub[1], sub[2] != "", sub[3]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		if hasDefault {
			return def
		}
		return ""
	})
	s = reBare.ReplaceAllStringFunc(s, func(m string) string {
		name := reBare.FindStringSubmatch(m)[1]
		if v, ok := os.LookupEnv(name); ok {
			return v
		}
		return m
	})
	return s
}

func LoadConfig(appConfigPath string, sourceConfigPath string) (*Config, error) {
	if _, err := os.Stat(appConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("app config file does not exist: %s", appConfigPath)
	}
	if _, err := os.Stat(sourceConfigPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("source config file does not exist: %s", sourceConfigPath)
	}

	dataApp, err := ioutil.ReadFile(appConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read app config file: %w", err)
	}

	dataSource, err := ioutil.ReadFile(sourceConfigPath)
	if err != nil {
		return nil, fmt.Errorf("failed to read source config file: %w", err)
	}

	var configApp Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(dataApp))), &configApp); err != nil {
		return nil, fmt.Errorf("failed to unmarshal app config: %w", err)
	}

	var configSource Config
	if err := yaml.Unmarshal([]byte(expandEnvVars(string(dataSource))), &configSource); err != nil {
		return nil, fmt.Errorf("failed to unmarshal source config: %w", err)
	}

	// Merge SourceConfig into configApp
	configApp.Source = configSource.Source

	// Validate repository configurations
	if err := validateRepositories(&configApp); err != nil {
		return nil, fmt.Errorf("invalid repository configuration: %w", err)
	}

	if configSource.Mcp.Host != "" {
		configApp.Mcp = configSource.Mcp
	}

	if configSource.Neo4j.URI != "" {
		configApp.Neo4j = configSource.Neo4j
	}

	if configSource.Kuzu.Path != "" {
		configApp.Kuzu = configSource.Kuzu
	}

	if configSource.Qdrant.Host != "" {
		configApp.Qdrant = configSource.Qdrant
	}

	if configSource.Ollama.URL != "" {
		configApp.Ollama = configSource.Ollama
	}

	if configSource.Embedding.Backend != "" {
		configApp.Embedding = configSource.Embedding
	}

	return &configApp, nil
}

func (c *Config) GetRepository(name string) (*Repository, error) {
	for _, repo := range c.Source.Repositories {
		if repo.Name == name {
			return &repo, nil
		}
	}
	return nil, fmt.Errorf("repository not found: %s", name)
}

// validateRepositories validates repository configurations
func validateRepositories(config *Config) error {
	for _, repo := range config.Source.Repositories {
		// If skip_other_languages is true, language must be specified
		if repo.SkipOtherLanguages && repo.Language == "" {
			return fmt.Errorf("repository '%s': skip_other_languages is true but language is not specified", repo.Name)
		}
	}
	return nil
}
