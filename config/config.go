package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
	"gopkg.in/yaml.v3"
	"vectorchat/internal/domain"
)

// DefaultFileName is looked up in the working directory when no --config is given.
const DefaultFileName = "vectorchat.yaml"

// Config holds all configuration for vectorchat.
// It is built once by Load and treated as read-only afterwards.
type Config struct {
	Embedding EmbeddingConfig `yaml:"embedding"`
	Chat      ChatConfig      `yaml:"chat"`
	Store     StoreConfig     `yaml:"store"`
	Retrieve  RetrieveConfig  `yaml:"retrieve"`
	Chunk     ChunkConfig     `yaml:"chunk"`
	Files     FilesConfig     `yaml:"files"`
	HTTP      HTTPConfig      `yaml:"http"`
	Cache     CacheConfig     `yaml:"cache"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// EmbeddingConfig holds embedding configuration.
type EmbeddingConfig struct {
	Provider  string `yaml:"provider" envconfig:"EMBEDDING_PROVIDER"` // "openai", "mock"
	APIKey    string `yaml:"api_key" envconfig:"OPENAI_API_KEY"`
	BaseURL   string `yaml:"base_url" envconfig:"OPENAI_BASE_URL"`
	Model     string `yaml:"model" envconfig:"DEFAULT_EMBEDDING_MODEL"`
	Dimension int    `yaml:"dimension" envconfig:"EMBEDDING_DIMENSION"` // 0 = derive from model
	BatchSize int    `yaml:"batch_size" envconfig:"EMBEDDING_BATCH_SIZE"`
}

// ChatConfig holds chat-completion configuration.
type ChatConfig struct {
	APIKey       string  `yaml:"api_key" envconfig:"CHAT_API_KEY"`   // falls back to the embedding key
	BaseURL      string  `yaml:"base_url" envconfig:"CHAT_BASE_URL"` // falls back to the embedding base URL
	Model        string  `yaml:"model" envconfig:"DEFAULT_CHAT_MODEL"`
	Temperature  float64 `yaml:"temperature" envconfig:"CHAT_TEMPERATURE"`
	SystemPrompt string  `yaml:"system_prompt" envconfig:"CHAT_SYSTEM_PROMPT"`
}

// StoreConfig holds vector database configuration.
type StoreConfig struct {
	Provider   string `yaml:"provider" envconfig:"VECTOR_STORE"` // "qdrant", "qdrant-grpc", "bolt", "memory"
	URL        string `yaml:"url" envconfig:"QDRANT_URL"`
	APIKey     string `yaml:"api_key" envconfig:"QDRANT_API_KEY"`
	Collection string `yaml:"collection" envconfig:"QDRANT_COLLECTION"`
	Path       string `yaml:"path" envconfig:"VECTOR_STORE_PATH"` // bolt file
}

// RetrieveConfig holds retrieval configuration.
type RetrieveConfig struct {
	TopK            int     `yaml:"top_k" envconfig:"RETRIEVE_TOP_K"`
	MinScore        float64 `yaml:"min_score" envconfig:"RETRIEVE_MIN_SCORE"`                 // 0 = disabled
	MaxContextChars int     `yaml:"max_context_chars" envconfig:"RETRIEVE_MAX_CONTEXT_CHARS"` // 0 = unlimited
	MMRLambda       float64 `yaml:"mmr_lambda" envconfig:"RETRIEVE_MMR_LAMBDA"`               // 0 = no reranking
	DedupJaccard    float64 `yaml:"dedup_jaccard" envconfig:"RETRIEVE_DEDUP_JACCARD"`
}

// ChunkConfig holds text chunking configuration.
type ChunkConfig struct {
	MaxSentences int `yaml:"max_sentences" envconfig:"CHUNK_MAX_SENTENCES"` // 0 = embed whole text
}

// FilesConfig controls which files `embed --list-files` reports.
type FilesConfig struct {
	Includes []string `yaml:"includes" envconfig:"FILES_INCLUDES"`
	Excludes []string `yaml:"excludes" envconfig:"FILES_EXCLUDES"`
}

// HTTPConfig holds settings shared by every remote client.
type HTTPConfig struct {
	Timeout    time.Duration `yaml:"timeout" envconfig:"HTTP_TIMEOUT"`
	MaxRetries int           `yaml:"max_retries" envconfig:"HTTP_MAX_RETRIES"` // 0 = no retries
}

// CacheConfig holds query embedding cache settings.
type CacheConfig struct {
	Size int           `yaml:"size" envconfig:"EMBED_CACHE_SIZE"` // 0 = disabled
	TTL  time.Duration `yaml:"ttl" envconfig:"EMBED_CACHE_TTL"`
}

// LoggingConfig holds logging configuration.
type LoggingConfig struct {
	Level  string `yaml:"level" envconfig:"LOG_LEVEL"`
	Format string `yaml:"format" envconfig:"LOG_FORMAT"` // "text", "json"
}

const defaultSystemPrompt = `You are a helpful assistant that can answer questions based on provided context or general knowledge.
If context is provided, prioritize that information in your answers.
If no context is provided or the question is outside the scope of the context, use your general knowledge to provide a helpful response.
Always be honest about what you know and don't know.`

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Embedding: EmbeddingConfig{
			Provider:  "openai",
			BaseURL:   "https://api.openai.com/v1",
			Model:     "text-embedding-3-small",
			BatchSize: 64,
		},
		Chat: ChatConfig{
			Model:        "gpt-4o",
			Temperature:  0.7,
			SystemPrompt: defaultSystemPrompt,
		},
		Store: StoreConfig{
			Provider:   "qdrant",
			Collection: "openai_embeddings",
			Path:       filepath.Join(".vectorchat", "vectors.db"),
		},
		Retrieve: RetrieveConfig{
			TopK:            3,
			MinScore:        0.3,
			MaxContextChars: 8000,
			DedupJaccard:    0.9,
		},
		Chunk: ChunkConfig{
			MaxSentences: 3,
		},
		Files: FilesConfig{
			Includes: []string{"*.txt", "*.md", "*.py", "*.js", "*.html", "*.css", "*.json", "*.csv", "*.xml", "*.yaml", "*.yml"},
			Excludes: []string{".git/**", ".vectorchat/**", "node_modules/**"},
		},
		HTTP: HTTPConfig{
			Timeout:    60 * time.Second,
			MaxRetries: 0,
		},
		Cache: CacheConfig{
			Size: 256,
			TTL:  10 * time.Minute,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
		},
	}
}

// LoadDotEnv loads KEY=value pairs from the given files into the process
// environment. Missing files are ignored and existing variables win.
func LoadDotEnv(paths ...string) error {
	for _, path := range paths {
		if _, err := os.Stat(path); err != nil {
			continue
		}
		if err := godotenv.Load(path); err != nil {
			return fmt.Errorf("failed to load %s: %w", path, err)
		}
	}
	return nil
}

// Load builds the configuration from defaults, the YAML file at path (when it
// exists) and the process environment, in increasing priority.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil && !os.IsNotExist(err) {
			return nil, err
		}
		if err == nil {
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to parse %s: %w", path, err)
			}
		}
	}

	if err := applyEnv(cfg); err != nil {
		return nil, err
	}
	cfg.normalize()

	return cfg, nil
}

// LoadFromDir loads configuration from a directory (looks for vectorchat.yaml).
func LoadFromDir(dir string) (*Config, error) {
	return Load(filepath.Join(dir, DefaultFileName))
}

func applyEnv(cfg *Config) error {
	sections := []any{
		&cfg.Embedding, &cfg.Chat, &cfg.Store, &cfg.Retrieve,
		&cfg.Chunk, &cfg.Files, &cfg.HTTP, &cfg.Cache, &cfg.Logging,
	}
	for _, section := range sections {
		if err := envconfig.Process("", section); err != nil {
			return fmt.Errorf("invalid environment: %w", err)
		}
	}
	return nil
}

func (c *Config) normalize() {
	c.Embedding.Provider = strings.ToLower(strings.TrimSpace(c.Embedding.Provider))
	c.Store.Provider = strings.ToLower(strings.TrimSpace(c.Store.Provider))
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))

	if c.Chat.APIKey == "" {
		c.Chat.APIKey = c.Embedding.APIKey
	}
	if c.Chat.BaseURL == "" {
		c.Chat.BaseURL = c.Embedding.BaseURL
	}
	c.Embedding.BaseURL = strings.TrimSuffix(c.Embedding.BaseURL, "/")
	c.Chat.BaseURL = strings.TrimSuffix(c.Chat.BaseURL, "/")
	c.Store.URL = strings.TrimSuffix(c.Store.URL, "/")
}

// RemoteStore reports whether the configured store talks to a Qdrant server.
func (c *Config) RemoteStore() bool {
	return c.Store.Provider == "qdrant" || c.Store.Provider == "qdrant-grpc"
}

// Validate reports every required setting that is missing.
func (c *Config) Validate() error {
	var missing []string

	if c.Embedding.Provider != "mock" && c.Embedding.APIKey == "" {
		missing = append(missing, "OPENAI_API_KEY")
	}
	if c.RemoteStore() && c.Store.URL == "" {
		missing = append(missing, "QDRANT_URL")
	}
	if c.Store.Collection == "" {
		missing = append(missing, "QDRANT_COLLECTION")
	}
	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", domain.ErrMissingConfiguration, strings.Join(missing, ", "))
	}

	var errs []error
	switch c.Store.Provider {
	case "qdrant", "qdrant-grpc", "bolt", "memory":
	default:
		errs = append(errs, fmt.Errorf("unsupported vector store: %q", c.Store.Provider))
	}
	switch c.Embedding.Provider {
	case "openai", "mock":
	default:
		errs = append(errs, fmt.Errorf("unsupported embedding provider: %q", c.Embedding.Provider))
	}
	if c.Retrieve.TopK <= 0 {
		errs = append(errs, fmt.Errorf("retrieve.top_k must be positive, got %d", c.Retrieve.TopK))
	}
	if c.Retrieve.MMRLambda < 0 || c.Retrieve.MMRLambda > 1 {
		errs = append(errs, fmt.Errorf("retrieve.mmr_lambda must be within [0, 1], got %g", c.Retrieve.MMRLambda))
	}
	if c.HTTP.Timeout <= 0 {
		errs = append(errs, fmt.Errorf("http.timeout must be positive, got %s", c.HTTP.Timeout))
	}
	if c.HTTP.MaxRetries < 0 {
		errs = append(errs, fmt.Errorf("http.max_retries must not be negative, got %d", c.HTTP.MaxRetries))
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", domain.ErrUsage, errors.Join(errs...))
	}
	return nil
}
