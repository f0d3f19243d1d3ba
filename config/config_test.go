package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"vectorchat/internal/domain"
)

// clearEnv blanks every variable Load reads so the host environment cannot leak in.
func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"EMBEDDING_PROVIDER", "OPENAI_API_KEY", "OPENAI_BASE_URL", "DEFAULT_EMBEDDING_MODEL",
		"EMBEDDING_DIMENSION", "EMBEDDING_BATCH_SIZE", "CHAT_API_KEY", "CHAT_BASE_URL",
		"DEFAULT_CHAT_MODEL", "CHAT_TEMPERATURE", "CHAT_SYSTEM_PROMPT", "VECTOR_STORE",
		"QDRANT_URL", "QDRANT_API_KEY", "QDRANT_COLLECTION", "VECTOR_STORE_PATH",
		"RETRIEVE_TOP_K", "RETRIEVE_MIN_SCORE", "RETRIEVE_MAX_CONTEXT_CHARS",
		"RETRIEVE_MMR_LAMBDA", "RETRIEVE_DEDUP_JACCARD",
		"CHUNK_MAX_SENTENCES", "FILES_INCLUDES", "FILES_EXCLUDES", "HTTP_TIMEOUT",
		"HTTP_MAX_RETRIES", "EMBED_CACHE_SIZE", "EMBED_CACHE_TTL", "LOG_LEVEL", "LOG_FORMAT",
	} {
		t.Setenv(key, "")
		os.Unsetenv(key)
	}
}

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	if cfg.Chat.Model != "gpt-4o" {
		t.Errorf("expected chat model gpt-4o, got %s", cfg.Chat.Model)
	}
	if cfg.Embedding.Model != "text-embedding-3-small" {
		t.Errorf("expected embedding model text-embedding-3-small, got %s", cfg.Embedding.Model)
	}
	if cfg.Store.Collection != "openai_embeddings" {
		t.Errorf("expected collection openai_embeddings, got %s", cfg.Store.Collection)
	}
	if cfg.Retrieve.TopK != 3 {
		t.Errorf("expected TopK=3, got %d", cfg.Retrieve.TopK)
	}
	if cfg.Chunk.MaxSentences != 3 {
		t.Errorf("expected MaxSentences=3, got %d", cfg.Chunk.MaxSentences)
	}
	if cfg.HTTP.MaxRetries != 0 {
		t.Errorf("expected no retries by default, got %d", cfg.HTTP.MaxRetries)
	}
}

func TestLoad_NonExistent(t *testing.T) {
	clearEnv(t)

	cfg, err := Load("/nonexistent/path/vectorchat.yaml")
	if err != nil {
		t.Errorf("expected no error for non-existent file, got %v", err)
	}
	if cfg == nil {
		t.Fatal("expected default config, got nil")
	}
	if cfg.Store.Provider != "qdrant" {
		t.Errorf("expected qdrant store, got %s", cfg.Store.Provider)
	}
}

func TestLoad_EnvOverridesYAML(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	configPath := filepath.Join(tmpDir, DefaultFileName)

	content := `
embedding:
  model: text-embedding-3-large
store:
  url: http://yaml-host:6333
  collection: from_yaml
retrieve:
  top_k: 10
http:
  timeout: 5s
`
	if err := os.WriteFile(configPath, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("QDRANT_COLLECTION", "from_env")
	t.Setenv("HTTP_MAX_RETRIES", "2")

	cfg, err := Load(configPath)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if cfg.Embedding.Model != "text-embedding-3-large" {
		t.Errorf("expected model from yaml, got %s", cfg.Embedding.Model)
	}
	if cfg.Store.URL != "http://yaml-host:6333" {
		t.Errorf("expected url from yaml, got %s", cfg.Store.URL)
	}
	if cfg.Store.Collection != "from_env" {
		t.Errorf("expected env to override yaml collection, got %s", cfg.Store.Collection)
	}
	if cfg.Retrieve.TopK != 10 {
		t.Errorf("expected TopK=10, got %d", cfg.Retrieve.TopK)
	}
	if cfg.HTTP.Timeout != 5*time.Second {
		t.Errorf("expected 5s timeout, got %s", cfg.HTTP.Timeout)
	}
	if cfg.HTTP.MaxRetries != 2 {
		t.Errorf("expected MaxRetries=2, got %d", cfg.HTTP.MaxRetries)
	}
}

func TestLoad_ChatFallsBackToEmbeddingSettings(t *testing.T) {
	clearEnv(t)
	t.Setenv("OPENAI_API_KEY", "sk-shared")
	t.Setenv("OPENAI_BASE_URL", "http://localhost:8080/v1/")

	cfg, err := Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.APIKey != "sk-shared" {
		t.Errorf("expected chat key to fall back to embedding key, got %q", cfg.Chat.APIKey)
	}
	if cfg.Chat.BaseURL != "http://localhost:8080/v1" {
		t.Errorf("expected chat base url to fall back, got %q", cfg.Chat.BaseURL)
	}

	t.Setenv("CHAT_API_KEY", "sk-chat")
	cfg, err = Load("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Chat.APIKey != "sk-chat" {
		t.Errorf("expected dedicated chat key, got %q", cfg.Chat.APIKey)
	}
}

func TestLoadFromDir(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()

	content := `
chunk:
  max_sentences: 5
`
	if err := os.WriteFile(filepath.Join(tmpDir, DefaultFileName), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := LoadFromDir(tmpDir)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Chunk.MaxSentences != 5 {
		t.Errorf("expected MaxSentences=5, got %d", cfg.Chunk.MaxSentences)
	}
}

func TestLoadDotEnv(t *testing.T) {
	clearEnv(t)
	tmpDir := t.TempDir()
	envPath := filepath.Join(tmpDir, ".env")
	if err := os.WriteFile(envPath, []byte("QDRANT_URL=http://dotenv:6333\nQDRANT_COLLECTION=dotenv\n"), 0644); err != nil {
		t.Fatal(err)
	}
	t.Setenv("QDRANT_COLLECTION", "process")

	if err := LoadDotEnv(filepath.Join(tmpDir, "missing.env"), envPath); err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { os.Unsetenv("QDRANT_URL") })

	if got := os.Getenv("QDRANT_URL"); got != "http://dotenv:6333" {
		t.Errorf("expected QDRANT_URL from .env, got %q", got)
	}
	if got := os.Getenv("QDRANT_COLLECTION"); got != "process" {
		t.Errorf("expected process env to win over .env, got %q", got)
	}
}

func TestValidate_MissingConfiguration(t *testing.T) {
	cfg := DefaultConfig()

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrMissingConfiguration) {
		t.Fatalf("expected ErrMissingConfiguration, got %v", err)
	}
	if !strings.Contains(err.Error(), "OPENAI_API_KEY") || !strings.Contains(err.Error(), "QDRANT_URL") {
		t.Errorf("expected both missing keys to be named, got %v", err)
	}

	cfg.Embedding.APIKey = "sk-test"
	cfg.Store.URL = "http://localhost:6333"
	if err := cfg.Validate(); err != nil {
		t.Errorf("expected valid config, got %v", err)
	}
}

func TestValidate_LocalStoreNeedsNoURL(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.Provider = "mock"
	cfg.Store.Provider = "bolt"

	if err := cfg.Validate(); err != nil {
		t.Errorf("expected mock+bolt to need no keys, got %v", err)
	}
}

func TestValidate_BadValues(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Embedding.APIKey = "sk-test"
	cfg.Store.URL = "http://localhost:6333"
	cfg.Store.Provider = "pinecone"
	cfg.Retrieve.TopK = 0
	cfg.Retrieve.MMRLambda = 1.5

	err := cfg.Validate()
	if !errors.Is(err, domain.ErrUsage) {
		t.Fatalf("expected ErrUsage, got %v", err)
	}
	if !strings.Contains(err.Error(), "pinecone") || !strings.Contains(err.Error(), "top_k") ||
		!strings.Contains(err.Error(), "mmr_lambda") {
		t.Errorf("expected every problem to be reported, got %v", err)
	}
}
