package store

import (
	"fmt"
	"log/slog"

	"vectorchat/config"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// New builds the vector store selected by cfg.Store.Provider. logger may be
// nil.
func New(cfg *config.Config, logger *slog.Logger) (port.VectorStore, error) {
	opts := QdrantOptions{
		URL:        cfg.Store.URL,
		APIKey:     cfg.Store.APIKey,
		Collection: cfg.Store.Collection,
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		Logger:     logger,
	}

	switch cfg.Store.Provider {
	case "qdrant", "":
		return NewQdrantStore(opts)
	case "qdrant-grpc":
		return NewQdrantGRPCStore(opts)
	case "bolt":
		return OpenBoltVectorStore(cfg.Store.Path, cfg.Store.Collection)
	case "memory":
		return NewMemoryStore(cfg.Store.Collection), nil
	default:
		return nil, fmt.Errorf("%w: unsupported vector store: %q", domain.ErrUsage, cfg.Store.Provider)
	}
}

// NewReader is New for callers that only search. A bolt store is loaded as a
// snapshot so a long chat session does not block embed.
func NewReader(cfg *config.Config, logger *slog.Logger) (port.VectorStore, error) {
	if cfg.Store.Provider == "bolt" {
		return OpenBoltSnapshot(cfg.Store.Path, cfg.Store.Collection)
	}
	return New(cfg, logger)
}
