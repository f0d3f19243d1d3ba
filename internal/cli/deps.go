package cli

import (
	"vectorchat/internal/adapter/cache"
	"vectorchat/internal/adapter/embedding"
	"vectorchat/internal/adapter/llm"
	"vectorchat/internal/adapter/store"
	"vectorchat/internal/port"
)

func (a *app) newEmbedder() (port.Embedder, error) {
	cfg := a.cfg
	if cfg.Embedding.Provider == "mock" {
		return embedding.NewMockEmbedder(cfg.Embedding.Dimension), nil
	}
	return embedding.NewOpenAIEmbedder(embedding.Options{
		APIKey:     cfg.Embedding.APIKey,
		BaseURL:    cfg.Embedding.BaseURL,
		Model:      cfg.Embedding.Model,
		Dimension:  cfg.Embedding.Dimension,
		BatchSize:  cfg.Embedding.BatchSize,
		Timeout:    cfg.HTTP.Timeout,
		MaxRetries: cfg.HTTP.MaxRetries,
		Logger:     a.logger,
	})
}

// newQueryEmbedder is newEmbedder behind the query cache, when enabled.
func (a *app) newQueryEmbedder() (port.Embedder, error) {
	embedder, err := a.newEmbedder()
	if err != nil {
		return nil, err
	}
	if a.cfg.Cache.Size <= 0 {
		return embedder, nil
	}
	return cache.NewCachedEmbedder(embedder, a.cfg.Cache.Size, a.cfg.Cache.TTL), nil
}

func (a *app) newChatClient() (port.LLM, error) {
	cfg := a.cfg
	return llm.NewOpenAIClient(llm.Options{
		APIKey:      cfg.Chat.APIKey,
		BaseURL:     cfg.Chat.BaseURL,
		Model:       cfg.Chat.Model,
		Temperature: cfg.Chat.Temperature,
		Timeout:     cfg.HTTP.Timeout,
		MaxRetries:  cfg.HTTP.MaxRetries,
		Logger:      a.logger,
	})
}

func (a *app) newStore() (port.VectorStore, error) {
	return store.New(a.cfg, a.logger)
}

// newReadStore opens the store for search only.
func (a *app) newReadStore() (port.VectorStore, error) {
	return store.NewReader(a.cfg, a.logger)
}
