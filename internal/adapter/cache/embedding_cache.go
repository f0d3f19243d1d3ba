package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"vectorchat/internal/port"
)

// CachedEmbedder remembers vectors for recently embedded texts so that a
// question repeated within a chat session is sent to the provider once.
type CachedEmbedder struct {
	embedder port.Embedder
	cache    *expirable.LRU[string, []float32]
}

func NewCachedEmbedder(embedder port.Embedder, maxSize int, ttl time.Duration) *CachedEmbedder {
	if maxSize <= 0 {
		maxSize = 100
	}
	if ttl <= 0 {
		ttl = 5 * time.Minute
	}
	return &CachedEmbedder{
		embedder: embedder,
		cache:    expirable.NewLRU[string, []float32](maxSize, nil, ttl),
	}
}

func (c *CachedEmbedder) cacheKey(text string) string {
	hash := sha256.Sum256([]byte(c.embedder.ModelName() + "\x00" + text))
	return hex.EncodeToString(hash[:16])
}

func (c *CachedEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))

	var missing []string
	var missingIdx []int
	for i, text := range texts {
		if vec, ok := c.cache.Get(c.cacheKey(text)); ok {
			out[i] = vec
			continue
		}
		missing = append(missing, text)
		missingIdx = append(missingIdx, i)
	}

	if len(missing) == 0 {
		return out, nil
	}

	vecs, err := c.embedder.Embed(ctx, missing)
	if err != nil {
		return nil, err
	}
	for j, vec := range vecs {
		out[missingIdx[j]] = vec
		c.cache.Add(c.cacheKey(missing[j]), vec)
	}

	return out, nil
}

func (c *CachedEmbedder) Dimension() int {
	return c.embedder.Dimension()
}

func (c *CachedEmbedder) ModelName() string {
	return c.embedder.ModelName()
}

func (c *CachedEmbedder) Len() int {
	return c.cache.Len()
}

func (c *CachedEmbedder) Purge() {
	c.cache.Purge()
}
