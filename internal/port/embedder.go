package port

import (
	"context"

	"vectorchat/internal/domain"
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates embeddings for the given texts.
	// Returns a slice of vectors, one per input text.
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Dimension returns the embedding vector dimension.
	Dimension() int

	// ModelName returns the name of the embedding model.
	ModelName() string
}

// VectorStore stores and searches embedding vectors in a single collection.
type VectorStore interface {
	// Upsert adds or replaces points, creating the collection on first use.
	// Returns the point IDs in input order.
	Upsert(ctx context.Context, items []VectorItem) ([]string, error)

	// Search finds the k nearest vectors to the query, best first.
	Search(ctx context.Context, query []float32, k int) ([]VectorResult, error)

	// Close releases any connection or file handle.
	Close() error
}

// VectorItem represents a vector to be stored.
type VectorItem struct {
	ID      string // UUID; generated by the store when empty
	Vector  []float32
	Payload domain.Payload
}

// VectorResult represents a search result.
type VectorResult struct {
	ID      string
	Score   float64 // Similarity score (higher is better)
	Payload domain.Payload
}
