package store

import (
	"context"
	"fmt"
	"sync"

	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// MemoryStore keeps one collection in process memory. Nothing survives Close.
type MemoryStore struct {
	mu         sync.RWMutex
	collection string
	dimension  int
	vectors    map[string]vectorEntry
}

func NewMemoryStore(collection string) *MemoryStore {
	return &MemoryStore{
		collection: collection,
		vectors:    make(map[string]vectorEntry),
	}
}

func (s *MemoryStore) Upsert(ctx context.Context, items []port.VectorItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	dim, err := batchDimension(items)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension != 0 && s.dimension != dim {
		return nil, dimensionMismatch(s.collection, s.dimension, dim)
	}
	s.dimension = dim

	ids := assignIDs(items)
	for _, item := range items {
		vec := make([]float32, len(item.Vector))
		copy(vec, item.Vector)
		s.vectors[item.ID] = vectorEntry{vector: vec, payload: item.Payload}
	}
	return ids, nil
}

func (s *MemoryStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.vectors) == 0 {
		return nil, nil
	}
	if len(query) != s.dimension {
		return nil, dimensionMismatch(s.collection, s.dimension, len(query))
	}

	scores := make([]scored, 0, len(s.vectors))
	for id, entry := range s.vectors {
		scores = append(scores, scored{id: id, score: cosineSimilarity(query, entry.vector), payload: entry.payload})
	}
	return topK(scores, k), nil
}

func (s *MemoryStore) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.vectors)
}

func (s *MemoryStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = make(map[string]vectorEntry)
	s.dimension = 0
	return nil
}
