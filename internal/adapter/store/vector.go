package store

import (
	"fmt"
	"math"
	"sort"

	"github.com/google/uuid"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// batchDimension returns the common vector size of items.
func batchDimension(items []port.VectorItem) (int, error) {
	dim := 0
	for i, item := range items {
		if len(item.Vector) == 0 {
			return 0, fmt.Errorf("%w: item %d has an empty vector", domain.ErrInvalidInput, i)
		}
		if dim == 0 {
			dim = len(item.Vector)
			continue
		}
		if len(item.Vector) != dim {
			return 0, fmt.Errorf("%w: batch mixes sizes %d and %d", domain.ErrDimensionMismatch, dim, len(item.Vector))
		}
	}
	return dim, nil
}

// assignIDs fills in a random UUID for every item without one.
func assignIDs(items []port.VectorItem) []string {
	ids := make([]string, len(items))
	for i := range items {
		if items[i].ID == "" {
			items[i].ID = uuid.NewString()
		}
		ids[i] = items[i].ID
	}
	return ids
}

func dimensionMismatch(collection string, want, got int) error {
	return fmt.Errorf("%w: collection %q has size %d, got %d", domain.ErrDimensionMismatch, collection, want, got)
}

type scored struct {
	id      string
	score   float64
	payload domain.Payload
}

// topK sorts by score descending (ties by ID) and keeps the first k.
func topK(scores []scored, k int) []port.VectorResult {
	sort.Slice(scores, func(i, j int) bool {
		if scores[i].score != scores[j].score {
			return scores[i].score > scores[j].score
		}
		return scores[i].id < scores[j].id
	})

	if k > len(scores) {
		k = len(scores)
	}

	results := make([]port.VectorResult, k)
	for i := 0; i < k; i++ {
		results[i] = port.VectorResult{
			ID:      scores[i].id,
			Score:   scores[i].score,
			Payload: scores[i].payload,
		}
	}
	return results
}

// cosineSimilarity calculates the cosine similarity between two vectors.
func cosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}

	if normA == 0 || normB == 0 {
		return 0
	}

	return dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
}
