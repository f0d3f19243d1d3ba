package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"vectorchat/internal/adapter/remote"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// QdrantOptions configures both Qdrant backends.
type QdrantOptions struct {
	URL        string
	APIKey     string
	Collection string
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// QdrantStore talks to Qdrant's REST API.
type QdrantStore struct {
	baseURL    string
	collection string
	client     *remote.Client

	mu        sync.Mutex
	dimension int // known collection size, 0 until checked
}

type qdrantPoint struct {
	ID      string         `json:"id"`
	Vector  []float32      `json:"vector"`
	Payload domain.Payload `json:"payload"`
}

type qdrantScoredPoint struct {
	ID      json.RawMessage `json:"id"`
	Score   float64         `json:"score"`
	Payload domain.Payload  `json:"payload"`
}

type qdrantCollectionInfo struct {
	Result struct {
		Config struct {
			Params struct {
				Vectors json.RawMessage `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

type qdrantVectorParams struct {
	Size     int    `json:"size"`
	Distance string `json:"distance"`
}

func NewQdrantStore(opts QdrantOptions) (*QdrantStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: QDRANT_URL", domain.ErrMissingConfiguration)
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: QDRANT_COLLECTION", domain.ErrMissingConfiguration)
	}

	return &QdrantStore{
		baseURL:    strings.TrimSuffix(opts.URL, "/"),
		collection: opts.Collection,
		client: remote.New("qdrant", opts.Timeout,
			remote.WithHeader("api-key", opts.APIKey),
			remote.WithMaxRetries(opts.MaxRetries),
			remote.WithHTTPClient(opts.HTTPClient),
			remote.WithLogger(opts.Logger),
		),
	}, nil
}

func (s *QdrantStore) collectionURL() string {
	return s.baseURL + "/collections/" + url.PathEscape(s.collection)
}

// ensureCollection creates the collection with size dim when it is missing
// and fails when it exists with a different size.
func (s *QdrantStore) ensureCollection(ctx context.Context, dim int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == dim {
		return nil
	}
	if s.dimension != 0 {
		return dimensionMismatch(s.collection, s.dimension, dim)
	}

	var info qdrantCollectionInfo
	err := s.client.Do(ctx, http.MethodGet, s.collectionURL(), nil, &info)
	switch {
	case isNotFound(err):
		body := map[string]any{
			"vectors": qdrantVectorParams{Size: dim, Distance: "Cosine"},
		}
		if err := s.client.Do(ctx, http.MethodPut, s.collectionURL(), body, nil); err != nil {
			return fmt.Errorf("failed to create collection %q: %w", s.collection, err)
		}
		s.dimension = dim
		return nil
	case err != nil:
		return fmt.Errorf("failed to get collection %q: %w", s.collection, err)
	}

	var params qdrantVectorParams
	if err := json.Unmarshal(info.Result.Config.Params.Vectors, &params); err != nil || params.Size == 0 {
		return fmt.Errorf("%w: collection %q does not use a single unnamed vector", domain.ErrDimensionMismatch, s.collection)
	}
	if params.Size != dim {
		return dimensionMismatch(s.collection, params.Size, dim)
	}
	s.dimension = dim
	return nil
}

func (s *QdrantStore) Upsert(ctx context.Context, items []port.VectorItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	dim, err := batchDimension(items)
	if err != nil {
		return nil, err
	}
	if err := s.ensureCollection(ctx, dim); err != nil {
		return nil, err
	}

	ids := assignIDs(items)
	points := make([]qdrantPoint, len(items))
	for i, item := range items {
		points[i] = qdrantPoint{ID: item.ID, Vector: item.Vector, Payload: item.Payload}
	}

	body := map[string]any{"points": points}
	if err := s.client.Do(ctx, http.MethodPut, s.collectionURL()+"/points?wait=true", body, nil); err != nil {
		return nil, fmt.Errorf("failed to upsert %d points: %w", len(points), err)
	}

	return ids, nil
}

func (s *QdrantStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	body := map[string]any{
		"vector":       query,
		"limit":        k,
		"with_payload": true,
	}

	var resp struct {
		Result []qdrantScoredPoint `json:"result"`
	}
	err := s.client.Do(ctx, http.MethodPost, s.collectionURL()+"/points/search", body, &resp)
	if isNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("search failed: %w", err)
	}

	results := make([]port.VectorResult, 0, len(resp.Result))
	for _, p := range resp.Result {
		results = append(results, port.VectorResult{
			ID:      pointID(p.ID),
			Score:   p.Score,
			Payload: p.Payload,
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})
	if len(results) > k {
		results = results[:k]
	}

	return results, nil
}

func (s *QdrantStore) Close() error {
	return nil
}

// pointID renders a Qdrant point id, which is either a UUID string or an integer.
func pointID(raw json.RawMessage) string {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n uint64
	if err := json.Unmarshal(raw, &n); err == nil {
		return strconv.FormatUint(n, 10)
	}
	return string(raw)
}

func isNotFound(err error) bool {
	var pe *domain.ProviderError
	return errors.As(err, &pe) && pe.StatusCode == http.StatusNotFound
}
