package store

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/qdrant/go-client/qdrant"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

const (
	payloadText        = "chunk_text"
	payloadSource      = "source"
	payloadChunkIndex  = "chunk_index"
	payloadTotalChunks = "total_chunks"
	payloadModel       = "model_name"
	payloadEmbeddedAt  = "embedded_at"
)

// QdrantGRPCStore talks to Qdrant through the official gRPC client.
type QdrantGRPCStore struct {
	client     *qdrant.Client
	collection string
	timeout    time.Duration

	mu        sync.Mutex
	dimension uint64
}

// NewQdrantGRPCStore connects to the gRPC port matching opts.URL.
// The REST port 6333 is mapped to the gRPC port 6334.
func NewQdrantGRPCStore(opts QdrantOptions) (*QdrantGRPCStore, error) {
	if opts.URL == "" {
		return nil, fmt.Errorf("%w: QDRANT_URL", domain.ErrMissingConfiguration)
	}
	if opts.Collection == "" {
		return nil, fmt.Errorf("%w: QDRANT_COLLECTION", domain.ErrMissingConfiguration)
	}

	host, port, useTLS, err := grpcAddress(opts.URL)
	if err != nil {
		return nil, err
	}

	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   host,
		Port:                   port,
		APIKey:                 opts.APIKey,
		UseTLS:                 useTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant: %w", domain.ErrNetwork, err)
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 60 * time.Second
	}

	return &QdrantGRPCStore{
		client:     client,
		collection: opts.Collection,
		timeout:    timeout,
	}, nil
}

func grpcAddress(raw string) (string, int, bool, error) {
	u, err := url.Parse(raw)
	if err != nil || u.Hostname() == "" {
		return "", 0, false, fmt.Errorf("%w: invalid QDRANT_URL %q", domain.ErrUsage, raw)
	}

	port := 6334
	if p := u.Port(); p != "" {
		n, err := strconv.Atoi(p)
		if err != nil {
			return "", 0, false, fmt.Errorf("%w: invalid port in QDRANT_URL %q", domain.ErrUsage, raw)
		}
		if n != 6333 {
			port = n
		}
	}
	return u.Hostname(), port, u.Scheme == "https", nil
}

func (s *QdrantGRPCStore) ensureCollection(ctx context.Context, dim uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.dimension == dim {
		return nil
	}
	if s.dimension != 0 {
		return dimensionMismatch(s.collection, int(s.dimension), int(dim))
	}

	exists, err := s.client.CollectionExists(ctx, s.collection)
	if err != nil {
		return classifyGRPC("check collection", err)
	}

	if !exists {
		err = s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     dim,
				Distance: qdrant.Distance_Cosine,
			}),
		})
		if err != nil {
			return classifyGRPC("create collection", err)
		}
		s.dimension = dim
		return nil
	}

	info, err := s.client.GetCollectionInfo(ctx, s.collection)
	if err != nil {
		return classifyGRPC("get collection", err)
	}
	size := info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize()
	if size == 0 {
		return fmt.Errorf("%w: collection %q does not use a single unnamed vector", domain.ErrDimensionMismatch, s.collection)
	}
	if size != dim {
		return dimensionMismatch(s.collection, int(size), int(dim))
	}
	s.dimension = dim
	return nil
}

func (s *QdrantGRPCStore) Upsert(ctx context.Context, items []port.VectorItem) ([]string, error) {
	if len(items) == 0 {
		return nil, nil
	}
	dim, err := batchDimension(items)
	if err != nil {
		return nil, err
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.ensureCollection(ctx, uint64(dim)); err != nil {
		return nil, err
	}

	ids := assignIDs(items)
	points := make([]*qdrant.PointStruct, len(items))
	for i, item := range items {
		payload, err := toQdrantPayload(item.Payload)
		if err != nil {
			return nil, err
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewID(item.ID),
			Vectors: qdrant.NewVectors(item.Vector...),
			Payload: payload,
		}
	}

	_, err = s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return nil, classifyGRPC("upsert", err)
	}

	return ids, nil
}

func (s *QdrantGRPCStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	if k <= 0 {
		return nil, fmt.Errorf("%w: k must be positive, got %d", domain.ErrInvalidInput, k)
	}

	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.collection,
		Query:          qdrant.NewQuery(query...),
		Limit:          qdrant.PtrOf(uint64(k)),
		WithPayload:    qdrant.NewWithPayload(true),
	})
	if status.Code(err) == codes.NotFound {
		return nil, nil
	}
	if err != nil {
		return nil, classifyGRPC("search", err)
	}

	results := make([]port.VectorResult, 0, len(points))
	for _, p := range points {
		id := p.GetId().GetUuid()
		if id == "" {
			id = strconv.FormatUint(p.GetId().GetNum(), 10)
		}
		results = append(results, port.VectorResult{
			ID:      id,
			Score:   float64(p.GetScore()),
			Payload: fromQdrantPayload(p.GetPayload()),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	return results, nil
}

func (s *QdrantGRPCStore) Close() error {
	return s.client.Close()
}

func toQdrantPayload(p domain.Payload) (map[string]*qdrant.Value, error) {
	fields := map[string]any{
		payloadText:        p.Text,
		payloadSource:      p.Source,
		payloadChunkIndex:  int64(p.ChunkIndex),
		payloadTotalChunks: int64(p.TotalChunks),
	}
	if p.Model != "" {
		fields[payloadModel] = p.Model
	}
	if !p.EmbeddedAt.IsZero() {
		fields[payloadEmbeddedAt] = p.EmbeddedAt.UTC().Format(time.RFC3339)
	}

	payload := make(map[string]*qdrant.Value, len(fields))
	for key, value := range fields {
		v, err := qdrant.NewValue(value)
		if err != nil {
			return nil, fmt.Errorf("failed to encode payload field %s: %w", key, err)
		}
		payload[key] = v
	}
	return payload, nil
}

func fromQdrantPayload(payload map[string]*qdrant.Value) domain.Payload {
	var p domain.Payload
	if v, ok := payload[payloadText]; ok {
		p.Text = v.GetStringValue()
	}
	if v, ok := payload[payloadSource]; ok {
		p.Source = v.GetStringValue()
	}
	if v, ok := payload[payloadChunkIndex]; ok {
		p.ChunkIndex = int(v.GetIntegerValue())
	}
	if v, ok := payload[payloadTotalChunks]; ok {
		p.TotalChunks = int(v.GetIntegerValue())
	}
	if v, ok := payload[payloadModel]; ok {
		p.Model = v.GetStringValue()
	}
	if v, ok := payload[payloadEmbeddedAt]; ok {
		if t, err := time.Parse(time.RFC3339, v.GetStringValue()); err == nil {
			p.EmbeddedAt = t
		}
	}
	return p
}

// classifyGRPC maps gRPC status codes onto the domain error taxonomy.
func classifyGRPC(op string, err error) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: qdrant %s: %w", domain.ErrNetwork, op, err)
	}

	st, _ := status.FromError(err)
	switch st.Code() {
	case codes.Unauthenticated:
		return fmt.Errorf("qdrant %s: %w", op, &domain.ProviderError{Provider: "qdrant", StatusCode: http.StatusUnauthorized, Message: st.Message()})
	case codes.PermissionDenied:
		return fmt.Errorf("qdrant %s: %w", op, &domain.ProviderError{Provider: "qdrant", StatusCode: http.StatusForbidden, Message: st.Message()})
	case codes.Unavailable, codes.DeadlineExceeded, codes.Canceled:
		return fmt.Errorf("%w: qdrant %s: %w", domain.ErrNetwork, op, err)
	case codes.InvalidArgument:
		return fmt.Errorf("qdrant %s: %w", op, &domain.ProviderError{Provider: "qdrant", StatusCode: http.StatusBadRequest, Message: st.Message()})
	default:
		return fmt.Errorf("qdrant %s: %w", op, &domain.ProviderError{Provider: "qdrant", StatusCode: http.StatusInternalServerError, Message: st.Message()})
	}
}
