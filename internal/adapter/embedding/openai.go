package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"vectorchat/internal/adapter/remote"
	"vectorchat/internal/domain"
)

const DefaultBaseURL = "https://api.openai.com/v1"

type OpenAIEmbedder struct {
	model     string
	baseURL   string
	dimension int
	batchSize int
	client    *remote.Client
}

type embeddingRequest struct {
	Input []string `json:"input"`
	Model string   `json:"model"`
}

type embeddingResponse struct {
	Data  []embeddingData `json:"data"`
	Usage embeddingUsage  `json:"usage"`
}

type embeddingData struct {
	Embedding []float32 `json:"embedding"`
	Index     int       `json:"index"`
}

type embeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

type Options struct {
	APIKey     string
	BaseURL    string
	Model      string
	Dimension  int // 0 = derive from model
	BatchSize  int
	Timeout    time.Duration
	MaxRetries int
	HTTPClient *http.Client
	Logger     *slog.Logger
}

// ModelDimension returns the known output size of an OpenAI embedding model,
// or 0 when the model is unknown.
func ModelDimension(model string) int {
	switch model {
	case "text-embedding-3-small":
		return 1536
	case "text-embedding-3-large":
		return 3072
	case "text-embedding-ada-002":
		return 1536
	}
	return 0
}

func NewOpenAIEmbedder(opts Options) (*OpenAIEmbedder, error) {
	if opts.APIKey == "" {
		return nil, fmt.Errorf("%w: OPENAI_API_KEY", domain.ErrMissingConfiguration)
	}
	if opts.BaseURL == "" {
		opts.BaseURL = DefaultBaseURL
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 64
	}

	dimension := opts.Dimension
	if dimension <= 0 {
		dimension = ModelDimension(opts.Model)
	}
	if dimension <= 0 {
		dimension = 1536
	}

	return &OpenAIEmbedder{
		model:     opts.Model,
		baseURL:   strings.TrimSuffix(opts.BaseURL, "/"),
		dimension: dimension,
		batchSize: opts.BatchSize,
		client: remote.New("openai", opts.Timeout,
			remote.WithHeader("Authorization", "Bearer "+opts.APIKey),
			remote.WithMaxRetries(opts.MaxRetries),
			remote.WithHTTPClient(opts.HTTPClient),
			remote.WithLogger(opts.Logger),
		),
	}, nil
}

func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	for i, text := range texts {
		if strings.TrimSpace(text) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrInvalidInput, i)
		}
	}

	allEmbeddings := make([][]float32, 0, len(texts))

	for i := 0; i < len(texts); i += e.batchSize {
		end := min(i+e.batchSize, len(texts))

		embeddings, err := e.embedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, err
		}
		allEmbeddings = append(allEmbeddings, embeddings...)
	}

	return allEmbeddings, nil
}

func (e *OpenAIEmbedder) embedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	reqBody := embeddingRequest{
		Input: texts,
		Model: e.model,
	}

	var embResp embeddingResponse
	if err := e.client.Do(ctx, http.MethodPost, e.baseURL+"/embeddings", reqBody, &embResp); err != nil {
		return nil, fmt.Errorf("embedding request failed: %w", err)
	}

	if len(embResp.Data) != len(texts) {
		return nil, fmt.Errorf("%w: expected %d embeddings, got %d", domain.ErrMalformedResponse, len(texts), len(embResp.Data))
	}

	embeddings := make([][]float32, len(texts))
	for _, data := range embResp.Data {
		if data.Index < 0 || data.Index >= len(embeddings) || embeddings[data.Index] != nil {
			return nil, fmt.Errorf("%w: unexpected embedding index %d", domain.ErrMalformedResponse, data.Index)
		}
		if len(data.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding at index %d", domain.ErrMalformedResponse, data.Index)
		}
		embeddings[data.Index] = data.Embedding
	}

	size := len(embeddings[0])
	for _, emb := range embeddings[1:] {
		if len(emb) != size {
			return nil, fmt.Errorf("%w: embeddings of differing lengths (%d and %d)", domain.ErrMalformedResponse, size, len(emb))
		}
	}
	e.dimension = size

	return embeddings, nil
}

func (e *OpenAIEmbedder) Dimension() int {
	return e.dimension
}

func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// MockEmbedder derives vectors from character codes. It never touches the
// network and always returns the same vector for the same text.
type MockEmbedder struct {
	dimension int
}

func NewMockEmbedder(dimension int) *MockEmbedder {
	if dimension <= 0 {
		dimension = 64
	}
	return &MockEmbedder{dimension: dimension}
}

func (e *MockEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	embeddings := make([][]float32, len(texts))
	for i := range texts {
		if strings.TrimSpace(texts[i]) == "" {
			return nil, fmt.Errorf("%w: text %d is empty", domain.ErrInvalidInput, i)
		}
		embeddings[i] = make([]float32, e.dimension)

		for j, r := range []rune(texts[i]) {
			embeddings[i][j%e.dimension] += float32(r) / 1000.0
		}
	}
	return embeddings, nil
}

func (e *MockEmbedder) Dimension() int {
	return e.dimension
}

func (e *MockEmbedder) ModelName() string {
	return "mock"
}
