package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

// pointNamespace scopes the deterministic point IDs.
var pointNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("vectorchat/points"))

// ProgressFunc is called after every embedded batch.
type ProgressFunc func(done, total int)

// EmbedResult describes one successful embed run.
type EmbedResult struct {
	IDs    []string
	Chunks []domain.Chunk
	Source string
	Model  string
}

// EmbedUseCase chunks text, embeds the chunks and stores the vectors.
type EmbedUseCase struct {
	embedder  port.Embedder
	store     port.VectorStore
	chunker   port.Chunker
	batchSize int
	logger    *slog.Logger
	now       func() time.Time
}

func NewEmbedUseCase(embedder port.Embedder, store port.VectorStore, chunker port.Chunker, batchSize int, logger *slog.Logger) *EmbedUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &EmbedUseCase{
		embedder:  embedder,
		store:     store,
		chunker:   chunker,
		batchSize: batchSize,
		logger:    logger,
		now:       time.Now,
	}
}

// ValidateText rejects empty or whitespace-only input.
func ValidateText(text string) error {
	if strings.TrimSpace(text) == "" {
		return fmt.Errorf("%w: text is empty", domain.ErrInvalidInput)
	}
	return nil
}

// Embed stores text under source and returns the IDs of the stored points.
// Re-embedding the same text from the same source overwrites the same points.
func (u *EmbedUseCase) Embed(ctx context.Context, text, source string, progress ProgressFunc) (*EmbedResult, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}

	chunks := u.chunker.Chunk(text)
	if len(chunks) == 0 {
		return nil, fmt.Errorf("%w: no chunks produced", domain.ErrInvalidInput)
	}
	u.logger.Info("text chunked", "source", source, "chunks", len(chunks))

	embeddedAt := u.now().UTC()
	result := &EmbedResult{
		IDs:    make([]string, 0, len(chunks)),
		Chunks: chunks,
		Source: source,
		Model:  u.embedder.ModelName(),
	}

	for start := 0; start < len(chunks); start += u.batchSize {
		end := min(start+u.batchSize, len(chunks))
		batch := chunks[start:end]

		texts := make([]string, len(batch))
		for i, c := range batch {
			texts[i] = c.Text
		}

		vectors, err := u.embedder.Embed(ctx, texts)
		if err != nil {
			return nil, fmt.Errorf("failed to embed chunks %d-%d: %w", start, end-1, err)
		}
		if len(vectors) != len(batch) {
			return nil, fmt.Errorf("%w: expected %d vectors, got %d", domain.ErrMalformedResponse, len(batch), len(vectors))
		}

		items := make([]port.VectorItem, len(batch))
		for i, c := range batch {
			items[i] = port.VectorItem{
				ID:     PointID(source, c.Index, c.Text),
				Vector: vectors[i],
				Payload: domain.Payload{
					Text:        c.Text,
					Source:      source,
					ChunkIndex:  c.Index,
					TotalChunks: len(chunks),
					Model:       result.Model,
					EmbeddedAt:  embeddedAt,
				},
			}
		}

		ids, err := u.store.Upsert(ctx, items)
		if err != nil {
			return nil, fmt.Errorf("failed to store chunks %d-%d: %w", start, end-1, err)
		}
		result.IDs = append(result.IDs, ids...)

		if progress != nil {
			progress(end, len(chunks))
		}
	}

	u.logger.Info("text embedded", "source", source, "points", len(result.IDs), "model", result.Model)
	return result, nil
}

// EmbedText embeds a single text.
func EmbedText(ctx context.Context, embedder port.Embedder, text string) ([]float32, error) {
	if err := ValidateText(text); err != nil {
		return nil, err
	}
	vectors, err := embedder.Embed(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) != 1 || len(vectors[0]) == 0 {
		return nil, fmt.Errorf("%w: expected one vector, got %d", domain.ErrMalformedResponse, len(vectors))
	}
	return vectors[0], nil
}

// PointID derives a stable UUID from a chunk's source, position and text.
func PointID(source string, index int, text string) string {
	name := source + "\x00" + strconv.Itoa(index) + "\x00" + text
	return uuid.NewSHA1(pointNamespace, []byte(name)).String()
}
