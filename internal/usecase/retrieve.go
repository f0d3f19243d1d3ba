package usecase

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"vectorchat/internal/port"
)

// ContextPreamble introduces the retrieved context to the chat model.
const ContextPreamble = "Here is some relevant context to help answer the question. " +
	"Use this information if it's helpful for answering the question:\n"

// RetrieveUseCase handles search and retrieval operations.
type RetrieveUseCase struct {
	embedder          port.Embedder
	store             port.VectorStore
	topK              int
	minScoreThreshold float64 // Filter results below this score (0 = disabled)
	maxContextChars   int     // 0 = unlimited
	reranker          port.Reranker
}

// candidateMultiplier widens the search when a reranker will trim it back.
const candidateMultiplier = 3

// NewRetrieveUseCase creates a new retrieve use case.
func NewRetrieveUseCase(
	embedder port.Embedder,
	store port.VectorStore,
	topK int,
	minScoreThreshold float64,
	maxContextChars int,
) *RetrieveUseCase {
	return &RetrieveUseCase{
		embedder:          embedder,
		store:             store,
		topK:              topK,
		minScoreThreshold: minScoreThreshold,
		maxContextChars:   maxContextChars,
	}
}

// WithReranker makes Retrieve fetch extra candidates and let r pick the
// final top-k.
func (u *RetrieveUseCase) WithReranker(r port.Reranker) *RetrieveUseCase {
	u.reranker = r
	return u
}

// Search embeds query and returns the k nearest points, unfiltered.
func (u *RetrieveUseCase) Search(ctx context.Context, query string, k int) ([]port.VectorResult, error) {
	vector, err := EmbedText(ctx, u.embedder, query)
	if err != nil {
		return nil, fmt.Errorf("failed to embed query: %w", err)
	}

	results, err := u.store.Search(ctx, vector, k)
	if err != nil {
		return nil, fmt.Errorf("vector search failed: %w", err)
	}
	return results, nil
}

// Retrieve returns the configured top-k points scoring at least the threshold.
func (u *RetrieveUseCase) Retrieve(ctx context.Context, query string) ([]port.VectorResult, error) {
	k := u.topK
	if u.reranker != nil {
		k *= candidateMultiplier
	}

	results, err := u.Search(ctx, query, k)
	if err != nil {
		return nil, err
	}

	if u.minScoreThreshold > 0 {
		results = u.filterByThreshold(results)
	}
	if u.reranker != nil {
		results = u.reranker.Rerank(results, u.topK)
	}
	return results, nil
}

// filterByThreshold removes results below the minimum score threshold.
func (u *RetrieveUseCase) filterByThreshold(results []port.VectorResult) []port.VectorResult {
	filtered := make([]port.VectorResult, 0, len(results))
	for _, r := range results {
		if r.Score >= u.minScoreThreshold {
			filtered = append(filtered, r)
		}
	}
	return filtered
}

// BuildContext renders results as numbered context entries separated by blank
// lines, stopping before the block would exceed the configured limit.
func (u *RetrieveUseCase) BuildContext(results []port.VectorResult) string {
	return BuildContext(results, u.maxContextChars)
}

// BuildContext renders results in order. maxChars <= 0 means no limit; an
// oversized first entry is truncated rather than dropped.
func BuildContext(results []port.VectorResult, maxChars int) string {
	var b strings.Builder
	n := 0

	for _, r := range results {
		text := strings.TrimSpace(r.Payload.Text)
		if text == "" {
			continue
		}

		source := " (from unknown source)"
		if r.Payload.Source != "" {
			source = fmt.Sprintf(" (from %s)", r.Payload.Source)
		}
		model := ""
		if r.Payload.Model != "" {
			model = fmt.Sprintf(" [model: %s]", r.Payload.Model)
		}
		entry := fmt.Sprintf("Context %d (Relevance: %.2f)%s%s: %s", n+1, r.Score, source, model, text)

		sep := ""
		if n > 0 {
			sep = "\n\n"
		}

		if maxChars > 0 && utf8.RuneCountInString(b.String()+sep+entry) > maxChars {
			if n == 0 {
				b.WriteString(truncateRunes(entry, maxChars))
			}
			break
		}

		b.WriteString(sep)
		b.WriteString(entry)
		n++
	}

	return b.String()
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

// ScoredResult is a simplified result for CLI output.
type ScoredResult struct {
	ID          string  `json:"id"`
	Score       float64 `json:"score"`
	Source      string  `json:"source"`
	ChunkIndex  int     `json:"chunk_index"`
	TotalChunks int     `json:"total_chunks"`
	Text        string  `json:"text"`
}

func ToScoredResults(results []port.VectorResult) []ScoredResult {
	out := make([]ScoredResult, len(results))
	for i, r := range results {
		out[i] = ScoredResult{
			ID:          r.ID,
			Score:       r.Score,
			Source:      r.Payload.Source,
			ChunkIndex:  r.Payload.ChunkIndex,
			TotalChunks: r.Payload.TotalChunks,
			Text:        r.Payload.Text,
		}
	}
	return out
}
