package usecase

import (
	"context"
	"errors"
	"sort"

	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

type fakeEmbedder struct {
	calls   int
	batches [][]string
	err     error
}

// Embed maps every text to a 2-d vector from its length and first byte.
func (e *fakeEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	e.calls++
	e.batches = append(e.batches, texts)
	if e.err != nil {
		return nil, e.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = []float32{float32(len(t)), float32(t[0])}
	}
	return out, nil
}

func (e *fakeEmbedder) Dimension() int    { return 2 }
func (e *fakeEmbedder) ModelName() string { return "fake-embed" }

type fakeStore struct {
	items      []port.VectorItem
	upserts    int
	searches   int
	results    []port.VectorResult
	searchErr  error
	upsertErr  error
	lastK      int
	lastVector []float32
}

func (s *fakeStore) Upsert(ctx context.Context, items []port.VectorItem) ([]string, error) {
	s.upserts++
	if s.upsertErr != nil {
		return nil, s.upsertErr
	}
	ids := make([]string, len(items))
	for i, item := range items {
		ids[i] = item.ID
	}
	s.items = append(s.items, items...)
	return ids, nil
}

func (s *fakeStore) Search(ctx context.Context, query []float32, k int) ([]port.VectorResult, error) {
	s.searches++
	s.lastK = k
	s.lastVector = query
	if s.searchErr != nil {
		return nil, s.searchErr
	}
	results := append([]port.VectorResult(nil), s.results...)
	sort.Slice(results, func(i, j int) bool { return results[i].Score > results[j].Score })
	if len(results) > k {
		results = results[:k]
	}
	return results, nil
}

func (s *fakeStore) Close() error { return nil }

type fakeLLM struct {
	calls    int
	messages [][]domain.ChatMessage
	reply    string
	err      error
}

func (l *fakeLLM) Complete(ctx context.Context, systemContext, userMessage string) (string, error) {
	var msgs []domain.ChatMessage
	if systemContext != "" {
		msgs = append(msgs, domain.SystemMessage(systemContext))
	}
	return l.Chat(ctx, append(msgs, domain.UserMessage(userMessage)))
}

func (l *fakeLLM) Chat(ctx context.Context, messages []domain.ChatMessage) (string, error) {
	l.calls++
	l.messages = append(l.messages, messages)
	if l.err != nil {
		return "", l.err
	}
	return l.reply, nil
}

func (l *fakeLLM) ModelName() string { return "fake-chat" }

var errBoom = errors.New("boom")

func result(id string, score float64, text, source string) port.VectorResult {
	return port.VectorResult{ID: id, Score: score, Payload: domain.Payload{Text: text, Source: source}}
}

type wholeTextChunker struct{}

func (wholeTextChunker) Chunk(text string) []domain.Chunk {
	return []domain.Chunk{{Index: 0, Text: text}}
}
