package retriever

import (
	"testing"

	"vectorchat/internal/adapter/analyzer"
	"vectorchat/internal/domain"
	"vectorchat/internal/port"
)

func candidate(id string, score float64, text string) port.VectorResult {
	return port.VectorResult{ID: id, Score: score, Payload: domain.Payload{Text: text}}
}

func ids(results []port.VectorResult) []string {
	out := make([]string, len(results))
	for i, r := range results {
		out[i] = r.ID
	}
	return out
}

func TestMMRReranking(t *testing.T) {
	reranker := NewMMRReranker(0.7, 0.9, analyzer.NewTokenizer())

	candidates := []port.VectorResult{
		candidate("c1", 1.0, "user login password authentication"),
		candidate("c2", 0.9, "user login session authentication"),
		candidate("c3", 0.8, "database query connection pool"),
		candidate("c4", 0.7, "jwt token oauth authentication"),
	}

	results := reranker.Rerank(candidates, 3)
	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %v", ids(results))
	}
	if results[0].ID != "c1" {
		t.Errorf("expected c1 as first result, got %s", results[0].ID)
	}
	if results[1].ID != "c3" {
		t.Errorf("expected diverse c3 before similar c2, got %v", ids(results))
	}
}

func TestMMRDeduplication(t *testing.T) {
	reranker := NewMMRReranker(0.5, 0.3, analyzer.NewTokenizer())

	candidates := []port.VectorResult{
		candidate("c1", 1.0, "Paris is the capital of France."),
		candidate("c2", 0.9, "paris is the capital of france"),
	}

	results := reranker.Rerank(candidates, 2)
	if len(results) != 1 {
		t.Fatalf("expected 1 result after dedup, got %v", ids(results))
	}
	if results[0].ID != "c1" {
		t.Errorf("expected c1 (highest score), got %s", results[0].ID)
	}
}

func TestMMRKeepsInputUntouched(t *testing.T) {
	reranker := NewMMRReranker(1.0, 1.0, analyzer.NewTokenizer())

	candidates := []port.VectorResult{
		candidate("a", 0.9, "alpha"),
		candidate("b", 0.8, "beta"),
	}
	results := reranker.Rerank(candidates, 5)

	if got := ids(results); len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("expected relevance order with lambda 1, got %v", got)
	}
	if candidates[0].ID != "a" || candidates[1].ID != "b" {
		t.Errorf("candidates were modified: %v", ids(candidates))
	}
}

func TestMMREmptyCandidates(t *testing.T) {
	reranker := NewMMRReranker(0.7, 0.8, analyzer.NewTokenizer())

	if results := reranker.Rerank(nil, 10); results != nil {
		t.Errorf("expected nil for empty candidates, got %v", results)
	}
	if results := reranker.Rerank([]port.VectorResult{candidate("a", 1, "x")}, 0); results != nil {
		t.Errorf("expected nil for k=0, got %v", results)
	}
}

func TestJaccardSimilarity(t *testing.T) {
	tests := []struct {
		name     string
		a        []string
		b        []string
		expected float64
	}{
		{name: "identical", a: []string{"a", "b", "c"}, b: []string{"a", "b", "c"}, expected: 1.0},
		{name: "no overlap", a: []string{"a", "b", "c"}, b: []string{"d", "e", "f"}, expected: 0.0},
		{name: "half overlap", a: []string{"a", "b"}, b: []string{"b", "c"}, expected: 1.0 / 3.0},
		{name: "duplicates ignored", a: []string{"a", "a", "b"}, b: []string{"a", "b"}, expected: 1.0},
		{name: "empty a", a: []string{}, b: []string{"a", "b"}, expected: 0.0},
		{name: "both empty", a: []string{}, b: []string{}, expected: 1.0},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			result := jaccardSimilarity(tc.a, tc.b)
			if !floatEquals(result, tc.expected, 0.001) {
				t.Errorf("jaccardSimilarity(%v, %v) = %f, expected %f", tc.a, tc.b, result, tc.expected)
			}
		})
	}
}

func floatEquals(a, b, tolerance float64) bool {
	diff := a - b
	if diff < 0 {
		diff = -diff
	}
	return diff < tolerance
}
