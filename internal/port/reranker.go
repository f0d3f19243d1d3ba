package port

// Reranker reorders retrieved results and keeps at most k of them.
type Reranker interface {
	Rerank(results []VectorResult, k int) []VectorResult
}
