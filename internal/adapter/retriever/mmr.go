package retriever

import (
	"vectorchat/internal/port"
)

// MMRReranker applies Maximal Marginal Relevance to retrieved chunks so the
// context sent to the model is not filled with near-identical passages.
type MMRReranker struct {
	lambda       float64
	dedupJaccard float64
	tokenizer    port.Tokenizer
}

// NewMMRReranker returns a reranker weighting relevance by lambda. Candidates
// whose word overlap with an already selected chunk exceeds dedupJaccard are
// dropped; dedupJaccard >= 1 disables that.
func NewMMRReranker(lambda, dedupJaccard float64, tokenizer port.Tokenizer) *MMRReranker {
	return &MMRReranker{
		lambda:       lambda,
		dedupJaccard: dedupJaccard,
		tokenizer:    tokenizer,
	}
}

// Rerank selects up to k results.
// MMR(c) = λ * relevance(c) - (1-λ) * max_similarity(c, selected)
func (r *MMRReranker) Rerank(candidates []port.VectorResult, k int) []port.VectorResult {
	if len(candidates) == 0 || k <= 0 {
		return nil
	}
	k = min(k, len(candidates))

	maxScore := candidates[0].Score
	for _, c := range candidates {
		maxScore = max(maxScore, c.Score)
	}
	if maxScore <= 0 {
		maxScore = 1
	}

	tokens := make([][]string, len(candidates))
	for i, c := range candidates {
		tokens[i] = r.tokenizer.Tokenize(c.Payload.Text)
	}

	selected := make([]int, 0, k)
	used := make([]bool, len(candidates))

	for len(selected) < k {
		bestIdx := -1
		bestMMR := -1e9

		for i, candidate := range candidates {
			if used[i] {
				continue
			}

			relevance := candidate.Score / maxScore

			maxSim := 0.0
			for _, s := range selected {
				maxSim = max(maxSim, jaccardSimilarity(tokens[i], tokens[s]))
			}
			if len(selected) > 0 && maxSim > r.dedupJaccard {
				continue
			}

			mmr := r.lambda*relevance - (1-r.lambda)*maxSim
			if mmr > bestMMR {
				bestMMR = mmr
				bestIdx = i
			}
		}

		if bestIdx == -1 {
			break
		}
		used[bestIdx] = true
		selected = append(selected, bestIdx)
	}

	out := make([]port.VectorResult, len(selected))
	for i, idx := range selected {
		out[i] = candidates[idx]
	}
	return out
}

func jaccardSimilarity(a, b []string) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 1.0
	}
	if len(a) == 0 || len(b) == 0 {
		return 0.0
	}

	setA := make(map[string]struct{}, len(a))
	for _, t := range a {
		setA[t] = struct{}{}
	}
	setB := make(map[string]struct{}, len(b))
	for _, t := range b {
		setB[t] = struct{}{}
	}

	intersection := 0
	for t := range setA {
		if _, exists := setB[t]; exists {
			intersection++
		}
	}

	union := len(setA) + len(setB) - intersection
	return float64(intersection) / float64(union)
}
