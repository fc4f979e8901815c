package index

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCosineSimilarity(t *testing.T) {
	assert.InDelta(t, 1.0, cosineSimilarity([]float32{1, 2}, []float32{2, 4}), 1e-9)
	assert.InDelta(t, 0.0, cosineSimilarity([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.InDelta(t, -1.0, cosineSimilarity([]float32{1, 0}, []float32{-1, 0}), 1e-9)
	assert.Equal(t, 0.0, cosineSimilarity([]float32{0, 0}, []float32{1, 1}))
}

func TestNearestIsStableOnTies(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}, {1, 0}, {2, 0}}
	got := nearest([]float32{1, 0}, vectors, 3)
	assert.Equal(t, []int{0, 2, 3}, []int{got[0].pos, got[1].pos, got[2].pos})
}

func TestMaximalMarginalRelevanceFirstPickIsMostSimilar(t *testing.T) {
	vectors := [][]float32{{0, 1}, {1, 0}, {0.9, 0.1}}
	candidates := nearest([]float32{1, 0}, vectors, 3)
	picked := maximalMarginalRelevance(candidates, vectors, 1, 0.3)
	assert.Equal(t, []int{0}, picked)
	assert.Equal(t, 1, candidates[picked[0]].pos)
}

func TestMaximalMarginalRelevanceCapsAtCandidates(t *testing.T) {
	vectors := [][]float32{{1, 0}, {0, 1}}
	candidates := nearest([]float32{1, 0}, vectors, 2)
	assert.Len(t, maximalMarginalRelevance(candidates, vectors, 5, 0.7), 2)
	assert.Empty(t, maximalMarginalRelevance(nil, vectors, 5, 0.7))
}
