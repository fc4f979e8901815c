package index

import (
	"math"
	"sort"
)

// cosineSimilarity returns 0 when either vector has zero magnitude.
func cosineSimilarity(a, b []float32) float64 {
	var dot, na, nb float64
	for i := range a {
		x, y := float64(a[i]), float64(b[i])
		dot += x * y
		na += x * x
		nb += y * y
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

type scored struct {
	pos   int
	score float64
}

// nearest returns up to n positions of vectors ordered by similarity to query,
// most similar first. Equal scores keep their storage order.
func nearest(query []float32, vectors [][]float32, n int) []scored {
	all := make([]scored, len(vectors))
	for i, v := range vectors {
		all[i] = scored{pos: i, score: cosineSimilarity(query, v)}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].score > all[j].score
	})
	if n < len(all) {
		all = all[:n]
	}
	return all
}

// maximalMarginalRelevance greedily picks up to k candidates maximising
// lambda*sim(query, c) - (1-lambda)*max sim(c, picked). candidates must be in
// similarity rank order; a candidate replaces the current best only on a
// strictly higher score, so ties resolve to the better original rank.
// The returned values index into candidates.
func maximalMarginalRelevance(candidates []scored, vectors [][]float32, k int, lambda float64) []int {
	if k > len(candidates) {
		k = len(candidates)
	}
	picked := make([]int, 0, k)
	used := make([]bool, len(candidates))
	// redundancy[i] is max sim(candidate i, picked so far).
	redundancy := make([]float64, len(candidates))

	for len(picked) < k {
		best := -1
		bestScore := math.Inf(-1)
		for i, c := range candidates {
			if used[i] {
				continue
			}
			penalty := 0.0
			if len(picked) > 0 {
				penalty = redundancy[i]
			}
			score := lambda*c.score - (1-lambda)*penalty
			if score > bestScore {
				best = i
				bestScore = score
			}
		}
		if best < 0 {
			break
		}
		used[best] = true
		picked = append(picked, best)

		chosen := vectors[candidates[best].pos]
		for i, c := range candidates {
			if used[i] {
				continue
			}
			sim := cosineSimilarity(vectors[c.pos], chosen)
			if len(picked) == 1 || sim > redundancy[i] {
				redundancy[i] = sim
			}
		}
	}
	return picked
}
