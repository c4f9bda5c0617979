package ranking

// diversify applies path-based Maximal Marginal Relevance re-ranking:
//
//	mmr(c) = lambda*score(c) - (1-lambda)*max_{s in S} simPath(c.path, s.path)
//
// Candidates are pulled greedily into the selected set S in MMR order.
// Once a file has contributed maxPerFile selections, its remaining
// candidates are deferred to the end (still included, never dropped) so a
// single file cannot dominate the page. DiversityPenalty on each result
// records the similarity term that was subtracted.
func diversify(results []*SearchResult, cfg DiversificationConfig) []*SearchResult {
	if !cfg.Enabled || len(results) <= 1 {
		return results
	}

	remaining := append([]*SearchResult(nil), results...)
	selected := make([]*SearchResult, 0, len(results))
	perFileCount := make(map[string]int)
	var deferred []*SearchResult

	for len(remaining) > 0 {
		bestIdx := -1
		bestMMR := 0.0
		bestPenalty := 0.0

		for i, c := range remaining {
			penalty := maxPathSimilarity(c.Chunk.FilePath, selected)
			mmr := cfg.Lambda*c.Score - (1-cfg.Lambda)*penalty

			if bestIdx == -1 || mmr > bestMMR {
				bestIdx = i
				bestMMR = mmr
				bestPenalty = penalty
			}
		}

		c := remaining[bestIdx]
		remaining = append(remaining[:bestIdx], remaining[bestIdx+1:]...)

		if cfg.MaxPerFile > 0 && perFileCount[c.Chunk.FilePath] >= cfg.MaxPerFile {
			deferred = append(deferred, c)
			continue
		}

		c.Breakdown.DiversityPenalty = bestPenalty
		perFileCount[c.Chunk.FilePath]++
		selected = append(selected, c)
	}

	return append(selected, deferred...)
}

// maxPathSimilarity returns the maximum normalized path similarity between
// path and any already-selected result's path, 0 if selected is empty.
func maxPathSimilarity(path string, selected []*SearchResult) float64 {
	max := 0.0
	for _, s := range selected {
		sim := pathSimilarity(path, s.Chunk.FilePath)
		if sim > max {
			max = sim
		}
	}
	return max
}

// pathSimilarity = 1 - levenshteinDistance(a,b) / max(len(a), len(b)).
func pathSimilarity(a, b string) float64 {
	if a == b {
		return 1
	}
	maxLen := len(a)
	if len(b) > maxLen {
		maxLen = len(b)
	}
	if maxLen == 0 {
		return 1
	}
	dist := levenshtein(a, b)
	return 1 - float64(dist)/float64(maxLen)
}

// levenshtein computes edit distance with the classic two-row DP.
func levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	prev := make([]int, len(rb)+1)
	cur := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}
	for i := 1; i <= len(ra); i++ {
		cur[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			del := prev[j] + 1
			ins := cur[j-1] + 1
			sub := prev[j-1] + cost
			m := del
			if ins < m {
				m = ins
			}
			if sub < m {
				m = sub
			}
			cur[j] = m
		}
		prev, cur = cur, prev
	}
	return prev[len(rb)]
}
