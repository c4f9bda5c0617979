package ranking

import (
	"sort"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// fused is one fusion-stage result, keyed by chunk ID. The chunk ID is
// derived from the file path and a hash of the chunk's content (not its
// line number), so candidates are deduplicated by path plus content: two
// chunks with identical content in the same file count as one candidate.
type fused struct {
	chunkID string

	bm25Rank  int // 1-based, 0 = absent from the lexical list
	bm25Score float64
	vecRank   int // 1-based, 0 = absent from the vector list
	vecScore  float64

	matchedTerms []string
	inBoth       bool

	score     float64
	lexContrib float64
	vecContrib float64
}

// mergeAndFuse deduplicates the two source lists by chunk ID and computes
// the Reciprocal Rank Fusion score for each:
//
//	finalScore = alpha/(k+rankLex) + beta/(k+rankVec)
//
// A candidate missing from one source list contributes 0 for that term —
// it is NOT penalized with a synthetic worst-case rank — and the resulting
// scores are NOT rescaled to a 0-1 range; they stay in RRF's native small
// magnitude (alpha=0.35, beta=0.65, k=60, rank 1 in both lists gives
// roughly 0.0164, matching the worked fusion example).
func mergeAndFuse(bm25 []*store.BM25Result, vec []*store.VectorResult, cfg FusionConfig) []*fused {
	byID := make(map[string]*fused)
	var order []string

	for i, r := range bm25 {
		byID[r.DocID] = &fused{
			chunkID:      r.DocID,
			bm25Rank:     i + 1,
			bm25Score:    r.Score,
			matchedTerms: r.MatchedTerms,
		}
		order = append(order, r.DocID)
	}

	for i, r := range vec {
		if f, ok := byID[r.ID]; ok {
			f.vecRank = i + 1
			f.vecScore = float64(r.Score)
			f.inBoth = true
			continue
		}
		byID[r.ID] = &fused{
			chunkID:  r.ID,
			vecRank:  i + 1,
			vecScore: float64(r.Score),
		}
		order = append(order, r.ID)
	}

	k := float64(cfg.RRFK)
	out := make([]*fused, 0, len(order))
	for _, id := range order {
		f := byID[id]
		if f.bm25Rank > 0 {
			f.lexContrib = cfg.Alpha / (k + float64(f.bm25Rank))
		}
		if f.vecRank > 0 {
			f.vecContrib = cfg.Beta / (k + float64(f.vecRank))
		}
		f.score = f.lexContrib + f.vecContrib
		out = append(out, f)
	}

	sort.SliceStable(out, func(i, j int) bool {
		if out[i].score != out[j].score {
			return out[i].score > out[j].score
		}
		return out[i].chunkID < out[j].chunkID
	})
	return out
}

// earlyTerminate truncates the fused list to the top K by score, the point
// at which expensive downstream work (chunk enrichment, diversification,
// tie-breaking) is bounded.
func earlyTerminate(fs []*fused, topK int) []*fused {
	if topK > 0 && len(fs) > topK {
		fs = fs[:topK]
	}
	return fs
}

// sortByScoreDesc orders by Score descending, breaking ties by chunk ID for
// determinism (the tie-breaker stage, not this sort, is responsible for any
// semantically meaningful tie resolution).
func sortByScoreDesc(results []*SearchResult) {
	sort.SliceStable(results, func(i, j int) bool {
		if results[i].Score != results[j].Score {
			return results[i].Score > results[j].Score
		}
		return results[i].Chunk.ID < results[j].Chunk.ID
	})
}
