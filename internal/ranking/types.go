// Package ranking fuses lexical (BM25) and vector candidate lists into a
// single ordered result list: Reciprocal Rank Fusion, MMR-style path
// diversification, multi-factor tie-breaking within an epsilon band, and
// SLA timing over the whole pipeline.
package ranking

import (
	"context"
	"time"

	"github.com/codeindex-dev/codeindex/internal/store"
)

// SearchEngine is the orchestrator-facing contract for hybrid search.
type SearchEngine interface {
	Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error)
	Index(ctx context.Context, chunks []*store.Chunk) error
	Delete(ctx context.Context, chunkIDs []string) error
	Stats() *EngineStats
	Close() error
}

// SearchOptions configures a search query.
type SearchOptions struct {
	Limit          int
	Filter         string // "all", "code", "docs"
	Language       string
	SymbolType     string
	Weights        *Weights
	Scopes         []string
	BM25Only       bool
	AdjacentChunks int
	Explain        bool
}

// Weights are the fusion coefficients alpha (lexical) and beta (vector).
// gamma is reserved for a third ranked list (not produced by this system)
// and always contributes zero.
type Weights struct {
	BM25     float64
	Semantic float64
}

// DefaultWeights returns the default fusion weights.
func DefaultWeights() Weights {
	return Weights{BM25: 0.35, Semantic: 0.65}
}

// SearchResult is a single ranked hit, enriched with the full chunk record.
type SearchResult struct {
	Chunk           *store.Chunk
	Score           float64 // finalScore, after fusion + diversification + tie-break
	BM25Score       float64
	VecScore        float64
	BM25Rank        int
	VecRank         int
	Highlights      []Range
	InBothLists     bool
	MatchedTerms    []string
	AdjacentContext AdjacentContext
	Breakdown       ScoreBreakdown
	Explain         *ExplainData
}

// ScoreBreakdown records each pipeline stage's contribution to the final
// score, per the ranking result data model (§3).
type ScoreBreakdown struct {
	LexicalContribution    float64
	VectorContribution     float64
	DiversityPenalty       float64
	TieBreakerContribution float64
	SymbolTypePriority     float64
	PathPriority           float64
	LanguageMatch          float64
	IdentifierMatch        float64
}

// AdjacentContext carries surrounding chunks for context continuity.
type AdjacentContext struct {
	Before []*store.Chunk
	After  []*store.Chunk
}

// Range is a text range for highlighting.
type Range struct {
	Start int
	End   int
}

// EngineStats reports index-wide statistics.
type EngineStats struct {
	BM25Stats   *store.IndexStats
	VectorCount int
}

// FusionConfig holds the RRF coefficients (§3 Ranking configuration).
type FusionConfig struct {
	Alpha float64
	Beta  float64
	Gamma float64
	RRFK  int
}

// DiversificationConfig controls MMR path diversification.
type DiversificationConfig struct {
	Enabled    bool
	Lambda     float64
	MaxPerFile int
}

// TieBreakersConfig weights the four tie-breaker sub-scores.
type TieBreakersConfig struct {
	SymbolTypeWeight    float64
	PathPriorityWeight  float64
	LanguageMatchWeight float64
	IdentifierMatchWeight float64
}

// PerformanceConfig bounds candidate volume and timing.
type PerformanceConfig struct {
	CandidateLimit       int
	TimeoutMs            int
	EarlyTerminationTopK int
}

// EngineConfig is the full ranking configuration plus the engine-level
// defaults layered on top of it (result limits, search timeout).
type EngineConfig struct {
	DefaultLimit   int
	MaxLimit       int
	DefaultWeights Weights
	RRFConstant    int
	SearchTimeout  time.Duration

	Fusion          FusionConfig
	Diversification DiversificationConfig
	TieBreakers     TieBreakersConfig
	Performance     PerformanceConfig
}

// DefaultConfig returns the default ranking configuration (§3, §4.I).
func DefaultConfig() EngineConfig {
	return EngineConfig{
		DefaultLimit:   10,
		MaxLimit:       100,
		DefaultWeights: DefaultWeights(),
		RRFConstant:    60,
		SearchTimeout:  5 * time.Second,
		Fusion: FusionConfig{
			Alpha: 0.35,
			Beta:  0.65,
			Gamma: 0,
			RRFK:  60,
		},
		Diversification: DiversificationConfig{
			Enabled:    true,
			Lambda:     0.5,
			MaxPerFile: 3,
		},
		TieBreakers: TieBreakersConfig{
			SymbolTypeWeight:      0.25,
			PathPriorityWeight:    0.25,
			LanguageMatchWeight:   0.25,
			IdentifierMatchWeight: 0.25,
		},
		Performance: PerformanceConfig{
			CandidateLimit:       200,
			TimeoutMs:            5000,
			EarlyTerminationTopK: 100,
		},
	}
}

// ExplainData carries search-decision transparency for the first result.
type ExplainData struct {
	Query                string
	BM25ResultCount      int
	VectorResultCount    int
	Weights              Weights
	RRFConstant          int
	BM25Only             bool
	DimensionMismatch    bool
	MultiQueryDecomposed bool
	SubQueries           []string
	SLA                  SLAReport
}
