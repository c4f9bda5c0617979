package ranking

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/codeindex-dev/codeindex/internal/embed"
	"github.com/codeindex-dev/codeindex/internal/store"
)

// ErrNilDependency is returned when a required dependency is nil.
var ErrNilDependency = errors.New("nil dependency")

// ErrDimensionMismatch is returned when the query embedding's dimension
// does not match the indexed dimension.
var ErrDimensionMismatch = errors.New("embedding dimension mismatch")

// Engine implements the ranking pipeline (§4.I): candidate dedup, RRF
// fusion, early termination, path diversification, tie-breaking, and SLA
// timing, on top of a BM25 index and a vector store.
type Engine struct {
	bm25     store.BM25Index
	vector   store.VectorStore
	embedder embed.Embedder
	metadata store.MetadataStore
	config   EngineConfig
	mu       sync.RWMutex
}

var _ SearchEngine = (*Engine)(nil)

// NewEngine creates a ranking engine, validating that every dependency is
// non-nil.
func NewEngine(bm25 store.BM25Index, vector store.VectorStore, embedder embed.Embedder, metadata store.MetadataStore, config EngineConfig) (*Engine, error) {
	if bm25 == nil {
		return nil, fmt.Errorf("%w: bm25 index is required", ErrNilDependency)
	}
	if vector == nil {
		return nil, fmt.Errorf("%w: vector store is required", ErrNilDependency)
	}
	if embedder == nil {
		return nil, fmt.Errorf("%w: embedder is required", ErrNilDependency)
	}
	if metadata == nil {
		return nil, fmt.Errorf("%w: metadata store is required", ErrNilDependency)
	}
	return &Engine{bm25: bm25, vector: vector, embedder: embedder, metadata: metadata, config: config}, nil
}

// New creates a ranking engine, panicking on nil dependencies. Kept for
// call sites that construct the engine unconditionally at startup.
func New(bm25 store.BM25Index, vector store.VectorStore, embedder embed.Embedder, metadata store.MetadataStore, config EngineConfig) *Engine {
	e, err := NewEngine(bm25, vector, embedder, metadata, config)
	if err != nil {
		panic("ranking.New: " + err.Error())
	}
	return e
}

// Search runs the full ranking pipeline: parallel BM25 + vector retrieval,
// dedup + RRF fusion, early termination, chunk enrichment, path
// diversification, tie-breaking, filtering, and limit truncation.
func (e *Engine) Search(ctx context.Context, query string, opts SearchOptions) ([]*SearchResult, error) {
	e.mu.RLock()
	cfg := e.config
	e.mu.RUnlock()

	opts = e.applyDefaults(opts)
	timer := newSLATimer(cfg.Performance.TimeoutMs)

	weights := cfg.DefaultWeights
	if opts.Weights != nil {
		weights = *opts.Weights
	}
	fusionCfg := cfg.Fusion
	fusionCfg.Alpha = weights.BM25
	fusionCfg.Beta = weights.Semantic

	candidateLimit := cfg.Performance.CandidateLimit
	if candidateLimit <= 0 {
		candidateLimit = opts.Limit * 10
	}

	var bm25Results []*store.BM25Result
	var vecResults []*store.VectorResult
	var dimMismatch bool

	if opts.BM25Only {
		var err error
		bm25Results, err = e.bm25.Search(ctx, query, candidateLimit)
		timer.mark("lexicalSearch")
		timer.mark("vectorSearch")
		if err != nil {
			return nil, fmt.Errorf("bm25 search: %w", err)
		}
	} else {
		if err := e.validateDimensions(ctx); err != nil {
			if errors.Is(err, ErrDimensionMismatch) {
				dimMismatch = true
			} else {
				return nil, err
			}
		}

		var err error
		bm25Results, vecResults, err = e.parallelSearch(ctx, query, candidateLimit, timer)
		if err != nil {
			return nil, err
		}
	}

	fs := mergeAndFuse(bm25Results, vecResults, fusionCfg)
	fs = earlyTerminate(fs, cfg.Performance.EarlyTerminationTopK)

	results, err := e.enrichResults(ctx, fs)
	if err != nil {
		return nil, fmt.Errorf("enrich results: %w", err)
	}

	results = diversify(results, cfg.Diversification)
	results = tieBreak(results, query, cfg.TieBreakers)
	results = applyFilters(results, opts)

	timer.mark("ranking")
	sla := timer.finish()
	sla.LexicalCandidates = len(bm25Results)
	sla.VectorCandidates = len(vecResults)

	if sla.SLAViolation {
		slog.Warn("ranking search exceeded SLA timeout",
			slog.Int64("total_ms", sla.TotalMs),
			slog.Int("timeout_ms", sla.TimeoutMs))
	}

	if opts.Limit > 0 && len(results) > opts.Limit {
		results = results[:opts.Limit]
	}

	if opts.Explain && len(results) > 0 {
		explain := &ExplainData{
			Query:             query,
			BM25ResultCount:   len(bm25Results),
			VectorResultCount: len(vecResults),
			Weights:           weights,
			RRFConstant:       cfg.Fusion.RRFK,
			BM25Only:          opts.BM25Only,
			DimensionMismatch: dimMismatch,
			SLA:               sla,
		}
		results[0].Explain = explain
	}

	return results, nil
}

func (e *Engine) applyDefaults(opts SearchOptions) SearchOptions {
	if opts.Limit <= 0 {
		opts.Limit = e.config.DefaultLimit
	}
	if opts.Limit > e.config.MaxLimit {
		opts.Limit = e.config.MaxLimit
	}
	if opts.Filter == "" {
		opts.Filter = "all"
	}
	return opts
}

// parallelSearch runs lexical and vector retrieval concurrently, per
// §5's bounded-concurrency worker model — a failure in one list does not
// abort the other; the caller proceeds with whatever came back.
func (e *Engine) parallelSearch(ctx context.Context, query string, limit int, timer *slaTimer) ([]*store.BM25Result, []*store.VectorResult, error) {
	g, gctx := errgroup.WithContext(ctx)

	var bm25Results []*store.BM25Result
	var vecResults []*store.VectorResult
	var bm25Err, vecErr error

	g.Go(func() error {
		bm25Results, bm25Err = e.bm25.Search(gctx, query, limit)
		timer.mark("lexicalSearch")
		return nil
	})

	g.Go(func() error {
		embedding, err := e.embedder.Embed(gctx, query)
		if err != nil {
			vecErr = err
			timer.mark("vectorSearch")
			return nil
		}
		vecResults, vecErr = e.vector.Search(gctx, embedding, limit)
		timer.mark("vectorSearch")
		return nil
	})

	if err := g.Wait(); err != nil {
		return nil, nil, err
	}
	if bm25Err != nil && vecErr != nil {
		return nil, nil, errors.Join(bm25Err, vecErr)
	}
	return bm25Results, vecResults, nil
}

// enrichResults batch-fetches full chunk records for the (already
// early-terminated) fused candidate set and attaches highlights.
func (e *Engine) enrichResults(ctx context.Context, fs []*fused) ([]*SearchResult, error) {
	if len(fs) == 0 {
		return nil, nil
	}

	ids := make([]string, len(fs))
	byID := make(map[string]*fused, len(fs))
	for i, f := range fs {
		ids[i] = f.chunkID
		byID[f.chunkID] = f
	}

	chunks, err := e.metadata.GetChunks(ctx, ids)
	if err != nil {
		return nil, err
	}

	results := make([]*SearchResult, 0, len(chunks))
	for _, c := range chunks {
		f, ok := byID[c.ID]
		if !ok {
			continue
		}
		results = append(results, &SearchResult{
			Chunk:        c,
			Score:        f.score,
			BM25Score:    f.bm25Score,
			VecScore:     f.vecScore,
			BM25Rank:     f.bm25Rank,
			VecRank:      f.vecRank,
			InBothLists:  f.inBoth,
			Highlights:   calculateHighlights(c.Content, f.matchedTerms),
			MatchedTerms: f.matchedTerms,
			Breakdown: ScoreBreakdown{
				LexicalContribution: f.lexContrib,
				VectorContribution:  f.vecContrib,
			},
		})
	}

	sortByScoreDesc(results)
	return results, nil
}

// validateDimensions compares the embedder's current dimension against the
// dimension recorded for the index, surfacing ErrDimensionMismatch when an
// embedder swap (e.g. Ollama -> static fallback) invalidated the vectors.
func (e *Engine) validateDimensions(ctx context.Context) error {
	stored, err := e.metadata.GetState(ctx, store.StateKeyIndexDimension)
	if err != nil || stored == "" {
		return nil
	}
	var indexDim int
	if _, err := fmt.Sscanf(stored, "%d", &indexDim); err != nil {
		return nil
	}
	if indexDim != e.embedder.Dimensions() {
		return fmt.Errorf("%w: index has %d dimensions, embedder has %d", ErrDimensionMismatch, indexDim, e.embedder.Dimensions())
	}
	return nil
}

// Index adds chunks to the BM25 index, the vector store, and metadata.
func (e *Engine) Index(ctx context.Context, chunks []*store.Chunk) error {
	if len(chunks) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	docs := make([]*store.Document, len(chunks))
	texts := make([]string, len(chunks))
	ids := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = &store.Document{ID: c.ID, Content: c.Content}
		texts[i] = c.Content
		ids[i] = c.ID
	}

	embeddings, err := e.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return fmt.Errorf("generate embeddings: %w", err)
	}

	if err := e.bm25.Index(ctx, docs); err != nil {
		return fmt.Errorf("index in bm25: %w", err)
	}
	if err := e.vector.Add(ctx, ids, embeddings); err != nil {
		return fmt.Errorf("add vectors: %w", err)
	}
	if err := e.metadata.SaveChunks(ctx, chunks); err != nil {
		return fmt.Errorf("save chunks metadata: %w", err)
	}

	if err := e.metadata.SaveChunkEmbeddings(ctx, ids, embeddings, e.embedder.ModelName()); err != nil {
		slog.Warn("failed to persist embeddings, compaction will require re-embedding",
			slog.String("error", err.Error()), slog.Int("count", len(ids)))
	}
	if err := e.storeIndexEmbeddingInfo(ctx); err != nil {
		slog.Warn("failed to store index embedding info", slog.String("error", err.Error()))
	}
	return nil
}

func (e *Engine) storeIndexEmbeddingInfo(ctx context.Context) error {
	dim := fmt.Sprintf("%d", e.embedder.Dimensions())
	if err := e.metadata.SetState(ctx, store.StateKeyIndexDimension, dim); err != nil {
		return err
	}
	return e.metadata.SetState(ctx, store.StateKeyIndexModel, e.embedder.ModelName())
}

// Delete removes chunks from every index. Metadata deletion is the only
// step that must succeed — BM25/vector orphans are cleaned up by
// compaction and are harmless since enrichResults filters them out.
func (e *Engine) Delete(ctx context.Context, chunkIDs []string) error {
	if len(chunkIDs) == 0 {
		return nil
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if err := e.bm25.Delete(ctx, chunkIDs); err != nil {
		slog.Warn("bm25 delete failed, orphans will remain until compaction", slog.String("error", err.Error()))
	}
	if err := e.vector.Delete(ctx, chunkIDs); err != nil {
		slog.Warn("vector delete failed, orphans will remain until compaction", slog.String("error", err.Error()))
	}
	if err := e.metadata.DeleteChunks(ctx, chunkIDs); err != nil {
		return fmt.Errorf("delete chunks metadata: %w", err)
	}
	return nil
}

// Stats returns index-wide statistics.
func (e *Engine) Stats() *EngineStats {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return &EngineStats{BM25Stats: e.bm25.Stats(), VectorCount: e.vector.Count()}
}

// Close releases the BM25 index, vector store, and embedder.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	var errs []error
	if err := e.bm25.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.vector.Close(); err != nil {
		errs = append(errs, err)
	}
	if err := e.embedder.Close(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}
