package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// overfetchFactor widens the first-stage vector search so the
// cross-encoder has a candidate pool to reorder.
const overfetchFactor = 4

// RetrieveDefaults are applied when a caller leaves options unset.
type RetrieveDefaults struct {
	TopK           int
	ScoreThreshold float64
	Rerank         bool
}

// RetrievePassagesUseCase runs two-stage retrieval: a vector search
// over an over-fetched candidate pool, then cross-encoder reordering.
// Rerank trouble degrades to the vector ordering instead of failing
// the call.
type RetrievePassagesUseCase struct {
	embedder ports.Embedder
	index    ports.VectorIndex
	reranker ports.Reranker
	defaults RetrieveDefaults
	logger   *slog.Logger
}

func NewRetrievePassagesUseCase(
	embedder ports.Embedder,
	index ports.VectorIndex,
	reranker ports.Reranker,
	defaults RetrieveDefaults,
	logger *slog.Logger,
) *RetrievePassagesUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if defaults.TopK <= 0 {
		defaults.TopK = 5
	}
	return &RetrievePassagesUseCase{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		defaults: defaults,
		logger:   logger,
	}
}

func (uc *RetrievePassagesUseCase) Retrieve(
	ctx context.Context,
	query string,
	opts domain.RetrieveOptions,
) (*domain.RetrievalSet, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "retrieve passages", errors.New("empty query"))
	}
	opts = uc.applyDefaults(opts)

	vector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	degraded := isZeroVector(vector)
	if degraded {
		uc.logger.Warn("query_embedding_degraded", "query_length", len(query))
	}

	limit := opts.TopK
	if opts.Rerank {
		limit = opts.TopK * overfetchFactor
	}

	candidates, err := uc.index.Search(ctx, vector, limit, opts.ScoreThreshold)
	if err != nil {
		return nil, fmt.Errorf("vector search: %w", err)
	}
	if len(candidates) == 0 {
		return &domain.RetrievalSet{Results: []domain.RetrievalResult{}, Degraded: degraded}, nil
	}

	if !opts.Rerank {
		return &domain.RetrievalSet{
			Results:  vectorOrdered(candidates, opts.TopK),
			Degraded: degraded,
		}, nil
	}

	documents := make([]string, len(candidates))
	for i, c := range candidates {
		documents[i] = c.Content
	}

	ranked, err := uc.reranker.Rerank(ctx, query, documents, opts.TopK)
	if err != nil {
		uc.logger.Warn("rerank_fallback", "error", err, "candidates", len(candidates))
		return &domain.RetrievalSet{
			Results:  vectorOrdered(candidates, opts.TopK),
			Degraded: true,
		}, nil
	}

	results := make([]domain.RetrievalResult, 0, len(ranked))
	for _, r := range ranked {
		if r.Index < 0 || r.Index >= len(candidates) {
			continue
		}
		c := candidates[r.Index]
		score := r.Score
		results = append(results, domain.RetrievalResult{
			Content:     c.Content,
			VectorScore: c.Score,
			RerankScore: &score,
			Metadata:    c.Metadata,
		})
	}
	return &domain.RetrievalSet{
		Results:  results,
		Reranked: true,
		Degraded: degraded,
	}, nil
}

func (uc *RetrievePassagesUseCase) applyDefaults(opts domain.RetrieveOptions) domain.RetrieveOptions {
	if opts.TopK <= 0 {
		opts.TopK = uc.defaults.TopK
	}
	if opts.ScoreThreshold <= 0 {
		opts.ScoreThreshold = uc.defaults.ScoreThreshold
	}
	return opts
}

func vectorOrdered(candidates []domain.Candidate, topK int) []domain.RetrievalResult {
	if len(candidates) > topK {
		candidates = candidates[:topK]
	}
	results := make([]domain.RetrievalResult, len(candidates))
	for i, c := range candidates {
		results[i] = domain.RetrievalResult{
			Content:     c.Content,
			VectorScore: c.Score,
			Metadata:    c.Metadata,
		}
	}
	return results
}

func isZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}
