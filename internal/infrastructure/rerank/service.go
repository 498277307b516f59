package rerank

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// neutralScore is returned for every document when the cross-encoder
// model is unavailable, preserving the caller's input order.
const neutralScore = 0.5

// Scorer is the cross-encoder capability the service drives.
type Scorer interface {
	Available(ctx context.Context) bool
	Score(ctx context.Context, query, document string) (float64, error)
}

// Service scores (query, document) pairs in fixed-size batches and
// caches per-result-set scores. Batches run sequentially to bound
// memory; pairs within a batch are scored concurrently.
type Service struct {
	scorer    Scorer
	cache     *scoreCache
	batchSize int
	logger    *slog.Logger

	// CacheObserver, when set, is called with true on a cache hit and
	// false on a miss. Wired to metrics by bootstrap.
	CacheObserver func(hit bool)
}

type Options struct {
	BatchSize    int
	CacheSize    int
	CacheCleanup time.Duration
}

func NewService(scorer Scorer, opts Options, logger *slog.Logger) *Service {
	if opts.BatchSize <= 0 {
		opts.BatchSize = 32
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		scorer:    scorer,
		cache:     newScoreCache(opts.CacheSize, opts.CacheCleanup),
		batchSize: opts.BatchSize,
		logger:    logger,
	}
}

// Rerank returns results sorted by score descending, truncated to topK.
// Identical (query, documents) calls before cache expiry are served
// from the cache with identical scores.
func (s *Service) Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error) {
	if len(documents) == 0 {
		return nil, nil
	}
	if topK <= 0 || topK > len(documents) {
		topK = len(documents)
	}

	key := cacheKey(query, documents)
	if scores, ok := s.cache.Get(key); ok && len(scores) == len(documents) {
		s.observe(true)
		return rank(scores, topK), nil
	}
	s.observe(false)

	if !s.scorer.Available(ctx) {
		s.logger.Warn("rerank_degraded", "documents", len(documents))
		scores := make([]float64, len(documents))
		for i := range scores {
			scores[i] = neutralScore
		}
		return rank(scores, topK), nil
	}

	scores, err := s.scoreAll(ctx, query, documents)
	if err != nil {
		return nil, fmt.Errorf("rerank score: %w", err)
	}
	s.cache.Put(key, scores)

	return rank(scores, topK), nil
}

func (s *Service) scoreAll(ctx context.Context, query string, documents []string) ([]float64, error) {
	scores := make([]float64, len(documents))
	for batchStart := 0; batchStart < len(documents); batchStart += s.batchSize {
		batchEnd := batchStart + s.batchSize
		if batchEnd > len(documents) {
			batchEnd = len(documents)
		}

		g, groupCtx := errgroup.WithContext(ctx)
		for i := batchStart; i < batchEnd; i++ {
			i := i
			g.Go(func() error {
				score, err := s.scorer.Score(groupCtx, query, documents[i])
				if err != nil {
					return err
				}
				scores[i] = score
				return nil
			})
		}
		if err := g.Wait(); err != nil {
			return nil, err
		}
	}
	return scores, nil
}

func (s *Service) observe(hit bool) {
	if s.CacheObserver != nil {
		s.CacheObserver(hit)
	}
}

// rank orders document indices by score descending, ties broken by
// input position so equal scores keep the caller's order.
func rank(scores []float64, topK int) []domain.RerankResult {
	out := make([]domain.RerankResult, len(scores))
	for i, score := range scores {
		out[i] = domain.RerankResult{Index: i, Score: score}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	if topK < len(out) {
		out = out[:topK]
	}
	return out
}
