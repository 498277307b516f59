package vector

import (
	"context"
	"errors"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/resilience"
)

// ResilientIndex decorates a VectorIndex with retries and a circuit
// breaker on the read path. Writes pass through untouched; the replace
// operation is not idempotent under retry.
type ResilientIndex struct {
	inner    ports.VectorIndex
	executor *resilience.Executor
}

func NewResilientIndex(inner ports.VectorIndex, executor *resilience.Executor) *ResilientIndex {
	return &ResilientIndex{inner: inner, executor: executor}
}

func (r *ResilientIndex) Exists(ctx context.Context, documentID string) (domain.ExistsResult, error) {
	return r.inner.Exists(ctx, documentID)
}

func (r *ResilientIndex) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	return r.inner.DeleteByDocumentID(ctx, documentID)
}

func (r *ResilientIndex) UpsertPassages(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (int, error) {
	return r.inner.UpsertPassages(ctx, documentID, fileType, passages)
}

func (r *ResilientIndex) ReplaceDocument(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (domain.ReplaceResult, error) {
	return r.inner.ReplaceDocument(ctx, documentID, fileType, passages)
}

func (r *ResilientIndex) Search(ctx context.Context, vector []float32, topN int, scoreThreshold float64) ([]domain.Candidate, error) {
	if r.executor == nil {
		return r.inner.Search(ctx, vector, topN, scoreThreshold)
	}

	var candidates []domain.Candidate
	err := r.executor.Execute(ctx, "vector.search", func(callCtx context.Context) error {
		var searchErr error
		candidates, searchErr = r.inner.Search(callCtx, vector, topN, scoreThreshold)
		return searchErr
	}, classifySearchError)
	if err != nil {
		return nil, err
	}
	return candidates, nil
}

func classifySearchError(err error) resilience.ErrorClassification {
	if err == nil {
		return resilience.ErrorClassification{}
	}
	if errors.Is(err, context.Canceled) {
		return resilience.ErrorClassification{}
	}
	if domain.IsKind(err, domain.ErrTimeout) || domain.IsKind(err, domain.ErrStoreUnavailable) {
		return resilience.ErrorClassification{
			Retryable:     true,
			RecordFailure: true,
		}
	}
	return resilience.ErrorClassification{
		Retryable:     false,
		RecordFailure: true,
	}
}
