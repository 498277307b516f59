package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// documentIDField is the indexed payload field that keys passages to
// their document identity. Existence checks and bulk deletes filter
// on it.
const documentIDField = "metadata.document_id"

// Client is the vector store gateway over the qdrant HTTP API.
type Client struct {
	baseURL    string
	collection string
	batchSize  int
	embedder   ports.Embedder
	httpClient *http.Client
	logger     *slog.Logger

	ensureMu          sync.Mutex
	ensuredCollection bool
	ensuredVectorSize int
	indexAvailable    bool
}

func New(baseURL, collection string, batchSize int, embedder ports.Embedder, logger *slog.Logger) *Client {
	if batchSize <= 0 {
		batchSize = 100
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		collection: collection,
		batchSize:  batchSize,
		embedder:   embedder,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Exists reports whether a document already has live passages. A
// missing payload index degrades duplicate detection instead of
// failing ingestion: the gateway logs and reports exists=false.
func (c *Client) Exists(ctx context.Context, documentID string) (domain.ExistsResult, error) {
	count, err := c.countByDocumentID(ctx, documentID)
	if err != nil {
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) && statusErr.StatusCode < 500 {
			c.logger.Warn("duplicate_detection_degraded",
				"document_id", documentID,
				"reason", "document_id payload index unavailable",
				"error", err,
			)
			return domain.ExistsResult{}, nil
		}
		return domain.ExistsResult{}, wrapStoreError("count points", err)
	}
	return domain.ExistsResult{Exists: count > 0, ChunkCount: count}, nil
}

// DeleteByDocumentID removes every passage stored under the document
// identity and returns how many were deleted.
func (c *Client) DeleteByDocumentID(ctx context.Context, documentID string) (int, error) {
	count, err := c.countByDocumentID(ctx, documentID)
	if err != nil {
		return 0, wrapStoreError("count points before delete", err)
	}
	if count == 0 {
		return 0, nil
	}

	reqBody := map[string]any{
		"filter": documentFilter(documentID),
	}
	url := fmt.Sprintf("%s/collections/%s/points/delete?wait=true", c.baseURL, c.collection)
	if err := c.postJSON(ctx, url, reqBody, nil, "delete points"); err != nil {
		return 0, wrapStoreError("delete points", err)
	}
	return count, nil
}

// UpsertPassages embeds every passage text, assigns stable random
// point identifiers and writes in fixed-size batches, waiting for each
// batch's durability acknowledgment before issuing the next.
func (c *Client) UpsertPassages(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (int, error) {
	if len(passages) == 0 {
		return 0, nil
	}

	texts := make([]string, len(passages))
	for i, p := range passages {
		texts[i] = p.Text
	}
	vectors, err := c.embedder.EmbedDocuments(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embed passages: %w", err)
	}
	if len(vectors) != len(passages) {
		return 0, fmt.Errorf("vectors/passages mismatch: %d/%d", len(vectors), len(passages))
	}

	if err := c.ensureCollection(ctx, len(vectors[0])); err != nil {
		return 0, wrapStoreError("ensure collection", err)
	}

	uploadedAt := time.Now().UTC()
	points := make([]point, len(passages))
	for i, p := range passages {
		points[i] = point{
			ID:     uuid.NewString(),
			Vector: vectors[i],
			Payload: payload{
				Content: p.Text,
				Metadata: domain.PassageMetadata{
					DocumentID:  documentID,
					Filename:    documentID,
					FileType:    fileType,
					Page:        p.SourcePage,
					Section:     p.SourceSection,
					ChunkIndex:  p.SequenceIndex,
					TotalChunks: len(passages),
					SourceType:  string(p.SourceType),
					ImageIndex:  p.ImageIndex,
					UploadedAt:  uploadedAt,
				},
			},
		}
	}

	uploaded := 0
	for start := 0; start < len(points); start += c.batchSize {
		end := start + c.batchSize
		if end > len(points) {
			end = len(points)
		}
		reqBody := map[string]any{"points": points[start:end]}
		url := fmt.Sprintf("%s/collections/%s/points?wait=true", c.baseURL, c.collection)
		if err := c.putJSON(ctx, url, reqBody, "upsert points"); err != nil {
			return uploaded, wrapStoreError("upsert points", err)
		}
		uploaded += end - start
	}
	return uploaded, nil
}

// ReplaceDocument is the only ingestion entry point: it guarantees no
// document ever has two concurrently-live passage sets under the same
// identity. It is not atomic across a crash between the delete and the
// upsert; that window leaves the document with zero passages and is an
// accepted, documented risk.
func (c *Client) ReplaceDocument(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (domain.ReplaceResult, error) {
	existing, err := c.Exists(ctx, documentID)
	if err != nil {
		return domain.ReplaceResult{}, err
	}

	deleted := 0
	if existing.Exists {
		deleted, err = c.DeleteByDocumentID(ctx, documentID)
		if err != nil {
			return domain.ReplaceResult{}, err
		}
	}

	uploaded, err := c.UpsertPassages(ctx, documentID, fileType, passages)
	if err != nil {
		return domain.ReplaceResult{Deleted: deleted, Uploaded: uploaded}, err
	}
	return domain.ReplaceResult{Deleted: deleted, Uploaded: uploaded}, nil
}

// Search runs nearest-neighbor search filtered by minimum score.
func (c *Client) Search(ctx context.Context, vector []float32, topN int, scoreThreshold float64) ([]domain.Candidate, error) {
	reqBody := map[string]any{
		"vector":       vector,
		"limit":        topN,
		"with_payload": true,
	}
	if scoreThreshold > 0 {
		reqBody["score_threshold"] = scoreThreshold
	}

	var searchResp struct {
		Result []struct {
			ID      string  `json:"id"`
			Score   float64 `json:"score"`
			Payload payload `json:"payload"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/search", c.baseURL, c.collection)
	if err := c.postJSON(ctx, url, reqBody, &searchResp, "search points"); err != nil {
		return nil, wrapStoreError("search points", err)
	}

	out := make([]domain.Candidate, 0, len(searchResp.Result))
	for _, r := range searchResp.Result {
		out = append(out, domain.Candidate{
			PointID:  r.ID,
			Content:  r.Payload.Content,
			Score:    r.Score,
			Metadata: r.Payload.Metadata,
		})
	}
	return out, nil
}

type point struct {
	ID      string    `json:"id"`
	Vector  []float32 `json:"vector"`
	Payload payload   `json:"payload"`
}

type payload struct {
	Content  string                 `json:"content"`
	Metadata domain.PassageMetadata `json:"metadata"`
}

func documentFilter(documentID string) map[string]any {
	return map[string]any{
		"must": []map[string]any{
			{
				"key":   documentIDField,
				"match": map[string]any{"value": documentID},
			},
		},
	}
}

func (c *Client) countByDocumentID(ctx context.Context, documentID string) (int, error) {
	reqBody := map[string]any{
		"filter": documentFilter(documentID),
		"exact":  true,
	}
	var countResp struct {
		Result struct {
			Count int `json:"count"`
		} `json:"result"`
	}
	url := fmt.Sprintf("%s/collections/%s/points/count", c.baseURL, c.collection)
	if err := c.postJSON(ctx, url, reqBody, &countResp, "count points"); err != nil {
		return 0, err
	}
	return countResp.Result.Count, nil
}

func (c *Client) ensureCollection(ctx context.Context, vectorSize int) error {
	c.ensureMu.Lock()
	if c.ensuredCollection && c.ensuredVectorSize == vectorSize {
		c.ensureMu.Unlock()
		return nil
	}
	c.ensureMu.Unlock()

	reqBody := map[string]any{
		"vectors": map[string]any{
			"size":     vectorSize,
			"distance": "Cosine",
		},
	}
	url := fmt.Sprintf("%s/collections/%s", c.baseURL, c.collection)
	err := c.putJSON(ctx, url, reqBody, "create collection")
	var statusErr *httpStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		return err
	}

	c.ensurePayloadIndex(ctx)
	c.markCollectionEnsured(vectorSize)
	return nil
}

// ensurePayloadIndex creates the keyword index on the document
// identity field. Failure only degrades duplicate detection, so it is
// logged rather than propagated.
func (c *Client) ensurePayloadIndex(ctx context.Context) {
	reqBody := map[string]any{
		"field_name":   documentIDField,
		"field_schema": "keyword",
	}
	url := fmt.Sprintf("%s/collections/%s/index?wait=true", c.baseURL, c.collection)
	err := c.putJSON(ctx, url, reqBody, "create payload index")
	var statusErr *httpStatusError
	if err != nil && !(errors.As(err, &statusErr) && statusErr.StatusCode == http.StatusConflict) {
		c.logger.Warn("payload_index_unavailable", "field", documentIDField, "error", err)
		return
	}

	c.ensureMu.Lock()
	c.indexAvailable = true
	c.ensureMu.Unlock()
}

func (c *Client) markCollectionEnsured(vectorSize int) {
	c.ensureMu.Lock()
	defer c.ensureMu.Unlock()
	c.ensuredCollection = true
	c.ensuredVectorSize = vectorSize
}

// wrapStoreError maps transport failures onto the error taxonomy:
// timeouts are surfaced distinctly so the orchestrator can retry
// search, everything else is a hard store failure.
func wrapStoreError(operation string, err error) error {
	if err == nil {
		return nil
	}
	if isTimeout(err) {
		return domain.WrapError(domain.ErrTimeout, operation, err)
	}
	return domain.WrapError(domain.ErrStoreUnavailable, operation, err)
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

type httpStatusError struct {
	Operation  string
	StatusCode int
	Status     string
	Body       string
}

func (e *httpStatusError) Error() string {
	if strings.TrimSpace(e.Body) == "" {
		return fmt.Sprintf("qdrant %s status: %s", e.Operation, e.Status)
	}
	return fmt.Sprintf("qdrant %s status: %s: %s", e.Operation, e.Status, strings.TrimSpace(e.Body))
}

func (c *Client) postJSON(ctx context.Context, url string, payload any, out any, operation string) error {
	return c.doJSON(ctx, http.MethodPost, url, payload, out, operation)
}

func (c *Client) putJSON(ctx context.Context, url string, payload any, operation string) error {
	return c.doJSON(ctx, http.MethodPut, url, payload, nil, operation)
}

func (c *Client) doJSON(ctx context.Context, method, url string, payload any, out any, operation string) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal %s body: %w", operation, err)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create %s request: %w", operation, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("qdrant %s request: %w", operation, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return &httpStatusError{
			Operation:  operation,
			StatusCode: resp.StatusCode,
			Status:     resp.Status,
			Body:       string(raw),
		}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode %s response: %w", operation, err)
	}
	return nil
}
