package embedding

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"
)

// Client embeds text through an HTTP embedding backend. The model
// handle is process-wide: the first call pays the load cost, later
// calls reuse it. If the handle cannot be initialized, both embed
// operations return zero vectors of the configured dimension so that
// ingestion and retrieval keep running in a degraded mode.
type Client struct {
	baseURL    string
	model      string
	dimension  int
	httpClient *http.Client
	logger     *slog.Logger

	warmupOnce sync.Once
	loadErr    error
}

func New(baseURL, model string, dimension int, logger *slog.Logger) *Client {
	if dimension <= 0 {
		dimension = 384
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		dimension:  dimension,
		httpClient: &http.Client{Timeout: 5 * time.Second},
		logger:     logger,
	}
}

// Dimension reports the vector width this client produces, including
// in degraded mode.
func (c *Client) Dimension() int {
	return c.dimension
}

func (c *Client) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedDocuments(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	if len(vectors) == 0 {
		return zeroVector(c.dimension), nil
	}
	return vectors[0], nil
}

func (c *Client) EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	if err := c.warmup(ctx); err != nil {
		c.logger.Warn("embedding_degraded", "error", err, "texts", len(texts))
		return zeroVectors(len(texts), c.dimension), nil
	}

	vectors, err := c.embed(ctx, texts)
	if err != nil {
		c.logger.Warn("embedding_request_failed", "error", err, "texts", len(texts))
		return zeroVectors(len(texts), c.dimension), nil
	}
	if len(vectors) != len(texts) {
		c.logger.Warn("embedding_count_mismatch", "want", len(texts), "got", len(vectors))
		return zeroVectors(len(texts), c.dimension), nil
	}

	for i := range vectors {
		vectors[i] = normalizeL2(vectors[i], c.dimension)
	}
	return vectors, nil
}

// warmup loads the model handle once per process by embedding a probe
// string and checking the reported dimension.
func (c *Client) warmup(ctx context.Context) error {
	c.warmupOnce.Do(func() {
		vectors, err := c.embed(ctx, []string{"warmup"})
		if err != nil {
			c.loadErr = fmt.Errorf("load embedding model: %w", err)
			return
		}
		if len(vectors) == 0 || len(vectors[0]) == 0 {
			c.loadErr = fmt.Errorf("load embedding model: empty probe result")
			return
		}
		if got := len(vectors[0]); got != c.dimension {
			c.logger.Warn("embedding_dimension_override", "configured", c.dimension, "reported", got)
			c.dimension = got
		}
	})
	return c.loadErr
}

func (c *Client) embed(ctx context.Context, texts []string) ([][]float32, error) {
	request := map[string]any{
		"model": c.model,
		"input": texts,
	}

	var response struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.postJSON(ctx, "/api/embed", request, &response, "embed"); err != nil {
		return nil, err
	}
	return response.Embeddings, nil
}

// normalizeL2 scales the vector to unit length so that downstream
// similarity reduces to a dot product. A zero vector stays zero.
func normalizeL2(v []float32, dimension int) []float32 {
	if len(v) == 0 {
		return zeroVector(dimension)
	}
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	norm := math.Sqrt(sum)
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = float32(float64(x) / norm)
	}
	return out
}

// IsZeroVector reports whether every component is zero, the degraded
// mode signal callers use to flag similarity-meaningless results.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

func zeroVector(dimension int) []float32 {
	return make([]float32, dimension)
}

func zeroVectors(n, dimension int) [][]float32 {
	out := make([][]float32, n)
	for i := range out {
		out[i] = zeroVector(dimension)
	}
	return out
}
