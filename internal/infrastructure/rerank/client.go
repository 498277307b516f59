package rerank

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"
)

// CrossEncoderClient scores (query, document) pairs through an HTTP
// cross-encoder backend. Like the embedding handle, the model is
// loaded once per process; a failed load pins the client in an
// unavailable state that the service degrades around.
type CrossEncoderClient struct {
	baseURL    string
	model      string
	httpClient *http.Client

	warmupOnce sync.Once
	loadErr    error
}

func NewCrossEncoderClient(baseURL, model string) *CrossEncoderClient {
	return &CrossEncoderClient{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

// Available reports whether the model handle loaded. The first call
// pays the warmup probe.
func (c *CrossEncoderClient) Available(ctx context.Context) bool {
	c.warmupOnce.Do(func() {
		if _, err := c.Score(ctx, "warmup", "warmup"); err != nil {
			c.loadErr = fmt.Errorf("load cross-encoder model: %w", err)
		}
	})
	return c.loadErr == nil
}

// Score returns the relevance of document to query in [0,1].
func (c *CrossEncoderClient) Score(ctx context.Context, query, document string) (float64, error) {
	request := map[string]any{
		"model":    c.model,
		"query":    query,
		"document": document,
	}
	body, err := json.Marshal(request)
	if err != nil {
		return 0, fmt.Errorf("marshal score request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/v1/score", bytes.NewReader(body))
	if err != nil {
		return 0, fmt.Errorf("create score request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("cross-encoder score request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return 0, fmt.Errorf("cross-encoder score status: %s: %s", resp.Status, msg)
		}
		return 0, fmt.Errorf("cross-encoder score status: %s", resp.Status)
	}

	var response struct {
		Score float64 `json:"score"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return 0, fmt.Errorf("decode score response: %w", err)
	}
	if response.Score < 0 {
		response.Score = 0
	}
	if response.Score > 1 {
		response.Score = 1
	}
	return response.Score, nil
}
