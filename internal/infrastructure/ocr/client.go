package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// Client calls an HTTP text-recognition backend. The backend accepts a
// base64 image and returns recognized text with a confidence score.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

func New(baseURL string) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 5 * time.Second},
	}
}

func (c *Client) Recognize(ctx context.Context, image []byte) (domain.OCRResult, error) {
	request := map[string]any{
		"image": base64.StdEncoding.EncodeToString(image),
	}
	body, err := json.Marshal(request)
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("marshal ocr request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/ocr", bytes.NewReader(body))
	if err != nil {
		return domain.OCRResult{}, fmt.Errorf("create ocr request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return domain.OCRResult{}, domain.WrapError(domain.ErrModelUnavailable, "ocr recognize", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 300 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		if msg := strings.TrimSpace(string(raw)); msg != "" {
			return domain.OCRResult{}, fmt.Errorf("ocr status: %s: %s", resp.Status, msg)
		}
		return domain.OCRResult{}, fmt.Errorf("ocr status: %s", resp.Status)
	}

	var response struct {
		Text       string  `json:"text"`
		Confidence float64 `json:"confidence"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&response); err != nil {
		return domain.OCRResult{}, fmt.Errorf("decode ocr response: %w", err)
	}
	return domain.OCRResult{
		Text:       strings.TrimSpace(response.Text),
		Confidence: response.Confidence,
	}, nil
}
