package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

type receiverFake struct {
	documentID string
	err        error
	gotName    string
	gotBody    string
}

func (f *receiverFake) Receive(_ context.Context, filename string, body io.Reader) (string, error) {
	f.gotName = filename
	raw, _ := io.ReadAll(body)
	f.gotBody = string(raw)
	if f.err != nil {
		return "", f.err
	}
	return f.documentID, nil
}

type retrieverFake struct {
	set     *domain.RetrievalSet
	err     error
	gotOpts domain.RetrieveOptions
}

func (f *retrieverFake) Retrieve(_ context.Context, _ string, opts domain.RetrieveOptions) (*domain.RetrievalSet, error) {
	f.gotOpts = opts
	if f.err != nil {
		return nil, f.err
	}
	return f.set, nil
}

type readerFake struct {
	record *domain.DocumentRecord
	list   []domain.DocumentRecord
	err    error
}

func (f *readerFake) GetByID(context.Context, string) (*domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.record, nil
}

func (f *readerFake) List(context.Context) ([]domain.DocumentRecord, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.list, nil
}

func newTestRouter(receiver *receiverFake, retriever *retrieverFake, reader *readerFake, opts Options) http.Handler {
	if receiver == nil {
		receiver = &receiverFake{documentID: "doc.txt"}
	}
	if retriever == nil {
		retriever = &retrieverFake{set: &domain.RetrievalSet{Results: []domain.RetrievalResult{}}}
	}
	if reader == nil {
		reader = &readerFake{}
	}
	return NewRouter(receiver, retriever, reader, opts).Handler()
}

func multipartBody(t *testing.T, field, filename, content string) (*bytes.Buffer, string) {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	fw, err := mw.CreateFormFile(field, filename)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := fw.Write([]byte(content)); err != nil {
		t.Fatal(err)
	}
	if err := mw.Close(); err != nil {
		t.Fatal(err)
	}
	return &buf, mw.FormDataContentType()
}

func TestHealthz(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
}

func TestUploadDocumentAccepted(t *testing.T) {
	receiver := &receiverFake{documentID: "report.pdf"}
	handler := newTestRouter(receiver, nil, nil, Options{})

	body, contentType := multipartBody(t, "file", "report.pdf", "pdf bytes")
	req := httptest.NewRequest(http.MethodPost, "/v1/documents", body)
	req.Header.Set("Content-Type", contentType)

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d: %s", res.Code, res.Body.String())
	}
	if receiver.gotName != "report.pdf" || receiver.gotBody != "pdf bytes" {
		t.Errorf("receiver got %q/%q", receiver.gotName, receiver.gotBody)
	}

	var resp map[string]string
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["document_id"] != "report.pdf" {
		t.Errorf("unexpected response %v", resp)
	}
}

func TestUploadDocumentMissingFile(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/documents", strings.NewReader("not multipart"))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchAppliesRerankDefault(t *testing.T) {
	retriever := &retrieverFake{set: &domain.RetrievalSet{
		Results:  []domain.RetrievalResult{{Content: "hit"}},
		Reranked: true,
	}}
	handler := newTestRouter(nil, retriever, nil, Options{RerankDefault: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"what is go","top_k":3}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", res.Code, res.Body.String())
	}
	if !retriever.gotOpts.Rerank || retriever.gotOpts.TopK != 3 {
		t.Errorf("unexpected options %+v", retriever.gotOpts)
	}

	var set domain.RetrievalSet
	if err := json.NewDecoder(res.Body).Decode(&set); err != nil {
		t.Fatal(err)
	}
	if !set.Reranked || len(set.Results) != 1 {
		t.Errorf("unexpected set %+v", set)
	}
}

func TestSearchRerankOverride(t *testing.T) {
	retriever := &retrieverFake{set: &domain.RetrievalSet{Results: []domain.RetrievalResult{}}}
	handler := newTestRouter(nil, retriever, nil, Options{RerankDefault: true})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q","rerank":false}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if retriever.gotOpts.Rerank {
		t.Error("explicit rerank=false must win over the default")
	}
}

func TestSearchEmptyQuery(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"  "}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", res.Code)
	}
}

func TestSearchStoreUnavailableMapsTo503(t *testing.T) {
	retriever := &retrieverFake{err: domain.WrapError(domain.ErrStoreUnavailable, "vector search", io.ErrUnexpectedEOF)}
	handler := newTestRouter(nil, retriever, nil, Options{})

	req := httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`))
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
}

func TestGetDocumentNotFound(t *testing.T) {
	reader := &readerFake{err: domain.ErrDocumentNotFound}
	handler := newTestRouter(nil, nil, reader, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents/missing.txt", nil))
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
}

func TestListDocuments(t *testing.T) {
	reader := &readerFake{list: []domain.DocumentRecord{
		{DocumentID: "a.txt", Status: domain.StatusIngested, PassageCount: 4},
	}}
	handler := newTestRouter(nil, nil, reader, Options{})

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/documents", nil))
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}

	var resp struct {
		Documents []domain.DocumentRecord `json:"documents"`
	}
	if err := json.NewDecoder(res.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if len(resp.Documents) != 1 || resp.Documents[0].DocumentID != "a.txt" {
		t.Errorf("unexpected documents %+v", resp.Documents)
	}
}

func TestRateLimitMiddlewareReturns429(t *testing.T) {
	handler := newTestRouter(nil, nil, nil, Options{SearchRatePerSec: 1, SearchRateBurst: 1})

	first := httptest.NewRecorder()
	handler.ServeHTTP(first, httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`)))
	if first.Code != http.StatusOK {
		t.Fatalf("first request expected 200, got %d", first.Code)
	}

	second := httptest.NewRecorder()
	handler.ServeHTTP(second, httptest.NewRequest(http.MethodPost, "/v1/search", strings.NewReader(`{"query":"q"}`)))
	if second.Code != http.StatusTooManyRequests {
		t.Fatalf("second request expected 429, got %d", second.Code)
	}
	if second.Header().Get("Retry-After") == "" {
		t.Fatal("expected Retry-After header for 429 response")
	}
}

func TestBackpressureMiddlewareReturns503WhenSaturated(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	done := make(chan int, 1)

	base := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		started <- struct{}{}
		<-release
		w.WriteHeader(http.StatusNoContent)
	})
	handler := backpressureMiddleware(base, 1, 20*time.Millisecond)

	go func() {
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
		done <- res.Code
	}()

	<-started

	res := httptest.NewRecorder()
	handler.ServeHTTP(res, httptest.NewRequest(http.MethodGet, "/v1/search", nil))
	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503 for saturated gate, got %d", res.Code)
	}

	close(release)

	select {
	case code := <-done:
		if code != http.StatusNoContent {
			t.Fatalf("first request expected 204, got %d", code)
		}
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for first request completion")
	}
}
