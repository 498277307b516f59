package httpadapter

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
	"github.com/kirillkom/knowledge-retrieval/internal/observability/metrics"
)

// Options carries the traffic and retrieval defaults a Router applies
// to incoming requests.
type Options struct {
	ServiceName       string
	RerankDefault     bool
	SearchRatePerSec  float64
	SearchRateBurst   int
	SearchMaxInFlight int
	Metrics           *metrics.HTTPServerMetrics
}

type Router struct {
	receiver  ports.FileReceiver
	retriever ports.PassageRetriever
	documents ports.DocumentReader
	opts      Options
}

func NewRouter(
	receiver ports.FileReceiver,
	retriever ports.PassageRetriever,
	documents ports.DocumentReader,
	opts Options,
) *Router {
	if opts.ServiceName == "" {
		opts.ServiceName = "api"
	}
	return &Router{
		receiver:  receiver,
		retriever: retriever,
		documents: documents,
		opts:      opts,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/healthz", rt.healthz)
	mux.HandleFunc("/v1/documents", rt.documentsCollection)
	mux.HandleFunc("/v1/documents/", rt.getDocumentByID)
	searchHandler := rateLimitMiddleware(
		http.HandlerFunc(rt.search),
		rt.opts.SearchRatePerSec,
		rt.opts.SearchRateBurst,
	)
	searchHandler = backpressureMiddleware(searchHandler, rt.opts.SearchMaxInFlight, 100*time.Millisecond)
	mux.Handle("/v1/search", searchHandler)

	var handler http.Handler = mux
	if rt.opts.Metrics != nil {
		handler = rt.opts.Metrics.Middleware(rt.opts.ServiceName, handler)
	}
	return requestIDMiddleware(accessLogMiddleware(handler))
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) documentsCollection(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		rt.uploadDocument(w, r)
	case http.MethodGet:
		rt.listDocuments(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	documentID, err := rt.receiver.Receive(r.Context(), fileHeader.Filename, file)
	if err != nil {
		writeError(w, r, err)
		return
	}

	writeJSON(w, http.StatusAccepted, map[string]string{"document_id": documentID})
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	records, err := rt.documents.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if records == nil {
		records = []domain.DocumentRecord{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": records})
}

func (rt *Router) getDocumentByID(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	id := strings.TrimPrefix(r.URL.Path, "/v1/documents/")
	if id == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "document id is required"})
		return
	}

	record, err := rt.documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, record)
}

func (rt *Router) search(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}

	var req struct {
		Query          string   `json:"query"`
		TopK           int      `json:"top_k"`
		ScoreThreshold float64  `json:"score_threshold"`
		Rerank         *bool    `json:"rerank"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid json"})
		return
	}
	if strings.TrimSpace(req.Query) == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "query is required"})
		return
	}

	rerank := rt.opts.RerankDefault
	if req.Rerank != nil {
		rerank = *req.Rerank
	}

	start := time.Now()
	set, err := rt.retriever.Retrieve(r.Context(), req.Query, domain.RetrieveOptions{
		TopK:           req.TopK,
		ScoreThreshold: req.ScoreThreshold,
		Rerank:         rerank,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}

	if rt.opts.Metrics != nil {
		rt.opts.Metrics.RecordRetrieval(
			rt.opts.ServiceName,
			set.Reranked,
			set.Degraded,
			len(set.Results),
			time.Since(start),
		)
	}
	writeJSON(w, http.StatusOK, set)
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status := mapErrorToHTTPStatus(err)
	if status >= 500 {
		slog.Error("request_failed",
			"request_id", requestIDFromContext(r.Context()),
			"path", r.URL.Path,
			"error", err,
		)
	}
	writeJSON(w, status, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
