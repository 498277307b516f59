package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// Extractor turns one raw file into ordered content units.
type Extractor interface {
	Extensions() []string
	Extract(ctx context.Context, path string) (domain.Extraction, error)
}

// ExtractorResolver picks the extractor responsible for a filename.
type ExtractorResolver interface {
	Resolve(filename string) (Extractor, bool)
	Supported() []string
}

// OCRRecognizer runs text recognition over one image.
type OCRRecognizer interface {
	Recognize(ctx context.Context, image []byte) (domain.OCRResult, error)
}

// Chunker splits normalized text into overlapping passages.
type Chunker interface {
	Split(text string) []domain.Passage
}

// Embedder maps text to dense vectors. Implementations degrade to
// zero vectors of the configured dimension when the model handle
// cannot be initialized.
type Embedder interface {
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
	EmbedDocuments(ctx context.Context, texts []string) ([][]float32, error)
}

// Reranker scores (query, document) pairs with a cross-encoder and
// returns results sorted by score descending, truncated to topK.
type Reranker interface {
	Rerank(ctx context.Context, query string, documents []string, topK int) ([]domain.RerankResult, error)
}

// VectorIndex persists, searches and deletes passage vectors keyed by
// document identity.
type VectorIndex interface {
	Exists(ctx context.Context, documentID string) (domain.ExistsResult, error)
	DeleteByDocumentID(ctx context.Context, documentID string) (int, error)
	UpsertPassages(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (int, error)
	ReplaceDocument(ctx context.Context, documentID, fileType string, passages []domain.DocumentPassage) (domain.ReplaceResult, error)
	Search(ctx context.Context, vector []float32, topN int, scoreThreshold float64) ([]domain.Candidate, error)
}

// DocumentRegistry persists per-document ingest outcomes.
type DocumentRegistry interface {
	Save(ctx context.Context, record *domain.DocumentRecord) error
	GetByID(ctx context.Context, documentID string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}

// FileStore owns the incoming and processed directories.
type FileStore interface {
	SaveIncoming(ctx context.Context, name string, data io.Reader) error
	IncomingPath(name string) string
	ListIncoming(ctx context.Context) ([]string, error)
	MoveToProcessed(ctx context.Context, name string) error
}

// IngestQueue hands received filenames to the ingestion worker.
type IngestQueue interface {
	PublishFileReceived(ctx context.Context, filename string) error
	SubscribeFileReceived(ctx context.Context, handler func(context.Context, string) error) error
}
