package ports

import (
	"context"
	"io"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// FileReceiver is the inbound contract for accepting an uploaded file
// into the incoming directory and queueing it for ingestion.
type FileReceiver interface {
	Receive(ctx context.Context, filename string, body io.Reader) (string, error)
}

// FileIngestor is the inbound contract for running the ingestion
// pipeline over queued or already-present files.
type FileIngestor interface {
	IngestFile(ctx context.Context, filename string) domain.FileReport
	IngestIncoming(ctx context.Context) ([]domain.FileReport, error)
}

// PassageRetriever is the inbound contract for two-stage retrieval.
type PassageRetriever interface {
	Retrieve(ctx context.Context, query string, opts domain.RetrieveOptions) (*domain.RetrievalSet, error)
}

// DocumentReader is the inbound read model for ingest records.
type DocumentReader interface {
	GetByID(ctx context.Context, documentID string) (*domain.DocumentRecord, error)
	List(ctx context.Context) ([]domain.DocumentRecord, error)
}
