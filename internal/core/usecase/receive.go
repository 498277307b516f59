package usecase

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// ReceiveFileUseCase accepts an uploaded file into the incoming
// directory and queues it for ingestion. The sanitized filename is the
// document identity from here on.
type ReceiveFileUseCase struct {
	files ports.FileStore
	queue ports.IngestQueue
}

func NewReceiveFileUseCase(files ports.FileStore, queue ports.IngestQueue) *ReceiveFileUseCase {
	return &ReceiveFileUseCase{
		files: files,
		queue: queue,
	}
}

func (uc *ReceiveFileUseCase) Receive(ctx context.Context, filename string, body io.Reader) (string, error) {
	name := sanitizeFilename(filename)
	if name == "" {
		return "", domain.WrapError(domain.ErrInvalidInput, "receive file", errors.New("empty filename"))
	}

	if err := uc.files.SaveIncoming(ctx, name, body); err != nil {
		return "", fmt.Errorf("save incoming file: %w", err)
	}

	if err := uc.queue.PublishFileReceived(ctx, name); err != nil {
		return "", fmt.Errorf("publish file received event: %w", err)
	}

	return name, nil
}

func sanitizeFilename(name string) string {
	base := filepath.Base(name)
	base = strings.ReplaceAll(base, " ", "_")
	base = strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z':
			return r
		case r >= 'A' && r <= 'Z':
			return r
		case r >= '0' && r <= '9':
			return r
		case r == '.', r == '-', r == '_':
			return r
		default:
			return '_'
		}
	}, base)
	if base == "." || base == ".." || strings.Trim(base, "_.") == "" {
		return ""
	}
	return base
}
