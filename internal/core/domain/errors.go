package domain

import (
	"errors"
	"fmt"
)

var (
	ErrDocumentNotFound = errors.New("document not found")
	ErrInvalidInput     = errors.New("invalid input")

	// ErrExtraction marks a malformed or unreadable source file. Recovered
	// locally: the file is skipped and the ingestion run continues.
	ErrExtraction = errors.New("extraction failure")

	// ErrModelUnavailable marks an embedding/rerank/OCR backend that failed
	// to initialize. Recovered via degraded-mode fallbacks, never fatal.
	ErrModelUnavailable = errors.New("model unavailable")

	// ErrStoreUnavailable marks a vector store connection or write failure.
	// Surfaced to the caller as a hard failure of that operation.
	ErrStoreUnavailable = errors.New("vector store unavailable")

	// ErrTimeout marks an outbound call that exceeded its deadline.
	ErrTimeout = errors.New("timeout")

	ErrTemporary = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
