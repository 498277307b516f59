package plaintext

import (
	"context"
	"errors"
	"os"
	"strings"
	"unicode/utf8"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// Extractor handles plain text and markdown: the whole trimmed file
// becomes one content unit.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".txt", ".md", ".markdown"}
}

func (e *Extractor) Extract(_ context.Context, path string) (domain.Extraction, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "read text file", err)
	}
	if !utf8.Valid(raw) {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "read text file", errors.New("not valid utf-8"))
	}

	text := strings.TrimSpace(string(raw))
	if text == "" {
		return domain.Extraction{}, nil
	}
	return domain.Extraction{
		Units: []domain.ContentUnit{{
			Text:       text,
			OriginKind: domain.UnitText,
		}},
		Pages: 1,
	}, nil
}
