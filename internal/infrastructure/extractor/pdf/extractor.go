package pdf

import (
	"context"
	"fmt"
	"strings"

	"github.com/ledongthuc/pdf"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// Extractor turns a PDF into one content unit per non-empty page.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".pdf"}
}

func (e *Extractor) Extract(_ context.Context, path string) (out domain.Extraction, err error) {
	// The pdf package panics on some malformed files; a broken input
	// must skip the file, not take down the worker.
	defer func() {
		if r := recover(); r != nil {
			out = domain.Extraction{}
			err = domain.WrapError(domain.ErrExtraction, "parse pdf", fmt.Errorf("panic: %v", r))
		}
	}()

	f, reader, err := pdf.Open(path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "open pdf", err)
	}
	defer f.Close()

	numPages := reader.NumPage()
	units := make([]domain.ContentUnit, 0, numPages)
	for i := 1; i <= numPages; i++ {
		page := reader.Page(i)
		if page.V.IsNull() {
			continue
		}
		text, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		text = strings.TrimSpace(text)
		if text == "" {
			continue
		}
		units = append(units, domain.ContentUnit{
			Text:       text,
			SourcePage: i,
			OriginKind: domain.UnitText,
		})
	}
	return domain.Extraction{Units: units, Pages: numPages}, nil
}
