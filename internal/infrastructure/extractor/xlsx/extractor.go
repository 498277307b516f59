package xlsx

import (
	"context"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
)

// Extractor turns a spreadsheet into one content unit per non-empty
// sheet, rows joined with tabs so cell adjacency survives.
type Extractor struct{}

func New() *Extractor {
	return &Extractor{}
}

func (e *Extractor) Extensions() []string {
	return []string{".xlsx"}
}

func (e *Extractor) Extract(_ context.Context, path string) (domain.Extraction, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return domain.Extraction{}, domain.WrapError(domain.ErrExtraction, "open xlsx", err)
	}
	defer f.Close()

	var units []domain.ContentUnit
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			continue
		}
		var b strings.Builder
		for _, row := range rows {
			line := strings.TrimSpace(strings.Join(row, "\t"))
			if line == "" {
				continue
			}
			b.WriteString(line)
			b.WriteString("\n")
		}
		text := strings.TrimSpace(b.String())
		if text == "" {
			continue
		}
		units = append(units, domain.ContentUnit{
			Text:          text,
			SourceSection: sheet,
			OriginKind:    domain.UnitText,
		})
	}
	return domain.Extraction{Units: units, Pages: len(units)}, nil
}
