package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"github.com/kirillkom/knowledge-retrieval/internal/core/domain"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
)

// IngestFileUseCase runs the full pipeline for one incoming file:
// extract, chunk, replace the document's passages in the vector index,
// record the outcome and archive the file. Failures are reported per
// file and never abort a batch run.
type IngestFileUseCase struct {
	files      ports.FileStore
	extractors ports.ExtractorResolver
	chunker    ports.Chunker
	vectors    ports.VectorIndex
	registry   ports.DocumentRegistry
	logger     *slog.Logger
	now        func() time.Time
}

func NewIngestFileUseCase(
	files ports.FileStore,
	extractors ports.ExtractorResolver,
	chunker ports.Chunker,
	vectors ports.VectorIndex,
	registry ports.DocumentRegistry,
	logger *slog.Logger,
) *IngestFileUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	return &IngestFileUseCase{
		files:      files,
		extractors: extractors,
		chunker:    chunker,
		vectors:    vectors,
		registry:   registry,
		logger:     logger,
		now:        time.Now,
	}
}

func (uc *IngestFileUseCase) IngestFile(ctx context.Context, filename string) domain.FileReport {
	fileType := strings.TrimPrefix(strings.ToLower(filepath.Ext(filename)), ".")

	extractor, ok := uc.extractors.Resolve(filename)
	if !ok {
		return uc.fail(ctx, filename, fileType, fmt.Errorf("unsupported file type %q", fileType))
	}

	extraction, err := extractor.Extract(ctx, uc.files.IncomingPath(filename))
	if err != nil {
		return uc.fail(ctx, filename, fileType, fmt.Errorf("extract content: %w", err))
	}

	passages := uc.chunkUnits(extraction.Units)
	if len(passages) == 0 {
		return uc.fail(ctx, filename, fileType, fmt.Errorf("no indexable content"))
	}

	replaced, err := uc.vectors.ReplaceDocument(ctx, filename, fileType, passages)
	if err != nil {
		return uc.fail(ctx, filename, fileType, fmt.Errorf("replace document passages: %w", err))
	}

	uc.record(ctx, &domain.DocumentRecord{
		DocumentID:   filename,
		FileType:     fileType,
		PassageCount: replaced.Uploaded,
		Status:       domain.StatusIngested,
		UploadedAt:   uc.now().UTC(),
	})

	if err := uc.files.MoveToProcessed(ctx, filename); err != nil {
		uc.logger.Warn("archive_failed", "file", filename, "error", err)
	}

	uc.logger.Info("file_ingested",
		"file", filename,
		"passages", replaced.Uploaded,
		"superseded", replaced.Deleted,
	)
	return domain.FileReport{
		File:     filename,
		Status:   domain.StatusIngested,
		Deleted:  replaced.Deleted,
		Uploaded: replaced.Uploaded,
	}
}

func (uc *IngestFileUseCase) IngestIncoming(ctx context.Context) ([]domain.FileReport, error) {
	names, err := uc.files.ListIncoming(ctx)
	if err != nil {
		return nil, fmt.Errorf("list incoming files: %w", err)
	}

	reports := make([]domain.FileReport, 0, len(names))
	for _, name := range names {
		if ctx.Err() != nil {
			return reports, ctx.Err()
		}
		reports = append(reports, uc.IngestFile(ctx, name))
	}
	return reports, nil
}

// chunkUnits splits every content unit and renumbers the resulting
// passages so sequence indices are contiguous across the whole
// document, not per unit.
func (uc *IngestFileUseCase) chunkUnits(units []domain.ContentUnit) []domain.DocumentPassage {
	var passages []domain.DocumentPassage
	for _, unit := range units {
		for _, p := range uc.chunker.Split(unit.Text) {
			p.SequenceIndex = len(passages)
			passages = append(passages, domain.DocumentPassage{
				Passage:       p,
				SourcePage:    unit.SourcePage,
				SourceSection: unit.SourceSection,
				SourceType:    unit.OriginKind,
				ImageIndex:    unit.ImageIndex,
			})
		}
	}
	return passages
}

func (uc *IngestFileUseCase) fail(ctx context.Context, filename, fileType string, cause error) domain.FileReport {
	uc.logger.Warn("file_ingest_failed", "file", filename, "error", cause)
	uc.record(ctx, &domain.DocumentRecord{
		DocumentID: filename,
		FileType:   fileType,
		Status:     domain.StatusFailed,
		Error:      cause.Error(),
		UploadedAt: uc.now().UTC(),
	})
	return domain.FileReport{
		File:   filename,
		Status: domain.StatusFailed,
		Reason: cause.Error(),
	}
}

// record persists the outcome best-effort; registry trouble must not
// undo an already-indexed document.
func (uc *IngestFileUseCase) record(ctx context.Context, rec *domain.DocumentRecord) {
	if err := uc.registry.Save(ctx, rec); err != nil {
		uc.logger.Warn("record_save_failed", "file", rec.DocumentID, "error", err)
	}
}
