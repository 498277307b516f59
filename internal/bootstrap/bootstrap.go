package bootstrap

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/knowledge-retrieval/internal/config"
	"github.com/kirillkom/knowledge-retrieval/internal/core/ports"
	"github.com/kirillkom/knowledge-retrieval/internal/core/usecase"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/chunking"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/embedding"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/extractor"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/extractor/docx"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/extractor/pdf"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/extractor/plaintext"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/extractor/xlsx"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/ocr"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/queue/nats"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/rerank"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/resilience"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/vector"
	"github.com/kirillkom/knowledge-retrieval/internal/infrastructure/vector/qdrant"
	"github.com/kirillkom/knowledge-retrieval/internal/observability/metrics"
)

type App struct {
	Config config.Config

	Queue    *nats.Queue
	Registry ports.DocumentRegistry

	ReceiveUC  ports.FileReceiver
	IngestUC   ports.FileIngestor
	RetrieveUC ports.PassageRetriever

	Reranker *rerank.Service

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, logger *slog.Logger, httpMetrics *metrics.HTTPServerMetrics) (*App, error) {
	if logger == nil {
		logger = slog.Default()
	}

	db, err := postgres.OpenDB(cfg.PostgresDSN)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	registry := postgres.NewDocumentRecordRepository(db)
	if err := registry.EnsureSchema(ctx); err != nil {
		return nil, fmt.Errorf("ensure schema: %w", err)
	}

	files, err := localfs.New(cfg.IncomingDir, cfg.ProcessedDir)
	if err != nil {
		return nil, fmt.Errorf("init file store: %w", err)
	}

	executor := resilience.NewExecutor(resilience.DefaultConfig())
	queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.NATSSubject, nats.Options{
		ResilienceExecutor: executor,
	})
	if err != nil {
		return nil, fmt.Errorf("init ingest queue: %w", err)
	}

	embedder := embedding.New(cfg.EmbedURL, cfg.EmbedModel, cfg.EmbedDimension, logger)

	scorer := rerank.NewCrossEncoderClient(cfg.RerankURL, cfg.RerankModel)
	reranker := rerank.NewService(scorer, rerank.Options{
		BatchSize:    cfg.RerankBatchSize,
		CacheSize:    cfg.RerankCacheSize,
		CacheCleanup: time.Duration(cfg.RerankCacheCleanup) * time.Second,
	}, logger)
	if httpMetrics != nil {
		reranker.CacheObserver = func(hit bool) {
			httpMetrics.RecordRerankCacheLookup("api", hit)
		}
	}

	vectorIndex := vector.NewResilientIndex(
		qdrant.New(cfg.QdrantURL, cfg.QdrantCollection, cfg.UpsertBatchSize, embedder, logger),
		executor,
	)

	recognizer := ocr.New(cfg.OCRURL)
	extractors := extractor.NewRegistry(
		plaintext.New(),
		pdf.New(),
		xlsx.New(),
		docx.New(recognizer, docx.Options{
			Concurrency:   cfg.OCRConcurrency,
			MinTextLength: cfg.OCRMinTextLength,
			MinAlnumRatio: cfg.OCRMinAlnumRatio,
			MinConfidence: cfg.OCRMinConfidence,
		}, logger),
	)

	chunker := chunking.NewSplitter(cfg.ChunkTargetSize, cfg.ChunkOverlap, cfg.PreserveBoundaries)

	receiveUC := usecase.NewReceiveFileUseCase(files, queue)
	ingestUC := usecase.NewIngestFileUseCase(files, extractors, chunker, vectorIndex, registry, logger)
	retrieveUC := usecase.NewRetrievePassagesUseCase(embedder, vectorIndex, reranker, usecase.RetrieveDefaults{
		TopK:           cfg.RetrieveTopK,
		ScoreThreshold: cfg.ScoreThreshold,
		Rerank:         cfg.RerankEnabled,
	}, logger)

	return &App{
		Config:   cfg,
		Queue:    queue,
		Registry: registry,

		ReceiveUC:  receiveUC,
		IngestUC:   ingestUC,
		RetrieveUC: retrieveUC,

		Reranker: reranker,

		closeFn: func() {
			queue.Close()
			_ = db.Close()
		},
	}, nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}
