package config

import "testing"

func TestLoadRetrievalDefaults(t *testing.T) {
	t.Setenv("RETRIEVE_TOP_K", "")
	t.Setenv("RETRIEVE_SCORE_THRESHOLD", "")
	t.Setenv("RERANK_ENABLED", "")
	t.Setenv("CHUNK_TARGET_SIZE", "")
	t.Setenv("CHUNK_OVERLAP", "")

	cfg := Load()
	if cfg.RetrieveTopK != 5 {
		t.Fatalf("expected default top k 5, got %d", cfg.RetrieveTopK)
	}
	if cfg.ScoreThreshold != 0.2 {
		t.Fatalf("expected default score threshold 0.2, got %v", cfg.ScoreThreshold)
	}
	if !cfg.RerankEnabled {
		t.Fatal("expected reranking enabled by default")
	}
	if cfg.ChunkTargetSize != 800 || cfg.ChunkOverlap != 200 {
		t.Fatalf("unexpected chunking defaults: %d/%d", cfg.ChunkTargetSize, cfg.ChunkOverlap)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RETRIEVE_TOP_K", "8")
	t.Setenv("RERANK_BATCH_SIZE", "16")
	t.Setenv("RERANK_CACHE_SIZE", "500")
	t.Setenv("OCR_CONCURRENCY", "5")
	t.Setenv("UPSERT_BATCH_SIZE", "50")
	t.Setenv("SEARCH_RATE_PER_SEC", "2.5")

	cfg := Load()
	if cfg.RetrieveTopK != 8 {
		t.Fatalf("expected top k 8, got %d", cfg.RetrieveTopK)
	}
	if cfg.RerankBatchSize != 16 || cfg.RerankCacheSize != 500 {
		t.Fatalf("unexpected rerank overrides: %d/%d", cfg.RerankBatchSize, cfg.RerankCacheSize)
	}
	if cfg.OCRConcurrency != 5 {
		t.Fatalf("expected ocr concurrency 5, got %d", cfg.OCRConcurrency)
	}
	if cfg.UpsertBatchSize != 50 {
		t.Fatalf("expected upsert batch 50, got %d", cfg.UpsertBatchSize)
	}
	if cfg.SearchRatePerSec != 2.5 {
		t.Fatalf("expected rate 2.5, got %v", cfg.SearchRatePerSec)
	}
}

func TestLoadFallsBackOnInvalidValues(t *testing.T) {
	t.Setenv("RETRIEVE_TOP_K", "not-a-number")
	t.Setenv("RERANK_ENABLED", "not-a-bool")

	cfg := Load()
	if cfg.RetrieveTopK != 5 {
		t.Fatalf("expected fallback top k 5, got %d", cfg.RetrieveTopK)
	}
	if !cfg.RerankEnabled {
		t.Fatal("expected fallback rerank enabled")
	}
}
