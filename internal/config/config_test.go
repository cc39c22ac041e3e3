package config

import "testing"

func TestLoadIncludesRetrievalAndChunkingDefaults(t *testing.T) {
	for _, key := range []string{
		"RAG_TOP_K", "RAG_TAKE_DENSE", "RAG_FUSION_RRF_K", "QDRANT_HYBRID_ENABLED",
		"CHUNK_CHILD_MIN", "CHUNK_CHILD_MAX", "CHUNK_CHILD_OVERFLOW", "CHUNK_HEADING_MAX",
		"CHUNK_PARENT_MIN", "CHUNK_PARENT_MAX", "CHUNK_PARENT_OVERFLOW", "POSTGRES_DSN",
		"RETRY_INITIAL_BACKOFF_MS", "RETRY_MAX_BACKOFF_MS", "BREAKER_OPEN_TIMEOUT_SECONDS",
	} {
		t.Setenv(key, "")
	}

	cfg := Load()
	if cfg.RAGTopK != 6 {
		t.Fatalf("expected default top k 6, got %d", cfg.RAGTopK)
	}
	if cfg.RAGTakeDense != 100 {
		t.Fatalf("expected default take dense 100, got %d", cfg.RAGTakeDense)
	}
	if cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected default rrf k 60, got %v", cfg.RAGFusionRRFK)
	}
	if !cfg.QdrantHybridEnabled {
		t.Fatalf("expected hybrid search enabled by default")
	}
	if cfg.ChunkChildMin != 200 || cfg.ChunkChildMax != 380 || cfg.ChunkChildOverflow != 80 || cfg.ChunkHeadingMax != 40 {
		t.Fatalf("unexpected child thresholds %+v", cfg)
	}
	if cfg.ChunkParentMin != 850 || cfg.ChunkParentMax != 1250 || cfg.ChunkParentOverflow != 120 {
		t.Fatalf("unexpected parent thresholds %+v", cfg)
	}
	if cfg.PostgresDSN != "" {
		t.Fatalf("expected postgres disabled by default, got %q", cfg.PostgresDSN)
	}
	if cfg.RetryInitialBackoffMS != 100 || cfg.RetryMaxBackoffMS != 400 || cfg.BreakerOpenTimeoutSeconds != 30 {
		t.Fatalf("unexpected resilience defaults %+v", cfg)
	}
}

func TestLoadParsesOverrides(t *testing.T) {
	t.Setenv("RAG_TOP_K", "12")
	t.Setenv("RAG_FUSION_RRF_K", "75.5")
	t.Setenv("RAG_LOCAL_FUSION", "true")
	t.Setenv("QDRANT_HYBRID_ENABLED", "false")
	t.Setenv("CHUNK_WORKERS", "9")
	t.Setenv("API_RATE_LIMIT_RPS", "2.5")
	t.Setenv("BREAKER_FAILURE_RATIO", "0.3")
	t.Setenv("RETRY_MAX_BACKOFF_MS", "900")

	cfg := Load()
	if cfg.RAGTopK != 12 {
		t.Fatalf("expected top k 12, got %d", cfg.RAGTopK)
	}
	if cfg.RAGFusionRRFK != 75.5 {
		t.Fatalf("expected rrf k 75.5, got %v", cfg.RAGFusionRRFK)
	}
	if !cfg.RAGLocalFusion || cfg.QdrantHybridEnabled {
		t.Fatalf("expected boolean overrides, got local=%v hybrid=%v", cfg.RAGLocalFusion, cfg.QdrantHybridEnabled)
	}
	if cfg.ChunkWorkers != 9 {
		t.Fatalf("expected 9 workers, got %d", cfg.ChunkWorkers)
	}
	if cfg.APIRateLimitRPS != 2.5 {
		t.Fatalf("expected rps 2.5, got %v", cfg.APIRateLimitRPS)
	}
	if cfg.BreakerFailureRatio != 0.3 || cfg.RetryMaxBackoffMS != 900 {
		t.Fatalf("expected resilience overrides, got ratio=%v backoff=%d", cfg.BreakerFailureRatio, cfg.RetryMaxBackoffMS)
	}
}

func TestLoadFallsBackOnMalformedValues(t *testing.T) {
	t.Setenv("RAG_TOP_K", "many")
	t.Setenv("RAG_LOCAL_FUSION", "sometimes")
	t.Setenv("RAG_FUSION_RRF_K", "k")

	cfg := Load()
	if cfg.RAGTopK != 6 || cfg.RAGLocalFusion || cfg.RAGFusionRRFK != 60 {
		t.Fatalf("expected defaults for malformed values, got %+v", cfg)
	}
}
