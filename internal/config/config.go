package config

import (
	"os"
	"strconv"
)

type Config struct {
	APIPort  string
	LogLevel string

	// PostgresDSN is optional; empty disables hierarchy persistence.
	PostgresDSN string

	NATSURL      string
	ChunkSubject string

	OllamaURL            string
	OllamaGenModel       string
	OllamaEmbedModel     string
	OllamaTimeoutSeconds int
	OllamaTemperature    float64

	QdrantURL            string
	QdrantCollection     string
	QdrantHybridEnabled  bool
	QdrantTimeoutSeconds int

	DataManifestsDir  string
	DataNormalizedDir string
	DataExportsDir    string
	DataLogsDir       string

	TokenizerEncoding   string
	ChunkChildMin       int
	ChunkChildMax       int
	ChunkChildOverflow  int
	ChunkHeadingMax     int
	ChunkParentMin      int
	ChunkParentMax      int
	ChunkParentOverflow int
	ChunkWorkers        int
	ChunkDefaultLang    string
	EmbedBatchSize      int

	RAGTopK        int
	RAGMaxTopK     int
	RAGTakeDense   int
	RAGFusionRRFK  float64
	RAGLocalFusion bool

	RetryMaxAttempts          int
	RetryInitialBackoffMS     int
	RetryMaxBackoffMS         int
	RetryMultiplier           float64
	BreakerEnabled            bool
	BreakerMinRequests        int
	BreakerFailureRatio       float64
	BreakerOpenTimeoutSeconds int
	BreakerHalfOpenMaxCalls   int

	APIRateLimitRPS       float64
	APIRateLimitBurst     int
	APIMaxInFlight        int
	APIBackpressureWaitMS int

	WorkerMetricsPort    string
	WorkerProcessTimeout int
}

func Load() Config {
	return Config{
		APIPort:  mustEnv("API_PORT", "8080"),
		LogLevel: mustEnv("LOG_LEVEL", "info"),

		PostgresDSN: mustEnv("POSTGRES_DSN", ""),

		NATSURL:      mustEnv("NATS_URL", "nats://localhost:4222"),
		ChunkSubject: mustEnv("CHUNK_SUBJECT", "passages.chunk"),

		OllamaURL:            mustEnv("OLLAMA_URL", "http://localhost:11434"),
		OllamaGenModel:       mustEnv("OLLAMA_GEN_MODEL", "llama3.1:8b"),
		OllamaEmbedModel:     mustEnv("OLLAMA_EMBED_MODEL", "nomic-embed-text"),
		OllamaTimeoutSeconds: mustEnvInt("OLLAMA_TIMEOUT_SECONDS", 120),
		OllamaTemperature:    mustEnvFloat("OLLAMA_TEMPERATURE", 0.15),

		QdrantURL:            mustEnv("QDRANT_URL", "http://localhost:6333"),
		QdrantCollection:     mustEnv("QDRANT_COLLECTION", "passages"),
		QdrantHybridEnabled:  mustEnvBool("QDRANT_HYBRID_ENABLED", true),
		QdrantTimeoutSeconds: mustEnvInt("QDRANT_TIMEOUT_SECONDS", 30),

		DataManifestsDir:  mustEnv("DATA_MANIFESTS_DIR", "./data/manifests"),
		DataNormalizedDir: mustEnv("DATA_NORMALIZED_DIR", "./data/normalized"),
		DataExportsDir:    mustEnv("DATA_EXPORTS_DIR", "./data/exports"),
		DataLogsDir:       mustEnv("DATA_LOGS_DIR", "./data/logs"),

		TokenizerEncoding:   mustEnv("TOKENIZER_ENCODING", "cl100k_base"),
		ChunkChildMin:       mustEnvInt("CHUNK_CHILD_MIN", 200),
		ChunkChildMax:       mustEnvInt("CHUNK_CHILD_MAX", 380),
		ChunkChildOverflow:  mustEnvInt("CHUNK_CHILD_OVERFLOW", 80),
		ChunkHeadingMax:     mustEnvInt("CHUNK_HEADING_MAX", 40),
		ChunkParentMin:      mustEnvInt("CHUNK_PARENT_MIN", 850),
		ChunkParentMax:      mustEnvInt("CHUNK_PARENT_MAX", 1250),
		ChunkParentOverflow: mustEnvInt("CHUNK_PARENT_OVERFLOW", 120),
		ChunkWorkers:        mustEnvInt("CHUNK_WORKERS", 4),
		ChunkDefaultLang:    mustEnv("CHUNK_DEFAULT_LANG", "en"),
		EmbedBatchSize:      mustEnvInt("EMBED_BATCH_SIZE", 64),

		RAGTopK:        mustEnvInt("RAG_TOP_K", 6),
		RAGMaxTopK:     mustEnvInt("RAG_MAX_TOP_K", 50),
		RAGTakeDense:   mustEnvInt("RAG_TAKE_DENSE", 100),
		RAGFusionRRFK:  mustEnvFloat("RAG_FUSION_RRF_K", 60),
		RAGLocalFusion: mustEnvBool("RAG_LOCAL_FUSION", false),

		RetryMaxAttempts:          mustEnvInt("RETRY_MAX_ATTEMPTS", 3),
		RetryInitialBackoffMS:     mustEnvInt("RETRY_INITIAL_BACKOFF_MS", 100),
		RetryMaxBackoffMS:         mustEnvInt("RETRY_MAX_BACKOFF_MS", 400),
		RetryMultiplier:           mustEnvFloat("RETRY_MULTIPLIER", 2),
		BreakerEnabled:            mustEnvBool("BREAKER_ENABLED", true),
		BreakerMinRequests:        mustEnvInt("BREAKER_MIN_REQUESTS", 10),
		BreakerFailureRatio:       mustEnvFloat("BREAKER_FAILURE_RATIO", 0.5),
		BreakerOpenTimeoutSeconds: mustEnvInt("BREAKER_OPEN_TIMEOUT_SECONDS", 30),
		BreakerHalfOpenMaxCalls:   mustEnvInt("BREAKER_HALF_OPEN_MAX_CALLS", 2),

		APIRateLimitRPS:       mustEnvFloat("API_RATE_LIMIT_RPS", 20),
		APIRateLimitBurst:     mustEnvInt("API_RATE_LIMIT_BURST", 40),
		APIMaxInFlight:        mustEnvInt("API_MAX_IN_FLIGHT", 32),
		APIBackpressureWaitMS: mustEnvInt("API_BACKPRESSURE_WAIT_MS", 250),

		WorkerMetricsPort:    mustEnv("WORKER_METRICS_PORT", "9090"),
		WorkerProcessTimeout: mustEnvInt("WORKER_PROCESS_TIMEOUT_SECONDS", 300),
	}
}

func mustEnv(key, fallback string) string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	return v
}

func mustEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func mustEnvFloat(key string, fallback float64) float64 {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return fallback
	}
	return f
}

func mustEnvBool(key string, fallback bool) bool {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	parsed, err := strconv.ParseBool(v)
	if err != nil {
		return fallback
	}
	return parsed
}
