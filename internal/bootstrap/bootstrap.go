package bootstrap

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	"github.com/kirillkom/passage-assistant/internal/config"
	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
	"github.com/kirillkom/passage-assistant/internal/core/usecase"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/chunking"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/extractor/htmlblocks"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/llm/ollama"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/parentindex"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/queue/nats"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/repository/postgres"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/resilience"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/storage/localfs"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/tokenizer"
	"github.com/kirillkom/passage-assistant/internal/infrastructure/vector/qdrant"
)

type Options struct {
	// WithQueue connects to NATS; the batch chunker runs without it.
	WithQueue bool
	// WithParents loads the parent index used for answer context.
	WithParents bool
}

type App struct {
	Config config.Config

	Queue    ports.ChunkQueue
	Chunker  ports.WorkChunker
	Indexer  ports.WorkIndexer
	Searcher ports.PassageSearcher
	Answerer ports.QuestionAnswerer
	// Requester is nil without a queue.
	Requester ports.ChunkRequester
	Processor *usecase.ProcessWorkUseCase

	closeFn func()
}

func New(ctx context.Context, cfg config.Config, opts Options) (*App, error) {
	var closers []func()
	closeAll := func() {
		for i := len(closers) - 1; i >= 0; i-- {
			closers[i]()
		}
	}

	executor := resilience.NewExecutor(resilienceConfig(cfg))

	corpus, err := localfs.New(localfs.Layout{
		Manifests:  cfg.DataManifestsDir,
		Normalized: cfg.DataNormalizedDir,
		Exports:    cfg.DataExportsDir,
		Logs:       cfg.DataLogsDir,
	})
	if err != nil {
		return nil, fmt.Errorf("init corpus storage: %w", err)
	}

	var (
		db        *sql.DB
		repo      *postgres.PassageRepository
		hierarchy ports.HierarchyStore
	)
	if cfg.PostgresDSN != "" {
		db, err = postgres.OpenDB(cfg.PostgresDSN)
		if err != nil {
			return nil, fmt.Errorf("open postgres: %w", err)
		}
		closers = append(closers, func() { _ = db.Close() })
		repo = postgres.NewPassageRepository(db)
		if err := repo.EnsureSchema(ctx); err != nil {
			closeAll()
			return nil, fmt.Errorf("ensure schema: %w", err)
		}
		hierarchy = repo
	}

	counter, err := tokenizer.New(cfg.TokenizerEncoding)
	if err != nil {
		closeAll()
		return nil, fmt.Errorf("init tokenizer: %w", err)
	}
	chunker := chunking.NewHierarchical(counter, chunking.Thresholds{
		ChildMin:       cfg.ChunkChildMin,
		ChildMax:       cfg.ChunkChildMax,
		ChildOverflow:  cfg.ChunkChildOverflow,
		HeadingMax:     cfg.ChunkHeadingMax,
		ParentMin:      cfg.ChunkParentMin,
		ParentMax:      cfg.ChunkParentMax,
		ParentOverflow: cfg.ChunkParentOverflow,
	})

	ollamaClient := ollama.NewWithOptions(cfg.OllamaURL, cfg.OllamaGenModel, cfg.OllamaEmbedModel, ollama.Options{
		Timeout:            time.Duration(cfg.OllamaTimeoutSeconds) * time.Second,
		Temperature:        cfg.OllamaTemperature,
		ResilienceExecutor: executor,
	})
	embedder := ollama.NewEmbedder(ollamaClient)
	generator := ollama.NewGenerator(ollamaClient)

	vectorDB := qdrant.NewWithOptions(cfg.QdrantURL, cfg.QdrantCollection, qdrant.Options{
		Timeout:            time.Duration(cfg.QdrantTimeoutSeconds) * time.Second,
		ResilienceExecutor: executor,
	})

	chunkUC := usecase.NewChunkWorksUseCase(corpus, htmlblocks.NewExtractor(), chunker, hierarchy, usecase.ChunkWorksOptions{
		Workers:     cfg.ChunkWorkers,
		DefaultLang: cfg.ChunkDefaultLang,
	})
	indexUC := usecase.NewIndexWorksUseCase(corpus, embedder, vectorDB, cfg.EmbedBatchSize)
	searchUC := usecase.NewSearchUseCase(embedder, vectorDB, usecase.SearchOptions{
		HybridEnabled: cfg.QdrantHybridEnabled,
		LocalFusion:   cfg.RAGLocalFusion,
		TakeDense:     cfg.RAGTakeDense,
		RRFK:          cfg.RAGFusionRRFK,
	})

	var parents *parentindex.Index
	if opts.WithParents {
		parents, err = loadParents(ctx, corpus, repo)
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("load parents: %w", err)
		}
		slog.Info("parent_index_loaded", "parents", parents.Len())
	}
	answerUC := usecase.NewAnswerUseCase(searchUC, parents, generator)

	app := &App{
		Config:    cfg,
		Chunker:   chunkUC,
		Indexer:   indexUC,
		Searcher:  searchUC,
		Answerer:  answerUC,
		Processor: usecase.NewProcessWorkUseCase(chunkUC, indexUC),
	}

	if opts.WithQueue {
		queue, err := nats.NewWithOptions(cfg.NATSURL, cfg.ChunkSubject, nats.Options{ResilienceExecutor: executor})
		if err != nil {
			closeAll()
			return nil, fmt.Errorf("init message queue: %w", err)
		}
		closers = append(closers, queue.Close)
		app.Queue = queue
		app.Requester = usecase.NewChunkRequestUseCase(corpus, queue)
	}

	app.closeFn = closeAll
	return app, nil
}

// loadParents prefers the database, which holds every persisted work, over
// the export files.
func loadParents(ctx context.Context, corpus *localfs.Store, repo *postgres.PassageRepository) (*parentindex.Index, error) {
	var (
		parents []domain.ParentChunk
		err     error
	)
	if repo != nil {
		parents, err = repo.ListParents(ctx)
	} else {
		parents, err = corpus.LoadParents(ctx)
	}
	if err != nil {
		return nil, err
	}
	return parentindex.New(parents), nil
}

func (a *App) Close() {
	if a.closeFn != nil {
		a.closeFn()
	}
}

// resilienceConfig maps env settings onto the executor policy; zero or
// negative values fall back to the executor defaults.
func resilienceConfig(cfg config.Config) resilience.Config {
	return resilience.Config{
		Retry: resilience.RetryPolicy{
			MaxAttempts:    cfg.RetryMaxAttempts,
			InitialBackoff: time.Duration(cfg.RetryInitialBackoffMS) * time.Millisecond,
			MaxBackoff:     time.Duration(cfg.RetryMaxBackoffMS) * time.Millisecond,
			Multiplier:     cfg.RetryMultiplier,
			SingleAttempt:  []string{resilience.HybridSearchOperation},
		},
		Breaker: resilience.BreakerPolicy{
			Enabled:          cfg.BreakerEnabled,
			MinRequests:      uint32(max(cfg.BreakerMinRequests, 0)),
			FailureRatio:     cfg.BreakerFailureRatio,
			OpenTimeout:      time.Duration(cfg.BreakerOpenTimeoutSeconds) * time.Second,
			HalfOpenMaxCalls: uint32(max(cfg.BreakerHalfOpenMaxCalls, 0)),
		},
	}
}
