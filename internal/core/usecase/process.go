package usecase

import (
	"context"
	"fmt"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

// ProcessWorkUseCase serves queued chunk requests: chunk one work, then push
// its children into the vector index.
type ProcessWorkUseCase struct {
	chunker ports.WorkChunker
	indexer ports.WorkIndexer
}

func NewProcessWorkUseCase(chunker ports.WorkChunker, indexer ports.WorkIndexer) *ProcessWorkUseCase {
	return &ProcessWorkUseCase{chunker: chunker, indexer: indexer}
}

func (uc *ProcessWorkUseCase) ProcessByID(ctx context.Context, workID string) (domain.RunEntry, error) {
	entry, err := uc.chunker.ChunkWork(ctx, workID)
	if err != nil {
		return entry, err
	}
	if entry.Status != domain.RunStatusOK {
		return entry, nil
	}
	if _, err := uc.indexer.IndexWork(ctx, workID); err != nil {
		return entry, fmt.Errorf("index work %s: %w", workID, err)
	}
	return entry, nil
}

// ChunkRequestUseCase schedules asynchronous processing of a work.
type ChunkRequestUseCase struct {
	store ports.CorpusStore
	queue ports.ChunkQueue
}

func NewChunkRequestUseCase(store ports.CorpusStore, queue ports.ChunkQueue) *ChunkRequestUseCase {
	return &ChunkRequestUseCase{store: store, queue: queue}
}

// RequestChunk checks the manifest exists before publishing so unknown ids
// fail fast with ErrNotFound.
func (uc *ChunkRequestUseCase) RequestChunk(ctx context.Context, workID string) error {
	if _, err := uc.store.FindManifest(ctx, workID); err != nil {
		return fmt.Errorf("find manifest: %w", err)
	}
	if err := uc.queue.PublishChunkRequest(ctx, workID); err != nil {
		return fmt.Errorf("publish chunk request: %w", err)
	}
	return nil
}
