package usecase

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

type IndexWorksUseCase struct {
	store     ports.CorpusStore
	embedder  ports.Embedder
	vectorDB  ports.VectorStore
	batchSize int
}

func NewIndexWorksUseCase(store ports.CorpusStore, embedder ports.Embedder, vectorDB ports.VectorStore, batchSize int) *IndexWorksUseCase {
	if batchSize <= 0 {
		batchSize = 64
	}
	return &IndexWorksUseCase{
		store:     store,
		embedder:  embedder,
		vectorDB:  vectorDB,
		batchSize: batchSize,
	}
}

// IndexWork embeds the exported children of a work in batches and upserts
// them, then prunes points of children the latest chunk run no longer
// produces. Nothing is pruned when a batch fails.
func (uc *IndexWorksUseCase) IndexWork(ctx context.Context, workID string) (int, error) {
	children, err := uc.store.ReadChildren(ctx, workID)
	if err != nil {
		return 0, fmt.Errorf("read children: %w", err)
	}

	indexed := 0
	for start := 0; start < len(children); start += uc.batchSize {
		end := start + uc.batchSize
		if end > len(children) {
			end = len(children)
		}
		batch := children[start:end]

		vectors, err := uc.embed(ctx, batch)
		if err != nil {
			return indexed, err
		}
		if err := uc.vectorDB.IndexChildren(ctx, batch, vectors); err != nil {
			return indexed, fmt.Errorf("index children: %w", err)
		}
		indexed += len(batch)
	}

	keep := make([]string, len(children))
	for i, c := range children {
		keep[i] = c.ID
	}
	if err := uc.vectorDB.PruneWork(ctx, workID, keep); err != nil {
		return indexed, fmt.Errorf("prune stale children: %w", err)
	}

	slog.Info("index_work", "work_id", workID, "children", indexed)
	return indexed, nil
}

func (uc *IndexWorksUseCase) embed(ctx context.Context, batch []domain.ChildChunk) ([][]float32, error) {
	texts := make([]string, len(batch))
	for i, c := range batch {
		texts[i] = c.Text
	}
	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return nil, fmt.Errorf("embed children: %w", err)
	}
	if len(vectors) != len(texts) {
		return nil, domain.WrapError(
			domain.ErrInvalidInput,
			"embed children",
			fmt.Errorf("vectors/children mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	return vectors, nil
}
