package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

type ChunkWorksOptions struct {
	Workers     int
	DefaultLang string
}

// ChunkWorksUseCase turns manifests and normalized documents into exported
// child/parent hierarchies. Every document is isolated: its failure becomes a
// run log entry and never stops the batch.
type ChunkWorksUseCase struct {
	store     ports.CorpusStore
	extractor ports.BlockExtractor
	chunker   ports.Chunker
	hierarchy ports.HierarchyStore
	opts      ChunkWorksOptions
}

// NewChunkWorksUseCase accepts a nil hierarchy store when persistence is off.
func NewChunkWorksUseCase(
	store ports.CorpusStore,
	extractor ports.BlockExtractor,
	chunker ports.Chunker,
	hierarchy ports.HierarchyStore,
	opts ChunkWorksOptions,
) *ChunkWorksUseCase {
	if opts.Workers <= 0 {
		opts.Workers = 4
	}
	if opts.DefaultLang == "" {
		opts.DefaultLang = "en"
	}
	return &ChunkWorksUseCase{
		store:     store,
		extractor: extractor,
		chunker:   chunker,
		hierarchy: hierarchy,
		opts:      opts,
	}
}

// Run chunks every manifest and writes the run log. Entries follow manifest
// order regardless of completion order.
func (uc *ChunkWorksUseCase) Run(ctx context.Context) ([]domain.RunEntry, error) {
	names, err := uc.store.ListManifests(ctx)
	if err != nil {
		return nil, fmt.Errorf("list manifests: %w", err)
	}

	entries := make([]domain.RunEntry, len(names))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(uc.opts.Workers)
	for i, name := range names {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				entries[i] = errorEntry(manifestStem(name), err)
				return err
			}
			entries[i] = uc.chunkManifest(gctx, name)
			return nil
		})
	}
	runErr := g.Wait()

	path, err := uc.store.WriteRunLog(context.WithoutCancel(ctx), entries)
	if err != nil {
		return entries, fmt.Errorf("write run log: %w", err)
	}
	slog.Info("chunk_run_finished", "documents", len(entries), "run_log", path)
	if runErr != nil {
		return entries, fmt.Errorf("chunk run interrupted: %w", runErr)
	}
	return entries, nil
}

// ChunkWork chunks a single work looked up by id.
func (uc *ChunkWorksUseCase) ChunkWork(ctx context.Context, workID string) (domain.RunEntry, error) {
	m, err := uc.store.FindManifest(ctx, workID)
	if err != nil {
		return errorEntry(workID, err), fmt.Errorf("find manifest: %w", err)
	}
	entry := uc.chunkOne(ctx, m)
	if entry.Status == domain.RunStatusError {
		return entry, fmt.Errorf("chunk work %s: %s", workID, entry.Error)
	}
	return entry, nil
}

func (uc *ChunkWorksUseCase) chunkManifest(ctx context.Context, name string) domain.RunEntry {
	m, err := uc.store.ReadManifest(ctx, name)
	if err != nil {
		slog.Error("chunk_work_failed", "manifest", name, "error", err)
		return errorEntry(manifestStem(name), err)
	}
	return uc.chunkOne(ctx, m)
}

func (uc *ChunkWorksUseCase) chunkOne(ctx context.Context, m domain.Manifest) domain.RunEntry {
	start := time.Now()
	h, err := uc.build(ctx, m)
	switch {
	case domain.IsKind(err, domain.ErrNotFound):
		slog.Warn("chunk_work_skipped", "work_id", m.WorkID, "reason", "normalized document missing")
		return domain.RunEntry{WorkID: m.WorkID, Status: domain.RunStatusSkipped, Error: "normalized document missing"}
	case err != nil:
		slog.Error("chunk_work_failed", "work_id", m.WorkID, "error", err)
		return errorEntry(m.WorkID, err)
	}

	if err := uc.store.WriteExports(ctx, h); err != nil {
		slog.Error("chunk_work_failed", "work_id", m.WorkID, "error", err)
		return errorEntry(m.WorkID, fmt.Errorf("write exports: %w", err))
	}
	if uc.hierarchy != nil {
		changed, err := uc.hierarchy.ReplaceWork(ctx, h)
		if err != nil {
			slog.Error("chunk_work_failed", "work_id", m.WorkID, "error", err)
			return errorEntry(m.WorkID, fmt.Errorf("persist hierarchy: %w", err))
		}
		slog.Info("chunk_work_persisted", "work_id", m.WorkID, "changed", changed)
	}

	slog.Info("chunk_work",
		"work_id", m.WorkID,
		"parents", len(h.Parents),
		"children", len(h.Children),
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return domain.RunEntry{
		WorkID:   m.WorkID,
		Parents:  len(h.Parents),
		Children: len(h.Children),
		Status:   domain.RunStatusOK,
	}
}

func (uc *ChunkWorksUseCase) build(ctx context.Context, m domain.Manifest) (domain.Hierarchy, error) {
	rc, err := uc.store.OpenNormalized(ctx, m.WorkID)
	if err != nil {
		return domain.Hierarchy{}, err
	}
	defer rc.Close()

	blocks, err := uc.extractor.ExtractBlocks(rc)
	if err != nil {
		return domain.Hierarchy{}, fmt.Errorf("extract blocks: %w", err)
	}
	if len(blocks) == 0 {
		return domain.Hierarchy{}, domain.WrapError(domain.ErrInvalidInput, "extract blocks", errors.New("document has no text blocks"))
	}
	return uc.chunker.Chunk(m.Meta(uc.opts.DefaultLang), blocks), nil
}

func errorEntry(workID string, err error) domain.RunEntry {
	return domain.RunEntry{WorkID: workID, Status: domain.RunStatusError, Error: err.Error()}
}

func manifestStem(name string) string {
	return strings.TrimSuffix(name, filepath.Ext(name))
}
