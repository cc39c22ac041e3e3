package usecase

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

const defaultSearchK = 6

type SearchOptions struct {
	HybridEnabled bool
	// LocalFusion over-fetches TakeDense dense hits and fuses them with the
	// TF-IDF reranker when the hybrid path is not used.
	LocalFusion bool
	TakeDense   int
	RRFK        float64
}

// SearchUseCase retrieves passages, preferring server-side hybrid search and
// falling back to dense-only search once.
type SearchUseCase struct {
	embedder ports.Embedder
	dense    ports.VectorStore
	hybrid   ports.HybridSearcher
	opts     SearchOptions
}

func NewSearchUseCase(embedder ports.Embedder, store ports.VectorStore, opts SearchOptions) *SearchUseCase {
	hybrid, _ := store.(ports.HybridSearcher)
	return &SearchUseCase{
		embedder: embedder,
		dense:    store,
		hybrid:   hybrid,
		opts:     opts,
	}
}

func (uc *SearchUseCase) Search(ctx context.Context, query string, k int, filter domain.SearchFilter) (*domain.SearchResult, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "search", errors.New("query is required"))
	}
	if k <= 0 {
		k = defaultSearchK
	}

	queryVector, err := uc.embedder.EmbedQuery(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}

	reason := uc.hybridUnavailableReason()
	if reason == "" {
		passages, err := uc.hybrid.HybridSearch(ctx, queryVector, query, k, filter)
		if err == nil {
			return &domain.SearchResult{
				Mode:     domain.RetrievalModeHybridRRF,
				Passages: trimPassages(passages, k),
			}, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("hybrid search: %w", err)
		}
		reason = domain.FallbackHybridError
		slog.Warn("retrieval_fallback",
			"from", string(domain.RetrievalModeHybridRRF),
			"to", string(domain.RetrievalModeDenseOnly),
			"reason", reason,
			"error", err,
		)
	}

	passages, local, err := uc.denseOnly(ctx, queryVector, query, k, filter)
	if err != nil {
		return nil, fmt.Errorf("dense search: %w", err)
	}
	return &domain.SearchResult{
		Mode:           domain.RetrievalModeDenseOnly,
		Passages:       passages,
		FallbackReason: reason,
		LocalFusion:    local,
	}, nil
}

func (uc *SearchUseCase) hybridUnavailableReason() string {
	if uc.hybrid == nil {
		return domain.FallbackCapabilityAbsent
	}
	if !uc.opts.HybridEnabled {
		return domain.FallbackHybridDisabled
	}
	return ""
}

func (uc *SearchUseCase) denseOnly(
	ctx context.Context,
	queryVector []float32,
	query string,
	k int,
	filter domain.SearchFilter,
) ([]domain.Passage, bool, error) {
	if !uc.opts.LocalFusion {
		passages, err := uc.dense.DenseSearch(ctx, queryVector, k, filter)
		if err != nil {
			return nil, false, err
		}
		return trimPassages(passages, k), false, nil
	}

	opts := PickOptions{TakeDense: uc.opts.TakeDense, FinalK: k, K: uc.opts.RRFK}.normalize()
	fetch := opts.TakeDense
	if fetch < k {
		fetch = k
	}
	passages, err := uc.dense.DenseSearch(ctx, queryVector, fetch, filter)
	if err != nil {
		return nil, false, err
	}

	rows := make([]domain.Candidate, len(passages))
	for i, p := range passages {
		rows[i] = domain.Candidate{ID: p.ID, Text: p.Text, Score: p.Score}
	}
	picked := PickIndicesWithFusion(rows, query, opts)
	out := make([]domain.Passage, 0, len(picked))
	for _, idx := range picked {
		out = append(out, passages[idx])
	}
	return out, true, nil
}

func trimPassages(passages []domain.Passage, limit int) []domain.Passage {
	if passages == nil {
		return []domain.Passage{}
	}
	if limit <= 0 || len(passages) <= limit {
		return passages
	}
	return passages[:limit]
}
