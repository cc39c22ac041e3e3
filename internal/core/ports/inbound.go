package ports

import (
	"context"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

// PassageSearcher is the inbound contract for retrieval with mode reporting.
type PassageSearcher interface {
	Search(ctx context.Context, query string, k int, filter domain.SearchFilter) (*domain.SearchResult, error)
}

// QuestionAnswerer is the inbound contract for cited answers.
type QuestionAnswerer interface {
	Answer(ctx context.Context, query string, k int, filter domain.SearchFilter) (*domain.Answer, error)
}

// ChunkRequester schedules asynchronous chunking of a single work.
type ChunkRequester interface {
	RequestChunk(ctx context.Context, workID string) error
}

// WorkChunker chunks works from the manifest directory.
type WorkChunker interface {
	Run(ctx context.Context) ([]domain.RunEntry, error)
	ChunkWork(ctx context.Context, workID string) (domain.RunEntry, error)
}

// WorkIndexer pushes exported children of a work into the vector index.
type WorkIndexer interface {
	IndexWork(ctx context.Context, workID string) (int, error)
}
