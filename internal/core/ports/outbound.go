package ports

import (
	"context"
	"io"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

// TokenCounter measures text length in model tokens.
type TokenCounter interface {
	Count(text string) int
}

// BlockExtractor turns a normalized document into ordered blocks.
type BlockExtractor interface {
	ExtractBlocks(r io.Reader) ([]domain.Block, error)
}

// Chunker builds the child/parent hierarchy of one work.
type Chunker interface {
	Chunk(meta domain.WorkMeta, blocks []domain.Block) domain.Hierarchy
}

// CorpusStore reads manifests and normalized documents and writes exports.
type CorpusStore interface {
	// ListManifests returns manifest names in lexical order.
	ListManifests(ctx context.Context) ([]string, error)
	ReadManifest(ctx context.Context, name string) (domain.Manifest, error)
	FindManifest(ctx context.Context, workID string) (domain.Manifest, error)
	OpenNormalized(ctx context.Context, workID string) (io.ReadCloser, error)
	WriteExports(ctx context.Context, h domain.Hierarchy) error
	ReadChildren(ctx context.Context, workID string) ([]domain.ChildChunk, error)
	LoadParents(ctx context.Context) ([]domain.ParentChunk, error)
	WriteRunLog(ctx context.Context, entries []domain.RunEntry) (string, error)
}

// HierarchyStore persists chunk hierarchies outside the export files.
type HierarchyStore interface {
	ReplaceWork(ctx context.Context, h domain.Hierarchy) (changed bool, err error)
}

// ParentLookup resolves parent passages for context expansion.
type ParentLookup interface {
	Lookup(parentID string) (domain.ParentChunk, bool)
}

// Embedder builds vectors for chunks and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// VectorStore indexes children and performs dense search.
type VectorStore interface {
	IndexChildren(ctx context.Context, children []domain.ChildChunk, vectors [][]float32) error
	// PruneWork deletes the work's points whose child id is not in keep.
	PruneWork(ctx context.Context, workID string, keep []string) error
	DenseSearch(ctx context.Context, queryVector []float32, limit int, filter domain.SearchFilter) ([]domain.Passage, error)
}

// HybridSearcher is an optional VectorStore capability: server-side dense +
// sparse search fused with RRF by the index itself.
type HybridSearcher interface {
	HybridSearch(ctx context.Context, queryVector []float32, queryText string, limit int, filter domain.SearchFilter) ([]domain.Passage, error)
}

// AnswerGenerator synthesizes the final answer from retrieved context.
type AnswerGenerator interface {
	GenerateAnswer(ctx context.Context, in domain.AnswerContext) (string, error)
}

// ChunkQueue publishes and consumes chunk requests.
type ChunkQueue interface {
	PublishChunkRequest(ctx context.Context, workID string) error
	SubscribeChunkRequests(ctx context.Context, handler func(context.Context, string) error) error
}
