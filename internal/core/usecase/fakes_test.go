package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"sync"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

type fakeEmbedder struct {
	mu         sync.Mutex
	embedCalls [][]string
	queryCalls int
	err        error
	short      bool
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls = append(f.embedCalls, append([]string(nil), texts...))
	if f.err != nil {
		return nil, f.err
	}
	n := len(texts)
	if f.short && n > 0 {
		n--
	}
	out := make([][]float32, n)
	for i := range out {
		out[i] = []float32{float32(i), 1}
	}
	return out, nil
}

func (f *fakeEmbedder) EmbedQuery(_ context.Context, _ string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryCalls++
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2, 0.3}, nil
}

type fakeDenseStore struct {
	passages   []domain.Passage
	denseErr   error
	denseCalls int
	lastLimit  int
	indexed    [][]domain.ChildChunk
	indexErr   error
	pruned     map[string][]string
	pruneErr   error
}

func (f *fakeDenseStore) IndexChildren(_ context.Context, children []domain.ChildChunk, vectors [][]float32) error {
	if len(children) != len(vectors) {
		return fmt.Errorf("mismatch %d/%d", len(children), len(vectors))
	}
	if f.indexErr != nil {
		return f.indexErr
	}
	f.indexed = append(f.indexed, children)
	return nil
}

func (f *fakeDenseStore) PruneWork(_ context.Context, workID string, keep []string) error {
	if f.pruneErr != nil {
		return f.pruneErr
	}
	if f.pruned == nil {
		f.pruned = make(map[string][]string)
	}
	f.pruned[workID] = append([]string(nil), keep...)
	return nil
}

func (f *fakeDenseStore) DenseSearch(_ context.Context, _ []float32, limit int, _ domain.SearchFilter) ([]domain.Passage, error) {
	f.denseCalls++
	f.lastLimit = limit
	if f.denseErr != nil {
		return nil, f.denseErr
	}
	if limit < len(f.passages) {
		return f.passages[:limit], nil
	}
	return f.passages, nil
}

type fakeHybridStore struct {
	fakeDenseStore
	hybridPassages []domain.Passage
	hybridErr      error
	hybridCalls    int
	lastQueryText  string
	lastFilter     domain.SearchFilter
}

func (f *fakeHybridStore) HybridSearch(_ context.Context, _ []float32, queryText string, _ int, filter domain.SearchFilter) ([]domain.Passage, error) {
	f.hybridCalls++
	f.lastQueryText = queryText
	f.lastFilter = filter
	if f.hybridErr != nil {
		return nil, f.hybridErr
	}
	return f.hybridPassages, nil
}

type fakeSearcher struct {
	result *domain.SearchResult
	err    error
}

func (f *fakeSearcher) Search(_ context.Context, _ string, _ int, _ domain.SearchFilter) (*domain.SearchResult, error) {
	return f.result, f.err
}

type fakeGenerator struct {
	text string
	err  error
	got  domain.AnswerContext
}

func (f *fakeGenerator) GenerateAnswer(_ context.Context, in domain.AnswerContext) (string, error) {
	f.got = in
	return f.text, f.err
}

type fakeParents map[string]domain.ParentChunk

func (f fakeParents) Lookup(id string) (domain.ParentChunk, bool) {
	p, ok := f[id]
	return p, ok
}

type fakeCorpusStore struct {
	mu         sync.Mutex
	manifests  map[string]domain.Manifest
	badNames   map[string]error
	documents  map[string]string
	children   map[string][]domain.ChildChunk
	exports    map[string]domain.Hierarchy
	exportErr  error
	runLog     []domain.RunEntry
	runLogPath string
}

func newFakeCorpusStore() *fakeCorpusStore {
	return &fakeCorpusStore{
		manifests: make(map[string]domain.Manifest),
		badNames:  make(map[string]error),
		documents: make(map[string]string),
		children:  make(map[string][]domain.ChildChunk),
		exports:   make(map[string]domain.Hierarchy),
	}
}

func (f *fakeCorpusStore) addWork(name string, m domain.Manifest, html string) {
	f.manifests[name] = m
	if html != "" {
		f.documents[m.WorkID] = html
	}
}

func (f *fakeCorpusStore) ListManifests(_ context.Context) ([]string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	names := make([]string, 0, len(f.manifests)+len(f.badNames))
	for name := range f.manifests {
		names = append(names, name)
	}
	for name := range f.badNames {
		names = append(names, name)
	}
	sort.Strings(names)
	return names, nil
}

func (f *fakeCorpusStore) ReadManifest(_ context.Context, name string) (domain.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err, ok := f.badNames[name]; ok {
		return domain.Manifest{}, err
	}
	m, ok := f.manifests[name]
	if !ok {
		return domain.Manifest{}, domain.WrapError(domain.ErrNotFound, "read manifest", fmt.Errorf("%s", name))
	}
	return m, nil
}

func (f *fakeCorpusStore) FindManifest(_ context.Context, workID string) (domain.Manifest, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, m := range f.manifests {
		if m.WorkID == workID {
			return m, nil
		}
	}
	return domain.Manifest{}, domain.WrapError(domain.ErrNotFound, "find manifest", fmt.Errorf("work %s", workID))
}

func (f *fakeCorpusStore) OpenNormalized(_ context.Context, workID string) (io.ReadCloser, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	doc, ok := f.documents[workID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "open normalized", fmt.Errorf("work %s", workID))
	}
	return io.NopCloser(bytes.NewBufferString(doc)), nil
}

func (f *fakeCorpusStore) WriteExports(_ context.Context, h domain.Hierarchy) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.exportErr != nil {
		return f.exportErr
	}
	f.exports[h.WorkID] = h
	return nil
}

func (f *fakeCorpusStore) ReadChildren(_ context.Context, workID string) ([]domain.ChildChunk, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	children, ok := f.children[workID]
	if !ok {
		return nil, domain.WrapError(domain.ErrNotFound, "read children", fmt.Errorf("work %s", workID))
	}
	return children, nil
}

func (f *fakeCorpusStore) LoadParents(_ context.Context) ([]domain.ParentChunk, error) {
	return nil, nil
}

func (f *fakeCorpusStore) WriteRunLog(_ context.Context, entries []domain.RunEntry) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.runLog = append([]domain.RunEntry(nil), entries...)
	f.runLogPath = "logs/chunk_test.json"
	return f.runLogPath, nil
}

// fakeExtractor emits one paragraph per non-empty line; the line "BROKEN"
// makes extraction fail.
type fakeExtractor struct{}

func (fakeExtractor) ExtractBlocks(r io.Reader) ([]domain.Block, error) {
	raw, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var blocks []domain.Block
	for i, line := range bytes.Split(raw, []byte("\n")) {
		text := string(bytes.TrimSpace(line))
		if text == "" {
			continue
		}
		if text == "BROKEN" {
			return nil, fmt.Errorf("malformed markup")
		}
		blocks = append(blocks, domain.Block{
			Kind:     domain.BlockParagraph,
			AnchorID: fmt.Sprintf("p%d", i+1),
			Text:     text,
		})
	}
	return blocks, nil
}

// fakeChunker produces one child per block and a single parent.
type fakeChunker struct{}

func (fakeChunker) Chunk(meta domain.WorkMeta, blocks []domain.Block) domain.Hierarchy {
	h := domain.Hierarchy{WorkID: meta.WorkID}
	parentID := meta.WorkID + "-p00001"
	for i, b := range blocks {
		h.Children = append(h.Children, domain.ChildChunk{
			ID:          fmt.Sprintf("%s-c%05d", meta.WorkID, i+1),
			ParentID:    parentID,
			WorkID:      meta.WorkID,
			Author:      meta.Author,
			WorkTitle:   meta.WorkTitle,
			ParagraphID: b.AnchorID,
			Text:        b.Text,
			Lang:        meta.Lang,
		})
	}
	h.Parents = []domain.ParentChunk{{ID: parentID, WorkID: meta.WorkID}}
	return h
}

type fakeHierarchyStore struct {
	mu       sync.Mutex
	replaced []string
	err      error
}

func (f *fakeHierarchyStore) ReplaceWork(_ context.Context, h domain.Hierarchy) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	f.replaced = append(f.replaced, h.WorkID)
	return true, nil
}

type fakeWorkChunker struct {
	entry  domain.RunEntry
	err    error
	called []string
}

func (f *fakeWorkChunker) Run(_ context.Context) ([]domain.RunEntry, error) {
	return []domain.RunEntry{f.entry}, f.err
}

func (f *fakeWorkChunker) ChunkWork(_ context.Context, workID string) (domain.RunEntry, error) {
	f.called = append(f.called, workID)
	return f.entry, f.err
}

type fakeWorkIndexer struct {
	err    error
	called []string
}

func (f *fakeWorkIndexer) IndexWork(_ context.Context, workID string) (int, error) {
	f.called = append(f.called, workID)
	return 3, f.err
}

type fakeQueue struct {
	published []string
	err       error
}

func (f *fakeQueue) PublishChunkRequest(_ context.Context, workID string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, workID)
	return nil
}

func (f *fakeQueue) SubscribeChunkRequests(_ context.Context, _ func(context.Context, string) error) error {
	return nil
}
