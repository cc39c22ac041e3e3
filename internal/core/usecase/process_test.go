package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

func TestProcessByIDChunksThenIndexes(t *testing.T) {
	chunker := &fakeWorkChunker{entry: domain.RunEntry{WorkID: "w", Status: domain.RunStatusOK, Children: 3}}
	indexer := &fakeWorkIndexer{}

	entry, err := NewProcessWorkUseCase(chunker, indexer).ProcessByID(context.Background(), "w")
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	if entry.Children != 3 || len(chunker.called) != 1 || len(indexer.called) != 1 {
		t.Fatalf("unexpected calls chunk=%v index=%v", chunker.called, indexer.called)
	}
}

func TestProcessByIDSkipsIndexingWhenNotOK(t *testing.T) {
	chunker := &fakeWorkChunker{entry: domain.RunEntry{WorkID: "w", Status: domain.RunStatusSkipped}}
	indexer := &fakeWorkIndexer{}

	if _, err := NewProcessWorkUseCase(chunker, indexer).ProcessByID(context.Background(), "w"); err != nil {
		t.Fatalf("process: %v", err)
	}
	if len(indexer.called) != 0 {
		t.Fatalf("skipped work must not be indexed")
	}

	chunker.err = errors.New("boom")
	if _, err := NewProcessWorkUseCase(chunker, indexer).ProcessByID(context.Background(), "w"); err == nil {
		t.Fatalf("expected chunk error")
	}
}

func TestProcessByIDWrapsIndexError(t *testing.T) {
	chunker := &fakeWorkChunker{entry: domain.RunEntry{WorkID: "w", Status: domain.RunStatusOK}}
	indexer := &fakeWorkIndexer{err: domain.WrapError(domain.ErrTemporary, "qdrant", errors.New("503"))}

	_, err := NewProcessWorkUseCase(chunker, indexer).ProcessByID(context.Background(), "w")
	if !errors.Is(err, domain.ErrTemporary) {
		t.Fatalf("expected ErrTemporary, got %v", err)
	}
}

func TestRequestChunk(t *testing.T) {
	store := newFakeCorpusStore()
	store.addWork("w.json", manifest("w"), "text")
	queue := &fakeQueue{}
	uc := NewChunkRequestUseCase(store, queue)

	if err := uc.RequestChunk(context.Background(), "w"); err != nil {
		t.Fatalf("request: %v", err)
	}
	if len(queue.published) != 1 || queue.published[0] != "w" {
		t.Fatalf("unexpected published %v", queue.published)
	}

	if err := uc.RequestChunk(context.Background(), "nope"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if len(queue.published) != 1 {
		t.Fatalf("unknown work must not be published")
	}
}
