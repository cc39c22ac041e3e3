package parentindex

import (
	"sync"
	"testing"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

func TestLookup(t *testing.T) {
	idx := New([]domain.ParentChunk{
		{ID: "w1-p0001", WorkID: "w1", Text: "first"},
		{ID: "w1-p0002", WorkID: "w1", Text: "second"},
		{ID: "", Text: "ignored"},
	})
	if idx.Len() != 2 {
		t.Fatalf("expected 2 parents, got %d", idx.Len())
	}
	p, ok := idx.Lookup("w1-p0002")
	if !ok || p.Text != "second" {
		t.Fatalf("unexpected lookup result: %+v %v", p, ok)
	}
	if _, ok := idx.Lookup("missing"); ok {
		t.Fatalf("expected miss for unknown id")
	}
	if _, ok := idx.Lookup(""); ok {
		t.Fatalf("expected miss for empty id")
	}
}

func TestNilIndexLookup(t *testing.T) {
	var idx *Index
	if _, ok := idx.Lookup("w1-p0001"); ok {
		t.Fatalf("expected nil index to miss")
	}
}

func TestConcurrentReads(t *testing.T) {
	idx := New([]domain.ParentChunk{{ID: "a", Text: "alpha"}})
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				if p, ok := idx.Lookup("a"); !ok || p.Text != "alpha" {
					t.Errorf("unexpected lookup result")
					return
				}
			}
		}()
	}
	wg.Wait()
}
