package parentindex

import "github.com/kirillkom/passage-assistant/internal/core/domain"

// Index is a read-only parent lookup. It is never mutated after New, so
// concurrent readers need no locking.
type Index struct {
	parents map[string]domain.ParentChunk
}

func New(parents []domain.ParentChunk) *Index {
	m := make(map[string]domain.ParentChunk, len(parents))
	for _, p := range parents {
		if p.ID == "" {
			continue
		}
		m[p.ID] = p
	}
	return &Index{parents: m}
}

func (i *Index) Lookup(parentID string) (domain.ParentChunk, bool) {
	if i == nil || parentID == "" {
		return domain.ParentChunk{}, false
	}
	p, ok := i.parents[parentID]
	return p, ok
}

func (i *Index) Len() int {
	if i == nil {
		return 0
	}
	return len(i.parents)
}
