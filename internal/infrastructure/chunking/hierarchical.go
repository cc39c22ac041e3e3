package chunking

import (
	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

// Hierarchical builds child passages from blocks and groups them into
// parents. Ids are ordinals in flush order, so they change whenever block
// order or thresholds change; Hash is the stable content address.
type Hierarchical struct {
	tokens     ports.TokenCounter
	thresholds Thresholds
}

func NewHierarchical(tokens ports.TokenCounter, thresholds Thresholds) *Hierarchical {
	return &Hierarchical{
		tokens:     tokens,
		thresholds: thresholds.normalize(),
	}
}

func (h *Hierarchical) Chunk(meta domain.WorkMeta, blocks []domain.Block) domain.Hierarchy {
	children := h.Children(meta, blocks)
	parents := h.Parents(meta.WorkID, children)
	return domain.Hierarchy{
		WorkID:   meta.WorkID,
		Parents:  parents,
		Children: children,
	}
}

func (h *Hierarchical) Thresholds() Thresholds {
	return h.thresholds
}
