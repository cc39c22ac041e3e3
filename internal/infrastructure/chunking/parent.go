package chunking

import (
	"fmt"
	"strings"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

// Parents groups consecutive children and sets ParentID on each of them.
func (h *Hierarchical) Parents(workID string, children []domain.ChildChunk) []domain.ParentChunk {
	th := h.thresholds
	var groups [][]int
	var current []int
	for i := range children {
		current = append(current, i)
		if closes(h.tokens.Count(joinTexts(children, current, " ")), th.ParentMin, th.ParentMax, th.ParentOverflow) {
			groups = append(groups, current)
			current = nil
		}
	}
	if len(current) > 0 {
		groups = append(groups, current)
	}

	parents := make([]domain.ParentChunk, 0, len(groups))
	for n, group := range groups {
		id := fmt.Sprintf("%s-p%04d", workID, n+1)
		for _, idx := range group {
			children[idx].ParentID = id
		}
		text := joinTexts(children, group, "\n\n")
		parents = append(parents, domain.ParentChunk{
			ID:     id,
			WorkID: workID,
			Text:   text,
			Hash:   ContentHash(text),
		})
	}
	return parents
}

func joinTexts(children []domain.ChildChunk, idx []int, sep string) string {
	texts := make([]string, 0, len(idx))
	for _, i := range idx {
		texts = append(texts, children[i].Text)
	}
	return strings.Join(texts, sep)
}
