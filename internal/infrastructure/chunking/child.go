package chunking

import (
	"fmt"
	"strings"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

type childBuffer struct {
	texts   []string
	anchors []string
	sources []string
}

func (b *childBuffer) add(block domain.Block) {
	b.texts = append(b.texts, block.Text)
	b.anchors = append(b.anchors, block.AnchorID)
	b.sources = append(b.sources, block.SourceURL)
}

func (b *childBuffer) empty() bool {
	return len(b.texts) == 0
}

// measured is the text whose token count drives flush decisions.
func (b *childBuffer) measured() string {
	return strings.Join(b.texts, " ")
}

func (b *childBuffer) reset() {
	b.texts = b.texts[:0]
	b.anchors = b.anchors[:0]
	b.sources = b.sources[:0]
}

// Children runs the child state machine over blocks of one work.
func (h *Hierarchical) Children(meta domain.WorkMeta, blocks []domain.Block) []domain.ChildChunk {
	th := h.thresholds
	children := make([]domain.ChildChunk, 0, len(blocks)/4+1)
	var buf childBuffer

	flush := func() {
		text := strings.Join(buf.texts, "\n")
		children = append(children, domain.ChildChunk{
			ID:          fmt.Sprintf("%s-c%05d", meta.WorkID, len(children)+1),
			WorkID:      meta.WorkID,
			Author:      meta.Author,
			WorkTitle:   meta.WorkTitle,
			ParagraphID: firstNonEmpty(buf.anchors),
			Text:        text,
			SourceURL:   firstNonEmpty(buf.sources),
			Lang:        meta.Lang,
			Hash:        ContentHash(text),
		})
		buf.reset()
	}

	for _, block := range blocks {
		if block.IsHeading() {
			if !buf.empty() && h.tokens.Count(buf.measured()) >= th.ChildMin {
				flush()
			}
			// Short headings travel with the following text as a label.
			if h.tokens.Count(block.Text) <= th.HeadingMax {
				buf.add(block)
			}
			continue
		}

		buf.add(block)
		if closes(h.tokens.Count(buf.measured()), th.ChildMin, th.ChildMax, th.ChildOverflow) {
			flush()
		}
	}
	if !buf.empty() {
		flush()
	}
	return children
}

func firstNonEmpty(values []string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
