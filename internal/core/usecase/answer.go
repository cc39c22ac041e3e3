package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
	"github.com/kirillkom/passage-assistant/internal/core/ports"
)

const (
	Disclaimer = "This assistant retrieves and cites passages from the Bahá’í writings. " +
		"It does not issue rulings or speak with authority. See bahai.org/legal."

	maxQuoteRunes = 400
)

type AnswerUseCase struct {
	searcher  ports.PassageSearcher
	parents   ports.ParentLookup
	generator ports.AnswerGenerator
}

func NewAnswerUseCase(searcher ports.PassageSearcher, parents ports.ParentLookup, generator ports.AnswerGenerator) *AnswerUseCase {
	return &AnswerUseCase{
		searcher:  searcher,
		parents:   parents,
		generator: generator,
	}
}

// Answer retrieves passages, expands them to parent context and asks the
// generator for a cited answer. A generator failure degrades to quoting the
// retrieved passages; a retrieval failure is returned.
func (uc *AnswerUseCase) Answer(ctx context.Context, query string, k int, filter domain.SearchFilter) (*domain.Answer, error) {
	if k <= 0 {
		k = defaultSearchK
	}
	result, err := uc.searcher.Search(ctx, query, k, filter)
	if err != nil {
		return nil, err
	}

	answer := &domain.Answer{
		Citations:      citationsFor(result.Passages),
		ContextPreview: make([]string, 0, len(result.Passages)),
		UsedMode:       result.Mode,
		FallbackReason: result.FallbackReason,
	}
	for _, p := range result.Passages {
		answer.ContextPreview = append(answer.ContextPreview, p.Text)
	}

	in := domain.AnswerContext{
		Query:         query,
		Disclaimer:    Disclaimer,
		SystemHint:    SystemHintFor(query),
		Passages:      result.Passages,
		ParentContext: uc.parentContext(result.Passages, k),
	}

	if uc.generator != nil {
		text, err := uc.generator.GenerateAnswer(ctx, in)
		if err == nil {
			answer.Text = text
			return answer, nil
		}
		if ctx.Err() != nil {
			return nil, fmt.Errorf("generate answer: %w", err)
		}
		slog.Warn("answer_degraded", "used_mode", string(result.Mode), "error", err)
	}

	answer.Text = lastResortAnswer(query, result.Passages, k)
	answer.Degraded = true
	return answer, nil
}

// parentContext maps each hit to its parent text, or to the hit itself when
// the parent is unknown.
func (uc *AnswerUseCase) parentContext(passages []domain.Passage, k int) []string {
	out := make([]string, 0, len(passages))
	for _, p := range passages {
		if len(out) == k {
			break
		}
		if uc.parents != nil {
			if parent, ok := uc.parents.Lookup(p.ParentID); ok {
				out = append(out, parent.Text)
				continue
			}
		}
		out = append(out, p.Text)
	}
	return out
}

func citationsFor(passages []domain.Passage) []domain.Citation {
	out := make([]domain.Citation, 0, len(passages))
	for _, p := range passages {
		if p.SourceURL == "" || p.WorkTitle == "" {
			continue
		}
		out = append(out, domain.Citation{
			WorkID:      p.WorkID,
			WorkTitle:   p.WorkTitle,
			ParagraphID: p.ParagraphID,
			SourceURL:   p.SourceURL,
		})
	}
	return out
}

func lastResortAnswer(query string, passages []domain.Passage, k int) string {
	lines := []string{Disclaimer + "\n", "**Query:** " + query + "\n"}
	if len(passages) == 0 {
		lines = append(lines, "No strong matches were found.")
		return strings.Join(lines, "\n")
	}

	lines = append(lines, "**Quoted passages:**")
	for i, p := range passages {
		if i == k {
			break
		}
		quote := strings.ReplaceAll(strings.TrimSpace(p.Text), "\n", " ")
		if r := []rune(quote); len(r) > maxQuoteRunes {
			quote = string(r[:maxQuoteRunes]) + "…"
		}
		cite := " — *" + p.WorkTitle + "*"
		if p.ParagraphID != "" {
			cite += ", ¶" + p.ParagraphID
		}
		link := ""
		if p.SourceURL != "" {
			link = " (" + p.SourceURL + ")"
		}
		lines = append(lines, "“"+quote+"”"+cite+link)
	}
	return strings.Join(lines, "\n")
}
