package ollama

import (
	"fmt"
	"strings"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

func buildAnswerPrompt(in domain.AnswerContext) string {
	var passages strings.Builder
	for idx, p := range in.Passages {
		fmt.Fprintf(&passages, "[%d] %s ¶%s %s\n%s\n\n", idx+1, p.WorkTitle, p.ParagraphID, p.SourceURL, p.Text)
	}

	return fmt.Sprintf(`Answer the user query only from the passages below.
Quote verbatim and cite work title, paragraph and link for every quote.
If the passages are insufficient, say it directly.
End with this notice: %s

User Query:
%s

Passages:
%s
Parent Context (for background only):
%s
`, in.Disclaimer, in.Query, passages.String(), strings.Join(in.ParentContext, "\n\n---\n\n"))
}
