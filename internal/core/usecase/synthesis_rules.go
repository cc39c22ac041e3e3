package usecase

import "strings"

var ruleQueryMarkers = []string{
	"what is", "how does", "how do", "how it works", "explain", "law", "obligation",
	"exempt", "exemption", "rate", "percentage", "due", "threshold", "rules", "requirements",
}

// LooksLikeDefinitionOrLaw reports whether query asks for a definition or a
// rule. Matching is by substring on the normalized query.
func LooksLikeDefinitionOrLaw(query string) bool {
	q := Normalize(query)
	for _, marker := range ruleQueryMarkers {
		if strings.Contains(q, marker) {
			return true
		}
	}
	return false
}

func SystemHintFor(query string) string {
	if LooksLikeDefinitionOrLaw(query) {
		return "You compose concise, strictly grounded answers using only the provided passages. " +
			"When the question asks 'what is', 'how it works', or about a law/obligation, " +
			"summarize in a rule-shaped way covering: definition/purpose, when it applies, " +
			"calculation or steps, exceptions/exemptions, priority or procedural notes if present. " +
			"All quotes must be verbatim with citations (work title + paragraph/section + deep link). " +
			"If key details are absent, say so and provide the closest cited passages."
	}
	return "You compose concise, strictly grounded answers with verbatim quotes and citations " +
		"(work title + paragraph/section + deep link). Use only the provided passages."
}
