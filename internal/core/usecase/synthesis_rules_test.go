package usecase

import (
	"strings"
	"testing"
)

func TestLooksLikeDefinitionOrLaw(t *testing.T) {
	cases := map[string]bool{
		"What is Ḥuqúqu’lláh?":          true,
		"  EXPLAIN the Fast ":           true,
		"Which exemptions apply":        true,
		"Tell me a story about Ṭáhirih": false,
		"":                              false,
	}
	for query, want := range cases {
		if got := LooksLikeDefinitionOrLaw(query); got != want {
			t.Fatalf("LooksLikeDefinitionOrLaw(%q) = %v, want %v", query, got, want)
		}
	}
}

func TestSystemHintFor(t *testing.T) {
	if hint := SystemHintFor("how does the calendar work"); !strings.Contains(hint, "rule-shaped") {
		t.Fatalf("expected rule-shaped hint, got %q", hint)
	}
	hint := SystemHintFor("quotes about unity")
	if strings.Contains(hint, "rule-shaped") || !strings.Contains(hint, "verbatim quotes") {
		t.Fatalf("unexpected generic hint %q", hint)
	}
}
