package usecase

import (
	"math"
	"sort"
	"strings"
	"unicode"
)

// SparseMatch is a candidate position and its lexical similarity to a query.
type SparseMatch struct {
	Index int
	Score float64
}

// TFIDFRerank scores texts against query with a TF-IDF space built from the
// texts plus the query, so IDF is local to this query. Features are unigrams
// and bigrams of word runs of at least two characters. Results are sorted by
// descending cosine similarity; ties keep input order.
func TFIDFRerank(query string, texts []string, topK int) []SparseMatch {
	if len(texts) == 0 {
		return nil
	}
	if topK <= 0 || topK > len(texts) {
		topK = len(texts)
	}

	docs := make([]map[string]float64, 0, len(texts)+1)
	for _, text := range texts {
		docs = append(docs, termCounts(Normalize(text)))
	}
	docs = append(docs, termCounts(Normalize(query)))

	df := make(map[string]int)
	for _, doc := range docs {
		for term := range doc {
			df[term]++
		}
	}
	n := float64(len(docs))
	for _, doc := range docs {
		var norm2 float64
		for term, tf := range doc {
			w := tf * (math.Log((1+n)/(1+float64(df[term]))) + 1)
			doc[term] = w
			norm2 += w * w
		}
		if norm2 == 0 {
			continue
		}
		l2 := math.Sqrt(norm2)
		for term := range doc {
			doc[term] /= l2
		}
	}

	queryVec := docs[len(docs)-1]
	matches := make([]SparseMatch, len(texts))
	for i := range texts {
		matches[i] = SparseMatch{Index: i, Score: dot(queryVec, docs[i])}
	}
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].Score > matches[j].Score
	})
	return matches[:topK]
}

func dot(a, b map[string]float64) float64 {
	if len(b) < len(a) {
		a, b = b, a
	}
	var sum float64
	for term, w := range a {
		sum += w * b[term]
	}
	return sum
}

// termCounts counts unigrams and adjacent bigrams of normalized text.
func termCounts(text string) map[string]float64 {
	tokens := wordTokens(text)
	counts := make(map[string]float64, len(tokens)*2)
	for i, tok := range tokens {
		counts[tok]++
		if i > 0 {
			counts[tokens[i-1]+" "+tok]++
		}
	}
	return counts
}

// wordTokens returns maximal runs of word characters that are at least two
// runes long.
func wordTokens(text string) []string {
	var tokens []string
	var b strings.Builder
	runeCount := 0
	flush := func() {
		if runeCount >= 2 {
			tokens = append(tokens, b.String())
		}
		b.Reset()
		runeCount = 0
	}
	for _, r := range text {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
			b.WriteRune(r)
			runeCount++
			continue
		}
		flush()
	}
	flush()
	return tokens
}
