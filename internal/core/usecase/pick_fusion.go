package usecase

import (
	"sort"
	"strconv"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

type PickOptions struct {
	// DenseKey names the dense score; "" or "score" reads Candidate.Score.
	DenseKey  string
	TakeDense int
	FinalK    int
	K         float64
}

func DefaultPickOptions() PickOptions {
	return PickOptions{
		DenseKey:  "score",
		TakeDense: 100,
		FinalK:    10,
		K:         DefaultRRFK,
	}
}

func (o PickOptions) normalize() PickOptions {
	out := o
	def := DefaultPickOptions()
	if out.DenseKey == "" {
		out.DenseKey = def.DenseKey
	}
	if out.TakeDense <= 0 {
		out.TakeDense = def.TakeDense
	}
	if out.FinalK <= 0 {
		out.FinalK = def.FinalK
	}
	if out.K <= 0 {
		out.K = def.K
	}
	return out
}

// PickWithFusion keeps the top TakeDense rows by dense score, reranks them
// lexically against query and returns the FinalK best rows by RRF over the
// dense and lexical rankings.
func PickWithFusion(rows []domain.Candidate, query string, opts PickOptions) []domain.Candidate {
	picked := PickIndicesWithFusion(rows, query, opts)
	out := make([]domain.Candidate, 0, len(picked))
	for _, idx := range picked {
		out = append(out, rows[idx])
	}
	return out
}

// PickIndicesWithFusion is PickWithFusion returning positions in rows.
func PickIndicesWithFusion(rows []domain.Candidate, query string, opts PickOptions) []int {
	if len(rows) == 0 {
		return []int{}
	}
	opts = opts.normalize()

	order := make([]int, len(rows))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return rows[order[a]].DenseScore(opts.DenseKey) > rows[order[b]].DenseScore(opts.DenseKey)
	})
	if len(order) > opts.TakeDense {
		order = order[:opts.TakeDense]
	}

	dense := make(domain.RankedList, 0, len(order))
	texts := make([]string, 0, len(order))
	for _, idx := range order {
		dense = append(dense, domain.RankedItem{ID: strconv.Itoa(idx), Score: rows[idx].DenseScore(opts.DenseKey)})
		texts = append(texts, rows[idx].Text)
	}

	sparse := make(domain.RankedList, 0, len(order))
	for _, m := range TFIDFRerank(query, texts, len(texts)) {
		sparse = append(sparse, domain.RankedItem{ID: strconv.Itoa(order[m.Index]), Score: m.Score})
	}

	fused := FuseRRF(opts.K, dense, sparse)
	sort.SliceStable(order, func(a, b int) bool {
		fa, fb := fused[strconv.Itoa(order[a])], fused[strconv.Itoa(order[b])]
		if fa != fb {
			return fa > fb
		}
		return order[a] < order[b]
	})

	limit := opts.FinalK
	if limit > len(order) {
		limit = len(order)
	}
	return order[:limit]
}
