package usecase

import (
	"sort"

	"github.com/kirillkom/passage-assistant/internal/core/domain"
)

const (
	DefaultRRFK = 60.0

	// absentRank stands in for an id missing from a list; its contribution is
	// negligible but non-zero.
	absentRank = 1e9
)

// FuseRRF merges ranked lists with Reciprocal Rank Fusion: every id in the
// union scores the sum over lists of 1/(k+rank).
func FuseRRF(k float64, lists ...domain.RankedList) domain.FusedScores {
	if k <= 0 {
		k = DefaultRRFK
	}

	ranks := make([]map[string]int, 0, len(lists))
	union := make(map[string]struct{})
	for _, list := range lists {
		r := rankMap(list)
		ranks = append(ranks, r)
		for id := range r {
			union[id] = struct{}{}
		}
	}

	fused := make(domain.FusedScores, len(union))
	for id := range union {
		var score float64
		for _, r := range ranks {
			rank, ok := r[id]
			if !ok {
				score += 1.0 / (k + absentRank)
				continue
			}
			score += 1.0 / (k + float64(rank))
		}
		fused[id] = score
	}
	return fused
}

// rankMap sorts a copy of list by score descending (stable) and assigns
// 1-based ranks. A duplicated id keeps its best rank.
func rankMap(list domain.RankedList) map[string]int {
	ordered := make(domain.RankedList, len(list))
	copy(ordered, list)
	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].Score > ordered[j].Score
	})

	out := make(map[string]int, len(ordered))
	for i, item := range ordered {
		if _, seen := out[item.ID]; seen {
			continue
		}
		out[item.ID] = i + 1
	}
	return out
}

// TopFused returns the n best fused ids; ties are broken by id ascending.
func TopFused(scores domain.FusedScores, n int) domain.RankedList {
	out := make(domain.RankedList, 0, len(scores))
	for id, score := range scores {
		out = append(out, domain.RankedItem{ID: id, Score: score})
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Score != out[j].Score {
			return out[i].Score > out[j].Score
		}
		return out[i].ID < out[j].ID
	})
	if n >= 0 && n < len(out) {
		out = out[:n]
	}
	return out
}
