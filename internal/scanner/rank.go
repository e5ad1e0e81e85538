package scanner

import "sort"

// Rank sorts survivors descending by holder count and truncates to the top k.
// The sort is stable, so ties keep their enrichment completion order and the
// result is deterministic for a given input sequence.
func Rank(survivors []Survivor, k int) []Survivor {
	out := make([]Survivor, len(survivors))
	copy(out, survivors)

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Holders > out[j].Holders
	})

	if k >= 0 && len(out) > k {
		out = out[:k]
	}
	return out
}
