package summarizer

import (
	"sort"
	"strings"
	"unicode/utf8"
)

// Distributed selects n sentences spread evenly across text: the first, the
// last, and n-2 sentences at a fixed stride in between. It is the "detailed"
// summary mode.
//
// When fewer than n sentences are longer than 30 characters, every non-empty
// fragment becomes a candidate. No fingerprint dedup is applied.
func Distributed(text string, n int) string {
	if n < 3 {
		return Summarize(text, n)
	}

	var long, all []string
	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if s == "" {
			continue
		}
		all = append(all, s)
		if utf8.RuneCountInString(s) > minSentenceChars {
			long = append(long, s)
		}
	}

	candidates := long
	if len(candidates) < n {
		candidates = all
	}
	if len(candidates) <= n {
		return finish(candidates)
	}

	step := len(candidates) / (n - 2)
	picked := map[int]bool{0: true, len(candidates) - 1: true}
	for i := 1; i < n-1; i++ {
		if idx := i * step; idx < len(candidates) {
			picked[idx] = true
		}
	}

	indices := make([]int, 0, len(picked))
	for idx := range picked {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	selected := make([]string, len(indices))
	for i, idx := range indices {
		selected[i] = candidates[idx]
	}
	return finish(selected)
}
