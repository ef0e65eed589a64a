package summarizer

import (
	"log/slog"
	"strings"
	"unicode/utf8"
)

const (
	// DefaultMaxSentences is the sentence count used by Generate.
	DefaultMaxSentences = 3

	// MaxChars bounds the length of every summary, in characters.
	MaxChars = 250

	minSentenceChars  = 30
	fingerprintChars  = 50
	ellipsis          = "..."
	sentenceSeparator = ". "
)

// Sentences splits text on the literal '.' character, trims each fragment and
// drops fragments of 30 characters or fewer. Duplicates (same Fingerprint) are
// removed keeping the first occurrence.
//
// Abbreviations, decimals and ellipses are not special-cased: "Dr. Smith" is
// two fragments.
func Sentences(text string) []string {
	var valid []string
	seen := make(map[string]bool)

	for _, s := range strings.Split(text, ".") {
		s = strings.TrimSpace(s)
		if utf8.RuneCountInString(s) <= minSentenceChars {
			continue
		}
		fp := Fingerprint(s)
		if seen[fp] {
			continue
		}
		seen[fp] = true
		valid = append(valid, s)
	}
	return valid
}

// Fingerprint returns the lowercase 50-character prefix used as a dedup key.
func Fingerprint(sentence string) string {
	return truncateRunes(strings.ToLower(sentence), fingerprintChars)
}

// Summarize builds a short extractive summary of text: the first, middle and
// last valid sentences, joined and bounded to MaxChars characters.
//
// At most three sentences are ever selected once there are more valid
// sentences than maxSentences. It returns "" when no sentence qualifies.
func Summarize(text string, maxSentences int) string {
	valid := Sentences(text)
	return finish(selectSentences(valid, maxSentences))
}

func selectSentences(valid []string, maxSentences int) []string {
	if len(valid) <= maxSentences {
		return valid
	}

	selected := []string{valid[0]}
	if maxSentences >= 2 && len(valid) > 2 {
		selected = append(selected, valid[len(valid)/2])
	}
	if maxSentences >= 3 && len(valid) > 3 {
		selected = append(selected, valid[len(valid)-1])
	}
	return selected
}

// finish joins the selected sentences, terminates the result with a period and
// truncates it to MaxChars.
func finish(selected []string) string {
	summary := strings.Join(selected, sentenceSeparator)
	if summary != "" && !strings.HasSuffix(summary, ".") {
		summary += "."
	}
	return truncate(summary, MaxChars)
}

// truncate cuts s after the last period within the first max characters. With
// no period it cuts at a word boundary and appends "...", keeping the marker
// inside the budget.
func truncate(s string, max int) string {
	runes := []rune(s)
	if len(runes) <= max {
		return s
	}

	head := runes[:max]
	if i := lastIndex(head, '.'); i > 0 {
		return string(head[:i+1])
	}

	room := runes[:max-len(ellipsis)]
	if i := lastIndex(room, ' '); i > 0 {
		return string(room[:i]) + ellipsis
	}
	return string(room) + ellipsis
}

// Generate is the request-facing summary entry point. It summarizes with
// DefaultMaxSentences and retries with two sentences if that attempt fails.
func Generate(text string) string {
	if summary, ok := safeSummarize(text, DefaultMaxSentences); ok {
		return summary
	}
	summary, _ := safeSummarize(text, 2)
	return summary
}

func safeSummarize(text string, maxSentences int) (summary string, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("summarization failed",
				slog.String("component", "summarizer"),
				slog.Int("max_sentences", maxSentences),
				slog.Any("panic", r))
			summary, ok = "", false
		}
	}()
	return Summarize(text, maxSentences), true
}

func truncateRunes(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	return string([]rune(s)[:n])
}

func lastIndex(runes []rune, r rune) int {
	for i := len(runes) - 1; i >= 0; i-- {
		if runes[i] == r {
			return i
		}
	}
	return -1
}
