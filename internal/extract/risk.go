package extract

import (
	"regexp"
	"strings"
	"unicode"
)

var numberPattern = regexp.MustCompile(`\d[\d,]*(?:\.\d+)?`)

// Numbers returns the normalized numeric tokens of text ("1,200" -> "1200")
func Numbers(text string) []string {
	matches := numberPattern.FindAllString(text, -1)
	seen := make(map[string]bool, len(matches))
	var out []string
	for _, m := range matches {
		n := strings.ReplaceAll(m, ",", "")
		n = strings.TrimRight(n, ".")
		if strings.Contains(n, ".") {
			n = strings.TrimRight(strings.TrimRight(n, "0"), ".")
		}
		if n != "" && !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}

// Entities returns capitalized multi-token spans (proper-noun heuristic).
// The first word of a sentence never starts a span, since it is capitalized
// regardless of meaning; a leading stopword such as "The" is skipped anywhere.
// Spans never cross punctuation.
func Entities(text string) []string {
	var entities []string
	var run []string

	flush := func() {
		if len(run) >= 2 {
			entities = append(entities, strings.Join(run, " "))
		}
		run = run[:0]
	}

	sentenceStart := true
	for _, field := range strings.Fields(text) {
		initial := sentenceStart
		sentenceStart = endsSentence(field)

		w := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" || !isCapitalized(w) || initial || (len(run) == 0 && stopwords[strings.ToLower(w)]) {
			flush()
			continue
		}
		if len(run) > 0 && !strings.HasPrefix(field, w) {
			// Leading punctuation such as an opening quote starts a new span
			flush()
		}
		run = append(run, w)
		if !strings.HasSuffix(field, w) {
			flush()
		}
	}
	flush()

	return entities
}

func endsSentence(field string) bool {
	field = strings.TrimRight(field, `"')]`)
	return strings.HasSuffix(field, ".") || strings.HasSuffix(field, "!") || strings.HasSuffix(field, "?")
}

// IsRisky reports whether text contains a number (including unit-bearing
// measurements such as 71% or 20ms) or a named entity
func IsRisky(text string) bool {
	return len(Numbers(text)) > 0 || len(Entities(text)) > 0
}

func isCapitalized(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}
