package extract

import (
	"strings"
	"unicode"
)

// stopwords contains common English words excluded from matching.
var stopwords = map[string]bool{
	"the": true, "a": true, "an": true, "is": true, "are": true,
	"was": true, "were": true, "do": true, "does": true, "did": true,
	"have": true, "has": true, "had": true, "be": true, "been": true,
	"being": true, "will": true, "would": true, "could": true, "should": true,
	"may": true, "might": true, "can": true, "shall": true, "not": true,
	"no": true, "and": true, "or": true, "but": true, "if": true,
	"then": true, "than": true, "so": true, "as": true, "at": true,
	"by": true, "for": true, "from": true, "in": true, "into": true,
	"of": true, "on": true, "to": true, "with": true, "about": true,
	"up": true, "out": true, "it": true, "its": true, "this": true,
	"that": true, "these": true, "those": true, "what": true, "which": true,
	"who": true, "how": true, "when": true, "where": true, "why": true,
	"you": true, "me": true, "i": true, "my": true, "your": true,
	"we": true, "our": true, "they": true, "their": true, "he": true,
	"she": true, "her": true, "him": true, "us": true, "them": true,
	"there": true, "also": true, "such": true, "any": true, "all": true,
}

// minAnchorLetters is the length at which a plain lowercase word counts as query-specific
const minAnchorLetters = 7

// ExtractAnchors returns query tokens flagged as highly query-specific:
// numbers, tokens containing digits, hyphenated terms, capitalized words past
// the first position, and long words. Results are lowercase, deduplicated, and
// kept in query order, at most limit entries (0 means no limit).
func ExtractAnchors(query string, limit int) []string {
	seen := make(map[string]bool)
	var anchors []string

	for i, field := range strings.Fields(query) {
		w := strings.TrimFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w == "" {
			continue
		}
		lower := strings.ToLower(w)
		if stopwords[lower] || seen[lower] {
			continue
		}

		if isAnchor(w, i) {
			seen[lower] = true
			anchors = append(anchors, lower)
			if limit > 0 && len(anchors) >= limit {
				break
			}
		}
	}

	return anchors
}

func isAnchor(w string, position int) bool {
	letters := 0
	for _, r := range w {
		switch {
		case unicode.IsDigit(r):
			return true
		case r == '-':
			return true
		case unicode.IsLetter(r):
			letters++
		}
	}
	if position > 0 && isCapitalized(w) {
		return true
	}
	return letters >= minAnchorLetters
}

// ContainsAnchor reports whether text mentions any of the anchors
func ContainsAnchor(text string, anchors []string) bool {
	if len(anchors) == 0 {
		return false
	}
	lower := strings.ToLower(text)
	for _, a := range anchors {
		if strings.Contains(lower, a) {
			return true
		}
	}
	return false
}
