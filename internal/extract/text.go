package extract

import (
	"strings"
	"unicode"

	"golang.org/x/net/html"
)

// Splitter turns chunk or answer text into sentences
type Splitter struct {
	minChars int
	maxChars int
}

// NewSplitter creates a sentence splitter with length bounds (in bytes)
func NewSplitter(minChars, maxChars int) *Splitter {
	if minChars <= 0 {
		minChars = 1
	}
	if maxChars <= 0 {
		maxChars = 600
	}
	return &Splitter{minChars: minChars, maxChars: maxChars}
}

// Sentences returns the sentences of text. Markup is stripped first so that
// chunks stored as HTML yield only their visible text.
func (s *Splitter) Sentences(text string) []string {
	if strings.ContainsRune(text, '<') {
		if doc, err := html.Parse(strings.NewReader(text)); err == nil {
			text = extractVisibleText(doc)
		}
	}
	return splitSentences(text, s.minChars, s.maxChars)
}

// extractVisibleText extracts text nodes from HTML, skipping scripts/styles
func extractVisibleText(n *html.Node) string {
	var buf strings.Builder

	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.ElementNode {
			switch n.Data {
			case "script", "style", "noscript", "iframe", "template":
				return
			}
		}

		if n.Type == html.TextNode {
			text := strings.TrimSpace(n.Data)
			if text != "" {
				buf.WriteString(text)
				buf.WriteString(" ")
			}
		}

		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}

	walk(n)
	return strings.TrimSpace(buf.String())
}

// splitSentences splits text into sentences on terminal punctuation followed
// by whitespace. Sentences outside [minLen, maxLen] are discarded.
func splitSentences(text string, minLen, maxLen int) []string {
	text = strings.Join(strings.Fields(text), " ")

	var sentences []string
	var current strings.Builder

	emit := func() {
		sentence := strings.TrimSpace(current.String())
		current.Reset()
		if len(sentence) >= minLen && len(sentence) <= maxLen {
			sentences = append(sentences, sentence)
		}
	}

	for i, r := range text {
		current.WriteRune(r)

		if r == '.' || r == '!' || r == '?' {
			// Only split when followed by a space, so decimals like 3.5 survive
			if i+1 < len(text) && text[i+1] == ' ' && !isAbbreviation(current.String()) {
				emit()
			}
		}
	}

	if current.Len() > 0 {
		emit()
	}

	return sentences
}

var abbreviations = map[string]bool{
	"e.g.": true, "i.e.": true, "etc.": true, "vs.": true, "mr.": true,
	"mrs.": true, "dr.": true, "st.": true, "no.": true, "fig.": true,
}

// isAbbreviation reports whether the buffer ends in a known abbreviation
func isAbbreviation(buf string) bool {
	idx := strings.LastIndexByte(buf, ' ')
	last := strings.ToLower(buf[idx+1:])
	return abbreviations[last]
}

// Words splits text into raw word tokens, trimming surrounding punctuation
func Words(text string) []string {
	fields := strings.Fields(text)
	words := make([]string, 0, len(fields))
	for _, f := range fields {
		w := strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if w != "" {
			words = append(words, w)
		}
	}
	return words
}

// Tokenize returns lowercase content tokens in order. Stopwords are removed
// unless that would leave nothing.
func Tokenize(text string) []string {
	raw := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})

	content := make([]string, 0, len(raw))
	for _, t := range raw {
		if !stopwords[t] {
			content = append(content, t)
		}
	}
	if len(content) == 0 {
		return raw
	}
	return content
}

// TokenSet returns the distinct tokens of text
func TokenSet(text string) map[string]struct{} {
	tokens := Tokenize(text)
	set := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		set[t] = struct{}{}
	}
	return set
}
