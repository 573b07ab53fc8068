package extract

import (
	"fmt"
	"strings"

	"github.com/ppiankov/entail/internal/model"
)

// ClaimExtractor splits a draft answer into claims, one per sentence
type ClaimExtractor struct {
	splitter *Splitter
}

// NewClaimExtractor creates a new claim extractor
func NewClaimExtractor(splitter *Splitter) *ClaimExtractor {
	if splitter == nil {
		splitter = NewSplitter(1, 0)
	}
	return &ClaimExtractor{splitter: splitter}
}

// Extract extracts claims from the draft answer. Claim text is kept verbatim.
func (e *ClaimExtractor) Extract(answer string) []model.Claim {
	sentences := e.splitter.Sentences(answer)

	claims := make([]model.Claim, 0, len(sentences))
	seen := make(map[string]bool, len(sentences))
	for _, sentence := range sentences {
		key := strings.ToLower(strings.TrimSpace(sentence))
		if seen[key] {
			continue
		}
		seen[key] = true
		claims = append(claims, model.Claim{
			ID:   fmt.Sprintf("c%d", len(claims)+1),
			Text: sentence,
		})
	}

	return claims
}

// EnsureIDs assigns ids to claims supplied without one
func EnsureIDs(claims []model.Claim) []model.Claim {
	out := make([]model.Claim, len(claims))
	for i, c := range claims {
		if c.ID == "" {
			c.ID = fmt.Sprintf("c%d", i+1)
		}
		out[i] = c
	}
	return out
}
