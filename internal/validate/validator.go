// Package validate decides whether retained evidence supports a claim.
package validate

import (
	"strings"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/score"
)

// Support rules
const (
	RuleTwoOfThree   = "2-of-3"
	RuleThreeOfThree = "3-of-3"
	// RuleRiskyReduced marks a risky claim that passed on every available
	// signal while one signal (usually cosine) was missing
	RuleRiskyReduced = "3-of-3 (2-of-2, missing signal)"
)

// Verdict is the outcome of validating one claim
type Verdict struct {
	Supported  bool
	PassingIDs []string
	Rule       string
	Reason     string // Why the claim is unsupported, empty when supported
}

// Validator applies the risk-aware signal agreement rule
type Validator struct {
	scorer           *score.Scorer
	minRiskyEvidence int
}

// NewValidator creates a new validator
func NewValidator(scorer *score.Scorer, minRiskyEvidence int) *Validator {
	if minRiskyEvidence < 1 {
		minRiskyEvidence = 1
	}
	return &Validator{scorer: scorer, minRiskyEvidence: minRiskyEvidence}
}

// IsRiskyClaim reports whether the claim carries numbers or named entities
func IsRiskyClaim(claim model.Claim) bool {
	return extract.IsRisky(claim.Text)
}

// Rule returns the agreement rule for a claim
func Rule(risky bool) string {
	if risky {
		return RuleThreeOfThree
	}
	return RuleTwoOfThree
}

// SentencePasses reports whether a sentence clears the agreement rule. When a
// signal is missing the requirement drops to the available count, but a risky
// claim always needs at least two signals to agree.
func (v *Validator) SentencePasses(sig model.Signals, risky bool) bool {
	ok, _ := v.sentencePasses(sig, risky)
	return ok
}

// sentencePasses also reports whether a risky sentence passed on fewer than
// three signals, so the weaker rule can be surfaced in the verdict
func (v *Validator) sentencePasses(sig model.Signals, risky bool) (bool, bool) {
	passed, available := v.scorer.Pass(sig)

	required := 2
	if risky {
		required = 3
		if available < 2 {
			return false, false
		}
	}
	reduced := false
	if available < required {
		required = available
		reduced = risky
	}
	return passed >= required, reduced
}

// Validate checks the retained sentences of a claim. A risky claim supported
// by any sentence that lacked a signal reports RuleRiskyReduced.
func (v *Validator) Validate(claim model.Claim, risky bool, retained []model.SentenceRecord) Verdict {
	verdict := Verdict{Rule: Rule(risky), PassingIDs: []string{}}

	var passing []model.SentenceRecord
	reduced := false
	for _, r := range retained {
		ok, weak := v.sentencePasses(r.Signals, risky)
		if ok {
			passing = append(passing, r)
			verdict.PassingIDs = append(verdict.PassingIDs, r.ID)
			reduced = reduced || weak
		}
	}

	if len(passing) == 0 {
		verdict.Reason = "no sentence cleared " + verdict.Rule
		return verdict
	}
	if reduced {
		verdict.Rule = RuleRiskyReduced
	}

	if risky {
		if reason := v.checkMultiEvidence(claim, passing); reason != "" {
			verdict.Reason = reason
			return verdict
		}
	}

	verdict.Supported = true
	return verdict
}

// checkMultiEvidence requires that numbers and entities named by the claim
// appear in enough passing sentences
func (v *Validator) checkMultiEvidence(claim model.Claim, passing []model.SentenceRecord) string {
	if numbers := extract.Numbers(claim.Text); len(numbers) > 0 {
		count := 0
		for _, r := range passing {
			if sharesNumber(numbers, extract.Numbers(r.Text)) {
				count++
			}
		}
		if count < v.minRiskyEvidence {
			return "too few passing sentences contain the claimed number"
		}
	}

	if entities := extract.Entities(claim.Text); len(entities) > 0 {
		count := 0
		for _, r := range passing {
			if mentionsEntity(entities, r.Text) {
				count++
			}
		}
		if count < v.minRiskyEvidence {
			return "too few passing sentences name the claimed entity"
		}
	}

	return ""
}

func sharesNumber(claimNumbers, sentenceNumbers []string) bool {
	for _, a := range claimNumbers {
		for _, b := range sentenceNumbers {
			if a == b {
				return true
			}
		}
	}
	return false
}

func mentionsEntity(entities []string, text string) bool {
	lower := strings.ToLower(text)
	for _, e := range entities {
		if strings.Contains(lower, strings.ToLower(e)) {
			return true
		}
	}
	return false
}

// Records returns the records whose ids are listed, in the given order
func Records(records []model.SentenceRecord, ids []string) []model.SentenceRecord {
	byID := make(map[string]model.SentenceRecord, len(records))
	for _, r := range records {
		byID[r.ID] = r
	}
	out := make([]model.SentenceRecord, 0, len(ids))
	for _, id := range ids {
		if r, ok := byID[id]; ok {
			out = append(out, r)
		}
	}
	return out
}
