package llm

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
)

// Judge call kinds, used in cache keys and metrics
const (
	KindRelevance  = "relevance"
	KindEntailment = "entailment"
	KindEmbedding  = "embedding"
)

// JudgeSystemPrompt is the default system instruction for judge calls
const JudgeSystemPrompt = "You are a strict evidence judge. Reply with a single number between 0 and 1 and nothing else."

// RelevancePrompt asks how well a sentence supports a claim
func RelevancePrompt(claim, evidence string) string {
	return fmt.Sprintf("Claim:\n%s\n\nEvidence:\n%s\n\nHow directly does the evidence support the claim? Score (0-1):", claim, evidence)
}

// EntailmentPrompt asks for the probability that premise entails hypothesis
func EntailmentPrompt(premise, hypothesis string) string {
	return fmt.Sprintf("Premise:\n%s\n\nHypothesis:\n%s\n\nProbability that the premise entails the hypothesis (0-1):", premise, hypothesis)
}

var (
	scorePattern = regexp.MustCompile(`[-+]?[0-9]*\.?[0-9]+`)
	rangePattern = regexp.MustCompile(`\(\s*0(?:\.0)?\s*(?:-|to)\s*1(?:\.0)?\s*\)`)
)

var labelScores = map[string]float64{
	"entailment":    1,
	"entailed":      1,
	"supported":     1,
	"yes":           1,
	"true":          1,
	"neutral":       0.5,
	"contradiction": 0,
	"unsupported":   0,
	"no":            0,
	"false":         0,
}

// ParseScore reads a score in [0,1] from a judge reply. An echoed "(0-1)"
// range is ignored and the last number wins, so "Score (0-1): 0.8" is 0.8.
// Percentages are scaled down, and a bare NLI label maps to 1, 0.5 or 0.
// Anything else is ErrMalformedResponse.
func ParseScore(text string) (float64, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return 0, fmt.Errorf("%w: empty reply", ErrMalformedResponse)
	}

	var match string
	if all := scorePattern.FindAllString(rangePattern.ReplaceAllString(trimmed, " "), -1); len(all) > 0 {
		match = all[len(all)-1]
	}
	if match == "" {
		label := strings.ToLower(strings.Trim(trimmed, " .!\"'"))
		if v, ok := labelScores[label]; ok {
			return v, nil
		}
		return 0, fmt.Errorf("%w: no numeric score in %q", ErrMalformedResponse, trimmed)
	}

	val, err := strconv.ParseFloat(match, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: invalid score %q", ErrMalformedResponse, match)
	}
	if val < 0 {
		return 0, fmt.Errorf("%w: score out of range: %v", ErrMalformedResponse, val)
	}
	if val > 1 {
		if val <= 100 && strings.Contains(trimmed, "%") {
			return val / 100, nil
		}
		return 0, fmt.Errorf("%w: score out of range: %v", ErrMalformedResponse, val)
	}
	return val, nil
}
