// Package selector decides how many evidence sentences each claim keeps.
package selector

import (
	"math"
	"sort"

	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/score"
)

// Selector applies the configured keep mode to scored sentences
type Selector struct {
	config model.SelectionConfig
}

// NewSelector creates a selector. The config is expected to have passed
// model.Config.Validate, so exactly one keep mode is active.
func NewSelector(config model.SelectionConfig) *Selector {
	return &Selector{config: config}
}

// Tier classifies a claim by how far its best blended score clears the
// calibration threshold
func (s *Selector) Tier(top float64) model.RiskTier {
	gap := top - s.config.CalibrationThreshold
	switch {
	case gap < s.config.DeltaWeak:
		return model.TierWeak
	case gap > s.config.DeltaStrong:
		return model.TierStrong
	default:
		return model.TierBase
	}
}

// TargetK returns the retention count for a tier, clamped to [MinSent, MaxSent]
func (s *Selector) TargetK(tier model.RiskTier) int {
	var k int
	switch tier {
	case model.TierWeak:
		k = s.config.TargetK.Weak
	case model.TierStrong:
		k = s.config.TargetK.Strong
	default:
		k = s.config.TargetK.Base
	}
	return s.clamp(k)
}

// Select sorts records by blended score and keeps the head of the list. The
// returned records are the retained ones in score order.
func (s *Selector) Select(claim model.Claim, records []model.SentenceRecord) (model.EvidenceSelection, []model.SentenceRecord) {
	sorted := make([]model.SentenceRecord, len(records))
	copy(sorted, records)
	score.SortByBlended(sorted)

	mode := s.config.Mode()
	selection := model.EvidenceSelection{
		ClaimID:  claim.ID,
		KeepMode: mode,
		Tier:     model.TierWeak,
	}
	if len(sorted) == 0 {
		selection.RetainedSentences = []string{}
		return selection, nil
	}

	selection.Tier = s.Tier(sorted[0].Blended)

	var k int
	switch mode {
	case model.KeepPercentile:
		k = s.clamp(countAbovePercentile(sorted, s.config.Percentile))
	default:
		k = s.TargetK(selection.Tier)
	}
	selection.TargetK = k

	if k > len(sorted) {
		k = len(sorted)
	}
	retained := sorted[:k]
	selection.RetainedSentences = make([]string, len(retained))
	for i, r := range retained {
		selection.RetainedSentences[i] = r.ID
	}

	return selection, retained
}

func (s *Selector) clamp(k int) int {
	if k < s.config.MinSent {
		k = s.config.MinSent
	}
	if s.config.MaxSent > 0 && k > s.config.MaxSent {
		k = s.config.MaxSent
	}
	return k
}

// countAbovePercentile counts records whose blended score is at or above the
// p-th percentile (nearest rank) of all blended scores. sorted is descending.
func countAbovePercentile(sorted []model.SentenceRecord, p float64) int {
	scores := make([]float64, len(sorted))
	for i, r := range sorted {
		scores[i] = r.Blended
	}
	sort.Float64s(scores)

	rank := int(math.Ceil(p*float64(len(scores)))) - 1
	if rank < 0 {
		rank = 0
	}
	cutoff := scores[rank]

	count := 0
	for _, r := range sorted {
		if r.Blended >= cutoff {
			count++
		}
	}
	return count
}
