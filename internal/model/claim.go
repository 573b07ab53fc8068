package model

// Claim represents a factual assertion extracted from the draft answer
type Claim struct {
	ID       string `json:"id" yaml:"id"`                                   // Stable identifier within a request (e.g., "c1")
	Text     string `json:"text" yaml:"text"`                               // The claim text, never modified downstream
	IsStrong bool   `json:"is_strong,omitempty" yaml:"is_strong,omitempty"` // High model confidence for this claim
}

// RiskTier classifies how much evidence a claim can safely admit
type RiskTier string

const (
	TierWeak   RiskTier = "weak"   // Top score barely clears calibration, keep evidence tight
	TierBase   RiskTier = "base"   // Ordinary claim
	TierStrong RiskTier = "strong" // Top score far above calibration, admit more evidence
)

// KeepMode names the evidence cutoff policy in effect
type KeepMode string

const (
	KeepTargetK    KeepMode = "target_k"   // Tier-driven top-K cutoff
	KeepPercentile KeepMode = "percentile" // Fixed percentile cutoff over blended scores
)

// ClaimBinding attaches a claim to its bound evidence sentences
type ClaimBinding struct {
	ClaimID          string   `json:"claim_id"`
	BoundSentenceIDs []string `json:"bound_sentence_ids"`
	Confidence       float64  `json:"confidence"` // Always within [0,1]
	Dropped          bool     `json:"dropped"`    // Soft-drop flag, the claim text stays in the output

	dropToggled bool
}

// Drop marks the binding as unsupported. The flag may be toggled only once;
// later calls are no-ops and report false.
func (b *ClaimBinding) Drop() bool {
	if b.dropToggled {
		return false
	}
	b.dropToggled = true
	b.Dropped = true
	return true
}
