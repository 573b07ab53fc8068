package model

import "time"

// EvaluationRequest is one unit of work handed over by the retrieval subsystem
type EvaluationRequest struct {
	ID      string        `json:"id" yaml:"id"`
	Query   string        `json:"query" yaml:"query"`
	Answer  string        `json:"answer" yaml:"answer"`                       // Draft answer
	Claims  []Claim       `json:"claims,omitempty" yaml:"claims,omitempty"`   // Extracted from Answer when empty
	Vector  []RankedChunk `json:"vector" yaml:"vector"`                       // Vector-similarity ranking
	Lexical []RankedChunk `json:"lexical,omitempty" yaml:"lexical,omitempty"` // BM25-style ranking (computed when empty)
}

// Result is the structured output of one evaluation
type Result struct {
	RunID       string        `json:"run_id"`
	RequestID   string        `json:"request_id,omitempty"`
	Query       string        `json:"query"`
	GeneratedAt time.Time     `json:"generated_at"`
	Anchors     []string      `json:"anchors"`
	Claims      []ClaimResult `json:"claims"` // Same order as the request claims
	Telemetry   Telemetry     `json:"telemetry"`
	Degraded    bool          `json:"degraded"` // At least one claim fell back to deterministic scoring
}

// ClaimResult is the per-claim outcome
type ClaimResult struct {
	Claim             Claim             `json:"claim"`
	Risky             bool              `json:"risky"`
	Tier              RiskTier          `json:"tier"`
	Selection         EvidenceSelection `json:"selection"`
	Binding           ClaimBinding      `json:"binding"`
	Supported         bool              `json:"supported"`
	Rule              string            `json:"rule"` // "2-of-3", "3-of-3", or the reduced risky rule
	Reranked          bool              `json:"reranked"`
	EntailmentChecked bool              `json:"entailment_checked"`
	Degraded          bool              `json:"degraded"`
	Evidence          []SentenceRecord  `json:"evidence,omitempty"` // Retained sentences
	Error             string            `json:"error,omitempty"`
}

// Telemetry aggregates evaluation-level rates
type Telemetry struct {
	Claims         int     `json:"claims"`
	RiskyClaims    int     `json:"risky_claims"`
	RiskyPassRate  float64 `json:"risky_pass_rate"`
	PctReranker    float64 `json:"pct_reranker"`
	PctEntailment  float64 `json:"pct_entailment"`
	PctUnsupported float64 `json:"pct_unsupported"`
	FusionGain     float64 `json:"fusion_gain"`
	AnchorCoverage float64 `json:"anchor_coverage"`
	DegradedClaims int     `json:"degraded_claims"`
	ExternalCalls  int64   `json:"external_calls"`
	CacheHits      int64   `json:"cache_hits"`
}

// InferenceRecord describes how one external call was served
type InferenceRecord struct {
	PromptHash   string `json:"prompt_hash"`
	AttemptCount int    `json:"attempt_count"`
	CacheHit     bool   `json:"cache_hit"`
	LatencyMS    int64  `json:"latency_ms"`
	State        string `json:"state"`
}
