package model

import "fmt"

// RankedChunk is a retrieved chunk as delivered by one ranking source (vector or lexical)
type RankedChunk struct {
	ID               string  `json:"id" yaml:"id"`
	SourceDocumentID string  `json:"source_document_id" yaml:"source_document_id"`
	Text             string  `json:"text,omitempty" yaml:"text,omitempty"`
	Score            float64 `json:"score" yaml:"score"`
}

// CandidateChunk is a deduplicated member of the fused candidate pool
type CandidateChunk struct {
	ID               string  `json:"id"`
	SourceDocumentID string  `json:"source_document_id"`
	Text             string  `json:"text"`
	VectorScore      float64 `json:"vector_score"`
	LexicalScore     float64 `json:"lexical_score"`
	VectorRank       int     `json:"vector_rank,omitempty"`  // 1-based, 0 when absent from the vector list
	LexicalRank      int     `json:"lexical_rank,omitempty"` // 1-based, 0 when absent from the lexical list
	IsAnchorMatch    bool    `json:"is_anchor_match"`
	FusionScore      float64 `json:"fusion_score"`
	LongTail         bool    `json:"long_tail,omitempty"` // Kept by the long-tail slot rather than by rank
}

// Signals holds the three normalized support signals for a (claim, sentence) pair
type Signals struct {
	Jaccard   float64 `json:"jaccard"`
	Overlap   float64 `json:"overlap"`
	Cosine    float64 `json:"cosine"`
	HasCosine bool    `json:"has_cosine"` // False when no embedding was available
}

// Max returns the largest available signal
func (s Signals) Max() float64 {
	m := s.Jaccard
	if s.Overlap > m {
		m = s.Overlap
	}
	if s.HasCosine && s.Cosine > m {
		m = s.Cosine
	}
	return m
}

// SentenceRecord is one sentence of a candidate chunk scored against a claim
type SentenceRecord struct {
	ID            string  `json:"id"`
	ChunkID       string  `json:"chunk_id"`
	SentenceIndex int     `json:"sentence_index"`
	Text          string  `json:"text"`
	IsRisky       bool    `json:"is_risky"`
	Signals       Signals `json:"signals"`
	Blended       float64 `json:"blended"`                // Weighted sum of signals
	RerankScore   float64 `json:"rerank_score,omitempty"` // Judge score when reranked
	Final         float64 `json:"final"`                  // Blended, nudged by the reranker when enabled
	AnchorMatch   bool    `json:"anchor_match,omitempty"` // Inherited from the parent chunk
}

// SentenceID builds the stable id of a sentence within a chunk
func SentenceID(chunkID string, index int) string {
	return fmt.Sprintf("%s#%d", chunkID, index)
}

// EvidenceSelection records which sentences were retained for a claim
type EvidenceSelection struct {
	ClaimID           string   `json:"claim_id"`
	RetainedSentences []string `json:"retained_sentences"`
	TargetK           int      `json:"target_k"`
	KeepMode          KeepMode `json:"keep_mode"`
	Tier              RiskTier `json:"tier"`
}
