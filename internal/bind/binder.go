// Package bind attaches claims to their strongest evidence sentences.
package bind

import (
	"sort"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

// Binder finalizes claim to evidence mappings
type Binder struct {
	config model.BindingConfig
}

// NewBinder creates a new binder
func NewBinder(config model.BindingConfig) *Binder {
	if config.ClaimTopK < 1 {
		config.ClaimTopK = 3
	}
	if config.ClaimTopKStrong < config.ClaimTopK {
		config.ClaimTopKStrong = config.ClaimTopK
	}
	return &Binder{config: config}
}

type scored struct {
	record     model.SentenceRecord
	confidence float64
}

// TopK returns how many sentences a claim binds
func (b *Binder) TopK(claim model.Claim, tier model.RiskTier) int {
	if claim.IsStrong || tier == model.TierStrong {
		return b.config.ClaimTopKStrong
	}
	return b.config.ClaimTopK
}

// Bind picks the evidence for a claim. passing are the sentences that cleared
// validation and retained is the full retained set. When the bound text is
// shorter than MinEvidenceWords the binding widens, first with further passing
// sentences and then with the rest of the retained set. A claim that still
// falls short, or has no passing sentence, is soft-dropped.
func (b *Binder) Bind(claim model.Claim, tier model.RiskTier, passing, retained []model.SentenceRecord, anchorsEmpty bool) model.ClaimBinding {
	binding := model.ClaimBinding{ClaimID: claim.ID, BoundSentenceIDs: []string{}}
	if len(passing) == 0 {
		binding.Drop()
		return binding
	}

	topk := b.TopK(claim, tier)

	spans := make(map[string]int)
	for _, r := range passing {
		spans[r.ChunkID]++
	}

	ranked := b.rank(passing, spans, topk, anchorsEmpty)
	isPassing := make(map[string]bool, len(passing))
	for _, r := range passing {
		isPassing[r.ID] = true
	}
	var rest []model.SentenceRecord
	for _, r := range retained {
		if !isPassing[r.ID] {
			rest = append(rest, r)
		}
	}
	cut := min(topk, len(ranked))
	bound := append([]scored(nil), ranked[:cut]...)
	widening := append(ranked[cut:], b.rank(rest, spans, topk, anchorsEmpty)...)

	words := 0
	for _, s := range bound {
		words += len(extract.Words(s.record.Text))
	}
	for _, s := range widening {
		if words >= b.config.MinEvidenceWords {
			break
		}
		bound = append(bound, s)
		words += len(extract.Words(s.record.Text))
	}

	total := 0.0
	for _, s := range bound {
		binding.BoundSentenceIDs = append(binding.BoundSentenceIDs, s.record.ID)
		total += s.confidence
	}
	binding.Confidence = clamp01(total / float64(len(bound)))

	if words < b.config.MinEvidenceWords {
		binding.Drop()
	}

	return binding
}

// rank orders records by binding confidence, highest first
func (b *Binder) rank(records []model.SentenceRecord, spans map[string]int, topk int, anchorsEmpty bool) []scored {
	out := make([]scored, len(records))
	for i, r := range records {
		out[i] = scored{record: r, confidence: b.Confidence(r, spans[r.ChunkID], topk, anchorsEmpty)}
	}
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].confidence != out[j].confidence {
			return out[i].confidence > out[j].confidence
		}
		return out[i].record.Final > out[j].record.Final
	})
	return out
}

// Confidence scores one sentence: its strongest signal, discounted when its
// chunk misses every anchor, scaled by how many passing spans its chunk holds
func (b *Binder) Confidence(r model.SentenceRecord, spanCount, topk int, anchorsEmpty bool) float64 {
	if spanCount < 1 {
		spanCount = 1
	}
	anchor := 1.0
	if !anchorsEmpty && !r.AnchorMatch {
		anchor = b.config.AnchorMissFactor
	}
	span := float64(min(spanCount, topk)) / float64(topk)
	return clamp01(r.Signals.Max() * anchor * span)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
