// Package score computes the per-sentence support signals for a claim.
package score

import (
	"sort"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

// Sentence is one sentence cut from a candidate chunk, before scoring
type Sentence struct {
	ID          string
	ChunkID     string
	Index       int
	Text        string
	AnchorMatch bool
}

// SplitPool cuts every pool chunk into sentences, in pool order
func SplitPool(chunks []model.CandidateChunk, splitter *extract.Splitter) []Sentence {
	var sentences []Sentence
	for _, c := range chunks {
		for i, text := range splitter.Sentences(c.Text) {
			sentences = append(sentences, Sentence{
				ID:          model.SentenceID(c.ID, i),
				ChunkID:     c.ID,
				Index:       i,
				Text:        text,
				AnchorMatch: c.IsAnchorMatch,
			})
		}
	}
	return sentences
}

// Scorer calculates support signals and blended scores
type Scorer struct {
	floors  model.SignalFloors
	weights model.SignalWeights
}

// NewScorer creates a new scorer
func NewScorer(config model.SignalConfig) *Scorer {
	return &Scorer{floors: config.Floors, weights: config.Weights}
}

// ScoreSentences scores every sentence against the claim. The output is in
// input order and depends only on the texts and vectors given. Sentences
// without an entry in vecs, or a nil claimVec, get no cosine signal.
func (s *Scorer) ScoreSentences(claim model.Claim, claimVec []float32, sentences []Sentence, vecs map[string][]float32) []model.SentenceRecord {
	claimTokens := extract.Tokenize(claim.Text)

	records := make([]model.SentenceRecord, 0, len(sentences))
	for _, sent := range sentences {
		sentTokens := extract.Tokenize(sent.Text)

		sig := model.Signals{
			Jaccard: Jaccard(claimTokens, sentTokens),
			Overlap: LCSOverlap(claimTokens, sentTokens),
		}
		if claimVec != nil {
			if cos, ok := Cosine(claimVec, vecs[sent.ID]); ok {
				sig.Cosine = cos
				sig.HasCosine = true
			}
		}

		blended := s.Blend(sig)
		records = append(records, model.SentenceRecord{
			ID:            sent.ID,
			ChunkID:       sent.ChunkID,
			SentenceIndex: sent.Index,
			Text:          sent.Text,
			IsRisky:       extract.IsRisky(sent.Text),
			Signals:       sig,
			Blended:       blended,
			Final:         blended,
			AnchorMatch:   sent.AnchorMatch,
		})
	}

	return records
}

// Blend returns the weighted sum of the signals. Without a cosine signal the
// remaining weights are renormalized to sum to 1.
func (s *Scorer) Blend(sig model.Signals) float64 {
	if sig.HasCosine {
		return s.weights.Jaccard*sig.Jaccard + s.weights.Overlap*sig.Overlap + s.weights.Cosine*sig.Cosine
	}

	total := s.weights.Jaccard + s.weights.Overlap
	if total == 0 {
		return (sig.Jaccard + sig.Overlap) / 2
	}
	return (s.weights.Jaccard*sig.Jaccard + s.weights.Overlap*sig.Overlap) / total
}

// Pass counts how many available signals clear their floors
func (s *Scorer) Pass(sig model.Signals) (passed, available int) {
	available = 2
	if sig.Jaccard >= s.floors.Jaccard {
		passed++
	}
	if sig.Overlap >= s.floors.Overlap {
		passed++
	}
	if sig.HasCosine {
		available++
		if sig.Cosine >= s.floors.Cosine {
			passed++
		}
	}
	return passed, available
}

// SortByScore orders records by final score, highest first. Ties keep pool order.
func SortByScore(records []model.SentenceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Final > records[j].Final
	})
}

// SortByBlended orders records by blended score, highest first. Ties keep pool order.
func SortByBlended(records []model.SentenceRecord) {
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Blended > records[j].Blended
	})
}
