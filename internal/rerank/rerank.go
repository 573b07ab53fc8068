// Package rerank nudges evidence scores with an external judge and gates
// borderline sentences on an entailment check.
package rerank

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"

	"github.com/ppiankov/entail/internal/llm"
	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/score"
)

// Judge scores (claim, evidence) pairs. Both scores are in [0,1]. A response
// that cannot be read as a score is reported as llm.ErrMalformedResponse.
type Judge interface {
	// Relevance returns how well the evidence supports the claim
	Relevance(ctx context.Context, claim, evidence string) (float64, error)

	// Entailment returns the probability that premise entails hypothesis
	Entailment(ctx context.Context, premise, hypothesis string) (float64, error)
}

// Reranker blends judge scores into the top of the evidence list
type Reranker struct {
	judge  Judge
	topN   int
	weight float64
	logger *slog.Logger
}

// NewReranker creates a new reranker
func NewReranker(judge Judge, config model.RerankConfig, logger *slog.Logger) *Reranker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Reranker{
		judge:  judge,
		topN:   config.TopN,
		weight: math.Min(math.Max(config.Weight, 0), 0.2),
		logger: logger,
	}
}

// Rerank scores the top-N records with the judge and sets
// final = (1-w)*blended + w*rerank. Records outside the top N, and records
// whose judge response was malformed, keep final = blended. The result is
// sorted by final score. Any other judge error aborts the stage: the input
// is returned unchanged together with the error.
func (r *Reranker) Rerank(ctx context.Context, claim model.Claim, records []model.SentenceRecord) ([]model.SentenceRecord, error) {
	out := make([]model.SentenceRecord, len(records))
	copy(out, records)
	score.SortByBlended(out)

	n := min(r.topN, len(out))
	for i := 0; i < n; i++ {
		rel, err := r.judge.Relevance(ctx, claim.Text, out[i].Text)
		if errors.Is(err, llm.ErrMalformedResponse) {
			r.logger.Debug("rerank score missing", "claim", claim.ID, "sentence", out[i].ID, "error", err)
			continue
		}
		if err != nil {
			return records, fmt.Errorf("rerank %s: %w", claim.ID, err)
		}
		out[i].RerankScore = rel
		out[i].Final = (1-r.weight)*out[i].Blended + r.weight*rel
	}

	score.SortByScore(out)
	return out, nil
}

// Gate applies the entailment check to borderline sentences
type Gate struct {
	judge     Judge
	threshold float64
	band      float64
	minProb   float64
	logger    *slog.Logger
}

// NewGate creates a new entailment gate
func NewGate(judge Judge, config model.RerankConfig, logger *slog.Logger) *Gate {
	if logger == nil {
		logger = slog.Default()
	}
	return &Gate{
		judge:     judge,
		threshold: config.SupportThreshold,
		band:      config.BandWidth,
		minProb:   config.EntailmentThreshold,
		logger:    logger,
	}
}

// InBand reports whether a score falls inside the borderline band
func (g *Gate) InBand(final float64) bool {
	return math.Abs(final-g.threshold) <= g.band+1e-12
}

// Filter returns the passing sentences that survive the gate and how many
// were checked. A borderline sentence stays only if the evidence entails the
// claim with probability at least EntailmentThreshold. A malformed judge
// response leaves the sentence as it was. Any other error aborts the gate and
// returns the input unchanged.
func (g *Gate) Filter(ctx context.Context, claim model.Claim, passing []model.SentenceRecord) ([]model.SentenceRecord, int, error) {
	kept := make([]model.SentenceRecord, 0, len(passing))
	checked := 0

	for _, rec := range passing {
		if !g.InBand(rec.Final) {
			kept = append(kept, rec)
			continue
		}

		prob, err := g.judge.Entailment(ctx, rec.Text, claim.Text)
		if errors.Is(err, llm.ErrMalformedResponse) {
			g.logger.Debug("entailment score missing", "claim", claim.ID, "sentence", rec.ID, "error", err)
			kept = append(kept, rec)
			continue
		}
		if err != nil {
			return passing, checked, fmt.Errorf("entailment %s: %w", claim.ID, err)
		}

		checked++
		if prob >= g.minProb {
			kept = append(kept, rec)
		} else {
			g.logger.Debug("sentence failed entailment", "claim", claim.ID, "sentence", rec.ID, "prob", prob)
		}
	}

	return kept, checked, nil
}
