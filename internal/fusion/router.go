// Package fusion merges vector and lexical candidate rankings into one pool.
package fusion

import (
	"sort"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

// Source labels the ranking a chunk came from
const (
	SourceVector  = "vector"
	SourceLexical = "lexical"
)

// Config controls the router
type Config struct {
	RRFK               int
	AnchorBoost        float64
	NonAnchorPenalty   float64
	PerDocCap          int
	PoolSize           int
	LongTailSlots      int
	LongTailMinNovelty float64
}

// ConfigFromModel converts model.FusionConfig to fusion.Config
func ConfigFromModel(c model.FusionConfig) Config {
	return Config{
		RRFK:               c.RRFK,
		AnchorBoost:        c.AnchorBoost,
		NonAnchorPenalty:   c.NonAnchorPenalty,
		PerDocCap:          c.PerDocCap,
		PoolSize:           c.PoolSize,
		LongTailSlots:      c.LongTailSlots,
		LongTailMinNovelty: c.LongTailMinNovelty,
	}
}

// Pool is the fused candidate pool together with fusion diagnostics
type Pool struct {
	Chunks []model.CandidateChunk

	// FusionGain is the share of pool chunks contributed only by the lexical list
	FusionGain float64

	// AnchorCoverage is the share of anchors mentioned by at least one pool chunk
	AnchorCoverage float64
}

// Router performs reciprocal rank fusion with anchor biasing
type Router struct {
	config Config
}

// NewRouter creates a router, filling zero values with defaults
func NewRouter(config Config) *Router {
	if config.RRFK <= 0 {
		config.RRFK = 60
	}
	if config.AnchorBoost <= 0 {
		config.AnchorBoost = 1
	}
	if config.NonAnchorPenalty <= 0 {
		config.NonAnchorPenalty = 1
	}
	if config.PerDocCap <= 0 {
		config.PerDocCap = 3
	}
	if config.PoolSize <= 0 {
		config.PoolSize = 20
	}
	return &Router{config: config}
}

type aggregate struct {
	chunk     model.CandidateChunk
	firstRank int
	tokens    map[string]struct{}
}

// Fuse merges the two rankings. Either list may be empty, in which case the
// pool is ranked by the other one alone.
func (r *Router) Fuse(vector, lexical []model.RankedChunk, anchors []string) Pool {
	items := make(map[string]*aggregate)
	var ordered []*aggregate

	add := func(source string, list []model.RankedChunk) {
		for idx, rc := range list {
			rank := idx + 1
			contribution := 1.0 / float64(r.config.RRFK+rank)

			agg, exists := items[rc.ID]
			if !exists {
				agg = &aggregate{
					chunk: model.CandidateChunk{
						ID:               rc.ID,
						SourceDocumentID: rc.SourceDocumentID,
						Text:             rc.Text,
					},
					firstRank: rank,
				}
				items[rc.ID] = agg
				ordered = append(ordered, agg)
			} else {
				if agg.chunk.Text == "" {
					agg.chunk.Text = rc.Text
				}
				if agg.chunk.SourceDocumentID == "" {
					agg.chunk.SourceDocumentID = rc.SourceDocumentID
				}
				if rank < agg.firstRank {
					agg.firstRank = rank
				}
			}

			switch source {
			case SourceVector:
				if agg.chunk.VectorRank != 0 {
					continue // duplicate id within one list counts once
				}
				agg.chunk.VectorRank = rank
				agg.chunk.VectorScore = rc.Score
			case SourceLexical:
				if agg.chunk.LexicalRank != 0 {
					continue
				}
				agg.chunk.LexicalRank = rank
				agg.chunk.LexicalScore = rc.Score
			}
			agg.chunk.FusionScore += contribution
		}
	}

	add(SourceVector, vector)
	add(SourceLexical, lexical)

	for _, agg := range ordered {
		if len(anchors) == 0 {
			continue
		}
		if extract.ContainsAnchor(agg.chunk.Text, anchors) {
			agg.chunk.IsAnchorMatch = true
			agg.chunk.FusionScore *= r.config.AnchorBoost
		} else {
			agg.chunk.FusionScore *= r.config.NonAnchorPenalty
		}
	}

	sort.SliceStable(ordered, func(i, j int) bool {
		a, b := ordered[i], ordered[j]
		if a.chunk.FusionScore != b.chunk.FusionScore {
			return a.chunk.FusionScore > b.chunk.FusionScore
		}
		if a.firstRank != b.firstRank {
			return a.firstRank < b.firstRank
		}
		return a.chunk.ID < b.chunk.ID
	})

	selected, leftovers := r.capPerDocument(ordered)
	selected = r.reserveLongTail(selected, leftovers)

	pool := Pool{Chunks: make([]model.CandidateChunk, len(selected))}
	lexicalOnly := 0
	for i, agg := range selected {
		pool.Chunks[i] = agg.chunk
		if agg.chunk.VectorRank == 0 && agg.chunk.LexicalRank > 0 {
			lexicalOnly++
		}
	}
	if len(selected) > 0 {
		pool.FusionGain = float64(lexicalOnly) / float64(len(selected))
	}
	pool.AnchorCoverage = anchorCoverage(pool.Chunks, anchors)

	return pool
}

// capPerDocument walks the ranking, admitting at most PerDocCap chunks per
// source document until the pool is full. Everything not admitted is returned
// as leftovers in rank order.
func (r *Router) capPerDocument(ranked []*aggregate) (selected, leftovers []*aggregate) {
	perDoc := make(map[string]int)
	for _, agg := range ranked {
		doc := agg.chunk.SourceDocumentID
		if len(selected) >= r.config.PoolSize || (doc != "" && perDoc[doc] >= r.config.PerDocCap) {
			leftovers = append(leftovers, agg)
			continue
		}
		perDoc[doc]++
		selected = append(selected, agg)
	}
	return selected, leftovers
}

// reserveLongTail guarantees LongTailSlots chunks from outside the top-ranked
// cluster. The most novel leftover (lowest token overlap with the pool)
// replaces the lowest-ranked pool entry, or is appended if there is room.
func (r *Router) reserveLongTail(selected, leftovers []*aggregate) []*aggregate {
	if r.config.LongTailSlots <= 0 || len(leftovers) == 0 || len(selected) == 0 {
		return selected
	}

	for _, agg := range selected {
		agg.tokens = extract.TokenSet(agg.chunk.Text)
	}

	perDoc := make(map[string]int)
	for _, agg := range selected {
		perDoc[agg.chunk.SourceDocumentID]++
	}

	for slot := 0; slot < r.config.LongTailSlots && len(leftovers) > 0; slot++ {
		bestIdx := -1
		bestNovelty := -1.0
		for i, cand := range leftovers {
			doc := cand.chunk.SourceDocumentID
			if doc != "" && perDoc[doc] >= r.config.PerDocCap {
				continue
			}
			if cand.tokens == nil {
				cand.tokens = extract.TokenSet(cand.chunk.Text)
			}
			novelty := 1 - maxJaccard(cand.tokens, selected)
			if novelty > bestNovelty {
				bestNovelty = novelty
				bestIdx = i
			}
		}
		if bestIdx < 0 || bestNovelty < r.config.LongTailMinNovelty {
			break
		}

		chosen := leftovers[bestIdx]
		chosen.chunk.LongTail = true
		leftovers = append(leftovers[:bestIdx], leftovers[bestIdx+1:]...)

		if len(selected) < r.config.PoolSize {
			selected = append(selected, chosen)
		} else {
			// Replace the lowest-ranked entry that is not itself a long-tail pick
			for i := len(selected) - 1; i >= 0; i-- {
				if !selected[i].chunk.LongTail {
					perDoc[selected[i].chunk.SourceDocumentID]--
					selected[i] = chosen
					break
				}
			}
		}
		perDoc[chosen.chunk.SourceDocumentID]++
	}

	return selected
}

func maxJaccard(tokens map[string]struct{}, pool []*aggregate) float64 {
	best := 0.0
	for _, agg := range pool {
		if j := jaccard(tokens, agg.tokens); j > best {
			best = j
		}
	}
	return best
}

func jaccard(a, b map[string]struct{}) float64 {
	if len(a) == 0 && len(b) == 0 {
		return 0
	}
	inter := 0
	for t := range a {
		if _, ok := b[t]; ok {
			inter++
		}
	}
	union := len(a) + len(b) - inter
	if union == 0 {
		return 0
	}
	return float64(inter) / float64(union)
}

func anchorCoverage(chunks []model.CandidateChunk, anchors []string) float64 {
	if len(anchors) == 0 {
		return 0
	}
	covered := 0
	for _, a := range anchors {
		for _, c := range chunks {
			if extract.ContainsAnchor(c.Text, []string{a}) {
				covered++
				break
			}
		}
	}
	return float64(covered) / float64(len(anchors))
}
