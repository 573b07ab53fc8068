package fusion

import (
	"math"
	"sort"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

// BM25 parameters
const (
	bm25K1 = 1.2
	bm25B  = 0.75
)

// RankBM25 builds a lexical ranking of chunks against the query. It is used
// when the retrieval subsystem delivers only a vector list. Chunks with a zero
// score are left out, as a lexical index would not return them.
func RankBM25(query string, chunks []model.RankedChunk) []model.RankedChunk {
	terms := extract.TokenSet(query)
	if len(terms) == 0 || len(chunks) == 0 {
		return nil
	}

	docs := make([][]string, len(chunks))
	df := make(map[string]int)
	totalLen := 0
	for i, c := range chunks {
		docs[i] = extract.Tokenize(c.Text)
		totalLen += len(docs[i])
		seen := make(map[string]bool)
		for _, t := range docs[i] {
			if _, ok := terms[t]; ok && !seen[t] {
				seen[t] = true
				df[t]++
			}
		}
	}
	avgLen := float64(totalLen) / float64(len(chunks))
	if avgLen == 0 {
		return nil
	}
	n := float64(len(chunks))

	ranked := make([]model.RankedChunk, 0, len(chunks))
	for i, c := range chunks {
		tf := make(map[string]int)
		for _, t := range docs[i] {
			tf[t]++
		}

		score := 0.0
		docLen := float64(len(docs[i]))
		for term := range terms {
			f := float64(tf[term])
			if f == 0 {
				continue
			}
			idf := math.Log(1 + (n-float64(df[term])+0.5)/(float64(df[term])+0.5))
			score += idf * (f * (bm25K1 + 1)) / (f + bm25K1*(1-bm25B+bm25B*docLen/avgLen))
		}
		if score <= 0 {
			continue
		}

		rc := c
		rc.Score = score
		ranked = append(ranked, rc)
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})
	return ranked
}
