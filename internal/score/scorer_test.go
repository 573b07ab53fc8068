package score

import (
	"math"
	"testing"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

func defaultScorer() *Scorer {
	return NewScorer(model.DefaultConfig().Signals)
}

func TestJaccard(t *testing.T) {
	tests := []struct {
		a, b []string
		want float64
	}{
		{[]string{"a", "b"}, []string{"a", "b"}, 1},
		{[]string{"a", "b"}, []string{"c"}, 0},
		{[]string{"a", "b", "c", "d"}, []string{"c", "d"}, 0.5},
		{nil, []string{"a"}, 0},
	}

	for _, tt := range tests {
		if got := Jaccard(tt.a, tt.b); math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("Jaccard(%v, %v) = %v, want %v", tt.a, tt.b, got, tt.want)
		}
	}
}

func TestLCSOverlap_OrderMatters(t *testing.T) {
	claim := []string{"system", "uses", "asynchronous", "processing"}

	inOrder := LCSOverlap(claim, []string{"system", "uses", "asynchronous", "processing", "heavily"})
	if inOrder != 1 {
		t.Errorf("Expected full overlap for in-order sentence, got %v", inOrder)
	}

	reversed := LCSOverlap(claim, []string{"processing", "asynchronous"})
	if reversed != 0.25 {
		t.Errorf("Expected 0.25 for reversed tokens, got %v", reversed)
	}
}

func TestCosine(t *testing.T) {
	if got, ok := Cosine([]float32{1, 0}, []float32{1, 0}); !ok || math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected identical vectors to score 1, got %v (ok=%v)", got, ok)
	}
	if got, ok := Cosine([]float32{1, 0}, []float32{-1, 0}); !ok || got != 0 {
		t.Errorf("Expected opposite vectors to clamp to 0, got %v", got)
	}
	if _, ok := Cosine([]float32{1, 0}, []float32{1}); ok {
		t.Error("Expected dimension mismatch to report no signal")
	}
	if _, ok := Cosine(nil, nil); ok {
		t.Error("Expected missing vectors to report no signal")
	}
}

func TestScoreSentences_Deterministic(t *testing.T) {
	scorer := defaultScorer()
	claim := model.Claim{ID: "c1", Text: "The cache achieved a 71% hit rate"}
	sentences := []Sentence{
		{ID: "a#0", ChunkID: "a", Text: "The cache achieved a 71% hit rate in March."},
		{ID: "a#1", ChunkID: "a", Index: 1, Text: "Eviction was tuned for large keys."},
	}
	vecs := map[string][]float32{
		"a#0": {0.3, 0.4, 0.5},
		"a#1": {0.9, 0.1, 0.0},
	}
	claimVec := []float32{0.3, 0.4, 0.5}

	first := scorer.ScoreSentences(claim, claimVec, sentences, vecs)
	for i := 0; i < 5; i++ {
		again := scorer.ScoreSentences(claim, claimVec, sentences, vecs)
		for j := range first {
			if first[j].Signals != again[j].Signals || first[j].Blended != again[j].Blended {
				t.Fatalf("Run %d: record %d differs: %+v vs %+v", i, j, first[j], again[j])
			}
		}
	}

	if !first[0].IsRisky {
		t.Error("Expected numeric sentence to be risky")
	}
	if first[1].IsRisky {
		t.Error("Expected plain sentence not to be risky")
	}
	if !first[0].Signals.HasCosine || math.Abs(first[0].Signals.Cosine-1) > 1e-6 {
		t.Errorf("Expected cosine 1 for identical vectors, got %+v", first[0].Signals)
	}
}

func TestScoreSentences_MissingEmbedding(t *testing.T) {
	scorer := defaultScorer()
	claim := model.Claim{ID: "c1", Text: "Workers drain the queue"}
	sentences := []Sentence{{ID: "a#0", ChunkID: "a", Text: "Workers drain the queue nightly."}}

	records := scorer.ScoreSentences(claim, nil, sentences, nil)

	if records[0].Signals.HasCosine {
		t.Error("Expected no cosine signal without a claim vector")
	}
	// Weights 0.3/0.3 renormalize to 0.5/0.5
	want := 0.5*records[0].Signals.Jaccard + 0.5*records[0].Signals.Overlap
	if math.Abs(records[0].Blended-want) > 1e-9 {
		t.Errorf("Expected renormalized blend %v, got %v", want, records[0].Blended)
	}
}

func TestBlend_WeightsSumToOne(t *testing.T) {
	scorer := defaultScorer()
	got := scorer.Blend(model.Signals{Jaccard: 1, Overlap: 1, Cosine: 1, HasCosine: true})
	if math.Abs(got-1) > 1e-9 {
		t.Errorf("Expected blend of perfect signals to be 1, got %v", got)
	}
}

func TestPass(t *testing.T) {
	scorer := defaultScorer()

	passed, available := scorer.Pass(model.Signals{Jaccard: 0.5, Overlap: 0.25, Cosine: 0.9, HasCosine: true})
	if passed != 2 || available != 3 {
		t.Errorf("Expected 2 of 3, got %d of %d", passed, available)
	}

	passed, available = scorer.Pass(model.Signals{Jaccard: 0.5, Overlap: 0.5})
	if passed != 2 || available != 2 {
		t.Errorf("Expected 2 of 2 without cosine, got %d of %d", passed, available)
	}
}

func TestSplitPool(t *testing.T) {
	chunks := []model.CandidateChunk{
		{ID: "a", Text: "First sentence here. Second sentence here.", IsAnchorMatch: true},
		{ID: "b", Text: "<p>Markup wrapped sentence.</p>"},
	}

	sentences := SplitPool(chunks, extract.NewSplitter(5, 0))

	if len(sentences) != 3 {
		t.Fatalf("Expected 3 sentences, got %d: %+v", len(sentences), sentences)
	}
	if sentences[1].ID != "a#1" || !sentences[1].AnchorMatch {
		t.Errorf("Unexpected second sentence: %+v", sentences[1])
	}
	if sentences[2].Text != "Markup wrapped sentence." {
		t.Errorf("Expected markup stripped, got %q", sentences[2].Text)
	}
}

func TestSortByScore_StableTies(t *testing.T) {
	records := []model.SentenceRecord{
		{ID: "x", Final: 0.4},
		{ID: "y", Final: 0.9},
		{ID: "z", Final: 0.4},
	}

	SortByScore(records)

	if records[0].ID != "y" || records[1].ID != "x" || records[2].ID != "z" {
		t.Errorf("Unexpected order: %s %s %s", records[0].ID, records[1].ID, records[2].ID)
	}
}
