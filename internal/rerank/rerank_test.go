package rerank

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ppiankov/entail/internal/llm"
	"github.com/ppiankov/entail/internal/model"
)

type fakeJudge struct {
	relevance  map[string]float64
	entailment map[string]float64
	errs       map[string]error
	calls      int
}

func (f *fakeJudge) Relevance(_ context.Context, _, evidence string) (float64, error) {
	f.calls++
	if err := f.errs[evidence]; err != nil {
		return 0, err
	}
	return f.relevance[evidence], nil
}

func (f *fakeJudge) Entailment(_ context.Context, premise, _ string) (float64, error) {
	f.calls++
	if err := f.errs[premise]; err != nil {
		return 0, err
	}
	return f.entailment[premise], nil
}

func record(id string, blended float64) model.SentenceRecord {
	return model.SentenceRecord{ID: id, Text: id, Blended: blended, Final: blended}
}

var claim = model.Claim{ID: "c1", Text: "Redis hit rate rose."}

func config() model.RerankConfig {
	return model.DefaultConfig().Rerank
}

func TestRerank_BlendsTopN(t *testing.T) {
	judge := &fakeJudge{relevance: map[string]float64{"s1": 0, "s2": 1}}
	cfg := config()
	cfg.TopN = 2
	cfg.Weight = 0.2

	out, err := NewReranker(judge, cfg, nil).Rerank(context.Background(), claim, []model.SentenceRecord{
		record("s1", 0.60), record("s2", 0.55), record("s3", 0.50),
	})
	require.NoError(t, err)
	require.Len(t, out, 3)

	byID := map[string]model.SentenceRecord{}
	for _, r := range out {
		byID[r.ID] = r
	}
	assert.InDelta(t, 0.8*0.60, byID["s1"].Final, 1e-12)
	assert.InDelta(t, 0.8*0.55+0.2, byID["s2"].Final, 1e-12)
	assert.Equal(t, 0.50, byID["s3"].Final, "outside top N keeps blended")
	assert.Equal(t, "s2", out[0].ID)
	assert.Equal(t, 2, judge.calls)
}

func TestRerank_WeightCapped(t *testing.T) {
	judge := &fakeJudge{relevance: map[string]float64{"s1": 1}}
	cfg := config()
	cfg.Weight = 0.9

	out, err := NewReranker(judge, cfg, nil).Rerank(context.Background(), claim, []model.SentenceRecord{record("s1", 0.5)})
	require.NoError(t, err)
	assert.InDelta(t, 0.8*0.5+0.2, out[0].Final, 1e-12)
}

func TestRerank_MalformedKeepsBlended(t *testing.T) {
	judge := &fakeJudge{
		relevance: map[string]float64{"s2": 1},
		errs:      map[string]error{"s1": fmt.Errorf("%w: prose", llm.ErrMalformedResponse)},
	}

	out, err := NewReranker(judge, config(), nil).Rerank(context.Background(), claim, []model.SentenceRecord{
		record("s1", 0.7), record("s2", 0.4),
	})
	require.NoError(t, err)
	for _, r := range out {
		if r.ID == "s1" {
			assert.Equal(t, 0.7, r.Final)
			assert.Zero(t, r.RerankScore)
		}
	}
}

func TestRerank_ErrorReturnsInput(t *testing.T) {
	boom := errors.New("circuit open")
	judge := &fakeJudge{errs: map[string]error{"s2": boom}}
	in := []model.SentenceRecord{record("s1", 0.7), record("s2", 0.6)}

	out, err := NewReranker(judge, config(), nil).Rerank(context.Background(), claim, in)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, in, out)
	assert.Equal(t, 0.7, in[0].Final, "input is not mutated")
}

func TestGate_InBand(t *testing.T) {
	gate := NewGate(&fakeJudge{}, config(), nil)

	assert.True(t, gate.InBand(0.5))
	assert.True(t, gate.InBand(0.45))
	assert.True(t, gate.InBand(0.55))
	assert.False(t, gate.InBand(0.56))
	assert.False(t, gate.InBand(0.44))
}

func TestGate_FiltersLowEntailment(t *testing.T) {
	judge := &fakeJudge{entailment: map[string]float64{"border-ok": 0.9, "border-bad": 0.3}}
	passing := []model.SentenceRecord{record("clear", 0.8), record("border-ok", 0.52), record("border-bad", 0.48)}

	kept, checked, err := NewGate(judge, config(), nil).Filter(context.Background(), claim, passing)
	require.NoError(t, err)

	assert.Equal(t, 2, checked)
	require.Len(t, kept, 2)
	assert.Equal(t, "clear", kept[0].ID)
	assert.Equal(t, "border-ok", kept[1].ID)
}

func TestGate_NeverAddsSentences(t *testing.T) {
	judge := &fakeJudge{entailment: map[string]float64{"a": 1, "b": 1}}
	passing := []model.SentenceRecord{record("a", 0.5), record("b", 0.51)}

	kept, _, err := NewGate(judge, config(), nil).Filter(context.Background(), claim, passing)
	require.NoError(t, err)
	assert.LessOrEqual(t, len(kept), len(passing))
}

func TestGate_MalformedKeepsSentence(t *testing.T) {
	judge := &fakeJudge{errs: map[string]error{"a": llm.ErrMalformedResponse}}

	kept, checked, err := NewGate(judge, config(), nil).Filter(context.Background(), claim, []model.SentenceRecord{record("a", 0.5)})
	require.NoError(t, err)
	assert.Zero(t, checked)
	assert.Len(t, kept, 1)
}

func TestGate_ErrorReturnsInput(t *testing.T) {
	boom := errors.New("throttled")
	judge := &fakeJudge{
		entailment: map[string]float64{"a": 0},
		errs:       map[string]error{"b": boom},
	}
	passing := []model.SentenceRecord{record("a", 0.5), record("b", 0.5)}

	kept, _, err := NewGate(judge, config(), nil).Filter(context.Background(), claim, passing)
	require.ErrorIs(t, err, boom)
	assert.Equal(t, passing, kept)
}
