package inference

import (
	"context"
	"fmt"

	"github.com/ppiankov/entail/internal/llm"
)

// Judge scores claims with an LLM provider, one orchestrated call per pair
type Judge struct {
	orch      *Orchestrator
	provider  llm.Provider
	model     string
	maxTokens int
}

// NewJudge creates a judge. model may be empty to use the provider default.
func NewJudge(orch *Orchestrator, provider llm.Provider, model string, maxTokens int) *Judge {
	return &Judge{orch: orch, provider: provider, model: model, maxTokens: maxTokens}
}

// Relevance asks how directly evidence supports claim
func (j *Judge) Relevance(ctx context.Context, claim, evidence string) (float64, error) {
	return j.score(ctx, llm.KindRelevance, llm.RelevancePrompt(claim, evidence))
}

// Entailment asks for the probability that premise entails hypothesis
func (j *Judge) Entailment(ctx context.Context, premise, hypothesis string) (float64, error) {
	return j.score(ctx, llm.KindEntailment, llm.EntailmentPrompt(premise, hypothesis))
}

func (j *Judge) score(ctx context.Context, kind, prompt string) (float64, error) {
	scope := j.provider.Name() + "/" + j.model
	out, _, err := j.orch.Call(ctx, kind, prompt, scope, func(ctx context.Context) ([]byte, error) {
		resp, err := j.provider.Complete(ctx, llm.CompletionRequest{
			Prompt:    prompt,
			Model:     j.model,
			MaxTokens: j.maxTokens,
		})
		if err != nil {
			return nil, err
		}
		return []byte(resp.Text), nil
	})
	if err != nil {
		return 0, err
	}

	v, err := llm.ParseScore(string(out))
	if err != nil {
		return 0, fmt.Errorf("%s judge: %w", kind, err)
	}
	return v, nil
}
