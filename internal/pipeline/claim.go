package pipeline

import (
	"context"
	"errors"

	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/score"
	"github.com/ppiankov/entail/internal/validate"
	"github.com/ppiankov/entail/internal/worker"
)

type claimInput struct {
	claim        model.Claim
	claimVec     []float32
	sentences    []score.Sentence
	vecs         map[string][]float32
	anchorsEmpty bool
	degraded     bool
}

// claimJob evaluates one claim on the worker pool
type claimJob struct {
	engine *Engine
	input  claimInput
}

func (j *claimJob) Execute(ctx context.Context) worker.Result {
	return &claimOutcome{result: j.engine.evaluateClaim(ctx, j.input)}
}

type claimOutcome struct {
	result model.ClaimResult
}

// GetError is always nil: claim failures are reported inside the result
func (o *claimOutcome) GetError() error { return nil }

// evaluateClaim runs the per-claim stages. Scoring, selection, validation
// and binding are deterministic. The judge stages run only while external
// calls are allowed; any failure there leaves the deterministic outcome in
// place and marks the claim degraded.
func (e *Engine) evaluateClaim(ctx context.Context, in claimInput) model.ClaimResult {
	claim := in.claim
	risky := validate.IsRiskyClaim(claim)

	records := e.scorer.ScoreSentences(claim, in.claimVec, in.sentences, in.vecs)
	selection, retained := e.selector.Select(claim, records)

	res := model.ClaimResult{
		Claim:     claim,
		Risky:     risky,
		Tier:      selection.Tier,
		Selection: selection,
		Rule:      validate.Rule(risky),
		Degraded:  in.degraded,
	}
	var stageErrs []error

	if e.reranker != nil && len(retained) > 0 {
		if e.externalBlocked(ctx) {
			res.Degraded = true
		} else if reranked, err := e.reranker.Rerank(ctx, claim, retained); err != nil {
			res.Degraded = true
			stageErrs = append(stageErrs, err)
		} else {
			retained = reranked
			res.Reranked = true
		}
	}

	verdict := e.validator.Validate(claim, risky, retained)
	passing := validate.Records(retained, verdict.PassingIDs)

	if e.gate != nil && len(passing) > 0 {
		if e.externalBlocked(ctx) {
			res.Degraded = true
		} else if kept, checked, err := e.gate.Filter(ctx, claim, passing); err != nil {
			res.Degraded = true
			stageErrs = append(stageErrs, err)
		} else if checked > 0 {
			res.EntailmentChecked = true
			if len(kept) < len(passing) {
				verdict = e.validator.Validate(claim, risky, kept)
				passing = validate.Records(kept, verdict.PassingIDs)
			}
		}
	}

	res.Rule = verdict.Rule
	binding := e.binder.Bind(claim, selection.Tier, passing, retained, in.anchorsEmpty)
	if !verdict.Supported {
		binding.Drop()
	}
	res.Binding = binding
	res.Supported = verdict.Supported && !binding.Dropped

	if e.config.Output.IncludeEvidence {
		res.Evidence = retained
	}
	if err := errors.Join(stageErrs...); err != nil {
		res.Error = err.Error()
		e.logger.Warn("claim degraded to deterministic scores", "claim", claim.ID, "error", err)
	}

	return res
}

// externalBlocked reports whether judge calls must be skipped: the run has
// timed out or the breaker is refusing calls
func (e *Engine) externalBlocked(ctx context.Context) bool {
	return ctx.Err() != nil || e.orch.Degraded()
}
