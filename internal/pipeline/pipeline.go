// Package pipeline evaluates a draft answer against retrieved evidence:
// fusion, sentence scoring, selection, validation, the optional judge stages
// and binding.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/ppiankov/entail/internal/bind"
	"github.com/ppiankov/entail/internal/cache"
	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/fusion"
	"github.com/ppiankov/entail/internal/inference"
	"github.com/ppiankov/entail/internal/llm"
	"github.com/ppiankov/entail/internal/model"
	"github.com/ppiankov/entail/internal/rerank"
	"github.com/ppiankov/entail/internal/score"
	"github.com/ppiankov/entail/internal/selector"
	"github.com/ppiankov/entail/internal/store"
	"github.com/ppiankov/entail/internal/validate"
	"github.com/ppiankov/entail/internal/worker"
)

// Engine evaluates requests. It is safe for concurrent use; all evaluations
// share one orchestrator and therefore one rate limit and breaker.
type Engine struct {
	config    *model.Config
	splitter  *extract.Splitter
	claims    *extract.ClaimExtractor
	router    *fusion.Router
	scorer    *score.Scorer
	selector  *selector.Selector
	validator *validate.Validator
	binder    *bind.Binder

	orch     *inference.Orchestrator
	judge    rerank.Judge
	reranker *rerank.Reranker
	gate     *rerank.Gate
	embedder llm.Embedder
	store    store.DocumentStore

	judgeSet    bool
	embedderSet bool
	registry    prometheus.Registerer
	logger      *slog.Logger
	now         func() time.Time
}

// Option configures an Engine
type Option func(*Engine)

// WithJudge sets the judge used by the reranker and the entailment gate,
// instead of building one from the LLM config. nil disables both stages.
func WithJudge(judge rerank.Judge) Option {
	return func(e *Engine) {
		e.judge = judge
		e.judgeSet = true
	}
}

// WithEmbedder sets the embedder instead of building one from config. nil
// disables the cosine signal.
func WithEmbedder(embedder llm.Embedder) Option {
	return func(e *Engine) {
		e.embedder = embedder
		e.embedderSet = true
	}
}

// WithOrchestrator shares an existing orchestrator
func WithOrchestrator(orch *inference.Orchestrator) Option {
	return func(e *Engine) { e.orch = orch }
}

// WithStore fills missing chunk text from s
func WithStore(s store.DocumentStore) Option {
	return func(e *Engine) { e.store = s }
}

// WithRegistry registers inference metrics on reg
func WithRegistry(reg prometheus.Registerer) Option {
	return func(e *Engine) { e.registry = reg }
}

// WithLogger sets the logger
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) { e.logger = logger }
}

// New validates cfg and builds an engine. External providers are created
// from cfg unless supplied through options.
func New(cfg *model.Config, opts ...Option) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	splitter := extract.NewSplitter(cfg.Extraction.MinSentenceChars, cfg.Extraction.MaxSentenceChars)
	scorer := score.NewScorer(cfg.Signals)

	e := &Engine{
		config:    cfg,
		splitter:  splitter,
		claims:    extract.NewClaimExtractor(splitter),
		router:    fusion.NewRouter(fusion.ConfigFromModel(cfg.Fusion)),
		scorer:    scorer,
		selector:  selector.NewSelector(cfg.Selection),
		validator: validate.NewValidator(scorer, cfg.Validation.MinRiskyEvidence),
		binder:    bind.NewBinder(cfg.Binding),
		logger:    slog.Default(),
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}

	if e.orch == nil {
		orchOpts := []inference.Option{inference.WithLogger(e.logger)}
		if e.registry != nil {
			orchOpts = append(orchOpts, inference.WithMetrics(inference.NewMetrics(e.registry)))
		}
		e.orch = inference.New(cfg.Inference, cache.New(cfg.Cache), cfg.Cache.TTL, orchOpts...)
	}

	if !e.judgeSet && (cfg.Rerank.Enabled || cfg.Rerank.EntailmentEnabled) {
		provider, err := llm.NewProvider(llm.ConfigFromModel(cfg.LLM, cfg.Inference.CallTimeout))
		if err != nil {
			return nil, fmt.Errorf("judge provider: %w", err)
		}
		if provider != nil {
			e.judge = inference.NewJudge(e.orch, provider, cfg.LLM.Model, cfg.LLM.MaxTokens)
		}
	}
	if e.judge != nil {
		if cfg.Rerank.Enabled {
			e.reranker = rerank.NewReranker(e.judge, cfg.Rerank, e.logger)
		}
		if cfg.Rerank.EntailmentEnabled {
			e.gate = rerank.NewGate(e.judge, cfg.Rerank, e.logger)
		}
	}

	if !e.embedderSet {
		emb, err := llm.NewEmbedder(cfg.Embedding, cfg.Inference.CallTimeout)
		if err != nil {
			return nil, fmt.Errorf("embedder: %w", err)
		}
		if emb != nil {
			e.embedder = inference.NewEmbedder(e.orch, emb)
		}
	}

	return e, nil
}

// Orchestrator returns the shared inference orchestrator
func (e *Engine) Orchestrator() *inference.Orchestrator {
	return e.orch
}

// Evaluate runs one request end to end. The result always lists every
// claim; failures of optional stages show up as degraded claims, never as
// an error. Only an unusable request is an error.
func (e *Engine) Evaluate(ctx context.Context, req *model.EvaluationRequest) (*model.Result, error) {
	if req == nil {
		return nil, errors.New("nil request")
	}

	if e.config.Concurrency.RunTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.Concurrency.RunTimeout)
		defer cancel()
	}
	usage := &inference.Usage{}
	ctx = inference.WithUsage(ctx, usage)

	result := &model.Result{
		RunID:       uuid.NewString(),
		RequestID:   req.ID,
		Query:       req.Query,
		GeneratedAt: e.now().UTC(),
	}
	logger := e.logger.With("run_id", result.RunID, "request_id", req.ID)

	claims := extract.EnsureIDs(req.Claims)
	if len(claims) == 0 {
		claims = e.claims.Extract(req.Answer)
	}

	vector := append([]model.RankedChunk(nil), req.Vector...)
	lexical := append([]model.RankedChunk(nil), req.Lexical...)
	if e.store != nil {
		if err := store.FillText(ctx, e.store, vector, lexical); err != nil {
			logger.Warn("chunk lookup incomplete", "error", err)
		}
	}
	if len(lexical) == 0 {
		lexical = fusion.RankBM25(req.Query, vector)
	}

	anchors := extract.ExtractAnchors(req.Query, e.config.Extraction.MaxAnchors)
	result.Anchors = anchors
	if result.Anchors == nil {
		result.Anchors = []string{}
	}

	pool := e.router.Fuse(vector, lexical, anchors)
	sentences := score.SplitPool(pool.Chunks, e.splitter)
	logger.Debug("candidate pool", "chunks", len(pool.Chunks), "sentences", len(sentences), "anchors", len(anchors))

	emb := e.embed(ctx, claims, sentences)
	if emb.err != nil {
		logger.Warn("embeddings unavailable, cosine signal missing", "error", emb.err)
	}

	wp := worker.NewPool(ctx, e.config.Concurrency.Workers)
	wp.Start()
	for i, claim := range claims {
		wp.Submit(&claimJob{
			engine: e,
			input: claimInput{
				claim:        claim,
				claimVec:     emb.claimVec(i),
				sentences:    sentences,
				vecs:         emb.sentences,
				anchorsEmpty: len(anchors) == 0,
				degraded:     emb.err != nil,
			},
		})
	}

	outcomes := wp.Wait()
	result.Claims = make([]model.ClaimResult, len(outcomes))
	for i, o := range outcomes {
		result.Claims[i] = o.(*claimOutcome).result
	}

	result.Telemetry = buildTelemetry(result.Claims, pool, usage)
	result.Degraded = result.Telemetry.DegradedClaims > 0
	logger.Info("evaluation complete",
		"claims", len(result.Claims),
		"unsupported", result.Telemetry.PctUnsupported,
		"degraded", result.Telemetry.DegradedClaims,
		"external_calls", result.Telemetry.ExternalCalls)

	return result, nil
}

type embeddings struct {
	claims    [][]float32
	sentences map[string][]float32
	err       error
}

func (e embeddings) claimVec(i int) []float32 {
	if i < len(e.claims) {
		return e.claims[i]
	}
	return nil
}

// embed vectors every claim and sentence in one batch. Without an embedder,
// or when a remote embedder cannot be reached, the cosine signal is missing.
func (e *Engine) embed(ctx context.Context, claims []model.Claim, sentences []score.Sentence) embeddings {
	if e.embedder == nil || (len(claims) == 0 && len(sentences) == 0) {
		return embeddings{}
	}
	if !e.embedder.Local() && e.orch.Degraded() {
		return embeddings{err: inference.ErrCircuitOpen}
	}

	texts := make([]string, 0, len(claims)+len(sentences))
	for _, c := range claims {
		texts = append(texts, c.Text)
	}
	for _, s := range sentences {
		texts = append(texts, s.Text)
	}

	vecs, err := e.embedder.Embed(ctx, texts)
	if err != nil {
		return embeddings{err: err}
	}
	if len(vecs) != len(texts) {
		return embeddings{err: fmt.Errorf("embedder returned %d vectors for %d texts", len(vecs), len(texts))}
	}

	out := embeddings{
		claims:    vecs[:len(claims)],
		sentences: make(map[string][]float32, len(sentences)),
	}
	for i, s := range sentences {
		out.sentences[s.ID] = vecs[len(claims)+i]
	}
	return out
}
