package model

import (
	"errors"
	"fmt"
	"math"
	"time"
)

// Config holds every tunable knob of the engine. It is built once at startup
// and validated before any evaluation runs.
type Config struct {
	Fusion      FusionConfig      `json:"fusion" yaml:"fusion" mapstructure:"fusion"`
	Extraction  ExtractionConfig  `json:"extraction" yaml:"extraction" mapstructure:"extraction"`
	Signals     SignalConfig      `json:"signals" yaml:"signals" mapstructure:"signals"`
	Selection   SelectionConfig   `json:"selection" yaml:"selection" mapstructure:"selection"`
	Validation  ValidationConfig  `json:"validation" yaml:"validation" mapstructure:"validation"`
	Rerank      RerankConfig      `json:"rerank" yaml:"rerank" mapstructure:"rerank"`
	Binding     BindingConfig     `json:"binding" yaml:"binding" mapstructure:"binding"`
	Inference   InferenceConfig   `json:"inference" yaml:"inference" mapstructure:"inference"`
	Cache       CacheConfig       `json:"cache" yaml:"cache" mapstructure:"cache"`
	Concurrency ConcurrencyConfig `json:"concurrency" yaml:"concurrency" mapstructure:"concurrency"`
	LLM         LLMConfig         `json:"llm" yaml:"llm" mapstructure:"llm"`
	Embedding   EmbeddingConfig   `json:"embedding" yaml:"embedding" mapstructure:"embedding"`
	Output      OutputConfig      `json:"output" yaml:"output" mapstructure:"output"`
}

// FusionConfig controls reciprocal rank fusion of the vector and lexical lists
type FusionConfig struct {
	RRFK               int     `json:"rrf_k" yaml:"rrf_k" mapstructure:"rrf_k"`
	AnchorBoost        float64 `json:"anchor_boost" yaml:"anchor_boost" mapstructure:"anchor_boost"`
	NonAnchorPenalty   float64 `json:"non_anchor_penalty" yaml:"non_anchor_penalty" mapstructure:"non_anchor_penalty"`
	PerDocCap          int     `json:"per_doc_cap" yaml:"per_doc_cap" mapstructure:"per_doc_cap"`
	PoolSize           int     `json:"pool_size" yaml:"pool_size" mapstructure:"pool_size"`
	LongTailSlots      int     `json:"long_tail_slots" yaml:"long_tail_slots" mapstructure:"long_tail_slots"`
	LongTailMinNovelty float64 `json:"long_tail_min_novelty" yaml:"long_tail_min_novelty" mapstructure:"long_tail_min_novelty"`
}

// ExtractionConfig controls sentence and anchor extraction
type ExtractionConfig struct {
	MinSentenceChars int `json:"min_sentence_chars" yaml:"min_sentence_chars" mapstructure:"min_sentence_chars"`
	MaxSentenceChars int `json:"max_sentence_chars" yaml:"max_sentence_chars" mapstructure:"max_sentence_chars"`
	MaxAnchors       int `json:"max_anchors" yaml:"max_anchors" mapstructure:"max_anchors"`
}

// SignalWeights blends the three signals into one score. Must sum to 1.0.
type SignalWeights struct {
	Jaccard float64 `json:"jaccard" yaml:"jaccard" mapstructure:"jaccard"`
	Overlap float64 `json:"overlap" yaml:"overlap" mapstructure:"overlap"`
	Cosine  float64 `json:"cosine" yaml:"cosine" mapstructure:"cosine"`
}

// SignalFloors are the per-signal pass thresholds
type SignalFloors struct {
	Jaccard float64 `json:"jaccard" yaml:"jaccard" mapstructure:"jaccard"`
	Overlap float64 `json:"overlap" yaml:"overlap" mapstructure:"overlap"`
	Cosine  float64 `json:"cosine" yaml:"cosine" mapstructure:"cosine"`
}

// SignalConfig groups signal floors and blend weights
type SignalConfig struct {
	Floors  SignalFloors  `json:"floors" yaml:"floors" mapstructure:"floors"`
	Weights SignalWeights `json:"weights" yaml:"weights" mapstructure:"weights"`
}

// TargetK maps each risk tier to a retention count
type TargetK struct {
	Weak   int `json:"weak" yaml:"weak" mapstructure:"weak"`
	Base   int `json:"base" yaml:"base" mapstructure:"base"`
	Strong int `json:"strong" yaml:"strong" mapstructure:"strong"`
}

// SelectionConfig controls how many sentences are retained per claim.
// Exactly one keep mode may be active: UseTargetK or Percentile > 0.
type SelectionConfig struct {
	UseTargetK           bool    `json:"use_target_k" yaml:"use_target_k" mapstructure:"use_target_k"`
	Percentile           float64 `json:"percentile" yaml:"percentile" mapstructure:"percentile"` // 0 disables, otherwise in (0,1)
	TargetK              TargetK `json:"target_k" yaml:"target_k" mapstructure:"target_k"`
	MinSent              int     `json:"min_sent" yaml:"min_sent" mapstructure:"min_sent"`
	MaxSent              int     `json:"max_sent" yaml:"max_sent" mapstructure:"max_sent"`
	CalibrationThreshold float64 `json:"calibration_threshold" yaml:"calibration_threshold" mapstructure:"calibration_threshold"`
	DeltaWeak            float64 `json:"delta_weak" yaml:"delta_weak" mapstructure:"delta_weak"`
	DeltaStrong          float64 `json:"delta_strong" yaml:"delta_strong" mapstructure:"delta_strong"`
}

// Mode returns the active keep mode
func (s SelectionConfig) Mode() KeepMode {
	if s.Percentile > 0 && !s.UseTargetK {
		return KeepPercentile
	}
	return KeepTargetK
}

// ValidationConfig controls the risk-aware support rule
type ValidationConfig struct {
	MinRiskyEvidence int `json:"min_risky_evidence" yaml:"min_risky_evidence" mapstructure:"min_risky_evidence"`
}

// RerankConfig controls the optional reranker and entailment gate
type RerankConfig struct {
	Enabled             bool    `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TopN                int     `json:"top_n" yaml:"top_n" mapstructure:"top_n"`
	Weight              float64 `json:"weight" yaml:"weight" mapstructure:"weight"`
	EntailmentEnabled   bool    `json:"entailment_enabled" yaml:"entailment_enabled" mapstructure:"entailment_enabled"`
	SupportThreshold    float64 `json:"support_threshold" yaml:"support_threshold" mapstructure:"support_threshold"`
	BandWidth           float64 `json:"band_width" yaml:"band_width" mapstructure:"band_width"`
	EntailmentThreshold float64 `json:"entailment_threshold" yaml:"entailment_threshold" mapstructure:"entailment_threshold"`
}

// BindingConfig controls claim to evidence binding
type BindingConfig struct {
	ClaimTopK        int     `json:"claim_topk" yaml:"claim_topk" mapstructure:"claim_topk"`
	ClaimTopKStrong  int     `json:"claim_topk_strong" yaml:"claim_topk_strong" mapstructure:"claim_topk_strong"`
	MinEvidenceWords int     `json:"min_evidence_words" yaml:"min_evidence_words" mapstructure:"min_evidence_words"`
	AnchorMissFactor float64 `json:"anchor_miss_factor" yaml:"anchor_miss_factor" mapstructure:"anchor_miss_factor"`
}

// InferenceConfig controls the resilience layer around external model calls
type InferenceConfig struct {
	MaxInFlight       int           `json:"max_in_flight" yaml:"max_in_flight" mapstructure:"max_in_flight"`
	RequestsPerSecond float64       `json:"requests_per_second" yaml:"requests_per_second" mapstructure:"requests_per_second"`
	Burst             int           `json:"burst" yaml:"burst" mapstructure:"burst"`
	MaxRetries        int           `json:"max_retries" yaml:"max_retries" mapstructure:"max_retries"`
	InitialBackoff    time.Duration `json:"initial_backoff" yaml:"initial_backoff" mapstructure:"initial_backoff"`
	MaxBackoff        time.Duration `json:"max_backoff" yaml:"max_backoff" mapstructure:"max_backoff"`
	BackoffFactor     float64       `json:"backoff_factor" yaml:"backoff_factor" mapstructure:"backoff_factor"`
	Jitter            float64       `json:"jitter" yaml:"jitter" mapstructure:"jitter"`
	Cooldown          time.Duration `json:"cooldown" yaml:"cooldown" mapstructure:"cooldown"`
	CallTimeout       time.Duration `json:"call_timeout" yaml:"call_timeout" mapstructure:"call_timeout"`
}

// CacheConfig controls the inference cache
type CacheConfig struct {
	Enabled bool          `json:"enabled" yaml:"enabled" mapstructure:"enabled"`
	TTL     time.Duration `json:"ttl" yaml:"ttl" mapstructure:"ttl"`
	Dir     string        `json:"dir,omitempty" yaml:"dir,omitempty" mapstructure:"dir"` // Disk layer, disabled when empty
}

// ConcurrencyConfig controls worker pools
type ConcurrencyConfig struct {
	Workers    int           `json:"workers" yaml:"workers" mapstructure:"workers"`
	RunTimeout time.Duration `json:"run_timeout" yaml:"run_timeout" mapstructure:"run_timeout"`
}

// LLMConfig selects the external judge used for reranking and entailment
type LLMConfig struct {
	Provider   string `json:"provider" yaml:"provider" mapstructure:"provider"` // openai, anthropic, ollama, "" (disabled)
	Model      string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	APIKey     string `json:"-" yaml:"-" mapstructure:"api_key"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	MaxTokens  int    `json:"max_tokens" yaml:"max_tokens" mapstructure:"max_tokens"`
	HTTPProxy  string `json:"http_proxy,omitempty" yaml:"http_proxy,omitempty" mapstructure:"http_proxy"`
	HTTPSProxy string `json:"https_proxy,omitempty" yaml:"https_proxy,omitempty" mapstructure:"https_proxy"`
}

// EmbeddingConfig selects the embedding provider
type EmbeddingConfig struct {
	Provider   string `json:"provider" yaml:"provider" mapstructure:"provider"` // hash, openai, ollama, "" (disabled)
	Model      string `json:"model,omitempty" yaml:"model,omitempty" mapstructure:"model"`
	APIKey     string `json:"-" yaml:"-" mapstructure:"api_key"`
	BaseURL    string `json:"base_url,omitempty" yaml:"base_url,omitempty" mapstructure:"base_url"`
	Dimensions int    `json:"dimensions" yaml:"dimensions" mapstructure:"dimensions"`
}

// OutputConfig controls report rendering
type OutputConfig struct {
	Verbose         bool `json:"verbose" yaml:"verbose" mapstructure:"verbose"`
	IncludeEvidence bool `json:"include_evidence" yaml:"include_evidence" mapstructure:"include_evidence"`
	IncludeFooter   bool `json:"include_footer" yaml:"include_footer" mapstructure:"include_footer"`
}

// DefaultConfig returns the empirically tuned defaults
func DefaultConfig() *Config {
	return &Config{
		Fusion: FusionConfig{
			RRFK:               60,
			AnchorBoost:        1.25,
			NonAnchorPenalty:   0.85,
			PerDocCap:          3,
			PoolSize:           20,
			LongTailSlots:      1,
			LongTailMinNovelty: 0.5,
		},
		Extraction: ExtractionConfig{
			MinSentenceChars: 12,
			MaxSentenceChars: 600,
			MaxAnchors:       8,
		},
		Signals: SignalConfig{
			Floors:  SignalFloors{Jaccard: 0.2, Overlap: 0.3, Cosine: 0.6},
			Weights: SignalWeights{Jaccard: 0.3, Overlap: 0.3, Cosine: 0.4},
		},
		Selection: SelectionConfig{
			UseTargetK:           true,
			TargetK:              TargetK{Weak: 2, Base: 3, Strong: 5},
			MinSent:              1,
			MaxSent:              6,
			CalibrationThreshold: 0.5,
			DeltaWeak:            0.05,
			DeltaStrong:          0.20,
		},
		Validation: ValidationConfig{
			MinRiskyEvidence: 2,
		},
		Rerank: RerankConfig{
			Enabled:             true,
			TopN:                8,
			Weight:              0.15,
			EntailmentEnabled:   true,
			SupportThreshold:    0.5,
			BandWidth:           0.05,
			EntailmentThreshold: 0.6,
		},
		Binding: BindingConfig{
			ClaimTopK:        3,
			ClaimTopKStrong:  4,
			MinEvidenceWords: 12,
			AnchorMissFactor: 0.5,
		},
		Inference: InferenceConfig{
			MaxInFlight:       2,
			RequestsPerSecond: 1,
			Burst:             1,
			MaxRetries:        4,
			InitialBackoff:    500 * time.Millisecond,
			MaxBackoff:        20 * time.Second,
			BackoffFactor:     2,
			Jitter:            0.2,
			Cooldown:          60 * time.Second,
			CallTimeout:       30 * time.Second,
		},
		Cache: CacheConfig{
			Enabled: true,
			TTL:     30 * time.Minute,
		},
		Concurrency: ConcurrencyConfig{
			Workers:    4,
			RunTimeout: 2 * time.Minute,
		},
		LLM: LLMConfig{
			MaxTokens: 16,
		},
		Embedding: EmbeddingConfig{
			Provider:   "hash",
			Dimensions: 256,
		},
		Output: OutputConfig{
			IncludeEvidence: true,
			IncludeFooter:   true,
		},
	}
}

// ErrConflictingKeepModes is returned when both evidence cutoff modes are enabled
var ErrConflictingKeepModes = errors.New("selection: use_target_k and percentile are mutually exclusive")

// Validate checks ranges and conflicting combinations. All problems are
// reported together.
func (c *Config) Validate() error {
	var errs []error
	add := func(format string, a ...any) {
		errs = append(errs, fmt.Errorf(format, a...))
	}

	f := c.Fusion
	if f.RRFK <= 0 {
		add("fusion.rrf_k must be > 0, got %d", f.RRFK)
	}
	if f.AnchorBoost < 1 {
		add("fusion.anchor_boost must be >= 1, got %.3f", f.AnchorBoost)
	}
	if f.NonAnchorPenalty <= 0 || f.NonAnchorPenalty > 1 {
		add("fusion.non_anchor_penalty must be in (0,1], got %.3f", f.NonAnchorPenalty)
	}
	if f.PerDocCap <= 0 {
		add("fusion.per_doc_cap must be > 0, got %d", f.PerDocCap)
	}
	if f.PoolSize <= 0 {
		add("fusion.pool_size must be > 0, got %d", f.PoolSize)
	}
	if f.LongTailSlots < 0 || f.LongTailSlots >= max(f.PoolSize, 1) {
		add("fusion.long_tail_slots must be in [0, pool_size), got %d", f.LongTailSlots)
	}

	w := c.Signals.Weights
	for name, v := range map[string]float64{"jaccard": w.Jaccard, "overlap": w.Overlap, "cosine": w.Cosine} {
		if v < 0 || v > 1 {
			add("signals.weights.%s must be in [0,1], got %.3f", name, v)
		}
	}
	if sum := w.Jaccard + w.Overlap + w.Cosine; math.Abs(sum-1) > 1e-6 {
		add("signals.weights must sum to 1.0, got %.6f", sum)
	}
	fl := c.Signals.Floors
	for name, v := range map[string]float64{"jaccard": fl.Jaccard, "overlap": fl.Overlap, "cosine": fl.Cosine} {
		if v < 0 || v > 1 {
			add("signals.floors.%s must be in [0,1], got %.3f", name, v)
		}
	}

	s := c.Selection
	if s.UseTargetK && s.Percentile > 0 {
		errs = append(errs, ErrConflictingKeepModes)
	}
	if !s.UseTargetK && s.Percentile <= 0 {
		add("selection: one keep mode must be enabled (use_target_k or percentile)")
	}
	if s.Percentile < 0 || s.Percentile >= 1 {
		add("selection.percentile must be in [0,1), got %.3f", s.Percentile)
	}
	if s.MinSent < 1 || s.MaxSent < s.MinSent {
		add("selection: require 1 <= min_sent <= max_sent, got %d..%d", s.MinSent, s.MaxSent)
	}
	if s.TargetK.Weak > s.TargetK.Base || s.TargetK.Base > s.TargetK.Strong {
		add("selection.target_k must satisfy weak <= base <= strong, got %d/%d/%d", s.TargetK.Weak, s.TargetK.Base, s.TargetK.Strong)
	}
	if s.TargetK.Weak < 1 {
		add("selection.target_k.weak must be >= 1, got %d", s.TargetK.Weak)
	}
	if s.DeltaWeak > s.DeltaStrong {
		add("selection: delta_weak (%.3f) must not exceed delta_strong (%.3f)", s.DeltaWeak, s.DeltaStrong)
	}

	if c.Validation.MinRiskyEvidence < 1 {
		add("validation.min_risky_evidence must be >= 1, got %d", c.Validation.MinRiskyEvidence)
	}

	r := c.Rerank
	if r.Weight < 0 || r.Weight > 0.2 {
		add("rerank.weight must be in [0,0.2], got %.3f", r.Weight)
	}
	if r.TopN < 1 {
		add("rerank.top_n must be >= 1, got %d", r.TopN)
	}
	if r.BandWidth < 0 || r.BandWidth > 0.5 {
		add("rerank.band_width must be in [0,0.5], got %.3f", r.BandWidth)
	}
	if r.EntailmentThreshold < 0 || r.EntailmentThreshold > 1 {
		add("rerank.entailment_threshold must be in [0,1], got %.3f", r.EntailmentThreshold)
	}

	b := c.Binding
	if b.ClaimTopK < 1 || b.ClaimTopKStrong < b.ClaimTopK {
		add("binding: require 1 <= claim_topk <= claim_topk_strong, got %d/%d", b.ClaimTopK, b.ClaimTopKStrong)
	}
	if b.AnchorMissFactor < 0 || b.AnchorMissFactor > 1 {
		add("binding.anchor_miss_factor must be in [0,1], got %.3f", b.AnchorMissFactor)
	}
	if b.MinEvidenceWords < 0 {
		add("binding.min_evidence_words must be >= 0, got %d", b.MinEvidenceWords)
	}

	in := c.Inference
	if in.MaxInFlight < 1 {
		add("inference.max_in_flight must be >= 1, got %d", in.MaxInFlight)
	}
	if in.RequestsPerSecond <= 0 {
		add("inference.requests_per_second must be > 0, got %.3f", in.RequestsPerSecond)
	}
	if in.MaxRetries < 0 {
		add("inference.max_retries must be >= 0, got %d", in.MaxRetries)
	}
	if in.MaxBackoff < in.InitialBackoff {
		add("inference.max_backoff (%v) must be >= initial_backoff (%v)", in.MaxBackoff, in.InitialBackoff)
	}
	if in.Jitter < 0 || in.Jitter > 1 {
		add("inference.jitter must be in [0,1], got %.3f", in.Jitter)
	}

	if c.Concurrency.Workers < 1 {
		add("concurrency.workers must be >= 1, got %d", c.Concurrency.Workers)
	}

	return errors.Join(errs...)
}
