package model

import (
	"errors"
	"strings"
	"testing"
)

func TestDefaultConfig_Valid(t *testing.T) {
	if err := DefaultConfig().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestValidate_ConflictingKeepModes(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Selection.Percentile = 0.75

	err := cfg.Validate()
	if !errors.Is(err, ErrConflictingKeepModes) {
		t.Fatalf("expected ErrConflictingKeepModes, got %v", err)
	}
}

func TestValidate_PercentileOnly(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Selection.UseTargetK = false
	cfg.Selection.Percentile = 0.75

	if err := cfg.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if cfg.Selection.Mode() != KeepPercentile {
		t.Errorf("mode = %s, want %s", cfg.Selection.Mode(), KeepPercentile)
	}
}

func TestValidate_ReportsAllProblems(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Signals.Weights.Cosine = 0.9
	cfg.Rerank.Weight = 0.5
	cfg.Inference.MaxInFlight = 0

	err := cfg.Validate()
	if err == nil {
		t.Fatal("expected error")
	}
	for _, want := range []string{"signals.weights must sum to 1.0", "rerank.weight", "inference.max_in_flight"} {
		if !strings.Contains(err.Error(), want) {
			t.Errorf("error %q does not mention %q", err, want)
		}
	}
}

func TestValidate_Ranges(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"no keep mode", func(c *Config) { c.Selection.UseTargetK = false }},
		{"target k order", func(c *Config) { c.Selection.TargetK.Weak = 6 }},
		{"min above max", func(c *Config) { c.Selection.MinSent = 7 }},
		{"penalty above one", func(c *Config) { c.Fusion.NonAnchorPenalty = 1.5 }},
		{"long tail fills pool", func(c *Config) { c.Fusion.LongTailSlots = c.Fusion.PoolSize }},
		{"negative floor", func(c *Config) { c.Signals.Floors.Jaccard = -0.1 }},
		{"band too wide", func(c *Config) { c.Rerank.BandWidth = 0.6 }},
		{"backoff inverted", func(c *Config) { c.Inference.MaxBackoff = c.Inference.InitialBackoff / 2 }},
		{"no workers", func(c *Config) { c.Concurrency.Workers = 0 }},
		{"binding topk", func(c *Config) { c.Binding.ClaimTopKStrong = 1; c.Binding.ClaimTopK = 2 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("expected validation error")
			}
		})
	}
}

func TestClaimBinding_DropOnce(t *testing.T) {
	var b ClaimBinding
	if !b.Drop() {
		t.Fatal("first Drop should toggle")
	}
	if b.Drop() {
		t.Error("second Drop should be a no-op")
	}
	if !b.Dropped {
		t.Error("binding should stay dropped")
	}
}

func TestSignals_Max(t *testing.T) {
	s := Signals{Jaccard: 0.2, Overlap: 0.4, Cosine: 0.9}
	if got := s.Max(); got != 0.4 {
		t.Errorf("Max without cosine = %v, want 0.4", got)
	}
	s.HasCosine = true
	if got := s.Max(); got != 0.9 {
		t.Errorf("Max with cosine = %v, want 0.9", got)
	}
}
