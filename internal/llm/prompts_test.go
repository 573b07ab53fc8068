package llm

import (
	"context"
	"errors"
	"math"
	"testing"
)

func TestParseScore(t *testing.T) {
	tests := []struct {
		input string
		want  float64
	}{
		{"0.8", 0.8},
		{"Score: 0.35", 0.35},
		{"Score (0-1): 0.8", 0.8},
		{"Relevance (0 to 1.0): 0.25", 0.25},
		{"Step 1 done. Score: 0.6", 0.6},
		{"85%", 0.85},
		{"1", 1},
		{"Entailment.", 1},
		{"neutral", 0.5},
		{"No", 0},
	}

	for _, tt := range tests {
		got, err := ParseScore(tt.input)
		if err != nil {
			t.Errorf("ParseScore(%q) returned error: %v", tt.input, err)
			continue
		}
		if math.Abs(got-tt.want) > 1e-9 {
			t.Errorf("ParseScore(%q) = %v, want %v", tt.input, got, tt.want)
		}
	}
}

func TestParseScore_Malformed(t *testing.T) {
	for _, input := range []string{"", "   ", "maybe", "7", "-0.2", "250%"} {
		if _, err := ParseScore(input); !errors.Is(err, ErrMalformedResponse) {
			t.Errorf("ParseScore(%q): expected ErrMalformedResponse, got %v", input, err)
		}
	}
}

func TestIsThrottle(t *testing.T) {
	if IsThrottle(nil) {
		t.Error("nil is not a throttle")
	}
	if !IsThrottle(&StatusError{StatusCode: 429}) {
		t.Error("429 should throttle")
	}
	if IsThrottle(&StatusError{StatusCode: 400}) {
		t.Error("400 should not throttle")
	}
	if !IsThrottle(context.DeadlineExceeded) {
		t.Error("deadline should throttle")
	}
	if IsThrottle(ErrMalformedResponse) {
		t.Error("malformed response should not throttle")
	}
}

func TestNewProvider(t *testing.T) {
	p, err := NewProvider(Config{})
	if err != nil || p != nil {
		t.Errorf("Expected disabled provider, got %v, %v", p, err)
	}

	if _, err := NewProvider(Config{Provider: "bogus"}); err == nil {
		t.Error("Expected error for unknown provider")
	}

	p, err = NewProvider(Config{Provider: "OpenAI", APIKey: "k"})
	if err != nil || p.Name() != "openai" {
		t.Errorf("Expected openai provider, got %v, %v", p, err)
	}
}

func TestHashEmbedder(t *testing.T) {
	e := NewHashEmbedder(64)

	vecs, err := e.Embed(context.Background(), []string{
		"The cache achieved a high hit rate",
		"The cache achieved a high hit rate",
		"Kernel scheduler fairness",
		"",
	})
	if err != nil {
		t.Fatalf("Embed failed: %v", err)
	}

	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			t.Fatal("Expected identical texts to embed identically")
		}
	}
	if len(vecs[2]) != 64 {
		t.Errorf("Expected 64 dimensions, got %d", len(vecs[2]))
	}

	var norm float64
	for _, v := range vecs[0] {
		norm += float64(v) * float64(v)
	}
	if math.Abs(norm-1) > 1e-5 {
		t.Errorf("Expected unit vector, got norm %v", norm)
	}
	if !e.Local() {
		t.Error("Hash embedder is local")
	}
}
