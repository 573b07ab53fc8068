package inference

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/ppiankov/entail/internal/cache"
	"github.com/ppiankov/entail/internal/llm"
)

// Embedder serves vectors from cache and sends only the misses, as one
// batch, through the orchestrator. Local embedders are called directly.
type Embedder struct {
	orch  *Orchestrator
	inner llm.Embedder
}

// NewEmbedder wraps inner
func NewEmbedder(orch *Orchestrator, inner llm.Embedder) *Embedder {
	return &Embedder{orch: orch, inner: inner}
}

// Name returns the wrapped embedder name
func (e *Embedder) Name() string { return e.inner.Name() }

// Local reports whether the wrapped embedder is local
func (e *Embedder) Local() bool { return e.inner.Local() }

// Embed returns one vector per text, in input order
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if e.inner.Local() {
		return e.inner.Embed(ctx, texts)
	}

	out := make([][]float32, len(texts))
	keys := make([]string, len(texts))
	var missIdx []int
	var misses []string
	seen := make(map[string]int)

	for i, text := range texts {
		keys[i] = cache.CacheKey(llm.KindEmbedding, text, e.inner.Name())
		if raw, ok := e.orch.Lookup(keys[i]); ok {
			var vec []float32
			if err := json.Unmarshal(raw, &vec); err == nil {
				out[i] = vec
				continue
			}
		}
		if _, dup := seen[text]; !dup {
			seen[text] = len(misses)
			misses = append(misses, text)
		}
		missIdx = append(missIdx, i)
	}
	if len(misses) == 0 {
		return out, nil
	}

	raw, _, err := e.orch.Call(ctx, llm.KindEmbedding, strings.Join(misses, "\x1e"), e.inner.Name(), func(ctx context.Context) ([]byte, error) {
		vecs, err := e.inner.Embed(ctx, misses)
		if err != nil {
			return nil, err
		}
		return json.Marshal(vecs)
	})
	if err != nil {
		return nil, err
	}

	var vecs [][]float32
	if err := json.Unmarshal(raw, &vecs); err != nil {
		return nil, fmt.Errorf("%w: embedding batch: %v", llm.ErrMalformedResponse, err)
	}
	if len(vecs) != len(misses) {
		return nil, fmt.Errorf("%w: embedding batch has %d vectors for %d texts", llm.ErrMalformedResponse, len(vecs), len(misses))
	}

	for j, text := range misses {
		if encoded, err := json.Marshal(vecs[j]); err == nil {
			e.orch.Store(cache.CacheKey(llm.KindEmbedding, text, e.inner.Name()), encoded)
		}
	}
	for _, i := range missIdx {
		out[i] = vecs[seen[texts[i]]]
	}
	return out, nil
}
