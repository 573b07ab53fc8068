package llm

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"net/http"
	"strings"
	"time"

	"github.com/sashabaranov/go-openai"

	"github.com/ppiankov/entail/internal/extract"
	"github.com/ppiankov/entail/internal/model"
)

// Embedder turns text into fixed-dimension vectors
type Embedder interface {
	// Name returns the embedder name
	Name() string

	// Embed returns one vector per input text, in input order
	Embed(ctx context.Context, texts []string) ([][]float32, error)

	// Local reports whether the embedder runs in-process without external calls
	Local() bool
}

// NewEmbedder creates the embedder named by config. It returns nil, nil when
// embeddings are disabled, in which case the cosine signal is missing.
func NewEmbedder(config model.EmbeddingConfig, timeout time.Duration) (Embedder, error) {
	switch strings.ToLower(config.Provider) {
	case "hash":
		return NewHashEmbedder(config.Dimensions), nil
	case "openai":
		if config.APIKey == "" {
			return nil, fmt.Errorf("OpenAI API key is required for embeddings")
		}
		return NewOpenAIEmbedder(Config{APIKey: config.APIKey, BaseURL: config.BaseURL, Model: config.Model, Timeout: timeout}), nil
	case "ollama":
		return NewOllamaEmbedder(Config{BaseURL: config.BaseURL, Model: config.Model, Timeout: timeout}), nil
	case "", "none":
		return nil, nil
	default:
		return nil, fmt.Errorf("unknown embedding provider: %s (supported: hash, openai, ollama)", config.Provider)
	}
}

// HashEmbedder projects content tokens into a fixed number of buckets with
// FNV hashing. It is deterministic and needs no network.
type HashEmbedder struct {
	dims int
}

// NewHashEmbedder creates a hash embedder
func NewHashEmbedder(dims int) *HashEmbedder {
	if dims <= 0 {
		dims = 256
	}
	return &HashEmbedder{dims: dims}
}

// Name returns the embedder name
func (e *HashEmbedder) Name() string { return "hash" }

// Local reports that no external call is made
func (e *HashEmbedder) Local() bool { return true }

// Embed hashes unigrams and adjacent bigrams into signed buckets and
// L2-normalizes the result
func (e *HashEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, text := range texts {
		vec := make([]float32, e.dims)
		tokens := extract.Tokenize(text)
		for j, t := range tokens {
			e.add(vec, t, 1)
			if j > 0 {
				e.add(vec, tokens[j-1]+" "+t, 0.5)
			}
		}
		normalize(vec)
		out[i] = vec
	}
	return out, nil
}

func (e *HashEmbedder) add(vec []float32, feature string, weight float32) {
	h := fnv.New64a()
	_, _ = h.Write([]byte(feature))
	sum := h.Sum64()
	idx := int(sum % uint64(e.dims))
	if sum&(1<<63) != 0 {
		weight = -weight
	}
	vec[idx] += weight
}

func normalize(vec []float32) {
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return
	}
	scale := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= scale
	}
}

// OpenAIEmbedder uses the OpenAI embeddings endpoint
type OpenAIEmbedder struct {
	client *openai.Client
	model  string
}

// NewOpenAIEmbedder creates an OpenAI embedder
func NewOpenAIEmbedder(config Config) *OpenAIEmbedder {
	model := config.Model
	if model == "" {
		model = string(openai.SmallEmbedding3)
	}
	return &OpenAIEmbedder{client: newOpenAIClient(config), model: model}
}

// Name returns the embedder name
func (e *OpenAIEmbedder) Name() string { return "openai" }

// Local reports that calls leave the process
func (e *OpenAIEmbedder) Local() bool { return false }

// Embed embeds all texts in one request
func (e *OpenAIEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}

	resp, err := e.client.CreateEmbeddings(ctx, openai.EmbeddingRequest{
		Input: texts,
		Model: openai.EmbeddingModel(e.model),
	})
	if err != nil {
		return nil, fmt.Errorf("create embeddings: %w", err)
	}

	results := make([][]float32, len(texts))
	for _, data := range resp.Data {
		if data.Index < 0 || data.Index >= len(results) {
			return nil, fmt.Errorf("%w: embedding index %d out of range", ErrMalformedResponse, data.Index)
		}
		results[data.Index] = data.Embedding
	}
	return results, nil
}

// OllamaEmbedder uses the Ollama /api/embeddings endpoint
type OllamaEmbedder struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

type ollamaEmbeddingRequest struct {
	Model  string `json:"model"`
	Prompt string `json:"prompt"`
}

type ollamaEmbeddingResponse struct {
	Embedding []float32 `json:"embedding"`
}

// NewOllamaEmbedder creates an Ollama embedder
func NewOllamaEmbedder(config Config) *OllamaEmbedder {
	baseURL := config.BaseURL
	if baseURL == "" {
		baseURL = defaultOllamaURL
	}
	model := config.Model
	if model == "" {
		model = "nomic-embed-text"
	}
	return &OllamaEmbedder{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		model:      model,
		httpClient: newHTTPClient(config, 60*time.Second),
	}
}

// Name returns the embedder name
func (e *OllamaEmbedder) Name() string { return "ollama" }

// Local reports that calls leave the process
func (e *OllamaEmbedder) Local() bool { return false }

// Embed embeds texts one request at a time
func (e *OllamaEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	results := make([][]float32, len(texts))
	for i, text := range texts {
		var resp ollamaEmbeddingResponse
		err := postJSON(ctx, e.httpClient, "ollama", e.baseURL+"/api/embeddings", ollamaEmbeddingRequest{Model: e.model, Prompt: text}, &resp)
		if err != nil {
			return nil, fmt.Errorf("embed text %d: %w", i, err)
		}
		if len(resp.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty embedding for text %d", ErrMalformedResponse, i)
		}
		results[i] = resp.Embedding
	}
	return results, nil
}
