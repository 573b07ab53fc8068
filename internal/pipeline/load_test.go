package pipeline

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadRequest_JSON(t *testing.T) {
	path := writeFile(t, "req.json", `{
  "id": "q1",
  "query": "cache warmer",
  "answer": "The warmer runs nightly.",
  "vector": [{"id": "a", "source_document_id": "d", "text": "The warmer runs nightly.", "score": 0.9}]
}`)

	req, err := LoadRequest(path)
	require.NoError(t, err)
	assert.Equal(t, "q1", req.ID)
	require.Len(t, req.Vector, 1)
	assert.Equal(t, "d", req.Vector[0].SourceDocumentID)
}

func TestLoadRequest_YAML(t *testing.T) {
	path := writeFile(t, "req.yaml", `
id: q2
query: cache warmer
claims:
  - id: c1
    text: The warmer runs nightly.
    is_strong: true
lexical:
  - id: a
    source_document_id: d
    text: The warmer runs nightly.
    score: 3.2
`)

	req, err := LoadRequest(path)
	require.NoError(t, err)
	require.Len(t, req.Claims, 1)
	assert.True(t, req.Claims[0].IsStrong)
	assert.Empty(t, req.Vector)
	assert.Equal(t, 3.2, req.Lexical[0].Score)
}

func TestLoadRequest_Rejects(t *testing.T) {
	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"no chunks", "a.json", `{"query": "q", "answer": "x"}`},
		{"no answer", "b.json", `{"query": "q", "vector": [{"id": "a"}]}`},
		{"bad json", "c.json", `{"query": `},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadRequest(writeFile(t, tt.file, tt.content))
			assert.Error(t, err)
		})
	}

	_, err := LoadRequest(filepath.Join(t.TempDir(), "missing.json"))
	assert.Error(t, err)
}
