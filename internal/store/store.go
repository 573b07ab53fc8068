// Package store provides read-only chunk lookup for requests that carry
// chunk ids without text.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/entail/internal/model"
)

// ErrNotFound is returned for an unknown chunk id
var ErrNotFound = errors.New("store: chunk not found")

// Chunk is a stored passage
type Chunk struct {
	ID               string `json:"id"`
	SourceDocumentID string `json:"source_document_id"`
	Text             string `json:"text"`
}

// Document is a whole source document that is split into chunks on load
type Document struct {
	ID   string `json:"id"`
	HTML string `json:"html,omitempty"`
	Text string `json:"text,omitempty"`
}

// DocumentStore looks chunks up by id
type DocumentStore interface {
	Get(ctx context.Context, id string) (Chunk, error)
}

// MemoryStore keeps every chunk in a map
type MemoryStore struct {
	chunks map[string]Chunk
}

// NewMemoryStore creates a store holding chunks. Later duplicates win.
func NewMemoryStore(chunks []Chunk) *MemoryStore {
	s := &MemoryStore{chunks: make(map[string]Chunk, len(chunks))}
	for _, c := range chunks {
		s.chunks[c.ID] = c
	}
	return s
}

// Get returns the chunk with the given id
func (s *MemoryStore) Get(_ context.Context, id string) (Chunk, error) {
	c, ok := s.chunks[id]
	if !ok {
		return Chunk{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return c, nil
}

// Len returns the number of chunks
func (s *MemoryStore) Len() int {
	return len(s.chunks)
}

type storeFile struct {
	Chunks    []Chunk    `json:"chunks"`
	Documents []Document `json:"documents"`
}

// LoadFile reads a JSON store file. It holds pre-chunked passages under
// "chunks", whole documents under "documents", or both. Documents are split
// into one chunk per block element, with ids "<doc>#p<n>".
func LoadFile(path string) (*MemoryStore, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read store %s: %w", path, err)
	}

	var f storeFile
	if err := json.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("failed to parse store %s: %w", path, err)
	}

	chunks := f.Chunks
	for _, doc := range f.Documents {
		chunks = append(chunks, ChunkDocument(doc)...)
	}
	return NewMemoryStore(chunks), nil
}

// FillText completes ranked chunks whose text or source document is missing.
// Chunks the store does not know are left as they are and reported in the
// returned error.
func FillText(ctx context.Context, s DocumentStore, lists ...[]model.RankedChunk) error {
	if s == nil {
		return nil
	}

	var missing []string
	for _, list := range lists {
		for i := range list {
			rc := &list[i]
			if strings.TrimSpace(rc.Text) != "" && rc.SourceDocumentID != "" {
				continue
			}
			c, err := s.Get(ctx, rc.ID)
			if err != nil {
				if errors.Is(err, ErrNotFound) {
					missing = append(missing, rc.ID)
					continue
				}
				return err
			}
			if strings.TrimSpace(rc.Text) == "" {
				rc.Text = c.Text
			}
			if rc.SourceDocumentID == "" {
				rc.SourceDocumentID = c.SourceDocumentID
			}
		}
	}

	if len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, strings.Join(missing, ", "))
	}
	return nil
}
