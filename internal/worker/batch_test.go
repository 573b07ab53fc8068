package worker

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ppiankov/entail/internal/model"
)

// mockEvaluator implements Evaluator
type mockEvaluator struct {
	shouldError bool
}

func (m *mockEvaluator) Evaluate(ctx context.Context, req *model.EvaluationRequest) (*model.Result, error) {
	time.Sleep(5 * time.Millisecond) // Simulate work
	if m.shouldError {
		return nil, errors.New("evaluate error")
	}
	return &model.Result{RequestID: req.ID, Query: req.Query}, nil
}

func writeTemp(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "requests.jsonl")
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestBatchProcessor_ProcessRequests(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	reqs := []*model.EvaluationRequest{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	results := processor.ProcessRequests(context.Background(), reqs)

	if len(results) != 3 {
		t.Fatalf("expected 3 results, got %d", len(results))
	}

	for i, res := range results {
		if res.Error != nil {
			t.Errorf("unexpected error for %s: %v", res.RequestID, res.Error)
		}
		if res.RequestID != reqs[i].ID || res.Result.RequestID != reqs[i].ID {
			t.Errorf("result %d out of order: %s", i, res.RequestID)
		}
	}
}

func TestBatchProcessor_ProcessRequests_Error(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{shouldError: true}, 2)

	results := processor.ProcessRequests(context.Background(), []*model.EvaluationRequest{{ID: "x"}})

	if len(results) != 1 {
		t.Fatalf("expected 1 result, got %d", len(results))
	}
	if results[0].GetError() == nil {
		t.Error("expected error, got nil")
	}
	if results[0].Result != nil {
		t.Error("expected nil result on error")
	}
}

func TestBatchProcessor_ProcessRequests_Empty(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	results := processor.ProcessRequests(context.Background(), nil)
	if len(results) != 0 {
		t.Errorf("expected 0 results, got %d", len(results))
	}
}

func TestReadRequestsFromFile(t *testing.T) {
	path := writeTemp(t, `{"id": "r1", "query": "q1", "answer": "a1"}
# comment

{"query": "no id"}
{"id": "r1", "query": "duplicate"}
`)

	reqs, err := ReadRequestsFromFile(path)
	if err != nil {
		t.Fatalf("ReadRequestsFromFile failed: %v", err)
	}

	if len(reqs) != 2 {
		t.Fatalf("expected 2 requests, got %d", len(reqs))
	}
	if reqs[0].Query != "q1" {
		t.Errorf("expected first request to keep its query, got %q", reqs[0].Query)
	}
	if reqs[1].ID != "line-4" {
		t.Errorf("expected generated id line-4, got %q", reqs[1].ID)
	}
}

func TestReadRequestsFromFile_BadLine(t *testing.T) {
	path := writeTemp(t, "{\"id\": \"ok\"}\n{not json\n")

	_, err := ReadRequestsFromFile(path)
	if err == nil {
		t.Fatal("expected error for malformed line")
	}
}

func TestReadRequestsFromFile_NonExistent(t *testing.T) {
	_, err := ReadRequestsFromFile("non_existent_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}

func TestBatchProcessor_ProcessFile(t *testing.T) {
	path := writeTemp(t, "{\"id\": \"a\"}\n{\"id\": \"b\"}\n")

	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	results, err := processor.ProcessFile(context.Background(), path)
	if err != nil {
		t.Fatalf("ProcessFile failed: %v", err)
	}
	if len(results) != 2 {
		t.Errorf("expected 2 results, got %d", len(results))
	}
}

func TestBatchProcessor_ProcessFile_NonExistent(t *testing.T) {
	processor := NewBatchProcessor(&mockEvaluator{}, 2)

	_, err := processor.ProcessFile(context.Background(), "no_such_file.jsonl")
	if err == nil {
		t.Error("expected error for non-existent file, got nil")
	}
}
