package worker

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/ppiankov/entail/internal/model"
)

// Evaluator evaluates one request
type Evaluator interface {
	Evaluate(ctx context.Context, req *model.EvaluationRequest) (*model.Result, error)
}

// EvalJob evaluates one request
type EvalJob struct {
	Request   *model.EvaluationRequest
	Evaluator Evaluator
}

// Execute executes the evaluation job
func (j *EvalJob) Execute(ctx context.Context) Result {
	result, err := j.Evaluator.Evaluate(ctx, j.Request)
	return &EvalResult{
		RequestID: j.Request.ID,
		Result:    result,
		Error:     err,
	}
}

// EvalResult represents the result of an evaluation job
type EvalResult struct {
	RequestID string
	Result    *model.Result
	Error     error
}

// GetError returns the error from the evaluation
func (r *EvalResult) GetError() error {
	return r.Error
}

// BatchProcessor evaluates many requests concurrently
type BatchProcessor struct {
	evaluator   Evaluator
	concurrency int
}

// NewBatchProcessor creates a new batch processor
func NewBatchProcessor(evaluator Evaluator, concurrency int) *BatchProcessor {
	return &BatchProcessor{
		evaluator:   evaluator,
		concurrency: concurrency,
	}
}

// ProcessRequests evaluates requests concurrently. Results are in input order.
func (b *BatchProcessor) ProcessRequests(ctx context.Context, reqs []*model.EvaluationRequest) []*EvalResult {
	if len(reqs) == 0 {
		return []*EvalResult{}
	}

	pool := NewPool(ctx, b.concurrency)
	pool.Start()

	for _, req := range reqs {
		pool.Submit(&EvalJob{
			Request:   req,
			Evaluator: b.evaluator,
		})
	}

	results := pool.Wait()

	evalResults := make([]*EvalResult, len(results))
	for i, result := range results {
		evalResults[i] = result.(*EvalResult)
	}

	return evalResults
}

// ProcessFile reads requests from a JSONL file and evaluates them concurrently
func (b *BatchProcessor) ProcessFile(ctx context.Context, filePath string) ([]*EvalResult, error) {
	reqs, err := ReadRequestsFromFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read requests: %w", err)
	}

	return b.ProcessRequests(ctx, reqs), nil
}

// maxLineBytes bounds one JSONL request; chunk lists can be long
const maxLineBytes = 16 << 20

// ReadRequestsFromFile reads one JSON request per line. Blank lines and lines
// starting with # are skipped, and requests repeating an earlier id are
// dropped. Requests without an id are numbered by line.
func ReadRequestsFromFile(filePath string) ([]*model.EvaluationRequest, error) {
	file, err := os.Open(filePath)
	if err != nil {
		return nil, fmt.Errorf("open file: %w", err)
	}
	defer func() { _ = file.Close() }()

	var reqs []*model.EvaluationRequest
	seen := make(map[string]bool)

	scanner := bufio.NewScanner(file)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		var req model.EvaluationRequest
		if err := json.Unmarshal([]byte(line), &req); err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		if req.ID == "" {
			req.ID = fmt.Sprintf("line-%d", lineNo)
		}

		if !seen[req.ID] {
			seen[req.ID] = true
			reqs = append(reqs, &req)
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("scan file: %w", err)
	}

	return reqs, nil
}
