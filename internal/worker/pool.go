package worker

import (
	"context"
	"sync"
)

// Job represents a unit of work to be executed
type Job interface {
	Execute(ctx context.Context) Result
}

// Result represents the result of a job execution
type Result interface {
	GetError() error
}

type indexed struct {
	index  int
	result Result
}

// Pool runs jobs on a fixed number of workers and returns results in
// submission order, whatever order they complete in. Every submitted job is
// executed; cancellation reaches jobs through their context only, so a job
// can still produce a fallback result.
type Pool struct {
	workers   int
	jobQueue  chan indexedJob
	results   chan indexed
	collected []Result
	submitted int

	wg         sync.WaitGroup
	collectWG  sync.WaitGroup
	ctx        context.Context
	cancelFunc context.CancelFunc
	mu         sync.Mutex // guards submitted and closed
	resultsMu  sync.Mutex
	closed     bool
	waitOnce   sync.Once
}

type indexedJob struct {
	index int
	job   Job
}

// NewPool creates a new worker pool with the specified number of workers.
// Jobs receive a context derived from ctx.
func NewPool(ctx context.Context, workers int) *Pool {
	if workers <= 0 {
		workers = 1
	}

	ctx, cancel := context.WithCancel(ctx)

	return &Pool{
		workers:    workers,
		jobQueue:   make(chan indexedJob, workers*2),
		results:    make(chan indexed, workers*2),
		ctx:        ctx,
		cancelFunc: cancel,
	}
}

// Start starts the workers and the result collector
func (p *Pool) Start() {
	p.collectWG.Add(1)
	go p.collect()

	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}
}

func (p *Pool) worker() {
	defer p.wg.Done()

	for item := range p.jobQueue {
		p.results <- indexed{index: item.index, result: item.job.Execute(p.ctx)}
	}
}

func (p *Pool) collect() {
	defer p.collectWG.Done()

	for r := range p.results {
		p.resultsMu.Lock()
		for len(p.collected) <= r.index {
			p.collected = append(p.collected, nil)
		}
		p.collected[r.index] = r.result
		p.resultsMu.Unlock()
	}
}

// Submit queues a job and returns its position in the result slice. Jobs
// submitted after Wait or Shutdown are ignored and get -1.
func (p *Pool) Submit(job Job) int {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.closed {
		return -1
	}
	index := p.submitted
	p.submitted++
	p.jobQueue <- indexedJob{index: index, job: job}
	return index
}

// Wait waits for all submitted jobs and returns their results in submission order
func (p *Pool) Wait() []Result {
	p.waitOnce.Do(func() {
		p.mu.Lock()
		p.closed = true
		close(p.jobQueue)
		p.mu.Unlock()

		p.wg.Wait()
		close(p.results)
		p.collectWG.Wait()
		p.cancelFunc()
	})

	p.mu.Lock()
	n := p.submitted
	p.mu.Unlock()

	p.resultsMu.Lock()
	defer p.resultsMu.Unlock()

	out := make([]Result, n)
	copy(out, p.collected)
	return out
}

// Shutdown cancels the context seen by running and queued jobs and waits for them
func (p *Pool) Shutdown() []Result {
	p.cancelFunc()
	return p.Wait()
}
