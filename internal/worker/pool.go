package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
)

// ErrPoolStopped is returned by Submit once Stop has been called
var ErrPoolStopped = errors.New("worker pool stopped")

// ExecutorFunc scans the page of a single job
type ExecutorFunc func(ctx context.Context, job Job) Result

// WorkerPool manages a pool of worker goroutines for concurrent page scans
type WorkerPool struct {
	workers    int
	jobs       chan Job
	executorFn ExecutorFunc
	wg         sync.WaitGroup
	ctx        context.Context
	cancel     context.CancelFunc

	mu      sync.RWMutex
	stopped bool
}

// NewWorkerPool creates a new worker pool
func NewWorkerPool(workers int, jobQueueSize int) *WorkerPool {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())

	return &WorkerPool{
		workers: workers,
		jobs:    make(chan Job, jobQueueSize),
		ctx:     ctx,
		cancel:  cancel,
	}
}

// SetExecutor sets the executor function that will process jobs. Call before Start.
func (wp *WorkerPool) SetExecutor(fn ExecutorFunc) {
	wp.executorFn = fn
}

// Start starts the worker pool
func (wp *WorkerPool) Start() {
	slog.Info("Starting worker pool", "workers", wp.workers)

	for i := 0; i < wp.workers; i++ {
		wp.wg.Add(1)
		go wp.worker(i)
	}
}

// Stop stops accepting jobs and waits for queued jobs to finish
func (wp *WorkerPool) Stop() {
	wp.mu.Lock()
	if wp.stopped {
		wp.mu.Unlock()
		return
	}
	wp.stopped = true
	close(wp.jobs)
	wp.mu.Unlock()

	slog.Info("Stopping worker pool")

	wp.wg.Wait()
	wp.cancel()

	slog.Info("Worker pool stopped")
}

// Submit queues a job, blocking while the queue is full
func (wp *WorkerPool) Submit(ctx context.Context, job Job) error {
	wp.mu.RLock()
	defer wp.mu.RUnlock()

	if wp.stopped {
		return ErrPoolStopped
	}

	select {
	case wp.jobs <- job:
		slog.Debug("Job submitted to worker pool",
			"page_id", job.Page.ID,
			"batch_id", job.BatchID,
		)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-wp.ctx.Done():
		return ErrPoolStopped
	}
}

// worker is the worker goroutine that processes jobs
func (wp *WorkerPool) worker(id int) {
	defer wp.wg.Done()

	slog.Debug("Worker started", "worker_id", id)

	for job := range wp.jobs {
		slog.Debug("Worker processing job",
			"worker_id", id,
			"page_id", job.Page.ID,
			"batch_id", job.BatchID,
		)

		result := wp.run(job)
		if job.Reply != nil {
			job.Reply <- result
		}
	}

	slog.Debug("Worker stopped", "worker_id", id)
}

func (wp *WorkerPool) run(job Job) (result Result) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Scan job panicked", "page_id", job.Page.ID, "panic", r)
			result = Result{PageID: job.Page.ID, Error: fmt.Errorf("scan of page %s panicked: %v", job.Page.ID, r)}
		}
	}()

	ctx := job.Context
	if ctx == nil {
		ctx = wp.ctx
	}
	result = wp.executorFn(ctx, job)
	result.PageID = job.Page.ID
	return result
}

// GetJobQueueLength returns the current number of jobs in the queue
func (wp *WorkerPool) GetJobQueueLength() int {
	return len(wp.jobs)
}
