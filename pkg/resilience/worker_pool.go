package resilience

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
)

var ErrWorkerPoolClosed = errors.New("worker pool is closed")

// WorkerPool runs submitted jobs on a fixed number of goroutines.
// A pool with one worker runs jobs strictly in submission order.
type WorkerPool struct {
	jobs chan func()

	// mu guards closed and the jobs channel against send-after-close.
	mu     sync.RWMutex
	closed bool

	wg     sync.WaitGroup
	active atomic.Int64
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	if workers <= 0 {
		workers = 1
	}
	if queueSize < 0 {
		queueSize = 0
	}

	p := &WorkerPool{jobs: make(chan func(), queueSize)}
	p.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go p.work()
	}
	return p
}

func (p *WorkerPool) work() {
	defer p.wg.Done()
	for job := range p.jobs {
		p.active.Add(1)
		job()
		p.active.Add(-1)
	}
}

// Submit queues job, blocking while the queue is full. It returns ctx.Err() if ctx
// ends first and ErrWorkerPoolClosed after Close.
func (p *WorkerPool) Submit(ctx context.Context, job func()) error {
	if job == nil {
		return nil
	}

	p.mu.RLock()
	defer p.mu.RUnlock()
	if p.closed {
		return ErrWorkerPoolClosed
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case p.jobs <- job:
		return nil
	}
}

// Close stops accepting jobs. Queued jobs still run.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	close(p.jobs)
}

// Wait blocks until every queued job has finished. Call Close first.
func (p *WorkerPool) Wait() {
	p.wg.Wait()
}

// Active reports how many jobs are executing right now.
func (p *WorkerPool) Active() int {
	return int(p.active.Load())
}
