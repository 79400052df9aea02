package syncer

import (
	"context"
	"errors"
	"sync"

	"github.com/smith3v/quizsync/pkg/logger"
)

var (
	ErrQueueFull   = errors.New("task queue is full")
	ErrQueueClosed = errors.New("task queue is closed")
)

type Task func(ctx context.Context)

// TaskQueue runs background work on a fixed number of workers. Wait lets
// callers block until everything submitted so far has finished.
type TaskQueue struct {
	ctx     context.Context
	tasks   chan Task
	workers sync.WaitGroup

	mu      sync.Mutex
	closed  bool
	pending int
	idle    chan struct{}
}

func NewTaskQueue(ctx context.Context, workers, size int) *TaskQueue {
	if workers <= 0 {
		workers = 1
	}
	if size < 0 {
		size = 0
	}
	idle := make(chan struct{})
	close(idle)
	q := &TaskQueue{
		ctx:   ctx,
		tasks: make(chan Task, size),
		idle:  idle,
	}
	for i := 0; i < workers; i++ {
		q.workers.Add(1)
		go q.work()
	}
	return q
}

// Submit enqueues task without blocking.
func (q *TaskQueue) Submit(task Task) error {
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.closed {
		return ErrQueueClosed
	}
	select {
	case q.tasks <- task:
	default:
		return ErrQueueFull
	}
	if q.pending == 0 {
		q.idle = make(chan struct{})
	}
	q.pending++
	return nil
}

// Wait blocks until no task is queued or running, or ctx ends.
func (q *TaskQueue) Wait(ctx context.Context) error {
	q.mu.Lock()
	idle := q.idle
	q.mu.Unlock()
	select {
	case <-idle:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops accepting tasks and waits for the workers to drain the queue.
func (q *TaskQueue) Close() {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return
	}
	q.closed = true
	close(q.tasks)
	q.mu.Unlock()
	q.workers.Wait()
}

func (q *TaskQueue) work() {
	defer q.workers.Done()
	for task := range q.tasks {
		q.run(task)
	}
}

func (q *TaskQueue) run(task Task) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("background task panicked", "panic", r)
		}
		q.mu.Lock()
		q.pending--
		if q.pending == 0 {
			close(q.idle)
		}
		q.mu.Unlock()
	}()
	task(q.ctx)
}
