package service

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"
)

// Task is a unit of detached side-effect work (receipt writes, analytics,
// push dispatch). Tasks must tolerate being dropped under overload.
type Task func(ctx context.Context)

// WorkerPool runs side effects off the relay hot path on a fixed number of
// goroutines with a bounded queue. Overflow drops the task with a log line
// instead of blocking a connection goroutine.
type WorkerPool struct {
	tasks  chan queuedTask
	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu     sync.Mutex
	closed bool
}

type queuedTask struct {
	name string
	run  Task
}

func NewWorkerPool(workers, queueSize int) *WorkerPool {
	ctx, cancel := context.WithCancel(context.Background())
	p := &WorkerPool{
		tasks:  make(chan queuedTask, queueSize),
		ctx:    ctx,
		cancel: cancel,
	}

	for i := 0; i < workers; i++ {
		p.wg.Add(1)
		go p.worker()
	}

	log.Info().Int("workers", workers).Int("queueSize", queueSize).Msg("worker pool started")
	return p
}

func (p *WorkerPool) worker() {
	defer p.wg.Done()
	for task := range p.tasks {
		p.runTask(task)
	}
}

func (p *WorkerPool) runTask(task queuedTask) {
	defer func() {
		if r := recover(); r != nil {
			log.Error().Interface("panic", r).Str("task", task.name).Msg("side effect panicked")
		}
	}()
	task.run(p.ctx)
}

// Submit queues a task. Returns false if the queue is full or the pool is
// closed; the task is dropped and logged, never run inline.
func (p *WorkerPool) Submit(name string, task Task) bool {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		log.Warn().Str("task", name).Msg("worker pool closed, dropping task")
		return false
	}

	select {
	case p.tasks <- queuedTask{name: name, run: task}:
		p.mu.Unlock()
		return true
	default:
		p.mu.Unlock()
		log.Warn().Str("task", name).Msg("worker pool queue full, dropping task")
		return false
	}
}

// Close stops intake and waits for queued tasks to drain.
func (p *WorkerPool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	close(p.tasks)
	p.mu.Unlock()

	p.wg.Wait()
	p.cancel()
	log.Info().Msg("worker pool stopped")
}
