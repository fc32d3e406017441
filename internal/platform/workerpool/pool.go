// Package workerpool runs fire-and-forget tasks on a fixed set of goroutines
// fed by a bounded backlog.
package workerpool

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

var (
	ErrBacklogFull = errors.New("worker pool backlog full")
	ErrStopped     = errors.New("worker pool stopped")
)

// Task is a unit of work. The context is the pool's base context and is
// cancelled when Stop's deadline passes.
type Task func(ctx context.Context)

// Observer receives pool events. All methods may be called concurrently.
type Observer interface {
	TaskSubmitted()
	TaskRejected()
	TaskPanicked()
}

type noopObserver struct{}

func (noopObserver) TaskSubmitted() {}
func (noopObserver) TaskRejected() {}
func (noopObserver) TaskPanicked() {}

type Pool struct {
	name     string
	tasks    chan Task
	group    *errgroup.Group
	cancel   context.CancelFunc
	observer Observer

	mu      sync.RWMutex
	stopped bool
}

// New starts workers goroutines draining a backlog of the given capacity.
// A nil observer is allowed.
func New(name string, workers, backlog int, observer Observer) *Pool {
	if workers < 1 {
		workers = 1
	}
	if backlog < 0 {
		backlog = 0
	}
	if observer == nil {
		observer = noopObserver{}
	}

	ctx, cancel := context.WithCancel(context.Background())
	g, ctx := errgroup.WithContext(ctx)

	p := &Pool{
		name:     name,
		tasks:    make(chan Task, backlog),
		group:    g,
		cancel:   cancel,
		observer: observer,
	}

	for range workers {
		g.Go(func() error {
			p.work(ctx)
			return nil
		})
	}
	return p
}

// Submit enqueues a task without blocking.
func (p *Pool) Submit(task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.stopped {
		return ErrStopped
	}

	select {
	case p.tasks <- task:
		p.observer.TaskSubmitted()
		return nil
	default:
		p.observer.TaskRejected()
		return ErrBacklogFull
	}
}

// Stop refuses new tasks, lets the workers drain the backlog and waits for
// them. If ctx expires first, running tasks see their context cancelled.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return nil
	}
	p.stopped = true
	close(p.tasks)
	p.mu.Unlock()

	done := make(chan struct{})
	go func() {
		_ = p.group.Wait()
		close(done)
	}()

	select {
	case <-done:
		p.cancel()
		return nil
	case <-ctx.Done():
		p.cancel()
		<-done
		return fmt.Errorf("worker pool %s stop: %w", p.name, ctx.Err())
	}
}

func (p *Pool) work(ctx context.Context) {
	for task := range p.tasks {
		p.run(ctx, task)
	}
}

func (p *Pool) run(ctx context.Context, task Task) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("Worker task panic recovered", "pool", p.name, "panic", r)
			p.observer.TaskPanicked()
		}
	}()
	task(ctx)
}
