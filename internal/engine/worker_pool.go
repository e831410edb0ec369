package engine

import (
	"context"
	"sync"
	"sync/atomic"
)

// workerPool is a fixed-size goroutine pool with a bounded input queue.
type workerPool[T any] struct {
	queue   chan T
	process func(ctx context.Context, t T)
	wg      sync.WaitGroup
	busy    atomic.Int64
	closing sync.Once
}

// newWorkerPool creates and starts a pool with n goroutines and queue capacity size.
func newWorkerPool[T any](ctx context.Context, n, size int, fn func(context.Context, T)) *workerPool[T] {
	p := &workerPool[T]{
		queue:   make(chan T, size),
		process: fn,
	}
	for i := 0; i < n; i++ {
		p.wg.Add(1)
		go func() {
			defer p.wg.Done()
			p.run(ctx)
		}()
	}
	return p
}

func (p *workerPool[T]) run(ctx context.Context) {
	for {
		select {
		case t, ok := <-p.queue:
			if !ok {
				return
			}
			p.busy.Add(1)
			p.process(ctx, t)
			p.busy.Add(-1)
		case <-ctx.Done():
			return
		}
	}
}

// Submit enqueues work without blocking (returns false if full).
func (p *workerPool[T]) Submit(t T) (ok bool) {
	defer func() {
		// send on a drained pool
		if recover() != nil {
			ok = false
		}
	}()
	select {
	case p.queue <- t:
		return true
	default:
		return false
	}
}

// Drain closes the queue and waits for queued work to finish. Safe to call
// more than once.
func (p *workerPool[T]) Drain() {
	p.closing.Do(func() { close(p.queue) })
	p.wg.Wait()
}

// QueueLen returns how many items are currently queued.
func (p *workerPool[T]) QueueLen() int {
	return len(p.queue)
}

// QueueCap returns the total queue capacity.
func (p *workerPool[T]) QueueCap() int {
	return cap(p.queue)
}

// Busy returns the number of workers currently processing.
func (p *workerPool[T]) Busy() int {
	return int(p.busy.Load())
}
