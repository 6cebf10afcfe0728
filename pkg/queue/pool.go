package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/charmbracelet/log"
)

var (
	ErrFull    = errors.New("queue is full")
	ErrStopped = errors.New("queue is stopped")
)

// Pool runs queued work on a fixed number of workers.
type Pool[T any] struct {
	name    string
	workers int
	items   chan *item[T]
	stop    chan struct{}

	mu      sync.Mutex
	started bool
	stopped bool
	wg      sync.WaitGroup
}

type item[T any] struct {
	ctx      context.Context
	work     Work[T]
	response chan T
	err      chan error
}

var _ Queue[int] = (*Pool[int])(nil)

func New[T any](name string, workers, capacity int) *Pool[T] {
	return &Pool[T]{
		name:    name,
		workers: max(workers, 1),
		items:   make(chan *item[T], max(capacity, 1)),
		stop:    make(chan struct{}),
	}
}

func (p *Pool[T]) Start() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started || p.stopped {
		return
	}
	p.started = true
	for range p.workers {
		p.wg.Add(1)
		go p.processLoop()
	}
	log.Info("queue started", "queue", p.name, "workers", p.workers)
}

func (p *Pool[T]) Stop() {
	p.mu.Lock()
	if p.stopped {
		p.mu.Unlock()
		return
	}
	p.stopped = true
	close(p.stop)
	p.mu.Unlock()

	p.wg.Wait()
	log.Info("queue stopped", "queue", p.name)
}

// Add enqueues work without blocking. Exactly one of the returned channels
// receives a value; the other is closed.
func (p *Pool[T]) Add(ctx context.Context, work Work[T]) (chan T, chan error, error) {
	p.mu.Lock()
	stopped := p.stopped
	p.mu.Unlock()
	if stopped {
		return nil, nil, ErrStopped
	}

	respCh := make(chan T, 1)
	errCh := make(chan error, 1)

	select {
	case p.items <- &item[T]{ctx: ctx, work: work, response: respCh, err: errCh}:
		return respCh, errCh, nil
	default:
		return nil, nil, ErrFull
	}
}

// Do enqueues work and waits for its result.
func (p *Pool[T]) Do(ctx context.Context, work Work[T]) (T, error) {
	var zero T
	respCh, errCh, err := p.Add(ctx, work)
	if err != nil {
		return zero, err
	}
	select {
	case <-ctx.Done():
		return zero, ctx.Err()
	case err, ok := <-errCh:
		if ok {
			return zero, err
		}
		return <-respCh, nil
	case v, ok := <-respCh:
		if ok {
			return v, nil
		}
		return zero, <-errCh
	}
}

func (p *Pool[T]) processLoop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stop:
			return
		case it := <-p.items:
			p.processItem(it)
		}
	}
}

func (p *Pool[T]) processItem(it *item[T]) {
	if err := it.ctx.Err(); err != nil {
		it.err <- err
		close(it.response)
		return
	}

	v, err := it.work(it.ctx)
	if err != nil {
		it.err <- err
		close(it.response)
		return
	}
	it.response <- v
	close(it.err)
}
