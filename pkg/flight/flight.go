package flight

import (
	"context"
	"sync"
	"time"
)

// Cache coalesces concurrent calls for the same key and keeps successful
// results for a while. Failures are never cached.
type Cache[K comparable, V any] struct {
	mu       sync.Mutex
	finished map[K]entry[V]
	pending  map[K]*job[V]

	work func(context.Context, K) (V, error)
	ttl  time.Duration
	now  func() time.Time
}

type entry[V any] struct {
	val      V
	deadline time.Time
}

type job[V any] struct {
	val  V
	err  error
	done chan struct{}
}

func NewCache[K comparable, V any](ttl time.Duration, work func(context.Context, K) (V, error)) *Cache[K, V] {
	return &Cache[K, V]{
		finished: make(map[K]entry[V]),
		pending:  make(map[K]*job[V]),
		work:     work,
		ttl:      ttl,
		now:      time.Now,
	}
}

// Get returns a cached value, joins an in-flight call, or starts work. Work
// runs detached from the starting caller's cancellation, so every caller,
// the first included, gets ctx.Err() only when its own ctx ends.
func (c *Cache[K, V]) Get(ctx context.Context, k K) (V, error) {
	c.mu.Lock()
	if e, ok := c.finished[k]; ok {
		if c.ttl <= 0 || c.now().Before(e.deadline) {
			c.mu.Unlock()
			return e.val, nil
		}
		delete(c.finished, k)
	}
	if j, ok := c.pending[k]; ok {
		c.mu.Unlock()
		return c.wait(ctx, j)
	}
	j := &job[V]{done: make(chan struct{})}
	c.pending[k] = j
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), k, j)
	return c.wait(ctx, j)
}

// Force skips the finished cache but still joins an in-flight call.
func (c *Cache[K, V]) Force(ctx context.Context, k K) (V, error) {
	c.mu.Lock()
	delete(c.finished, k)
	if j, ok := c.pending[k]; ok {
		c.mu.Unlock()
		return c.wait(ctx, j)
	}
	j := &job[V]{done: make(chan struct{})}
	c.pending[k] = j
	c.mu.Unlock()

	go c.run(context.WithoutCancel(ctx), k, j)
	return c.wait(ctx, j)
}

// Forget drops a finished value.
func (c *Cache[K, V]) Forget(k K) {
	c.mu.Lock()
	delete(c.finished, k)
	c.mu.Unlock()
}

// Len counts finished entries, expired or not.
func (c *Cache[K, V]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.finished)
}

func (c *Cache[K, V]) run(ctx context.Context, k K, j *job[V]) {
	j.val, j.err = c.work(ctx, k)

	c.mu.Lock()
	if j.err == nil {
		c.finished[k] = entry[V]{val: j.val, deadline: c.now().Add(c.ttl)}
	}
	delete(c.pending, k)
	close(j.done)
	c.mu.Unlock()
}

func (c *Cache[K, V]) wait(ctx context.Context, j *job[V]) (V, error) {
	select {
	case <-j.done:
		return j.val, j.err
	case <-ctx.Done():
		var zero V
		return zero, ctx.Err()
	}
}
