package flight

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCacheCoalescesConcurrentCalls(t *testing.T) {
	var calls atomic.Int32
	release := make(chan struct{})
	c := NewCache(time.Minute, func(ctx context.Context, k string) (string, error) {
		calls.Add(1)
		<-release
		return "img:" + k, nil
	})

	var wg sync.WaitGroup
	results := make([]string, 5)
	for i := range results {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := c.Get(context.Background(), "prompt")
			assert.NoError(t, err)
			results[i] = v
		}()
	}
	// let the goroutines pile up on the pending job
	time.Sleep(20 * time.Millisecond)
	close(release)
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load())
	for _, r := range results {
		assert.Equal(t, "img:prompt", r)
	}

	v, err := c.Get(context.Background(), "prompt")
	require.NoError(t, err)
	assert.Equal(t, "img:prompt", v)
	assert.Equal(t, int32(1), calls.Load(), "served from cache")
}

func TestCacheDoesNotKeepFailures(t *testing.T) {
	var calls atomic.Int32
	c := NewCache(time.Minute, func(ctx context.Context, k int) (int, error) {
		if calls.Add(1) == 1 {
			return 0, errors.New("provider down")
		}
		return k * 2, nil
	})

	_, err := c.Get(context.Background(), 4)
	require.Error(t, err)
	v, err := c.Get(context.Background(), 4)
	require.NoError(t, err)
	assert.Equal(t, 8, v)
	assert.Equal(t, 1, c.Len())
}

func TestCacheExpiryAndForce(t *testing.T) {
	now := time.Unix(0, 0)
	var calls atomic.Int32
	c := NewCache(time.Minute, func(ctx context.Context, k string) (int32, error) {
		return calls.Add(1), nil
	})
	c.now = func() time.Time { return now }

	v, _ := c.Get(context.Background(), "k")
	assert.Equal(t, int32(1), v)

	v, _ = c.Force(context.Background(), "k")
	assert.Equal(t, int32(2), v)

	now = now.Add(2 * time.Minute)
	v, _ = c.Get(context.Background(), "k")
	assert.Equal(t, int32(3), v)
}

func TestCacheWaiterHonoursContext(t *testing.T) {
	release := make(chan struct{})
	defer close(release)
	c := NewCache(time.Minute, func(ctx context.Context, k string) (string, error) {
		<-release
		return k, nil
	})

	go func() { _, _ = c.Get(context.Background(), "slow") }()
	time.Sleep(10 * time.Millisecond)

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()
	_, err := c.Get(ctx, "slow")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestCacheLeaderCancelDoesNotFailJoiners(t *testing.T) {
	release := make(chan struct{})
	var calls atomic.Int32
	c := NewCache(time.Minute, func(ctx context.Context, k string) (string, error) {
		calls.Add(1)
		select {
		case <-release:
			return "img:" + k, nil
		case <-ctx.Done():
			return "", ctx.Err()
		}
	})

	leaderCtx, cancelLeader := context.WithCancel(context.Background())
	leaderErr := make(chan error, 1)
	go func() {
		_, err := c.Get(leaderCtx, "lighthouse")
		leaderErr <- err
	}()
	time.Sleep(10 * time.Millisecond)

	joined := make(chan string, 1)
	go func() {
		v, err := c.Get(context.Background(), "lighthouse")
		assert.NoError(t, err)
		joined <- v
	}()
	time.Sleep(10 * time.Millisecond)

	cancelLeader()
	assert.ErrorIs(t, <-leaderErr, context.Canceled)

	close(release)
	assert.Equal(t, "img:lighthouse", <-joined)
	assert.Equal(t, int32(1), calls.Load())
	assert.Equal(t, 1, c.Len())
}
