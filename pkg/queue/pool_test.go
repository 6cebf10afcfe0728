package queue

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

func TestPoolBoundsConcurrency(t *testing.T) {
	p := New[int]("test", 2, 16)
	p.Start()
	defer p.Stop()

	var running, peak atomic.Int32
	var wg sync.WaitGroup
	for i := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			v, err := p.Do(context.Background(), func(ctx context.Context) (int, error) {
				n := running.Add(1)
				for {
					old := peak.Load()
					if n <= old || peak.CompareAndSwap(old, n) {
						break
					}
				}
				time.Sleep(10 * time.Millisecond)
				running.Add(-1)
				return i, nil
			})
			assert.NoError(t, err)
			assert.Equal(t, i, v)
		}()
	}
	wg.Wait()
	assert.LessOrEqual(t, peak.Load(), int32(2))
}

func TestPoolPropagatesErrors(t *testing.T) {
	p := New[string]("test", 1, 1)
	p.Start()
	defer p.Stop()

	_, err := p.Do(context.Background(), func(ctx context.Context) (string, error) {
		return "", errors.New("boom")
	})
	assert.EqualError(t, err, "boom")
}

func TestPoolFullAndStopped(t *testing.T) {
	p := New[int]("test", 1, 1)
	// not started, so the single slot fills up
	_, _, err := p.Add(context.Background(), func(ctx context.Context) (int, error) { return 1, nil })
	require.NoError(t, err)
	_, _, err = p.Add(context.Background(), func(ctx context.Context) (int, error) { return 2, nil })
	assert.ErrorIs(t, err, ErrFull)

	p.Stop()
	_, _, err = p.Add(context.Background(), func(ctx context.Context) (int, error) { return 3, nil })
	assert.ErrorIs(t, err, ErrStopped)
}

func TestPoolSkipsCancelledWork(t *testing.T) {
	p := New[int]("test", 1, 4)
	p.Start()
	defer p.Stop()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	ran := false
	respCh, errCh, err := p.Add(ctx, func(ctx context.Context) (int, error) {
		ran = true
		return 1, nil
	})
	require.NoError(t, err)
	select {
	case err := <-errCh:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(time.Second):
		t.Fatal("timed out")
	}
	_, ok := <-respCh
	assert.False(t, ok, "cancelled work should not produce a value")
	assert.False(t, ran)
}
