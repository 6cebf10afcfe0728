package queue

import "context"

type Queue[T any] interface {
	Start()
	Stop()
	Add(ctx context.Context, work Work[T]) (chan T, chan error, error)
}

// Work is one unit executed by a worker.
type Work[T any] func(ctx context.Context) (T, error)
