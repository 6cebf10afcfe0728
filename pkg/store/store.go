package store

import (
	"context"
	"encoding/json"
	"fmt"
)

// Policy rewrites a value before it is persisted, e.g. to drop fields that
// are too large or too short-lived to keep.
type Policy[T any] func(T) T

// Keep persists values unchanged.
func Keep[T any](v T) T { return v }

// Store is a typed view over a KV namespace.
type Store[T any] struct {
	kv     KV
	prefix string
	policy Policy[T]
}

func New[T any](kv KV, prefix string, policy Policy[T]) *Store[T] {
	if policy == nil {
		policy = Keep[T]
	}
	return &Store[T]{kv: kv, prefix: prefix, policy: policy}
}

func (s *Store[T]) Get(ctx context.Context, key string) (T, error) {
	var v T
	raw, err := s.kv.Get(ctx, s.prefix+key)
	if err != nil {
		return v, err
	}
	if err := json.Unmarshal(raw, &v); err != nil {
		return v, fmt.Errorf("decoding %s%s: %w", s.prefix, key, err)
	}
	return v, nil
}

func (s *Store[T]) Put(ctx context.Context, key string, v T) error {
	raw, err := json.Marshal(s.policy(v))
	if err != nil {
		return fmt.Errorf("encoding %s%s: %w", s.prefix, key, err)
	}
	return s.kv.Put(ctx, s.prefix+key, raw)
}

func (s *Store[T]) Delete(ctx context.Context, key string) error {
	return s.kv.Delete(ctx, s.prefix+key)
}
