package ratelimit

import (
	"context"
	"sync"
	"time"

	"github.com/charmbracelet/log"

	"storyloom/pkg/entities"
)

// Memory is a single-instance fixed-window limiter.
type Memory struct {
	name   string
	limit  int
	window time.Duration
	now    Clock

	mu      sync.Mutex
	records map[string]*entities.RateLimitRecord
}

type Option func(*Memory)

func WithClock(c Clock) Option {
	return func(m *Memory) { m.now = c }
}

func WithWindow(d time.Duration) Option {
	return func(m *Memory) {
		if d > 0 {
			m.window = d
		}
	}
}

func NewMemory(name string, limit int, opts ...Option) *Memory {
	m := &Memory{
		name:    name,
		limit:   limit,
		window:  DefaultWindow,
		now:     time.Now,
		records: make(map[string]*entities.RateLimitRecord),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *Memory) Limit() int { return m.limit }

func (m *Memory) Check(_ context.Context, key string) (Decision, error) {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[key]
	if !ok || !now.Before(rec.ResetAt) {
		rec = &entities.RateLimitRecord{Count: 1, ResetAt: now.Add(m.window)}
		m.records[key] = rec
		return decide(rec.Count, m.limit, rec.ResetAt), nil
	}

	// Rejected requests stop counting once past the ceiling.
	if rec.Count <= m.limit {
		rec.Count++
	}
	return decide(rec.Count, m.limit, rec.ResetAt), nil
}

// Sweep drops expired records and returns how many were removed.
func (m *Memory) Sweep() int {
	now := m.now()

	m.mu.Lock()
	defer m.mu.Unlock()

	var n int
	for k, rec := range m.records {
		if !now.Before(rec.ResetAt) {
			delete(m.records, k)
			n++
		}
	}
	return n
}

// Len is the number of tracked keys.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records)
}

// Run sweeps on a ticker until ctx is done.
func (m *Memory) Run(ctx context.Context, every time.Duration) {
	if every <= 0 {
		every = m.window
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(); n > 0 {
				log.Debug("swept rate limit records", "limiter", m.name, "removed", n)
			}
		}
	}
}
