package store

import (
	"context"
	"errors"
	"time"

	"storyloom/pkg/entities"
)

// Sessions persists the in-progress session of each client at full fidelity.
type Sessions struct {
	store *Store[entities.SessionState]
}

func NewSessions(kv KV) *Sessions {
	return &Sessions{store: New[entities.SessionState](kv, "session:", nil)}
}

// Load returns the client's session, or a fresh one at the topic step.
func (s *Sessions) Load(ctx context.Context, id string) (entities.SessionState, error) {
	state, err := s.store.Get(ctx, id)
	if errors.Is(err, ErrNotFound) {
		return entities.NewSession(id), nil
	}
	if err != nil {
		return entities.NewSession(id), err
	}
	state.ID = id
	if state.CurrentStep == 0 {
		state.CurrentStep = entities.StepTopicEntry
	}
	return state, nil
}

func (s *Sessions) Save(ctx context.Context, state entities.SessionState) error {
	state.UpdatedAt = time.Now().UTC()
	return s.store.Put(ctx, state.ID, state)
}

func (s *Sessions) Clear(ctx context.Context, id string) error {
	return s.store.Delete(ctx, id)
}
