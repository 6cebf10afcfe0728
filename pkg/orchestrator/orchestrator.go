package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"storyloom/pkg/entities"
	"storyloom/pkg/generation"
	"storyloom/pkg/store"
)

// Generator produces content and images for a flow. The in-process
// generation service and the HTTP client both satisfy it.
type Generator interface {
	GenerateContent(ctx context.Context, req entities.GenerationRequest) (generation.Content, error)
	GenerateImage(ctx context.Context, prompt string, pageID int) (generation.Image, error)
}

// Regenerator is implemented by generators that can bypass recently cached
// images. Explicit "regenerate" actions use it when available.
type Regenerator interface {
	RegenerateImage(ctx context.Context, prompt string, pageID int) (generation.Image, error)
}

var ErrInvalidStep = errors.New("action is not available at the current step")

// StepError is returned when an action is attempted from the wrong step.
type StepError struct {
	Action string
	Step   entities.Step
}

func (e *StepError) Error() string {
	return fmt.Sprintf("cannot %s from the %s step", e.Action, e.Step)
}

func (e *StepError) Is(target error) bool { return target == ErrInvalidStep }

const DefaultWidth = 4

// Manager owns the live flow of every session.
type Manager struct {
	sessions *store.Sessions
	library  *store.Library
	width    int64

	base context.Context
	stop context.CancelFunc

	mu    sync.Mutex
	flows map[string]*Flow
}

// NewManager bounds each flow to width concurrent image requests.
func NewManager(sessions *store.Sessions, library *store.Library, width int) *Manager {
	if width <= 0 {
		width = DefaultWidth
	}
	base, stop := context.WithCancel(context.Background())
	return &Manager{
		sessions: sessions,
		library:  library,
		width:    int64(width),
		base:     base,
		stop:     stop,
		flows:    make(map[string]*Flow),
	}
}

// Flow returns the session's flow, loading it from the session store the
// first time. gen replaces the flow's generator for subsequent work.
func (m *Manager) Flow(ctx context.Context, id string, gen Generator) (*Flow, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if f, ok := m.flows[id]; ok {
		f.use(gen)
		return f, nil
	}

	state, err := m.sessions.Load(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", id, err)
	}
	f := &Flow{
		id:       id,
		sessions: m.sessions,
		library:  m.library,
		sem:      semaphore.NewWeighted(m.width),
		base:     m.base,
		gen:      gen,
		state:    state,
		pending:  make(map[int]bool),
		touched:  time.Now(),
	}
	f.ctx, f.cancel = context.WithCancel(m.base)
	m.flows[id] = f
	return f, nil
}

// Wait joins outstanding background work of every flow.
func (m *Manager) Wait(ctx context.Context) error {
	m.mu.Lock()
	flows := make([]*Flow, 0, len(m.flows))
	for _, f := range m.flows {
		flows = append(flows, f)
	}
	m.mu.Unlock()

	for _, f := range flows {
		if err := f.Wait(ctx); err != nil {
			return err
		}
	}
	return nil
}

// Sweep drops flows that have been idle for longer than idle and have no
// work in flight. Their state stays in the session store.
func (m *Manager) Sweep(idle time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := time.Now().Add(-idle)
	n := 0
	for id, f := range m.flows {
		if f.idleSince(cutoff) {
			f.cancel()
			delete(m.flows, id)
			n++
		}
	}
	return n
}

// Run sweeps idle flows until ctx ends.
func (m *Manager) Run(ctx context.Context, every, idle time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := m.Sweep(idle); n > 0 {
				log.Debug("swept idle flows", "count", n)
			}
		}
	}
}

// Close cancels all background work.
func (m *Manager) Close() {
	m.stop()
}
