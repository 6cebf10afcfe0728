package orchestrator

import (
	"context"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/sync/semaphore"

	"storyloom/pkg/apperr"
	"storyloom/pkg/entities"
	"storyloom/pkg/generation"
	"storyloom/pkg/store"
)

// Options are the choices made at the options step.
type Options struct {
	Proficiency     entities.Proficiency     `json:"proficiency"`
	Source          entities.Source          `json:"source"`
	Length          entities.LengthPreset    `json:"length"`
	ScrollDirection entities.ScrollDirection `json:"scrollDirection,omitempty"`
}

func (o Options) validate() error {
	switch {
	case !o.Proficiency.Valid():
		return &apperr.ValidationError{Field: "proficiency", Reason: "Please choose a proficiency level"}
	case !o.Source.Valid():
		return &apperr.ValidationError{Field: "source", Reason: "Please choose a source"}
	case !o.Length.Valid():
		return &apperr.ValidationError{Field: "length", Reason: "Please choose a length"}
	}
	switch o.ScrollDirection {
	case "", entities.ScrollVertical, entities.ScrollHorizontal:
		return nil
	}
	return &apperr.ValidationError{Field: "scrollDirection", Reason: "Please choose a scroll direction"}
}

// Flow drives one session through the generation steps. Every method is safe
// for concurrent use; background image work updates the state as it lands.
type Flow struct {
	id       string
	sessions *store.Sessions
	library  *store.Library
	sem      *semaphore.Weighted
	base     context.Context

	mu    sync.Mutex
	gen   Generator
	state entities.SessionState

	// epoch changes whenever the session is replaced. Background results from
	// an older epoch are dropped.
	epoch  uint64
	ctx    context.Context
	cancel context.CancelFunc

	pending     map[int]bool
	memePending bool
	textPending bool

	// one-shot repair guard, re-armed when the viewed saved entry changes
	repaired    bool
	repairedFor int64

	touched time.Time
	wg      sync.WaitGroup
	running int
}

func (f *Flow) use(gen Generator) {
	f.mu.Lock()
	if gen != nil {
		f.gen = gen
	}
	f.touched = time.Now()
	f.mu.Unlock()
}

func (f *Flow) idleSince(cutoff time.Time) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running == 0 && f.touched.Before(cutoff)
}

// State returns a copy of the current session.
func (f *Flow) State() entities.SessionState {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.snapshot()
}

func (f *Flow) snapshot() entities.SessionState {
	s := f.state
	s.CurrentStorybook = slices.Clone(f.state.CurrentStorybook)
	return s
}

// Busy reports whether background text or image work is still running.
func (f *Flow) Busy() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running > 0
}

// Wait blocks until background work started so far has finished.
func (f *Flow) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		f.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// spawn runs fn in the background, tracked by Wait.
func (f *Flow) spawn(fn func()) {
	f.wg.Add(1)
	f.running++
	go func() {
		defer func() {
			f.mu.Lock()
			f.running--
			f.mu.Unlock()
			f.wg.Done()
		}()
		fn()
	}()
}

// persist saves the session. Called with mu held.
func (f *Flow) persist() {
	f.state.UpdatedAt = time.Now().UTC()
	if err := f.sessions.Save(context.WithoutCancel(f.base), f.state); err != nil {
		log.Error("failed to save session", "session", f.id, "error", err)
	}
}

// renew cancels background work of the current session. Called with mu held.
func (f *Flow) renew() {
	f.cancel()
	f.epoch++
	f.ctx, f.cancel = context.WithCancel(f.base)
	f.pending = make(map[int]bool)
	f.memePending = false
	f.textPending = false
	f.repaired = false
	f.repairedFor = 0
}

// replace starts a fresh session, keeping the user's last option choices.
// Called with mu held.
func (f *Flow) replace(step entities.Step) {
	prev := f.state
	f.renew()
	f.state = entities.NewSession(f.id)
	f.state.CurrentStep = step
	f.state.Proficiency = prev.Proficiency
	f.state.Source = prev.Source
	f.state.CurrentTextLength = prev.CurrentTextLength
	f.state.ScrollDirection = prev.ScrollDirection
}

func (f *Flow) guard(action string, steps ...entities.Step) error {
	if slices.Contains(steps, f.state.CurrentStep) {
		return nil
	}
	return &StepError{Action: action, Step: f.state.CurrentStep}
}

func publicMessage(err error) string {
	msg, _ := apperr.Public(err)
	return msg
}

// SetTopic moves from topic entry to the options step.
func (f *Flow) SetTopic(_ context.Context, topic string) (entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard("set a topic", entities.StepTopicEntry, entities.StepOptionsEntry); err != nil {
		return f.snapshot(), err
	}
	topic = strings.TrimSpace(topic)
	if topic == "" {
		f.state.Error = "Please enter a topic"
		return f.snapshot(), &apperr.ValidationError{Field: "topic", Reason: f.state.Error}
	}

	f.replace(entities.StepOptionsEntry)
	f.state.CurrentTopic = topic
	f.persist()
	return f.snapshot(), nil
}

// SubmitOptions records the options and generates the summary. On failure
// the flow returns to the options step carrying the error message.
func (f *Flow) SubmitOptions(ctx context.Context, opts Options) (entities.SessionState, error) {
	f.mu.Lock()
	if err := f.guard("submit options", entities.StepOptionsEntry); err != nil {
		defer f.mu.Unlock()
		return f.snapshot(), err
	}
	if err := opts.validate(); err != nil {
		defer f.mu.Unlock()
		f.state.Error = err.Error()
		f.persist()
		return f.snapshot(), err
	}

	f.state.Proficiency = opts.Proficiency
	f.state.Source = opts.Source
	f.state.CurrentTextLength = opts.Length
	f.state.ScrollDirection = opts.ScrollDirection
	if f.state.ScrollDirection == "" {
		f.state.ScrollDirection = entities.ScrollVertical
	}
	f.state.CurrentStep = entities.StepSummaryLoading
	f.state.Error = ""
	f.persist()

	req := f.request(entities.ContentSummary)
	gen, epoch := f.gen, f.epoch
	f.mu.Unlock()

	content, err := gen.GenerateContent(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if epoch != f.epoch {
		return f.snapshot(), nil
	}
	if err != nil {
		log.Warn("summary generation failed", "session", f.id, "error", err)
		f.state.CurrentStep = entities.StepOptionsEntry
		f.state.Error = publicMessage(err)
		f.persist()
		return f.snapshot(), err
	}

	f.state.CurrentSummary = content.Summary
	f.state.CurrentStep = entities.StepSummaryReady
	f.persist()
	return f.snapshot(), nil
}

// request builds a generation request from the session. Called with mu held.
func (f *Flow) request(t entities.ContentType) entities.GenerationRequest {
	req := entities.GenerationRequest{
		Topic:       f.state.CurrentTopic,
		Proficiency: f.state.Proficiency,
		Source:      f.state.Source,
		Type:        t,
	}
	if t == entities.ContentStorybook {
		req.PageCount = f.state.CurrentTextLength.PageCount()
	}
	return req
}

// CreateContent moves from the summary to the content step. Memes get their
// caption before the step changes; storybooks enter the content step right
// away and fill in as their text and images arrive.
func (f *Flow) CreateContent(ctx context.Context) (entities.SessionState, error) {
	f.mu.Lock()
	if err := f.guard("generate content", entities.StepSummaryReady); err != nil {
		defer f.mu.Unlock()
		return f.snapshot(), err
	}

	if !f.state.CurrentTextLength.IsMeme() {
		defer f.mu.Unlock()
		f.state.CurrentStep = entities.StepContentDisplay
		f.state.CurrentStorybook = nil
		f.state.CurrentMemeData = entities.MemeState{}
		f.state.Error = ""
		f.startStorybook()
		f.persist()
		return f.snapshot(), nil
	}

	req := f.request(entities.ContentMemeText)
	gen, epoch := f.gen, f.epoch
	f.state.Error = ""
	f.mu.Unlock()

	content, err := gen.GenerateContent(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if epoch != f.epoch {
		return f.snapshot(), nil
	}
	if err != nil {
		log.Warn("meme caption generation failed", "session", f.id, "error", err)
		f.state.Error = publicMessage(err)
		f.persist()
		return f.snapshot(), err
	}

	f.state.CurrentStep = entities.StepContentDisplay
	f.state.CurrentStorybook = nil
	f.state.CurrentMemeData = entities.MemeState{Text: caption(content)}
	f.startMemeImage(false)
	f.persist()
	return f.snapshot(), nil
}

func caption(c generation.Content) string {
	if c.Meme == nil {
		return ""
	}
	return c.Meme.Caption
}

// StartOver clears the session and returns to topic entry.
func (f *Flow) StartOver(ctx context.Context) (entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.replace(entities.StepTopicEntry)
	if err := f.sessions.Clear(ctx, f.id); err != nil {
		return f.snapshot(), err
	}
	return f.snapshot(), nil
}
