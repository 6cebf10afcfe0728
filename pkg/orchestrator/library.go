package orchestrator

import (
	"context"
	"errors"
	"fmt"

	"github.com/charmbracelet/log"

	"storyloom/pkg/apperr"
	"storyloom/pkg/entities"
	"storyloom/pkg/store"
	"storyloom/pkg/utils"
)

var ErrNothingToSave = errors.New("there is no finished content to save")

// Library lists the client's saved works, newest first.
func (f *Flow) Library(ctx context.Context) ([]entities.LibraryEntry, error) {
	return f.library.List(ctx, f.id)
}

// Entry returns one saved work.
func (f *Flow) Entry(ctx context.Context, id int64) (entities.LibraryEntry, error) {
	return f.library.Get(ctx, f.id, id)
}

// Save copies the displayed content into the library and clears the session.
func (f *Flow) Save(ctx context.Context) (entities.LibraryEntry, entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard("save", entities.StepContentDisplay); err != nil {
		return entities.LibraryEntry{}, f.snapshot(), err
	}

	entry := entities.LibraryEntry{
		Topic:       f.state.CurrentTopic,
		Summary:     f.state.CurrentSummary,
		Proficiency: f.state.Proficiency,
		Source:      f.state.Source,
	}
	if f.state.CurrentTextLength.IsMeme() {
		if f.state.CurrentMemeData.Text == "" {
			return entities.LibraryEntry{}, f.snapshot(), ErrNothingToSave
		}
		entry.Kind = entities.KindMeme
		entry.Storybook = []entities.StoryPage{{ID: 1, Title: f.state.CurrentTopic, Content: f.state.CurrentMemeData.Text}}
	} else {
		if len(f.state.CurrentStorybook) == 0 {
			return entities.LibraryEntry{}, f.snapshot(), ErrNothingToSave
		}
		entry.Kind = entities.KindStorybook
		entry.Storybook = f.snapshot().CurrentStorybook
	}

	saved, err := f.library.Add(ctx, f.id, entry)
	if err != nil {
		return entities.LibraryEntry{}, f.snapshot(), fmt.Errorf("saving to library: %w", err)
	}
	log.Info("saved to library", "session", f.id, "entry", saved.ID, "kind", saved.Kind)

	f.replace(entities.StepTopicEntry)
	if err := f.sessions.Clear(ctx, f.id); err != nil {
		return saved, f.snapshot(), err
	}
	return saved, f.snapshot(), nil
}

// Open shows a saved entry and illustrates it.
func (f *Flow) Open(ctx context.Context, id int64) (entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard("open a saved item", entities.StepTopicEntry, entities.StepLibraryView); err != nil {
		return f.snapshot(), err
	}
	entry, err := f.library.Get(ctx, f.id, id)
	if err != nil {
		return f.snapshot(), err
	}

	f.replace(entities.StepLibraryView)
	f.state.ViewingEntryID = entry.ID
	f.state.CurrentTopic = entry.Topic
	f.state.CurrentSummary = entry.Summary
	f.state.Proficiency = entry.Proficiency
	f.state.Source = entry.Source
	if entry.Kind == entities.KindMeme {
		f.state.CurrentTextLength = entities.LengthMeme
		if len(entry.Storybook) > 0 {
			f.state.CurrentMemeData = entities.MemeState{Text: entry.Storybook[0].Content}
		}
	} else {
		f.state.CurrentTextLength = presetFor(len(entry.Storybook))
		f.state.CurrentStorybook = entry.Storybook
	}
	f.persist()
	f.resume()
	return f.snapshot(), nil
}

func presetFor(pages int) entities.LengthPreset {
	for _, p := range entities.LengthPresets {
		if p.PageCount() == pages {
			return p
		}
	}
	return entities.LengthShort
}

// RegenerateImages re-illustrates the viewed entry from its existing text.
func (f *Flow) RegenerateImages(_ context.Context) (entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard("regenerate images", entities.StepLibraryView); err != nil {
		return f.snapshot(), err
	}
	if f.state.CurrentTextLength.IsMeme() {
		f.startMemeImage(true)
	} else {
		ids := make([]int, len(f.state.CurrentStorybook))
		for i, p := range f.state.CurrentStorybook {
			ids[i] = p.ID
		}
		f.fanOut(ids, true)
	}
	f.persist()
	return f.snapshot(), nil
}

// RegenerateText replaces a saved meme's caption, keeping its image, and
// reports what changed.
func (f *Flow) RegenerateText(ctx context.Context) (entities.SessionState, []utils.WordDelta, error) {
	f.mu.Lock()
	if err := f.guard("regenerate text", entities.StepLibraryView); err != nil {
		defer f.mu.Unlock()
		return f.snapshot(), nil, err
	}
	if !f.state.CurrentTextLength.IsMeme() {
		defer f.mu.Unlock()
		return f.snapshot(), nil, &apperr.ValidationError{Field: "kind", Reason: "Only memes can regenerate their text"}
	}

	req := f.request(entities.ContentMemeText)
	if !req.Proficiency.Valid() {
		req.Proficiency = entities.Intermediate
	}
	if !req.Source.Valid() {
		req.Source = entities.AcademicPapers
	}
	gen, epoch, entryID := f.gen, f.epoch, f.state.ViewingEntryID
	old := f.state.CurrentMemeData.Text
	f.mu.Unlock()

	content, err := gen.GenerateContent(ctx, req)

	f.mu.Lock()
	defer f.mu.Unlock()
	if epoch != f.epoch {
		return f.snapshot(), nil, nil
	}
	if err != nil {
		f.state.Error = publicMessage(err)
		f.persist()
		return f.snapshot(), nil, err
	}

	text := caption(content)
	f.state.CurrentMemeData.Text = text
	f.state.Error = ""
	f.persist()

	entry, err := f.library.Get(ctx, f.id, entryID)
	if err == nil {
		entry.Storybook = []entities.StoryPage{{ID: 1, Title: entry.Topic, Content: text}}
		err = f.library.Update(ctx, f.id, entry)
	}
	if err != nil && !errors.Is(err, store.ErrNotFound) {
		return f.snapshot(), nil, fmt.Errorf("updating saved meme: %w", err)
	}
	return f.snapshot(), utils.DiffWords(old, text), nil
}

// Delete removes the viewed entry and returns to topic entry.
func (f *Flow) Delete(ctx context.Context) (entities.SessionState, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := f.guard("delete", entities.StepLibraryView); err != nil {
		return f.snapshot(), err
	}
	if err := f.library.Delete(ctx, f.id, f.state.ViewingEntryID); err != nil {
		return f.snapshot(), err
	}
	f.replace(entities.StepTopicEntry)
	if err := f.sessions.Clear(ctx, f.id); err != nil {
		return f.snapshot(), err
	}
	return f.snapshot(), nil
}
