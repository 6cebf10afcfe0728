package store

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"storyloom/pkg/entities"
)

const DefaultLibraryCap = 10

// Library is each client's bookshelf of saved works, newest first.
type Library struct {
	store *Store[[]entities.LibraryEntry]
	cap   int
	now   func() time.Time

	mu sync.Mutex
}

// NewLibrary keeps at most limit entries per client. Images are not
// persisted; saved pages are re-illustrated when opened.
func NewLibrary(kv KV, limit int) *Library {
	if limit <= 0 {
		limit = DefaultLibraryCap
	}
	return &Library{
		store: New[[]entities.LibraryEntry](kv, "library:", StripImages),
		cap:   limit,
		now:   time.Now,
	}
}

// StripImages drops image state from every page.
func StripImages(entries []entities.LibraryEntry) []entities.LibraryEntry {
	out := make([]entities.LibraryEntry, len(entries))
	for i, e := range entries {
		pages := make([]entities.StoryPage, len(e.Storybook))
		for j, p := range e.Storybook {
			p.ImageURL = nil
			p.ImageLoading = false
			pages[j] = p
		}
		e.Storybook = pages
		out[i] = e
	}
	return out
}

func (l *Library) list(ctx context.Context, client string) ([]entities.LibraryEntry, error) {
	entries, err := l.store.Get(ctx, client)
	if errors.Is(err, ErrNotFound) {
		return nil, nil
	}
	return entries, err
}

// List returns the client's entries, newest first.
func (l *Library) List(ctx context.Context, client string) ([]entities.LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.list(ctx, client)
}

// Get returns one entry or ErrNotFound.
func (l *Library) Get(ctx context.Context, client string, id int64) (entities.LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.list(ctx, client)
	if err != nil {
		return entities.LibraryEntry{}, err
	}
	i := slices.IndexFunc(entries, func(e entities.LibraryEntry) bool { return e.ID == id })
	if i < 0 {
		return entities.LibraryEntry{}, ErrNotFound
	}
	return entries[i], nil
}

// Add stores entry as the newest item, assigning its id and creation time.
// The oldest entries are evicted past the cap.
func (l *Library) Add(ctx context.Context, client string, entry entities.LibraryEntry) (entities.LibraryEntry, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.list(ctx, client)
	if err != nil {
		return entities.LibraryEntry{}, err
	}

	now := l.now()
	entry.CreatedAt = now.UTC()
	entry.ID = now.UnixMilli()
	for slices.ContainsFunc(entries, func(e entities.LibraryEntry) bool { return e.ID == entry.ID }) {
		entry.ID++
	}

	entries = append([]entities.LibraryEntry{entry}, entries...)
	if len(entries) > l.cap {
		entries = entries[:l.cap]
	}
	if err := l.store.Put(ctx, client, entries); err != nil {
		return entities.LibraryEntry{}, err
	}
	return StripImages([]entities.LibraryEntry{entry})[0], nil
}

// Update replaces the entry with the same id, keeping its position.
func (l *Library) Update(ctx context.Context, client string, entry entities.LibraryEntry) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.list(ctx, client)
	if err != nil {
		return err
	}
	i := slices.IndexFunc(entries, func(e entities.LibraryEntry) bool { return e.ID == entry.ID })
	if i < 0 {
		return ErrNotFound
	}
	entry.CreatedAt = entries[i].CreatedAt
	entries[i] = entry
	return l.store.Put(ctx, client, entries)
}

// Delete removes an entry. Deleting a missing id is not an error.
func (l *Library) Delete(ctx context.Context, client string, id int64) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	entries, err := l.list(ctx, client)
	if err != nil {
		return err
	}
	entries = slices.DeleteFunc(entries, func(e entities.LibraryEntry) bool { return e.ID == id })
	return l.store.Put(ctx, client, entries)
}
