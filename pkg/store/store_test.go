package store

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/pkg/entities"
)

func backends(t *testing.T) map[string]KV {
	t.Helper()
	file, err := NewFile(t.TempDir())
	require.NoError(t, err)
	db, err := OpenSQLite(filepath.Join(t.TempDir(), "store.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return map[string]KV{
		"memory": NewMemory(),
		"file":   file,
		"sqlite": db,
	}
}

func TestKVBackends(t *testing.T) {
	ctx := context.Background()
	for name, kv := range backends(t) {
		t.Run(name, func(t *testing.T) {
			_, err := kv.Get(ctx, "session:abc")
			assert.ErrorIs(t, err, ErrNotFound)

			require.NoError(t, kv.Put(ctx, "session:abc", []byte(`{"a":1}`)))
			require.NoError(t, kv.Put(ctx, "session:abc", []byte(`{"a":2}`)))
			got, err := kv.Get(ctx, "session:abc")
			require.NoError(t, err)
			assert.JSONEq(t, `{"a":2}`, string(got))

			require.NoError(t, kv.Delete(ctx, "session:abc"))
			require.NoError(t, kv.Delete(ctx, "session:abc"))
			_, err = kv.Get(ctx, "session:abc")
			assert.ErrorIs(t, err, ErrNotFound)
		})
	}
}

func TestUnavailableDropsWrites(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(Unavailable{})

	s := entities.NewSession("c1")
	s.CurrentTopic = "tides"
	require.NoError(t, sessions.Save(ctx, s))

	got, err := sessions.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Equal(t, entities.StepTopicEntry, got.CurrentStep)
	assert.Empty(t, got.CurrentTopic)
}

func TestSessionsKeepImages(t *testing.T) {
	ctx := context.Background()
	sessions := NewSessions(NewMemory())

	url := "data:image/webp;base64,AAAA"
	s := entities.NewSession("c1")
	s.CurrentStep = entities.StepContentDisplay
	s.CurrentStorybook = []entities.StoryPage{{ID: 1, Title: "One", Content: "x", ImageURL: &url}}
	require.NoError(t, sessions.Save(ctx, s))

	got, err := sessions.Load(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, got.CurrentStorybook, 1)
	require.NotNil(t, got.CurrentStorybook[0].ImageURL)
	assert.Equal(t, url, *got.CurrentStorybook[0].ImageURL)

	require.NoError(t, sessions.Clear(ctx, "c1"))
	got, err = sessions.Load(ctx, "c1")
	require.NoError(t, err)
	assert.Nil(t, got.CurrentStorybook)
}

func TestLibraryCapEvictsOldest(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(NewMemory(), 10)
	now := time.UnixMilli(1_700_000_000_000)
	lib.now = func() time.Time { return now }

	for i := range 11 {
		_, err := lib.Add(ctx, "c1", entities.LibraryEntry{Kind: entities.KindStorybook, Topic: fmt.Sprintf("topic %d", i)})
		require.NoError(t, err)
	}

	entries, err := lib.List(ctx, "c1")
	require.NoError(t, err)
	require.Len(t, entries, 10)
	assert.Equal(t, "topic 10", entries[0].Topic)
	assert.Equal(t, "topic 1", entries[9].Topic)

	seen := map[int64]bool{}
	for _, e := range entries {
		assert.False(t, seen[e.ID], "ids are unique even within one millisecond")
		seen[e.ID] = true
	}

	other, err := lib.List(ctx, "c2")
	require.NoError(t, err)
	assert.Empty(t, other)
}

func TestLibraryStripsImages(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(NewMemory(), 0)

	url := "https://picsum.photos/seed/x/768/768"
	saved, err := lib.Add(ctx, "c1", entities.LibraryEntry{
		Kind:  entities.KindStorybook,
		Topic: "tides",
		Storybook: []entities.StoryPage{
			{ID: 1, Title: "One", Content: "a", ImageURL: &url},
			{ID: 2, Title: "Two", Content: "b", ImageLoading: true},
		},
	})
	require.NoError(t, err)

	got, err := lib.Get(ctx, "c1", saved.ID)
	require.NoError(t, err)
	for _, p := range got.Storybook {
		assert.Nil(t, p.ImageURL)
		assert.False(t, p.ImageLoading)
	}
	assert.Equal(t, "Two", got.Storybook[1].Title)
}

func TestLibraryUpdateAndDelete(t *testing.T) {
	ctx := context.Background()
	lib := NewLibrary(NewMemory(), 10)

	a, err := lib.Add(ctx, "c1", entities.LibraryEntry{Kind: entities.KindMeme, Topic: "cats"})
	require.NoError(t, err)

	a.Summary = "updated"
	require.NoError(t, lib.Update(ctx, "c1", a))
	got, err := lib.Get(ctx, "c1", a.ID)
	require.NoError(t, err)
	assert.Equal(t, "updated", got.Summary)

	assert.ErrorIs(t, lib.Update(ctx, "c1", entities.LibraryEntry{ID: 42}), ErrNotFound)

	require.NoError(t, lib.Delete(ctx, "c1", a.ID))
	_, err = lib.Get(ctx, "c1", a.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}
