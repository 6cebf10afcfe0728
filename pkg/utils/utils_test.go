package utils

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSaveLoadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "shelf.json")
	in := map[string][]int{"a": {1, 2}}

	require.NoError(t, Save(path, in))
	_, err := os.Stat(path)
	assert.NoError(t, err)

	out, err := Load[map[string][]int](path)
	require.NoError(t, err)
	assert.Equal(t, in, out)

	entries, err := os.ReadDir(filepath.Dir(path))
	require.NoError(t, err)
	assert.Len(t, entries, 1, "no temp files left behind")
}

func TestLoadMissing(t *testing.T) {
	_, err := Load[int](filepath.Join(t.TempDir(), "missing.json"))
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestDiffWords(t *testing.T) {
	d := DiffWords("my code works", "my code never works")
	var inserted string
	for _, w := range d {
		if w.Op == OpInsert {
			inserted += w.Text
		}
		assert.NotEqual(t, OpDelete, w.Op)
	}
	assert.Equal(t, "never", strings.TrimSpace(inserted))
}

func TestSanitizeFilename(t *testing.T) {
	assert.Equal(t, "session_abc_..", SanitizeFilename(" session/abc:.. "))
	assert.Equal(t, "héllo", LimitStr("héllo", 5))
	assert.Equal(t, "hé...", LimitStr("héllo", 2))
}

func TestTokenizeWordsRoundTrips(t *testing.T) {
	s := "Qubits don't sleep, they wait!"
	tokens := TokenizeWords(s)
	assert.Equal(t, []string{"Qubits", " ", "don't", " ", "sleep", ",", " ", "they", " ", "wait", "!"}, tokens)
	assert.Equal(t, s, strings.Join(tokens, ""))
	assert.Empty(t, TokenizeWords(""))
}
