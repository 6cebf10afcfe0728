package sanitize

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/pkg/apperr"
	"storyloom/pkg/schema"
)

const bookJSON = `{"pages":[{"id":1,"title":"Qubits","content":"A qubit can be 0 and 1.","imageDescription":"A glowing coin"},{"id":2,"title":"Gates","content":"Gates rotate qubits.","imageDescription":"Spinning arrows"}]}`

func TestExtractJSONFenceIsTransparent(t *testing.T) {
	bare, err := ExtractJSON(bookJSON)
	require.NoError(t, err)

	fenced, err := ExtractJSON("```json\n" + bookJSON + "\n```")
	require.NoError(t, err)
	assert.Equal(t, bare, fenced)

	untagged, err := ExtractJSON("Here you go:\n```\n" + bookJSON + "\n```\nEnjoy!")
	require.NoError(t, err)
	assert.Equal(t, bare, untagged)

	fromFence, err := ParseStorybook("```json\n" + bookJSON + "\n```")
	require.NoError(t, err)
	fromBare, err := ParseStorybook(bookJSON)
	require.NoError(t, err)
	assert.Equal(t, fromBare, fromFence)
}

func TestExtractJSONTakesFirstFence(t *testing.T) {
	raw := "```json\n" + bookJSON + "\n```\nAnd a bonus:\n```json\n{\"note\": \"ignore me\"}\n```"
	pages, err := ParseStorybook(raw)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Gates", pages[1].Title)

	trailing := "```\n" + bookJSON + "\n```\nUse {braces} wisely, see [1]."
	pages, err = ParseStorybook(trailing)
	require.NoError(t, err)
	assert.Len(t, pages, 2)
}

func TestExtractJSONFindsArrayInProse(t *testing.T) {
	pages, err := ParseStorybook(`Here are the pages: [{"id":1,"title":"One","content":"First."},{"id":2,"title":"Two","content":"Second."}] Hope you like them.`)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "One", pages[0].Title)

	v, err := ExtractJSON(`Result: {"pages":[{"id":1,"title":"A","content":"a"}]} done`)
	require.NoError(t, err)
	assert.Contains(t, v, "pages")
}

func TestExtractJSONStripsThinking(t *testing.T) {
	v, err := ExtractJSON("<think>let me plan</think>\n" + bookJSON)
	require.NoError(t, err)
	assert.Contains(t, v, "pages")
}

func TestParseStorybookAcceptsBareArray(t *testing.T) {
	pages, err := ParseStorybook(`[{"id":1,"title":"One","content":"First."},{"id":2,"title":"Two","content":"Second."}]`)
	require.NoError(t, err)
	require.Len(t, pages, 2)
	assert.Equal(t, "Two", pages[1].Title)
}

func TestParseStorybookRenumbersBadIDs(t *testing.T) {
	pages, err := ParseStorybook(`{"pages":[{"id":3,"title":"A","content":"a"},{"id":3,"title":"B","content":"b"},{"title":"C","content":"c"}]}`)
	require.NoError(t, err)
	assert.Equal(t, []int{1, 2, 3}, []int{pages[0].ID, pages[1].ID, pages[2].ID})
}

func TestParseStorybookFailsClosed(t *testing.T) {
	tests := []struct {
		name string
		raw  string
	}{
		{"not json", `The story begins with a qubit...`},
		{"truncated", `{"pages":[{"id":1,"title":"A","content":"a"},{"id":2,"title":`},
		{"missing pages", `{"chapters":[{"id":1,"title":"A","content":"a"}]}`},
		{"pages not array", `{"pages":"none"}`},
		{"empty pages", `{"pages":[]}`},
		{"page missing content", `{"pages":[{"id":1,"title":"A","content":"a"},{"id":2,"title":"B"}]}`},
		{"wrong field types", `{"pages":[{"id":"one","title":"A","content":"a"}]}`},
		{"empty", "  "},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			pages, err := ParseStorybook(tt.raw)
			assert.Nil(t, pages)

			var malformed *apperr.MalformedContentError
			require.True(t, errors.As(err, &malformed), "got %v", err)
			assert.Equal(t, tt.raw, malformed.Raw)
		})
	}
}

func TestParseMemeSelection(t *testing.T) {
	m, err := ParseMeme(`{"options":[{"text":"A","sarcasm_level":"low"},{"text":"B","sarcasm_level":"high"}]}`)
	require.NoError(t, err)
	assert.Equal(t, "B", m.Caption)
	assert.Len(t, m.Options, 2)

	m, err = ParseMeme(`[{"text":"A","sarcasm_level":"low"},{"text":"C","sarcasm_level":"low"}]`)
	require.NoError(t, err)
	assert.Equal(t, "A", m.Caption)

	m, err = ParseMeme("```json\n{\"options\":[{\"text\":\"A\",\"sarcasm_level\":\"low\"},{\"text\":\"M\",\"sarcasm_level\":\"Medium\"}]}\n```")
	require.NoError(t, err)
	assert.Equal(t, "M", m.Caption)
}

func TestParseMemeFailsClosed(t *testing.T) {
	for _, raw := range []string{
		`{"captions":[]}`,
		`{"options":[]}`,
		`{"options":[{"text":"  ","sarcasm_level":"high"}]}`,
		`nope`,
	} {
		_, err := ParseMeme(raw)
		var malformed *apperr.MalformedContentError
		assert.True(t, errors.As(err, &malformed), raw)
	}
}

func TestSelectCaptionFallsBackToFirst(t *testing.T) {
	assert.Equal(t, "x", SelectCaption([]schema.MemeOption{{Text: "x", SarcasmLevel: "none"}, {Text: "y"}}))
}

func TestStripMetaCommentary(t *testing.T) {
	tests := []struct {
		in, want string
	}{
		{"Sure! Here is a summary of quantum computing: Qubits hold superpositions.", "Qubits hold superpositions."},
		{"Qubits hold superpositions. I hope this helps! Let me know anything else.", "Qubits hold superpositions."},
		{"**Summary:** Qubits hold superpositions.", "Qubits hold superpositions."},
		{"Qubits hold superpositions.", "Qubits hold superpositions."},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, StripMetaCommentary(tt.in), tt.in)
	}
}
