package prompt

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/pkg/entities"
)

func TestBuildStorybook(t *testing.T) {
	p, err := Build(entities.GenerationRequest{
		Topic:       "Quantum Computing",
		Proficiency: entities.Beginner,
		Source:      entities.AcademicPapers,
		Type:        entities.ContentStorybook,
		PageCount:   11,
	})
	require.NoError(t, err)

	assert.Contains(t, p.System, "exactly 11 pages")
	assert.Contains(t, p.System, "ONLY valid JSON")
	assert.Contains(t, p.System, "beginner")
	assert.Contains(t, p.User, "Quantum Computing")
	assert.Contains(t, p.User, "11")
}

func TestBuildStorybookDefaultsPageCount(t *testing.T) {
	p, err := Build(entities.GenerationRequest{
		Topic:       "CRISPR",
		Proficiency: entities.Expert,
		Source:      entities.Newsletters,
		Type:        entities.ContentStorybook,
	})
	require.NoError(t, err)
	assert.Contains(t, p.System, "exactly 5 pages")
}

func TestBuildSummaryAndMeme(t *testing.T) {
	req := entities.GenerationRequest{
		Topic:       "Black Holes",
		Proficiency: entities.Intermediate,
		Source:      entities.Newsletters,
		Type:        entities.ContentSummary,
	}
	p, err := Build(req)
	require.NoError(t, err)
	assert.Contains(t, p.System, "single paragraph")
	assert.Contains(t, p.System, "intermediate")
	assert.Contains(t, p.User, "Black Holes")

	req.Type = entities.ContentMemeText
	p, err = Build(req)
	require.NoError(t, err)
	assert.Contains(t, p.System, "sarcasm_level")
	assert.Contains(t, p.System, "ONLY valid JSON")
}

func TestBuildUnknownType(t *testing.T) {
	_, err := Build(entities.GenerationRequest{Topic: "x", Type: "poem"})
	assert.Error(t, err)
}

func TestImagePromptFallsBackToContent(t *testing.T) {
	got := Image("Photosynthesis", entities.StoryPage{Title: "Leaves", Content: "Sunlight arrives."})
	assert.Contains(t, got, "Photosynthesis")
	assert.Contains(t, got, "Leaves. Sunlight arrives.")

	got = Image("Photosynthesis", entities.StoryPage{ImageDescription: "A leaf drinking sunlight"})
	assert.Contains(t, got, "A leaf drinking sunlight")
}
