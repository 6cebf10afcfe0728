package paper

import (
	"fmt"
	"strings"
	"time"

	"github.com/segmentio/ksuid"
)

const defaultMaxScenes = 6

// Generate turns a paper and its snippets into a story of the requested type.
// Unknown types fall back to an explainer.
func Generate(req GenerateRequest) Story {
	t := req.StoryType
	if !t.Valid() {
		t = Explainer
	}
	opts := GenerateOptions{}
	if req.Options != nil {
		opts = *req.Options
	}
	limit := opts.MaxScenes
	if limit <= 0 {
		limit = defaultMaxScenes
	}

	title := strings.TrimSpace(req.Paper.Title)
	if title == "" {
		title = "Untitled paper"
	}
	snippets := req.Snippets
	if len(snippets) == 0 {
		snippets = Enrich(EnrichRequest{Summary: req.Paper.Summary, DOI: req.Paper.DOI, URL: req.Paper.URL})
	}

	var scenes []Scene
	switch t {
	case ClaimEvidence:
		scenes = claimEvidence(req.Paper, snippets)
	case Timeline:
		scenes = timeline(snippets)
	case Comparison:
		scenes = comparison(snippets)
	default:
		scenes = explainer(title, snippets)
	}
	if len(scenes) > limit {
		scenes = scenes[:limit]
	}
	for i := range scenes {
		scenes[i].ID = fmt.Sprintf("scene-%d", i+1)
	}

	return Story{
		ID:        ksuid.New().String(),
		Title:     title,
		Type:      t,
		Audience:  opts.Audience,
		Paper:     req.Paper,
		Scenes:    scenes,
		CreatedAt: time.Now().UTC(),
	}
}

func explainer(title string, snippets []EnrichmentSnippet) []Scene {
	headings := []string{"What is it?", "How does it work?", "Why does it matter?"}
	scenes := []Scene{{Heading: title, Body: "A short guide to " + title + "."}}
	for i, s := range snippets {
		h := "Going deeper"
		if i < len(headings) {
			h = headings[i]
		}
		scenes = append(scenes, Scene{Heading: h, Body: s.Text, Citations: []string{s.ID}})
	}
	return scenes
}

func claimEvidence(p Paper, snippets []EnrichmentSnippet) []Scene {
	claim := strings.TrimSpace(p.Summary)
	if parts := sentences(claim); len(parts) > 0 {
		claim = parts[0]
	}
	scenes := []Scene{{Heading: "The claim", Body: claim}}
	for i, s := range snippets {
		scenes = append(scenes, Scene{
			Heading:   fmt.Sprintf("Evidence %d", i+1),
			Body:      s.Text,
			Citations: []string{s.ID},
		})
	}
	return append(scenes, Scene{Heading: "Verdict", Body: fmt.Sprintf("%d pieces of evidence support the claim.", len(snippets))})
}

func timeline(snippets []EnrichmentSnippet) []Scene {
	scenes := make([]Scene, 0, len(snippets))
	for i, s := range snippets {
		scenes = append(scenes, Scene{
			Heading:   fmt.Sprintf("Step %d", i+1),
			Body:      s.Text,
			Citations: []string{s.ID},
		})
	}
	return scenes
}

func comparison(snippets []EnrichmentSnippet) []Scene {
	var scenes []Scene
	for i := 0; i < len(snippets); i += 2 {
		before := snippets[i]
		scene := Scene{Heading: "Before", Body: before.Text, Citations: []string{before.ID}}
		if i+1 < len(snippets) {
			after := snippets[i+1]
			scene.Heading = "Before and after"
			scene.Body = before.Text + " In contrast: " + after.Text
			scene.Citations = append(scene.Citations, after.ID)
		}
		scenes = append(scenes, scene)
	}
	return scenes
}
