// Package paper is the mocked paper-to-storybook pipeline: enrichment,
// story generation and export. Nothing here calls a model or the network.
package paper

import (
	"regexp"
	"strings"
	"time"
)

type StoryType string

const (
	Explainer     StoryType = "explainer"
	ClaimEvidence StoryType = "claim-evidence"
	Timeline      StoryType = "timeline"
	Comparison    StoryType = "comparison"
)

func (t StoryType) Valid() bool {
	switch t {
	case Explainer, ClaimEvidence, Timeline, Comparison:
		return true
	}
	return false
}

type Paper struct {
	Title   string   `json:"title"`
	Authors []string `json:"authors,omitempty"`
	Summary string   `json:"summary"`
	DOI     string   `json:"doi,omitempty"`
	URL     string   `json:"url,omitempty"`
}

type EnrichRequest struct {
	Summary     string `json:"summary"`
	DOI         string `json:"doi,omitempty"`
	URL         string `json:"url,omitempty"`
	MaxSnippets int    `json:"maxSnippets,omitempty"`
}

type EnrichmentSnippet struct {
	ID        string  `json:"id"`
	Text      string  `json:"text"`
	Source    string  `json:"source"`
	URL       string  `json:"url,omitempty"`
	Relevance float64 `json:"relevance"`
}

type GenerateOptions struct {
	Audience  string `json:"audience,omitempty"`
	Tone      string `json:"tone,omitempty"`
	MaxScenes int    `json:"maxScenes,omitempty"`
}

type GenerateRequest struct {
	StoryType StoryType           `json:"storyType"`
	Paper     Paper               `json:"paper"`
	Snippets  []EnrichmentSnippet `json:"snippets"`
	Options   *GenerateOptions    `json:"options,omitempty"`
}

type Scene struct {
	ID        string   `json:"id"`
	Heading   string   `json:"heading"`
	Body      string   `json:"body"`
	Citations []string `json:"citations,omitempty"`
}

// Story is the structured story a paper is turned into.
type Story struct {
	ID        string    `json:"id"`
	Title     string    `json:"title"`
	Type      StoryType `json:"type"`
	Audience  string    `json:"audience,omitempty"`
	Paper     Paper     `json:"paper"`
	Scenes    []Scene   `json:"scenes"`
	CreatedAt time.Time `json:"createdAt"`
}

type ExportRequest struct {
	Story   Story    `json:"story"`
	Formats []string `json:"formats"`
}

type File struct {
	Path    string `json:"path"`
	Content string `json:"content"`
}

type ExportResult struct {
	ZipURL string `json:"zipUrl"`
	Files  []File `json:"files"`
}

var sentenceRX = regexp.MustCompile(`[^.!?]+[.!?]*`)

func sentences(text string) []string {
	var out []string
	for _, s := range sentenceRX.FindAllString(text, -1) {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

var slugRX = regexp.MustCompile(`[^a-z0-9]+`)

func slug(s string) string {
	out := strings.Trim(slugRX.ReplaceAllString(strings.ToLower(s), "-"), "-")
	if out == "" {
		return "story"
	}
	return out
}
