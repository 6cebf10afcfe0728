package entities

import (
	"fmt"
	"strings"
	"time"
)

type Proficiency string

const (
	Beginner     Proficiency = "Beginner"
	Intermediate Proficiency = "Intermediate"
	Expert       Proficiency = "Expert"
)

type Source string

const (
	AcademicPapers Source = "Academic Papers"
	Newsletters    Source = "Newsletters"
)

type ContentType string

const (
	ContentSummary   ContentType = "summary"
	ContentStorybook ContentType = "storybook"
	ContentMemeText  ContentType = "meme-text"
)

const (
	DefaultPageCount = 5
	MaxPageCount     = 30
)

// GenerationRequest is built fresh for every outbound generation call.
type GenerationRequest struct {
	Topic       string      `json:"topic"`
	Proficiency Proficiency `json:"proficiency"`
	Source      Source      `json:"source"`
	Type        ContentType `json:"type"`
	PageCount   int         `json:"pageCount,omitempty"`
}

// Validate reports the first missing or invalid field.
func (r GenerationRequest) Validate() error {
	switch {
	case strings.TrimSpace(r.Topic) == "":
		return &FieldError{Field: "topic"}
	case !r.Proficiency.Valid():
		return &FieldError{Field: "proficiency", Value: string(r.Proficiency)}
	case !r.Source.Valid():
		return &FieldError{Field: "source", Value: string(r.Source)}
	case !r.Type.Valid():
		return &FieldError{Field: "type", Value: string(r.Type)}
	case r.PageCount < 0 || r.PageCount > MaxPageCount:
		return &FieldError{Field: "pageCount", Value: fmt.Sprint(r.PageCount)}
	}
	return nil
}

// Pages returns the requested page count, falling back to the default.
func (r GenerationRequest) Pages() int {
	if r.PageCount <= 0 {
		return DefaultPageCount
	}
	return r.PageCount
}

// FieldError names a request field that is missing or holds an unsupported value.
type FieldError struct {
	Field string
	Value string
}

func (e *FieldError) Error() string {
	if e.Value == "" {
		return "missing required field: " + e.Field
	}
	return fmt.Sprintf("invalid value for %s: %q", e.Field, e.Value)
}

func (p Proficiency) Valid() bool {
	switch p {
	case Beginner, Intermediate, Expert:
		return true
	}
	return false
}

func (s Source) Valid() bool {
	switch s {
	case AcademicPapers, Newsletters:
		return true
	}
	return false
}

func (c ContentType) Valid() bool {
	switch c {
	case ContentSummary, ContentStorybook, ContentMemeText:
		return true
	}
	return false
}

// LengthPreset is the user-facing choice of how long the generated work is.
type LengthPreset string

const (
	LengthShort  LengthPreset = "Short (5 Pages)"
	LengthMedium LengthPreset = "Medium (11 Pages)"
	LengthFull   LengthPreset = "Full Chapter (30 Pages)"
	LengthMeme   LengthPreset = "Meme"
)

var LengthPresets = []LengthPreset{LengthShort, LengthMedium, LengthFull, LengthMeme}

func (l LengthPreset) Valid() bool {
	switch l {
	case LengthShort, LengthMedium, LengthFull, LengthMeme:
		return true
	}
	return false
}

func (l LengthPreset) IsMeme() bool { return l == LengthMeme }

// PageCount maps a preset onto the number of storybook pages. Memes have none.
func (l LengthPreset) PageCount() int {
	switch l {
	case LengthMedium:
		return 11
	case LengthFull:
		return 30
	case LengthMeme:
		return 0
	default:
		return DefaultPageCount
	}
}

type ScrollDirection string

const (
	ScrollVertical   ScrollDirection = "vertical"
	ScrollHorizontal ScrollDirection = "horizontal"
)

// StoryPage is one page of a storybook. ImageLoading and a non-nil ImageURL
// are mutually exclusive.
type StoryPage struct {
	ID               int     `json:"id"`
	Title            string  `json:"title"`
	Content          string  `json:"content"`
	ImageDescription string  `json:"imageDescription,omitempty"`
	ImageURL         *string `json:"imageUrl"`
	ImageLoading     bool    `json:"imageLoading"`
}

// BeginImage puts the page into the loading state.
func (p *StoryPage) BeginImage() {
	p.ImageURL = nil
	p.ImageLoading = true
}

// ResolveImage stores the final image (real or placeholder) and ends loading.
func (p *StoryPage) ResolveImage(url string) {
	p.ImageURL = &url
	p.ImageLoading = false
}

// NeedsImage reports whether the page has no usable image and nothing in flight.
func (p StoryPage) NeedsImage(failure string) bool {
	if p.ImageLoading {
		return false
	}
	return p.ImageURL == nil || *p.ImageURL == "" || *p.ImageURL == failure
}

// MemeState is a single captioned image.
type MemeState struct {
	Text         string  `json:"text"`
	ImageURL     *string `json:"imageUrl"`
	ImageLoading bool    `json:"imageLoading"`
}

func (m *MemeState) BeginImage() {
	m.ImageURL = nil
	m.ImageLoading = true
}

func (m *MemeState) ResolveImage(url string) {
	m.ImageURL = &url
	m.ImageLoading = false
}

func (m MemeState) NeedsImage(failure string) bool {
	if m.ImageLoading || m.Text == "" {
		return false
	}
	return m.ImageURL == nil || *m.ImageURL == "" || *m.ImageURL == failure
}

type EntryKind string

const (
	KindStorybook EntryKind = "storybook"
	KindMeme      EntryKind = "meme"
)

// LibraryEntry is a saved work on the bookshelf.
type LibraryEntry struct {
	ID        int64       `json:"id"`
	Kind      EntryKind   `json:"kind"`
	Topic     string      `json:"topic"`
	Summary   string      `json:"summary"`
	Storybook []StoryPage `json:"storybook"`
	CreatedAt time.Time   `json:"createdAt"`

	Proficiency Proficiency `json:"proficiency,omitempty"`
	Source      Source      `json:"source,omitempty"`
}

// Step is a position in the generation flow.
type Step int

const (
	StepTopicEntry Step = iota + 1
	StepOptionsEntry
	StepSummaryLoading
	StepSummaryReady
	StepContentDisplay
	StepLibraryView
)

func (s Step) String() string {
	switch s {
	case StepTopicEntry:
		return "topic"
	case StepOptionsEntry:
		return "options"
	case StepSummaryLoading:
		return "summary-loading"
	case StepSummaryReady:
		return "summary"
	case StepContentDisplay:
		return "content"
	case StepLibraryView:
		return "library"
	}
	return fmt.Sprintf("step(%d)", int(s))
}

// SessionState is the single in-progress unit of work for one client.
type SessionState struct {
	ID                string          `json:"id"`
	CurrentStep       Step            `json:"currentStep"`
	CurrentTopic      string          `json:"currentTopic"`
	CurrentSummary    string          `json:"currentSummary"`
	CurrentTextLength LengthPreset    `json:"currentTextLength"`
	CurrentStorybook  []StoryPage     `json:"currentStorybook"`
	CurrentMemeData   MemeState       `json:"currentMemeData"`
	Proficiency       Proficiency     `json:"proficiency,omitempty"`
	Source            Source          `json:"source,omitempty"`
	ScrollDirection   ScrollDirection `json:"scrollDirection,omitempty"`
	Error             string          `json:"error,omitempty"`
	ViewingEntryID    int64           `json:"viewingEntryId,omitempty"`
	UpdatedAt         time.Time       `json:"updatedAt"`
}

// NewSession returns an empty session at the topic step.
func NewSession(id string) SessionState {
	return SessionState{
		ID:          id,
		CurrentStep: StepTopicEntry,
		UpdatedAt:   time.Now().UTC(),
	}
}

// Page returns a pointer to the page with the given id, or nil.
func (s *SessionState) Page(id int) *StoryPage {
	for i := range s.CurrentStorybook {
		if s.CurrentStorybook[i].ID == id {
			return &s.CurrentStorybook[i]
		}
	}
	return nil
}

// RateLimitRecord is one fixed-window counter.
type RateLimitRecord struct {
	Count   int       `json:"count"`
	ResetAt time.Time `json:"resetAt"`
}
