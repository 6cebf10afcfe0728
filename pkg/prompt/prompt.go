package prompt

import (
	"fmt"
	"strings"

	"storyloom/pkg/entities"
)

// Prompt is the system/user pair sent to the text model.
type Prompt struct {
	System string
	User   string
}

const summaryPrompt = `You are an expert science communicator. Explain the topic you are given in a single paragraph.

**Rules:**
- Write exactly one paragraph of plain prose, no headings, lists or markdown.
- Calibrate vocabulary and depth to a %s reader.
- Ground the explanation in the kind of material found in %s.
- Do not add any preamble such as "Here is" or closing remarks. Output only the paragraph.`

const storybookPrompt = `You are an illustrated-storybook author who turns technical topics into engaging stories for a %s audience, drawing on material typical of %s.

Write a storybook of exactly %d pages about the topic you are given.

**Output format:**
- Respond with ONLY valid JSON. No prose, no commentary, no markdown code fences.
- The JSON object has a single root key "pages" containing an array of exactly %d page objects.
- Each page object has:
  * "id": the page number, starting at 1.
  * "title": a short page title.
  * "content": two to four sentences of story text.
  * "imageDescription": one sentence describing an illustration for the page.

**Example:**
{"pages":[{"id":1,"title":"A Curious Spark","content":"...","imageDescription":"..."}]}`

const memePrompt = `You write short, witty meme captions about technical topics for a %s audience familiar with %s.

Write several caption options for a single-image meme about the topic you are given.

**Output format:**
- Respond with ONLY valid JSON. No prose, no commentary, no markdown code fences.
- The JSON object has a single root key "options" containing an array of 3 to 5 objects.
- Each object has "text" (the caption, at most 20 words) and "sarcasm_level" (one of "low", "medium", "high").
- Include at least one option with "sarcasm_level": "high".`

const imagePrompt = `Children's storybook illustration, warm colors, soft lighting, no text or lettering. Topic: %s. Scene: %s`

const memeImagePrompt = `Meme-style illustration with clear space at the top and bottom for a caption, no text in the image. Topic: %s. Mood of the caption: %s`

// Build constructs the prompt for a generation request. The request is
// expected to have passed Validate.
func Build(req entities.GenerationRequest) (Prompt, error) {
	level := strings.ToLower(string(req.Proficiency))
	source := strings.ToLower(string(req.Source))
	user := "Topic: " + strings.TrimSpace(req.Topic)

	switch req.Type {
	case entities.ContentSummary:
		return Prompt{
			System: fmt.Sprintf(summaryPrompt, level, source),
			User:   user,
		}, nil
	case entities.ContentStorybook:
		n := req.Pages()
		return Prompt{
			System: fmt.Sprintf(storybookPrompt, level, source, n, n),
			User:   fmt.Sprintf("%s\nNumber of pages: %d", user, n),
		}, nil
	case entities.ContentMemeText:
		return Prompt{
			System: fmt.Sprintf(memePrompt, level, source),
			User:   user,
		}, nil
	}
	return Prompt{}, fmt.Errorf("unknown content type %q", req.Type)
}

// Image builds the illustration prompt for a storybook page.
func Image(topic string, page entities.StoryPage) string {
	scene := strings.TrimSpace(page.ImageDescription)
	if scene == "" {
		scene = strings.TrimSpace(page.Title + ". " + page.Content)
	}
	return fmt.Sprintf(imagePrompt, strings.TrimSpace(topic), scene)
}

// MemeImage builds the illustration prompt for a meme caption.
func MemeImage(topic, caption string) string {
	return fmt.Sprintf(memeImagePrompt, strings.TrimSpace(topic), strings.TrimSpace(caption))
}
