package schema

type Storybook struct {
	Pages []Page `json:"pages" jsonschema_description:"Storybook pages in reading order"`
}

type Page struct {
	ID               int    `json:"id" jsonschema_description:"Page number starting at 1"`
	Title            string `json:"title" jsonschema_description:"Short page title"`
	Content          string `json:"content" jsonschema_description:"Two to four sentences of story text"`
	ImageDescription string `json:"imageDescription" jsonschema_description:"One sentence describing the illustration for this page"`
}

type MemeOptions struct {
	Options []MemeOption `json:"options" jsonschema_description:"Caption candidates for a single-image meme"`
}

type MemeOption struct {
	Text         string `json:"text" jsonschema_description:"Caption text, at most 20 words"`
	SarcasmLevel string `json:"sarcasm_level" jsonschema:"enum=low,enum=medium,enum=high" jsonschema_description:"How sarcastic the caption is"`
}

// Meme is what the API returns for meme-text requests.
type Meme struct {
	Caption string       `json:"caption"`
	Options []MemeOption `json:"options"`
}
