package sanitize

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"storyloom/pkg/apperr"
	"storyloom/pkg/schema"
)

var fenceRX = regexp.MustCompile("(?s)```(?:json|JSON)?\\s*([\\[{].*?[\\]}])\\s*```")

// ExtractJSON pulls the JSON value out of raw model output. A fenced block is
// preferred when present; otherwise the trimmed text is parsed as-is, with a
// last attempt on the outermost object or array span.
func ExtractJSON(raw string) (any, error) {
	text := stripThinking(strings.TrimSpace(raw))
	if m := fenceRX.FindStringSubmatch(text); m != nil {
		text = m[1]
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, &apperr.MalformedContentError{Reason: "empty response", Raw: raw}
	}

	var v any
	err := json.Unmarshal([]byte(text), &v)
	if err == nil {
		return v, nil
	}

	for _, span := range spans(text) {
		if json.Unmarshal([]byte(span), &v) == nil {
			return v, nil
		}
	}
	return nil, &apperr.MalformedContentError{Reason: "invalid JSON", Raw: raw, Err: err}
}

// spans returns the outermost object and array spans of text that are
// narrower than text itself, the one opening first leading.
func spans(text string) []string {
	var out []string
	first := len(text)
	for _, pair := range []string{"{}", "[]"} {
		i, j := strings.IndexByte(text, pair[0]), strings.LastIndexByte(text, pair[1])
		if i < 0 || j <= i || (i == 0 && j == len(text)-1) {
			continue
		}
		if i < first {
			out = append([]string{text[i : j+1]}, out...)
			first = i
		} else {
			out = append(out, text[i:j+1])
		}
	}
	return out
}

// reasoning models sometimes leak their scratchpad ahead of the answer
func stripThinking(s string) string {
	if strings.Contains(s, "<think>") {
		if idx := strings.LastIndex(s, "</think>"); idx != -1 {
			return strings.TrimSpace(s[idx+len("</think>"):])
		}
	}
	return s
}

// ParseStorybook validates storybook output. Accepts a bare array of pages or
// an object with a "pages" key. Either every page is valid or nothing is returned.
func ParseStorybook(raw string) ([]schema.Page, error) {
	v, err := ExtractJSON(raw)
	if err != nil {
		return nil, err
	}
	items, err := arrayField(v, "pages", raw)
	if err != nil {
		return nil, err
	}
	if len(items) == 0 {
		return nil, &apperr.MalformedContentError{Reason: "storybook has no pages", Raw: raw}
	}

	var pages []schema.Page
	if err := reshape(items, &pages); err != nil {
		return nil, &apperr.MalformedContentError{Reason: "pages do not match the page schema", Raw: raw, Err: err}
	}

	seen := make(map[int]struct{}, len(pages))
	renumber := false
	for i, p := range pages {
		if strings.TrimSpace(p.Title) == "" || strings.TrimSpace(p.Content) == "" {
			return nil, &apperr.MalformedContentError{Reason: fmt.Sprintf("page %d is missing title or content", i+1), Raw: raw}
		}
		if _, dup := seen[p.ID]; dup || p.ID <= 0 {
			renumber = true
		}
		seen[p.ID] = struct{}{}
	}
	for i := range pages {
		if renumber {
			pages[i].ID = i + 1
		}
		pages[i].Title = strings.TrimSpace(pages[i].Title)
		pages[i].Content = strings.TrimSpace(pages[i].Content)
		pages[i].ImageDescription = strings.TrimSpace(pages[i].ImageDescription)
	}
	return pages, nil
}

// ParseMeme validates meme caption output and picks the most sarcastic
// option: "high", else "medium", else the first.
func ParseMeme(raw string) (schema.Meme, error) {
	v, err := ExtractJSON(raw)
	if err != nil {
		return schema.Meme{}, err
	}
	items, err := arrayField(v, "options", raw)
	if err != nil {
		return schema.Meme{}, err
	}

	var all []schema.MemeOption
	if err := reshape(items, &all); err != nil {
		return schema.Meme{}, &apperr.MalformedContentError{Reason: "options do not match the meme schema", Raw: raw, Err: err}
	}
	options := all[:0]
	for _, o := range all {
		o.Text = strings.TrimSpace(o.Text)
		o.SarcasmLevel = strings.ToLower(strings.TrimSpace(o.SarcasmLevel))
		if o.Text != "" {
			options = append(options, o)
		}
	}
	if len(options) == 0 {
		return schema.Meme{}, &apperr.MalformedContentError{Reason: "meme has no caption options", Raw: raw}
	}

	return schema.Meme{Caption: SelectCaption(options), Options: options}, nil
}

// SelectCaption expects a non-empty slice.
func SelectCaption(options []schema.MemeOption) string {
	for _, level := range []string{"high", "medium"} {
		for _, o := range options {
			if o.SarcasmLevel == level {
				return o.Text
			}
		}
	}
	return options[0].Text
}

func arrayField(v any, key, raw string) ([]any, error) {
	switch t := v.(type) {
	case []any:
		return t, nil
	case map[string]any:
		if arr, ok := t[key].([]any); ok {
			return arr, nil
		}
		return nil, &apperr.MalformedContentError{Reason: fmt.Sprintf("missing %q array", key), Raw: raw}
	}
	return nil, &apperr.MalformedContentError{Reason: fmt.Sprintf("expected an array or an object with %q", key), Raw: raw}
}

func reshape(in any, out any) error {
	b, err := json.Marshal(in)
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}
