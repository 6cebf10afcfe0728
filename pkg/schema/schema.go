package schema

import (
	"github.com/invopop/jsonschema"
	"github.com/openai/openai-go/v3"
)

func generateSchema[T any]() any {
	r := jsonschema.Reflector{
		AllowAdditionalProperties: false,
		DoNotReference:            true,
	}
	var v T
	return r.Reflect(v)
}

var (
	StorybookSchema = generateSchema[Storybook]()
	MemeSchema      = generateSchema[MemeOptions]()
)

// StorybookResponseFormat asks OpenAI-compatible providers for strict storybook JSON.
func StorybookResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return responseFormat("storybook_pages", "Paginated illustrated storybook about a topic", StorybookSchema)
}

// MemeResponseFormat asks OpenAI-compatible providers for strict meme caption options.
func MemeResponseFormat() openai.ChatCompletionNewParamsResponseFormatUnion {
	return responseFormat("meme_options", "Meme caption options tagged with a sarcasm level", MemeSchema)
}

func responseFormat(name, description string, schema any) openai.ChatCompletionNewParamsResponseFormatUnion {
	p := openai.ResponseFormatJSONSchemaJSONSchemaParam{
		Name:        name,
		Description: openai.String(description),
		Schema:      schema,
		Strict:      openai.Bool(true),
	}
	return openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONSchema: &openai.ResponseFormatJSONSchemaParam{JSONSchema: p},
	}
}
