package inference

import (
	"cmp"
	"context"
	"fmt"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"storyloom/pkg/apperr"
)

type GeminiInferencer struct {
	client     *genai.Client
	apiKey     string
	model      string
	imageModel string
}

// NewGeminiInferencer creates a text and image inferencer backed by the Gemini API.
func NewGeminiInferencer(apiKey string, model, imageModel string) (*GeminiInferencer, error) {
	client, err := genai.NewClient(context.Background(), &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, err
	}
	return &GeminiInferencer{
		client:     client,
		apiKey:     apiKey,
		model:      cmp.Or(model, "gemini-2.5-flash"),
		imageModel: cmp.Or(imageModel, "gemini-2.5-flash-image"),
	}, nil
}

// Infer sends text to Gemini. Only MaxCompletionTokens, Temperature and
// ResponseFormat are read from params.
func (o *GeminiInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	}
	config := &genai.GenerateContentConfig{
		SystemInstruction: genai.NewContentFromText(system, genai.RoleModel),
		MaxOutputTokens:   int32(cmp.Or(params.MaxCompletionTokens.Value, 4096)),
	}
	if params.Temperature.Value > 0 {
		config.Temperature = genai.Ptr(float32(params.Temperature.Value))
	}
	if params.ResponseFormat.OfJSONSchema != nil {
		config.ResponseMIMEType = "application/json"
	}

	result, err := o.client.Models.GenerateContent(
		ctx,
		cmp.Or(params.Model, o.model),
		genai.Text(user),
		config,
	)
	if err != nil {
		return "", fmt.Errorf("failed to generate content: %w", upstream(err))
	}

	text := result.Text()
	if text == "" {
		return "", &apperr.EmptyResponseError{What: "text"}
	}
	return text, nil
}

// Imagine asks the image model for an illustration. The model may decline to
// draw and answer with text only, which is returned as an Image without data.
func (o *GeminiInferencer) Imagine(ctx context.Context, prompt string) (Image, error) {
	result, err := o.client.Models.GenerateContent(
		ctx,
		o.imageModel,
		genai.Text(prompt),
		&genai.GenerateContentConfig{ResponseModalities: []string{"TEXT", "IMAGE"}},
	)
	if err != nil {
		return Image{}, fmt.Errorf("failed to generate image: %w", upstream(err))
	}

	var img Image
	for _, cand := range result.Candidates {
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			switch {
			case part.InlineData != nil && len(part.InlineData.Data) > 0 && img.Data == nil:
				img.Data = part.InlineData.Data
				img.MIMEType = part.InlineData.MIMEType
			case part.Text != "":
				img.Text += part.Text
			}
		}
	}
	return img, nil
}
