package inference

import (
	"cmp"
	"context"
	"encoding/base64"
	"fmt"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
	"github.com/openai/openai-go/v3/packages/param"

	"storyloom/pkg/apperr"
)

// Base URLs of OpenAI-compatible providers.
var compatibleBaseURLs = map[string]string{
	"grok":     "https://api.x.ai/v1",
	"moonshot": "https://api.moonshot.ai/v1",
	"kimi":     "https://api.kimi.com/coding/v1",
}

var compatibleModels = map[string]string{
	"openai":   "gpt-4o-mini",
	"grok":     "grok-4-fast-reasoning",
	"moonshot": "kimi-k2-5",
	"kimi":     "kimi-for-coding",
}

// OpenAIInferencer implements Inferencer and Imager using OpenAI's official Go SDK.
type OpenAIInferencer struct {
	client     *openai.Client
	apiKey     string
	model      string
	imageModel string
}

// NewOpenAIInferencer creates a new inferencer instance using OpenAI client.
func NewOpenAIInferencer(apiKey string, model string) *OpenAIInferencer {
	return NewCompatibleInferencer("openai", apiKey, model)
}

// NewCompatibleInferencer targets any OpenAI-compatible API by provider name
// ("openai", "grok", "moonshot", "kimi").
func NewCompatibleInferencer(provider, apiKey, model string) *OpenAIInferencer {
	opts := []option.RequestOption{option.WithAPIKey(apiKey)}
	if base, ok := compatibleBaseURLs[provider]; ok {
		opts = append(opts, option.WithBaseURL(base))
	}
	client := openai.NewClient(opts...)
	return &OpenAIInferencer{
		client:     &client,
		apiKey:     apiKey,
		model:      cmp.Or(model, compatibleModels[provider], compatibleModels["openai"]),
		imageModel: string(openai.ImageModelGPTImage1),
	}
}

func (o *OpenAIInferencer) ChangeBaseURL(baseURL string) {
	client := openai.NewClient(
		option.WithAPIKey(o.apiKey),
		option.WithBaseURL(baseURL),
	)
	o.client = &client
}

func (o *OpenAIInferencer) SetImageModel(model string) {
	if model != "" {
		o.imageModel = model
	}
}

// Infer sends text to the chat completion endpoint and returns the output.
func (o *OpenAIInferencer) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	if params == nil {
		params = new(openai.ChatCompletionNewParams)
	} else {
		cp := *params
		params = &cp
	}
	params.Model = cmp.Or(params.Model, o.model)
	params.Messages = []openai.ChatCompletionMessageParamUnion{
		{
			OfSystem: &openai.ChatCompletionSystemMessageParam{
				Role: "system",
				Content: openai.ChatCompletionSystemMessageParamContentUnion{
					OfString: param.Opt[string]{Value: system},
				},
			}},
		{
			OfUser: &openai.ChatCompletionUserMessageParam{
				Role: "user",
				Content: openai.ChatCompletionUserMessageParamContentUnion{
					OfString: param.Opt[string]{Value: user},
				},
			},
		},
	}

	params.MaxCompletionTokens = openai.Int(cmp.Or(params.MaxCompletionTokens.Value, 4096))
	params.Temperature = openai.Float(cmp.Or(params.Temperature.Value, 0.7))
	params.TopP = openai.Float(cmp.Or(params.TopP.Value, 1.0))

	resp, err := o.client.Chat.Completions.New(ctx, *params)
	if err != nil {
		return "", fmt.Errorf("openai inference error: %w", upstream(err))
	}
	if len(resp.Choices) == 0 || resp.Choices[0].Message.Content == "" {
		return "", &apperr.EmptyResponseError{What: "completion content"}
	}

	return resp.Choices[0].Message.Content, nil
}

// Imagine generates one image. gpt-image models answer with base64 data,
// older models may answer with a hosted URL.
func (o *OpenAIInferencer) Imagine(ctx context.Context, prompt string) (Image, error) {
	resp, err := o.client.Images.Generate(ctx, openai.ImageGenerateParams{
		Prompt: prompt,
		Model:  openai.ImageModel(o.imageModel),
		N:      openai.Int(1),
		Size:   openai.ImageGenerateParamsSize1024x1024,
	})
	if err != nil {
		return Image{}, fmt.Errorf("openai image error: %w", upstream(err))
	}
	if len(resp.Data) == 0 {
		return Image{}, nil
	}

	d := resp.Data[0]
	if d.B64JSON != "" {
		data, err := base64.StdEncoding.DecodeString(d.B64JSON)
		if err != nil {
			return Image{}, fmt.Errorf("decoding image payload: %w", err)
		}
		return Image{Data: data, MIMEType: "image/png", Text: d.RevisedPrompt}, nil
	}
	return Image{URL: d.URL, Text: d.RevisedPrompt}, nil
}
