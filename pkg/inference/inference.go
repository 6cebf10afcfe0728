package inference

import (
	"context"
	"errors"

	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"

	"storyloom/pkg/apperr"
)

// Inferencer runs a single text completion.
type Inferencer interface {
	Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error)
}

// Imager runs a single image generation.
type Imager interface {
	Imagine(ctx context.Context, prompt string) (Image, error)
}

// Image is whatever the provider produced for an image prompt. Providers may
// answer with inline bytes, a hosted URL, or only text.
type Image struct {
	Data     []byte
	MIMEType string
	URL      string
	Text     string
}

func (i Image) Empty() bool { return len(i.Data) == 0 && i.URL == "" }

// upstream wraps a provider SDK error, keeping the HTTP status when the SDK
// exposes one.
func upstream(err error) error {
	if err == nil {
		return nil
	}
	var oaErr *openai.Error
	if errors.As(err, &oaErr) {
		return &apperr.UpstreamError{StatusCode: oaErr.StatusCode, Body: oaErr.Message, Err: err}
	}
	var gErr genai.APIError
	if errors.As(err, &gErr) {
		return &apperr.UpstreamError{StatusCode: gErr.Code, Body: gErr.Message, Err: err}
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return err
	}
	return &apperr.UpstreamError{Err: err}
}
