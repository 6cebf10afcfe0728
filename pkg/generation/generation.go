package generation

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storyloom/pkg/apperr"
	"storyloom/pkg/entities"
	"storyloom/pkg/gateway"
	"storyloom/pkg/metrics"
	"storyloom/pkg/prompt"
	"storyloom/pkg/ratelimit"
	"storyloom/pkg/sanitize"
	"storyloom/pkg/schema"
)

// Provider is the part of the gateway the service depends on.
type Provider interface {
	GenerateText(ctx context.Context, p prompt.Prompt, maxOutputTokens int) (string, error)
	GenerateJSON(ctx context.Context, p prompt.Prompt, maxOutputTokens int, format openai.ChatCompletionNewParamsResponseFormatUnion) (string, error)
	GenerateImage(ctx context.Context, prompt string) gateway.ImageResult
	RegenerateImage(ctx context.Context, prompt string) gateway.ImageResult
}

// Quota is the caller's remaining budget after a request was admitted.
type Quota struct {
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// Content is a sanitised generation result. Exactly one of Summary, Pages
// or Meme is set, according to Type.
type Content struct {
	Type    entities.ContentType
	Summary string
	Pages   []schema.Page
	Meme    *schema.Meme
	Quota   Quota
}

// Value is the JSON "content" field of the API response.
func (c Content) Value() any {
	switch c.Type {
	case entities.ContentStorybook:
		return c.Pages
	case entities.ContentMemeText:
		return c.Meme
	}
	return c.Summary
}

// Image is an image result with the quota it was admitted under.
type Image struct {
	gateway.ImageResult
	PageID int
	Quota  Quota
}

// Service runs one generation request end to end: validation, rate limiting,
// prompt construction, the provider call and sanitisation.
type Service struct {
	provider Provider
	text     ratelimit.Limiter
	image    ratelimit.Limiter

	// Structured requests JSON-schema constrained output for storybooks and
	// memes. The sanitiser still runs either way.
	Structured bool
	now        func() time.Time
}

func New(provider Provider, text, image ratelimit.Limiter) *Service {
	return &Service{
		provider:   provider,
		text:       text,
		image:      image,
		Structured: true,
		now:        time.Now,
	}
}

// GenerateContent answers a summary, storybook or meme-text request for client.
func (s *Service) GenerateContent(ctx context.Context, client string, req entities.GenerationRequest) (Content, error) {
	if err := req.Validate(); err != nil {
		return Content{}, validation(err)
	}

	quota, err := s.admit(ctx, s.text, "text", client)
	if err != nil {
		return Content{}, err
	}

	p, err := prompt.Build(req)
	if err != nil {
		return Content{}, &apperr.ValidationError{Field: "type", Reason: err.Error()}
	}

	budget := gateway.MaxOutputTokens(req.Type, req.Pages())
	start := time.Now()
	raw, err := s.complete(ctx, req.Type, p, budget)
	metrics.GenerationDuration.WithLabelValues(string(req.Type)).Observe(time.Since(start).Seconds())
	if err != nil {
		metrics.GenerationRequests.WithLabelValues(string(req.Type), "error").Inc()
		return Content{}, err
	}

	out := Content{Type: req.Type, Quota: quota}
	switch req.Type {
	case entities.ContentSummary:
		out.Summary = sanitize.StripMetaCommentary(raw)
		if out.Summary == "" {
			err = &apperr.EmptyResponseError{What: "summary"}
		}
	case entities.ContentStorybook:
		out.Pages, err = sanitize.ParseStorybook(raw)
	case entities.ContentMemeText:
		var meme schema.Meme
		meme, err = sanitize.ParseMeme(raw)
		out.Meme = &meme
	}
	if err != nil {
		var malformed *apperr.MalformedContentError
		if errors.As(err, &malformed) {
			log.Warn("model output failed validation", "type", req.Type, "reason", malformed.Reason, "raw", malformed.Raw)
		}
		metrics.GenerationRequests.WithLabelValues(string(req.Type), "malformed").Inc()
		return Content{}, err
	}

	if req.Type == entities.ContentStorybook && len(out.Pages) != req.Pages() {
		log.Info("storybook page count differs from request", "requested", req.Pages(), "received", len(out.Pages))
	}
	metrics.GenerationRequests.WithLabelValues(string(req.Type), "ok").Inc()
	return out, nil
}

func (s *Service) complete(ctx context.Context, t entities.ContentType, p prompt.Prompt, budget int) (string, error) {
	if !s.Structured {
		return s.provider.GenerateText(ctx, p, budget)
	}
	switch t {
	case entities.ContentStorybook:
		return s.provider.GenerateJSON(ctx, p, budget, schema.StorybookResponseFormat())
	case entities.ContentMemeText:
		return s.provider.GenerateJSON(ctx, p, budget, schema.MemeResponseFormat())
	}
	return s.provider.GenerateText(ctx, p, budget)
}

// GenerateImage answers an image request. Only validation and rate limiting
// fail; provider problems resolve to a placeholder.
func (s *Service) GenerateImage(ctx context.Context, client, imagePrompt string, pageID int) (Image, error) {
	return s.illustrate(ctx, client, imagePrompt, pageID, s.provider.GenerateImage)
}

// RegenerateImage is GenerateImage without reusing a recent result for the
// same prompt.
func (s *Service) RegenerateImage(ctx context.Context, client, imagePrompt string, pageID int) (Image, error) {
	return s.illustrate(ctx, client, imagePrompt, pageID, s.provider.RegenerateImage)
}

func (s *Service) illustrate(ctx context.Context, client, imagePrompt string, pageID int, run func(context.Context, string) gateway.ImageResult) (Image, error) {
	if strings.TrimSpace(imagePrompt) == "" {
		return Image{}, &apperr.ValidationError{Field: "prompt"}
	}

	quota, err := s.admit(ctx, s.image, "image", client)
	if err != nil {
		return Image{}, err
	}

	return Image{
		ImageResult: run(ctx, imagePrompt),
		PageID:      pageID,
		Quota:       quota,
	}, nil
}

func (s *Service) admit(ctx context.Context, l ratelimit.Limiter, name, client string) (Quota, error) {
	d, err := l.Check(ctx, client)
	if err != nil {
		return Quota{}, fmt.Errorf("checking %s rate limit: %w", name, err)
	}
	if !d.Allowed {
		metrics.RateLimited.WithLabelValues(name).Inc()
		log.Info("rate limited", "limiter", name, "client", client, "reset", d.ResetAt)
		return Quota{}, &apperr.RateLimitedError{Limit: d.Limit, ResetAt: d.ResetAt, Now: s.now()}
	}
	return Quota{Limit: d.Limit, Remaining: d.Remaining, ResetAt: d.ResetAt}, nil
}

func validation(err error) error {
	var fe *entities.FieldError
	if errors.As(err, &fe) {
		return &apperr.ValidationError{Field: fe.Field, Reason: fe.Error()}
	}
	return &apperr.ValidationError{Reason: err.Error()}
}

// Caller is the service bound to one client key.
type Caller struct {
	s      *Service
	client string
}

func (s *Service) As(client string) Caller {
	return Caller{s: s, client: client}
}

func (c Caller) GenerateContent(ctx context.Context, req entities.GenerationRequest) (Content, error) {
	return c.s.GenerateContent(ctx, c.client, req)
}

func (c Caller) GenerateImage(ctx context.Context, prompt string, pageID int) (Image, error) {
	return c.s.GenerateImage(ctx, c.client, prompt, pageID)
}

func (c Caller) RegenerateImage(ctx context.Context, prompt string, pageID int) (Image, error) {
	return c.s.RegenerateImage(ctx, c.client, prompt, pageID)
}
