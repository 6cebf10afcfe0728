package client

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"storyloom/pkg/apperr"
	"storyloom/pkg/entities"
	"storyloom/pkg/gateway"
	"storyloom/pkg/generation"
	"storyloom/pkg/schema"
)

const defaultHTTPTimeout = 2 * time.Minute

// Client talks to a storyloom server's generation API.
type Client struct {
	baseURL    string
	httpClient *http.Client
	forwarded  string
}

type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.httpClient = hc
		}
	}
}

// WithForwardedFor sets the client identity the server rate-limits on.
func WithForwardedFor(ip string) Option {
	return func(c *Client) { c.forwarded = strings.TrimSpace(ip) }
}

func New(baseURL string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		httpClient: &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// APIError is a non-2xx answer that is neither a validation nor a rate-limit
// failure. Its message was already made client-safe by the server.
type APIError struct {
	StatusCode int
	Message    string
	Details    string
}

func (e *APIError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("generation api: http %d: %s (%s)", e.StatusCode, e.Message, e.Details)
	}
	return fmt.Sprintf("generation api: http %d: %s", e.StatusCode, e.Message)
}

func (e *APIError) PublicMessage() (string, string) { return e.Message, e.Details }

type errorBody struct {
	Error     string `json:"error"`
	Message   string `json:"message"`
	Details   string `json:"details"`
	ResetTime int64  `json:"resetTime"`
}

type contentResponse struct {
	Success           bool                 `json:"success"`
	Content           json.RawMessage      `json:"content"`
	Type              entities.ContentType `json:"type"`
	RemainingRequests int                  `json:"remainingRequests"`
	ResetTime         int64                `json:"resetTime"`
}

type imageRequest struct {
	Prompt     string `json:"prompt"`
	PageID     int    `json:"pageId"`
	Regenerate bool   `json:"regenerate,omitempty"`
}

type imageResponse struct {
	Success           bool   `json:"success"`
	ImageURL          string `json:"imageUrl"`
	PageID            int    `json:"pageId"`
	Placeholder       bool   `json:"placeholder"`
	Note              string `json:"note"`
	RemainingRequests int    `json:"remainingRequests"`
	ResetTime         int64  `json:"resetTime"`
}

// GenerateContent calls /api/generate-content.
func (c *Client) GenerateContent(ctx context.Context, req entities.GenerationRequest) (generation.Content, error) {
	var resp contentResponse
	if err := c.post(ctx, "/api/generate-content", req, &resp); err != nil {
		return generation.Content{}, err
	}

	out := generation.Content{
		Type:  resp.Type,
		Quota: generation.Quota{Remaining: resp.RemainingRequests, ResetAt: time.UnixMilli(resp.ResetTime)},
	}
	var err error
	switch resp.Type {
	case entities.ContentSummary:
		err = json.Unmarshal(resp.Content, &out.Summary)
	case entities.ContentStorybook:
		err = json.Unmarshal(resp.Content, &out.Pages)
	case entities.ContentMemeText:
		out.Meme = new(schema.Meme)
		err = json.Unmarshal(resp.Content, out.Meme)
	default:
		err = fmt.Errorf("unexpected content type %q", resp.Type)
	}
	if err != nil {
		return generation.Content{}, &apperr.MalformedContentError{Reason: "unexpected generate-content response", Raw: string(resp.Content), Err: err}
	}
	return out, nil
}

// GenerateImage calls /api/generate-image.
func (c *Client) GenerateImage(ctx context.Context, prompt string, pageID int) (generation.Image, error) {
	return c.image(ctx, imageRequest{Prompt: prompt, PageID: pageID})
}

// RegenerateImage asks the server to skip recently generated images.
func (c *Client) RegenerateImage(ctx context.Context, prompt string, pageID int) (generation.Image, error) {
	return c.image(ctx, imageRequest{Prompt: prompt, PageID: pageID, Regenerate: true})
}

func (c *Client) image(ctx context.Context, req imageRequest) (generation.Image, error) {
	var resp imageResponse
	if err := c.post(ctx, "/api/generate-image", req, &resp); err != nil {
		return generation.Image{}, err
	}
	return generation.Image{
		ImageResult: gateway.ImageResult{URL: resp.ImageURL, Placeholder: resp.Placeholder, Note: resp.Note},
		PageID:      resp.PageID,
		Quota:       generation.Quota{Remaining: resp.RemainingRequests, ResetAt: time.UnixMilli(resp.ResetTime)},
	}, nil
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	payload, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.forwarded != "" {
		req.Header.Set("X-Forwarded-For", c.forwarded)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, 64<<20))
	if err != nil {
		return fmt.Errorf("%s: read response: %w", path, err)
	}
	if resp.StatusCode >= 300 {
		return decodeError(resp.StatusCode, raw)
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("%s: decode response: %w", path, err)
	}
	return nil
}

func decodeError(status int, raw []byte) error {
	var body errorBody
	if err := json.Unmarshal(raw, &body); err != nil || body.Error == "" {
		body.Error = strings.TrimSpace(string(raw))
		if body.Error == "" {
			body.Error = http.StatusText(status)
		}
	}

	switch status {
	case http.StatusBadRequest:
		return &apperr.ValidationError{Reason: body.Error}
	case http.StatusTooManyRequests:
		return &apperr.RateLimitedError{ResetAt: time.UnixMilli(body.ResetTime)}
	}
	return &APIError{StatusCode: status, Message: body.Error, Details: body.Details}
}
