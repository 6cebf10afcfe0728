// Package apperr holds the error kinds surfaced by the generation pipeline and
// their mapping onto HTTP responses.
package apperr

import (
	"errors"
	"fmt"
	"math"
	"net/http"
	"time"
)

// ValidationError is a missing or invalid request field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.Reason != "" {
		return e.Reason
	}
	return "missing required field: " + e.Field
}

// RateLimitedError is returned when a client exhausted its window.
type RateLimitedError struct {
	Limit   int
	ResetAt time.Time
	Now     time.Time
}

// WaitSeconds rounds the remaining window up to whole seconds.
func (e *RateLimitedError) WaitSeconds() int {
	now := e.Now
	if now.IsZero() {
		now = time.Now()
	}
	d := e.ResetAt.Sub(now)
	if d <= 0 {
		return 0
	}
	return int(math.Ceil(d.Seconds()))
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("rate limit exceeded, try again in %d seconds", e.WaitSeconds())
}

// ConfigurationError means the service cannot reach the provider at all,
// typically a missing credential. Cause is for logs only.
type ConfigurationError struct {
	Cause string
}

func (e *ConfigurationError) Error() string { return "configuration error: " + e.Cause }

// UpstreamError is a non-success answer from the model provider.
type UpstreamError struct {
	StatusCode int
	Body       string
	Err        error
}

func (e *UpstreamError) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("upstream provider error: %v", e.Err)
	}
	return fmt.Sprintf("upstream provider returned status %d", e.StatusCode)
}

func (e *UpstreamError) Unwrap() error { return e.Err }

// EmptyResponseError means the provider answered successfully with nothing usable.
type EmptyResponseError struct {
	What string
}

func (e *EmptyResponseError) Error() string { return "provider returned no " + e.What }

// MalformedContentError is content that failed shape validation. Raw keeps
// the offending model output for diagnosis.
type MalformedContentError struct {
	Reason string
	Raw    string
	Err    error
}

func (e *MalformedContentError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed content: %s: %v", e.Reason, e.Err)
	}
	return "malformed content: " + e.Reason
}

func (e *MalformedContentError) Unwrap() error { return e.Err }

// ImageGenerationError is recorded when an image falls back to a placeholder.
// It never reaches clients as a failure.
type ImageGenerationError struct {
	Prompt string
	Err    error
}

func (e *ImageGenerationError) Error() string {
	return fmt.Sprintf("image generation failed: %v", e.Err)
}

func (e *ImageGenerationError) Unwrap() error { return e.Err }

// publicError is implemented by errors that already carry a client-safe
// message, such as errors relayed from a remote generation API.
type publicError interface {
	PublicMessage() (message, details string)
}

// Status maps an error to the HTTP status the API answers with.
func Status(err error) int {
	var (
		validation *ValidationError
		limited    *RateLimitedError
	)
	switch {
	case err == nil:
		return http.StatusOK
	case errors.As(err, &validation):
		return http.StatusBadRequest
	case errors.As(err, &limited):
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Public returns the message that is safe to show a client, plus optional
// details. Configuration causes and raw provider bodies are never included.
func Public(err error) (message, details string) {
	var self publicError
	if errors.As(err, &self) {
		return self.PublicMessage()
	}
	var (
		validation *ValidationError
		limited    *RateLimitedError
		config     *ConfigurationError
		upstream   *UpstreamError
		empty      *EmptyResponseError
		malformed  *MalformedContentError
	)
	switch {
	case errors.As(err, &validation):
		return validation.Error(), ""
	case errors.As(err, &limited):
		return limited.Error(), ""
	case errors.As(err, &config):
		return "The generation service is not configured correctly", ""
	case errors.As(err, &upstream):
		if upstream.StatusCode != 0 {
			return "The content provider returned an error", fmt.Sprintf("provider status %d", upstream.StatusCode)
		}
		return "The content provider could not be reached", ""
	case errors.As(err, &empty):
		return "The content provider returned an empty response", empty.Error()
	case errors.As(err, &malformed):
		if malformed.Err != nil {
			return "The generated content could not be parsed", malformed.Reason + ": " + malformed.Err.Error()
		}
		return "The generated content could not be parsed", malformed.Reason
	}
	return "Internal server error", ""
}
