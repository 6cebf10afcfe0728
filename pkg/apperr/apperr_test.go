package apperr

import (
	"errors"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestStatus(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, http.StatusOK},
		{"validation", &ValidationError{Field: "topic"}, http.StatusBadRequest},
		{"rate limited", &RateLimitedError{Limit: 10}, http.StatusTooManyRequests},
		{"wrapped validation", fmt.Errorf("bind: %w", &ValidationError{Field: "prompt"}), http.StatusBadRequest},
		{"configuration", &ConfigurationError{Cause: "GEMINI_API_KEY not set"}, http.StatusInternalServerError},
		{"upstream", &UpstreamError{StatusCode: 503}, http.StatusInternalServerError},
		{"malformed", &MalformedContentError{Reason: "missing pages"}, http.StatusInternalServerError},
		{"plain", errors.New("boom"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Status(tt.err))
		})
	}
}

func TestPublicHidesConfigurationCause(t *testing.T) {
	msg, details := Public(&ConfigurationError{Cause: "GEMINI_API_KEY environment variable not set"})
	assert.NotContains(t, msg, "GEMINI_API_KEY")
	assert.Empty(t, details)
}

func TestPublicUpstreamOmitsBody(t *testing.T) {
	msg, details := Public(&UpstreamError{StatusCode: 502, Body: "secret provider body"})
	assert.NotContains(t, msg, "secret")
	assert.NotContains(t, details, "secret")
	assert.Contains(t, details, "502")
}

func TestWaitSecondsRoundsUp(t *testing.T) {
	now := time.Unix(1000, 0)
	err := &RateLimitedError{ResetAt: now.Add(1500 * time.Millisecond), Now: now}
	assert.Equal(t, 2, err.WaitSeconds())
	assert.Contains(t, err.Error(), "2 seconds")

	expired := &RateLimitedError{ResetAt: now.Add(-time.Second), Now: now}
	assert.Equal(t, 0, expired.WaitSeconds())
}
