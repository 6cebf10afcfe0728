package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Registry holds every storyloom metric; served on /metrics.
	Registry = prometheus.NewRegistry()

	GenerationRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_generation_requests_total",
			Help: "Text generation requests, partitioned by content type and outcome.",
		},
		[]string{"type", "outcome"},
	)
	GenerationDuration = promauto.With(Registry).NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "storyloom_generation_duration_seconds",
			Help:    "Duration of provider text generation calls.",
			Buckets: prometheus.ExponentialBuckets(0.25, 2, 8),
		},
		[]string{"type"},
	)
	ImageRequests = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_image_requests_total",
			Help: "Image generation results: generated, described (text-only degrade) or failed (random degrade).",
		},
		[]string{"outcome"},
	)
	RateLimited = promauto.With(Registry).NewCounterVec(
		prometheus.CounterOpts{
			Name: "storyloom_rate_limited_total",
			Help: "Requests rejected by a rate limiter.",
		},
		[]string{"limiter"},
	)
	PromptTokens = promauto.With(Registry).NewCounter(
		prometheus.CounterOpts{
			Name: "storyloom_prompt_tokens_total",
			Help: "Estimated prompt tokens sent to the text provider.",
		},
	)
)
