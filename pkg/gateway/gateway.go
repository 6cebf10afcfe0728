package gateway

import (
	"context"
	"errors"
	"time"

	"github.com/charmbracelet/log"
	"github.com/openai/openai-go/v3"

	"storyloom/pkg/apperr"
	"storyloom/pkg/flight"
	"storyloom/pkg/inference"
	"storyloom/pkg/metrics"
	"storyloom/pkg/prompt"
	"storyloom/pkg/queue"
)

const DefaultTimeout = 60 * time.Second

// Gateway is the single point through which the service reaches model
// providers. Text calls surface typed errors; image calls always resolve to
// something displayable.
type Gateway struct {
	text  inference.Inferencer
	image inference.Imager

	timeout time.Duration
	tokens  func(string) (int, error)
	cache   *flight.Cache[string, ImageResult]
	pool    *queue.Pool[inference.Image]
}

type Option func(*options)

type options struct {
	timeout   time.Duration
	cacheTTL  time.Duration
	workers   int
	queueSize int
	tokens    func(string) (int, error)
}

// WithTimeout bounds every outbound provider call.
func WithTimeout(d time.Duration) Option { return func(o *options) { o.timeout = d } }

// WithImageCache keeps finished image results for ttl.
func WithImageCache(ttl time.Duration) Option { return func(o *options) { o.cacheTTL = ttl } }

// WithImageWorkers bounds concurrent outbound image calls.
func WithImageWorkers(workers, queueSize int) Option {
	return func(o *options) {
		o.workers = workers
		o.queueSize = queueSize
	}
}

// WithTokenCounter measures prompts before they are sent, e.g. utils.NumTokens.
func WithTokenCounter(count func(string) (int, error)) Option {
	return func(o *options) { o.tokens = count }
}

// New builds a gateway. Either provider may be nil when its credential is
// missing; text calls then fail with a ConfigurationError and image calls
// degrade to placeholders.
func New(text inference.Inferencer, image inference.Imager, opts ...Option) *Gateway {
	o := options{
		timeout:   DefaultTimeout,
		cacheTTL:  10 * time.Minute,
		workers:   4,
		queueSize: 64,
	}
	for _, opt := range opts {
		opt(&o)
	}

	g := &Gateway{
		text:    text,
		image:   image,
		timeout: o.timeout,
		tokens:  o.tokens,
		pool:    queue.New[inference.Image]("images", o.workers, o.queueSize),
	}
	g.cache = flight.NewCache(o.cacheTTL, g.imagine)
	g.pool.Start()
	return g
}

// Close stops the image workers.
func (g *Gateway) Close() {
	g.pool.Stop()
}

func (g *Gateway) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if g.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, g.timeout)
}

// GenerateText runs a plain-text completion.
func (g *Gateway) GenerateText(ctx context.Context, p prompt.Prompt, maxOutputTokens int) (string, error) {
	return g.infer(ctx, p, &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(int64(maxOutputTokens)),
	})
}

// GenerateJSON runs a completion constrained to a JSON schema where the
// provider supports it.
func (g *Gateway) GenerateJSON(ctx context.Context, p prompt.Prompt, maxOutputTokens int, format openai.ChatCompletionNewParamsResponseFormatUnion) (string, error) {
	return g.infer(ctx, p, &openai.ChatCompletionNewParams{
		MaxCompletionTokens: openai.Int(int64(maxOutputTokens)),
		ResponseFormat:      format,
	})
}

func (g *Gateway) infer(ctx context.Context, p prompt.Prompt, params *openai.ChatCompletionNewParams) (string, error) {
	if g.text == nil {
		return "", &apperr.ConfigurationError{Cause: "no text provider credential configured"}
	}

	if g.tokens != nil {
		if n, err := g.tokens(p.System + "\n" + p.User); err == nil {
			metrics.PromptTokens.Add(float64(n))
			log.Debug("sending prompt", "tokens", n, "max_output", params.MaxCompletionTokens.Value)
		}
	}

	ctx, cancel := g.withTimeout(ctx)
	defer cancel()

	text, err := g.text.Infer(ctx, params, p.System, p.User)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return "", &apperr.UpstreamError{Err: err}
		}
		return "", err
	}
	if text == "" {
		return "", &apperr.EmptyResponseError{What: "text"}
	}
	return text, nil
}
