package gateway

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/png"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/openai/openai-go/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/pkg/apperr"
	"storyloom/pkg/entities"
	"storyloom/pkg/inference"
	"storyloom/pkg/placeholder"
	"storyloom/pkg/prompt"
)

type fakeText struct {
	out   string
	err   error
	delay time.Duration
	got   *openai.ChatCompletionNewParams
}

func (f *fakeText) Infer(ctx context.Context, params *openai.ChatCompletionNewParams, system, user string) (string, error) {
	f.got = params
	if f.delay > 0 {
		select {
		case <-time.After(f.delay):
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	return f.out, f.err
}

type fakeImager struct {
	img   inference.Image
	err   error
	calls atomic.Int32
}

func (f *fakeImager) Imagine(ctx context.Context, prompt string) (inference.Image, error) {
	f.calls.Add(1)
	return f.img, f.err
}

// slowImager blocks until release is closed, honouring ctx.
type slowImager struct {
	release chan struct{}
	calls   atomic.Int32
}

func (f *slowImager) Imagine(ctx context.Context, prompt string) (inference.Image, error) {
	f.calls.Add(1)
	select {
	case <-f.release:
		return inference.Image{URL: "https://cdn.example/" + strings.ReplaceAll(prompt, " ", "-") + ".png"}, nil
	case <-ctx.Done():
		return inference.Image{}, ctx.Err()
	}
}

func pngBytes(t *testing.T) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, 8, 8))
	for x := range 8 {
		img.Set(x, x, color.RGBA{R: 200, A: 255})
	}
	buf := new(bytes.Buffer)
	require.NoError(t, png.Encode(buf, img))
	return buf.Bytes()
}

var testPrompt = prompt.Prompt{System: "system", User: "Topic: tides"}

func TestGenerateTextWithoutCredential(t *testing.T) {
	g := New(nil, nil)
	defer g.Close()

	_, err := g.GenerateText(context.Background(), testPrompt, 1024)
	var cfgErr *apperr.ConfigurationError
	require.ErrorAs(t, err, &cfgErr)
}

func TestGenerateTextPassesBudget(t *testing.T) {
	text := &fakeText{out: "The moon pulls the sea."}
	g := New(text, nil)
	defer g.Close()

	out, err := g.GenerateText(context.Background(), testPrompt, 2048)
	require.NoError(t, err)
	assert.Equal(t, "The moon pulls the sea.", out)
	assert.Equal(t, int64(2048), text.got.MaxCompletionTokens.Value)
}

func TestGenerateTextEmpty(t *testing.T) {
	g := New(&fakeText{}, nil)
	defer g.Close()

	_, err := g.GenerateText(context.Background(), testPrompt, 1024)
	var empty *apperr.EmptyResponseError
	assert.ErrorAs(t, err, &empty)
}

func TestGenerateTextUpstream(t *testing.T) {
	g := New(&fakeText{err: &apperr.UpstreamError{StatusCode: 503, Body: "overloaded"}}, nil)
	defer g.Close()

	_, err := g.GenerateText(context.Background(), testPrompt, 1024)
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.Equal(t, 503, up.StatusCode)
}

func TestGenerateTextTimeout(t *testing.T) {
	g := New(&fakeText{out: "late", delay: time.Second}, nil, WithTimeout(20*time.Millisecond))
	defer g.Close()

	_, err := g.GenerateText(context.Background(), testPrompt, 1024)
	var up *apperr.UpstreamError
	require.ErrorAs(t, err, &up)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestGenerateJSONSetsFormat(t *testing.T) {
	text := &fakeText{out: `{"pages":[]}`}
	g := New(text, nil)
	defer g.Close()

	format := openai.ChatCompletionNewParamsResponseFormatUnion{
		OfJSONObject: &openai.ResponseFormatJSONObjectParam{},
	}
	_, err := g.GenerateJSON(context.Background(), testPrompt, 4096, format)
	require.NoError(t, err)
	assert.NotNil(t, text.got.ResponseFormat.OfJSONObject)
}

func TestGenerateImageInlineBytes(t *testing.T) {
	img := &fakeImager{img: inference.Image{Data: pngBytes(t), MIMEType: "image/png"}}
	g := New(nil, img)
	defer g.Close()

	res := g.GenerateImage(context.Background(), "a lighthouse")
	assert.False(t, res.Placeholder)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/webp;base64,"))
}

func TestGenerateImageUndecodableBytesKeepMIME(t *testing.T) {
	img := &fakeImager{img: inference.Image{Data: []byte("not an image"), MIMEType: "image/gif"}}
	g := New(nil, img)
	defer g.Close()

	res := g.GenerateImage(context.Background(), "a lighthouse")
	assert.False(t, res.Placeholder)
	assert.True(t, strings.HasPrefix(res.URL, "data:image/gif;base64,"))
}

func TestGenerateImageTextOnlyIsDeterministic(t *testing.T) {
	img := &fakeImager{img: inference.Image{Text: "I would draw a lighthouse at dusk."}}
	g := New(nil, img)
	defer g.Close()

	res := g.GenerateImage(context.Background(), "a lighthouse")
	assert.True(t, res.Placeholder)
	assert.Equal(t, NoteDescribed, res.Note)
	assert.Equal(t, placeholder.Deterministic("a lighthouse"), res.URL)
}

func TestGenerateImageErrorIsRandomPlaceholder(t *testing.T) {
	img := &fakeImager{err: errors.New("boom")}
	g := New(nil, img)
	defer g.Close()

	a := g.GenerateImage(context.Background(), "a lighthouse")
	b := g.GenerateImage(context.Background(), "a lighthouse")
	assert.True(t, a.Placeholder)
	assert.Equal(t, NoteFailed, a.Note)
	assert.True(t, placeholder.IsStock(a.URL))
	assert.NotEqual(t, a.URL, b.URL)
	assert.Equal(t, int32(2), img.calls.Load(), "failures are retried")
}

func TestGenerateImageSharedPromptSurvivesOtherCallerCancel(t *testing.T) {
	img := &slowImager{release: make(chan struct{})}
	g := New(nil, img)
	defer g.Close()

	first, cancelFirst := context.WithCancel(context.Background())
	firstDone := make(chan ImageResult, 1)
	go func() { firstDone <- g.GenerateImage(first, "a lighthouse") }()
	time.Sleep(20 * time.Millisecond)

	secondDone := make(chan ImageResult, 1)
	go func() { secondDone <- g.GenerateImage(context.Background(), "a lighthouse") }()
	time.Sleep(20 * time.Millisecond)

	cancelFirst()
	cancelled := <-firstDone
	assert.True(t, cancelled.Placeholder, "the cancelled caller degrades")

	close(img.release)
	res := <-secondDone
	assert.False(t, res.Placeholder)
	assert.Equal(t, "https://cdn.example/a-lighthouse.png", res.URL)
	assert.Equal(t, int32(1), img.calls.Load())
}

func TestGenerateImageWithoutProvider(t *testing.T) {
	g := New(nil, nil)
	defer g.Close()

	res := g.GenerateImage(context.Background(), "a lighthouse")
	assert.True(t, res.Placeholder)
	assert.Equal(t, NoteUnavailable, res.Note)
}

func TestGenerateImageCachesAndRegenerates(t *testing.T) {
	img := &fakeImager{img: inference.Image{URL: "https://cdn.example/1.png"}}
	g := New(nil, img)
	defer g.Close()

	g.GenerateImage(context.Background(), "a lighthouse")
	res := g.GenerateImage(context.Background(), "a lighthouse")
	assert.Equal(t, "https://cdn.example/1.png", res.URL)
	assert.Equal(t, int32(1), img.calls.Load())

	g.RegenerateImage(context.Background(), "a lighthouse")
	assert.Equal(t, int32(2), img.calls.Load())
}

func TestMaxOutputTokens(t *testing.T) {
	tests := []struct {
		typ   entities.ContentType
		pages int
		want  int
	}{
		{entities.ContentSummary, 0, 1024},
		{entities.ContentMemeText, 0, 1024},
		{entities.ContentStorybook, 1, 2048},
		{entities.ContentStorybook, 5, 2512},
		{entities.ContentStorybook, 11, 4912},
		{entities.ContentStorybook, 30, 12512},
		{entities.ContentStorybook, 100, 16384},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, MaxOutputTokens(tt.typ, tt.pages), "%s/%d", tt.typ, tt.pages)
	}
}
