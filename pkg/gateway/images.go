package gateway

import (
	"bytes"
	"context"
	"encoding/base64"
	"errors"
	"fmt"
	"image"
	_ "image/jpeg"
	_ "image/png"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/gen2brain/webp"

	"storyloom/pkg/apperr"
	"storyloom/pkg/inference"
	"storyloom/pkg/metrics"
	"storyloom/pkg/placeholder"
	"storyloom/pkg/utils"
)

const (
	NoteDescribed   = "The image model answered with a description only; showing a placeholder."
	NoteFailed      = "Image generation failed; showing a placeholder."
	NoteUnavailable = "Image generation is not configured; showing a placeholder."
)

// ImageResult is always displayable. Placeholder marks a degraded result.
type ImageResult struct {
	URL         string `json:"imageUrl"`
	Placeholder bool   `json:"placeholder"`
	Note        string `json:"note,omitempty"`
}

// GenerateImage never fails. A real image comes back as a data URI or hosted
// URL; a text-only answer falls back to a stock image keyed by the prompt; any
// error falls back to a random stock image.
func (g *Gateway) GenerateImage(ctx context.Context, prompt string) ImageResult {
	if g.image == nil {
		metrics.ImageRequests.WithLabelValues("failed").Inc()
		return ImageResult{URL: placeholder.Random(), Placeholder: true, Note: NoteUnavailable}
	}

	res, err := g.cache.Get(ctx, prompt)
	if err != nil {
		err = &apperr.ImageGenerationError{Prompt: prompt, Err: err}
		log.Warn("image generation degraded to placeholder", "prompt", utils.LimitStr(prompt, 80), "error", err)
		metrics.ImageRequests.WithLabelValues("failed").Inc()
		return ImageResult{URL: placeholder.Random(), Placeholder: true, Note: NoteFailed}
	}
	if res.Placeholder {
		metrics.ImageRequests.WithLabelValues("described").Inc()
	} else {
		metrics.ImageRequests.WithLabelValues("generated").Inc()
	}
	return res
}

// RegenerateImage skips any cached result for prompt.
func (g *Gateway) RegenerateImage(ctx context.Context, prompt string) ImageResult {
	g.cache.Forget(prompt)
	return g.GenerateImage(ctx, prompt)
}

func (g *Gateway) imagine(ctx context.Context, prompt string) (ImageResult, error) {
	img, err := g.pool.Do(ctx, func(ctx context.Context) (inference.Image, error) {
		ctx, cancel := g.withTimeout(ctx)
		defer cancel()
		return g.image.Imagine(ctx, prompt)
	})
	if err != nil {
		return ImageResult{}, err
	}

	switch {
	case len(img.Data) > 0:
		return ImageResult{URL: dataURI(img)}, nil
	case img.URL != "":
		return ImageResult{URL: img.URL}, nil
	case strings.TrimSpace(img.Text) != "":
		log.Info("image model answered with text only", "text", utils.LimitStr(img.Text, 120))
		return ImageResult{URL: placeholder.Deterministic(prompt), Placeholder: true, Note: NoteDescribed}, nil
	}
	return ImageResult{}, errors.New("image model returned neither image data nor text")
}

// dataURI re-encodes provider bytes as WebP, keeping the original encoding
// when the bytes cannot be decoded.
func dataURI(img inference.Image) string {
	out, err := toWebP(img.Data)
	if err != nil {
		log.Debug("keeping original image encoding", "mime", img.MIMEType, "error", err)
		mime := img.MIMEType
		if mime == "" {
			mime = "image/png"
		}
		return "data:" + mime + ";base64," + base64.StdEncoding.EncodeToString(img.Data)
	}
	return "data:image/webp;base64," + base64.StdEncoding.EncodeToString(out)
}

func toWebP(data []byte) ([]byte, error) {
	decoded, _, err := image.Decode(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("failed to decode image: %w", err)
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, decoded, webp.Options{Lossless: false, Quality: 90}); err != nil {
		return nil, fmt.Errorf("failed to encode webp: %w", err)
	}
	return buf.Bytes(), nil
}
