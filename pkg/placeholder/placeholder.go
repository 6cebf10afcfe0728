package placeholder

import (
	"bytes"
	"encoding/base64"
	"fmt"
	"image"
	"image/color"
	"image/draw"
	"strings"
	"sync"

	"github.com/gen2brain/webp"
	"github.com/google/uuid"
	"github.com/segmentio/ksuid"
)

const (
	Width  = 768
	Height = 768

	baseURL = "https://picsum.photos/seed/"
)

// Deterministic returns a stock image keyed by a hash of the prompt, so the
// same prompt always falls back to the same picture.
func Deterministic(prompt string) string {
	return seeded(Seed(prompt))
}

// Random returns a stock image that differs on every call.
func Random() string {
	return seeded(ksuid.New().String())
}

// Seed hashes a prompt into a stable, URL-safe seed.
func Seed(prompt string) string {
	id := uuid.NewSHA1(uuid.NameSpaceURL, []byte(strings.TrimSpace(prompt)))
	return strings.ReplaceAll(id.String(), "-", "")
}

func seeded(seed string) string {
	return fmt.Sprintf("%s%s/%d/%d", baseURL, seed, Width, Height)
}

// IsStock reports whether url is one of the provider-degrade placeholders.
func IsStock(url string) bool {
	return strings.HasPrefix(url, baseURL)
}

const fallbackSVG = `<svg xmlns="http://www.w3.org/2000/svg" width="768" height="768"><rect width="100%" height="100%" fill="#d9d4cc"/></svg>`

var failure = sync.OnceValue(func() string {
	img := image.NewRGBA(image.Rect(0, 0, Width, Height))
	draw.Draw(img, img.Bounds(), &image.Uniform{C: color.RGBA{R: 0xd9, G: 0xd4, B: 0xcc, A: 0xff}}, image.Point{}, draw.Src)
	// diagonal stripe so the card reads as "missing" rather than blank
	stripe := color.RGBA{R: 0xb8, G: 0xb0, B: 0xa5, A: 0xff}
	for i := 0; i < Width; i++ {
		for w := -6; w <= 6; w++ {
			if y := i + w; y >= 0 && y < Height {
				img.Set(i, y, stripe)
			}
		}
	}

	buf := new(bytes.Buffer)
	if err := webp.Encode(buf, img, webp.Options{Lossless: false, Quality: 60}); err != nil {
		return "data:image/svg+xml;base64," + base64.StdEncoding.EncodeToString([]byte(fallbackSVG))
	}
	return "data:image/webp;base64," + base64.StdEncoding.EncodeToString(buf.Bytes())
})

// Failure is the explicit image shown when a page's image request failed.
// Pages carrying it are repaired on the next resume.
func Failure() string {
	return failure()
}
