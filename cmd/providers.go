package main

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"storyloom/pkg/config"
	"storyloom/pkg/inference"
)

// backend is what every provider client implements.
type backend interface {
	inference.Inferencer
	inference.Imager
}

// provider builds the client for one provider name. A missing credential
// yields (nil, nil) so the gateway can degrade instead of failing at boot.
func provider(p config.Provider, name string) (backend, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	key := p.APIKey(name)

	switch name {
	case "gemini", "openai", "grok", "moonshot", "kimi":
	default:
		return nil, fmt.Errorf("unknown provider %q", name)
	}
	if key == "" {
		log.Warn("provider credential missing", "provider", name, "env", config.CredentialEnv(name))
		return nil, nil
	}

	if name == "gemini" {
		return inference.NewGeminiInferencer(key, p.TextModel, p.ImageModel)
	}
	inf := inference.NewCompatibleInferencer(name, key, p.TextModel)
	if name == "openai" && p.BaseURL != "" {
		inf.ChangeBaseURL(p.BaseURL)
	}
	inf.SetImageModel(p.ImageModel)
	return inf, nil
}

// providers resolves the text and image backends. Either may be nil.
func providers(p config.Provider) (inference.Inferencer, inference.Imager, error) {
	var (
		text  inference.Inferencer
		image inference.Imager
	)

	t, err := provider(p, p.Text)
	if err != nil {
		return nil, nil, fmt.Errorf("text provider: %w", err)
	}
	if t != nil {
		text = t
	}

	i, err := provider(p, p.Image)
	if err != nil {
		return nil, nil, fmt.Errorf("image provider: %w", err)
	}
	if i != nil {
		image = i
	}
	return text, image, nil
}
