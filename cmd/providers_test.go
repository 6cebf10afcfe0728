package main

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"storyloom/pkg/config"
	"storyloom/pkg/inference"
)

func TestProvidersWithoutCredentials(t *testing.T) {
	text, image, err := providers(config.Provider{Text: "gemini", Image: "openai"})
	require.NoError(t, err)
	assert.Nil(t, text)
	assert.Nil(t, image)
}

func TestProvidersCompatible(t *testing.T) {
	text, image, err := providers(config.Provider{Text: "grok", Image: "openai", GrokAPIKey: "g", OpenAIAPIKey: "o"})
	require.NoError(t, err)
	assert.IsType(t, &inference.OpenAIInferencer{}, text)
	assert.IsType(t, &inference.OpenAIInferencer{}, image)
}

func TestProvidersUnknown(t *testing.T) {
	_, _, err := providers(config.Provider{Text: "parrot", Image: "gemini"})
	assert.ErrorContains(t, err, "parrot")
}

func TestOpenStore(t *testing.T) {
	for _, backend := range []string{"memory", "file", "sqlite", "none"} {
		kv, closer, err := openStore(config.Storage{Backend: backend, Path: t.TempDir()}, nil)
		require.NoError(t, err, backend)
		assert.NotNil(t, kv)
		assert.NoError(t, closer.Close())
	}
	_, _, err := openStore(config.Storage{Backend: "tape"}, nil)
	assert.Error(t, err)
}
