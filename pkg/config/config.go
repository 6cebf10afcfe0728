package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/joho/godotenv"
)

type Config struct {
	Port     string `env:"PORT" env-default:"8080"`
	LogLevel string `env:"LOG_LEVEL" env-default:"info"`

	Provider Provider
	Limits   Limits
	Images   Images
	Storage  Storage
}

type Provider struct {
	Text       string `env:"TEXT_PROVIDER" env-default:"gemini"`
	Image      string `env:"IMAGE_PROVIDER" env-default:"gemini"`
	TextModel  string `env:"TEXT_MODEL"`
	ImageModel string `env:"IMAGE_MODEL"`
	BaseURL    string `env:"OPENAI_BASE_URL"`

	GeminiAPIKey   string `env:"GEMINI_API_KEY"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	GrokAPIKey     string `env:"GROK_API_KEY"`
	MoonshotAPIKey string `env:"MOONSHOT_API_KEY"`
	KimiAPIKey     string `env:"KIMI_API_KEY"`

	// Timeout bounds every outbound provider call.
	Timeout time.Duration `env:"PROVIDER_TIMEOUT" env-default:"60s"`
}

type Limits struct {
	Backend    string        `env:"RATE_LIMIT_BACKEND" env-default:"memory"`
	TextLimit  int           `env:"TEXT_RATE_LIMIT" env-default:"10"`
	ImageLimit int           `env:"IMAGE_RATE_LIMIT" env-default:"35"`
	Window     time.Duration `env:"RATE_LIMIT_WINDOW" env-default:"60s"`
	Sweep      time.Duration `env:"RATE_LIMIT_SWEEP" env-default:"5m"`
}

type Images struct {
	Workers   int           `env:"IMAGE_WORKERS" env-default:"4"`
	QueueSize int           `env:"IMAGE_QUEUE_SIZE" env-default:"64"`
	CacheTTL  time.Duration `env:"IMAGE_CACHE_TTL" env-default:"10m"`
	FanOut    int           `env:"IMAGE_FAN_OUT" env-default:"4"`
}

type Storage struct {
	Backend    string `env:"STORE_BACKEND" env-default:"memory"`
	Path       string `env:"STORE_PATH" env-default:"data"`
	RedisURL   string `env:"REDIS_URL" env-default:"redis://localhost:6379/0"`
	LibraryCap int    `env:"LIBRARY_CAP" env-default:"10"`
}

// Load reads configuration from the environment, after a best-effort .env load.
func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := cleanenv.ReadEnv(&cfg); err != nil {
		return nil, fmt.Errorf("reading configuration: %w", err)
	}
	return &cfg, nil
}

// APIKey returns the credential for a provider, or "" when none is set.
func (p Provider) APIKey(provider string) string {
	switch strings.ToLower(provider) {
	case "gemini":
		return p.GeminiAPIKey
	case "openai":
		return p.OpenAIAPIKey
	case "grok":
		return p.GrokAPIKey
	case "moonshot":
		return p.MoonshotAPIKey
	case "kimi":
		return p.KimiAPIKey
	}
	return ""
}

// CredentialEnv names the variable a provider's key is read from. Only used
// in server logs.
func CredentialEnv(provider string) string {
	return strings.ToUpper(provider) + "_API_KEY"
}
