package config

import (
	"context"
	"fmt"

	"github.com/go-playground/validator/v10"
	"github.com/sethvargo/go-envconfig"
)

// DefaultOllamaHost is the address of a locally running Ollama server.
const DefaultOllamaHost = "http://localhost:11434"

// DefaultPistonBaseURL is the public Piston code execution API.
const DefaultPistonBaseURL = "https://emkc.org/api/v2/piston"

// Settings holds credentials and endpoints read from the environment.
type Settings struct {
	OpenAIAPIKey    string `env:"OPENAI_API_KEY"`
	GeminiAPIKey    string `env:"GEMINI_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OllamaHost      string `env:"OLLAMA_HOST,default=http://localhost:11434" validate:"required,url"`
	PistonBaseURL   string `env:"PISTON_BASE_URL,default=https://emkc.org/api/v2/piston" validate:"required,url"`
	LogLevel        string `env:"ASTRA_LOG_LEVEL,default=info" validate:"oneof=debug info warn warning error"`
	LogFormat       string `env:"ASTRA_LOG_FORMAT,default=text" validate:"oneof=text json"`
	Python          string `env:"ASTRA_PYTHON,default=python3" validate:"required"`
}

// DefaultSettings returns settings with every default applied and no credentials.
func DefaultSettings() Settings {
	return Settings{
		OllamaHost:    DefaultOllamaHost,
		PistonBaseURL: DefaultPistonBaseURL,
		LogLevel:      "info",
		LogFormat:     "text",
		Python:        "python3",
	}
}

// LoadSettings reads Settings from the process environment.
func LoadSettings(ctx context.Context) (Settings, error) {
	return loadSettings(ctx, envconfig.OsLookuper())
}

func loadSettings(ctx context.Context, lookuper envconfig.Lookuper) (Settings, error) {
	var s Settings
	if err := envconfig.ProcessWith(ctx, &envconfig.Config{Target: &s, Lookuper: lookuper}); err != nil {
		return Settings{}, fmt.Errorf("processing environment: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks that all fields in Settings are valid.
func (s *Settings) Validate() error {
	if err := validator.New().Struct(s); err != nil {
		return fmt.Errorf("validation failed for Settings: %w", err)
	}
	return nil
}

// APIKey returns the credential configured for a provider, if any.
func (s Settings) APIKey(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return s.OpenAIAPIKey
	case ProviderGemini:
		return s.GeminiAPIKey
	case ProviderAnthropic:
		return s.AnthropicAPIKey
	default:
		return ""
	}
}
