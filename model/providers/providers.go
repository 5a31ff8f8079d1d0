// Package providers builds a model.Model from configuration.
package providers

import (
	"context"
	"fmt"

	anthropicsdk "github.com/anthropics/anthropic-sdk-go"

	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/model"
	"github.com/hupe1980/astra/model/anthropic"
	"github.com/hupe1980/astra/model/gemini"
	"github.com/hupe1980/astra/model/ollama"
	"github.com/hupe1980/astra/model/openai"
)

// New returns the backend named by cfg.Provider. Zero-valued fields of cfg
// are filled with defaults before validation.
func New(ctx context.Context, cfg config.ModelConfig, settings config.Settings) (model.Model, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		if !isKnown(cfg.Provider) {
			return nil, fmt.Errorf("%w: %q", model.ErrUnknownProvider, cfg.Provider)
		}
		return nil, err
	}

	switch cfg.Provider {
	case config.ProviderOllama:
		return ollama.NewModel(func(o *ollama.Options) {
			o.Host = settings.OllamaHost
			o.Model = cfg.Model
			o.Temperature = cfg.Temperature
			o.TopP = cfg.TopP
			o.MaxTokens = cfg.MaxTokens
			o.Extra = cfg.Extra
		}), nil
	case config.ProviderOpenAI:
		return openai.NewModel(func(o *openai.Options) {
			o.Model = cfg.Model
			o.APIKey = settings.OpenAIAPIKey
			o.Temperature = *cfg.Temperature
			o.TopP = *cfg.TopP
			o.MaxCompletionTokens = int64(cfg.MaxTokens)
		}), nil
	case config.ProviderAnthropic:
		return anthropic.NewModel(func(o *anthropic.Options) {
			o.Model = anthropicsdk.Model(cfg.Model)
			o.APIKey = settings.AnthropicAPIKey
			o.Temperature = *cfg.Temperature
			o.MaxTokens = int64(cfg.MaxTokens)
		}), nil
	case config.ProviderGemini:
		return gemini.NewModel(ctx, func(o *gemini.Options) {
			o.Model = cfg.Model
			o.APIKey = settings.GeminiAPIKey
			o.Temperature = cfg.Temperature
			o.TopP = cfg.TopP
			o.MaxTokens = cfg.MaxTokens
		})
	default:
		return nil, fmt.Errorf("%w: %q", model.ErrUnknownProvider, cfg.Provider)
	}
}

func isKnown(provider string) bool {
	switch provider {
	case config.ProviderOllama, config.ProviderOpenAI, config.ProviderAnthropic, config.ProviderGemini:
		return true
	}
	return false
}
