package config

import (
	"fmt"

	"github.com/go-playground/validator/v10"
)

// Provider names accepted in ModelConfig.Provider.
const (
	ProviderOllama    = "ollama"
	ProviderOpenAI    = "openai"
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
)

// ModelConfig selects an LLM backend and its sampling parameters.
// Temperature and TopP are pointers so that an explicit 0 survives defaulting.
type ModelConfig struct {
	Provider    string   `yaml:"provider" json:"provider" validate:"required,oneof=ollama openai gemini anthropic"`
	Model       string   `yaml:"model" json:"model" validate:"required"`
	Temperature *float64 `yaml:"temperature,omitempty" json:"temperature,omitempty" validate:"omitempty,gte=0,lte=2"`
	TopP        *float64 `yaml:"top_p,omitempty" json:"top_p,omitempty" validate:"omitempty,gte=0,lte=1"`
	MaxTokens   int      `yaml:"max_tokens" json:"max_tokens" validate:"gte=1"`
	Stream      bool     `yaml:"stream" json:"stream"`
	// Extra holds provider specific request fields merged into the payload.
	Extra map[string]any `yaml:"extra,omitempty" json:"extra,omitempty"`
}

// DefaultModelConfig returns the local-first defaults: Ollama serving
// qwen2.5-coder:7b.
func DefaultModelConfig() ModelConfig {
	return ModelConfig{
		Provider:    ProviderOllama,
		Model:       "qwen2.5-coder:7b",
		Temperature: Float(0.2),
		TopP:        Float(0.95),
		MaxTokens:   4096,
		Stream:      true,
		Extra:       map[string]any{},
	}
}

// Validate checks that all fields in ModelConfig are valid.
func (c *ModelConfig) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("validation failed for ModelConfig: %w", err)
	}
	return nil
}

// Float returns a pointer to v, for the optional sampling fields.
func Float(v float64) *float64 { return &v }

// WithDefaults fills zero-valued fields from DefaultModelConfig. The model
// name is only defaulted when the provider is also unset, since default model
// names are provider specific.
func (c ModelConfig) WithDefaults() ModelConfig {
	d := DefaultModelConfig()
	if c.Provider == "" {
		c.Provider = d.Provider
		if c.Model == "" {
			c.Model = d.Model
		}
	}
	if c.Model == "" {
		c.Model = DefaultModelName(c.Provider)
	}
	if c.Temperature == nil {
		c.Temperature = d.Temperature
	}
	if c.TopP == nil {
		c.TopP = d.TopP
	}
	if c.MaxTokens == 0 {
		c.MaxTokens = d.MaxTokens
	}
	if c.Extra == nil {
		c.Extra = map[string]any{}
	}
	return c
}

// DefaultModelName returns a sensible model identifier for a provider.
func DefaultModelName(provider string) string {
	switch provider {
	case ProviderOpenAI:
		return "gpt-4o-mini"
	case ProviderGemini:
		return "models/gemini-1.5-flash"
	case ProviderAnthropic:
		return "claude-3-5-sonnet-latest"
	default:
		return "llama3"
	}
}
