package providers

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/model"
)

func TestNew(t *testing.T) {
	settings := config.DefaultSettings()
	settings.GeminiAPIKey = "test-key"

	tests := []struct {
		provider string
		model    string
	}{
		{config.ProviderOllama, "qwen2.5-coder:7b"},
		{config.ProviderOpenAI, "gpt-4o-mini"},
		{config.ProviderAnthropic, "claude-3-5-sonnet-latest"},
		{config.ProviderGemini, "models/gemini-1.5-flash"},
	}
	for _, tt := range tests {
		t.Run(tt.provider, func(t *testing.T) {
			cfg := config.ModelConfig{Provider: tt.provider}
			if tt.provider == config.ProviderOllama {
				cfg.Model = tt.model
			}
			m, err := New(context.Background(), cfg, settings)
			require.NoError(t, err)
			assert.Equal(t, model.Info{Name: tt.model, Provider: tt.provider}, m.Info())
		})
	}
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{Provider: "mistral"}, config.DefaultSettings())
	assert.ErrorIs(t, err, model.ErrUnknownProvider)
}

func TestNew_InvalidConfig(t *testing.T) {
	_, err := New(context.Background(), config.ModelConfig{Provider: config.ProviderOpenAI, Temperature: config.Float(5)}, config.DefaultSettings())
	require.Error(t, err)
	assert.NotErrorIs(t, err, model.ErrUnknownProvider)
}
