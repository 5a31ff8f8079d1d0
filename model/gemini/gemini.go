// Package gemini implements model.Model on top of the Google Gen AI SDK.
//
// The conversation is flattened into one prompt and trimmed to its tail.
// Transient failures are retried with backoff, after which a list of
// fallback models is tried in order.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"iter"
	"strings"
	"time"

	"github.com/chainguard-dev/clog"
	"google.golang.org/genai"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/internal/retry"
	"github.com/hupe1980/astra/model"
)

var _ model.Model = (*Model)(nil)

// MaxPromptChars is the prompt length kept; longer prompts lose their head.
const MaxPromptChars = 20000

// DefaultFallbackModels are tried when the configured model keeps failing
// with transient errors.
var DefaultFallbackModels = []string{
	"gemini-2.5-flash",
	"gemini-2.5-flash-lite",
	"gemini-1.5-flash",
}

// Options configure the Gemini adapter.
type Options struct {
	Model          string
	APIKey         string
	Temperature    *float64
	TopP           *float64
	MaxTokens      int
	Timeout        time.Duration
	Retry          retry.Config
	FallbackModels []string
	// BaseURL overrides the Gemini API endpoint.
	BaseURL string
}

// backend is the subset of the SDK the adapter relies on.
type backend interface {
	generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error)
	stream(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) iter.Seq2[string, error]
}

type sdkBackend struct {
	client *genai.Client
}

func (b sdkBackend) generate(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	resp, err := b.client.Models.GenerateContent(ctx, model, genai.Text(prompt), cfg)
	if err != nil {
		return "", err
	}
	return resp.Text(), nil
}

func (b sdkBackend) stream(ctx context.Context, model, prompt string, cfg *genai.GenerateContentConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for resp, err := range b.client.Models.GenerateContentStream(ctx, model, genai.Text(prompt), cfg) {
			if err != nil {
				yield("", err)
				return
			}
			if !yield(resp.Text(), nil) {
				return
			}
		}
	}
}

// Model talks to Gemini.
type Model struct {
	backend backend
	opts    Options
}

func defaultOptions() Options {
	return Options{
		Model:   "gemini-1.5-flash",
		Timeout: 60 * time.Second,
		Retry: retry.Config{
			MaxRetries:  2,
			BaseBackoff: time.Second,
			MaxBackoff:  4 * time.Second,
		},
		FallbackModels: DefaultFallbackModels,
	}
}

// NewModel creates a Gemini model backed by the Gemini API.
func NewModel(ctx context.Context, optFns ...func(o *Options)) (*Model, error) {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	cc := &genai.ClientConfig{
		APIKey:  opts.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if opts.BaseURL != "" {
		cc.HTTPOptions = genai.HTTPOptions{BaseURL: opts.BaseURL}
	}
	client, err := genai.NewClient(ctx, cc)
	if err != nil {
		return nil, fmt.Errorf("creating Gemini client: %w", err)
	}
	return &Model{backend: sdkBackend{client: client}, opts: opts}, nil
}

func ptr[T any](v T) *T { return &v }

func (m *Model) config() *genai.GenerateContentConfig {
	cfg := &genai.GenerateContentConfig{}
	if m.opts.Temperature != nil {
		cfg.Temperature = ptr(float32(*m.opts.Temperature))
	}
	if m.opts.TopP != nil {
		cfg.TopP = ptr(float32(*m.opts.TopP))
	}
	if m.opts.MaxTokens > 0 {
		cfg.MaxOutputTokens = int32(m.opts.MaxTokens)
	}
	return cfg
}

// Prompt flattens messages into "role: content" lines and keeps the last
// MaxPromptChars characters.
func Prompt(messages []core.Message) string {
	prompt := core.JoinMessages(messages)
	runes := []rune(prompt)
	if len(runes) > MaxPromptChars {
		return string(runes[len(runes)-MaxPromptChars:])
	}
	return prompt
}

// isNotFound reports an unknown model or endpoint.
func isNotFound(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "404") || strings.Contains(msg, "not_found") || strings.Contains(msg, "not found")
}

// isTransient reports server side failures worth retrying.
func isTransient(err error) bool {
	if err == nil || isNotFound(err) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	msg := strings.ToLower(err.Error())
	for _, s := range []string{"500", "503", "504", "internal", "unavailable", "deadline"} {
		if strings.Contains(msg, s) {
			return true
		}
	}
	return false
}

func (m *Model) attempt(ctx context.Context, name, prompt string, cfg *genai.GenerateContentConfig) (string, error) {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}
	return m.backend.generate(ctx, name, prompt, cfg)
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	prompt := Prompt(messages)
	cfg := m.config()

	text, err := retry.Do(ctx, m.opts.Retry, "gemini.generate", isTransient, func(ctx context.Context) (string, error) {
		return m.attempt(ctx, m.opts.Model, prompt, cfg)
	})
	if err == nil {
		return text, nil
	}
	if !isTransient(err) || ctx.Err() != nil {
		return "", err
	}

	log := clog.FromContext(ctx)
	for _, fb := range m.opts.FallbackModels {
		if fb == m.opts.Model {
			continue
		}
		log.With("model", m.opts.Model).With("fallback", fb).Warn("gemini.fallback")
		if text, fbErr := m.attempt(ctx, fb, prompt, cfg); fbErr == nil {
			return text, nil
		}
	}
	return "", err
}

// Stream implements model.Model with a single attempt.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		for chunk, err := range m.backend.stream(ctx, m.opts.Model, Prompt(messages), m.config()) {
			if err != nil {
				if isNotFound(err) {
					errCh <- err
				} else {
					errCh <- fmt.Errorf("gemini streaming failed: %w", err)
				}
				return
			}
			if chunk == "" {
				continue
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- chunk:
			}
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "gemini"}
}
