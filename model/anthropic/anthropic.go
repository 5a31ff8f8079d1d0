// Package anthropic provides a model wrapper for the Anthropic Claude API.
//
// The conversation is collapsed into a single user turn of "role: content"
// lines. Transient server errors are retried with exponential backoff.
package anthropic

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/internal/retry"
	"github.com/hupe1980/astra/model"
)

var _ model.Model = (*Model)(nil)

// Options configures the Anthropic model adapter.
type Options struct {
	Model       anthropic.Model
	Temperature float64
	MaxTokens   int64
	APIKey      string
	// Timeout bounds each attempt of a non-streaming request.
	Timeout time.Duration
	Retry   retry.Config
	// RequestOptions are passed to the client created by NewModel.
	RequestOptions []option.RequestOption
}

// Model wraps the Anthropic Messages API behind the generic model.Model interface.
type Model struct {
	client *anthropic.Client
	opts   Options
}

func defaultOptions() Options {
	return Options{
		Model:       anthropic.Model("claude-3-5-sonnet-latest"),
		Temperature: 0.2,
		MaxTokens:   4096,
		Timeout:     60 * time.Second,
		Retry: retry.Config{
			MaxRetries:  2,
			BaseBackoff: time.Second,
			MaxBackoff:  4 * time.Second,
		},
	}
}

// NewModel creates a new Anthropic model using the official client. The
// SDK's own retries are disabled in favor of Options.Retry.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}

	clientOpts := []option.RequestOption{option.WithMaxRetries(0)}
	if opts.APIKey != "" {
		clientOpts = append(clientOpts, option.WithAPIKey(opts.APIKey))
	}
	clientOpts = append(clientOpts, opts.RequestOptions...)

	client := anthropic.NewClient(clientOpts...)
	return &Model{client: &client, opts: opts}
}

// NewModelFromClient creates a new Anthropic model from an existing client.
func NewModelFromClient(client *anthropic.Client, optFns ...func(o *Options)) *Model {
	opts := defaultOptions()
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Model{client: client, opts: opts}
}

func (m *Model) params(messages []core.Message) anthropic.MessageNewParams {
	return anthropic.MessageNewParams{
		Model:     m.opts.Model,
		MaxTokens: m.opts.MaxTokens,
		Messages: []anthropic.MessageParam{{
			Role: anthropic.MessageParamRoleUser,
			Content: []anthropic.ContentBlockParamUnion{
				anthropic.NewTextBlock(core.JoinMessages(messages)),
			},
		}},
		Temperature: anthropic.Float(m.opts.Temperature),
	}
}

// isRetryable reports whether err is a server side failure (HTTP 5xx).
func isRetryable(err error) bool {
	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode >= http.StatusInternalServerError
	}
	return false
}

// Complete implements model.Model. Text blocks of the reply are concatenated.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	params := m.params(messages)

	resp, err := retry.Do(ctx, m.opts.Retry, "anthropic.messages", isRetryable, func(ctx context.Context) (*anthropic.Message, error) {
		if m.opts.Timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
			defer cancel()
		}
		return m.client.Messages.New(ctx, params)
	})
	if err != nil {
		return "", fmt.Errorf("anthropic api error: %w", err)
	}

	var b strings.Builder
	for _, block := range resp.Content {
		if block.Type == "text" {
			b.WriteString(block.Text)
		}
	}
	return b.String(), nil
}

// Stream implements model.Model, forwarding text deltas.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		stream := m.client.Messages.NewStreaming(ctx, m.params(messages))
		defer stream.Close()

		for stream.Next() {
			event := stream.Current()
			if event.Type != "content_block_delta" || event.Delta.Type != "text_delta" || event.Delta.Text == "" {
				continue
			}
			select {
			case <-ctx.Done():
				errCh <- ctx.Err()
				return
			case out <- event.Delta.Text:
			}
		}
		if err := stream.Err(); err != nil {
			errCh <- fmt.Errorf("anthropic streaming failed: %w", err)
		}
	}()
	return out, errCh
}

// Info returns metadata describing this Anthropic model implementation.
func (m *Model) Info() model.Info {
	return model.Info{Name: string(m.opts.Model), Provider: "anthropic"}
}
