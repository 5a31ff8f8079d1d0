// Package ollama implements model.Model against a local Ollama server using
// its /api/chat endpoint.
package ollama

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/model"
)

var _ model.Model = (*Model)(nil)

// Options configure the Ollama adapter. A nil Temperature or TopP leaves the
// value to the server.
type Options struct {
	Host        string
	Model       string
	Temperature *float64
	TopP        *float64
	MaxTokens   int
	// Extra is merged into the top level of every request body.
	Extra map[string]any
	// HTTPClient overrides the client used for requests.
	HTTPClient *http.Client
	// Timeout bounds non-streaming requests. Streams are governed by ctx only.
	Timeout time.Duration
}

// Model talks to an Ollama server.
type Model struct {
	opts   Options
	client *http.Client
}

// NewModel creates a new Ollama model. Defaults target llama3 on localhost.
func NewModel(optFns ...func(o *Options)) *Model {
	opts := Options{
		Host:    "http://localhost:11434",
		Model:   "llama3",
		Timeout: 120 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}
	opts.Host = strings.TrimRight(opts.Host, "/")

	client := opts.HTTPClient
	if client == nil {
		client = http.DefaultClient
	}
	return &Model{opts: opts, client: client}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

func (m *Model) body(messages []core.Message, stream bool) ([]byte, error) {
	msgs := make([]chatMessage, len(messages))
	for i, msg := range messages {
		msgs[i] = chatMessage{Role: msg.Role.String(), Content: msg.Content}
	}

	payload := map[string]any{
		"model":    m.opts.Model,
		"messages": msgs,
		"stream":   stream,
	}
	options := map[string]any{}
	if m.opts.Temperature != nil {
		options["temperature"] = *m.opts.Temperature
	}
	if m.opts.TopP != nil {
		options["top_p"] = *m.opts.TopP
	}
	if m.opts.MaxTokens > 0 {
		options["num_predict"] = m.opts.MaxTokens
	}
	if len(options) > 0 {
		payload["options"] = options
	}
	for k, v := range m.opts.Extra {
		payload[k] = v
	}
	return json.Marshal(payload)
}

func (m *Model) post(ctx context.Context, messages []core.Message, stream bool) (*http.Response, error) {
	body, err := m.body(messages, stream)
	if err != nil {
		return nil, fmt.Errorf("encoding ollama request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, m.opts.Host+"/api/chat", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ollama request failed: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		defer resp.Body.Close()
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("ollama returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}
	return resp, nil
}

// Complete implements model.Model.
func (m *Model) Complete(ctx context.Context, messages []core.Message) (string, error) {
	if m.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, m.opts.Timeout)
		defer cancel()
	}

	resp, err := m.post(ctx, messages, false)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading ollama response: %w", err)
	}
	if !gjson.ValidBytes(data) {
		return "", fmt.Errorf("ollama returned invalid JSON")
	}
	return gjson.GetBytes(data, "message.content").String(), nil
}

// Stream implements model.Model. The server answers with one JSON object per
// line; blank and unparsable lines are skipped.
func (m *Model) Stream(ctx context.Context, messages []core.Message) (<-chan string, <-chan error) {
	out := make(chan string, 32)
	errCh := make(chan error, 1)

	go func() {
		defer close(out)
		defer close(errCh)

		resp, err := m.post(ctx, messages, true)
		if err != nil {
			errCh <- err
			return
		}
		defer resp.Body.Close()

		scanner := bufio.NewScanner(resp.Body)
		scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
		for scanner.Scan() {
			line := bytes.TrimSpace(scanner.Bytes())
			if len(line) == 0 || !gjson.ValidBytes(line) {
				continue
			}
			chunk := gjson.GetBytes(line, "message.content").String()
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
		if err := scanner.Err(); err != nil {
			errCh <- fmt.Errorf("ollama streaming error: %w", err)
		}
	}()
	return out, errCh
}

// Info implements model.Model.
func (m *Model) Info() model.Info {
	return model.Info{Name: m.opts.Model, Provider: "ollama"}
}
