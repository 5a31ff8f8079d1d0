package ollama

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/model"
)

func newServer(t *testing.T, handler func(t *testing.T, body map[string]any, w http.ResponseWriter)) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/api/chat", r.URL.Path)
		assert.Equal(t, http.MethodPost, r.Method)
		var body map[string]any
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		handler(t, body, w)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestComplete(t *testing.T) {
	srv := newServer(t, func(t *testing.T, body map[string]any, w http.ResponseWriter) {
		assert.Equal(t, "qwen", body["model"])
		assert.Equal(t, false, body["stream"])
		assert.Equal(t, "json", body["format"])
		msgs := body["messages"].([]any)
		assert.Len(t, msgs, 2)
		assert.Equal(t, "system", msgs[0].(map[string]any)["role"])
		opts := body["options"].(map[string]any)
		assert.InDelta(t, 0.2, opts["temperature"], 1e-9)
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"hi there"},"done":true}`)
	})

	m := NewModel(func(o *Options) {
		o.Host = srv.URL + "/"
		o.Model = "qwen"
		temp := 0.2
		o.Temperature = &temp
		o.Extra = map[string]any{"format": "json"}
	})

	got, err := m.Complete(context.Background(), []core.Message{
		core.SystemMessage("be brief"),
		core.UserMessage("hello"),
	})
	require.NoError(t, err)
	assert.Equal(t, "hi there", got)
	assert.Equal(t, model.Info{Name: "qwen", Provider: "ollama"}, m.Info())
}

func TestComplete_ZeroTemperature(t *testing.T) {
	srv := newServer(t, func(t *testing.T, body map[string]any, w http.ResponseWriter) {
		opts, ok := body["options"].(map[string]any)
		require.True(t, ok)
		assert.Contains(t, opts, "temperature")
		assert.InDelta(t, 0, opts["temperature"], 1e-9)
		assert.NotContains(t, opts, "top_p")
		fmt.Fprint(w, `{"message":{"role":"assistant","content":"ok"},"done":true}`)
	})

	zero := 0.0
	m := NewModel(func(o *Options) {
		o.Host = srv.URL
		o.Temperature = &zero
	})
	_, err := model.Generate(context.Background(), m, "x")
	require.NoError(t, err)
}

func TestComplete_MissingContent(t *testing.T) {
	srv := newServer(t, func(t *testing.T, _ map[string]any, w http.ResponseWriter) {
		fmt.Fprint(w, `{"done":true}`)
	})
	m := NewModel(func(o *Options) { o.Host = srv.URL })

	got, err := model.Generate(context.Background(), m, "x")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestComplete_HTTPError(t *testing.T) {
	srv := newServer(t, func(t *testing.T, _ map[string]any, w http.ResponseWriter) {
		http.Error(w, "model not found", http.StatusNotFound)
	})
	m := NewModel(func(o *Options) { o.Host = srv.URL })

	_, err := model.Generate(context.Background(), m, "x")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "404")
	assert.Contains(t, err.Error(), "model not found")
}

func TestStream(t *testing.T) {
	srv := newServer(t, func(t *testing.T, body map[string]any, w http.ResponseWriter) {
		assert.Equal(t, true, body["stream"])
		fmt.Fprintln(w, `{"message":{"content":"Hel"}}`)
		fmt.Fprintln(w, ``)
		fmt.Fprintln(w, `not json`)
		fmt.Fprintln(w, `{"message":{"content":"lo"}}`)
		fmt.Fprintln(w, `{"done":true}`)
	})
	m := NewModel(func(o *Options) { o.Host = srv.URL })

	textCh, errCh := m.Stream(context.Background(), []core.Message{core.UserMessage("hi")})
	var chunks []string
	for c := range textCh {
		chunks = append(chunks, c)
	}
	require.NoError(t, <-errCh)
	assert.Equal(t, []string{"Hel", "lo"}, chunks)
}

func TestStream_HTTPError(t *testing.T) {
	srv := newServer(t, func(t *testing.T, _ map[string]any, w http.ResponseWriter) {
		w.WriteHeader(http.StatusInternalServerError)
	})
	m := NewModel(func(o *Options) { o.Host = srv.URL })

	text, err := model.Collect(m.Stream(context.Background(), []core.Message{core.UserMessage("hi")}))
	assert.Empty(t, text)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "500")
}
