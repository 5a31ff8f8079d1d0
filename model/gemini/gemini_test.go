package gemini

import (
	"context"
	"errors"
	"iter"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/genai"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/internal/retry"
	"github.com/hupe1980/astra/model"
)

type fakeBackend struct {
	mu        sync.Mutex
	calls     []string
	results   map[string][]error
	chunks    []string
	streamErr error
}

func (f *fakeBackend) generate(_ context.Context, name, prompt string, _ *genai.GenerateContentConfig) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, name)
	if errs := f.results[name]; len(errs) > 0 {
		err := errs[0]
		f.results[name] = errs[1:]
		if err != nil {
			return "", err
		}
	}
	return name + ":" + prompt, nil
}

func (f *fakeBackend) stream(_ context.Context, _, _ string, _ *genai.GenerateContentConfig) iter.Seq2[string, error] {
	return func(yield func(string, error) bool) {
		for _, c := range f.chunks {
			if !yield(c, nil) {
				return
			}
		}
		if f.streamErr != nil {
			yield("", f.streamErr)
		}
	}
}

func newTestModel(fb *fakeBackend) *Model {
	opts := defaultOptions()
	opts.Model = "primary"
	opts.Retry = retry.Config{MaxRetries: 2, BaseBackoff: time.Millisecond, MaxBackoff: time.Millisecond}
	return &Model{backend: fb, opts: opts}
}

func TestPrompt_TrimsHead(t *testing.T) {
	long := strings.Repeat("a", MaxPromptChars) + "TAIL"
	p := Prompt([]core.Message{core.UserMessage(long)})
	assert.Len(t, []rune(p), MaxPromptChars)
	assert.True(t, strings.HasSuffix(p, "TAIL"))

	short := Prompt([]core.Message{core.SystemMessage("s"), core.UserMessage("u")})
	assert.Equal(t, "system: s\nuser: u", short)
}

func TestComplete_Success(t *testing.T) {
	fb := &fakeBackend{}
	m := newTestModel(fb)

	got, err := model.Generate(context.Background(), m, "hi")
	require.NoError(t, err)
	assert.Equal(t, "primary:user: hi", got)
	assert.Equal(t, []string{"primary"}, fb.calls)
}

func TestComplete_RetriesTransient(t *testing.T) {
	transient := errors.New("Error 503, Status: UNAVAILABLE")
	fb := &fakeBackend{results: map[string][]error{"primary": {transient, nil}}}
	m := newTestModel(fb)

	got, err := model.Generate(context.Background(), m, "hi")
	require.NoError(t, err)
	assert.Equal(t, "primary:user: hi", got)
	assert.Equal(t, []string{"primary", "primary"}, fb.calls)
}

func TestComplete_NotFoundIsImmediate(t *testing.T) {
	notFound := errors.New("Error 404, Status: NOT_FOUND")
	fb := &fakeBackend{results: map[string][]error{"primary": {notFound}}}
	m := newTestModel(fb)

	_, err := model.Generate(context.Background(), m, "hi")
	assert.Equal(t, notFound, err)
	assert.Equal(t, []string{"primary"}, fb.calls)
}

func TestComplete_FallsBack(t *testing.T) {
	transient := errors.New("Error 500, Status: INTERNAL")
	fb := &fakeBackend{results: map[string][]error{
		"primary":          {transient, transient, transient},
		"gemini-2.5-flash": {transient},
	}}
	m := newTestModel(fb)

	got, err := model.Generate(context.Background(), m, "hi")
	require.NoError(t, err)
	assert.Equal(t, "gemini-2.5-flash-lite:user: hi", got)
	assert.Equal(t, []string{"primary", "primary", "primary", "gemini-2.5-flash", "gemini-2.5-flash-lite"}, fb.calls)
}

func TestComplete_FallbacksExhausted(t *testing.T) {
	transient := errors.New("deadline exceeded upstream")
	fb := &fakeBackend{results: map[string][]error{
		"primary":               {transient, transient, transient},
		"gemini-2.5-flash":      {transient},
		"gemini-2.5-flash-lite": {transient},
		"gemini-1.5-flash":      {transient},
	}}
	m := newTestModel(fb)

	_, err := model.Generate(context.Background(), m, "hi")
	require.Error(t, err)
	assert.ErrorIs(t, err, transient)
	assert.Len(t, fb.calls, 6)
}

func TestStream(t *testing.T) {
	fb := &fakeBackend{chunks: []string{"Hel", "", "lo"}}
	m := newTestModel(fb)

	text, err := model.Collect(m.Stream(context.Background(), []core.Message{core.UserMessage("hi")}))
	require.NoError(t, err)
	assert.Equal(t, "Hello", text)
}

func TestStream_Errors(t *testing.T) {
	notFound := errors.New("Error 404, Status: NOT_FOUND")
	m := newTestModel(&fakeBackend{streamErr: notFound})
	_, err := model.Collect(m.Stream(context.Background(), []core.Message{core.UserMessage("hi")}))
	assert.Equal(t, notFound, err)

	m = newTestModel(&fakeBackend{chunks: []string{"partial"}, streamErr: errors.New("boom")})
	text, err := model.Collect(m.Stream(context.Background(), []core.Message{core.UserMessage("hi")}))
	assert.Equal(t, "partial", text)
	assert.EqualError(t, err, "gemini streaming failed: boom")
}

func TestClassification(t *testing.T) {
	assert.True(t, isNotFound(errors.New("models/foo is not found")))
	assert.False(t, isTransient(errors.New("Error 404 NOT_FOUND")))
	assert.True(t, isTransient(context.DeadlineExceeded))
	assert.True(t, isTransient(errors.New("service unavailable")))
	assert.False(t, isTransient(errors.New("invalid argument")))
	assert.False(t, isTransient(nil))
}
