// Package metrics exposes Prometheus instrumentation for model calls, tool
// calls and task execution.
package metrics

import (
	"context"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/model"
)

const namespace = "astra"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Metrics holds the collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	llmRequests  *prometheus.CounterVec
	llmDuration  *prometheus.HistogramVec
	toolCalls    *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
}

// New registers the collectors on reg.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)
	return &Metrics{
		llmRequests: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "llm_requests_total",
			Help:      "LLM requests by provider, model and outcome",
		}, []string{"provider", "model", "outcome"}),
		llmDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "llm_request_duration_seconds",
			Help:      "LLM request latency",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 12), // 50ms to ~100s
		}, []string{"provider", "model"}),
		toolCalls: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "tool_calls_total",
			Help:      "Tool invocations by tool and outcome",
		}, []string{"tool", "outcome"}),
		taskDuration: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "task_duration_seconds",
			Help:      "Task execution time by agent",
			Buckets:   prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"agent"}),
	}
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}

// ObserveToolCall counts one tool invocation. Its signature matches
// agent.ToolObserver.
func (m *Metrics) ObserveToolCall(name string, _ time.Duration, err error) {
	if m == nil {
		return
	}
	m.toolCalls.WithLabelValues(name, outcome(err)).Inc()
}

// ObserveTask records how long an agent spent on a task.
func (m *Metrics) ObserveTask(agent string, dur time.Duration) {
	if m == nil {
		return
	}
	m.taskDuration.WithLabelValues(agent).Observe(dur.Seconds())
}

func (m *Metrics) observeLLM(info model.Info, dur time.Duration, err error) {
	m.llmRequests.WithLabelValues(info.Provider, info.Name, outcome(err)).Inc()
	m.llmDuration.WithLabelValues(info.Provider, info.Name).Observe(dur.Seconds())
}

// InstrumentModel wraps m so every call is counted and timed. With nil
// metrics m is returned unchanged.
func InstrumentModel(m model.Model, mx *Metrics) model.Model {
	if mx == nil || m == nil {
		return m
	}
	return &instrumented{next: m, mx: mx}
}

type instrumented struct {
	next model.Model
	mx   *Metrics
}

func (i *instrumented) Info() model.Info { return i.next.Info() }

func (i *instrumented) Complete(ctx context.Context, msgs []core.Message) (string, error) {
	start := time.Now()
	out, err := i.next.Complete(ctx, msgs)
	i.mx.observeLLM(i.next.Info(), time.Since(start), err)
	return out, err
}

func (i *instrumented) Stream(ctx context.Context, msgs []core.Message) (<-chan string, <-chan error) {
	start := time.Now()
	inText, inErr := i.next.Stream(ctx, msgs)

	textCh := make(chan string)
	errCh := make(chan error, 1)
	go func() {
		defer close(textCh)
		defer close(errCh)

		for inText != nil || inErr != nil {
			select {
			case s, ok := <-inText:
				if !ok {
					inText = nil
					continue
				}
				select {
				case textCh <- s:
				case <-ctx.Done():
					i.mx.observeLLM(i.next.Info(), time.Since(start), ctx.Err())
					errCh <- ctx.Err()
					return
				}
			case err, ok := <-inErr:
				if !ok {
					inErr = nil
					continue
				}
				if err != nil {
					i.mx.observeLLM(i.next.Info(), time.Since(start), err)
					errCh <- err
					return
				}
			}
		}
		i.mx.observeLLM(i.next.Info(), time.Since(start), nil)
	}()
	return textCh, errCh
}
