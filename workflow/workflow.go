// Package workflow composes agent steps into sequential pipelines and
// dependency graphs.
package workflow

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/hupe1980/astra/agent"
	"github.com/hupe1980/astra/core"
)

var (
	// ErrCycle is returned when the DAG's edges form a cycle.
	ErrCycle = errors.New("workflow contains a cycle")
	// ErrUnknownNode is returned when an edge references a node that was
	// never added.
	ErrUnknownNode = errors.New("unknown workflow node")
)

// Step produces one message.
type Step func(ctx context.Context) (core.Message, error)

type inputsKey struct{}

// Input is the result of an upstream DAG node.
type Input struct {
	Node    string
	Message core.Message
}

// Inputs returns the results of the DAG nodes the current step depends on,
// in link order. Outside a DAG it returns nil.
func Inputs(ctx context.Context) []Input {
	in, _ := ctx.Value(inputsKey{}).([]Input)
	return in
}

func withInputs(ctx context.Context, in []Input) context.Context {
	if len(in) == 0 {
		return ctx
	}
	return context.WithValue(ctx, inputsKey{}, in)
}

// TaskStep runs task on a. When opts.Context is empty, upstream DAG results
// become the task context.
func TaskStep(a *agent.Agent, task *agent.Task, opts agent.ExecuteOptions) Step {
	return func(ctx context.Context) (core.Message, error) {
		o := opts
		if o.Context == "" {
			lines := make([]string, 0, len(Inputs(ctx)))
			for _, in := range Inputs(ctx) {
				author := in.Message.Name
				if author == "" {
					author = in.Node
				}
				lines = append(lines, fmt.Sprintf("%s result: %s", author, in.Message.Content))
			}
			o.Context = strings.Join(lines, "\n")
		}
		out, err := a.Execute(ctx, task, o)
		if err != nil {
			return core.Message{}, err
		}
		msg := core.AssistantMessage(out)
		msg.Name = a.Name()
		return msg, nil
	}
}

type namedStep struct {
	name string
	step Step
}

// Sequential runs steps one after another.
type Sequential struct {
	Name  string
	steps []namedStep
}

// NewSequential creates an empty sequential workflow.
func NewSequential(name string) *Sequential {
	return &Sequential{Name: name}
}

// Add appends a step.
func (s *Sequential) Add(name string, step Step) *Sequential {
	s.steps = append(s.steps, namedStep{name: name, step: step})
	return s
}

// Run executes the steps in order and stops at the first error. Results
// gathered so far are returned with it.
func (s *Sequential) Run(ctx context.Context) (map[string]core.Message, error) {
	results := make(map[string]core.Message, len(s.steps))
	for _, st := range s.steps {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		msg, err := st.step(ctx)
		if err != nil {
			return results, fmt.Errorf("workflow %s: step %q: %w", s.Name, st.name, err)
		}
		results[st.name] = msg
	}
	return results, nil
}
