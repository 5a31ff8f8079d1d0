// Package application runs an ordered list of tasks, threading each result
// into the tasks that follow.
package application

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/astra/agent"
	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/metrics"
	"github.com/hupe1980/astra/model"
	"github.com/hupe1980/astra/router"
	"github.com/hupe1980/astra/runlog"
	"github.com/hupe1980/astra/tool"
)

var (
	// ErrUnknownAgent is returned when a handoff names an agent the
	// application does not know.
	ErrUnknownAgent = errors.New("unknown agent")
	// ErrTaskWithoutAgent is returned by New for a task with no agent.
	ErrTaskWithoutAgent = errors.New("task has no agent")
)

// Options configures an Application.
type Options struct {
	// Router is consulted after every task.
	Router *router.Router
	// MaxModelCalls caps model calls per run; 0 means unlimited.
	MaxModelCalls int
	Logger        logging.Logger
	Recorder      runlog.Recorder
	Metrics       *metrics.Metrics
}

// Step is one agent output produced during a run.
type Step struct {
	Task   string `json:"task"`
	Agent  string `json:"agent"`
	Output string `json:"output"`
	// HandoffFrom names the agent whose output was handed off, if any.
	HandoffFrom string `json:"handoff_from,omitempty"`
}

// Result collects the outputs of a run.
type Result struct {
	RunID string `json:"run_id"`
	Steps []Step `json:"steps"`
	// Outputs maps task keys to the task's own output.
	Outputs map[string]string `json:"outputs"`
}

// Application is a sequential task runner.
type Application struct {
	agents   map[string]*agent.Agent
	order    []string
	tasks    []*agent.Task
	tools    *tool.Registry
	model    model.Model
	router   *router.Router
	maxCalls int
	logger   logging.Logger
	recorder runlog.Recorder
	metrics  *metrics.Metrics
}

// New creates an application. Agents referenced by tasks are added to agents
// when missing. A nil m makes every task use its agent's model.
func New(agents []*agent.Agent, tasks []*agent.Task, tools []tool.Tool, m model.Model, optFns ...func(o *Options)) (*Application, error) {
	var opts Options
	for _, fn := range optFns {
		fn(&opts)
	}

	app := &Application{
		agents:   make(map[string]*agent.Agent),
		tasks:    tasks,
		tools:    tool.NewRegistry(tools...),
		model:    m,
		router:   opts.Router,
		maxCalls: opts.MaxModelCalls,
		logger:   logging.OrNoOp(opts.Logger),
		recorder: opts.Recorder,
		metrics:  opts.Metrics,
	}
	if app.recorder == nil {
		app.recorder = runlog.Nop()
	}

	add := func(a *agent.Agent) error {
		if prev, ok := app.agents[a.Name()]; ok {
			if prev != a {
				return fmt.Errorf("duplicate agent name %q", a.Name())
			}
			return nil
		}
		app.agents[a.Name()] = a
		app.order = append(app.order, a.Name())
		return nil
	}
	for _, a := range agents {
		if a == nil {
			continue
		}
		if err := add(a); err != nil {
			return nil, err
		}
	}
	for i, t := range tasks {
		if t == nil || t.Agent == nil {
			return nil, fmt.Errorf("task %d: %w", i, ErrTaskWithoutAgent)
		}
		if err := add(t.Agent); err != nil {
			return nil, err
		}
	}
	return app, nil
}

// Agents returns the known agents in registration order.
func (app *Application) Agents() []*agent.Agent {
	out := make([]*agent.Agent, len(app.order))
	for i, n := range app.order {
		out[i] = app.agents[n]
	}
	return out
}

// Agent returns the named agent.
func (app *Application) Agent(name string) (*agent.Agent, bool) {
	a, ok := app.agents[name]
	return a, ok
}

// Tasks returns the tasks in execution order.
func (app *Application) Tasks() []*agent.Task { return app.tasks }

// Tools returns the application-wide tools.
func (app *Application) Tools() *tool.Registry { return app.tools }

func (app *Application) modelFor(a *agent.Agent, limiter *CallLimiter) model.Model {
	m := app.model
	if m == nil {
		m = a.Model()
	}
	return limiter.Wrap(metrics.InstrumentModel(m, app.metrics))
}

// run carries the state of one Run call.
type run struct {
	id      string
	limiter *CallLimiter
	logger  logging.Logger
	lines   []string
	result  *Result
}

func (r *run) contextBlob() string { return strings.Join(r.lines, "\n") }

func (r *run) logTask(task, agent string, dur time.Duration, err error) {
	if l, ok := r.logger.(*logging.AstraLogger); ok {
		l.LogTaskExecution(task, agent, dur, err)
		return
	}
	if err != nil {
		r.logger.Error("application.task.error", "task", task, "agent", agent, "duration_ms", dur.Milliseconds(), "error", err.Error())
		return
	}
	r.logger.Info("application.task.complete", "task", task, "agent", agent, "duration_ms", dur.Milliseconds())
}

func (r *run) add(step Step) {
	r.result.Steps = append(r.result.Steps, step)
	r.lines = append(r.lines, fmt.Sprintf("%s result: %s", step.Agent, step.Output))
}

// Run executes every task in order. Task descriptions are rendered as
// templates against inputs. On failure the partial result is returned with
// the error.
func (app *Application) Run(ctx context.Context, inputs map[string]any) (*Result, error) {
	r := &run{
		id:      core.NewID(),
		limiter: NewCallLimiter(app.maxCalls),
		result:  &Result{Outputs: make(map[string]string)},
	}
	r.result.RunID = r.id
	r.logger = app.logger
	if l, ok := app.logger.(*logging.AstraLogger); ok {
		r.logger = l.WithRun(r.id)
	}

	r.logger.Info("application.run.start", "tasks", len(app.tasks))
	start := time.Now()

	for _, task := range app.tasks {
		if err := app.runTask(ctx, r, task, inputs); err != nil {
			r.logger.Error("application.run.error", "error", err.Error())
			return r.result, err
		}
	}

	r.logger.Info("application.run.complete", "steps", len(r.result.Steps), "duration_ms", time.Since(start).Milliseconds())
	return r.result, nil
}

func (app *Application) runTask(ctx context.Context, r *run, task *agent.Task, inputs map[string]any) error {
	desc, err := Render(task.Description, inputs)
	if err != nil {
		return fmt.Errorf("task %q: render description: %w", task.Key(), err)
	}
	rendered := *task
	rendered.Description = desc
	key := rendered.Key()
	a := task.Agent

	taskCtx, slot := router.WithSlot(ctx)
	r.logger.Info("application.task.start", "task", key, "agent", a.Name())

	start := time.Now()
	out, err := a.Execute(taskCtx, &rendered, agent.ExecuteOptions{
		Model:   app.modelFor(a, r.limiter),
		Tools:   app.tools,
		Context: r.contextBlob(),
	})
	dur := time.Since(start)
	app.metrics.ObserveTask(a.Name(), dur)
	app.record(ctx, r, Step{Task: key, Agent: a.Name(), Output: out}, dur, err)
	r.logTask(key, a.Name(), dur, err)
	if err != nil {
		return fmt.Errorf("task %q (agent %s): %w", key, a.Name(), err)
	}

	r.result.Outputs[key] = out
	r.add(Step{Task: key, Agent: a.Name(), Output: out})

	h := slot.Take()
	if h == nil {
		msg := core.AssistantMessage(out)
		msg.Name = a.Name()
		h = app.router.Route(msg)
	}
	if h == nil || h.ToAgent == "" || h.ToAgent == a.Name() {
		return nil
	}
	return app.handOff(ctx, r, key, a, h, out)
}

func (app *Application) handOff(ctx context.Context, r *run, key string, from *agent.Agent, h *router.HandOff, out string) error {
	target, ok := app.agents[h.ToAgent]
	if !ok {
		return fmt.Errorf("task %q: handoff from %s: %w %q", key, from.Name(), ErrUnknownAgent, h.ToAgent)
	}
	r.logger.Info("application.handoff", "task", key, "from", from.Name(), "to", target.Name(), "reason", h.Reason)

	prompt := fmt.Sprintf("Handoff from %s: %s\n\n%s", from.Name(), h.Reason, out)
	start := time.Now()
	hout, err := target.Run(ctx, prompt, app.modelFor(target, r.limiter))
	dur := time.Since(start)
	app.metrics.ObserveTask(target.Name(), dur)

	step := Step{Task: key, Agent: target.Name(), Output: hout, HandoffFrom: from.Name()}
	app.record(ctx, r, step, dur, err)
	r.logTask(key, target.Name(), dur, err)
	if err != nil {
		return fmt.Errorf("task %q: handoff to %s: %w", key, target.Name(), err)
	}
	r.add(step)
	return nil
}

func (app *Application) record(ctx context.Context, r *run, step Step, dur time.Duration, runErr error) {
	rec := runlog.Record{
		"run_id":      r.id,
		"task":        step.Task,
		"agent":       step.Agent,
		"output":      step.Output,
		"duration_ms": dur.Milliseconds(),
	}
	if step.HandoffFrom != "" {
		rec["handoff_from"] = step.HandoffFrom
	}
	if runErr != nil {
		rec["error"] = runErr.Error()
	}
	// Records of cancelled runs must still land.
	if err := app.recorder.Log(context.WithoutCancel(ctx), rec); err != nil {
		r.logger.Warn("application.runlog.error", "error", err.Error())
	}
}
