package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/memory"
	"github.com/hupe1980/astra/model"
	"github.com/hupe1980/astra/model/ollama"
	"github.com/hupe1980/astra/tool"
)

// ErrNoModel is returned when neither the agent nor the caller supplies a model.
var ErrNoModel = errors.New("agent has no model")

// DefaultMaxToolRounds bounds the tool directive loop.
const DefaultMaxToolRounds = 3

// MetaDirectiveID is the Meta key holding the id of the directive a tool
// message answers. Directives are not native tool calls, so ToolCallID stays
// empty.
const MetaDirectiveID = "directive_id"

// ToolObserver is notified after every tool directive is executed.
type ToolObserver func(toolName string, dur time.Duration, err error)

// Options configures an Agent instance. Use functional options with New to
// override defaults.
type Options struct {
	Goal  string
	Model model.Model
	Tools []tool.Tool
	// Instruction, when it resolves to non-empty text, is sent as a system message.
	Instruction   Instruction
	Memory        *memory.ShortTermMemory
	MaxToolRounds int
	ToolTimeout   time.Duration
	Logger        logging.Logger
	OnToolCall    ToolObserver
}

// Agent is a named role with a goal, a model and a tool set. An Agent holds
// no per-call state and can serve concurrent calls; its Memory, when set, is
// shared between them.
type Agent struct {
	name          string
	role          string
	goal          string
	model         model.Model
	tools         *tool.Registry
	instruction   Instruction
	memory        *memory.ShortTermMemory
	maxToolRounds int
	toolTimeout   time.Duration
	logger        logging.Logger
	onToolCall    ToolObserver
}

// New creates an agent. Without a model it talks to a local Ollama server
// serving llama3.
func New(name, role string, optFns ...func(o *Options)) *Agent {
	opts := Options{
		MaxToolRounds: DefaultMaxToolRounds,
		ToolTimeout:   60 * time.Second,
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	m := opts.Model
	if m == nil {
		m = ollama.NewModel()
	}
	if opts.MaxToolRounds < 0 {
		opts.MaxToolRounds = 0
	}

	return &Agent{
		name:          name,
		role:          role,
		goal:          opts.Goal,
		model:         m,
		tools:         tool.NewRegistry(opts.Tools...),
		instruction:   opts.Instruction,
		memory:        opts.Memory,
		maxToolRounds: opts.MaxToolRounds,
		toolTimeout:   opts.ToolTimeout,
		logger:        logging.OrNoOp(opts.Logger),
		onToolCall:    opts.OnToolCall,
	}
}

// Name returns the agent's name.
func (a *Agent) Name() string { return a.name }

// Role returns the agent's role.
func (a *Agent) Role() string { return a.role }

// Goal returns the agent's goal.
func (a *Agent) Goal() string { return a.goal }

// Model returns the agent's own model.
func (a *Agent) Model() model.Model { return a.model }

// Tools returns the agent's own tools.
func (a *Agent) Tools() *tool.Registry { return a.tools }

// Memory returns the agent's memory, or nil.
func (a *Agent) Memory() *memory.ShortTermMemory { return a.memory }

func (a *Agent) frame(label, text string) string {
	return fmt.Sprintf("Role: %s\nGoal: %s\n%s: %s", a.role, a.goal, label, text)
}

// Act asks the agent's model to perform task.
func (a *Agent) Act(ctx context.Context, task string) (string, error) {
	return a.converse(ctx, a.frame("Task", task), a.model, a.tools)
}

// Run answers prompt with override, or the agent's model when override is nil.
func (a *Agent) Run(ctx context.Context, prompt string, override model.Model) (string, error) {
	m := override
	if m == nil {
		m = a.model
	}
	return a.converse(ctx, a.frame("Prompt", prompt), m, a.tools)
}

// ExecuteOptions carries per-call inputs of Execute.
type ExecuteOptions struct {
	// Model overrides the agent's model.
	Model model.Model
	// Tools are offered in addition to the agent's and the task's tools.
	Tools *tool.Registry
	// Context holds results of earlier tasks.
	Context string
}

// Execute completes a task. The prompt is the task description followed by
// the expected output, the context from previous tasks and the available
// tool names, each when present.
func (a *Agent) Execute(ctx context.Context, task *Task, opts ExecuteOptions) (string, error) {
	if task == nil {
		return "", errors.New("task is nil")
	}

	tools := a.tools.Merge(opts.Tools).Merge(tool.NewRegistry(task.Tools...))

	var b strings.Builder
	b.WriteString(task.Description)
	if task.ExpectedOutput != "" {
		fmt.Fprintf(&b, "\n\nExpected output: %s", task.ExpectedOutput)
	}
	if opts.Context != "" {
		fmt.Fprintf(&b, "\n\nContext from previous tasks:\n%s", opts.Context)
	}
	if tools.Len() > 0 {
		fmt.Fprintf(&b, "\n\nAvailable tools: %s", strings.Join(tools.Names(), ", "))
	}

	m := opts.Model
	if m == nil {
		m = a.model
	}

	start := time.Now()
	a.logger.Debug("agent.execute.start", "agent", a.name, "task", task.Key())
	out, err := a.converse(ctx, a.frame("Prompt", b.String()), m, tools)
	if err != nil {
		a.logger.Error("agent.execute.error", "agent", a.name, "task", task.Key(), "error", err.Error())
		return "", err
	}
	a.logger.Debug("agent.execute.complete", "agent", a.name, "task", task.Key(), "duration_ms", time.Since(start).Milliseconds())
	return out, nil
}

// converse sends prompt to m and resolves tool directives until the model
// gives a final answer or the round budget is spent.
func (a *Agent) converse(ctx context.Context, prompt string, m model.Model, tools *tool.Registry) (string, error) {
	if m == nil {
		return "", ErrNoModel
	}
	if tools.Len() > 0 && a.maxToolRounds > 0 {
		prompt += toolProtocol(tools)
	}

	var msgs []core.Message
	system, err := a.instruction.Resolve(ctx)
	if err != nil {
		return "", fmt.Errorf("resolving instruction: %w", err)
	}
	if system != "" {
		msgs = append(msgs, core.SystemMessage(system))
	}
	if a.memory != nil {
		msgs = append(msgs, a.memory.Dump()...)
	}
	user := core.UserMessage(prompt)
	msgs = append(msgs, user)

	reply, err := a.complete(ctx, m, msgs)
	if err != nil {
		return "", fmt.Errorf("agent %s: %w", a.name, err)
	}

	if tools.Len() > 0 {
		for round := 0; round < a.maxToolRounds; round++ {
			directives := ParseDirectives(reply)
			if len(directives) == 0 {
				break
			}
			a.logger.Debug("agent.tools.round", "agent", a.name, "round", round+1, "directives", len(directives))

			msgs = append(msgs, core.AssistantMessage(reply))
			for _, d := range directives {
				msgs = append(msgs, a.runDirective(ctx, tools, d))
			}

			reply, err = a.complete(ctx, m, msgs)
			if err != nil {
				return "", fmt.Errorf("agent %s: %w", a.name, err)
			}
		}
	}

	if a.memory != nil {
		a.memory.Add(user, core.AssistantMessage(reply))
	}
	return reply, nil
}

func (a *Agent) complete(ctx context.Context, m model.Model, msgs []core.Message) (string, error) {
	start := time.Now()
	reply, err := m.Complete(ctx, msgs)
	if l, ok := a.logger.(*logging.AstraLogger); ok {
		info := m.Info()
		chars := 0
		for _, msg := range msgs {
			chars += len(msg.Content)
		}
		l.LogLLMCall(info.Provider, info.Name, chars, time.Since(start), err)
	}
	return reply, err
}

func directiveResult(name, id, content string) core.Message {
	msg := core.ToolMessage(name, "", content)
	msg.Meta[MetaDirectiveID] = id
	return msg
}

func (a *Agent) runDirective(ctx context.Context, tools *tool.Registry, d Directive) core.Message {
	callID := core.NewID()
	t, ok := tools.Get(d.Name)
	if !ok {
		a.logger.Warn("agent.tool.unknown", "agent", a.name, "tool", d.Name)
		return directiveResult(d.Name, callID, fmt.Sprintf("error: unknown tool %q", d.Name))
	}

	callCtx := ctx
	if a.toolTimeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, a.toolTimeout)
		defer cancel()
	}
	callCtx = logging.WithLogger(callCtx, a.logger)

	start := time.Now()
	res, err := t.Call(callCtx, d.Arguments)
	dur := time.Since(start)
	if a.onToolCall != nil {
		a.onToolCall(d.Name, dur, err)
	}
	if l, ok := a.logger.(*logging.AstraLogger); ok {
		l.LogToolCall(d.Name, dur, err == nil, err)
	}
	if err != nil {
		return directiveResult(d.Name, callID, "error: "+err.Error())
	}
	return directiveResult(d.Name, callID, FormatResult(res))
}
