package agent

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/hupe1980/astra/core"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/memory"
	"github.com/hupe1980/astra/model"
	"github.com/hupe1980/astra/tool"
)

// MockTool records calls through testify's mock.
type MockTool struct {
	mock.Mock
	name string
}

func (m *MockTool) Name() string               { return m.name }
func (m *MockTool) Description() string        { return "mock tool " + m.name }
func (m *MockTool) Parameters() map[string]any { return map[string]any{"type": "object"} }
func (m *MockTool) Call(ctx context.Context, args map[string]any) (any, error) {
	ret := m.Called(args)
	return ret.Get(0), ret.Error(1)
}

func newMock() *model.MockModel { return model.NewMockModel("mock", "mock") }

func TestNew_DefaultModel(t *testing.T) {
	a := New("Dev", "Writes code")
	assert.Equal(t, model.Info{Name: "llama3", Provider: "ollama"}, a.Model().Info())
	assert.Equal(t, 0, a.Tools().Len())
	assert.Nil(t, a.Memory())
}

func TestAct(t *testing.T) {
	m := newMock().Enqueue("done")
	a := New("Dev", "Writes code", func(o *Options) {
		o.Goal = "Ship it"
		o.Model = m
	})

	out, err := a.Act(context.Background(), "add tests")
	require.NoError(t, err)
	assert.Equal(t, "done", out)
	assert.Equal(t, "Role: Writes code\nGoal: Ship it\nTask: add tests", m.LastPrompt())
}

func TestRun_Override(t *testing.T) {
	own := newMock()
	override := newMock().Enqueue("from override")
	a := New("Dev", "Writes code", func(o *Options) { o.Model = own })

	out, err := a.Run(context.Background(), "hello", override)
	require.NoError(t, err)
	assert.Equal(t, "from override", out)
	assert.Equal(t, "Role: Writes code\nGoal: \nPrompt: hello", override.LastPrompt())
	assert.Equal(t, 0, own.CallCount())
}

func TestExecute_Prompt(t *testing.T) {
	m := newMock().Enqueue("result")
	a := New("Dev", "Writes code", func(o *Options) {
		o.Goal = "Ship"
		o.Model = m
		o.MaxToolRounds = 0
	})
	echo := tool.NewFunctionTool("echo", "Echo", nil, func(context.Context, map[string]any) (any, error) { return "x", nil })
	task := NewTask("Write a parser", a, func(o *TaskOptions) {
		o.ExpectedOutput = "Go code"
		o.Tools = []tool.Tool{echo}
	})

	out, err := a.Execute(context.Background(), task, ExecuteOptions{
		Context: "Planner result: plan",
		Tools:   tool.NewRegistry(tool.NewFunctionTool("shell", "Shell", nil, nil)),
	})
	require.NoError(t, err)
	assert.Equal(t, "result", out)
	assert.Equal(t,
		"Role: Writes code\nGoal: Ship\nPrompt: Write a parser\n\nExpected output: Go code"+
			"\n\nContext from previous tasks:\nPlanner result: plan"+
			"\n\nAvailable tools: shell, echo",
		m.LastPrompt())
}

func TestExecute_ModelOverrideAndNilTask(t *testing.T) {
	own := newMock()
	app := newMock().Enqueue("app model")
	a := New("Dev", "r", func(o *Options) { o.Model = own })

	out, err := a.Execute(context.Background(), NewTask("t", a), ExecuteOptions{Model: app})
	require.NoError(t, err)
	assert.Equal(t, "app model", out)
	assert.Equal(t, "Role: r\nGoal: \nPrompt: t", app.LastPrompt())

	_, err = a.Execute(context.Background(), nil, ExecuteOptions{})
	assert.Error(t, err)
}

func TestToolLoop(t *testing.T) {
	calc := &MockTool{name: "calc"}
	calc.On("Call", map[string]any{"expr": "1+1"}).Return(2, nil).Once()

	var observed []string
	m := newMock().Enqueue(
		"Let me compute.\n```tool\n{\"name\": \"calc\", \"arguments\": {\"expr\": \"1+1\"}}\n```",
		"The answer is 2.",
	)
	a := New("Math", "Computes", func(o *Options) {
		o.Model = m
		o.Tools = []tool.Tool{calc}
		o.OnToolCall = func(name string, _ time.Duration, err error) {
			observed = append(observed, name)
			assert.NoError(t, err)
		}
	})

	out, err := a.Act(context.Background(), "what is 1+1?")
	require.NoError(t, err)
	assert.Equal(t, "The answer is 2.", out)
	calc.AssertExpectations(t)
	assert.Equal(t, []string{"calc"}, observed)

	calls := m.Calls()
	require.Len(t, calls, 2)
	assert.Contains(t, calls[0][0].Content, "```tool")
	assert.Contains(t, calls[0][0].Content, "- calc: mock tool calc")

	second := calls[1]
	require.Len(t, second, 3)
	assert.Equal(t, core.RoleAssistant, second[1].Role)
	assert.Equal(t, core.RoleTool, second[2].Role)
	assert.Equal(t, "calc", second[2].Name)
	assert.Equal(t, "2", second[2].Content)
	assert.Empty(t, second[2].ToolCallID)
	assert.NotEmpty(t, second[2].Meta[MetaDirectiveID])
}

func TestToolLoop_ErrorsAndUnknownTools(t *testing.T) {
	failing := &MockTool{name: "fail"}
	failing.On("Call", mock.Anything).Return(nil, errors.New("exploded"))

	m := newMock().Enqueue(
		"```tool\n{\"name\": \"fail\"}\n```\n```tool\n{\"name\": \"ghost\", \"arguments\": {}}\n```",
		"gave up",
	)
	a := New("A", "r", func(o *Options) {
		o.Model = m
		o.Tools = []tool.Tool{failing}
	})

	out, err := a.Act(context.Background(), "go")
	require.NoError(t, err)
	assert.Equal(t, "gave up", out)

	second := m.Calls()[1]
	require.Len(t, second, 4)
	assert.Equal(t, "error: exploded", second[2].Content)
	assert.Equal(t, `error: unknown tool "ghost"`, second[3].Content)
}

func TestToolLoop_RoundLimit(t *testing.T) {
	echo := &MockTool{name: "echo"}
	echo.On("Call", mock.Anything).Return("again", nil)

	directive := "```tool\n{\"name\": \"echo\", \"arguments\": {}}\n```"
	m := newMock().Enqueue(directive, directive, directive)
	a := New("A", "r", func(o *Options) {
		o.Model = m
		o.Tools = []tool.Tool{echo}
		o.MaxToolRounds = 2
	})

	out, err := a.Act(context.Background(), "loop")
	require.NoError(t, err)
	assert.Equal(t, directive, out)
	assert.Equal(t, 3, m.CallCount())
	echo.AssertNumberOfCalls(t, "Call", 2)
}

func TestMemoryAndInstruction(t *testing.T) {
	mem := memory.NewShortTermMemory(10)
	m := newMock().Enqueue("first", "second")
	a := New("A", "r", func(o *Options) {
		o.Model = m
		o.Memory = mem
		o.Instruction = NewInstructionFromText("be terse")
	})

	_, err := a.Act(context.Background(), "one")
	require.NoError(t, err)
	_, err = a.Act(context.Background(), "two")
	require.NoError(t, err)

	assert.Equal(t, 4, mem.Len())
	second := m.Calls()[1]
	require.Len(t, second, 4)
	assert.Equal(t, core.RoleSystem, second[0].Role)
	assert.Equal(t, "be terse", second[0].Content)
	assert.True(t, strings.HasSuffix(second[1].Content, "Task: one"))
	assert.Equal(t, "first", second[2].Content)
	assert.True(t, strings.HasSuffix(second[3].Content, "Task: two"))
}

func TestModelError(t *testing.T) {
	boom := errors.New("boom")
	a := New("A", "r", func(o *Options) { o.Model = newMock().FailNext(boom) })
	_, err := a.Act(context.Background(), "x")
	assert.ErrorIs(t, err, boom)
}

func TestParseDirectives(t *testing.T) {
	reply := "```tool\n{\"name\": \"a\", \"arguments\": {\"x\": 1}}\n```\n" +
		"```tool\nnot json\n```\n" +
		"```tool\n{\"arguments\": {}}\n```\n" +
		"```tool\n{\"name\": \"b\"}\n```"
	ds := ParseDirectives(reply)
	require.Len(t, ds, 2)
	assert.Equal(t, "a", ds[0].Name)
	assert.Equal(t, 1.0, ds[0].Arguments["x"])
	assert.Equal(t, "b", ds[1].Name)
	assert.NotNil(t, ds[1].Arguments)

	assert.Empty(t, ParseDirectives("```python\nprint(1)\n```"))
}

func TestFormatResult(t *testing.T) {
	assert.Equal(t, "", FormatResult(nil))
	assert.Equal(t, "text", FormatResult("text"))
	assert.Equal(t, `{"a":1}`, FormatResult(map[string]int{"a": 1}))
	assert.Equal(t, "1s", FormatResult(time.Second))
}

func TestTaskKey(t *testing.T) {
	assert.Equal(t, "describe", NewTask("describe", nil).Key())
	assert.Equal(t, "named", NewTask("describe", nil, func(o *TaskOptions) { o.Name = "named" }).Key())
}

func TestToolLoop_LogsCalls(t *testing.T) {
	var buf bytes.Buffer
	logger := logging.NewLogger(&logging.LoggerConfig{Level: logging.LogLevelInfo, Format: "json", Output: &buf})

	m := newMock().Enqueue(
		"```tool\n{\"name\": \"calc\", \"arguments\": {}}\n```",
		"done",
	)
	calc := &MockTool{name: "calc"}
	calc.On("Call", map[string]any{}).Return(1, nil).Once()
	a := New("Math", "Computes", func(o *Options) {
		o.Model = m
		o.Tools = []tool.Tool{calc}
		o.Logger = logger
	})

	_, err := a.Act(context.Background(), "go")
	require.NoError(t, err)

	logged := buf.String()
	assert.Equal(t, 2, strings.Count(logged, `"msg":"llm.call.completed"`))
	assert.Contains(t, logged, `"provider":"mock"`)
	assert.Contains(t, logged, `"msg":"tool.call.completed"`)
	assert.Contains(t, logged, `"tool_name":"calc"`)
}
