package agent

import "github.com/hupe1980/astra/tool"

// Task is a unit of work assigned to an agent.
type Task struct {
	Name           string
	Description    string
	ExpectedOutput string
	Agent          *Agent
	Tools          []tool.Tool
}

// TaskOptions configures NewTask.
type TaskOptions struct {
	Name           string
	ExpectedOutput string
	Tools          []tool.Tool
}

// NewTask creates a task for agent.
func NewTask(description string, agent *Agent, optFns ...func(o *TaskOptions)) *Task {
	var opts TaskOptions
	for _, fn := range optFns {
		fn(&opts)
	}
	return &Task{
		Name:           opts.Name,
		Description:    description,
		ExpectedOutput: opts.ExpectedOutput,
		Agent:          agent,
		Tools:          opts.Tools,
	}
}

// Key identifies the task in results: its name, or its description when unnamed.
func (t *Task) Key() string {
	if t.Name != "" {
		return t.Name
	}
	return t.Description
}
