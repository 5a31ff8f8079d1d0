package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// AppFile is the declarative form of an application: one shared model, a set
// of agents and an ordered list of tasks.
type AppFile struct {
	Name   string       `yaml:"name"`
	Model  ModelConfig  `yaml:"model"`
	Agents []AgentSpec  `yaml:"agents" validate:"required,min=1,dive"`
	Tasks  []TaskSpec   `yaml:"tasks" validate:"required,min=1,dive"`
	Tools  []string     `yaml:"tools,omitempty"`
	RunLog RunLogConfig `yaml:"run_log,omitempty"`
	// MaxModelCalls caps model invocations per run; 0 means unlimited.
	MaxModelCalls int `yaml:"max_model_calls,omitempty" validate:"gte=0"`
	// MentionRouting hands a task result to any agent it @mentions.
	MentionRouting bool `yaml:"mention_routing,omitempty"`
}

// AgentNames returns the declared agent names in order.
func (a *AppFile) AgentNames() []string {
	names := make([]string, len(a.Agents))
	for i, ag := range a.Agents {
		names[i] = ag.Name
	}
	return names
}

// AgentSpec declares an agent. Model overrides the application model when set.
type AgentSpec struct {
	Name          string       `yaml:"name" validate:"required"`
	Role          string       `yaml:"role" validate:"required"`
	Goal          string       `yaml:"goal,omitempty"`
	Model         *ModelConfig `yaml:"model,omitempty"`
	Tools         []string     `yaml:"tools,omitempty"`
	MaxToolRounds int          `yaml:"max_tool_rounds,omitempty" validate:"gte=0"`
	Memory        int          `yaml:"memory,omitempty" validate:"gte=0"`
}

// TaskSpec declares a task executed by the named agent.
type TaskSpec struct {
	Name           string   `yaml:"name,omitempty"`
	Description    string   `yaml:"description" validate:"required"`
	ExpectedOutput string   `yaml:"expected_output,omitempty"`
	Agent          string   `yaml:"agent" validate:"required"`
	Tools          []string `yaml:"tools,omitempty"`
}

// RunLogConfig selects run log sinks; empty paths disable a sink.
type RunLogConfig struct {
	JSONL  string `yaml:"jsonl,omitempty"`
	SQLite string `yaml:"sqlite,omitempty"`
}

// LoadAppFile reads and validates an application definition from path.
func LoadAppFile(path string) (*AppFile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading app file: %w", err)
	}
	return ParseAppFile(data)
}

// ParseAppFile decodes YAML into an AppFile, applies model defaults and
// validates the result. Unknown keys are rejected.
func ParseAppFile(data []byte) (*AppFile, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)

	var app AppFile
	if err := dec.Decode(&app); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("decoding app file: %w", err)
	}
	app.Model = app.Model.WithDefaults()
	for i := range app.Agents {
		if app.Agents[i].Model != nil {
			m := app.Agents[i].Model.WithDefaults()
			app.Agents[i].Model = &m
		}
	}
	if err := app.Validate(); err != nil {
		return nil, err
	}
	return &app, nil
}

// Validate checks struct constraints and cross references between tasks and agents.
func (a *AppFile) Validate() error {
	if err := validator.New().Struct(a); err != nil {
		return fmt.Errorf("validation failed for AppFile: %w", err)
	}
	if err := a.Model.Validate(); err != nil {
		return err
	}
	names := make(map[string]struct{}, len(a.Agents))
	for _, ag := range a.Agents {
		if _, dup := names[ag.Name]; dup {
			return fmt.Errorf("duplicate agent %q", ag.Name)
		}
		names[ag.Name] = struct{}{}
		if ag.Model != nil {
			if err := ag.Model.Validate(); err != nil {
				return fmt.Errorf("agent %q: %w", ag.Name, err)
			}
		}
	}
	for i, t := range a.Tasks {
		if _, ok := names[t.Agent]; !ok {
			return fmt.Errorf("task %d references unknown agent %q", i, t.Agent)
		}
	}
	return nil
}
