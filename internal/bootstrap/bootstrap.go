// Package bootstrap assembles an application from its declarative form.
package bootstrap

import (
	"context"
	"errors"
	"fmt"

	"github.com/hupe1980/astra/agent"
	"github.com/hupe1980/astra/application"
	"github.com/hupe1980/astra/config"
	"github.com/hupe1980/astra/logging"
	"github.com/hupe1980/astra/memory"
	"github.com/hupe1980/astra/metrics"
	"github.com/hupe1980/astra/model"
	"github.com/hupe1980/astra/model/providers"
	"github.com/hupe1980/astra/router"
	"github.com/hupe1980/astra/runlog"
	"github.com/hupe1980/astra/tool"
	"github.com/hupe1980/astra/tool/builtin"
)

// ModelFactory builds a model from configuration.
type ModelFactory func(ctx context.Context, cfg config.ModelConfig, settings config.Settings) (model.Model, error)

// Options configures Build.
type Options struct {
	Logger  logging.Logger
	Metrics *metrics.Metrics
	// NewModel defaults to providers.New.
	NewModel ModelFactory
}

// Bundle is a built application plus the resources it owns.
type Bundle struct {
	App     *application.Application
	Catalog *tool.Registry
	closers []func() error
}

// Close releases resources such as the run store.
func (b *Bundle) Close() error {
	var errs []error
	for _, c := range b.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

// Catalog returns every tool an app file can reference by name.
func Catalog(settings config.Settings) *tool.Registry {
	return builtin.Registry(settings).Register(router.TransferTool())
}

func resolve(catalog *tool.Registry, names []string) ([]tool.Tool, error) {
	out := make([]tool.Tool, 0, len(names))
	for _, n := range names {
		t, ok := catalog.Get(n)
		if !ok {
			return nil, fmt.Errorf("unknown tool %q", n)
		}
		out = append(out, t)
	}
	return out, nil
}

// Build creates the models, agents, tasks and run log described by file.
func Build(ctx context.Context, file *config.AppFile, settings config.Settings, optFns ...func(o *Options)) (*Bundle, error) {
	opts := Options{NewModel: providers.New}
	for _, fn := range optFns {
		fn(&opts)
	}
	log := logging.OrNoOp(opts.Logger)

	b := &Bundle{Catalog: Catalog(settings)}
	fail := func(err error) (*Bundle, error) {
		_ = b.Close()
		return nil, err
	}

	shared, err := opts.NewModel(ctx, file.Model, settings)
	if err != nil {
		return fail(fmt.Errorf("app model: %w", err))
	}

	agents := make(map[string]*agent.Agent, len(file.Agents))
	ordered := make([]*agent.Agent, 0, len(file.Agents))
	for _, spec := range file.Agents {
		m := shared
		if spec.Model != nil {
			if m, err = opts.NewModel(ctx, *spec.Model, settings); err != nil {
				return fail(fmt.Errorf("agent %q model: %w", spec.Name, err))
			}
		}
		tools, err := resolve(b.Catalog, spec.Tools)
		if err != nil {
			return fail(fmt.Errorf("agent %q: %w", spec.Name, err))
		}
		var mem *memory.ShortTermMemory
		if spec.Memory > 0 {
			mem = memory.NewShortTermMemory(spec.Memory)
			tools = append(tools, memory.NewTool(mem))
		}

		a := agent.New(spec.Name, spec.Role, func(o *agent.Options) {
			o.Goal = spec.Goal
			o.Model = m
			o.Tools = tools
			o.Logger = log
			o.OnToolCall = opts.Metrics.ObserveToolCall
			if spec.MaxToolRounds > 0 {
				o.MaxToolRounds = spec.MaxToolRounds
			}
			o.Memory = mem
		})
		agents[spec.Name] = a
		ordered = append(ordered, a)
	}

	tasks := make([]*agent.Task, 0, len(file.Tasks))
	for i, spec := range file.Tasks {
		tools, err := resolve(b.Catalog, spec.Tools)
		if err != nil {
			return fail(fmt.Errorf("task %d: %w", i, err))
		}
		tasks = append(tasks, agent.NewTask(spec.Description, agents[spec.Agent], func(o *agent.TaskOptions) {
			o.Name = spec.Name
			o.ExpectedOutput = spec.ExpectedOutput
			o.Tools = tools
		}))
	}

	appTools, err := resolve(b.Catalog, file.Tools)
	if err != nil {
		return fail(fmt.Errorf("app: %w", err))
	}

	recorder, err := b.runLog(file.RunLog)
	if err != nil {
		return fail(err)
	}

	b.App, err = application.New(ordered, tasks, appTools, nil, func(o *application.Options) {
		o.MaxModelCalls = file.MaxModelCalls
		o.Logger = log
		o.Recorder = recorder
		o.Metrics = opts.Metrics
		if file.MentionRouting {
			o.Router = router.New(router.MentionDecider(file.AgentNames()...))
		}
	})
	if err != nil {
		return fail(err)
	}
	return b, nil
}

func (b *Bundle) runLog(cfg config.RunLogConfig) (runlog.Recorder, error) {
	var recs []runlog.Recorder
	if cfg.JSONL != "" {
		j, err := runlog.NewJSONL(cfg.JSONL)
		if err != nil {
			return nil, err
		}
		recs = append(recs, j)
	}
	if cfg.SQLite != "" {
		s, err := runlog.NewSQLite(cfg.SQLite)
		if err != nil {
			return nil, err
		}
		b.closers = append(b.closers, s.Close)
		recs = append(recs, s)
	}
	return runlog.Multi(recs...), nil
}
