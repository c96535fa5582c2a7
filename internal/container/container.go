// Package container wires core loopkit services using go.uber.org/dig.
package container

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"go.uber.org/dig"

	"github.com/agentfactory/loopkit/internal/config"
	"github.com/agentfactory/loopkit/internal/cron"
	"github.com/agentfactory/loopkit/internal/loop"
	"github.com/agentfactory/loopkit/internal/plan"
	"github.com/agentfactory/loopkit/internal/reasoner"
	"github.com/agentfactory/loopkit/internal/reflection"
	"github.com/agentfactory/loopkit/internal/schema"
	"github.com/agentfactory/loopkit/internal/shared/textutils"
	"github.com/agentfactory/loopkit/internal/tools"
)

// Container holds the resolved core service singletons.
// Callers use the typed getter methods; they never need to import dig directly.
type Container struct {
	cfg      *config.Config
	reasoner schema.Reasoner
	registry *tools.Registry
	cronSvc  *cron.Service
}

func (c *Container) Config() *config.Config     { return c.cfg }
func (c *Container) Reasoner() schema.Reasoner  { return c.reasoner }
func (c *Container) Registry() *tools.Registry  { return c.registry }
func (c *Container) CronService() *cron.Service { return c.cronSvc }

// New builds and wires all core services from cfg.
func New(cfg *config.Config) (*Container, error) {
	d := dig.New()

	if err := d.Provide(func() *config.Config { return cfg }); err != nil {
		return nil, err
	}
	if err := d.Provide(newReasoner); err != nil {
		return nil, err
	}
	if err := d.Provide(newToolRegistry); err != nil {
		return nil, err
	}
	if err := d.Provide(newCronService); err != nil {
		return nil, err
	}

	var result *Container
	err := d.Invoke(func(
		r schema.Reasoner,
		registry *tools.Registry,
		cronSvc *cron.Service,
	) {
		result = &Container{
			cfg:      cfg,
			reasoner: r,
			registry: registry,
			cronSvc:  cronSvc,
		}
	})
	if err != nil {
		return nil, err
	}

	// Cron jobs execute goals through a fresh runner per job.
	result.cronSvc.SetOnJob(func(ctx context.Context, job cron.Job) (string, error) {
		runner := result.NewRunner(job.Payload.MaxIterations)
		res := runner.Run(ctx, job.Payload.Goal)
		if !res.Completed() {
			return res.FinalContent, fmt.Errorf("run %s (%s)", res.Status, res.StopReason)
		}
		return res.FinalContent, nil
	})

	return result, nil
}

// NewRunner builds a runner from the configured defaults. maxIterations <= 0
// keeps the configured cap.
func (c *Container) NewRunner(maxIterations int) *loop.Runner {
	if maxIterations <= 0 {
		maxIterations = c.cfg.Run.MaxIterations
	}
	return loop.NewRunner(c.reasoner, c.registry, loop.Options{
		MaxIterations: maxIterations,
		TimeBudget:    c.cfg.Run.TimeBudget(),
		ParallelTools: c.cfg.Run.ParallelTools,
		Retry:         retryPolicy(c.cfg.Reasoner.Retry),
	})
}

// NewReflector wraps a fresh runner with the configured reflection policy.
func (c *Container) NewReflector(maxIterations int) *reflection.Reflector {
	return reflection.NewReflector(c.NewRunner(maxIterations), c.reasoner, reflection.Policy{
		Enabled: true,
		Every:   c.cfg.Reflection.Every,
		Window:  c.cfg.Reflection.Window,
	})
}

// NewPlanner builds a planner over the configured reasoner.
func (c *Container) NewPlanner() *plan.Planner {
	return plan.NewPlanner(c.reasoner)
}

// NewPlanExecutor builds the plan executor with the configured concurrency.
func (c *Container) NewPlanExecutor(maxIterations int) *plan.Executor {
	return plan.NewExecutor(func() *loop.Runner {
		return c.NewRunner(maxIterations)
	}, c.cfg.Plan.MaxConcurrent)
}

func newReasoner(cfg *config.Config) (schema.Reasoner, error) {
	switch cfg.Reasoner.Provider {
	case "", "openai":
		if cfg.Reasoner.APIKey == "" {
			return nil, fmt.Errorf("no API key configured for reasoner %q, edit %s",
				cfg.Reasoner.Model, config.ConfigPath())
		}
		return reasoner.NewClient(reasoner.ClientConfig{
			APIKey:      cfg.Reasoner.APIKey,
			APIBase:     cfg.Reasoner.APIBase,
			Model:       textutils.StringOrDefault(cfg.Reasoner.Model, "gpt-4o-mini"),
			MaxTokens:   cfg.Reasoner.MaxTokens,
			Temperature: cfg.Reasoner.Temperature,
		}), nil
	case "scripted":
		// Offline mode: a reasoner that immediately declines, useful for
		// smoke-testing the wiring without credentials.
		return reasoner.NewScripted(
			reasoner.Say("No reasoner backend is configured; set reasoner.provider to \"openai\"."),
		), nil
	default:
		return nil, fmt.Errorf("unknown reasoner provider %q", cfg.Reasoner.Provider)
	}
}

func newToolRegistry(cfg *config.Config) (*tools.Registry, error) {
	workspace := cfg.Tools.Workspace
	if workspace == "" {
		workspace = config.WorkspaceDir()
	}
	restrict := cfg.Tools.RestrictToWorkspace

	return tools.NewRegistryBuilder().
		WithTool(tools.NewReadFileTool(workspace, restrict)).
		WithTool(tools.NewWriteFileTool(workspace, restrict)).
		WithTool(tools.NewListDirTool(workspace, restrict)).
		WithTool(tools.NewWebFetchTool(cfg.Tools.WebFetch.MaxChars)).
		Build()
}

func newCronService(cfg *config.Config) *cron.Service {
	return cron.NewService(filepath.Join(config.DataDir(), "cron", "jobs.json"))
}

func retryPolicy(rc config.RetryConfig) loop.RetryPolicy {
	policy := loop.DefaultRetryPolicy()
	if rc.MaxRetries > 0 {
		policy.MaxRetries = rc.MaxRetries
	}
	if rc.BaseDelayMs > 0 {
		policy.BaseDelay = time.Duration(rc.BaseDelayMs) * time.Millisecond
	}
	if rc.MaxDelayMs > 0 {
		policy.MaxDelay = time.Duration(rc.MaxDelayMs) * time.Millisecond
	}
	return policy
}
