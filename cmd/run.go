package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/agentfactory/loopkit/internal/config"
	"github.com/agentfactory/loopkit/internal/container"
	"github.com/agentfactory/loopkit/internal/loop"
	"github.com/agentfactory/loopkit/internal/schema"
	"github.com/agentfactory/loopkit/internal/shared/textutils"
)

var (
	runMaxIterations int
	runTimeBudget    time.Duration
	runParallel      bool
	runUsePlan       bool
	runUseReflect    bool
	runQuiet         bool
)

var runCmd = &cobra.Command{
	Use:   "run <goal>",
	Short: "Run a goal through the loop",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runRun,
}

func init() {
	runCmd.Flags().IntVarP(&runMaxIterations, "max-iterations", "n", 0, "Iteration cap (0 = configured default)")
	runCmd.Flags().DurationVar(&runTimeBudget, "time-budget", 0, "Wall-clock budget (0 = configured default)")
	runCmd.Flags().BoolVar(&runParallel, "parallel", false, "Dispatch tool batches in parallel")
	runCmd.Flags().BoolVar(&runUsePlan, "plan", false, "Decompose the goal into subtasks first")
	runCmd.Flags().BoolVar(&runUseReflect, "reflect", false, "Enable reflection checkpoints")
	runCmd.Flags().BoolVarP(&runQuiet, "quiet", "q", false, "Only print the final answer")
}

func runRun(cmd *cobra.Command, args []string) error {
	goal := strings.Join(args, " ")

	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	applyRunFlags(cmd.Flags(), cfg)

	c, err := container.New(cfg)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if runUsePlan {
		return runWithPlan(ctx, c, goal)
	}
	if runUseReflect {
		res := c.NewReflector(runMaxIterations).Run(ctx, goal)
		printResult(res)
		return nil
	}

	runner := c.NewRunner(runMaxIterations)
	done := attachProgress(runner)
	res := runner.Run(ctx, goal)
	done()
	printResult(res)
	return nil
}

// applyRunFlags overlays explicitly passed flags onto the loaded config.
// Flags left at their defaults never clobber config file values.
func applyRunFlags(flags *pflag.FlagSet, cfg *config.Config) {
	if runTimeBudget > 0 {
		cfg.Run.TimeBudgetSeconds = int(runTimeBudget.Seconds())
	}
	if flags.Changed("parallel") {
		cfg.Run.ParallelTools = runParallel
	}
}

// attachProgress streams loop events to stderr. The returned func flushes and
// detaches.
func attachProgress(runner *loop.Runner) func() {
	if runQuiet {
		return func() {}
	}
	em := loop.NewEmitter(256)
	runner.SetEmitter(em)

	finished := make(chan struct{})
	go func() {
		defer close(finished)
		for ev := range em.Events() {
			switch ev.Type {
			case loop.EventIteration:
				fmt.Fprintf(os.Stderr, "  ↳ iteration %v\n", ev.Data["iteration"])
			case loop.EventToolCallStart:
				fmt.Fprintf(os.Stderr, "  ↳ %v...\n", ev.Data["tool"])
			case loop.EventAssistantTurn:
				if content, _ := ev.Data["content"].(string); content != "" {
					fmt.Fprintf(os.Stderr, "  ↳ %s\n", textutils.Truncate(content, 120))
				}
				if hint, _ := ev.Data["tool_hint"].(string); hint != "" {
					fmt.Fprintf(os.Stderr, "  ↳ %s\n", hint)
				}
			}
		}
	}()
	return func() {
		em.Close()
		<-finished
	}
}

func printResult(res *schema.RunResult) {
	if !runQuiet {
		fmt.Fprintf(os.Stderr, "\n[%s", res.Status)
		if res.StopReason != "" {
			fmt.Fprintf(os.Stderr, ": %s", res.StopReason)
		}
		fmt.Fprintf(os.Stderr, "] %d iterations in %s\n\n", res.Iterations, res.Duration.Round(time.Millisecond))
	}
	if res.FinalContent != "" {
		fmt.Println(res.FinalContent)
	}
	if res.Err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", res.Err)
	}
}

func runWithPlan(ctx context.Context, c *container.Container, goal string) error {
	p, err := c.NewPlanner().Plan(ctx, goal)
	if err != nil {
		return fmt.Errorf("plan goal: %w", err)
	}

	if !runQuiet {
		fmt.Fprintf(os.Stderr, "Plan (%d subtasks):\n", len(p.Subtasks))
		for _, st := range p.Subtasks {
			deps := ""
			if len(st.Dependencies) > 0 {
				deps = " (after " + strings.Join(st.Dependencies, ", ") + ")"
			}
			fmt.Fprintf(os.Stderr, "  • %s: %s%s\n", st.ID, st.Description, deps)
		}
		fmt.Fprintln(os.Stderr)
	}

	res := c.NewPlanExecutor(runMaxIterations).Execute(ctx, p)

	if !runQuiet {
		for _, st := range res.Subtasks {
			mark := "✓"
			if st.Status != schema.SubtaskCompleted {
				mark = "✗"
			}
			fmt.Fprintf(os.Stderr, "%s %s: %s\n", mark, st.ID, textutils.Truncate(st.Result, 100))
		}
		fmt.Fprintln(os.Stderr)
	}
	if res.Summary != "" {
		fmt.Println(res.Summary)
	}
	if res.Status != schema.StatusCompleted {
		return fmt.Errorf("plan finished with status %s", res.Status)
	}
	return nil
}
