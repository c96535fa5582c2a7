package cmd

import (
	"testing"
	"time"

	"github.com/spf13/pflag"

	"github.com/agentfactory/loopkit/internal/config"
)

func runFlagSet(t *testing.T) *pflag.FlagSet {
	t.Helper()
	flags := pflag.NewFlagSet("run", pflag.ContinueOnError)
	flags.BoolVar(&runParallel, "parallel", false, "")
	return flags
}

func TestApplyRunFlags_ParallelDefaultKeepsConfig(t *testing.T) {
	runParallel = false
	runTimeBudget = 0

	tests := []struct {
		name       string
		configured bool
	}{
		{"config serial stays serial", false},
		{"config parallel stays parallel", true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := config.DefaultConfig()
			cfg.Run.ParallelTools = tt.configured

			applyRunFlags(runFlagSet(t), &cfg)

			if cfg.Run.ParallelTools != tt.configured {
				t.Errorf("unset flag clobbered config: parallelTools=%v, want %v",
					cfg.Run.ParallelTools, tt.configured)
			}
		})
	}
}

func TestApplyRunFlags_ParallelFlagOverridesConfig(t *testing.T) {
	runTimeBudget = 0
	cfg := config.DefaultConfig()
	cfg.Run.ParallelTools = false

	flags := runFlagSet(t)
	if err := flags.Parse([]string{"--parallel"}); err != nil {
		t.Fatalf("parse flags: %v", err)
	}

	applyRunFlags(flags, &cfg)
	if !cfg.Run.ParallelTools {
		t.Error("expected --parallel to override parallelTools=false")
	}
}

func TestApplyRunFlags_TimeBudget(t *testing.T) {
	runParallel = false
	runTimeBudget = 90 * time.Second
	defer func() { runTimeBudget = 0 }()

	cfg := config.DefaultConfig()
	applyRunFlags(runFlagSet(t), &cfg)

	if cfg.Run.TimeBudgetSeconds != 90 {
		t.Errorf("expected 90s budget, got %d", cfg.Run.TimeBudgetSeconds)
	}
}

func TestDefaultConfig_SerialDispatch(t *testing.T) {
	if config.DefaultConfig().Run.ParallelTools {
		t.Error("expected serial tool dispatch by default")
	}
}
