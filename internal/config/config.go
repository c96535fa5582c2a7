// Package config defines loopkit's YAML configuration and its loader.
package config

import "time"

// Config is the full loopkit configuration tree.
type Config struct {
	Run        RunConfig        `yaml:"run"`
	Reasoner   ReasonerConfig   `yaml:"reasoner"`
	Tools      ToolsConfig      `yaml:"tools"`
	Reflection ReflectionConfig `yaml:"reflection"`
	Plan       PlanConfig       `yaml:"plan"`
	Gateway    GatewayConfig    `yaml:"gateway"`
}

// RunConfig tunes the run loop.
type RunConfig struct {
	MaxIterations     int  `yaml:"maxIterations"`
	TimeBudgetSeconds int  `yaml:"timeBudgetSeconds"`
	ParallelTools     bool `yaml:"parallelTools"`
}

// TimeBudget returns the configured wall-clock budget as a duration.
func (r RunConfig) TimeBudget() time.Duration {
	return time.Duration(r.TimeBudgetSeconds) * time.Second
}

// ReasonerConfig selects and tunes the reasoner backend.
type ReasonerConfig struct {
	Provider    string      `yaml:"provider"` // "openai" or "scripted"
	APIKey      string      `yaml:"apiKey"`
	APIBase     string      `yaml:"apiBase"`
	Model       string      `yaml:"model"`
	MaxTokens   int         `yaml:"maxTokens"`
	Temperature float64     `yaml:"temperature"`
	Retry       RetryConfig `yaml:"retry"`
}

// RetryConfig tunes reasoner call retries.
type RetryConfig struct {
	MaxRetries  int `yaml:"maxRetries"`
	BaseDelayMs int `yaml:"baseDelayMs"`
	MaxDelayMs  int `yaml:"maxDelayMs"`
}

// ToolsConfig configures the built-in tools.
type ToolsConfig struct {
	Workspace           string         `yaml:"workspace"`
	RestrictToWorkspace bool           `yaml:"restrictToWorkspace"`
	WebFetch            WebFetchConfig `yaml:"webFetch"`
}

// WebFetchConfig tunes the web_fetch tool.
type WebFetchConfig struct {
	MaxChars int `yaml:"maxChars"`
}

// ReflectionConfig tunes the reflection checkpoints.
type ReflectionConfig struct {
	Enabled bool `yaml:"enabled"`
	Every   int  `yaml:"every"`
	Window  int  `yaml:"window"`
}

// PlanConfig tunes the plan executor.
type PlanConfig struct {
	MaxConcurrent int `yaml:"maxConcurrent"`
}

// GatewayConfig tunes the websocket gateway.
type GatewayConfig struct {
	Host string `yaml:"host"`
	Port int    `yaml:"port"`
}

// DefaultConfig returns the configuration used when no file exists.
func DefaultConfig() Config {
	return Config{
		Run: RunConfig{
			MaxIterations:     20,
			TimeBudgetSeconds: 0,
			ParallelTools:     false,
		},
		Reasoner: ReasonerConfig{
			Provider:    "openai",
			Model:       "gpt-4o-mini",
			MaxTokens:   4096,
			Temperature: 0.2,
			Retry: RetryConfig{
				MaxRetries:  3,
				BaseDelayMs: 500,
				MaxDelayMs:  10000,
			},
		},
		Tools: ToolsConfig{
			Workspace:           "",
			RestrictToWorkspace: true,
			WebFetch:            WebFetchConfig{MaxChars: 50000},
		},
		Reflection: ReflectionConfig{
			Enabled: false,
			Every:   5,
			Window:  12,
		},
		Plan: PlanConfig{MaxConcurrent: 4},
		Gateway: GatewayConfig{
			Host: "127.0.0.1",
			Port: 7800,
		},
	}
}
