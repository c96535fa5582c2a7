package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/agentfactory/loopkit/internal/config"
	"github.com/agentfactory/loopkit/internal/container"
)

var toolsCmd = &cobra.Command{
	Use:   "tools",
	Short: "List available tools",
	RunE: func(_ *cobra.Command, _ []string) error {
		cfg, err := config.Load(config.ConfigPath())
		if err != nil {
			return fmt.Errorf("load config: %w", err)
		}
		// The registry builds without a reasoner; use scripted so missing
		// API keys never block listing tools.
		cfg.Reasoner.Provider = "scripted"

		c, err := container.New(cfg)
		if err != nil {
			return err
		}
		for _, def := range c.Registry().Definitions() {
			fmt.Printf("%-12s %s\n", def.Name, def.Description)
		}
		return nil
	},
}
