package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/agentfactory/loopkit/internal/config"
	"github.com/agentfactory/loopkit/internal/container"
	"github.com/agentfactory/loopkit/internal/gateway"
	"github.com/agentfactory/loopkit/internal/loop"
)

var gatewayPort int

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the websocket gateway and cron scheduler",
	RunE:  runGateway,
}

func init() {
	gatewayCmd.Flags().IntVarP(&gatewayPort, "port", "p", 0, "Listen port (0 = configured default)")
}

func runGateway(_ *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ConfigPath())
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if gatewayPort > 0 {
		cfg.Gateway.Port = gatewayPort
	}

	c, err := container.New(cfg)
	if err != nil {
		return err
	}

	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	srv := gateway.NewServer(addr, func(maxIterations int) *loop.Runner {
		return c.NewRunner(maxIterations)
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error { return srv.Start(gctx) })
	g.Go(func() error { return c.CronService().Start(gctx) })

	fmt.Printf("Gateway running on ws://%s/ws. Press Ctrl+C to stop.\n", addr)

	if err := g.Wait(); err != nil && err != context.Canceled {
		fmt.Fprintf(os.Stderr, "gateway error: %v\n", err)
		return err
	}
	fmt.Println("\nShutdown complete.")
	return nil
}
