package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/nvandessel/vampireman/internal/config"
)

var (
	version = "0.1.0-dev"
	commit  = "none"
	date    = "unknown"
)

func main() {
	ctx, cancel := signalContext(context.Background())
	defer cancel()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "vampireman",
		Short: "Parameter-variation dataset generator for groundwater heat pump simulations",
		Long: `vampireman generates datasets of groundwater simulation inputs.

It varies hydrogeological parameters and heat pump placements across
datapoints, renders one simulator input directory per datapoint and can
run the simulator over the result.`,
		SilenceUsage: true,
	}

	// Global flags
	rootCmd.PersistentFlags().Bool("json", false, "Output as JSON")
	rootCmd.PersistentFlags().String("config", "", "Run configuration file (.yaml, .yml or .hcl)")
	rootCmd.PersistentFlags().String("log-level", "", "Log level: info, debug or trace (overrides the configuration)")

	rootCmd.AddCommand(
		newVersionCmd(),
		newRunCmd(),
		newValidateCmd(),
		newListCmd(),
		newShowCmd(),
		newVerifyCmd(),
	)
	return rootCmd
}

// loadConfig loads the --config file, applies --log-level and validates.
func loadConfig(cmd *cobra.Command) (*config.Config, string, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, path, err
	}
	if level, _ := cmd.Flags().GetString("log-level"); level != "" {
		cfg.General.LogLevel = level
	}
	if err := cfg.Validate(); err != nil {
		return nil, path, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, path, nil
}

// signalContext returns a context cancelled on the first interrupt.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancel(parent)
	ch := make(chan os.Signal, 1)
	notifySignals(ch)
	go func() {
		defer signal.Stop(ch)
		select {
		case sig := <-ch:
			fmt.Fprintf(os.Stderr, "received %s, stopping\n", sig)
			cancel()
		case <-ctx.Done():
		}
	}()
	return ctx, cancel
}
