package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/tailored-agentic-units/toolbench/kernel"
)

var (
	verbose    bool
	configFile string
	agentName  string
)

var rootCmd = &cobra.Command{
	Use:   "toolbench",
	Short: "Tool-calling LLM harness and benchmark runner",
	Long: `toolbench drives a language model through a bounded tool-calling loop
against SQL databases and a code sandbox, and benchmarks the answers it
produces across a set of query variations.

Quick Start:
  toolbench run --config agent.yaml --prompt "How many orders shipped?"
  toolbench bench --config agent.yaml --input queries.yaml --system tool_calling
  toolbench schema --config agent.yaml`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}
		handler := slog.NewTextHandler(cmd.ErrOrStderr(), &slog.HandlerOptions{Level: level})
		slog.SetDefault(slog.New(handler))
	},
}

// Execute runs the root command and exits non-zero on error.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVarP(&configFile, "config", "c", "", "Path to the YAML or JSON config file")
	rootCmd.PersistentFlags().StringVar(&agentName, "agent", "", "Named agent from the config's agents map (defaults to the primary agent)")
}

func loadConfig() (*kernel.Config, error) {
	if configFile == "" {
		cfg := kernel.DefaultConfig()
		return &cfg, nil
	}
	return kernel.LoadConfig(configFile)
}

// openKernel builds a kernel from the config flag. The returned close
// function releases it; run work on the returned kernel, which is switched
// to --agent when one is named.
func openKernel() (*kernel.Kernel, func() error, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, nil, err
	}

	k, err := kernel.New(cfg, kernel.WithLogger(slog.Default()))
	if err != nil {
		return nil, nil, err
	}

	if agentName == "" {
		return k, k.Close, nil
	}

	named, err := k.Using(agentName)
	if err != nil {
		k.Close()
		return nil, nil, err
	}
	return named, k.Close, nil
}
