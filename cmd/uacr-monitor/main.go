// Command uacr-monitor evaluates patient uACR trends, SGLT2-inhibitor
// adherence and treatment eligibility, and serves the results over HTTP or MCP.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/uacr-monitor/internal/config"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:           "uacr-monitor",
		Short:         "uACR trend, adherence and eligibility alert engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Path to config file (default: ./config.yaml if present)")

	loadConfig := func() (*config.Manager, error) {
		return config.NewManagerFromFile(configPath)
	}

	rootCmd.AddCommand(evaluateCmd(loadConfig))
	rootCmd.AddCommand(serveCmd(loadConfig))
	rootCmd.AddCommand(mcpCmd(loadConfig))
	rootCmd.AddCommand(migrateCmd(loadConfig))
	rootCmd.AddCommand(setupCmd())

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

type configLoader func() (*config.Manager, error)
