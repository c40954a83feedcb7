package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uacr-monitor/internal/api"
	"github.com/uacr-monitor/internal/app"
	"github.com/uacr-monitor/internal/logging"
	"github.com/uacr-monitor/internal/mcp"
)

func serveCmd(loadConfig configLoader) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Start the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			if err := mgr.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx := cmd.Context()
			logger := app.NewLogger(mgr)

			a, err := app.New(ctx, mgr, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			deps := api.Dependencies{
				Evaluator: a.Evaluator,
				Alerts:    a.Alerts,
				Logger:    logger,
			}
			if a.Runs != nil {
				deps.Runs = a.Runs
			}

			if err := api.NewServer(mgr, deps).Start(ctx); err != nil {
				return err
			}
			logger.Info("Server stopped")
			return nil
		},
	}
}

func mcpCmd(loadConfig configLoader) *cobra.Command {
	var exportDir string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve the evaluation tools over MCP stdio",
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			// stdout carries the protocol.
			mgr.GetConfig().Logging.Output = logging.OutputStderr
			if err := mgr.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx := cmd.Context()
			logger := app.NewLogger(mgr)

			a, err := app.New(ctx, mgr, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var opts []mcp.ServerOption
			if exportDir != "" {
				opts = append(opts, mcp.WithExportDir(exportDir))
			}
			if a.Runs != nil {
				opts = append(opts, mcp.WithRunRecorder(a.Runs))
			}
			return mcp.NewServer(a.Evaluator, a.Alerts, logger, opts...).Start(ctx)
		},
	}
	cmd.Flags().StringVar(&exportDir, "export-dir", "", "Enable the export_alerts tool, writing to this directory")
	return cmd
}
