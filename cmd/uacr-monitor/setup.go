package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uacr-monitor/internal/setup"
)

func setupCmd() *cobra.Command {
	var opts setup.Options

	cmd := &cobra.Command{
		Use:   "setup",
		Short: "Register mcp-server-lite with a desktop MCP client",
		RunE: func(cmd *cobra.Command, args []string) error {
			path, err := setup.Register(opts)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Registered %q in %s\n", setup.ServerName, path)
			return nil
		},
	}
	cmd.Flags().StringVar(&opts.ConfigPath, "client-config", "", "Client config file (default: platform desktop config)")
	cmd.Flags().StringVar(&opts.BinaryPath, "binary", "", "Path to mcp-server-lite (default: search PATH)")
	cmd.Flags().StringVar(&opts.DataDir, "data-dir", "", "Data directory passed as UACR_DATA_DIR")
	cmd.Flags().StringVar(&opts.EvaluationDate, "as-of", "", "Pinned evaluation date passed as UACR_EVALUATION_DATE")

	var statusConfig string
	statusCmd := &cobra.Command{
		Use:   "status",
		Short: "Show the current registration",
		RunE: func(cmd *cobra.Command, args []string) error {
			status, err := setup.GetStatus(statusConfig)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Config:     %s\n", status.ConfigPath)
			fmt.Fprintf(out, "Registered: %t\n", status.Registered)
			if status.Registered {
				fmt.Fprintf(out, "Command:    %s\n", status.Server.Command)
			}
			for _, issue := range status.Issues {
				fmt.Fprintf(out, "  - %s\n", issue)
			}
			return nil
		},
	}
	statusCmd.Flags().StringVar(&statusConfig, "client-config", "", "Client config file (default: platform desktop config)")
	cmd.AddCommand(statusCmd)

	return cmd
}
