package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/uacr-monitor/internal/app"
	"github.com/uacr-monitor/internal/database"
)

func migrateCmd(loadConfig configLoader) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the PostgreSQL schema",
	}

	run := func(cmd *cobra.Command, fn func(context.Context, *database.MigrationRunner) error) error {
		mgr, err := loadConfig()
		if err != nil {
			return err
		}
		return app.Migrate(cmd.Context(), mgr, app.NewLogger(mgr), fn)
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "up",
		Short: "Apply pending migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, r *database.MigrationRunner) error {
				return r.Up(ctx)
			})
		},
	})

	var steps int
	downCmd := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(ctx context.Context, r *database.MigrationRunner) error {
				return r.Down(ctx, steps)
			})
		},
	}
	downCmd.Flags().IntVar(&steps, "steps", 1, "Number of migrations to roll back")
	cmd.AddCommand(downCmd)

	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Show the current schema version",
		RunE: func(cmd *cobra.Command, args []string) error {
			return run(cmd, func(_ context.Context, r *database.MigrationRunner) error {
				version, dirty, err := r.Version()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
				return nil
			})
		},
	})

	return cmd
}
