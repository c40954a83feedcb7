package main

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/uacr-monitor/internal/app"
	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/ingest"
	"github.com/uacr-monitor/internal/logging"
	"github.com/uacr-monitor/internal/report"
)

func evaluateCmd(loadConfig configLoader) *cobra.Command {
	var (
		asOf      string
		exportDir string
		noStore   bool
		quiet     bool
	)

	cmd := &cobra.Command{
		Use:   "evaluate PATIENTS_JSON",
		Short: "Evaluate a patient document and print the alert report",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			mgr, err := loadConfig()
			if err != nil {
				return err
			}
			cfg := mgr.GetConfig()
			if asOf != "" {
				cfg.Engine.EvaluationDate = asOf
			}
			// The report owns stdout.
			cfg.Logging.Output = logging.OutputStderr
			if err := mgr.Validate(); err != nil {
				return fmt.Errorf("configuration validation failed: %w", err)
			}

			ctx := cmd.Context()
			logger := app.NewLogger(mgr)

			decoded, err := ingest.LoadFile(args[0])
			if err != nil {
				return err
			}

			a, err := app.New(ctx, mgr, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			result, err := a.Monitor.ProcessBatch(ctx, decoded.Patients)
			if err != nil {
				return err
			}
			result.MergeFailures(decoded.Failures)

			if !noStore {
				if err := a.Alerts.SaveAll(ctx, result.Alerts); err != nil {
					logger.WithError(err).Error("Failed to store alerts")
				}
				if a.Runs != nil {
					if err := a.Runs.Record(ctx, result); err != nil {
						logger.WithError(err).Error("Failed to record batch run")
					}
				}
			}

			if !quiet {
				if err := report.WriteBatch(cmd.OutOrStdout(), result); err != nil {
					return err
				}
			}

			if exportDir != "" && len(result.Alerts) > 0 {
				path, err := writeExport(exportDir, result.Alerts, time.Now())
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.ErrOrStderr(), "Alerts exported to: %s\n", path)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "Evaluation date (YYYY-MM-DD); defaults to today")
	cmd.Flags().StringVar(&exportDir, "export-dir", ".", "Directory for the JSON alert export; empty disables it")
	cmd.Flags().BoolVar(&noStore, "no-store", false, "Do not persist alerts")
	cmd.Flags().BoolVar(&quiet, "quiet", false, "Suppress the console report")
	return cmd
}

func writeExport(dir string, alerts []*domain.ClinicalAlert, now time.Time) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create export directory: %w", err)
	}
	path := filepath.Join(dir, fmt.Sprintf("uacr_alerts_%s.json", now.Format("20060102_150405")))

	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create export file: %w", err)
	}
	if err := report.ExportAlerts(f, alerts, now); err != nil {
		f.Close()
		return "", err
	}
	return path, f.Close()
}
