// Package report renders clinical alerts for people and for downstream
// systems: a console layout for physicians and a JSON export document.
package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/uacr-monitor/internal/domain"
	"github.com/uacr-monitor/internal/service"
)

const (
	ruleWidth   = 80
	stampLayout = "2006-01-02T15:04:05Z07:00"
)

var severityIcons = map[domain.Severity]string{
	domain.CRITICAL: "🔴",
	domain.HIGH:     "🟠",
	domain.MODERATE: "🟡",
	domain.LOW:      "🟢",
}

// SeverityIcon returns the console marker for a severity.
func SeverityIcon(s domain.Severity) string {
	if icon, ok := severityIcons[s]; ok {
		return icon
	}
	return "⚪"
}

// textWriter remembers the first write error so rendering code can stay linear.
type textWriter struct {
	w   io.Writer
	err error
}

func (tw *textWriter) printf(format string, args ...any) {
	if tw.err != nil {
		return
	}
	_, tw.err = fmt.Fprintf(tw.w, format, args...)
}

func (tw *textWriter) line(format string, args ...any) {
	tw.printf(format+"\n", args...)
}

func (tw *textWriter) rule(char string) {
	tw.line("%s", strings.Repeat(char, ruleWidth))
}

// WriteAlert renders one alert in the console layout.
func WriteAlert(w io.Writer, alert *domain.ClinicalAlert) error {
	tw := &textWriter{w: w}
	writeAlert(tw, alert)
	return tw.err
}

func writeAlert(tw *textWriter, alert *domain.ClinicalAlert) {
	tw.line("")
	tw.line("%s %s ALERT: %s", SeverityIcon(alert.Severity), alert.Severity, alert.ID)
	tw.rule("─")
	tw.line("Patient: %s (ID: %s)", alert.PatientName, alert.PatientID)
	tw.line("Timestamp: %s", alert.CreatedAt.Format(stampLayout))
	tw.line("")
	tw.line("%s", alert.Message)
	tw.line("")

	tr := alert.Trend
	tw.line("📊 uACR ANALYSIS:")
	tw.line("   Previous: %.0f mg/g (%s)", tr.PreviousValue, tr.PreviousDate)
	tw.line("   Current:  %.0f mg/g (%s)", tr.CurrentValue, tr.CurrentDate)
	tw.line("   Change:   %+.1f%% over %d days", tr.PercentChange, tr.DaysBetween)
	tw.line("   Category: %s → %s", tr.PreviousCategory, tr.CurrentCategory)
	tw.line("   Level:    %s", tr.Level.Description())

	tw.line("")
	if adh := alert.Adherence; adh != nil && adh.OnTreatment {
		tw.line("💊 ADHERENCE ANALYSIS:")
		tw.line("   Medication: %s", adh.Medication)
		tw.line("   MPR: %.1f%%", adh.MPR)
		tw.line("   PDC: %.1f%%", adh.PDC)
		tw.line("   Category: %s", adh.Category)
		tw.line("   Last 30 days: %.1f%%", adh.Last30Days)
		tw.line("   Last 90 days: %.1f%%", adh.Last90Days)
		tw.line("   Refill gap: %d days", adh.RefillGapDays)
		if adh.IsAdherent {
			tw.line("   Status: ✅ ADHERENT")
		} else {
			tw.line("   Status: ❌ NON-ADHERENT")
		}
		if len(adh.Barriers) > 0 {
			tw.line("   Barriers: %s", strings.Join(adh.Barriers, ", "))
		}
		if len(adh.Interventions) > 0 {
			tw.line("   Interventions: %s", strings.Join(adh.Interventions, ", "))
		}
	} else {
		tw.line("💊 TREATMENT STATUS: Not currently on CKD-specific medication")
		if alert.Recommendation != nil {
			tw.line("   Recommendation: %s", *alert.Recommendation)
		}
	}

	tw.line("")
	tw.line("🎯 RECOMMENDED ACTIONS:")
	for i, action := range alert.Actions {
		tw.line("   %d. %s", i+1, action.Text)
	}

	tw.line("")
	tw.line("📋 CLINICAL RATIONALE:")
	tw.line("   %s", alert.RationaleText())
	tw.rule("─")
}

// WriteBatch renders every alert of a run followed by the run summary.
func WriteBatch(w io.Writer, result *service.BatchResult) error {
	tw := &textWriter{w: w}

	tw.line("")
	tw.rule("=")
	tw.line("uACR MONITORING & ADHERENCE ANALYSIS")
	tw.rule("=")
	tw.line("Run %s: %d patients, adherence measured to %s", result.RunID, result.Stats.TotalPatients,
		result.EvaluationDate)

	for _, alert := range result.Alerts {
		writeAlert(tw, alert)
	}

	writeSummary(tw, result)
	return tw.err
}

// WriteSummary renders only the run summary.
func WriteSummary(w io.Writer, result *service.BatchResult) error {
	tw := &textWriter{w: w}
	writeSummary(tw, result)
	return tw.err
}

func writeSummary(tw *textWriter, result *service.BatchResult) {
	stats := result.Stats

	tw.line("")
	tw.rule("=")
	tw.line("SUMMARY: %d alerts generated", stats.AlertsGenerated)
	tw.rule("=")
	tw.line("Patients: %d total, %d evaluated, %d skipped, %d failed",
		stats.TotalPatients, stats.Evaluated, stats.Skipped, stats.Failed)

	if stats.AlertsGenerated > 0 {
		tw.line("")
		tw.line("Alert breakdown:")
		for _, sev := range domain.SeverityOrder {
			if n := stats.BySeverity[sev]; n > 0 {
				tw.line("  %s %s: %d", SeverityIcon(sev), sev, n)
			}
		}
		tw.line("")
		tw.line("Treatment status:")
		tw.line("  On treatment: %d", stats.OnTreatment)
		tw.line("  Not on treatment: %d", stats.NotOnTreatment)
		tw.line("  Non-adherent: %d (%.0f%% of treated)", stats.NonAdherent, stats.NonAdherentFraction*100)
	}

	if len(result.Skipped) > 0 {
		tw.line("")
		tw.line("Skipped:")
		for _, s := range result.Skipped {
			tw.line("  %s: %s", s.PatientID, s.Reason)
		}
	}
	if len(result.Failures) > 0 {
		tw.line("")
		tw.line("Failed:")
		for _, f := range result.Failures {
			tw.line("  %s", f.Error())
		}
	}
	tw.line("")
}
