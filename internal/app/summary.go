package app

import (
	"fmt"
	"time"

	"github.com/vk/pipegrid/internal/report"
)

// printSummary writes the human-readable run listing to the output writer,
// one line per stage in the report's completion order.
func (a *App) printSummary(rep *report.RunReport) {
	fmt.Fprintf(a.outW, "\nRun %s — %s\n", rep.RunID, rep.Overall)
	for _, res := range rep.Stages {
		switch res.Status {
		case report.StatusSucceeded:
			fmt.Fprintf(a.outW, "  ✅ %-20s %s\n", res.Stage, duration(res))
		case report.StatusFailed:
			fmt.Fprintf(a.outW, "  ❌ %-20s %s (%s)\n", res.Stage, duration(res), res.Reason)
		case report.StatusSkipped:
			fmt.Fprintf(a.outW, "  ⏭️  %-20s %s\n", res.Stage, res.Reason)
		}
	}
}

func duration(res report.StageResult) string {
	if res.StartedAt.IsZero() || res.FinishedAt.IsZero() {
		return "-"
	}
	return res.FinishedAt.Sub(res.StartedAt).Round(time.Millisecond).String()
}
