package display

import (
	"fmt"
	"strings"

	"people-search/internal/metrics"
)

func FormatSubmissionMetrics(mm *metrics.SubmissionMetrics) string {
	if mm == nil {
		return "No metrics available."
	}
	var sb strings.Builder
	sb.WriteString("Submission metrics:\n")
	sb.WriteString(fmt.Sprintf("- Total: %d ms  (success=%v, %d bytes, backoff %d ms)\n",
		mm.DurationMs, mm.Succeeded, mm.Bytes, mm.TotalBackoff().Milliseconds()))
	for _, a := range mm.Attempts {
		status := a.Outcome
		if a.TimedOut {
			status += ", timed out"
		}
		sb.WriteString(fmt.Sprintf("    • attempt %d %6d ms  [%s]\n", a.Attempt, a.DurationMs, status))
		if a.Err != "" {
			sb.WriteString(fmt.Sprintf("      %s\n", truncate(a.Err, maxDetailsLength)))
		}
	}
	return sb.String()
}
