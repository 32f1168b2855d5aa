package display

import (
	"fmt"
	"strings"

	"people-search/internal/probe"
	"people-search/internal/session"
)

const (
	progressBarWidth = 20

	ConnectionWarning = "Connection issues detected. Try 'test' or check your network settings."
)

func ConnectionStatus(s probe.Status) string {
	switch s {
	case probe.StatusConnected:
		return "Connected"
	case probe.StatusError:
		return "Connection Error"
	case probe.StatusTesting:
		return "Testing..."
	default:
		return "Not tested (run 'test')"
	}
}

func ProbeResult(r probe.Result) string {
	if r.Status == probe.StatusConnected {
		return "[ok] " + r.Message
	}
	return "[error] " + r.Message
}

// ProgressBar renders percent as a fixed width bar, e.g. [######--------------] 30%.
func ProgressBar(percent int) string {
	percent = max(0, min(100, percent))
	filled := percent * progressBarWidth / 100
	return fmt.Sprintf("[%s%s] %d%%",
		strings.Repeat("#", filled), strings.Repeat("-", progressBarWidth-filled), percent)
}

// Prompt is the input prompt. While a search runs it carries the progress.
func Prompt(st session.State) string {
	if st.Phase == session.PhaseInFlight {
		return fmt.Sprintf("searching %s (attempt %d/%d) > ",
			ProgressBar(st.ProgressPercent), max(st.AttemptsMade, 1), st.MaxAttempts)
	}
	return "> "
}

func State(st session.State, conn probe.Status, loaded string) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "Connection: %s\n", ConnectionStatus(conn))
	if loaded == "" {
		sb.WriteString("File:       none (run 'load <file>' or 'sample <file>')\n")
	} else {
		fmt.Fprintf(&sb, "File:       %s\n", loaded)
	}

	if st.Phase == session.PhaseIdle {
		sb.WriteString("Search:     idle")
		return sb.String()
	}
	fmt.Fprintf(&sb, "Search:     %s (ID: %s, file: %s)\n", st.Phase, st.ID, st.FileName)
	fmt.Fprintf(&sb, "Attempts:   %d/%d\n", st.AttemptsMade, st.MaxAttempts)
	fmt.Fprintf(&sb, "Progress:   %s", ProgressBar(st.ProgressPercent))
	if st.Error != "" {
		fmt.Fprintf(&sb, "\nError:      %s", st.Error)
	}
	if conn == probe.StatusError {
		sb.WriteString("\n" + ConnectionWarning)
	}
	return sb.String()
}

// Failure renders a failed submission. Network and timeout failures come
// with troubleshooting tips.
func Failure(res session.Result) string {
	if res.Kind == session.FailureCancelled {
		return fmt.Sprintf("Search %s: %s", res.SubmissionID, res.Error)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Failed to process file: %s", res.Error)
	if res.Kind == session.FailureNetwork || res.Kind == session.FailureTimeout {
		sb.WriteString("\nTroubleshooting tips:\n")
		sb.WriteString("  - Check your internet connection\n")
		sb.WriteString("  - Check proxy or firewall settings\n")
		sb.WriteString("  - Run 'test' to verify backend status")
	}
	return sb.String()
}
