package cli

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/thruflo/sightline/internal/results"
)

var (
	titleStyle   = lipgloss.NewStyle().Bold(true)
	passStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#00aa00")).Bold(true)
	failStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#ff0000")).Bold(true)
	unknownStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#d7af00"))
	infoStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#5f87af"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#808080"))
	boxStyle     = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			Padding(0, 1)
)

func runStatusStyle(s results.RunStatus) lipgloss.Style {
	switch s {
	case results.RunPass:
		return passStyle
	case results.RunFail, results.RunError:
		return failStyle
	default:
		return unknownStyle
	}
}

func stepStatusStyle(s results.Status) lipgloss.Style {
	switch s {
	case results.StatusPass:
		return passStyle
	case results.StatusFail:
		return failStyle
	case results.StatusInfo:
		return infoStyle
	default:
		return unknownStyle
	}
}

// renderSummary formats a run for the terminal.
func renderSummary(run *results.TestRun) string {
	var b strings.Builder

	fmt.Fprintf(&b, "%s  %s\n", titleStyle.Render(run.Name), runStatusStyle(run.Status).Render(string(run.Status)))
	fmt.Fprintf(&b, "%s\n", dimStyle.Render(fmt.Sprintf("%.2fs  %s", run.DurationSeconds, run.StartTime.Format("2006-01-02 15:04:05"))))
	if run.URL != "" {
		fmt.Fprintf(&b, "%s\n", dimStyle.Render(run.URL))
	}
	b.WriteString("\n")

	width := len(string(results.StatusUnknown))
	for _, s := range run.Steps {
		status := fmt.Sprintf("%-*s", width, s.Status)
		fmt.Fprintf(&b, "%2d  %s  %s\n", s.Step, stepStatusStyle(s.Status).Render(status), s.Description)
	}

	counts := run.Counts()
	fmt.Fprintf(&b, "\n%d passed, %d failed, %d unknown",
		counts[results.StatusPass], counts[results.StatusFail], counts[results.StatusUnknown])

	return boxStyle.Render(b.String())
}
