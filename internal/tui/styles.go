package tui

import (
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// Status icons.
const (
	iconRunning = "[●]"
	iconDone    = "[✓]"
	iconFailed  = "[✗]"
	iconPending = "[○]"
)

var (
	pendingStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("244")) // Gray
	runningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("34"))  // Green
	doneStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("28"))  // Dark green
	failedStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("196")) // Red
	hintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("240"))
	titleStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("15")).Padding(0, 1)
)

// taskIcon returns the styled icon for a task status.
func taskIcon(status models.TaskStatus) string {
	switch status {
	case models.TaskStatusRunning:
		return runningStyle.Render(iconRunning)
	case models.TaskStatusCompleted:
		return doneStyle.Render(iconDone)
	case models.TaskStatusFailed:
		return failedStyle.Render(iconFailed)
	default:
		return pendingStyle.Render(iconPending)
	}
}

// runStatusStyle colours a run status label.
func runStatusStyle(status models.RunStatus) lipgloss.Style {
	switch status {
	case models.RunStatusCompleted:
		return doneStyle.Bold(true)
	case models.RunStatusFailed:
		return failedStyle.Bold(true)
	case models.RunStatusRunning, models.RunStatusPlanning:
		return runningStyle.Bold(true)
	default:
		return pendingStyle
	}
}

func truncate(s string, max int) string {
	if max < 4 {
		max = 4
	}
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
