package tui

import (
	"fmt"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// Header renders the run title bar.
type Header struct {
	width int
}

// NewHeader creates a new Header.
func NewHeader() *Header {
	return &Header{width: 80}
}

// SetWidth sets the header width.
func (h *Header) SetWidth(width int) {
	h.width = width
}

// View renders the header. spin is the current spinner frame, shown while
// the run is still active.
func (h *Header) View(run *models.Run, spin string, now time.Time) string {
	brand := lipgloss.NewStyle().
		Foreground(lipgloss.Color("#FFC857")).
		Bold(true).
		Render("hivemind")

	if run == nil {
		return lipgloss.NewStyle().Width(h.width).Render(brand + " " + spin + hintStyle.Render(" loading run"))
	}

	elapsed := run.Elapsed
	if !run.Status.Terminal() {
		elapsed = now.Sub(run.StartedAt)
		brand += " " + spin
	}

	status := runStatusStyle(run.Status).Render(string(run.Status))
	meta := hintStyle.Render(fmt.Sprintf("%s  %s", shortID(run.ID), elapsed.Round(time.Second)))
	task := lipgloss.NewStyle().
		Foreground(lipgloss.Color("252")).
		Italic(true).
		Render(truncate(run.TaskText, h.width-4))

	return lipgloss.NewStyle().
		Width(h.width).
		PaddingBottom(1).
		Render(lipgloss.JoinVertical(lipgloss.Left,
			fmt.Sprintf("%s  %s  %s", brand, status, meta),
			task,
		))
}

// Height returns the header height in lines.
func (h *Header) Height() int {
	return 3
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}
