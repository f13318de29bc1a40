package tui

import (
	"fmt"
)

// Footer renders the status bar and keyboard hints.
type Footer struct {
	message string
	failed  bool
	done    bool
	counts  TaskCounts
}

// NewFooter creates a new Footer instance.
func NewFooter() *Footer {
	return &Footer{}
}

// SetCounts updates the task counts for display.
func (f *Footer) SetCounts(c TaskCounts) {
	f.counts = c
}

// SetMessage sets the status message. failed renders it in red.
func (f *Footer) SetMessage(message string, failed bool) {
	f.message = message
	f.failed = failed
}

// SetDone marks the run as finished.
func (f *Footer) SetDone(done bool) {
	f.done = done
}

// View renders the footer.
func (f *Footer) View() string {
	left := fmt.Sprintf("✓%d", f.counts.Done)
	if f.counts.Failed > 0 {
		left += failedStyle.Bold(true).Render(fmt.Sprintf(" ✗%d", f.counts.Failed))
	}
	if f.counts.Running > 0 {
		left += fmt.Sprintf(" ●%d", f.counts.Running)
	}
	if f.counts.Pending > 0 {
		left += hintStyle.Render(fmt.Sprintf(" ○%d", f.counts.Pending))
	}

	if f.message != "" {
		if f.failed {
			left += "  " + failedStyle.Render(f.message)
		} else {
			left += "  " + hintStyle.Render(f.message)
		}
	}

	hints := "↑/↓ scroll │ enter collapse │ q quit"
	if f.done {
		hints = "run finished │ q quit"
	}
	return left + hintStyle.Render(" │ "+hints)
}
