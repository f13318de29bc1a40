package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hivemind/internal/orchestrator"
)

// LogLevel represents the severity of a log line.
type LogLevel string

const (
	LogLevelInfo  LogLevel = "INFO"
	LogLevelWarn  LogLevel = "WARN"
	LogLevelError LogLevel = "ERROR"
)

// PanelLogEntry represents a single line in the activity log.
type PanelLogEntry struct {
	Timestamp time.Time
	Level     LogLevel
	Role      string // Empty for run and phase lines
	Message   string
}

// LogsPanel displays the most recent activity, newest at the bottom.
type LogsPanel struct {
	logs    []PanelLogEntry
	width   int
	height  int
	maxLogs int

	infoStyle  lipgloss.Style
	warnStyle  lipgloss.Style
	errorStyle lipgloss.Style
	timeStyle  lipgloss.Style
	roleStyle  lipgloss.Style
}

// NewLogsPanel creates a new LogsPanel instance.
func NewLogsPanel() *LogsPanel {
	return &LogsPanel{
		maxLogs: 500,

		infoStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("34")),
		warnStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("214")),
		errorStyle: lipgloss.NewStyle().Foreground(lipgloss.Color("196")),
		timeStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("240")),
		roleStyle:  lipgloss.NewStyle().Foreground(lipgloss.Color("63")),
	}
}

// SetSize updates the panel dimensions.
func (p *LogsPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

// AddLog appends an entry, dropping the oldest beyond the cap.
func (p *LogsPanel) AddLog(entry PanelLogEntry) {
	p.logs = append(p.logs, entry)
	if len(p.logs) > p.maxLogs {
		p.logs = p.logs[len(p.logs)-p.maxLogs:]
	}
}

// AddEvent converts an orchestrator event to a log line.
func (p *LogsPanel) AddEvent(ev orchestrator.Event) {
	p.AddLog(EventLogEntry(ev))
}

// Len returns the number of stored entries.
func (p *LogsPanel) Len() int {
	return len(p.logs)
}

// EventLogEntry renders an event as a log entry.
func EventLogEntry(ev orchestrator.Event) PanelLogEntry {
	entry := PanelLogEntry{Timestamp: ev.Timestamp, Level: LogLevelInfo, Role: ev.Role}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now()
	}

	switch ev.Type {
	case orchestrator.EventRunStarted:
		entry.Message = "run started"
	case orchestrator.EventPhaseStarted:
		entry.Message = fmt.Sprintf("phase %s started", ev.Phase)
	case orchestrator.EventPhaseCompleted:
		entry.Message = fmt.Sprintf("phase %s finished", ev.Phase)
	case orchestrator.EventTaskStarted:
		entry.Message = "started"
	case orchestrator.EventTaskCompleted:
		entry.Message = fmt.Sprintf("completed (confidence %.2f, %s)", ev.Confidence, ev.Duration.Round(time.Millisecond))
	case orchestrator.EventTaskFailed:
		entry.Level = LogLevelWarn
		entry.Message = "failed: " + ev.Error
	case orchestrator.EventRunCompleted:
		entry.Message = "run completed"
		if ev.Message != "" {
			entry.Message += ": " + ev.Message
		}
	case orchestrator.EventRunFailed:
		entry.Level = LogLevelError
		entry.Message = "run failed: " + ev.Error
	default:
		entry.Message = string(ev.Type)
	}
	return entry
}

// View renders the last lines that fit.
func (p *LogsPanel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Activity"))
	b.WriteString("\n")

	rows := p.height - 3
	if rows < 1 {
		rows = 1
	}
	start := 0
	if len(p.logs) > rows {
		start = len(p.logs) - rows
	}

	if len(p.logs) == 0 {
		b.WriteString(hintStyle.Render("  Waiting for events"))
	}
	for i, entry := range p.logs[start:] {
		if i > 0 {
			b.WriteString("\n")
		}
		b.WriteString(p.renderLine(entry))
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("240"))
	if p.width > 2 {
		style = style.Width(p.width - 2)
	}
	if p.height > 2 {
		style = style.Height(p.height - 2)
	}
	return style.Render(b.String())
}

func (p *LogsPanel) renderLine(entry PanelLogEntry) string {
	levelStyle := p.infoStyle
	switch entry.Level {
	case LogLevelWarn:
		levelStyle = p.warnStyle
	case LogLevelError:
		levelStyle = p.errorStyle
	}

	line := p.timeStyle.Render(entry.Timestamp.Format("15:04:05")) + " "
	if entry.Role != "" {
		line += p.roleStyle.Render(entry.Role) + " "
	}
	return line + levelStyle.Render(truncate(entry.Message, p.width-24-len(entry.Role)))
}
