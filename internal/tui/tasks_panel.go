package tui

import (
	"fmt"
	"sort"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hivemind/pkg/models"
)

// TasksPanel displays a scrollable list of tasks grouped under their phase,
// with expand/collapse per phase.
type TasksPanel struct {
	tasks        []models.Task
	phaseNames   map[int]string
	selected     int
	scrollOffset int
	width        int
	height       int
	collapsed    map[int]bool

	// Rendered lines for navigation
	visibleItems []visibleItem

	selectedStyle lipgloss.Style
	normalStyle   lipgloss.Style
	sectionStyle  lipgloss.Style
	phaseStyle    lipgloss.Style
	dimStyle      lipgloss.Style
}

// visibleItem is one selectable line: a phase header or a task.
type visibleItem struct {
	phase   int
	taskIdx int // -1 for phase headers
}

// NewTasksPanel creates a new TasksPanel instance.
func NewTasksPanel() *TasksPanel {
	return &TasksPanel{
		phaseNames: make(map[int]string),
		collapsed:  make(map[int]bool),

		selectedStyle: lipgloss.NewStyle().
			Background(lipgloss.Color("236")).
			Foreground(lipgloss.Color("15")).
			Bold(true),

		normalStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("252")),

		sectionStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("240")).
			Italic(true),

		phaseStyle: lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("75")),

		dimStyle: lipgloss.NewStyle().
			Foreground(lipgloss.Color("245")),
	}
}

// SetTasks replaces the task list. Tasks are ordered by phase then position.
func (p *TasksPanel) SetTasks(tasks []models.Task) {
	p.tasks = append(p.tasks[:0], tasks...)
	sort.SliceStable(p.tasks, func(i, j int) bool {
		if p.tasks[i].PhaseIndex != p.tasks[j].PhaseIndex {
			return p.tasks[i].PhaseIndex < p.tasks[j].PhaseIndex
		}
		return p.tasks[i].Position < p.tasks[j].Position
	})
	p.buildVisibleItems()
	if p.selected >= len(p.visibleItems) {
		p.selected = len(p.visibleItems) - 1
	}
	if p.selected < 0 {
		p.selected = 0
	}
}

// SetPhaseNames labels phase headers. Unlabelled phases show their index.
func (p *TasksPanel) SetPhaseNames(names map[int]string) {
	p.phaseNames = names
}

// SetSize updates the panel dimensions.
func (p *TasksPanel) SetSize(width, height int) {
	p.width = width
	p.height = height
}

func (p *TasksPanel) buildVisibleItems() {
	p.visibleItems = p.visibleItems[:0]
	lastPhase := -1
	for i, task := range p.tasks {
		if task.PhaseIndex != lastPhase {
			lastPhase = task.PhaseIndex
			p.visibleItems = append(p.visibleItems, visibleItem{phase: lastPhase, taskIdx: -1})
		}
		if !p.collapsed[task.PhaseIndex] {
			p.visibleItems = append(p.visibleItems, visibleItem{phase: task.PhaseIndex, taskIdx: i})
		}
	}
}

// Update handles navigation keys.
func (p *TasksPanel) Update(msg tea.Msg) (*TasksPanel, tea.Cmd) {
	key, ok := msg.(tea.KeyMsg)
	if !ok {
		return p, nil
	}
	switch {
	case matches(key, keys.Up):
		if p.selected > 0 {
			p.selected--
			p.ensureVisible()
		}
	case matches(key, keys.Down):
		if p.selected < len(p.visibleItems)-1 {
			p.selected++
			p.ensureVisible()
		}
	case matches(key, keys.Toggle):
		if p.selected >= 0 && p.selected < len(p.visibleItems) {
			item := p.visibleItems[p.selected]
			if item.taskIdx < 0 {
				p.collapsed[item.phase] = !p.collapsed[item.phase]
				p.buildVisibleItems()
			}
		}
	}
	return p, nil
}

// ensureVisible adjusts scroll offset to keep selected item visible.
func (p *TasksPanel) ensureVisible() {
	visibleRows := p.height - 4
	if visibleRows < 1 {
		visibleRows = 1
	}

	if p.selected < p.scrollOffset {
		p.scrollOffset = p.selected
	} else if p.selected >= p.scrollOffset+visibleRows {
		p.scrollOffset = p.selected - visibleRows + 1
	}
}

// View renders the panel.
func (p *TasksPanel) View() string {
	var b strings.Builder
	b.WriteString(titleStyle.Render("Tasks"))
	b.WriteString("\n")

	if len(p.tasks) == 0 {
		b.WriteString(p.normalStyle.Render("  No tasks yet"))
	} else {
		counts := CountTasks(p.tasks)
		b.WriteString(p.sectionStyle.Render(fmt.Sprintf(" %d tasks, %d done, %d failed", len(p.tasks), counts.Done, counts.Failed)))
		b.WriteString("\n")

		lines := make([]string, 0, len(p.visibleItems))
		for i, item := range p.visibleItems {
			selected := i == p.selected
			if item.taskIdx < 0 {
				lines = append(lines, p.renderPhaseLine(item.phase, selected))
			} else {
				lines = append(lines, p.renderTaskLine(&p.tasks[item.taskIdx], selected))
			}
		}
		end := len(lines)
		if rows := p.height - 4; rows > 0 && p.scrollOffset+rows < end {
			end = p.scrollOffset + rows
		}
		if p.scrollOffset < end {
			b.WriteString(strings.Join(lines[p.scrollOffset:end], "\n"))
		}
	}

	style := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("63"))
	if p.width > 2 {
		style = style.Width(p.width - 2)
	}
	if p.height > 2 {
		style = style.Height(p.height - 2)
	}
	return style.Render(b.String())
}

func (p *TasksPanel) renderPhaseLine(phase int, selected bool) string {
	collapseIcon := "▼"
	if p.collapsed[phase] {
		collapseIcon = "▶"
	}

	total, done := 0, 0
	for _, t := range p.tasks {
		if t.PhaseIndex == phase {
			total++
			if t.Status.Terminal() {
				done++
			}
		}
	}

	name := p.phaseNames[phase]
	if name == "" {
		name = fmt.Sprintf("phase %d", phase+1)
	}
	line := fmt.Sprintf(" %s %s %s", collapseIcon, p.phaseStyle.Render(name), p.dimStyle.Render(fmt.Sprintf("[%d/%d]", done, total)))
	if selected {
		return p.selectedStyle.Render(line)
	}
	return p.normalStyle.Render(line)
}

func (p *TasksPanel) renderTaskLine(task *models.Task, selected bool) string {
	suffix := ""
	switch {
	case task.Status.Terminal() && task.Confidence != nil:
		suffix = fmt.Sprintf(" %.2f %s", *task.Confidence, task.Elapsed.Round(10*time.Millisecond))
	case task.Status == models.TaskStatusRunning:
		suffix = " running"
	}

	line := fmt.Sprintf("   └─ %s %s%s", taskIcon(task.Status), truncate(task.Role, p.width-20-len(suffix)), p.dimStyle.Render(suffix))

	if task.Status == models.TaskStatusFailed && task.Error != "" {
		line += "\n       " + failedStyle.Render(truncate(task.Error, p.width-14))
	}

	if selected {
		return p.selectedStyle.Render(line)
	}
	return p.normalStyle.Render(line)
}

// SelectedTask returns the task under the cursor, or nil on a phase header.
func (p *TasksPanel) SelectedTask() *models.Task {
	if p.selected < 0 || p.selected >= len(p.visibleItems) {
		return nil
	}
	item := p.visibleItems[p.selected]
	if item.taskIdx < 0 {
		return nil
	}
	return &p.tasks[item.taskIdx]
}

// TaskCounts holds the count of tasks in each status.
type TaskCounts struct {
	Pending int
	Running int
	Done    int
	Failed  int
}

// CountTasks tallies tasks by status.
func CountTasks(tasks []models.Task) TaskCounts {
	var c TaskCounts
	for _, t := range tasks {
		switch t.Status {
		case models.TaskStatusRunning:
			c.Running++
		case models.TaskStatusCompleted:
			c.Done++
		case models.TaskStatusFailed:
			c.Failed++
		default:
			c.Pending++
		}
	}
	return c
}
