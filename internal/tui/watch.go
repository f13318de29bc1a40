package tui

import (
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/ShayCichocki/hivemind/internal/orchestrator"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

// DefaultRefreshRate is used when NewWatchApp gets a non-positive rate.
const DefaultRefreshRate = 500 * time.Millisecond

// Source is the read side of the store the view polls.
type Source interface {
	GetRun(id string) (*models.Run, error)
	ListTasks(runID string) ([]models.Task, error)
}

// EventMsg pushes a live orchestrator event into the activity log.
type EventMsg struct {
	Event orchestrator.Event
}

type tickMsg time.Time

type snapshotMsg struct {
	run   *models.Run
	tasks []models.Task
	err   error
}

// WatchApp is the bubbletea model for a single run.
type WatchApp struct {
	src     Source
	runID   string
	refresh time.Duration

	// ExitWhenDone quits once the run reaches a terminal status.
	ExitWhenDone bool

	run    *models.Run
	tasks  []models.Task
	done   bool
	width  int
	height int
	now    func() time.Time

	spinner spinner.Model
	header  *Header
	panel   *TasksPanel
	logs    *LogsPanel
	footer  *Footer
}

// NewWatchApp creates the model for runID. An empty runID follows the run
// named by the first EventMsg.
func NewWatchApp(src Source, runID string, refresh time.Duration) *WatchApp {
	if refresh <= 0 {
		refresh = DefaultRefreshRate
	}
	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = runningStyle

	return &WatchApp{
		src:     src,
		runID:   runID,
		refresh: refresh,
		width:   100,
		height:  30,
		now:     time.Now,
		spinner: s,
		header:  NewHeader(),
		panel:   NewTasksPanel(),
		logs:    NewLogsPanel(),
		footer:  NewFooter(),
	}
}

// NewWatchProgram creates a full-screen program around a WatchApp.
func NewWatchProgram(src Source, runID string, refresh time.Duration) (*tea.Program, *WatchApp) {
	app := NewWatchApp(src, runID, refresh)
	return tea.NewProgram(app, tea.WithAltScreen()), app
}

// Init implements tea.Model.
func (a *WatchApp) Init() tea.Cmd {
	return tea.Batch(a.spinner.Tick, a.fetch())
}

// Update implements tea.Model.
func (a *WatchApp) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		if matches(msg, keys.Quit) {
			return a, tea.Quit
		}
		a.panel.Update(msg)
		return a, nil

	case tea.WindowSizeMsg:
		a.width = msg.Width
		a.height = msg.Height
		a.resize()
		return a, nil

	case tickMsg:
		return a, a.fetch()

	case snapshotMsg:
		return a, a.applySnapshot(msg)

	case EventMsg:
		// An app started before its run exists follows the first run it hears about.
		if a.runID == "" {
			a.runID = msg.Event.RunID
		}
		if msg.Event.RunID == "" || msg.Event.RunID == a.runID {
			a.logs.AddEvent(msg.Event)
			// Refresh early so the task list tracks the log.
			if !a.done {
				return a, a.fetch()
			}
		}
		return a, nil

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		return a, cmd
	}
	return a, nil
}

func (a *WatchApp) fetch() tea.Cmd {
	src, id := a.src, a.runID
	return func() tea.Msg {
		run, err := src.GetRun(id)
		if err != nil || run == nil {
			return snapshotMsg{err: err}
		}
		tasks, err := src.ListTasks(id)
		return snapshotMsg{run: run, tasks: tasks, err: err}
	}
}

func (a *WatchApp) applySnapshot(msg snapshotMsg) tea.Cmd {
	switch {
	case msg.err != nil:
		a.footer.SetMessage("store: "+msg.err.Error(), true)
	case msg.run == nil:
		a.footer.SetMessage("waiting for run "+shortID(a.runID), false)
	default:
		a.run = msg.run
		a.tasks = msg.tasks
		a.panel.SetTasks(msg.tasks)
		a.panel.SetPhaseNames(phaseNames(msg.run))
		a.footer.SetCounts(CountTasks(msg.tasks))
		a.footer.SetMessage("", false)
		if msg.run.Status == models.RunStatusFailed && msg.run.Error != "" {
			a.footer.SetMessage(msg.run.Error, true)
		}
	}

	if a.run != nil && a.run.Status.Terminal() {
		a.done = true
		a.footer.SetDone(true)
		if a.ExitWhenDone {
			return tea.Quit
		}
		return nil
	}
	return tea.Tick(a.refresh, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (a *WatchApp) resize() {
	a.header.SetWidth(a.width)
	contentHeight := a.height - a.header.Height() - 1
	if contentHeight < 5 {
		contentHeight = 5
	}
	tasksWidth := a.width * 40 / 100
	if tasksWidth < 30 {
		tasksWidth = 30
	}
	a.panel.SetSize(tasksWidth, contentHeight)
	a.logs.SetSize(a.width-tasksWidth, contentHeight)
}

// View implements tea.Model.
func (a *WatchApp) View() string {
	a.resize()
	body := lipgloss.JoinHorizontal(lipgloss.Top, a.panel.View(), a.logs.View())
	return lipgloss.JoinVertical(lipgloss.Left,
		a.header.View(a.run, a.spinner.View(), a.now()),
		body,
		a.footer.View(),
	)
}

// RunID returns the run being watched.
func (a *WatchApp) RunID() string {
	return a.runID
}

// Run returns the last run snapshot, or nil before the first poll lands.
func (a *WatchApp) Run() *models.Run {
	return a.run
}

// Tasks returns the last task snapshot.
func (a *WatchApp) Tasks() []models.Task {
	return a.tasks
}

// Done reports whether the run reached a terminal status.
func (a *WatchApp) Done() bool {
	return a.done
}

func phaseNames(run *models.Run) map[int]string {
	var plan models.ExecutionPlan
	if err := run.Plan.Decode(&plan); err != nil {
		return nil
	}
	names := make(map[int]string, len(plan.Phases))
	for i, ph := range plan.Phases {
		names[i] = ph.Name
	}
	return names
}
