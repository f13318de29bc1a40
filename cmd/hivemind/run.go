package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/api"
	"github.com/ShayCichocki/hivemind/internal/orchestrator"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/internal/tui"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

type runFlags struct {
	dryRun  bool
	tools   []string
	timeout time.Duration
	watch   bool
	quiet   bool
}

func newRunCmd(app *cliApp) *cobra.Command {
	f := &runFlags{}
	cmd := &cobra.Command{
		Use:   "run <task>",
		Short: "Plan and execute a task",
		Long: `Plan the task, materialize its role tasks and execute them phase by phase.

Progress is printed as tasks start and finish; --watch shows the full-screen
view instead. The final report is printed when the run completes. The command
exits 2 when the run completed but some tasks failed, and 1 when the run
itself failed.

Examples:
  hivemind run "Compare Postgres and MySQL for our analytics workload"
  hivemind run --dry-run "Build the login handler, test it and review the result"
  hivemind run --tools web_search,web_fetch --timeout 2m "Research rate limiting"`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runTask(cmd, strings.Join(args, " "), f)
		},
	}
	cmd.Flags().BoolVar(&f.dryRun, "dry-run", false, "Use the offline executor instead of the configured backend")
	cmd.Flags().StringSliceVar(&f.tools, "tools", nil, "Available tool names (default: every registered tool)")
	cmd.Flags().DurationVar(&f.timeout, "timeout", 0, "Per-task timeout (default: executor.timeout)")
	cmd.Flags().BoolVarP(&f.watch, "watch", "w", false, "Show the full-screen progress view")
	cmd.Flags().BoolVarP(&f.quiet, "quiet", "q", false, "Only print the final report")
	return cmd
}

func (a *cliApp) runTask(cmd *cobra.Command, text string, f *runFlags) error {
	out := cmd.OutOrStdout()

	db, err := a.openStore()
	if err != nil {
		return err
	}
	defer db.Close()

	if err := a.seedTools(db); err != nil {
		return err
	}
	b, err := a.newPlanner()
	if err != nil {
		return err
	}
	exec, tracker, err := a.newExecutor(f.dryRun)
	if err != nil {
		return err
	}

	timeout := a.cfg.Executor.Timeout
	if f.timeout > 0 {
		timeout = f.timeout
	}
	opts := []orchestrator.Option{
		orchestrator.WithLogger(a.logger),
		orchestrator.WithTimeout(timeout),
		orchestrator.WithMaxContextEntries(a.cfg.Context.MaxEntries),
	}
	if cmd.Flags().Changed("tools") {
		opts = append(opts, orchestrator.WithAvailableTools(f.tools))
	}
	orch := orchestrator.New(db, b, exec, opts...)

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	notifier, err := a.newNotifier(ctx)
	if err != nil {
		a.logger.Warn("event feed disabled", "error", err)
		fmt.Fprintln(cmd.ErrOrStderr(), color.YellowString("event feed disabled: %v", err))
	}

	var program *tea.Program
	if f.watch {
		program, _ = tui.NewWatchProgram(db, "", a.cfg.TUI.RefreshRate)
	}

	// Fan events out to the feed and to the terminal.
	var feed chan orchestrator.Event
	feedDone := make(chan struct{})
	if notifier != nil {
		feed = make(chan orchestrator.Event, orchestrator.DefaultEventBuffer)
		go func() {
			defer close(feedDone)
			notifier.Forward(context.Background(), feed, func(err error) {
				a.logger.Warn("publish event", "error", err)
			})
		}()
	} else {
		close(feedDone)
	}

	dispatchDone := make(chan struct{})
	go func() {
		defer close(dispatchDone)
		for ev := range orch.Events() {
			if feed != nil {
				feed <- ev
			}
			switch {
			case program != nil:
				program.Send(tui.EventMsg{Event: ev})
			case !f.quiet:
				printEvent(out, ev)
			}
		}
		if feed != nil {
			close(feed)
		}
	}()

	var (
		run    *models.Run
		runErr error
	)
	if program != nil {
		runDone := make(chan struct{})
		go func() {
			defer close(runDone)
			run, runErr = orch.Run(ctx, text)
		}()
		if _, err := program.Run(); err != nil {
			a.logger.Warn("watch view", "error", err)
		}
		// Leaving the view early cancels the run.
		stop()
		<-runDone
	} else {
		run, runErr = orch.Run(ctx, text)
	}

	orch.Close()
	<-dispatchDone
	<-feedDone
	if notifier != nil {
		notifier.Close()
	}
	if dropped := orch.DroppedEvents(); dropped > 0 {
		a.logger.Warn("events dropped", "count", dropped)
	}

	return printRunOutcome(out, db, run, runErr, tracker)
}

// printEvent writes one progress line.
func printEvent(w io.Writer, ev orchestrator.Event) {
	switch ev.Type {
	case orchestrator.EventRunStarted:
		fmt.Fprintf(w, "%s run %s\n", color.CyanString("▶"), shortID(ev.RunID))
	case orchestrator.EventPhaseStarted:
		fmt.Fprintf(w, "%s phase %s\n", color.CyanString("▸"), color.New(color.Bold).Sprint(ev.Phase))
	case orchestrator.EventTaskStarted:
		fmt.Fprintf(w, "  %s %s\n", taskStatusSymbol(models.TaskStatusRunning), ev.Role)
	case orchestrator.EventTaskCompleted:
		fmt.Fprintf(w, "  %s %s %s\n", taskStatusSymbol(models.TaskStatusCompleted), ev.Role,
			color.HiBlackString("(confidence %.2f, %s)", ev.Confidence, formatDuration(ev.Duration)))
	case orchestrator.EventTaskFailed:
		fmt.Fprintf(w, "  %s %s %s\n", taskStatusSymbol(models.TaskStatusFailed), ev.Role, color.RedString("%s", ev.Error))
	}
}

// printRunOutcome prints the report of a completed run or the error of a
// failed one.
func printRunOutcome(w io.Writer, db state.TaskStore, run *models.Run, runErr error, tracker *api.TokenTracker) error {
	if runErr != nil {
		if run == nil {
			return runErr
		}
		fmt.Fprintf(w, "\n%s run %s failed after %s\n", color.RedString("✗"), run.ID, formatDuration(run.Elapsed))
		fmt.Fprintf(w, "  %s\n", color.RedString("%s", run.Error))
		if errors.Is(runErr, orchestrator.ErrCanceled) {
			return fmt.Errorf("run %s canceled", shortID(run.ID))
		}
		return runErr
	}

	var result models.RunResult
	if err := run.Result.Decode(&result); err != nil {
		return fmt.Errorf("decode run result: %w", err)
	}

	fmt.Fprintln(w)
	fmt.Fprintln(w, result.Report)

	summary := fmt.Sprintf("%d/%d tasks succeeded in %s", result.Succeeded, result.Total, formatDuration(run.Elapsed))
	if tracker != nil {
		in, outTok := tracker.Total()
		summary += fmt.Sprintf(", %d calls, %d in / %d out tokens", tracker.Calls(), in, outTok)
	}
	fmt.Fprintf(w, "%s run %s: %s\n", runStatusColor(run.Status).Sprint("●"), run.ID, summary)

	if result.Failed == 0 {
		return nil
	}

	tasks, err := db.ListTasks(run.ID)
	if err != nil {
		return fmt.Errorf("list tasks: %w", err)
	}
	for _, t := range tasks {
		if t.Status == models.TaskStatusFailed {
			fmt.Fprintf(w, "  %s %s: %s\n", color.RedString("✗"), color.New(color.FgRed, color.Bold).Sprint(t.Role), t.Error)
		}
	}
	return fmt.Errorf("%w: %d of %d", errTasksFailed, result.Failed, result.Total)
}
