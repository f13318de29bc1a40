package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/orchestrator"
	"github.com/ShayCichocki/hivemind/internal/tui"
)

func newWatchCmd(app *cliApp) *cobra.Command {
	var exit bool
	cmd := &cobra.Command{
		Use:   "watch <run-id>",
		Short: "Follow a run in a full-screen view",
		Long: `Follow a run's phases and tasks in a full-screen view. The view polls the
database, so it works for runs started by another process.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			run, err := resolveRun(db, args[0])
			if err != nil {
				return err
			}

			program, view := tui.NewWatchProgram(db, run.ID, app.cfg.TUI.RefreshRate)
			view.ExitWhenDone = exit
			if _, err := program.Run(); err != nil {
				return fmt.Errorf("watch view: %w", err)
			}
			if r := view.Run(); r != nil {
				fmt.Fprintf(cmd.OutOrStdout(), "run %s: %s\n", shortID(r.ID), runStatusColor(r.Status).Sprint(r.Status))
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&exit, "exit", false, "Leave the view when the run finishes")
	return cmd
}

func newTailCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "tail [run-id]",
		Short: "Print live events from the Redis event feed",
		Long: `Print events published by runs in any process sharing notify.redis_addr.
With a run id, stops when that run finishes; without one, follows every run
until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if app.cfg.Notify.RedisAddr == "" {
				return errors.New("notify.redis_addr is not set")
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			runID := ""
			if len(args) == 1 {
				runID = args[0]
				// Expand a prefix when the run is in the local database.
				if db, err := app.openStore(); err == nil {
					if run, err := resolveRun(db, runID); err == nil {
						runID = run.ID
					}
					db.Close()
				}
			}

			client, err := app.newNotifier(ctx)
			if err != nil {
				return err
			}
			defer client.Close()

			sub, err := client.Subscribe(ctx, runID)
			if err != nil {
				return err
			}
			defer sub.Close()

			out := cmd.OutOrStdout()
			if runID == "" {
				fmt.Fprintln(out, "following all runs (Ctrl+C to stop)")
			} else {
				fmt.Fprintf(out, "following run %s\n", shortID(runID))
			}
			return tailEvents(out, sub.Events(), sub.Errors(), runID != "")
		},
	}
}

// tailEvents prints events until both channels close, or until a terminal
// event arrives when stopOnEnd is set.
func tailEvents(w io.Writer, events <-chan orchestrator.Event, errs <-chan error, stopOnEnd bool) error {
	for events != nil || errs != nil {
		select {
		case ev, ok := <-events:
			if !ok {
				events = nil
				continue
			}
			printTailEvent(w, ev)
			if stopOnEnd && ev.Type.Terminal() {
				return nil
			}
		case err, ok := <-errs:
			if !ok {
				errs = nil
				continue
			}
			fmt.Fprintln(w, color.YellowString("feed: %v", err))
		}
	}
	return nil
}

func printTailEvent(w io.Writer, ev orchestrator.Event) {
	prefix := color.HiBlackString("%s %s", ev.Timestamp.Local().Format("15:04:05"), shortID(ev.RunID))
	switch ev.Type {
	case orchestrator.EventRunCompleted:
		fmt.Fprintf(w, "%s %s %s\n", prefix, color.GreenString("run completed"), ev.Message)
	case orchestrator.EventRunFailed:
		fmt.Fprintf(w, "%s %s %s\n", prefix, color.RedString("run failed"), ev.Error)
	case orchestrator.EventPhaseCompleted:
		fmt.Fprintf(w, "%s phase %s finished\n", prefix, ev.Phase)
	default:
		fmt.Fprintf(w, "%s ", prefix)
		printEvent(w, ev)
	}
}
