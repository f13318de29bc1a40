package main

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/report"
	"github.com/ShayCichocki/hivemind/internal/state"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

func newRunsCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "runs",
		Short: "Inspect and prune stored runs",
		Long: `Runs, their tasks, blackboard entries and artifacts stay in the database
until deleted here. Run ids may be abbreviated to any unique prefix.`,
	}
	cmd.AddCommand(newRunsListCmd(app))
	cmd.AddCommand(newRunsShowCmd(app))
	cmd.AddCommand(newRunsDeleteCmd(app))
	cmd.AddCommand(newRunsPurgeCmd(app))
	return cmd
}

func newRunsListCmd(app *cliApp) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			runs, err := db.ListRuns(limit)
			if err != nil {
				return err
			}
			if len(runs) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No runs yet. Start one with 'hivemind run <task>'.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tSTARTED\tELAPSED\tTASK")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					shortID(r.ID),
					runStatusColor(r.Status).Sprint(r.Status),
					r.StartedAt.Local().Format("2006-01-02 15:04"),
					formatDuration(r.Elapsed),
					truncateText(r.TaskText, 60),
				)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "Maximum runs to list (0 for all)")
	return cmd
}

func newRunsShowCmd(app *cliApp) *cobra.Command {
	var showEntries, showArtifacts bool
	cmd := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a run, its tasks and its report",
		Args:  cobra.ExactArgs(1),
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
			tasks, err := db.ListTasks(run.ID)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			printRunDetail(out, run, tasks)

			if showEntries {
				entries, err := db.QueryEntries(run.ID, state.EntryFilter{})
				if err != nil {
					return err
				}
				printEntries(out, entries)
			}
			if showArtifacts {
				artifacts, err := db.ListArtifacts(run.ID)
				if err != nil {
					return err
				}
				printArtifacts(out, artifacts)
			}
			return nil
		},
	}
	cmd.Flags().BoolVarP(&showEntries, "entries", "e", false, "List blackboard entries")
	cmd.Flags().BoolVarP(&showArtifacts, "artifacts", "a", false, "List artifacts")
	return cmd
}

func newRunsDeleteCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <run-id>...",
		Short: "Delete runs with their tasks, entries and artifacts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			for _, arg := range args {
				run, err := resolveRun(db, arg)
				if err != nil {
					return err
				}
				if _, err := db.DeleteRun(run.ID); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s deleted %s\n", color.GreenString("✓"), run.ID)
			}
			return nil
		},
	}
}

func newRunsPurgeCmd(app *cliApp) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete finished runs completed before a cutoff",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if olderThan <= 0 {
				return fmt.Errorf("--older-than must be positive")
			}
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			n, err := db.PurgeOldRuns(olderThan)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s purged %d runs older than %s\n", color.GreenString("✓"), n, olderThan)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "Age cutoff")
	return cmd
}

// resolveRun finds a run by full id or unique id prefix.
func resolveRun(db state.RunStore, idOrPrefix string) (*models.Run, error) {
	run, err := db.GetRun(idOrPrefix)
	if err != nil {
		return nil, err
	}
	if run != nil {
		return run, nil
	}

	runs, err := db.ListRuns(0)
	if err != nil {
		return nil, err
	}
	var match *models.Run
	for i := range runs {
		if strings.HasPrefix(runs[i].ID, idOrPrefix) {
			if match != nil {
				return nil, fmt.Errorf("run id %q is ambiguous", idOrPrefix)
			}
			match = &runs[i]
		}
	}
	if match == nil {
		return nil, fmt.Errorf("run %q not found", idOrPrefix)
	}
	return match, nil
}

func printRunDetail(w io.Writer, run *models.Run, tasks []models.Task) {
	bold := color.New(color.Bold)

	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Run:"), run.ID)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Task:"), run.TaskText)
	fmt.Fprintf(w, "%s %s\n", bold.Sprint("Status:"), runStatusColor(run.Status).Sprint(run.Status))
	fmt.Fprintf(w, "%s %s", bold.Sprint("Started:"), run.StartedAt.Local().Format(time.RFC3339))
	if run.CompletedAt != nil {
		fmt.Fprintf(w, " (took %s)", formatDuration(run.Elapsed))
	}
	fmt.Fprintln(w)
	if run.Error != "" {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Error:"), color.RedString("%s", run.Error))
	}

	if len(tasks) > 0 {
		fmt.Fprintf(w, "\n%s\n", bold.Sprint("Tasks:"))
		for _, t := range tasks {
			line := fmt.Sprintf("  %s [%d] %s", taskStatusSymbol(t.Status), t.PhaseIndex+1, t.Role)
			if t.Confidence != nil {
				line += color.HiBlackString(" %.2f", *t.Confidence)
			}
			if t.Status.Terminal() {
				line += color.HiBlackString(" %s", formatDuration(t.Elapsed))
			}
			fmt.Fprintln(w, line)
			if t.Error != "" {
				fmt.Fprintf(w, "      %s\n", color.RedString("%s", t.Error))
			}
		}
	}

	var result models.RunResult
	if err := run.Result.Decode(&result); err == nil && result.Report != "" {
		fmt.Fprintf(w, "\n%s\n", result.Report)
	}
}

func printEntries(w io.Writer, entries []models.BlackboardEntry) {
	fmt.Fprintf(w, "\n%s (%d)\n", color.New(color.Bold).Sprint("Entries:"), len(entries))
	for _, e := range entries {
		fmt.Fprintf(w, "  %s v%d by %s [%s]\n", e.Key, e.Version, e.Author, strings.Join(e.Tags, ","))
		fmt.Fprintf(w, "    %s\n", truncateText(report.RenderResult(e.Value), 200))
	}
}

func printArtifacts(w io.Writer, artifacts []models.Artifact) {
	fmt.Fprintf(w, "\n%s (%d)\n", color.New(color.Bold).Sprint("Artifacts:"), len(artifacts))
	for _, a := range artifacts {
		fmt.Fprintf(w, "  %s (%s, %d bytes)\n", a.Name, a.ContentType, len(a.Content))
	}
}

func truncateText(s string, max int) string {
	s = strings.Join(strings.Fields(s), " ")
	r := []rune(s)
	if len(r) <= max {
		return s
	}
	return string(r[:max-3]) + "..."
}
