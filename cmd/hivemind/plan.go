package main

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/agent"
	"github.com/ShayCichocki/hivemind/internal/orchestrator"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

func newPlanCmd(app *cliApp) *cobra.Command {
	var (
		tools  []string
		asJSON bool
	)
	cmd := &cobra.Command{
		Use:   "plan <task>",
		Short: "Show the plan a task would run, without executing it",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			if err := app.seedTools(db); err != nil {
				return err
			}
			b, err := app.newPlanner()
			if err != nil {
				return err
			}

			opts := []orchestrator.Option{orchestrator.WithLogger(app.logger)}
			if cmd.Flags().Changed("tools") {
				opts = append(opts, orchestrator.WithAvailableTools(tools))
			}
			orch := orchestrator.New(db, b, agent.DryRunExecutor{}, opts...)
			defer orch.Close()

			text := strings.Join(args, " ")
			plan, err := orch.Plan(text)
			if err != nil {
				return err
			}

			if asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(plan)
			}
			printPlan(cmd.OutOrStdout(), plan)
			return nil
		},
	}
	cmd.Flags().StringSliceVar(&tools, "tools", nil, "Available tool names (default: every registered tool)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the plan as JSON")
	return cmd
}

func printPlan(w io.Writer, plan *models.ExecutionPlan) {
	bold := color.New(color.Bold)
	dim := color.New(color.FgHiBlack)

	fmt.Fprintf(w, "%s %s, %d tasks, scope %s, risk %s\n", bold.Sprint("Strategy:"), plan.Strategy, plan.TaskCount(), plan.Scope, plan.Risk)
	if len(plan.Domains) > 0 {
		fmt.Fprintf(w, "%s %s\n", bold.Sprint("Domains:"), strings.Join(plan.Domains, ", "))
	}

	for i, phase := range plan.Phases {
		mode := "sequential"
		if phase.Parallel {
			mode = "parallel"
		}
		fmt.Fprintf(w, "\n%s %s %s\n", color.CyanString("%d.", i+1), bold.Sprint(phase.Name), dim.Sprintf("(%s)", mode))
		if phase.Description != "" {
			fmt.Fprintf(w, "   %s\n", dim.Sprint(phase.Description))
		}
		for _, t := range phase.Tasks {
			fmt.Fprintf(w, "   - %s: %s\n", bold.Sprint(t.Role), t.Description)
			if len(t.Dependencies) > 0 {
				fmt.Fprintf(w, "     after: %s\n", strings.Join(t.Dependencies, ", "))
			}
			if len(t.Tools) > 0 {
				fmt.Fprintf(w, "     tools: %s\n", strings.Join(t.Tools, ", "))
			}
			if len(t.ContextTags) > 0 {
				fmt.Fprintf(w, "     reads: %s\n", strings.Join(t.ContextTags, ", "))
			}
		}
	}
}
