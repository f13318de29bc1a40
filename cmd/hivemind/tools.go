package main

import (
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/toolreg"
	"github.com/ShayCichocki/hivemind/pkg/models"
)

func newToolsCmd(app *cliApp) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Manage the tool instruction registry",
		Long: `Tools are names the planner may grant to a role, plus the instructions
handed to the executor when a task holds that tool. The registry lives in the
database; YAML files can be synced into it.`,
	}
	cmd.AddCommand(newToolsListCmd(app))
	cmd.AddCommand(newToolsRegisterCmd(app))
	cmd.AddCommand(newToolsSyncCmd(app))
	cmd.AddCommand(newToolsExportCmd(app))
	return cmd
}

func newToolsListCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered tools",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			tools, err := db.ListTools()
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}
			if len(tools) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No tools registered. Run 'hivemind tools sync --defaults' to add the built-in set.")
				return nil
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "NAME\tDESCRIPTION")
			for _, t := range tools {
				fmt.Fprintf(tw, "%s\t%s\n", t.Name, t.Description)
			}
			return tw.Flush()
		},
	}
}

func newToolsRegisterCmd(app *cliApp) *cobra.Command {
	var (
		description  string
		instructions string
		file         string
	)
	cmd := &cobra.Command{
		Use:   "register <name>",
		Short: "Register or update one tool",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if file != "" {
				data, err := os.ReadFile(file)
				if err != nil {
					return fmt.Errorf("read instructions: %w", err)
				}
				instructions = string(data)
			}
			name := strings.TrimSpace(args[0])
			if name == "" {
				return errors.New("tool name is required")
			}

			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			tool := &models.Tool{
				Name:         name,
				Description:  description,
				Instructions: strings.TrimSpace(instructions),
			}
			if err := db.RegisterTool(tool); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s registered %s\n", color.GreenString("✓"), name)
			return nil
		},
	}
	cmd.Flags().StringVarP(&description, "description", "d", "", "One-line description")
	cmd.Flags().StringVarP(&instructions, "instructions", "i", "", "Instructions handed to the executor")
	cmd.Flags().StringVarP(&file, "file", "f", "", "Read instructions from a file")
	return cmd
}

func newToolsSyncCmd(app *cliApp) *cobra.Command {
	var (
		defaults bool
		watch    bool
	)
	cmd := &cobra.Command{
		Use:   "sync [file]",
		Short: "Register every tool from a YAML file",
		Long: `Register every tool listed in a YAML registry file. Tools missing from the
file are left in place. Without a file argument, tools.registry_file is used.

With --watch the file is re-synced whenever it changes until interrupted.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := app.cfg.Tools.RegistryFile
			if len(args) == 1 {
				path = args[0]
			}
			if path == "" && !defaults {
				return errors.New("no registry file given and tools.registry_file is not set (use --defaults for the built-in set)")
			}
			if watch && path == "" {
				return errors.New("--watch needs a registry file")
			}

			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()
			out := cmd.OutOrStdout()

			if defaults {
				n, err := toolreg.Sync(db, toolreg.Defaults())
				if err != nil {
					return err
				}
				fmt.Fprintf(out, "%s synced %d built-in tools\n", color.GreenString("✓"), n)
			}
			if path == "" {
				return nil
			}

			n, err := toolreg.SyncFile(db, path)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "%s synced %d tools from %s\n", color.GreenString("✓"), n, path)
			if !watch {
				return nil
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			fmt.Fprintf(out, "watching %s (Ctrl+C to stop)\n", path)
			return toolreg.Watch(ctx, db, path, app.logger, func(r toolreg.SyncResult) {
				if r.Err != nil {
					fmt.Fprintf(out, "%s %v\n", color.RedString("✗"), r.Err)
					return
				}
				fmt.Fprintf(out, "%s synced %d tools from %s\n", color.GreenString("✓"), r.Count, path)
			})
		},
	}
	cmd.Flags().BoolVar(&defaults, "defaults", false, "Also register the built-in tools")
	cmd.Flags().BoolVarP(&watch, "watch", "w", false, "Re-sync when the file changes")
	return cmd
}

func newToolsExportCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "export",
		Short: "Print the registry as a YAML file that sync accepts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			db, err := app.openStore()
			if err != nil {
				return err
			}
			defer db.Close()

			tools, err := db.ListTools()
			if err != nil {
				return fmt.Errorf("list tools: %w", err)
			}
			data, err := toolreg.Marshal(tools)
			if err != nil {
				return err
			}
			_, err = cmd.OutOrStdout().Write(data)
			return err
		},
	}
}
