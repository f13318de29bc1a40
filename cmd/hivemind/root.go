package main

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/config"
	"github.com/ShayCichocki/hivemind/internal/orchestrator"
)

// errTasksFailed marks a run that completed with at least one failed task.
var errTasksFailed = errors.New("run completed with failed tasks")

// cliApp is the state shared by every subcommand of one invocation.
type cliApp struct {
	cfgPath string
	dbPath  string
	verbose bool

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
}

func newRootCmd() *cobra.Command {
	app := &cliApp{}

	rootCmd := &cobra.Command{
		Use:   "hivemind",
		Short: "Role-based task orchestration over a shared blackboard",
		Long: `hivemind turns a free-text task description into phases of role tasks
(researcher, implementer, reviewer, ...), runs them against a model backend,
and shares what each role learns through a blackboard stored in SQLite.

Phases run in order. Tasks inside a parallel phase run concurrently and a
phase only starts once every task of the previous one has finished. A failed
task never stops the run; the final report lists what succeeded and what did not.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return app.setup(cmd)
		},
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return app.teardown()
		},
	}

	rootCmd.PersistentFlags().StringVar(&app.cfgPath, "config", "", "Config file (default: XDG config plus .hivemind.yaml)")
	rootCmd.PersistentFlags().StringVar(&app.dbPath, "db", "", "Database path (overrides database.path)")
	rootCmd.PersistentFlags().BoolVarP(&app.verbose, "verbose", "v", false, "Log at debug level to stderr")

	rootCmd.AddCommand(newRunCmd(app))
	rootCmd.AddCommand(newPlanCmd(app))
	rootCmd.AddCommand(newToolsCmd(app))
	rootCmd.AddCommand(newRunsCmd(app))
	rootCmd.AddCommand(newWatchCmd(app))
	rootCmd.AddCommand(newTailCmd(app))
	rootCmd.AddCommand(newConfigCmd(app))
	rootCmd.AddCommand(newVersionCmd())

	return rootCmd
}

// Execute runs the root command
func Execute() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(reportError(os.Stderr, err))
	}
}

// reportError prints err and returns the process exit code. A run with
// failed tasks exits 2; everything else exits 1.
func reportError(w io.Writer, err error) int {
	if errors.Is(err, errTasksFailed) {
		fmt.Fprintln(w, color.YellowString("warning: %v", err))
		return 2
	}
	fmt.Fprintln(w, color.RedString("Error: %v", err))
	return 1
}

func (a *cliApp) setup(cmd *cobra.Command) error {
	var (
		cfg *config.Config
		err error
	)
	if a.cfgPath != "" {
		cfg, err = config.LoadFromPath(a.cfgPath)
	} else {
		cfg, err = config.Load()
	}
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if a.dbPath != "" {
		cfg.Database.Path = a.dbPath
	}
	a.cfg = cfg

	if a.verbose {
		a.logger = orchestrator.NewLogger(cmd.ErrOrStderr(), slog.LevelDebug)
		return nil
	}

	logger, closer, err := orchestrator.NewFileLogger(cfg.Log.File, orchestrator.ParseLevel(cfg.Log.Level))
	if err != nil {
		a.logger = orchestrator.NewLogger(cmd.ErrOrStderr(), slog.LevelWarn)
		a.logger.Warn("file logging disabled", "path", cfg.Log.File, "error", err)
		return nil
	}
	a.logger = logger
	a.logCloser = closer
	return nil
}

func (a *cliApp) teardown() error {
	if a.logCloser == nil {
		return nil
	}
	err := a.logCloser.Close()
	a.logCloser = nil
	return err
}
