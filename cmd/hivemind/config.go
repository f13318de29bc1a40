package main

import (
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/hivemind/internal/config"
)

func newConfigCmd(app *cliApp) *cobra.Command {
	return &cobra.Command{
		Use:   "config [key] [value]",
		Short: "Manage configuration",
		Long: `View or modify hivemind configuration.

Without arguments, displays the effective configuration.
With one argument (key), displays the value for that key.
With two arguments (key value), sets the value in the user config file.

Configuration is stored at ~/.config/hivemind/config.yaml
Project-specific overrides can be placed in .hivemind.yaml
Environment variables HIVEMIND_<SECTION>_<KEY> override both.`,
		Args: cobra.MaximumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			switch len(args) {
			case 0:
				return displayAllConfig(out, app.cfg)
			case 1:
				return displayConfigKey(out, args[0])
			default:
				if err := config.SetUserValue(args[0], args[1]); err != nil {
					return err
				}
				shown := args[1]
				if config.IsSecretKey(args[0]) {
					shown = config.MaskAPIKey(shown)
				}
				fmt.Fprintf(out, "%s set %s = %s in %s\n", color.GreenString("✓"), args[0], shown, config.GetUserConfigPath())
				return nil
			}
		},
	}
}

// displayAllConfig prints every known key with its effective value.
func displayAllConfig(w io.Writer, cfg *config.Config) error {
	for _, key := range config.KnownKeys() {
		value, err := config.Lookup(key)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "%s: %s\n", key, formatConfigValue(key, value))
	}

	fmt.Fprintln(w)
	fmt.Fprintf(w, "api key source: %s\n", config.GetAPIKeySource(cfg))
	fmt.Fprintf(w, "user config: %s\n", config.GetUserConfigPath())
	if project := config.GetProjectConfigPath(); project != "" {
		fmt.Fprintf(w, "project config: %s\n", project)
	}
	return nil
}

func displayConfigKey(w io.Writer, key string) error {
	value, err := config.Lookup(key)
	if err != nil {
		return err
	}
	fmt.Fprintln(w, formatConfigValue(key, value))
	return nil
}

func formatConfigValue(key string, value any) string {
	s := fmt.Sprint(value)
	if config.IsSecretKey(key) {
		return config.MaskAPIKey(s)
	}
	return s
}
