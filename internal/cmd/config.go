package cmd

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/olekukonko/tablewriter"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/config"
	"github.com/cameronsjo/blueprinter/internal/fileutil"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

// configCmd represents the config command.
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Show effective settings and their sources",
	Long: `Show every setting push would use and the layer it came from:
default, file (.blueprinter.yaml), env (BLUEPRINTER_*) or flag.

The token is never printed; see "blueprinter auth status".`,
	Args: cobra.NoArgs,
	RunE: runConfig,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter .blueprinter.yaml",
	Long: `Write a starter .blueprinter.yaml to the current directory, or to the
path given by --config.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVarP(&configInitForce, "force", "f", false, "Overwrite an existing file")

	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfig(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	out := ui.NewPrinter(cmd.OutOrStdout())
	if cfg.Path != "" {
		out.Header("Config file: %s", cfg.Path)
	} else {
		out.Header("Config file: none (using defaults)")
	}

	table := tablewriter.NewWriter(cmd.OutOrStdout())
	table.SetHeader([]string{"Setting", "Value", "Source"})
	table.SetAutoWrapText(false)
	for _, s := range cfg.Settings() {
		table.Append([]string{s.Key, s.Value, string(s.Source)})
	}
	table.Render()
	return nil
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configPath
	if path == "" {
		dir, err := env.getwd()
		if err != nil {
			return failure(fmt.Errorf("get working directory: %w", err))
		}
		path = filepath.Join(dir, config.FileName)
	}

	exists, err := afero.Exists(env.fs, path)
	if err != nil {
		return failure(err)
	}
	if exists && !configInitForce {
		return usageError(errors.New(path + " already exists (use --force to overwrite)"))
	}

	if err := fileutil.WriteFileAtomic(env.fs, path, []byte(config.Starter), 0644); err != nil {
		return failure(fmt.Errorf("write %s: %w", path, err))
	}

	ui.NewPrinter(cmd.OutOrStdout()).Success("Wrote %s", path)
	return nil
}
