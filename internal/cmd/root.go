// Package cmd provides the CLI commands for blueprinter.
package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/ui"
)

var version = "0.1.0"

// Global flags.
var (
	configPath string
	debug      bool
	noColor    bool
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "blueprinter",
	Short: "Convert YAML blueprints and apply them to an organization",
	Long: `blueprinter - YAML blueprints for the Pangolin API

Reads a YAML blueprint, converts it to canonical JSON, base64-encodes it and
PUTs it as {"blueprint": "<base64>"} to /org/<org>/blueprint.

BLUEPRINT COMMANDS
  push [file]           Convert and upload a blueprint (default blueprint.yaml)
    --url <endpoint>    Full endpoint URL, overrides --api-url and --org
    --header k=v        Extra request header (repeatable)
    --template          Render the file as a Go template first
  render [file]         Convert without uploading
    --json              Print only the canonical JSON
    --output, -o <path> Write the result to a file
  decode [file]         Turn a wrapper or base64 payload back into JSON

CREDENTIALS
  auth login            Store an API token in the OS keyring
  auth logout           Remove the stored token
  auth status           Show which token would be used

SETUP
  config                Show effective settings and where they came from
  config init           Write a starter .blueprinter.yaml
  update                Update blueprinter to the latest release

EXIT CODES
  0 success, 1 unexpected error, 2 usage or configuration error,
  3 file access, 4 parse, 5 transport, 6 HTTP status`,
	Version:       version,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		if noColor {
			ui.DisableColor()
		}
	},
	Run: func(cmd *cobra.Command, args []string) {
		cmd.Help()
	},
}

// Execute runs the root command and returns the process exit code.
func Execute() int {
	err := rootCmd.Execute()
	if err != nil {
		reportError(rootCmd.ErrOrStderr(), err)
	}
	return exitCode(err)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "", "Config file (default: nearest .blueprinter.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Log request diagnostics to stderr")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
	rootCmd.PersistentFlags().String("org", "", "Organization ID (default \"test\")")

	// Version template
	rootCmd.SetVersionTemplate("blueprinter version {{.Version}}\n")
}
