package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	sigsyaml "sigs.k8s.io/yaml"

	"github.com/cameronsjo/blueprinter/internal/blueprint"
	"github.com/cameronsjo/blueprinter/internal/fileutil"
	"github.com/cameronsjo/blueprinter/internal/push"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

var decodeYAML bool

// decodeCmd represents the decode command.
var decodeCmd = &cobra.Command{
	Use:   "decode [file]",
	Short: "Decode a blueprint request body back to JSON",
	Long: `Decode a {"blueprint": "<base64>"} request body, or a bare base64 string,
back into the canonical JSON it carries. Reads stdin when no file is given.

Examples:
  blueprinter render -o body.json && blueprinter decode body.json
  echo eyJhIjogMX0= | blueprinter decode --yaml`,
	Args: cobra.MaximumNArgs(1),
	RunE: runDecode,
}

func init() {
	decodeCmd.Flags().BoolVar(&decodeYAML, "yaml", false, "Print YAML instead of JSON")

	rootCmd.AddCommand(decodeCmd)
}

func runDecode(cmd *cobra.Command, args []string) error {
	path := fileutil.StdinPath
	if len(args) > 0 {
		path = args[0]
	}

	data, err := fileutil.ReadInput(env.fs, cmd.InOrStdin(), path)
	if err != nil {
		return &push.Error{Kind: push.KindFileAccess, Path: path, Err: err}
	}

	canonical, err := blueprint.Unwrap(data)
	if err != nil {
		return &exitError{code: push.KindParse.ExitCode(), err: fmt.Errorf("decode %s: %w", path, err)}
	}

	out := ui.NewPrinter(cmd.OutOrStdout())
	if !decodeYAML {
		out.Println(string(canonical))
		return nil
	}

	y, err := sigsyaml.JSONToYAML(canonical)
	if err != nil {
		return failure(fmt.Errorf("convert to YAML: %w", err))
	}
	out.Printf("%s", y)
	return nil
}
