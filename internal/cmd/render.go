package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/fileutil"
	"github.com/cameronsjo/blueprinter/internal/push"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

var (
	renderJSONOnly bool
	renderOutput   string
)

// renderCmd represents the render command.
var renderCmd = &cobra.Command{
	Use:   "render [file]",
	Short: "Convert a blueprint without uploading it",
	Long: `Convert a YAML blueprint exactly as push would, without a network call.

By default the canonical JSON and the request body are printed, one per line.
With --json only the canonical JSON is printed. With --output the result is
written to a file instead (atomically, never leaving a partial file).

Examples:
  blueprinter render
  blueprinter render site.yaml --json --sort-keys
  blueprinter render site.yaml.tmpl --set domain=example.com -o body.json`,
	Args: cobra.MaximumNArgs(1),
	RunE: runRender,
}

func init() {
	renderCmd.Flags().BoolVar(&renderJSONOnly, "json", false, "Print only the canonical JSON")
	renderCmd.Flags().StringVarP(&renderOutput, "output", "o", "", "Write the request body (or JSON with --json) to a file")
	addFormatFlags(renderCmd)
	addTemplateFlags(renderCmd)

	rootCmd.AddCommand(renderCmd)
}

func runRender(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	p, err := newPusher(cmd, nil, newLogger(cmd.ErrOrStderr()))
	if err != nil {
		return err
	}

	payload, err := p.Load(push.Request{
		Path:    cfg.File,
		Format:  cfg.Format(),
		Decrypt: cfg.DecryptMode(),
	})
	if err != nil {
		return err
	}

	body, err := payload.Wrapper.Marshal()
	if err != nil {
		return failure(err)
	}

	out := ui.NewPrinter(cmd.OutOrStdout())

	if renderOutput == "" {
		out.Println(string(payload.JSON))
		if !renderJSONOnly {
			out.Println(string(body))
		}
		return nil
	}

	content := body
	if renderJSONOnly {
		content = payload.JSON
	}
	if err := fileutil.WriteFileAtomic(env.fs, renderOutput, content, 0644); err != nil {
		return &push.Error{Kind: push.KindFileAccess, Path: renderOutput, Err: err}
	}
	out.Success("Wrote %s (%s)", renderOutput, ui.Size(len(content)))
	return nil
}
