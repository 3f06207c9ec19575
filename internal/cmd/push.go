package cmd

import (
	"errors"
	"fmt"

	"github.com/go-kit/log/level"
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/client"
	"github.com/cameronsjo/blueprinter/internal/credentials"
	"github.com/cameronsjo/blueprinter/internal/push"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

// pushCmd represents the push command.
var pushCmd = &cobra.Command{
	Use:     "push [file]",
	Aliases: []string{"apply"},
	Short:   "Convert a YAML blueprint and upload it",
	Long: `Convert a YAML blueprint to canonical JSON, base64-encode it and PUT it
as {"blueprint": "<base64>"} to the organization's blueprint endpoint.

The file defaults to blueprint.yaml; "-" reads stdin. The endpoint is
<api-url>/org/<org>/blueprint unless --url gives it in full.

The token is taken from --token, BLUEPRINTER_TOKEN, auth_token in the config
file, or the OS keyring (see "blueprinter auth login"), in that order.

Examples:
  blueprinter push
  blueprinter push site.yaml --org acme
  blueprinter push site.yaml --url https://api.example.com/v1/org/acme/blueprint
  blueprinter push site.yaml.tmpl --set domain=example.com --values prod.yaml
  cat site.yaml | blueprinter push -`,
	Args: cobra.MaximumNArgs(1),
	RunE: runPush,
}

func init() {
	pushCmd.Flags().String("url", "", "Full endpoint URL (overrides --api-url and --org)")
	pushCmd.Flags().String("api-url", "", "API base URL (default \"http://api.pangolin.fossorial.io/v1\")")
	pushCmd.Flags().String("token", "", "Bearer token")
	pushCmd.Flags().StringArrayP("header", "H", nil, "Extra request header as name=value (repeatable)")
	pushCmd.Flags().Duration("timeout", 0, "Request timeout (default 30s)")
	addFormatFlags(pushCmd)
	addTemplateFlags(pushCmd)

	rootCmd.AddCommand(pushCmd)
}

func runPush(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, args)
	if err != nil {
		return err
	}

	token, source, err := env.store.Resolve(cfg.Org, tokenCandidate(cfg))
	if errors.Is(err, credentials.ErrNoToken) {
		return usageError(fmt.Errorf("no API token for org %q: pass --token, set BLUEPRINTER_TOKEN or run 'blueprinter auth login'", cfg.Org))
	}
	if err != nil {
		return failure(err)
	}

	endpoint, err := cfg.URL()
	if err != nil {
		return usageError(err)
	}

	logger := newLogger(cmd.ErrOrStderr())
	level.Debug(logger).Log("msg", "resolved settings", "endpoint", endpoint, "token_source", source, "config", cfg.Path)

	sender := env.newSender(client.Config{
		Timeout:   cfg.Timeout,
		UserAgent: "blueprinter/" + version,
	}, client.WithLogger(logger))

	p, err := newPusher(cmd, sender, logger)
	if err != nil {
		return err
	}

	res, err := p.Push(cmd.Context(), push.Request{
		Path:    cfg.File,
		URL:     endpoint,
		Token:   token,
		Headers: cfg.ExtraHeaders,
		Format:  cfg.Format(),
		Decrypt: cfg.DecryptMode(),
	})
	if err != nil {
		return err
	}

	out := ui.NewPrinter(cmd.OutOrStdout())
	out.Success("Blueprint %s applied (HTTP %d, request %s)", cfg.File, res.StatusCode, res.RequestID)
	if res.Reply != nil && res.Reply.Message != "" {
		out.Info("%s", res.Reply.Message)
	}
	return nil
}
