package cmd

import (
	"errors"
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/credentials"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

// authCmd represents the auth command group.
var authCmd = &cobra.Command{
	Use:   "auth",
	Short: "Manage the API token",
	Long: `Manage the bearer token used by push.

Tokens are kept in the OS keyring (Keychain, Secret Service, Windows
Credential Manager), one per organization.`,
}

var authLoginCmd = &cobra.Command{
	Use:   "login",
	Short: "Store an API token in the OS keyring",
	Long: `Store an API token for the organization in the OS keyring.

The token is read from --token or prompted for without echo. When stdin is
not a terminal the first line of stdin is used.

Examples:
  blueprinter auth login --org acme
  echo "$TOKEN" | blueprinter auth login --org acme`,
	Args: cobra.NoArgs,
	RunE: runAuthLogin,
}

var authLogoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Remove the stored API token",
	Args:  cobra.NoArgs,
	RunE:  runAuthLogout,
}

var authStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show which API token push would use",
	Args:  cobra.NoArgs,
	RunE:  runAuthStatus,
}

var loginToken string

func init() {
	authLoginCmd.Flags().StringVar(&loginToken, "token", "", "Token to store (prompted for when omitted)")

	authCmd.AddCommand(authLoginCmd)
	authCmd.AddCommand(authLogoutCmd)
	authCmd.AddCommand(authStatusCmd)
	rootCmd.AddCommand(authCmd)
}

func runAuthLogin(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	token := strings.TrimSpace(loginToken)
	if token == "" {
		token, err = credentials.Prompt(env.tokenIn, cmd.OutOrStdout())
		if errors.Is(err, credentials.ErrNoToken) {
			return usageError(errors.New("no token entered"))
		}
		if err != nil {
			return failure(err)
		}
	}

	if err := env.store.Set(cfg.Org, token); err != nil {
		return failure(err)
	}

	ui.NewPrinter(cmd.OutOrStdout()).Success("Token for org %s saved to the keyring", cfg.Org)
	return nil
}

func runAuthLogout(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	if err := env.store.Delete(cfg.Org); err != nil {
		return failure(err)
	}

	ui.NewPrinter(cmd.OutOrStdout()).Success("Token for org %s removed from the keyring", cfg.Org)
	return nil
}

func runAuthStatus(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd, nil)
	if err != nil {
		return err
	}

	out := ui.NewPrinter(cmd.OutOrStdout())
	token, source, err := env.store.Resolve(cfg.Org, tokenCandidate(cfg))
	if errors.Is(err, credentials.ErrNoToken) {
		out.Warning("No token for org %s", cfg.Org)
		out.Info("Run 'blueprinter auth login --org %s' to store one.", cfg.Org)
		return nil
	}
	if err != nil {
		return failure(err)
	}

	out.Success("Token for org %s: %s (from %s)", cfg.Org, credentials.Mask(token), source)
	return nil
}
