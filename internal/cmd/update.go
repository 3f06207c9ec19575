package cmd

import (
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/ui"
	"github.com/cameronsjo/blueprinter/internal/update"
)

var updateCmd = &cobra.Command{
	Use:     "update",
	Aliases: []string{"upgrade", "selfupdate"},
	Short:   "Update blueprinter to the latest version",
	Long: `Update blueprinter to the latest version from GitHub releases.

This command will:
1. Check for a newer version on GitHub
2. Download the appropriate binary for your platform
3. Replace the current binary with the new version

Examples:
  blueprinter update           # Update to latest version
  blueprinter update --check   # Check for updates without installing`,
	Args: cobra.NoArgs,
	RunE: runUpdate,
}

var (
	checkOnly bool
)

// maxChangelogLines caps how much of a changelog is printed.
const maxChangelogLines = 10

func init() {
	rootCmd.AddCommand(updateCmd)
	updateCmd.Flags().BoolVar(&checkOnly, "check", false, "Only check for updates, don't install")
}

func runUpdate(cmd *cobra.Command, args []string) error {
	out := ui.NewPrinter(cmd.OutOrStdout())
	out.Info("Current version: %s (%s)", version, update.GetPlatformInfo())
	out.Info("Checking for updates...")

	updater, err := update.New()
	if err != nil {
		return failure(err)
	}

	if checkOnly {
		release, available, err := updater.Check(cmd.Context(), version)
		if err != nil {
			return failure(err)
		}
		if !available {
			out.Success("You're running the latest version!")
			return nil
		}
		out.Success("New version available: %s (released %s)", release.Version, release.PublishedAt)
		out.Info("To update, run: blueprinter update")
		printChangelog(out, release)
		return nil
	}

	release, err := updater.Apply(cmd.Context(), version)
	if err != nil {
		return failure(err)
	}
	if release == nil {
		out.Success("You're already running the latest version!")
		return nil
	}

	out.Success("Successfully updated to version %s!", release.Version)
	printChangelog(out, release)
	return nil
}

func printChangelog(out *ui.Printer, release *update.Release) {
	lines, omitted := update.ChangelogExcerpt(release.Changelog, maxChangelogLines)
	if len(lines) == 0 {
		return
	}
	out.Println()
	out.Warning("What's new:")
	for _, line := range lines {
		out.Printf("  %s\n", line)
	}
	if omitted > 0 {
		out.Printf("  ... (%d more lines)\n", omitted)
	}
}
