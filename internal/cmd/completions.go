package cmd

import (
	"strings"

	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/secrets"
)

// blueprintExts are the file extensions offered for blueprint arguments.
var blueprintExts = []string{"yaml", "yml", "tmpl"}

// completeBlueprintFiles completes the single blueprint file argument.
func completeBlueprintFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	// Don't complete if we already have an argument
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return blueprintExts, cobra.ShellCompDirectiveFilterFileExt
}

// completeBodyFiles completes the request body argument of decode.
func completeBodyFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	if len(args) > 0 {
		return nil, cobra.ShellCompDirectiveNoFileComp
	}
	return []string{"json", "txt"}, cobra.ShellCompDirectiveFilterFileExt
}

// completeDecryptModes completes the --decrypt flag.
func completeDecryptModes(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	var names []string
	for _, m := range []secrets.Mode{secrets.ModeAuto, secrets.ModeAlways, secrets.ModeNever} {
		if strings.HasPrefix(string(m), toComplete) {
			names = append(names, string(m))
		}
	}
	return names, cobra.ShellCompDirectiveNoFileComp
}

// registerCompletions registers all dynamic completions for commands.
func registerCompletions() {
	pushCmd.ValidArgsFunction = completeBlueprintFiles
	renderCmd.ValidArgsFunction = completeBlueprintFiles
	decodeCmd.ValidArgsFunction = completeBodyFiles

	// Registration fails once a function exists, which is fine on repeat runs.
	for _, c := range []*cobra.Command{pushCmd, renderCmd} {
		_ = c.RegisterFlagCompletionFunc("decrypt", completeDecryptModes)
		_ = c.RegisterFlagCompletionFunc("values", completeValuesFiles)
	}
}

func completeValuesFiles(cmd *cobra.Command, args []string, toComplete string) ([]string, cobra.ShellCompDirective) {
	return []string{"yaml", "yml"}, cobra.ShellCompDirectiveFilterFileExt
}

func init() {
	// Deferred so every command is registered first.
	cobra.OnInitialize(registerCompletions)
}
