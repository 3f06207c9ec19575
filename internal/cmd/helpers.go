package cmd

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-kit/log"
	"github.com/go-kit/log/level"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/cameronsjo/blueprinter/internal/client"
	"github.com/cameronsjo/blueprinter/internal/config"
	"github.com/cameronsjo/blueprinter/internal/credentials"
	"github.com/cameronsjo/blueprinter/internal/push"
	"github.com/cameronsjo/blueprinter/internal/secrets"
	"github.com/cameronsjo/blueprinter/internal/templating"
	"github.com/cameronsjo/blueprinter/internal/ui"
)

// Exit codes not tied to a push error kind.
const (
	exitUnknown = 1
	exitUsage   = 2
)

// environment holds the process-level dependencies commands use.
// Tests swap it out.
type environment struct {
	fs        afero.Fs
	getwd     func() (string, error)
	lookupEnv func(string) (string, bool)
	newSender func(cfg client.Config, opts ...client.Option) client.Sender
	decryptor push.Decryptor
	store     *credentials.Store
	tokenIn   *os.File
	spinOut   io.Writer
}

func defaultEnvironment() *environment {
	return &environment{
		fs:        afero.NewOsFs(),
		getwd:     os.Getwd,
		lookupEnv: os.LookupEnv,
		newSender: func(cfg client.Config, opts ...client.Option) client.Sender {
			return client.NewHTTPSender(cfg, opts...)
		},
		decryptor: secrets.NewDecryptor(),
		store:     credentials.NewStore(),
		tokenIn:   os.Stdin,
		spinOut:   os.Stderr,
	}
}

var env = defaultEnvironment()

// exitError carries an exit code for failures outside the push pipeline.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error {
	return &exitError{code: exitUsage, err: err}
}

func failure(err error) error {
	return &exitError{code: exitUnknown, err: err}
}

// exitCode maps a command error to a process exit code. Errors that are
// neither push errors nor exitErrors come from cobra's argument and flag
// parsing and count as usage errors.
func exitCode(err error) int {
	if err == nil {
		return 0
	}
	var pe *push.Error
	if errors.As(err, &pe) {
		return pe.Kind.ExitCode()
	}
	var ee *exitError
	if errors.As(err, &ee) {
		return ee.code
	}
	return exitUsage
}

func reportError(w io.Writer, err error) {
	p := ui.NewPrinter(w)
	var pe *push.Error
	if errors.As(err, &pe) {
		p.Error("%s: %s", pe.Kind, pe.Error())
		return
	}
	p.Error("%v", err)
	if exitCode(err) == exitUsage {
		p.Printf("Run 'blueprinter --help' for usage.\n")
	}
}

func newLogger(w io.Writer) log.Logger {
	logger := log.NewLogfmtLogger(log.NewSyncWriter(w))
	logger = log.With(logger, "ts", log.DefaultTimestampUTC)
	if debug {
		return level.NewFilter(logger, level.AllowDebug())
	}
	return level.NewFilter(logger, level.AllowWarn())
}

// settingFlags maps flag names to the config keys they override.
var settingFlags = map[string]string{
	"url":          config.KeyEndpoint,
	"api-url":      config.KeyAPIURL,
	"org":          config.KeyOrg,
	"token":        config.KeyAuthToken,
	"timeout":      config.KeyTimeout,
	"sort-keys":    config.KeySortKeys,
	"compact":      config.KeyCompact,
	"ensure-ascii": config.KeyEnsureASCII,
	"decrypt":      config.KeyDecrypt,
}

// loadConfig resolves settings from defaults, the config file, the
// environment and the flags set on cmd. A positional argument names the file.
func loadConfig(cmd *cobra.Command, args []string) (*config.Config, error) {
	dir, err := env.getwd()
	if err != nil {
		return nil, failure(fmt.Errorf("get working directory: %w", err))
	}

	cfg, err := config.Load(env.fs, config.Options{Path: configPath, Dir: dir, LookupEnv: env.lookupEnv})
	if err != nil {
		return nil, usageError(err)
	}

	for name, key := range settingFlags {
		f := cmd.Flags().Lookup(name)
		if f == nil || !f.Changed {
			continue
		}
		if err := cfg.Set(key, f.Value.String(), config.SourceFlag); err != nil {
			return nil, usageError(fmt.Errorf("--%s: %w", name, err))
		}
	}

	if cmd.Flags().Lookup("header") != nil {
		headers, err := cmd.Flags().GetStringArray("header")
		if err != nil {
			return nil, usageError(err)
		}
		if err := cfg.AddHeaders(headers, config.SourceFlag); err != nil {
			return nil, usageError(fmt.Errorf("--header: %w", err))
		}
	}

	if len(args) > 0 {
		if err := cfg.Set(config.KeyFile, args[0], config.SourceFlag); err != nil {
			return nil, usageError(err)
		}
	}

	if err := cfg.Validate(); err != nil {
		return nil, usageError(fmt.Errorf("invalid configuration: %w", err))
	}
	return cfg, nil
}

// tokenCandidate presents the configured token to the credential resolver
// under the layer that supplied it.
func tokenCandidate(cfg *config.Config) credentials.Candidate {
	var source credentials.Source
	switch cfg.Source(config.KeyAuthToken) {
	case config.SourceFlag:
		source = credentials.SourceFlag
	case config.SourceEnv:
		source = credentials.SourceEnv
	default:
		source = credentials.SourceConfig
	}
	return credentials.Candidate{Source: source, Token: cfg.AuthToken}
}

// addTemplateFlags registers the flags read by newRenderer.
func addTemplateFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("template", false, "Render the file as a Go template (sprig functions available)")
	cmd.Flags().StringArray("set", nil, "Template value as key=value, dotted keys nest (repeatable, implies --template)")
	cmd.Flags().StringArray("values", nil, "YAML file of template values (repeatable, implies --template)")
}

// addFormatFlags registers the canonical JSON format flags.
func addFormatFlags(cmd *cobra.Command) {
	cmd.Flags().Bool("sort-keys", false, "Sort object keys instead of keeping document order")
	cmd.Flags().Bool("compact", false, "Use compact separators (\",\" and \":\")")
	cmd.Flags().Bool("ensure-ascii", true, "Escape non-ASCII characters as \\uXXXX")
	cmd.Flags().String("decrypt", "", "SOPS decryption: auto, always or never (default \"auto\")")
}

// newRenderer returns a template renderer when any template flag is set,
// otherwise nil.
func newRenderer(cmd *cobra.Command) (push.Renderer, error) {
	enabled, _ := cmd.Flags().GetBool("template")
	sets, _ := cmd.Flags().GetStringArray("set")
	files, _ := cmd.Flags().GetStringArray("values")
	if !enabled && len(sets) == 0 && len(files) == 0 {
		return nil, nil
	}

	values := templating.Values{}
	for _, f := range files {
		v, err := templating.LoadValues(env.fs, f)
		if err != nil {
			return nil, usageError(err)
		}
		values = templating.Merge(values, v)
	}

	values, err := templating.Set(values, sets)
	if err != nil {
		return nil, usageError(fmt.Errorf("--set: %w", err))
	}
	return templating.New(env.fs, values), nil
}

// newPusher builds a Pusher wired to the command's streams.
func newPusher(cmd *cobra.Command, sender client.Sender, logger log.Logger) (*push.Pusher, error) {
	opts := []push.Option{
		push.WithFs(env.fs),
		push.WithStdin(cmd.InOrStdin()),
		push.WithOutput(cmd.OutOrStdout()),
		push.WithLogger(logger),
		push.WithDecryptor(env.decryptor),
		push.WithProgress(func(msg string) func() {
			return ui.Spin(env.spinOut, msg)
		}),
	}

	renderer, err := newRenderer(cmd)
	if err != nil {
		return nil, err
	}
	if renderer != nil {
		opts = append(opts, push.WithRenderer(renderer))
	}
	return push.New(sender, opts...), nil
}
