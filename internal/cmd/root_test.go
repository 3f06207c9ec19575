package cmd

import (
	"bytes"
	"errors"
	"io/fs"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/cameronsjo/blueprinter/internal/push"
)

func TestRootCmd_Execute(t *testing.T) {
	withTestEnv(t)

	t.Run("root command shows help", func(t *testing.T) {
		output, err := executeCmd(t)
		assert.NoError(t, err)
		assert.Contains(t, output, "EXIT CODES")
	})

	t.Run("help flag", func(t *testing.T) {
		output, err := executeCmd(t, "--help")
		assert.NoError(t, err)
		assert.Contains(t, output, "blueprinter")
		assert.Contains(t, output, "/org/<org>/blueprint")
	})

	t.Run("version flag", func(t *testing.T) {
		output, err := executeCmd(t, "--version")
		assert.NoError(t, err)
		assert.Equal(t, "blueprinter version "+version+"\n", output)
	})

	t.Run("unknown command is a usage error", func(t *testing.T) {
		_, err := executeCmd(t, "frobnicate")
		assert.Error(t, err)
		assert.Equal(t, exitUsage, exitCode(err))
	})

	t.Run("unknown flag is a usage error", func(t *testing.T) {
		_, err := executeCmd(t, "push", "--frobnicate")
		assert.Error(t, err)
		assert.Equal(t, exitUsage, exitCode(err))
	})
}

func TestRootCmd_Structure(t *testing.T) {
	t.Run("has expected subcommands", func(t *testing.T) {
		resetRootCmd(t)
		commandNames := make([]string, 0)
		for _, cmd := range rootCmd.Commands() {
			commandNames = append(commandNames, cmd.Name())
		}

		for _, name := range []string{"push", "render", "decode", "auth", "config", "update"} {
			assert.Contains(t, commandNames, name)
		}
	})

	t.Run("has persistent flags", func(t *testing.T) {
		for _, name := range []string{"config", "debug", "no-color", "org"} {
			assert.NotNil(t, rootCmd.PersistentFlags().Lookup(name), name)
		}
	})

	t.Run("apply is an alias of push", func(t *testing.T) {
		cmd, _, err := rootCmd.Find([]string{"apply"})
		assert.NoError(t, err)
		assert.Equal(t, pushCmd, cmd)
	})
}

func TestExitCode(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want int
	}{
		{"nil", nil, 0},
		{"file access", &push.Error{Kind: push.KindFileAccess}, 3},
		{"parse", &push.Error{Kind: push.KindParse}, 4},
		{"transport", &push.Error{Kind: push.KindTransport}, 5},
		{"http status", &push.Error{Kind: push.KindHTTPStatus}, 6},
		{"unknown push error", &push.Error{Kind: push.KindUnknown}, 1},
		{"usage", usageError(errors.New("bad")), 2},
		{"failure", failure(errors.New("boom")), 1},
		{"cobra error", errors.New(`unknown flag: --nope`), 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, exitCode(tt.err))
		})
	}
}

func TestReportError(t *testing.T) {
	t.Run("push error shows kind", func(t *testing.T) {
		var buf bytes.Buffer
		reportError(&buf, &push.Error{Kind: push.KindFileAccess, Path: "missing.yaml", Err: fs.ErrNotExist})
		assert.Equal(t, "✗ FileAccessError: The file 'missing.yaml' was not found.\n", buf.String())
	})

	t.Run("usage error points at help", func(t *testing.T) {
		var buf bytes.Buffer
		reportError(&buf, usageError(errors.New("bad flag")))
		assert.Contains(t, buf.String(), "✗ bad flag\n")
		assert.Contains(t, buf.String(), "blueprinter --help")
	})

	t.Run("failure has no hint", func(t *testing.T) {
		var buf bytes.Buffer
		reportError(&buf, failure(errors.New("boom")))
		assert.Equal(t, "✗ boom\n", buf.String())
	})
}
