package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/blueprinter/internal/config"
)

func TestConfigCmd(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		withTestEnv(t)

		output, err := executeCmd(t, "config")
		require.NoError(t, err)
		assert.Contains(t, output, "Config file: none")
		assert.Contains(t, output, "SETTING")
		assert.Contains(t, output, "api_url")
		assert.Contains(t, output, config.DefaultAPIURL)
		assert.Contains(t, output, config.DefaultAPIURL+"/org/test/blueprint (derived)")
	})

	t.Run("sources", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "/work/.blueprinter.yaml", "org: from-file\nauth_token: hidden-token\n")
		setEnv(e, map[string]string{"BLUEPRINTER_TIMEOUT": "5s"})

		output, err := executeCmd(t, "config", "--org", "from-flag")
		require.NoError(t, err)
		assert.Contains(t, output, "Config file: /work/.blueprinter.yaml")
		assert.Contains(t, output, "from-flag")
		assert.NotContains(t, output, "from-file")
		assert.Contains(t, output, "5s")
		assert.Contains(t, output, "(set)")
		assert.NotContains(t, output, "hidden-token")
	})

	t.Run("bad config file", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "/work/.blueprinter.yaml", "unknown_key: 1\n")

		_, err := executeCmd(t, "config")
		require.Error(t, err)
		assert.Equal(t, exitUsage, exitCode(err))
	})

	t.Run("explicit config file missing", func(t *testing.T) {
		withTestEnv(t)

		_, err := executeCmd(t, "config", "--config", "/nowhere.yaml")
		require.Error(t, err)
		assert.Equal(t, exitUsage, exitCode(err))
	})
}

func TestConfigInitCmd(t *testing.T) {
	t.Run("writes starter to working directory", func(t *testing.T) {
		e := withTestEnv(t)

		output, err := executeCmd(t, "config", "init")
		require.NoError(t, err)
		assert.Contains(t, output, "✓ Wrote /work/.blueprinter.yaml")

		data, err := afero.ReadFile(e.fs, "/work/.blueprinter.yaml")
		require.NoError(t, err)
		assert.Equal(t, config.Starter, string(data))

		// The starter must load cleanly.
		_, err = executeCmd(t, "config")
		assert.NoError(t, err)
	})

	t.Run("respects --config", func(t *testing.T) {
		e := withTestEnv(t)

		_, err := executeCmd(t, "config", "init", "--config", "/etc/blueprinter/config.yaml")
		require.NoError(t, err)

		exists, err := afero.Exists(e.fs, "/etc/blueprinter/config.yaml")
		require.NoError(t, err)
		assert.True(t, exists)
	})

	t.Run("refuses to overwrite", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "/work/.blueprinter.yaml", "org: mine\n")

		_, err := executeCmd(t, "config", "init")
		require.Error(t, err)
		assert.Equal(t, exitUsage, exitCode(err))

		data, err := afero.ReadFile(e.fs, "/work/.blueprinter.yaml")
		require.NoError(t, err)
		assert.Equal(t, "org: mine\n", string(data))
	})

	t.Run("force overwrites", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "/work/.blueprinter.yaml", "org: mine\n")

		_, err := executeCmd(t, "config", "init", "--force")
		require.NoError(t, err)

		data, err := afero.ReadFile(e.fs, "/work/.blueprinter.yaml")
		require.NoError(t, err)
		assert.Equal(t, config.Starter, string(data))
	})
}
