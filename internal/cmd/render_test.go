package cmd

import (
	"testing"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/blueprinter/internal/push"
)

func TestRenderCmd(t *testing.T) {
	tests := []struct {
		name string
		yaml string
		args []string
		want string
	}{
		{
			name: "json and body",
			yaml: "a: 1\n",
			want: "{\"a\": 1}\n{\"blueprint\":\"eyJhIjogMX0=\"}\n",
		},
		{
			name: "json only",
			yaml: "a: 1\n",
			args: []string{"--json"},
			want: "{\"a\": 1}\n",
		},
		{
			name: "sorted compact",
			yaml: "b: [1, 2]\na: x\n",
			args: []string{"--json", "--sort-keys", "--compact"},
			want: "{\"a\":\"x\",\"b\":[1,2]}\n",
		},
		{
			name: "non-ascii kept",
			yaml: "name: café\n",
			args: []string{"--json", "--ensure-ascii=false"},
			want: "{\"name\": \"café\"}\n",
		},
		{
			name: "non-ascii escaped",
			yaml: "name: café\n",
			args: []string{"--json"},
			want: "{\"name\": \"caf\\u00e9\"}\n",
		},
		{
			name: "empty document",
			yaml: "",
			want: "null\n{\"blueprint\":\"bnVsbA==\"}\n",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := withTestEnv(t)
			writeFile(t, e, "site.yaml", tt.yaml)

			args := append([]string{"render", "site.yaml"}, tt.args...)
			output, err := executeCmd(t, args...)
			require.NoError(t, err)
			assert.Equal(t, tt.want, output)
		})
	}
}

func TestRenderCmd_Output(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", "a: 1\n")

	output, err := executeCmd(t, "render", "site.yaml", "-o", "out/body.json")
	require.NoError(t, err)
	assert.Contains(t, output, "✓ Wrote out/body.json")

	data, err := afero.ReadFile(e.fs, "out/body.json")
	require.NoError(t, err)
	assert.Equal(t, `{"blueprint":"eyJhIjogMX0="}`, string(data))

	_, err = executeCmd(t, "render", "site.yaml", "--json", "--output", "out/site.json")
	require.NoError(t, err)

	data, err = afero.ReadFile(e.fs, "out/site.json")
	require.NoError(t, err)
	assert.Equal(t, `{"a": 1}`, string(data))
}

func TestRenderCmd_Errors(t *testing.T) {
	t.Run("missing file", func(t *testing.T) {
		withTestEnv(t)
		_, err := executeCmd(t, "render", "nope.yaml")
		require.Error(t, err)
		assert.Equal(t, push.KindFileAccess, push.KindOf(err))
	})

	t.Run("parse error", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "bad.yaml", "key: [unclosed\n")
		_, err := executeCmd(t, "render", "bad.yaml")
		require.Error(t, err)
		assert.Equal(t, 4, exitCode(err))
	})

	t.Run("does not need a token", func(t *testing.T) {
		e := withTestEnv(t)
		writeFile(t, e, "blueprint.yaml", "a: 1\n")
		_, err := executeCmd(t, "render")
		assert.NoError(t, err)
	})
}
