package cmd

import (
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cameronsjo/blueprinter/internal/push"
)

// blueprintServer records the requests it receives and answers with
// status and body.
type blueprintServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []recordedRequest
}

type recordedRequest struct {
	Method string
	Path   string
	Header http.Header
	Body   []byte
}

func newBlueprintServer(t *testing.T, status int, body string) *blueprintServer {
	t.Helper()
	s := &blueprintServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		data, _ := io.ReadAll(r.Body)
		s.mu.Lock()
		s.requests = append(s.requests, recordedRequest{
			Method: r.Method,
			Path:   r.URL.Path,
			Header: r.Header.Clone(),
			Body:   data,
		})
		s.mu.Unlock()
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *blueprintServer) received() []recordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]recordedRequest(nil), s.requests...)
}

// decodeBody returns the canonical JSON carried by a request body.
func decodeBody(t *testing.T, body []byte) string {
	t.Helper()
	var w struct {
		Blueprint string `json:"blueprint"`
	}
	require.NoError(t, json.Unmarshal(body, &w))
	raw, err := base64.StdEncoding.DecodeString(w.Blueprint)
	require.NoError(t, err)
	return string(raw)
}

const siteYAML = `name: site
resources:
  - id: web
    port: 8080
`

const siteJSON = `{"name": "site", "resources": [{"id": "web", "port": 8080}]}`

func TestPushCmd_Success(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)
	srv := newBlueprintServer(t, http.StatusOK, `{"success": true, "message": "Blueprint applied", "status": 200}`)

	output, err := executeCmd(t, "push", "site.yaml", "--api-url", srv.URL, "--org", "acme", "--token", "secret")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	req := reqs[0]
	assert.Equal(t, http.MethodPut, req.Method)
	assert.Equal(t, "/org/acme/blueprint", req.Path)
	assert.Equal(t, "Bearer secret", req.Header.Get("Authorization"))
	assert.Equal(t, "application/json", req.Header.Get("Content-Type"))
	assert.Equal(t, "*/*", req.Header.Get("Accept"))
	assert.Equal(t, "blueprinter/"+version, req.Header.Get("User-Agent"))
	assert.NotEmpty(t, req.Header.Get("X-Request-Id"))
	assert.Equal(t, siteJSON, decodeBody(t, req.Body))

	assert.Contains(t, output, "Converted JSON payload:\n"+siteJSON+"\n")
	assert.Contains(t, output, "Sending the following Base64 encoded JSON payload:\n"+string(req.Body)+"\n")
	assert.Contains(t, output, "API Response Status Code: 200\n")
	assert.Contains(t, output, "✓ Blueprint site.yaml applied (HTTP 200, request "+req.Header.Get("X-Request-Id")+")")
	assert.Contains(t, output, "Blueprint applied\n")
	assert.NotContains(t, output, "secret")
}

func TestPushCmd_Errors(t *testing.T) {
	tests := []struct {
		name     string
		files    map[string]string
		status   int
		args     []string
		wantCode int
		wantKind push.Kind
		wantHits int
	}{
		{
			name:     "server error",
			files:    map[string]string{"site.yaml": siteYAML},
			status:   http.StatusInternalServerError,
			args:     []string{"push", "site.yaml", "--token", "t"},
			wantCode: 6,
			wantKind: push.KindHTTPStatus,
			wantHits: 1,
		},
		{
			name:     "not found status",
			files:    map[string]string{"site.yaml": siteYAML},
			status:   http.StatusNotFound,
			args:     []string{"push", "site.yaml", "--token", "t"},
			wantCode: 6,
			wantKind: push.KindHTTPStatus,
			wantHits: 1,
		},
		{
			name:     "missing file",
			status:   http.StatusOK,
			args:     []string{"push", "missing.yaml", "--token", "t"},
			wantCode: 3,
			wantKind: push.KindFileAccess,
		},
		{
			name:     "invalid yaml",
			files:    map[string]string{"bad.yaml": "a: [1, 2\n"},
			status:   http.StatusOK,
			args:     []string{"push", "bad.yaml", "--token", "t"},
			wantCode: 4,
			wantKind: push.KindParse,
		},
		{
			name:     "default file missing",
			status:   http.StatusOK,
			args:     []string{"push", "--token", "t"},
			wantCode: 3,
			wantKind: push.KindFileAccess,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := withTestEnv(t)
			for path, content := range tt.files {
				writeFile(t, e, path, content)
			}
			srv := newBlueprintServer(t, tt.status, `{"error": true, "message": "nope"}`)

			args := append(tt.args, "--api-url", srv.URL)
			_, err := executeCmd(t, args...)
			require.Error(t, err)
			assert.Equal(t, tt.wantCode, exitCode(err))
			assert.Equal(t, tt.wantKind, push.KindOf(err))
			assert.Len(t, srv.received(), tt.wantHits)
		})
	}
}

func TestPushCmd_HTTPStatusMessage(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)
	srv := newBlueprintServer(t, http.StatusInternalServerError, `{"message": "boom"}`)

	output, err := executeCmd(t, "push", "site.yaml", "--api-url", srv.URL, "--token", "t")
	require.Error(t, err)

	// The response is still printed before the error is returned.
	assert.Contains(t, output, "API Response Status Code: 500\n")
	assert.Contains(t, output, "API Response Content:\n{\"message\": \"boom\"}\n")
	assert.Contains(t, err.Error(), "500 Internal Server Error for url: "+srv.URL+"/org/test/blueprint")
}

func TestPushCmd_TransportError(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)

	t.Run("connection refused", func(t *testing.T) {
		srv := newBlueprintServer(t, http.StatusOK, "")
		url := srv.URL
		srv.Close()

		_, err := executeCmd(t, "push", "site.yaml", "--url", url+"/org/x/blueprint", "--token", "t")
		require.Error(t, err)
		assert.Equal(t, 5, exitCode(err))
	})

	t.Run("invalid url", func(t *testing.T) {
		_, err := executeCmd(t, "push", "site.yaml", "--url", "://nowhere", "--token", "t")
		require.Error(t, err)
		assert.Equal(t, push.KindTransport, push.KindOf(err))
	})
}

func TestPushCmd_NoToken(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)
	srv := newBlueprintServer(t, http.StatusOK, "")

	_, err := executeCmd(t, "push", "site.yaml", "--api-url", srv.URL, "--org", "acme")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
	assert.Contains(t, err.Error(), `no API token for org "acme"`)
	assert.Empty(t, srv.received())
}

func TestPushCmd_TokenSources(t *testing.T) {
	tests := []struct {
		name    string
		env     map[string]string
		keyring string
		config  string
		args    []string
		want    string
	}{
		{
			name:    "keyring",
			keyring: "from-keyring",
			want:    "from-keyring",
		},
		{
			name:    "env beats keyring",
			env:     map[string]string{"BLUEPRINTER_TOKEN": "from-env"},
			keyring: "from-keyring",
			want:    "from-env",
		},
		{
			name:   "config file",
			config: "auth_token: from-config\n",
			want:   "from-config",
		},
		{
			name:   "flag beats env and config",
			env:    map[string]string{"BLUEPRINTER_AUTH_TOKEN": "from-env"},
			config: "auth_token: from-config\n",
			args:   []string{"--token", "from-flag"},
			want:   "from-flag",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e := withTestEnv(t)
			writeFile(t, e, "site.yaml", siteYAML)
			setEnv(e, tt.env)
			if tt.keyring != "" {
				require.NoError(t, e.store.Set("test", tt.keyring))
			}
			if tt.config != "" {
				writeFile(t, e, testWorkDir+"/.blueprinter.yaml", tt.config)
			}
			srv := newBlueprintServer(t, http.StatusOK, "{}")

			args := append([]string{"push", "site.yaml", "--api-url", srv.URL}, tt.args...)
			_, err := executeCmd(t, args...)
			require.NoError(t, err)

			reqs := srv.received()
			require.Len(t, reqs, 1)
			assert.Equal(t, "Bearer "+tt.want, reqs[0].Header.Get("Authorization"))
		})
	}
}

func TestPushCmd_ConfigFile(t *testing.T) {
	e := withTestEnv(t)
	srv := newBlueprintServer(t, http.StatusOK, "{}")
	writeFile(t, e, "/work/blueprints/site.yaml", "b: 1\na: é\n")
	writeFile(t, e, "/work/.blueprinter.yaml", `file: /work/blueprints/site.yaml
api_url: `+srv.URL+`
org: acme
auth_token: t
sort_keys: true
compact: true
extra_headers:
  X-Team: platform
`)

	_, err := executeCmd(t, "push")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "/org/acme/blueprint", reqs[0].Path)
	assert.Equal(t, "platform", reqs[0].Header.Get("X-Team"))
	assert.Equal(t, `{"a":"\u00e9","b":1}`, decodeBody(t, reqs[0].Body))
}

func TestPushCmd_Headers(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)
	srv := newBlueprintServer(t, http.StatusOK, "{}")

	output, err := executeCmd(t, "push", "site.yaml", "--api-url", srv.URL, "--token", "t",
		"-H", "X-Trace=abc", "--header", "Authorization=Basic nope", "-H", "X-Request-Id=fixed")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, "abc", reqs[0].Header.Get("X-Trace"))
	assert.Equal(t, "Bearer t", reqs[0].Header.Get("Authorization"))
	assert.Equal(t, "fixed", reqs[0].Header.Get("X-Request-Id"))
	assert.Contains(t, output, "request fixed)")
}

func TestPushCmd_InvalidHeader(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml", siteYAML)

	_, err := executeCmd(t, "push", "site.yaml", "--token", "t", "-H", "novalue")
	require.Error(t, err)
	assert.Equal(t, exitUsage, exitCode(err))
}

func TestPushCmd_Stdin(t *testing.T) {
	withTestEnv(t)
	srv := newBlueprintServer(t, http.StatusOK, "{}")

	_, err := executeCmdWithInput(t, "x: 1\n", "push", "-", "--api-url", srv.URL, "--token", "t")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, `{"x": 1}`, decodeBody(t, reqs[0].Body))
}

func TestPushCmd_Template(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml.tmpl", "domain: {{ .domain }}\nreplicas: {{ .replicas | default 1 }}\n")
	writeFile(t, e, "prod.yaml", "replicas: 3\n")
	srv := newBlueprintServer(t, http.StatusOK, "{}")

	_, err := executeCmd(t, "push", "site.yaml.tmpl", "--api-url", srv.URL, "--token", "t",
		"--values", "prod.yaml", "--set", "domain=example.com")
	require.NoError(t, err)

	reqs := srv.received()
	require.Len(t, reqs, 1)
	assert.Equal(t, `{"domain": "example.com", "replicas": 3}`, decodeBody(t, reqs[0].Body))
}

func TestPushCmd_TemplateMissingValue(t *testing.T) {
	e := withTestEnv(t)
	writeFile(t, e, "site.yaml.tmpl", "domain: {{ .domain }}\n")

	_, err := executeCmd(t, "push", "site.yaml.tmpl", "--template", "--token", "t")
	require.Error(t, err)
	assert.Equal(t, push.KindParse, push.KindOf(err))
}

func TestPushCmd_InvalidSettings(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"bad decrypt mode", []string{"--decrypt", "sometimes"}},
		{"negative timeout", []string{"--timeout", "-1s"}},
		{"empty org", []string{"--org", ""}},
		{"too many args", []string{"a.yaml", "b.yaml"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			withTestEnv(t)
			args := append([]string{"push", "--token", "t"}, tt.args...)
			_, err := executeCmd(t, args...)
			require.Error(t, err)
			assert.Equal(t, exitUsage, exitCode(err))
		})
	}
}
