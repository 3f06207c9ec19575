// Package config handles config file discovery and layered settings.
//
// Settings are resolved from defaults, then the config file, then
// BLUEPRINTER_* environment variables, then command-line flags. Each setting
// remembers which layer supplied it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/blueprinter/internal/blueprint"
	"github.com/cameronsjo/blueprinter/internal/secrets"
)

const (
	// FileName is the config file looked up from the working directory upward.
	FileName = ".blueprinter.yaml"

	// EnvPrefix prefixes every environment override.
	EnvPrefix = "BLUEPRINTER_"

	DefaultFile    = "blueprint.yaml"
	DefaultAPIURL  = "http://api.pangolin.fossorial.io/v1"
	DefaultOrg     = "test"
	DefaultTimeout = 30 * time.Second
)

// Setting keys, as spelled in the config file.
const (
	KeyFile         = "file"
	KeyAPIURL       = "api_url"
	KeyOrg          = "org"
	KeyEndpoint     = "endpoint"
	KeyAuthToken    = "auth_token"
	KeyExtraHeaders = "extra_headers"
	KeyTimeout      = "timeout"
	KeySortKeys     = "sort_keys"
	KeyCompact      = "compact"
	KeyEnsureASCII  = "ensure_ascii"
	KeyDecrypt      = "decrypt"
)

// Keys lists every setting in display order.
var Keys = []string{
	KeyFile, KeyAPIURL, KeyOrg, KeyEndpoint, KeyAuthToken, KeyExtraHeaders,
	KeyTimeout, KeySortKeys, KeyCompact, KeyEnsureASCII, KeyDecrypt,
}

// ErrNotFound indicates no config file exists in the directory or any parent.
var ErrNotFound = errors.New("config file not found")

// Source names the layer that supplied a setting.
type Source string

const (
	SourceDefault Source = "default"
	SourceFile    Source = "file"
	SourceEnv     Source = "env"
	SourceFlag    Source = "flag"
)

// Config holds the effective settings for one run.
type Config struct {
	File         string            `yaml:"file"`
	APIURL       string            `yaml:"api_url"`
	Org          string            `yaml:"org"`
	Endpoint     string            `yaml:"endpoint"`
	AuthToken    string            `yaml:"auth_token"`
	ExtraHeaders map[string]string `yaml:"extra_headers"`
	Timeout      time.Duration     `yaml:"timeout"`
	SortKeys     bool              `yaml:"sort_keys"`
	Compact      bool              `yaml:"compact"`
	EnsureASCII  bool              `yaml:"ensure_ascii"`
	Decrypt      string            `yaml:"decrypt"`

	// Path is the config file that was loaded, if any.
	Path string `yaml:"-"`

	sources map[string]Source
}

// Default returns a Config holding only defaults.
func Default() *Config {
	cfg := &Config{
		File:         DefaultFile,
		APIURL:       DefaultAPIURL,
		Org:          DefaultOrg,
		ExtraHeaders: map[string]string{},
		Timeout:      DefaultTimeout,
		EnsureASCII:  true,
		Decrypt:      string(secrets.ModeAuto),
		sources:      make(map[string]Source, len(Keys)),
	}
	for _, k := range Keys {
		cfg.sources[k] = SourceDefault
	}
	return cfg
}

// FindFile searches upward from dir for FileName.
func FindFile(fs afero.Fs, dir string) (string, error) {
	dir, err := filepath.Abs(dir)
	if err != nil {
		return "", fmt.Errorf("resolve directory: %w", err)
	}

	for {
		candidate := filepath.Join(dir, FileName)
		if info, err := fs.Stat(candidate); err == nil && !info.IsDir() {
			return candidate, nil
		}

		// Move up one directory
		parent := filepath.Dir(dir)
		if parent == dir {
			break
		}
		dir = parent
	}

	return "", ErrNotFound
}

// Options controls Load.
type Options struct {
	// Path is an explicit config file. It must exist when set.
	Path string

	// Dir is where discovery starts when Path is empty.
	Dir string

	// LookupEnv reads environment variables. Nil means os.LookupEnv.
	LookupEnv func(string) (string, bool)
}

// Load resolves defaults, the config file and the environment.
// Flags are applied afterwards by the caller through Set.
func Load(fs afero.Fs, opts Options) (*Config, error) {
	cfg := Default()

	path := opts.Path
	if path == "" {
		found, err := FindFile(fs, opts.Dir)
		switch {
		case err == nil:
			path = found
		case !errors.Is(err, ErrNotFound):
			return nil, err
		}
	}

	if path != "" {
		if err := cfg.LoadFile(fs, path); err != nil {
			return nil, err
		}
	}

	lookup := opts.LookupEnv
	if lookup == nil {
		lookup = os.LookupEnv
	}
	if err := cfg.ApplyEnv(lookup); err != nil {
		return nil, err
	}

	return cfg, nil
}

// LoadFile overlays the settings present in the YAML file at path.
// Unknown keys are rejected.
func (c *Config) LoadFile(fs afero.Fs, path string) error {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return fmt.Errorf("read config %s: %w", path, err)
	}

	var present map[string]any
	if err := yaml.Unmarshal(data, &present); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if len(present) == 0 {
		c.Path = path
		return nil
	}

	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("parse config %s: %w", path, err)
	}
	if c.ExtraHeaders == nil {
		c.ExtraHeaders = map[string]string{}
	}

	for key := range present {
		c.sources[key] = SourceFile
	}
	c.Path = path
	return nil
}

// ApplyEnv overlays BLUEPRINTER_<KEY> variables. BLUEPRINTER_TOKEN is
// accepted as a shorter spelling of BLUEPRINTER_AUTH_TOKEN.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, key := range Keys {
		name := EnvPrefix + strings.ToUpper(key)
		val, ok := lookup(name)
		if !ok && key == KeyAuthToken {
			name = EnvPrefix + "TOKEN"
			val, ok = lookup(name)
		}
		if !ok {
			continue
		}
		if err := c.Set(key, val, SourceEnv); err != nil {
			return fmt.Errorf("%s: %w", name, err)
		}
	}
	return nil
}

// Set parses raw for key and records source. extra_headers takes a comma
// separated list of name=value pairs and adds to the existing headers.
func (c *Config) Set(key, raw string, source Source) error {
	switch key {
	case KeyFile:
		c.File = raw
	case KeyAPIURL:
		c.APIURL = raw
	case KeyOrg:
		c.Org = raw
	case KeyEndpoint:
		c.Endpoint = raw
	case KeyAuthToken:
		c.AuthToken = raw
	case KeyExtraHeaders:
		var pairs []string
		for _, p := range strings.Split(raw, ",") {
			if p = strings.TrimSpace(p); p != "" {
				pairs = append(pairs, p)
			}
		}
		return c.AddHeaders(pairs, source)
	case KeyTimeout:
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid timeout %q: %w", raw, err)
		}
		c.Timeout = d
	case KeySortKeys, KeyCompact, KeyEnsureASCII:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid %s %q: %w", key, raw, err)
		}
		switch key {
		case KeySortKeys:
			c.SortKeys = b
		case KeyCompact:
			c.Compact = b
		default:
			c.EnsureASCII = b
		}
	case KeyDecrypt:
		c.Decrypt = raw
	default:
		return fmt.Errorf("unknown setting %q", key)
	}
	c.sources[key] = source
	return nil
}

// AddHeaders adds name=value pairs to the extra headers.
func (c *Config) AddHeaders(pairs []string, source Source) error {
	if len(pairs) == 0 {
		return nil
	}
	for _, p := range pairs {
		name, val, ok := strings.Cut(p, "=")
		name = strings.TrimSpace(name)
		if !ok || name == "" {
			return fmt.Errorf("invalid header %q (want name=value)", p)
		}
		c.ExtraHeaders[name] = strings.TrimSpace(val)
	}
	c.sources[KeyExtraHeaders] = source
	return nil
}

// Source returns the layer that supplied key.
func (c *Config) Source(key string) Source {
	if s, ok := c.sources[key]; ok {
		return s
	}
	return SourceDefault
}

// Validate checks settings that cannot be checked while parsing.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.File) == "" {
		return errors.New("file must not be empty")
	}
	if c.Timeout < 0 {
		return fmt.Errorf("timeout must not be negative, got %s", c.Timeout)
	}
	if _, err := secrets.ParseMode(c.Decrypt); err != nil {
		return err
	}
	if c.Endpoint == "" && strings.TrimSpace(c.Org) == "" {
		return errors.New("org must not be empty when endpoint is not set")
	}
	return nil
}

// URL returns the upload endpoint: Endpoint when set, otherwise
// <api_url>/org/<org>/blueprint.
func (c *Config) URL() (string, error) {
	if c.Endpoint != "" {
		return c.Endpoint, nil
	}
	u, err := url.JoinPath(c.APIURL, "org", c.Org, "blueprint")
	if err != nil {
		return "", fmt.Errorf("build endpoint from %q: %w", c.APIURL, err)
	}
	return u, nil
}

// Format returns the canonical JSON format selected by the settings.
func (c *Config) Format() blueprint.Format {
	return blueprint.Format{
		SortKeys:    c.SortKeys,
		Compact:     c.Compact,
		EnsureASCII: c.EnsureASCII,
	}
}

// DecryptMode returns the parsed decrypt mode. Call Validate first.
func (c *Config) DecryptMode() secrets.Mode {
	m, err := secrets.ParseMode(c.Decrypt)
	if err != nil {
		return secrets.ModeAuto
	}
	return m
}

// Setting is one row of the effective configuration.
type Setting struct {
	Key    string
	Value  string
	Source Source
}

// Settings returns every setting in display order. The token is never
// included in clear text.
func (c *Config) Settings() []Setting {
	out := make([]Setting, 0, len(Keys))
	for _, key := range Keys {
		out = append(out, Setting{Key: key, Value: c.display(key), Source: c.Source(key)})
	}
	return out
}

func (c *Config) display(key string) string {
	switch key {
	case KeyFile:
		return c.File
	case KeyAPIURL:
		return c.APIURL
	case KeyOrg:
		return c.Org
	case KeyEndpoint:
		if c.Endpoint == "" {
			if u, err := c.URL(); err == nil {
				return u + " (derived)"
			}
		}
		return c.Endpoint
	case KeyAuthToken:
		if c.AuthToken == "" {
			return ""
		}
		return "(set)"
	case KeyExtraHeaders:
		names := make([]string, 0, len(c.ExtraHeaders))
		for name := range c.ExtraHeaders {
			names = append(names, name)
		}
		sort.Strings(names)
		return strings.Join(names, ", ")
	case KeyTimeout:
		return c.Timeout.String()
	case KeySortKeys:
		return strconv.FormatBool(c.SortKeys)
	case KeyCompact:
		return strconv.FormatBool(c.Compact)
	case KeyEnsureASCII:
		return strconv.FormatBool(c.EnsureASCII)
	case KeyDecrypt:
		return c.Decrypt
	}
	return ""
}

// Starter is the config file written by "config init".
const Starter = `# blueprinter configuration
file: blueprint.yaml
api_url: http://api.pangolin.fossorial.io/v1
org: test
# endpoint overrides api_url and org when set
# endpoint: https://api.example.com/v1/org/acme/blueprint
# auth_token is better kept in the keyring: blueprinter auth login
extra_headers: {}
timeout: 30s
sort_keys: false
compact: false
ensure_ascii: true
decrypt: auto
`
