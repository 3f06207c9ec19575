// Package templating renders blueprint files as Go templates before parsing.
//
// Templates see the merged values as their root context and have every sprig
// function available. A reference to a missing value is an error rather than
// "<no value>".
package templating

import (
	"bytes"
	"errors"
	"fmt"
	"strings"
	"text/template"

	"github.com/Masterminds/sprig/v3"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"

	"github.com/cameronsjo/blueprinter/internal/fileutil"
)

// ErrTemplate wraps every parse or execution failure.
var ErrTemplate = errors.New("template error")

// Values is the root template context.
type Values map[string]any

// Renderer renders templates against a fixed set of values.
type Renderer struct {
	values Values
	fs     afero.Fs
}

// New creates a Renderer. Files referenced by the include function are read
// from fs.
func New(fs afero.Fs, values Values) *Renderer {
	if values == nil {
		values = Values{}
	}
	return &Renderer{values: values, fs: fs}
}

// Render executes data as a template named name.
func (r *Renderer) Render(name string, data []byte) ([]byte, error) {
	tmpl, err := template.New(name).
		Option("missingkey=error").
		Funcs(sprig.TxtFuncMap()).
		Funcs(r.funcs()).
		Parse(string(data))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, map[string]any(r.values)); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrTemplate, err)
	}
	return buf.Bytes(), nil
}

func (r *Renderer) funcs() template.FuncMap {
	return template.FuncMap{
		"include": func(path string) (string, error) {
			data, err := fileutil.ReadFile(r.fs, path)
			if err != nil {
				return "", fmt.Errorf("include %s: %w", path, err)
			}
			return string(data), nil
		},
	}
}

// LoadValues reads a YAML values file. Later files passed to Merge win.
func LoadValues(fs afero.Fs, path string) (Values, error) {
	data, err := fileutil.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("read values %s: %w", path, err)
	}

	values := Values{}
	if err := yaml.Unmarshal(data, &values); err != nil {
		return nil, fmt.Errorf("parse values %s: %w", path, err)
	}
	return values, nil
}

// Merge recursively merges src into dst and returns dst.
// Nested maps are merged; any other value in src replaces the one in dst.
func Merge(dst, src Values) Values {
	if dst == nil {
		dst = Values{}
	}
	for key, srcVal := range src {
		if srcMap, ok := asMap(srcVal); ok {
			if dstMap, ok := asMap(dst[key]); ok {
				dst[key] = map[string]any(Merge(dstMap, srcMap))
				continue
			}
		}
		dst[key] = srcVal
	}
	return dst
}

// Set applies key=value assignments. Dotted keys address nested maps,
// creating them as needed: "site.name=web" sets values["site"]["name"].
// Values are always strings.
func Set(values Values, assignments []string) (Values, error) {
	if values == nil {
		values = Values{}
	}
	for _, a := range assignments {
		key, val, ok := strings.Cut(a, "=")
		if !ok || key == "" {
			return nil, fmt.Errorf("invalid assignment %q (want key=value)", a)
		}

		parts := strings.Split(key, ".")
		cur := values
		for _, p := range parts[:len(parts)-1] {
			if p == "" {
				return nil, fmt.Errorf("invalid key %q", key)
			}
			next, ok := asMap(cur[p])
			if !ok {
				next = Values{}
			}
			cur[p] = map[string]any(next)
			cur = next
		}

		last := parts[len(parts)-1]
		if last == "" {
			return nil, fmt.Errorf("invalid key %q", key)
		}
		cur[last] = val
	}
	return values, nil
}

func asMap(v any) (Values, bool) {
	switch m := v.(type) {
	case map[string]any:
		return Values(m), true
	case Values:
		return m, true
	default:
		return nil, false
	}
}
