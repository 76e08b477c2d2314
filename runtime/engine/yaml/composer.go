package yaml

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/security"
	"github.com/BDNK1/flowtest/runtime/template"
	"github.com/Jeffail/gabs/v2"
	"github.com/spf13/afero"
	goyaml "gopkg.in/yaml.v3"
)

const (
	FormatJSON = "json"
	FormatYAML = "yaml"
	FormatText = "text"
)

// Fixed top-level keys of composed parameters.
const (
	KeyPayload  = "payload"
	KeyTestData = "test_data"
	KeyExpected = "expected"
)

// Composer builds the unresolved parameter mapping of a step from its
// inline parameters, parameter file and parts. File references are relative
// to the flow file and must stay inside root.
type Composer struct {
	fs   afero.Fs
	root string
	l    *slog.Logger
}

func NewComposer(fs afero.Fs, root string, l *slog.Logger) *Composer {
	return &Composer{fs: fs, root: root, l: l}
}

// Compose merges, in order: parameters_file, parts.headers (shallow, at the
// top level), parts.payload under "payload", parts.test_data under
// "test_data" (its "expected" entry is lifted to the top level), inline
// parameters, and finally the step's own expected block. Placeholders are
// left untouched.
func (c *Composer) Compose(flow *runtime.Flow, step runtime.Step) (map[string]any, error) {
	base := filepath.Dir(flow.SourcePath)
	params := make(map[string]any)

	if step.ParametersFile != "" {
		m, err := c.loadMapping(base, &runtime.Source{File: step.ParametersFile}, "parameters_file")
		if err != nil {
			return nil, err
		}
		merge(params, m)
	}

	if parts := step.Parts; parts != nil {
		if parts.Headers != nil {
			m, err := c.loadMapping(base, parts.Headers, "parts.headers")
			if err != nil {
				return nil, err
			}
			merge(params, m)
		}

		if parts.Payload != nil {
			v, err := c.Load(base, parts.Payload)
			if err != nil {
				return nil, err
			}
			params[KeyPayload] = v
		}

		if parts.TestData != nil {
			v, err := c.Load(base, parts.TestData)
			if err != nil {
				return nil, err
			}
			params[KeyTestData] = v
			if m, ok := v.(map[string]any); ok {
				if exp, ok := m[KeyExpected]; ok {
					params[KeyExpected] = exp
				}
			}
		}
	}

	if step.Parameters != nil {
		merge(params, template.Copy(step.Parameters).(map[string]any))
	}

	if step.Expected != nil {
		v, err := c.Load(base, step.Expected)
		if err != nil {
			return nil, err
		}
		params[KeyExpected] = v
	}

	return params, nil
}

// Load returns the value of a Source: a copy of the inline value, or the
// parsed content of the referenced file.
func (c *Composer) Load(base string, src *runtime.Source) (any, error) {
	if !src.IsFile() {
		return template.Copy(src.Inline), nil
	}

	path, err := security.ResolveWithin(c.root, base, src.File)
	if err != nil {
		return nil, &runtime.ConfigError{Kind: runtime.ConfigMalformedFlow, Path: src.File, Err: err}
	}

	data, err := afero.ReadFile(c.fs, path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &runtime.ConfigError{Kind: runtime.ConfigMissingFile, Path: path}
		}
		return nil, fmt.Errorf("error reading %s: %w", path, err)
	}

	format := src.Format
	if format == "" {
		format = formatFromExt(path)
	}
	c.l.Debug("Loading parameter file", "path", path, "format", format)

	v, err := parse(data, format)
	if err != nil {
		return nil, &runtime.ConfigError{Kind: runtime.ConfigParse, Path: path, Err: err}
	}
	return v, nil
}

func (c *Composer) loadMapping(base string, src *runtime.Source, what string) (map[string]any, error) {
	v, err := c.Load(base, src)
	if err != nil {
		return nil, err
	}
	if v == nil {
		return map[string]any{}, nil
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, &runtime.ConfigError{
			Kind: runtime.ConfigParse,
			Path: src.File,
			Err:  fmt.Errorf("%s must be a mapping, got %T", what, v),
		}
	}
	return m, nil
}

func formatFromExt(path string) string {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".json":
		return FormatJSON
	case ".yaml", ".yml":
		return FormatYAML
	default:
		return FormatText
	}
}

func parse(data []byte, format string) (any, error) {
	switch format {
	case FormatJSON:
		parsed, err := gabs.ParseJSON(data)
		if err != nil {
			return nil, err
		}
		return parsed.Data(), nil
	case FormatYAML:
		var v any
		if err := goyaml.Unmarshal(data, &v); err != nil {
			return nil, err
		}
		return template.Normalize(v), nil
	case FormatText:
		return string(data), nil
	default:
		return nil, fmt.Errorf("unknown format %q", format)
	}
}

// merge copies src into dst, shallowly. Later values win.
func merge(dst, src map[string]any) {
	for k, v := range src {
		dst[k] = v
	}
}
