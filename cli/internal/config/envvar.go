package config

import (
	"fmt"
	"regexp"
	"strings"
)

// EnvVarSpec represents a parsed environment variable specification
type EnvVarSpec struct {
	// VarName is the environment variable name (e.g., "API_TOKEN")
	VarName string

	HasDefault   bool
	DefaultValue string

	// IsLiteral indicates the value held no variable reference
	IsLiteral    bool
	LiteralValue string
}

// Lookup returns the value of an environment variable and whether it is set.
type Lookup func(name string) (string, bool)

var (
	// envVarPattern matches a value that is exactly ${VAR} or ${VAR:default}
	envVarPattern = regexp.MustCompile(`^\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}$`)

	// embeddedPattern matches references inside a larger string
	embeddedPattern = regexp.MustCompile(`\$\{([A-Z_][A-Z0-9_]*)(:[^}]*)?\}`)
)

// ParseEnvVar parses a config value that may be an environment variable
// reference.
//
//	ParseEnvVar("${API_TOKEN}")                  -> required variable
//	ParseEnvVar("${BASE_URL:http://localhost}")   -> variable with default
//	ParseEnvVar("http://localhost")               -> literal
func ParseEnvVar(value string) (*EnvVarSpec, error) {
	matches := envVarPattern.FindStringSubmatch(value)
	if matches == nil {
		if strings.HasPrefix(value, "${") && strings.HasSuffix(value, "}") {
			return nil, fmt.Errorf("invalid environment variable reference: %s", value)
		}
		return &EnvVarSpec{IsLiteral: true, LiteralValue: value}, nil
	}

	spec := &EnvVarSpec{
		VarName:    matches[1],
		HasDefault: matches[2] != "",
	}
	if spec.HasDefault {
		spec.DefaultValue = strings.TrimPrefix(matches[2], ":")
	}
	return spec, nil
}

// Resolve returns the value of the referenced variable. A required variable that is
// not set is an error.
func (s *EnvVarSpec) Resolve(lookup Lookup) (string, error) {
	if s.IsLiteral {
		return s.LiteralValue, nil
	}
	if v, ok := lookup(s.VarName); ok {
		return v, nil
	}
	if s.HasDefault {
		return s.DefaultValue, nil
	}
	return "", fmt.Errorf("required environment variable %s is not set", s.VarName)
}

// ExpandString replaces every ${VAR} and ${VAR:default} reference in s.
func ExpandString(s string, lookup Lookup) (string, error) {
	var firstErr error
	out := embeddedPattern.ReplaceAllStringFunc(s, func(ref string) string {
		spec, err := ParseEnvVar(ref)
		if err == nil {
			var v string
			if v, err = spec.Resolve(lookup); err == nil {
				return v
			}
		}
		if firstErr == nil {
			firstErr = err
		}
		return ref
	})
	return out, firstErr
}

// Expand walks a decoded YAML document and expands variable references in
// every string. Keys are left untouched.
func Expand(value any, lookup Lookup) (any, error) {
	switch v := value.(type) {
	case string:
		return ExpandString(v, lookup)
	case map[string]any:
		out := make(map[string]any, len(v))
		for k, item := range v {
			expanded, err := Expand(item, lookup)
			if err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
			out[k] = expanded
		}
		return out, nil
	case []any:
		out := make([]any, len(v))
		for i, item := range v {
			expanded, err := Expand(item, lookup)
			if err != nil {
				return nil, fmt.Errorf("[%d]: %w", i, err)
			}
			out[i] = expanded
		}
		return out, nil
	default:
		return value, nil
	}
}
