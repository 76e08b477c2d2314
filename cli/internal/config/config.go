// Package config loads the project file (flowtest.yaml) and the .env files
// next to it.
package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/BDNK1/flowtest/runtime/security"
	"github.com/joho/godotenv"
	"github.com/spf13/afero"
	"gopkg.in/yaml.v3"
)

const FileName = "flowtest.yaml"

// ProjectConfig represents the flowtest.yaml structure
type ProjectConfig struct {
	Name         string                           `yaml:"name"`
	FlowsDir     string                           `yaml:"flows_dir" default:"flows"`
	OutputDir    string                           `yaml:"output_dir" default:"reports"`
	StepTimeout  time.Duration                    `yaml:"step_timeout" default:"30s" validate:"gt=0"`
	Parallel     int                              `yaml:"parallel" default:"1" validate:"gte=1,lte=64"`
	BaseURL      string                           `yaml:"base_url" validate:"omitempty,url_format"`
	EnvFiles     []string                         `yaml:"env_files"`
	Contexts     map[string]runtime.SessionConfig `yaml:"contexts" validate:"dive"`
	Plugins      PluginsConfig                    `yaml:"plugins"`
	Listen       string                           `yaml:"listen" default:":8080"`
	OTLPEndpoint string                           `yaml:"otlp_endpoint"`

	// Dir is the project directory every relative path is resolved against.
	Dir string `yaml:"-"`
}

// PluginsConfig holds the raw plugin sections. Each plugin decodes its own
// section through runtime.InitializeConfig.
type PluginsConfig struct {
	HTTP map[string]any `yaml:"http"`
	SQL  map[string]any `yaml:"sql"`
}

// Load reads flowtest.yaml from projectDir. Before ${VAR} references are
// expanded, .env, .env.<env> and the files listed in env_files are loaded
// into the process environment; variables already set win. A missing
// flowtest.yaml yields the defaults.
func Load(fs afero.Fs, projectDir, env string) (*ProjectConfig, error) {
	raw := map[string]any{}

	configPath := filepath.Join(projectDir, FileName)
	data, err := afero.ReadFile(fs, configPath)
	switch {
	case errors.Is(err, os.ErrNotExist):
	case err != nil:
		return nil, fmt.Errorf("failed to read %s: %w", configPath, err)
	default:
		if err := yaml.Unmarshal(data, &raw); err != nil {
			return nil, &runtime.ConfigError{Kind: runtime.ConfigParse, Path: configPath, Err: err}
		}
		if raw == nil {
			raw = map[string]any{}
		}
	}

	envFiles := []string{".env"}
	if env != "" {
		envFiles = append([]string{".env." + env}, envFiles...)
	}
	if listed, ok := raw["env_files"].([]any); ok {
		for _, f := range listed {
			envFiles = append(envFiles, fmt.Sprint(f))
		}
	}
	if err := loadEnvFiles(fs, projectDir, envFiles); err != nil {
		return nil, err
	}

	expanded, err := Expand(raw, os.LookupEnv)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", configPath, err)
	}

	var cfg ProjectConfig
	if err := runtime.InitializeConfig(&cfg, expanded.(map[string]any)); err != nil {
		return nil, &runtime.ConfigError{Kind: runtime.ConfigParse, Path: configPath, Err: err}
	}
	cfg.Dir = projectDir
	if cfg.Name == "" {
		cfg.Name = directoryName(projectDir)
	}
	return &cfg, nil
}

// loadEnvFiles sets variables from the given files without overriding
// existing ones. Earlier files win. Missing files are skipped.
func loadEnvFiles(fs afero.Fs, projectDir string, files []string) error {
	for _, name := range files {
		path, err := security.ResolveWithin(projectDir, projectDir, name)
		if err != nil {
			return fmt.Errorf("invalid env file: %w", err)
		}

		data, err := afero.ReadFile(fs, path)
		if errors.Is(err, os.ErrNotExist) {
			continue
		}
		if err != nil {
			return fmt.Errorf("failed to read %s: %w", path, err)
		}

		vars, err := godotenv.Parse(bytes.NewReader(data))
		if err != nil {
			return &runtime.ConfigError{Kind: runtime.ConfigParse, Path: path, Err: err}
		}
		for k, v := range vars {
			if _, set := os.LookupEnv(k); set {
				continue
			}
			if err := os.Setenv(k, v); err != nil {
				return fmt.Errorf("failed to set %s: %w", k, err)
			}
		}
	}
	return nil
}

// Path resolves a project-relative path.
func (c *ProjectConfig) Path(rel string) string {
	if filepath.IsAbs(rel) {
		return rel
	}
	return filepath.Join(c.Dir, rel)
}

// SessionContexts returns the configured Execution Contexts. base_url is
// the fallback base URL of every context that sets none, including the
// implicit "none" context.
func (c *ProjectConfig) SessionContexts() map[string]runtime.SessionConfig {
	out := make(map[string]runtime.SessionConfig, len(c.Contexts)+1)
	for name, ctx := range c.Contexts {
		if ctx.BaseURL == "" {
			ctx.BaseURL = c.BaseURL
		}
		out[name] = ctx
	}
	if _, ok := out[runtime.ContextNone]; !ok {
		out[runtime.ContextNone] = runtime.SessionConfig{BaseURL: c.BaseURL, Auth: runtime.AuthNone}
	}
	return out
}

func directoryName(path string) string {
	abs, err := filepath.Abs(path)
	if err != nil {
		return "flowtest"
	}
	return filepath.Base(abs)
}
