package yaml

import (
	"errors"
	"fmt"
	"os"

	"github.com/BDNK1/flowtest/runtime"
	"github.com/spf13/afero"
	goyaml "gopkg.in/yaml.v3"
)

// FlowLoader loads flow definitions from YAML files.
type FlowLoader struct {
	fs afero.Fs
}

func NewFlowLoader(fs afero.Fs) *FlowLoader {
	return &FlowLoader{fs: fs}
}

func (l *FlowLoader) Extensions() []string {
	return []string{"*.yaml", "*.yml"}
}

func (l *FlowLoader) Load(filePath string) (runtime.Flow, error) {
	data, err := afero.ReadFile(l.fs, filePath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return runtime.Flow{}, &runtime.ConfigError{Kind: runtime.ConfigMissingFile, Path: filePath}
		}
		return runtime.Flow{}, fmt.Errorf("error reading YAML file: %w", err)
	}

	var flow runtime.Flow
	if err := goyaml.Unmarshal(data, &flow); err != nil {
		return runtime.Flow{}, &runtime.ConfigError{Kind: runtime.ConfigParse, Path: filePath, Err: err}
	}
	flow.SourcePath = filePath

	if err := runtime.ValidateStruct(flow); err != nil {
		return runtime.Flow{}, &runtime.ConfigError{Kind: runtime.ConfigMalformedFlow, Path: filePath, Err: err}
	}
	if err := checkSteps(flow); err != nil {
		return runtime.Flow{}, &runtime.ConfigError{Kind: runtime.ConfigMalformedFlow, Path: filePath, Err: err}
	}

	return flow, nil
}

func checkSteps(flow runtime.Flow) error {
	seen := make(map[string]struct{}, len(flow.Steps))
	for i, step := range flow.Steps {
		if _, dup := seen[step.ID]; dup {
			return fmt.Errorf("duplicate step_id %q at step #%d", step.ID, i+1)
		}
		seen[step.ID] = struct{}{}

		if step.SaveResponseBody != nil && step.SaveResponseBody.Enabled && step.SaveResponseBody.Filename == "" {
			return fmt.Errorf("step %s: save_response_body.filename is required when enabled", step.ID)
		}
		for name, path := range step.SaveFromResponse {
			if name == "" || path == "" {
				return fmt.Errorf("step %s: save_from_response entries need a name and a path", step.ID)
			}
		}
		for name, path := range step.SaveFromRequest {
			if name == "" || path == "" {
				return fmt.Errorf("step %s: save_from_request entries need a name and a path", step.ID)
			}
		}
	}
	return nil
}
