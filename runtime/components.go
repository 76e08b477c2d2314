package runtime

import (
	"fmt"
	"time"

	"gopkg.in/yaml.v3"
)

type Flow struct {
	ID             string          `yaml:"flow_id" validate:"required"`
	Description    string          `yaml:"description"`
	Tags           []string        `yaml:"tags"`
	DependsOn      string          `yaml:"depends_on"`
	DefaultContext *DefaultContext `yaml:"default_context"`
	Timeout        time.Duration   `yaml:"timeout"`
	Steps          []Step          `yaml:"steps" validate:"required,min=1,dive"`
	SourcePath     string          `yaml:"-"`
}

// DefaultContext selects the Execution Context used by steps that do not
// choose one themselves.
type DefaultContext struct {
	APIContext string `yaml:"api_context"`
	BaseURL    string `yaml:"baseURL" validate:"omitempty,url_format"`
}

type Step struct {
	ID               string            `yaml:"step_id" validate:"required"`
	Description      string            `yaml:"description"`
	Function         string            `yaml:"function" validate:"required"`
	If               string            `yaml:"if,omitempty"`
	Context          string            `yaml:"context,omitempty"`
	Auth             string            `yaml:"auth,omitempty" validate:"omitempty,oneof=none bearer"`
	Timeout          time.Duration     `yaml:"timeout,omitempty"`
	Parameters       map[string]any    `yaml:"parameters,omitempty"`
	ParametersFile   string            `yaml:"parameters_file,omitempty"`
	Parts            *Parts            `yaml:"parts,omitempty"`
	SaveFromRequest  map[string]string `yaml:"save_from_request,omitempty"`
	SaveFromResponse map[string]string `yaml:"save_from_response,omitempty"`
	SaveResponseBody *SaveResponseBody `yaml:"save_response_body,omitempty"`
	Expected         *Source           `yaml:"expected,omitempty"`
}

// Name is the human-visible name of the step.
func (s Step) Name() string {
	if s.Description != "" {
		return s.Description
	}
	return s.ID
}

// Parts declares the independently loaded fragments of a step's parameters.
type Parts struct {
	Headers  *Source `yaml:"headers,omitempty"`
	Payload  *Source `yaml:"payload,omitempty"`
	TestData *Source `yaml:"test_data,omitempty"`
}

type SaveResponseBody struct {
	Enabled   bool   `yaml:"enabled"`
	Filename  string `yaml:"filename"`
	OutputDir string `yaml:"output_dir"`
}

// Source is either an inline value or a reference to a file.
//
//	payload: payloads/create-user.json       # file, format from extension
//	payload: {file: payloads/user.tmpl, format: text}
//	payload: {name: "{{faker.person.firstName}}"}   # inline
type Source struct {
	File   string
	Format string
	Inline any
}

func (s *Source) IsFile() bool {
	return s != nil && s.File != ""
}

func (s *Source) UnmarshalYAML(node *yaml.Node) error {
	switch node.Kind {
	case yaml.ScalarNode:
		var path string
		if err := node.Decode(&path); err != nil {
			return err
		}
		s.File = path
		return nil
	case yaml.MappingNode:
		var ref struct {
			File   string `yaml:"file"`
			Format string `yaml:"format"`
		}
		if isFileReference(node) {
			if err := node.Decode(&ref); err != nil {
				return err
			}
			s.File = ref.File
			s.Format = ref.Format
			return nil
		}
		var inline map[string]any
		if err := node.Decode(&inline); err != nil {
			return err
		}
		s.Inline = inline
		return nil
	case yaml.SequenceNode:
		var inline []any
		if err := node.Decode(&inline); err != nil {
			return err
		}
		s.Inline = inline
		return nil
	default:
		return fmt.Errorf("line %d: expected a file path or an inline value", node.Line)
	}
}

// isFileReference reports whether a mapping holds only "file" and "format" keys.
func isFileReference(node *yaml.Node) bool {
	hasFile := false
	for i := 0; i+1 < len(node.Content); i += 2 {
		switch node.Content[i].Value {
		case "file":
			hasFile = true
		case "format":
		default:
			return false
		}
	}
	return hasFile
}
